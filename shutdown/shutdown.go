package shutdown

import (
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/flanksource/commons/logger"
)

// Hooks run in ascending priority order: externally visible surfaces first,
// open artifacts last.
const (
	// PriorityContainers stops detached tool containers.
	PriorityContainers = 0

	// PriorityCaptures aborts in-flight captures and exports.
	PriorityCaptures = 100

	// PriorityArtifacts closes report stores once producers have stopped.
	PriorityArtifacts = 1000
)

type hook struct {
	label    string
	priority int
	fn       func()
}

var (
	mutex sync.Mutex
	hooks []hook
)

var Shutdown = sync.OnceFunc(func() {
	mutex.Lock()
	defer mutex.Unlock()

	if len(hooks) == 0 {
		return
	}

	logger.Infof("shutting down")
	sort.SliceStable(hooks, func(i, j int) bool { return hooks[i].priority < hooks[j].priority })
	for _, h := range hooks {
		start := time.Now()
		h.fn()
		if h.label != "" {
			logger.Debugf("%s shutdown completed in %v", h.label, time.Since(start))
		}
	}
	hooks = nil
})

func ShutdownAndExit(code int, msg string) {
	Shutdown()
	logger.StandardLogger().WithSkipReportLevel(1).Errorf(msg)
	os.Exit(code)
}

func AddHook(fn func()) {
	AddHookWithPriority("", PriorityCaptures, fn)
}

func AddHookWithPriority(label string, priority int, fn func()) {
	mutex.Lock()
	defer mutex.Unlock()
	hooks = append(hooks, hook{label: label, priority: priority, fn: fn})
}

// WaitForSignal installs the interrupt handler. A second signal skips the
// hooks and exits immediately.
func WaitForSignal() {
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		sig := <-quit
		logger.Infof("caught %v, shutting down", sig)

		go func() {
			<-quit
			logger.Warnf("caught second %v, exiting immediately", sig)
			os.Exit(1)
		}()

		Shutdown()
	}()
}
