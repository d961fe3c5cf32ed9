package exec

import (
	"bufio"
	"bytes"
	gocontext "context"
	"fmt"
	"io"
	"os"
	osExec "os/exec"
	"strings"
	"time"

	"github.com/mtreglia-gpsw/quik-tracy/cache"
	"github.com/mtreglia-gpsw/quik-tracy/context"
)

// Cmd describes a single tool invocation.
type Cmd struct {
	Name string
	Args []string

	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Env holds extra KEY=VALUE pairs appended to the inherited environment.
	Env []string

	// Timeout bounds the run. Zero means no deadline.
	Timeout time.Duration

	// Stream mirrors output through the logger line by line while the
	// command runs, so long captures show progress instead of going dark.
	Stream bool
}

type Details struct {
	Stdout   string   `json:"stdout"`
	Stderr   string   `json:"stderr"`
	ExitCode int      `json:"exitCode"`
	Path     string   `json:"path"`
	Args     []string `json:"args"`
}

func (e Details) String() string {
	return fmt.Sprintf("%s %s exit=%d stdout=%s stderr=%s", e.Path, e.Args, e.ExitCode, e.Stdout, e.Stderr)
}

func Run(ctx context.Context, cmd Cmd) (*Details, error) {
	runCtx := ctx
	if cmd.Timeout > 0 {
		var cancel gocontext.CancelFunc
		runCtx, cancel = ctx.WithTimeout(cmd.Timeout)
		defer cancel()
	}

	c := osExec.CommandContext(runCtx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	if len(cmd.Env) != 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}

	ctx.Logger.V(3).Infof("running: %s %s", cmd.Name, strings.Join(cmd.Args, " "))

	var (
		stdout bytes.Buffer
		stderr bytes.Buffer
		err    error
	)
	if cmd.Stream {
		err = runStreaming(ctx, c, &stdout, &stderr)
	} else {
		c.Stdout = &stdout
		c.Stderr = &stderr
		err = c.Run()
	}

	result := &Details{
		Path:     c.Path,
		Args:     c.Args,
		Stdout:   strings.TrimSpace(stdout.String()),
		Stderr:   strings.TrimSpace(stderr.String()),
		ExitCode: -1,
	}
	if c.ProcessState != nil {
		result.ExitCode = c.ProcessState.ExitCode()
	}

	ctx.Logger.V(3).Infof("%s exited with code=%d, stdout=%d bytes, stderr=%d bytes", c.Path, result.ExitCode, len(result.Stdout), len(result.Stderr))

	if runCtx.Err() == gocontext.DeadlineExceeded {
		return result, ctx.Oops().With(
			"cmd", c.Path,
			"args", c.Args,
			"timeout", cmd.Timeout.String(),
		).Code("timeout").Errorf("%s timed out after %s", cmd.Name, cmd.Timeout)
	}

	if err != nil {
		if c.ProcessState == nil {
			return result, ctx.Oops().With("cmd", cmd.Name, "args", cmd.Args).Wrapf(err, "failed to start %s", cmd.Name)
		}

		return result, ctx.Oops().With(
			"cmd", c.Path,
			"args", c.Args,
			"error", err.Error(),
			"stderr", result.Stderr,
			"stdout", result.Stdout,
			"exit-code", result.ExitCode,
		).Code(fmt.Sprintf("exited with %d", result.ExitCode)).Errorf("%v", err)
	}

	return result, nil
}

// RunToFile runs cmd and writes its stdout to path. tracy-csvexport prints
// the CSV on stdout, so the export backends route through this.
func RunToFile(ctx context.Context, cmd Cmd, path string) (*Details, error) {
	result, err := Run(ctx, cmd)
	if err != nil {
		return result, err
	}

	if result.Stdout != "" {
		if err := os.WriteFile(path, []byte(result.Stdout+"\n"), 0o644); err != nil {
			return result, ctx.Oops().With("path", path).Wrap(err)
		}
		ctx.Logger.V(3).Infof("wrote %d bytes to %s", len(result.Stdout)+1, path)
	}

	return result, nil
}

// Background starts cmd detached with output discarded and returns without
// waiting. The profiler UI runs this way so the command line returns while
// the window stays up. The caller owns the returned process.
func Background(ctx context.Context, cmd Cmd) (*osExec.Cmd, error) {
	c := osExec.Command(cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	if len(cmd.Env) != 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}

	if err := c.Start(); err != nil {
		return nil, ctx.Oops().With("cmd", cmd.Name, "args", cmd.Args).Wrapf(err, "failed to start %s", cmd.Name)
	}

	ctx.Logger.V(3).Infof("started %s in background with pid=%d", cmd.Name, c.Process.Pid)
	return c, nil
}

func runStreaming(ctx context.Context, c *osExec.Cmd, stdout, stderr *bytes.Buffer) error {
	stdoutPipe, err := c.StdoutPipe()
	if err != nil {
		return err
	}
	stderrPipe, err := c.StderrPipe()
	if err != nil {
		return err
	}

	if err := c.Start(); err != nil {
		return err
	}

	done := make(chan struct{}, 2)
	go streamLines(stdoutPipe, stdout, done, func(line string) { ctx.Logger.V(3).Infof("%s", line) })
	go streamLines(stderrPipe, stderr, done, func(line string) { ctx.Logger.Warnf("%s", line) })

	// both pipes must hit EOF before Wait reclaims them
	<-done
	<-done

	return c.Wait()
}

func streamLines(r io.Reader, sink *bytes.Buffer, done chan<- struct{}, log func(string)) {
	defer func() { done <- struct{}{} }()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		sink.WriteString(line)
		sink.WriteByte('\n')
		log(line)
	}
}

var lookPathCache = cache.NewCache[string]("exec.lookpath", 15*time.Minute)

// LookPath resolves name on PATH, caching hits and misses alike.
func LookPath(ctx context.Context, name string) (string, bool) {
	path := cache.Memoize(ctx, lookPathCache, name, func() string {
		p, err := osExec.LookPath(name)
		if err != nil {
			ctx.Logger.V(4).Infof("%s not found on PATH: %v", name, err)
			return ""
		}
		return p
	})

	return path, path != ""
}
