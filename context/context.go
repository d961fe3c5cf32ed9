package context

import (
	gocontext "context"
	"time"

	commons "github.com/flanksource/commons/context"
	"github.com/flanksource/commons/logger"
)

// Context carries cancellation, a logger and runtime properties through the
// capture/export/compare pipeline.
type Context struct {
	commons.Context
}

func New(opts ...commons.ContextOptions) Context {
	return NewContext(gocontext.Background(), opts...)
}

func NewContext(baseCtx gocontext.Context, opts ...commons.ContextOptions) Context {
	baseOpts := []commons.ContextOptions{
		commons.WithLogger(logger.StandardLogger()),
	}
	baseOpts = append(baseOpts, opts...)

	return Context{
		Context: commons.NewContext(baseCtx, baseOpts...),
	}
}

func (k Context) WithTimeout(timeout time.Duration) (Context, gocontext.CancelFunc) {
	ctx, cancelFunc := k.Context.WithTimeout(timeout)
	return Context{Context: ctx}, cancelFunc
}

// WithCancel derives a context that shutdown hooks can abort, e.g. an
// in-flight capture waiting on an application that never connects.
func (k Context) WithCancel() (Context, gocontext.CancelFunc) {
	cancelCtx, cancel := gocontext.WithCancel(k.Context)
	return Context{Context: commons.NewContext(cancelCtx, commons.WithLogger(k.Logger))}, cancel
}

func (k Context) WithValue(key, val any) Context {
	return Context{
		Context: k.Context.WithValue(key, val),
	}
}

// WithName routes logs for this context through a named logger, so
// subsystems (tools, report.store, ...) can be level-controlled separately.
func (k Context) WithName(name string) Context {
	k.Context.Logger = logger.GetLogger(name)
	return k
}
