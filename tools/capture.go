package tools

import (
	gocontext "context"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/mtreglia-gpsw/quik-tracy/context"
	"github.com/mtreglia-gpsw/quik-tracy/docker"
	"github.com/mtreglia-gpsw/quik-tracy/exec"
)

// CaptureOptions configure one trace capture.
type CaptureOptions struct {
	// Name is the output file name, e.g. capture.tracy.
	Name string

	// Host and Port locate the instrumented application.
	Host string
	Port int

	// Seconds stops the capture after a fixed duration. Zero records until
	// the application disconnects.
	Seconds int

	// Timeout bounds the whole capture. Zero defers to the capture.timeout
	// property, which itself defaults to unlimited.
	Timeout time.Duration

	Mode Mode

	// Dir is where the trace lands. Empty means the current directory.
	Dir string
}

func (o *CaptureOptions) setDefaults(ctx context.Context) error {
	if o.Name == "" {
		o.Name = "capture.tracy"
	}
	if o.Host == "" {
		o.Host = ctx.Properties().String("capture.host", DefaultHost)
	}
	if o.Port == 0 {
		o.Port = DefaultPort
	}
	if o.Timeout == 0 {
		o.Timeout = ctx.Properties().Duration("capture.timeout", 0)
	}

	dir, err := filepath.Abs(o.Dir)
	if err != nil {
		return ctx.Oops().With("dir", o.Dir).Wrap(err)
	}
	o.Dir = dir

	return nil
}

// Capture records a trace from a running application and returns the path to
// the .tracy file.
func Capture(ctx context.Context, opts CaptureOptions) (string, error) {
	ctx = ctx.WithName("tools")
	if err := opts.setDefaults(ctx); err != nil {
		return "", err
	}

	backend, err := Resolve(ctx, ToolCapture, opts.Mode)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return "", ctx.Oops().With("dir", opts.Dir).Wrap(err)
	}
	tracePath := filepath.Join(opts.Dir, opts.Name)

	switch backend.Mode {
	case ModeProcess:
		host := opts.Host
		if host == DefaultHost {
			ctx.Logger.Warnf("%s does not resolve outside containers, falling back to localhost", DefaultHost)
			host = "localhost"
		}

		args := []string{"-a", host, "-p", strconv.Itoa(opts.Port), "-o", tracePath}
		if opts.Seconds > 0 {
			args = append(args, "-s", strconv.Itoa(opts.Seconds))
		}

		if _, err := exec.Run(ctx, exec.Cmd{Name: backend.Path, Args: args, Timeout: opts.Timeout, Stream: true}); err != nil {
			return "", err
		}

	case ModeDocker:
		client, err := docker.NewClient(ctx)
		if err != nil {
			return "", err
		}

		runCtx := ctx
		if opts.Timeout > 0 {
			var cancel gocontext.CancelFunc
			runCtx, cancel = ctx.WithTimeout(opts.Timeout)
			defer cancel()
		}

		args := []string{"-o", "/data/" + opts.Name, "-a", opts.Host, "-p", strconv.Itoa(opts.Port)}
		if opts.Seconds > 0 {
			args = append(args, "-s", strconv.Itoa(opts.Seconds))
		}

		result, err := client.Run(runCtx, docker.RunConfig{
			Image:      backend.Image,
			Cmd:        args,
			Binds:      []string{opts.Dir + ":/data:rw"},
			Network:    "host",
			ExtraHosts: []string{"host.docker.internal:host-gateway"},
		})
		if err != nil {
			return "", err
		}
		if result.Stderr != "" {
			ctx.Logger.Warnf("%s", result.Stderr)
		}
	}

	if _, err := os.Stat(tracePath); err != nil {
		return "", ctx.Oops().With("path", tracePath).Errorf("capture completed but produced no trace at %s", tracePath)
	}

	ctx.Logger.Infof("trace written to %s", tracePath)
	return tracePath, nil
}
