package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/mtreglia-gpsw/quik-tracy/context"
	"github.com/mtreglia-gpsw/quik-tracy/docker"
	"github.com/mtreglia-gpsw/quik-tracy/exec"
)

// ProfileOptions configure opening the tracy profiler UI.
type ProfileOptions struct {
	// Trace is a .tracy file to open. Empty connects live to Host:Port.
	Trace string

	Host string
	Port int

	Mode Mode

	// Dir is the directory exposed to the containerized profiler when no
	// trace is given. Empty means the current directory.
	Dir string
}

func (o *ProfileOptions) setDefaults(ctx context.Context) error {
	if o.Host == "" {
		o.Host = ctx.Properties().String("capture.host", DefaultHost)
	}
	if o.Port == 0 {
		o.Port = DefaultPort
	}

	if o.Trace != "" {
		trace, err := filepath.Abs(o.Trace)
		if err != nil {
			return ctx.Oops().With("path", o.Trace).Wrap(err)
		}
		o.Trace = trace
	}

	dir, err := filepath.Abs(o.Dir)
	if err != nil {
		return ctx.Oops().With("dir", o.Dir).Wrap(err)
	}
	o.Dir = dir

	return nil
}

// Profile opens a trace in the tracy profiler, or connects it live to a
// running application when no trace is given. The process backend launches
// the desktop UI detached; the docker backend serves the web UI instead.
func Profile(ctx context.Context, opts ProfileOptions) error {
	ctx = ctx.WithName("tools")
	if err := opts.setDefaults(ctx); err != nil {
		return err
	}

	if opts.Trace != "" {
		if _, err := os.Stat(opts.Trace); err != nil {
			return ctx.Oops().With("path", opts.Trace).Wrapf(err, "trace file not found")
		}
	}

	backend, err := Resolve(ctx, ToolProfiler, opts.Mode)
	if err != nil {
		return err
	}

	switch backend.Mode {
	case ModeProcess:
		var args []string
		if opts.Trace != "" {
			args = []string{opts.Trace}
		} else {
			host := opts.Host
			if host == DefaultHost {
				ctx.Logger.Warnf("%s does not resolve outside containers, falling back to localhost", DefaultHost)
				host = "localhost"
			}
			args = []string{"-a", host, "-p", strconv.Itoa(opts.Port)}
		}

		if _, err := exec.Background(ctx, exec.Cmd{Name: backend.Path, Args: args}); err != nil {
			return err
		}
		if opts.Trace != "" {
			ctx.Logger.Infof("profiler started for %s", opts.Trace)
		} else {
			ctx.Logger.Infof("profiler started for live connection %s:%d", opts.Host, opts.Port)
		}

	case ModeDocker:
		client, err := docker.NewClient(ctx)
		if err != nil {
			return err
		}

		mount := opts.Dir
		if opts.Trace != "" {
			mount = filepath.Dir(opts.Trace)
		}

		port := strconv.Itoa(ProfilerWebPort)
		id, err := client.RunDetached(ctx, docker.RunConfig{
			Image: backend.Image,
			Binds: []string{mount + ":/data:ro"},
			Ports: map[string]string{fmt.Sprintf("%d/tcp", ProfilerWebPort): port},
		})
		if err != nil {
			return err
		}

		ctx.Logger.Infof("profiler web interface available at http://localhost:%s", port)
		ctx.Logger.Infof("container id: %s", id)
	}

	return nil
}
