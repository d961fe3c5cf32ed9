package tools

import (
	gocontext "context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mtreglia-gpsw/quik-tracy/context"
	"github.com/mtreglia-gpsw/quik-tracy/docker"
	"github.com/mtreglia-gpsw/quik-tracy/exec"
)

// ExportOptions configure one trace to CSV conversion.
type ExportOptions struct {
	// Input is the .tracy file to convert.
	Input string

	// Output is the CSV destination. Empty writes next to the input with a
	// .csv extension.
	Output string

	// Timeout bounds the conversion. Zero defers to the export.timeout
	// property, which itself defaults to unlimited.
	Timeout time.Duration

	Mode Mode
}

func (o *ExportOptions) setDefaults(ctx context.Context) error {
	input, err := filepath.Abs(o.Input)
	if err != nil {
		return ctx.Oops().With("path", o.Input).Wrap(err)
	}
	o.Input = input

	if o.Output == "" {
		o.Output = strings.TrimSuffix(o.Input, filepath.Ext(o.Input)) + ".csv"
	}
	if o.Timeout == 0 {
		o.Timeout = ctx.Properties().Duration("export.timeout", 0)
	}

	return nil
}

// Export converts a .tracy file into the CSV the pipeline consumes.
// tracy-csvexport prints the table on stdout in both backends.
func Export(ctx context.Context, opts ExportOptions) (string, error) {
	ctx = ctx.WithName("tools")
	if err := opts.setDefaults(ctx); err != nil {
		return "", err
	}

	if _, err := os.Stat(opts.Input); err != nil {
		return "", ctx.Oops().With("path", opts.Input).Wrapf(err, "trace file not found")
	}

	backend, err := Resolve(ctx, ToolExport, opts.Mode)
	if err != nil {
		return "", err
	}

	switch backend.Mode {
	case ModeProcess:
		cmd := exec.Cmd{Name: backend.Path, Args: []string{opts.Input}, Timeout: opts.Timeout}
		result, err := exec.RunToFile(ctx, cmd, opts.Output)
		if err != nil {
			return "", err
		}
		if result.Stderr != "" {
			ctx.Logger.Warnf("%s", result.Stderr)
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

		result, err := client.Run(runCtx, docker.RunConfig{
			Image: backend.Image,
			Cmd:   []string{"/data/" + filepath.Base(opts.Input)},
			Binds: []string{filepath.Dir(opts.Input) + ":/data:ro"},
		})
		if err != nil {
			return "", err
		}
		if result.Stderr != "" {
			ctx.Logger.Warnf("%s", result.Stderr)
		}
		if result.Stdout == "" {
			return "", ctx.Oops().With("path", opts.Input).Errorf("%s produced no output", ToolExport)
		}

		if err := os.WriteFile(opts.Output, []byte(result.Stdout+"\n"), 0o644); err != nil {
			return "", ctx.Oops().With("path", opts.Output).Wrap(err)
		}
	}

	if stat, err := os.Stat(opts.Output); err != nil || stat.Size() == 0 {
		return "", ctx.Oops().With("path", opts.Output).Errorf("export produced no usable CSV at %s", opts.Output)
	}

	ctx.Logger.Infof("CSV written to %s", opts.Output)
	return opts.Output, nil
}
