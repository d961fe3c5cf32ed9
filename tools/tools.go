package tools

import (
	"github.com/mtreglia-gpsw/quik-tracy/context"
	"github.com/mtreglia-gpsw/quik-tracy/docker"
	"github.com/mtreglia-gpsw/quik-tracy/exec"
)

const (
	ToolCapture  = "tracy-capture"
	ToolExport   = "tracy-csvexport"
	ToolProfiler = "tracy-profiler"
)

const (
	// DefaultHost is where capture and live profiling connect. Containers
	// reach the host application through this alias; process mode falls
	// back to localhost.
	DefaultHost = "host.docker.internal"

	// DefaultPort is the tracy broadcast port.
	DefaultPort = 8086

	// ProfilerWebPort is where the containerized profiler serves its UI.
	ProfilerWebPort = 8000
)

// ImageRef returns the image that ships tool. The registry prefix property
// lets teams point at a mirror, e.g. ghcr.io/acme/tracy-capture.
func ImageRef(ctx context.Context, tool string) string {
	return ctx.Properties().String("tools.image.prefix", "") + tool
}

// Backend is one resolved way to run a tool.
type Backend struct {
	Tool string
	Mode Mode

	// Path is the executable for process mode.
	Path string

	// Image is the container image for docker mode.
	Image string
}

// Resolve picks the backend for tool. Auto prefers a binary on PATH over a
// local image, matching how developers usually have tracy installed.
func Resolve(ctx context.Context, tool string, mode Mode) (*Backend, error) {
	switch mode {
	case ModeAuto, "":
		if path, ok := exec.LookPath(ctx, tool); ok {
			ctx.Logger.V(3).Infof("resolved %s to %s", tool, path)
			return &Backend{Tool: tool, Mode: ModeProcess, Path: path}, nil
		}
		if image, ok := imageAvailable(ctx, tool); ok {
			ctx.Logger.V(3).Infof("resolved %s to image %s", tool, image)
			return &Backend{Tool: tool, Mode: ModeDocker, Image: image}, nil
		}
		return nil, ctx.Oops().With("tool", tool).Code(CodeToolUnavailable).
			Errorf("%s is not available as a process or a docker image", tool)

	case ModeProcess:
		path, ok := exec.LookPath(ctx, tool)
		if !ok {
			return nil, ctx.Oops().With("tool", tool).Code(CodeToolUnavailable).
				Errorf("%s not found on PATH", tool)
		}
		return &Backend{Tool: tool, Mode: ModeProcess, Path: path}, nil

	case ModeDocker:
		image, ok := imageAvailable(ctx, tool)
		if !ok {
			return nil, ctx.Oops().With("tool", tool, "image", ImageRef(ctx, tool)).Code(CodeToolUnavailable).
				Errorf("%s image is not available", tool)
		}
		return &Backend{Tool: tool, Mode: ModeDocker, Image: image}, nil
	}

	return nil, ctx.Oops().Errorf("unsupported run mode %q", mode)
}

func imageAvailable(ctx context.Context, tool string) (string, bool) {
	image := ImageRef(ctx, tool)

	client, err := docker.NewClient(ctx)
	if err != nil {
		ctx.Logger.V(3).Infof("docker unavailable: %v", err)
		return image, false
	}
	if err := client.Ping(ctx); err != nil {
		ctx.Logger.V(3).Infof("docker unavailable: %v", err)
		return image, false
	}

	return image, client.ImageAvailable(ctx, image)
}

// Status reports how one tracy tool can run on this machine.
type Status struct {
	Tool      string `json:"tool"`
	Path      string `json:"path,omitempty"`
	Image     string `json:"image,omitempty"`
	ImageSize int64  `json:"imageSize,omitempty"`
}

func (s Status) Available() bool {
	return s.Path != "" || s.Image != ""
}

func Probe(ctx context.Context, tool string) Status {
	status := Status{Tool: tool}

	if path, ok := exec.LookPath(ctx, tool); ok {
		status.Path = path
	}

	if client, err := docker.NewClient(ctx); err == nil && client.Ping(ctx) == nil {
		ref := ImageRef(ctx, tool)
		if info, err := client.GetImageInfo(ctx, ref); err == nil && info != nil {
			status.Image = ref
			status.ImageSize = info.Size
		}
	}

	return status
}

func ProbeAll(ctx context.Context) []Status {
	statuses := make([]Status, 0, 3)
	for _, tool := range []string{ToolCapture, ToolExport, ToolProfiler} {
		statuses = append(statuses, Probe(ctx, tool))
	}
	return statuses
}
