package docker

import (
	"bytes"
	gocontext "context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/strslice"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"

	"github.com/mtreglia-gpsw/quik-tracy/cache"
	"github.com/mtreglia-gpsw/quik-tracy/context"
)

// one engine client per process, reusing the negotiated API version
var getAPIClient = sync.OnceValues(func() (*client.Client, error) {
	return client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
})

// Client wraps the engine API for the handful of operations the tracy
// tooling needs: probing images, pulling them, and running short-lived
// capture/export containers.
type Client struct {
	api *client.Client
}

func NewClient(ctx context.Context) (*Client, error) {
	api, err := getAPIClient()
	if err != nil {
		return nil, ctx.Oops().Wrapf(err, "failed to create docker client")
	}

	return &Client{api: api}, nil
}

func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.Ping(ctx); err != nil {
		return ctx.Oops().Wrapf(err, "docker daemon is not reachable")
	}

	return nil
}

type ImageInfo struct {
	ID           string    `json:"id"`
	Tags         []string  `json:"tags"`
	Created      time.Time `json:"created,omitempty"`
	Size         int64     `json:"size"`
	Architecture string    `json:"architecture,omitempty"`
	OS           string    `json:"os,omitempty"`
}

// GetImageInfo inspects a local image. A missing image returns nil, nil.
func (c *Client) GetImageInfo(ctx context.Context, ref string) (*ImageInfo, error) {
	inspect, _, err := c.api.ImageInspectWithRaw(ctx, ref)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil, nil
		}

		return nil, ctx.Oops().With("image", ref).Wrap(err)
	}

	info := &ImageInfo{
		ID:           inspect.ID,
		Tags:         inspect.RepoTags,
		Size:         inspect.Size,
		Architecture: inspect.Architecture,
		OS:           inspect.Os,
	}
	if inspect.Created != "" {
		created, err := time.Parse(time.RFC3339Nano, inspect.Created)
		if err != nil {
			ctx.Logger.V(3).Infof("unparsable image timestamp %q: %v", inspect.Created, err)
		} else {
			info.Created = created
		}
	}

	return info, nil
}

var imageCache = cache.NewCache[bool]("docker.images", 15*time.Minute)

// ImageAvailable reports whether ref exists locally. Results are cached so
// repeated mode resolution does not hammer the daemon.
func (c *Client) ImageAvailable(ctx context.Context, ref string) bool {
	return cache.Memoize(ctx, imageCache, ref, func() bool {
		info, err := c.GetImageInfo(ctx, ref)
		if err != nil {
			ctx.Logger.V(3).Infof("image %s not available: %v", ref, err)
			return false
		}
		return info != nil
	})
}

func (c *Client) Pull(ctx context.Context, ref string) error {
	reader, err := c.api.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return ctx.Oops().With("image", ref).Wrapf(err, "pull failed")
	}
	defer reader.Close()

	if err := consumeEvents(ctx, reader); err != nil {
		return ctx.Oops().With("image", ref).Wrapf(err, "pull failed")
	}

	// the next availability probe should see the fresh image
	_ = imageCache.Delete(ctx, ref)
	return nil
}

// consumeEvents mirrors the engine's JSON event stream to the logger and
// surfaces embedded errors, which the API reports in-band.
func consumeEvents(ctx context.Context, r io.Reader) error {
	decoder := json.NewDecoder(r)
	for {
		var msg jsonmessage.JSONMessage
		if err := decoder.Decode(&msg); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		if msg.Error != nil {
			return msg.Error
		}

		switch {
		case msg.Stream != "":
			ctx.Logger.V(3).Infof("%s", strings.TrimRight(msg.Stream, "\n"))
		case msg.ID != "":
			line := fmt.Sprintf("%s: %s", msg.ID, msg.Status)
			if msg.Progress != nil && msg.Progress.String() != "" {
				line += " " + msg.Progress.String()
			}
			ctx.Logger.V(3).Infof("%s", line)
		case msg.Status != "":
			ctx.Logger.V(3).Infof("%s", msg.Status)
		}
	}
}

// RunConfig describes a single container run.
type RunConfig struct {
	Image string
	Cmd   []string
	Env   []string

	// Binds lists host:container[:mode] volume binds.
	Binds []string

	// Network sets the container network mode, e.g. "host".
	Network string

	// ExtraHosts lists host:ip entries, e.g. "host.docker.internal:host-gateway".
	ExtraHosts []string

	// Ports maps container ports to host ports, e.g. "8000/tcp" -> "8000".
	Ports map[string]string

	// Name overrides the generated container name.
	Name string
}

func (cfg RunConfig) containerName() string {
	if cfg.Name != "" {
		return cfg.Name
	}
	return fmt.Sprintf("quik-tracy-%s", uuid.NewString()[:8])
}

func (cfg RunConfig) spec() (*container.Config, *container.HostConfig, error) {
	config := &container.Config{
		Image: cfg.Image,
		Cmd:   strslice.StrSlice(cfg.Cmd),
		Env:   cfg.Env,
	}
	hostConfig := &container.HostConfig{
		Binds:       cfg.Binds,
		NetworkMode: container.NetworkMode(cfg.Network),
		ExtraHosts:  cfg.ExtraHosts,
	}

	if len(cfg.Ports) != 0 {
		config.ExposedPorts = nat.PortSet{}
		hostConfig.PortBindings = nat.PortMap{}
		for containerPort, hostPort := range cfg.Ports {
			proto, portNum := nat.SplitProtoPort(containerPort)
			port, err := nat.NewPort(proto, portNum)
			if err != nil {
				return nil, nil, err
			}

			config.ExposedPorts[port] = struct{}{}
			hostConfig.PortBindings[port] = []nat.PortBinding{{HostIP: "0.0.0.0", HostPort: hostPort}}
		}
	}

	return config, hostConfig, nil
}

type RunResult struct {
	ContainerID string `json:"containerID"`
	ExitCode    int64  `json:"exitCode"`
	Stdout      string `json:"stdout"`
	Stderr      string `json:"stderr"`
}

// Run starts a container, waits for it to exit, and returns its output. The
// container is force removed afterwards, even when the context is canceled
// mid-run.
func (c *Client) Run(ctx context.Context, cfg RunConfig) (*RunResult, error) {
	config, hostConfig, err := cfg.spec()
	if err != nil {
		return nil, ctx.Oops().With("image", cfg.Image).Wrap(err)
	}

	name := cfg.containerName()
	created, err := c.api.ContainerCreate(ctx, config, hostConfig, nil, nil, name)
	if err != nil {
		return nil, ctx.Oops().With("image", cfg.Image, "container", name).Wrapf(err, "failed to create container")
	}

	result := &RunResult{ContainerID: created.ID}
	defer func() {
		if err := c.api.ContainerRemove(gocontext.WithoutCancel(ctx), created.ID, container.RemoveOptions{Force: true}); err != nil {
			ctx.Logger.Warnf("failed to remove container %s: %v", name, err)
		}
	}()

	if err := c.api.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return result, ctx.Oops().With("image", cfg.Image, "container", name).Wrapf(err, "failed to start container")
	}

	ctx.Logger.V(3).Infof("started container %s from %s", name, cfg.Image)

	statusCh, errCh := c.api.ContainerWait(ctx, created.ID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		c.collectLogs(ctx, created.ID, result)
		if ctx.Err() == gocontext.DeadlineExceeded {
			return result, ctx.Oops().With("image", cfg.Image, "container", name).Code("timeout").Wrapf(err, "%s timed out", cfg.Image)
		}
		return result, ctx.Oops().With("image", cfg.Image, "container", name).Wrapf(err, "failed waiting for container")
	case status := <-statusCh:
		result.ExitCode = status.StatusCode
	}

	c.collectLogs(ctx, created.ID, result)

	if result.ExitCode != 0 {
		return result, ctx.Oops().With(
			"image", cfg.Image,
			"container", name,
			"stderr", result.Stderr,
			"stdout", result.Stdout,
			"exit-code", result.ExitCode,
		).Code(fmt.Sprintf("exited with %d", result.ExitCode)).Errorf("%s exited with %d", cfg.Image, result.ExitCode)
	}

	return result, nil
}

// RunDetached starts a container and returns its id without waiting.
// AutoRemove is set so the engine cleans up once the container stops.
func (c *Client) RunDetached(ctx context.Context, cfg RunConfig) (string, error) {
	config, hostConfig, err := cfg.spec()
	if err != nil {
		return "", ctx.Oops().With("image", cfg.Image).Wrap(err)
	}
	hostConfig.AutoRemove = true

	name := cfg.containerName()
	created, err := c.api.ContainerCreate(ctx, config, hostConfig, nil, nil, name)
	if err != nil {
		return "", ctx.Oops().With("image", cfg.Image, "container", name).Wrapf(err, "failed to create container")
	}

	if err := c.api.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return "", ctx.Oops().With("image", cfg.Image, "container", name).Wrapf(err, "failed to start container")
	}

	ctx.Logger.V(3).Infof("started container %s from %s in background", name, cfg.Image)
	return created.ID, nil
}

// collectLogs demuxes the container's log stream into the result. Logs are
// fetched on a detached context so they survive a canceled run.
func (c *Client) collectLogs(ctx context.Context, id string, result *RunResult) {
	reader, err := c.api.ContainerLogs(gocontext.WithoutCancel(ctx), id, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		ctx.Logger.V(3).Infof("failed to read container logs: %v", err)
		return
	}
	defer reader.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, reader); err != nil {
		ctx.Logger.V(3).Infof("failed to demux container logs: %v", err)
	}

	result.Stdout = strings.TrimSpace(stdout.String())
	result.Stderr = strings.TrimSpace(stderr.String())
}
