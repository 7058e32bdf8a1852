package docker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	typesimage "github.com/docker/docker/api/types/image"
	"github.com/rs/zerolog"

	"harness/internal/domain/execution"
	runtimex "harness/internal/runtime"
)

type containerEngine struct {
	cli           dockerClient
	defaultLimits execution.Budget
	pidsLimit     int64
	nanoCPUs      int64
	logger        zerolog.Logger
}

func newContainerEngine(cli dockerClient, cfg Config, logger zerolog.Logger) *containerEngine {
	engine := &containerEngine{
		cli:           cli,
		defaultLimits: cfg.DefaultLimits.Merge(execution.DefaultBudget()),
		pidsLimit:     cfg.PidsLimit,
		nanoCPUs:      cfg.NanoCPUs,
		logger:        logger,
	}
	if engine.pidsLimit <= 0 {
		engine.pidsLimit = defaultPidsLimit
	}
	if engine.nanoCPUs <= 0 {
		engine.nanoCPUs = defaultNanoCPUs
	}
	return engine
}

// ensureImage pulls ref unless the daemon already has it.
func (c *containerEngine) ensureImage(ctx context.Context, ref string) error {
	if _, _, err := c.cli.ImageInspectWithRaw(ctx, ref); err == nil {
		return nil
	}

	c.logger.Info().Str("image", ref).Msg("pulling docker image")
	reader, err := c.cli.ImagePull(ctx, ref, typesimage.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", ref, err)
	}
	defer reader.Close()
	_, err = io.Copy(io.Discard, reader)
	if err != nil {
		return fmt.Errorf("consume pull output for %s: %w", ref, err)
	}
	return nil
}

func (c *containerEngine) effectiveLimits(request execution.Budget) execution.Budget {
	return request.Merge(c.defaultLimits)
}

func (c *containerEngine) runJob(ctx context.Context, runtime *languageRuntime, job runtimex.Job) (*execution.Result, error) {
	limits := c.effectiveLimits(job.Limits)
	attachStdin := job.Stdin != ""

	containerID, cleanup, err := c.createContainer(ctx, runtime, limits, job.Command, attachStdin)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	if err := c.copyFiles(ctx, containerID, runtime.config.Workdir, job.Files); err != nil {
		return nil, fmt.Errorf("copy files: %w", err)
	}

	var attach types.HijackedResponse
	if attachStdin {
		attach, err = c.cli.ContainerAttach(ctx, containerID, container.AttachOptions{
			Stream: true,
			Stdin:  true,
		})
		if err != nil {
			return nil, fmt.Errorf("attach container: %w", err)
		}
		if attach.Conn != nil {
			defer attach.Close()
		}
	}

	start := time.Now()
	if err := c.cli.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("start container: %w", err)
	}

	if attachStdin && attach.Conn != nil {
		if _, err := io.Copy(attach.Conn, strings.NewReader(job.Stdin)); err != nil {
			return nil, fmt.Errorf("write stdin: %w", err)
		}
		if closer, ok := attach.Conn.(interface{ CloseWrite() error }); ok {
			_ = closer.CloseWrite()
		}
	}

	waitCtx, cancel := context.WithTimeout(ctx, limits.TimeLimit)
	status, err := c.waitForExit(waitCtx, containerID)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return c.handleTimeLimit(containerID, runtime.config.Workdir, limits, start)
		}
		return nil, err
	}
	duration := time.Since(start)

	// The caller may have given up while we waited; the container still has
	// to be inspected and drained before cleanup.
	inspectCtx := ctx
	if inspectCtx.Err() != nil {
		inspectCtx = context.Background()
	}

	inspect, err := c.cli.ContainerInspect(inspectCtx, containerID)
	if err != nil {
		return nil, fmt.Errorf("inspect container: %w", err)
	}

	result, err := c.collectOutput(inspectCtx, containerID, runtime.config.Workdir, limits)
	if err != nil {
		return nil, fmt.Errorf("fetch logs: %w", err)
	}
	result.ExitCode = status.StatusCode
	result.Duration = duration

	if inspect.ContainerJSONBase != nil && inspect.State != nil && inspect.State.OOMKilled {
		result.Status = execution.StatusMemoryLimit
	}

	if job.Collect != "" && result.Status == execution.StatusOK && result.ExitCode == 0 {
		artifact, err := c.copyFileFromContainer(inspectCtx, containerID, path.Join(runtime.config.Workdir, job.Collect))
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", job.Collect, err)
		}
		result.Artifact = artifact
	}

	return result, nil
}

func (c *containerEngine) createContainer(ctx context.Context, runtime *languageRuntime, limits execution.Budget, cmd []string, attachStdin bool) (string, func(), error) {
	pidsLimit := c.pidsLimit
	hostConfig := &container.HostConfig{
		Resources: container.Resources{
			NanoCPUs:  c.nanoCPUs,
			PidsLimit: &pidsLimit,
		},
		NetworkMode: "none",
		SecurityOpt: []string{"no-new-privileges"},
		CapDrop:     []string{"ALL"},
	}
	if limits.MemoryLimitBytes > 0 {
		hostConfig.Resources.Memory = limits.MemoryLimitBytes
		hostConfig.Resources.MemorySwap = limits.MemoryLimitBytes
	}

	resp, err := c.cli.ContainerCreate(
		ctx,
		&container.Config{
			Image:           runtime.config.Image,
			Cmd:             cmd,
			AttachStdout:    true,
			AttachStderr:    true,
			AttachStdin:     attachStdin,
			OpenStdin:       attachStdin,
			StdinOnce:       attachStdin,
			NetworkDisabled: true,
			WorkingDir:      runtime.config.Workdir,
		},
		hostConfig,
		nil,
		nil,
		"",
	)
	if err != nil {
		return "", nil, fmt.Errorf("create container: %w", err)
	}

	cleanup := func() {
		_ = c.cli.ContainerRemove(context.Background(), resp.ID, container.RemoveOptions{Force: true})
	}

	return resp.ID, cleanup, nil
}
