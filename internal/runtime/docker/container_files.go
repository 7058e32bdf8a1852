package docker

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/pkg/stdcopy"

	"harness/internal/domain/execution"
	runtimex "harness/internal/runtime"
	"harness/internal/runtime/governor"
)

func (c *containerEngine) copyFiles(ctx context.Context, containerID, workdir string, files []runtimex.File) error {
	if len(files) == 0 {
		return nil
	}

	reader, err := makeArchive(files)
	if err != nil {
		return err
	}

	return c.cli.CopyToContainer(ctx, containerID, workdir, reader, container.CopyToContainerOptions{AllowOverwriteDirWithFile: true})
}

// maxArtifactBytes bounds what is read back from a container.
const maxArtifactBytes = 512 << 20

// makeArchive packs files into a tar stream rooted at the workdir. Parent
// directories of nested names get their own entries.
func makeArchive(files []runtimex.File) (io.Reader, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	now := time.Now()
	dirs := make(map[string]struct{})
	for _, file := range files {
		for dir := path.Dir(file.Name); dir != "." && dir != "/"; dir = path.Dir(dir) {
			if _, seen := dirs[dir]; seen {
				break
			}
			dirs[dir] = struct{}{}
			if err := tw.WriteHeader(&tar.Header{
				Typeflag: tar.TypeDir,
				Name:     dir + "/",
				Mode:     0o755,
				ModTime:  now,
			}); err != nil {
				return nil, fmt.Errorf("write tar header: %w", err)
			}
		}

		mode := file.Mode
		if mode == 0 {
			mode = 0o644
		}
		if err := tw.WriteHeader(&tar.Header{
			Typeflag: tar.TypeReg,
			Name:     file.Name,
			Mode:     mode,
			Size:     int64(len(file.Data)),
			ModTime:  now,
		}); err != nil {
			return nil, fmt.Errorf("write tar header: %w", err)
		}
		if _, err := tw.Write(file.Data); err != nil {
			return nil, fmt.Errorf("write tar contents: %w", err)
		}
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("close tar writer: %w", err)
	}
	return &buf, nil
}

// copyFileFromContainer returns the first regular file of the archive Docker
// produces for sourcePath.
func (c *containerEngine) copyFileFromContainer(ctx context.Context, containerID, sourcePath string) ([]byte, error) {
	reader, stat, err := c.cli.CopyFromContainer(ctx, containerID, sourcePath)
	if err != nil {
		return nil, fmt.Errorf("copy from container: %w", err)
	}
	defer reader.Close()

	if stat.Size > maxArtifactBytes {
		return nil, fmt.Errorf("artifact %s is %d bytes, above the %d byte cap", sourcePath, stat.Size, maxArtifactBytes)
	}

	tr := tar.NewReader(reader)
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("file %s not found in container archive", sourcePath)
		}
		if err != nil {
			return nil, fmt.Errorf("read tar: %w", err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}

		data, err := io.ReadAll(io.LimitReader(tr, maxArtifactBytes))
		if err != nil {
			return nil, fmt.Errorf("read file contents: %w", err)
		}
		return data, nil
	}
}

func (c *containerEngine) handleTimeLimit(containerID, workdir string, limits execution.Budget, start time.Time) (*execution.Result, error) {
	stopCtx, cancelStop := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelStop()

	timeout := 0
	if err := c.cli.ContainerStop(stopCtx, containerID, container.StopOptions{Timeout: &timeout}); err != nil && !cerrdefs.IsNotFound(err) {
		return nil, fmt.Errorf("stop container after time limit: %w", err)
	}

	waitCtx, cancelWait := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelWait()

	status, waitErr := c.waitForExit(waitCtx, containerID)
	if waitErr != nil && !errors.Is(waitErr, context.DeadlineExceeded) && !cerrdefs.IsNotFound(waitErr) {
		return nil, fmt.Errorf("wait for container after time limit: %w", waitErr)
	}

	result, err := c.collectOutput(context.Background(), containerID, workdir, limits)
	if err != nil {
		return nil, fmt.Errorf("fetch logs: %w", err)
	}

	result.Status = execution.StatusTimeLimit
	result.ExitCode = -1
	if status != nil {
		result.ExitCode = status.StatusCode
	}
	result.Duration = time.Since(start)
	return result, nil
}

func (c *containerEngine) waitForExit(ctx context.Context, containerID string) (*container.WaitResponse, error) {
	statusCh, errCh := c.cli.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)
	select {
	case status := <-statusCh:
		if status.Error != nil {
			return nil, fmt.Errorf("container error: %s", status.Error.Message)
		}
		return &status, nil
	case err := <-errCh:
		return nil, fmt.Errorf("wait for container: %w", err)
	case <-ctx.Done():
		return nil, fmt.Errorf("wait for container: %w", ctx.Err())
	}
}

// collectOutput demultiplexes the container logs. Stdout keeps its head and
// stderr its tail, where drivers write their result line.
func (c *containerEngine) collectOutput(ctx context.Context, containerID, workdir string, limits execution.Budget) (*execution.Result, error) {
	logs, err := c.cli.ContainerLogs(ctx, containerID, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return nil, err
	}
	defer logs.Close()

	stdout := governor.NewLimitedBuffer(limits.OutputLimitBytes)
	stderr := governor.NewTailBuffer(limits.OutputLimitBytes)
	if _, err := stdcopy.StdCopy(stdout, stderr, logs); err != nil {
		return nil, err
	}

	return &execution.Result{
		Status:    execution.StatusOK,
		Stdout:    runtimex.ScrubPath(stdout.String(), workdir),
		Stderr:    runtimex.ScrubPath(stderr.String(), workdir),
		Truncated: stdout.Truncated() || stderr.Truncated(),
	}, nil
}
