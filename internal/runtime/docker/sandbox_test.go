package docker

import (
	"context"
	"strings"
	"testing"

	"github.com/docker/docker/api/types/container"
	"github.com/rs/zerolog"

	"harness/internal/domain/execution"
	runtimex "harness/internal/runtime"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestNewSandboxRequiresImage(t *testing.T) {
	t.Parallel()

	_, err := newSandboxWithClient(newFakeDockerClient(), Config{
		Languages: map[execution.Language]LanguageConfig{execution.LanguagePython: {}},
	})
	if err == nil || !strings.Contains(err.Error(), "missing image") {
		t.Fatalf("expected missing image error, got %v", err)
	}
}

func TestSandboxRejectsUnconfiguredLanguage(t *testing.T) {
	t.Parallel()

	sandbox, err := newSandboxWithClient(newFakeDockerClient(), Config{
		Languages: map[execution.Language]LanguageConfig{execution.LanguagePython: {Image: "python:3.12-alpine"}},
	})
	if err != nil {
		t.Fatalf("newSandboxWithClient returned error: %v", err)
	}

	_, err = sandbox.Run(context.Background(), runtimex.Job{Language: execution.LanguageSwift})
	if err == nil || !strings.Contains(err.Error(), "swift") {
		t.Fatalf("expected error naming the language, got %v", err)
	}
}

func TestSandboxPullsImageOnce(t *testing.T) {
	t.Parallel()

	client := newFakeDockerClient()
	sandbox, err := newSandboxWithClient(client, Config{
		Languages: map[execution.Language]LanguageConfig{
			execution.LanguagePython: {Image: "python:3.12-alpine"},
			execution.LanguageRust:   {Image: "rust:1.80"},
		},
	})
	if err != nil {
		t.Fatalf("newSandboxWithClient returned error: %v", err)
	}

	succeed := func(id string) {
		client.setWaitSequence(id, waitCall{status: &container.WaitResponse{StatusCode: 0}})
		client.setInspect(id, runningState(false))
	}
	client.onCreate(succeed)
	client.onCreate(succeed)

	for i := 0; i < 2; i++ {
		result, err := sandbox.Run(context.Background(), runtimex.Job{Language: execution.LanguagePython, Command: []string{"true"}})
		if err != nil {
			t.Fatalf("run %d returned error: %v", i, err)
		}
		if result.Status != execution.StatusOK {
			t.Fatalf("run %d: expected OK, got %q", i, result.Status)
		}
	}

	pulls := client.pulls()
	if len(pulls) != 1 || pulls[0] != "python:3.12-alpine" {
		t.Fatalf("expected a single pull of the python image, got %v", pulls)
	}

	creates := client.creates()
	if creates[0].config.Image != "python:3.12-alpine" || creates[0].config.WorkingDir != defaultWorkdir {
		t.Fatalf("unexpected container config %+v", creates[0].config)
	}

	langs := sandbox.Languages()
	if len(langs) != 2 || langs[0] != execution.LanguagePython || langs[1] != execution.LanguageRust {
		t.Fatalf("unexpected languages %v", langs)
	}
}

func TestSandboxCloseClosesClient(t *testing.T) {
	t.Parallel()

	client := newFakeDockerClient()
	sandbox, err := newSandboxWithClient(client, Config{
		Languages: map[execution.Language]LanguageConfig{execution.LanguagePython: {Image: "python:3.12-alpine"}},
	})
	if err != nil {
		t.Fatalf("newSandboxWithClient returned error: %v", err)
	}

	if err := sandbox.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if !client.closed {
		t.Fatalf("expected docker client to be closed")
	}
}
