package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
)

func TestEnvOrDefault(t *testing.T) {
	const key = "HARNESS_TEST_ENV"
	const fallback = "fallback"

	if got := envOrDefault(key, fallback); got != fallback {
		t.Fatalf("expected fallback when env unset, got %q", got)
	}

	t.Setenv(key, "value")
	if got := envOrDefault(key, fallback); got != "value" {
		t.Fatalf("expected env value, got %q", got)
	}
}

func TestParseBrokerList(t *testing.T) {
	input := " broker1:9092 , ,broker2:9093 ,"
	brokers := parseBrokerList(input)
	want := []string{"broker1:9092", "broker2:9093"}
	if len(brokers) != len(want) {
		t.Fatalf("expected %d brokers, got %d", len(want), len(brokers))
	}
	for i := range want {
		if brokers[i] != want[i] {
			t.Fatalf("unexpected broker at index %d: got %q want %q", i, brokers[i], want[i])
		}
	}
}

func TestParseMaxRequests(t *testing.T) {
	cases := map[string]int{
		"":   0,
		"-1": 0,
		"x":  0,
		"5":  5,
	}

	for input, want := range cases {
		if got := parseMaxRequests(input); got != want {
			t.Fatalf("parseMaxRequests(%q) = %d, want %d", input, got, want)
		}
	}
}

func TestParseMaxParallel(t *testing.T) {
	cases := []struct {
		input string
		want  int
	}{
		{"", 1},
		{"not-a-number", 1},
		{"0", 1},
		{"-5", 1},
		{"3", 3},
	}

	for _, tc := range cases {
		if got := parseMaxParallel(tc.input); got != tc.want {
			t.Fatalf("parseMaxParallel(%q) = %d, want %d", tc.input, got, tc.want)
		}
	}
}

func TestParseBytes(t *testing.T) {
	cases := map[string]int64{
		"":     0,
		"x":    0,
		"-4":   0,
		"1024": 1024,
		"64k":  64 << 10,
		"256M": 256 << 20,
		"1g":   1 << 30,
	}

	for input, want := range cases {
		if got := parseBytes(input); got != want {
			t.Fatalf("parseBytes(%q) = %d, want %d", input, got, want)
		}
	}
}

func TestLoadAppConfig(t *testing.T) {
	t.Setenv("HARNESS_SANDBOX", "local")
	t.Setenv("HARNESS_TIME_LIMIT", "3s")
	t.Setenv("HARNESS_MEMORY_LIMIT", "128m")
	t.Setenv("KAFKA_BROKERS", "a:1,b:2")
	t.Setenv("REQUEST_EXPECTED", "7")

	cfg := loadAppConfig()
	if cfg.Sandbox != "local" {
		t.Fatalf("unexpected sandbox %q", cfg.Sandbox)
	}
	if cfg.Limits.TimeLimit != 3*time.Second {
		t.Fatalf("unexpected time limit %s", cfg.Limits.TimeLimit)
	}
	if cfg.Limits.MemoryLimitBytes != 128<<20 {
		t.Fatalf("unexpected memory limit %d", cfg.Limits.MemoryLimitBytes)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.MaxRequests != 7 {
		t.Fatalf("unexpected kafka settings: %+v", cfg)
	}
	if cfg.ResultsTopic != defaultKafkaResultsTopic {
		t.Fatalf("expected default results topic, got %q", cfg.ResultsTopic)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger("debug", "json", &buf)
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	logger.Debug().Str("k", "v").Msg("hello")
	if !strings.Contains(buf.String(), `"k":"v"`) {
		t.Fatalf("expected JSON output, got %q", buf.String())
	}

	logger, err = newLogger("", "console", &buf)
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	if logger.GetLevel() != zerolog.InfoLevel {
		t.Fatalf("expected info level by default, got %s", logger.GetLevel())
	}

	if _, err := newLogger("loud", "json", &buf); err == nil {
		t.Fatal("expected error for unknown level")
	}
	if _, err := newLogger("info", "xml", &buf); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const addSuite = `
language: javascript
entryPoint: add
cases:
  - description: adds small numbers
    arguments: [2, 3]
    expected: 5
  - description: adds negatives
    arguments: [-2, -3]
    expected: -5
`

func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true

	root := newRootCommand(appConfig{Sandbox: "none", MaxParallel: 1})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRunCommandPasses(t *testing.T) {
	dir := t.TempDir()
	code := writeFile(t, dir, "add.js", "function add(a, b) { return a + b }\n")
	suite := writeFile(t, dir, "add.yaml", addSuite)

	out, err := executeRoot(t, "run", "--code", code, suite)
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "PASS adds small numbers") || !strings.Contains(out, "2 passed, 0 failed") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestRunCommandFailsWithExitCode(t *testing.T) {
	dir := t.TempDir()
	code := writeFile(t, dir, "add.js", "function add(a, b) { return a - b }\n")
	suite := writeFile(t, dir, "add.yaml", addSuite)

	out, err := executeRoot(t, "run", "--code", code, suite)
	var exitErr exitCodeError
	if !errors.As(err, &exitErr) || exitErr.code != 1 {
		t.Fatalf("expected exit code 1, got %v", err)
	}
	if !strings.Contains(out, "FAIL adds small numbers: expected 5, got -1") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestRunCommandJSON(t *testing.T) {
	dir := t.TempDir()
	code := writeFile(t, dir, "add.py", "def add(a, b):\n    return a + b\n")
	suite := writeFile(t, dir, "add.yaml", addSuite)

	out, err := executeRoot(t, "run", "--lang", "py", "--code", code, "--json", suite)
	var exitErr exitCodeError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected failing exit code, got %v", err)
	}

	var reports []struct {
		Suite     string `json:"suite"`
		Language  string `json:"language"`
		AllPassed bool   `json:"allPassed"`
		Results   []struct {
			Passed bool   `json:"passed"`
			Error  string `json:"error"`
		} `json:"results"`
	}
	if err := json.Unmarshal([]byte(out), &reports); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if len(reports) != 1 || reports[0].Language != "python" || reports[0].AllPassed {
		t.Fatalf("unexpected reports: %+v", reports)
	}
	for _, r := range reports[0].Results {
		if r.Error != "unsupported language: python" {
			t.Fatalf("unexpected error %q", r.Error)
		}
	}
}

func TestRunCommandRequiresLanguage(t *testing.T) {
	dir := t.TempDir()
	code := writeFile(t, dir, "add.js", "function add(a, b) { return a + b }\n")
	suite := writeFile(t, dir, "add.yaml", "entryPoint: add\ncases:\n  - arguments: [1, 2]\n    expected: 3\n")

	_, err := executeRoot(t, "run", "--code", code, suite)
	if err == nil || !strings.Contains(err.Error(), "no language given") {
		t.Fatalf("expected missing language error, got %v", err)
	}
}

func TestLanguagesCommand(t *testing.T) {
	out, err := executeRoot(t, "languages")
	if err != nil {
		t.Fatalf("languages failed: %v", err)
	}
	if strings.TrimSpace(out) != "javascript" {
		t.Fatalf("unexpected languages output %q", out)
	}
}

func TestUnknownSandboxIsRejected(t *testing.T) {
	_, err := executeRoot(t, "--sandbox", "vm", "languages")
	if err == nil || !strings.Contains(err.Error(), "unknown sandbox") {
		t.Fatalf("expected unknown sandbox error, got %v", err)
	}
}

func TestRunCommandSimulatorSubmissions(t *testing.T) {
	const dir = "../../simulator"

	out, err := executeRoot(t, "run", "--lang", "js",
		"--code", filepath.Join(dir, "submissions/javascript/ok.js"),
		filepath.Join(dir, "suites/sum.yaml"),
		filepath.Join(dir, "suites/stats.yaml"))
	if err != nil {
		t.Fatalf("ok submission failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "7 passed, 0 failed") {
		t.Fatalf("unexpected output:\n%s", out)
	}

	out, err = executeRoot(t, "run", "--lang", "js", "--time-limit", "200ms",
		"--code", filepath.Join(dir, "submissions/javascript/tle.js"),
		filepath.Join(dir, "suites/sum.yaml"))
	if err == nil {
		t.Fatal("expected the looping submission to fail")
	}
	if strings.Count(out, "execution timed out") != 4 {
		t.Fatalf("expected every case to time out:\n%s", out)
	}
}
