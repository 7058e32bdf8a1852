package main

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"harness/internal/domain/execution"
	"harness/internal/runtime/docker"
)

const (
	containerWorkdir = "/workspace"

	pythonDockerImage = "python:3.12-alpine"
	rustDockerImage   = "rust:1.80-slim"
	kotlinDockerImage = "zenika/kotlin:1.9"
	swiftDockerImage  = "swift:5.10"

	defaultSandbox           = "docker"
	defaultAddr              = ":8080"
	defaultKafkaBrokers      = "kafka:9092"
	defaultKafkaTopic        = "requests"
	defaultKafkaResultsTopic = "results"
	defaultKafkaGroupID      = "harness-runner"
)

type appConfig struct {
	Sandbox      string
	LocalRoot    string
	Limits       execution.Budget
	Addr         string
	RateLimit    float64
	KafkaBrokers []string
	RequestTopic string
	ResultsTopic string
	GroupID      string
	Compression  string
	MaxRequests  int
	MaxParallel  int
}

// loadDotEnv populates the environment from a .env file when one exists.
// Variables that are already set win.
func loadDotEnv() {
	_ = godotenv.Load()
}

func loadAppConfig() appConfig {
	return appConfig{
		Sandbox:   envOrDefault("HARNESS_SANDBOX", defaultSandbox),
		LocalRoot: os.Getenv("HARNESS_LOCAL_ROOT"),
		Limits: execution.Budget{
			TimeLimit:        parseDuration(os.Getenv("HARNESS_TIME_LIMIT"), 0),
			MemoryLimitBytes: parseBytes(os.Getenv("HARNESS_MEMORY_LIMIT")),
			OutputLimitBytes: parseBytes(os.Getenv("HARNESS_OUTPUT_LIMIT")),
			CompileTimeLimit: parseDuration(os.Getenv("HARNESS_COMPILE_TIME_LIMIT"), 0),
		},
		Addr:         envOrDefault("HARNESS_ADDR", defaultAddr),
		RateLimit:    parseRate(os.Getenv("HARNESS_RATE_LIMIT")),
		KafkaBrokers: parseBrokerList(envOrDefault("KAFKA_BROKERS", defaultKafkaBrokers)),
		RequestTopic: envOrDefault("KAFKA_TOPIC", defaultKafkaTopic),
		ResultsTopic: envOrDefault("KAFKA_RESULTS_TOPIC", defaultKafkaResultsTopic),
		GroupID:      envOrDefault("KAFKA_GROUP_ID", defaultKafkaGroupID),
		Compression:  os.Getenv("KAFKA_COMPRESSION"),
		MaxRequests:  parseMaxRequests(os.Getenv("REQUEST_EXPECTED")),
		MaxParallel:  parseMaxParallel(os.Getenv("RUNNER_MAX_PARALLEL")),
	}
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseBrokerList(raw string) []string {
	fields := strings.Split(raw, ",")
	brokers := make([]string, 0, len(fields))
	for _, field := range fields {
		if trimmed := strings.TrimSpace(field); trimmed != "" {
			brokers = append(brokers, trimmed)
		}
	}
	return brokers
}

func parseMaxRequests(raw string) int {
	if raw == "" {
		return 0
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	if value < 0 {
		return 0
	}
	return value
}

func parseMaxParallel(raw string) int {
	if raw == "" {
		return 1
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return 1
	}
	return value
}

func dockerConfigFromEnv(limits execution.Budget) docker.Config {
	return docker.Config{
		Languages: map[execution.Language]docker.LanguageConfig{
			execution.LanguagePython: {
				Image:   envOrDefault("PYTHON_IMAGE", pythonDockerImage),
				Workdir: envOrDefault("PYTHON_WORKDIR", containerWorkdir),
			},
			execution.LanguageRust: {
				Image:   envOrDefault("RUST_IMAGE", rustDockerImage),
				Workdir: envOrDefault("RUST_WORKDIR", containerWorkdir),
			},
			execution.LanguageKotlin: {
				Image:   envOrDefault("KOTLIN_IMAGE", kotlinDockerImage),
				Workdir: envOrDefault("KOTLIN_WORKDIR", containerWorkdir),
			},
			execution.LanguageSwift: {
				Image:   envOrDefault("SWIFT_IMAGE", swiftDockerImage),
				Workdir: envOrDefault("SWIFT_WORKDIR", containerWorkdir),
			},
		},
		DefaultLimits: limits,
	}
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

// parseBytes accepts a plain byte count or one suffixed with k, m or g
// (powers of 1024).
func parseBytes(raw string) int64 {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" {
		return 0
	}

	multiplier := int64(1)
	switch {
	case strings.HasSuffix(raw, "k"):
		multiplier = 1 << 10
	case strings.HasSuffix(raw, "m"):
		multiplier = 1 << 20
	case strings.HasSuffix(raw, "g"):
		multiplier = 1 << 30
	}
	if multiplier > 1 {
		raw = raw[:len(raw)-1]
	}

	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value < 0 {
		return 0
	}
	return value * multiplier
}

func parseRate(raw string) float64 {
	if raw == "" {
		return 0
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || value < 0 {
		return 0
	}
	return value
}
