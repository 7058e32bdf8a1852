package execution

import (
	"encoding/json"
	"time"
)

// Result captures the outcome of running one sandboxed process.
type Result struct {
	Status    Status
	Stdout    string
	Stderr    string
	ExitCode  int64
	Duration  time.Duration
	Artifact  []byte
	Truncated bool
}

// TestResult is the caller-facing outcome for one test case.
type TestResult struct {
	Description string
	Passed      bool
	// Error is empty when the case passed and is encoded as JSON null.
	Error string
}

type testResultJSON struct {
	Description string  `json:"description"`
	Passed      bool    `json:"passed"`
	Error       *string `json:"error"`
}

func (r TestResult) MarshalJSON() ([]byte, error) {
	wire := testResultJSON{Description: r.Description, Passed: r.Passed}
	if r.Error != "" {
		msg := r.Error
		wire.Error = &msg
	}
	return json.Marshal(wire)
}

func (r *TestResult) UnmarshalJSON(data []byte) error {
	var wire testResultJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	r.Description = wire.Description
	r.Passed = wire.Passed
	r.Error = ""
	if wire.Error != nil {
		r.Error = *wire.Error
	}
	return nil
}

// FailAll reports every case as failed with the same message.
func FailAll(cases []TestCase, message string) []TestResult {
	results := make([]TestResult, len(cases))
	for i, tc := range cases {
		results[i] = TestResult{Description: tc.Description, Error: message}
	}
	return results
}

// Summary is the ordered result list plus the overall verdict.
type Summary struct {
	Results   []TestResult `json:"results"`
	AllPassed bool         `json:"allPassed"`
}

// Summarize computes the overall verdict. An empty result list never passes.
func Summarize(results []TestResult) Summary {
	if results == nil {
		results = []TestResult{}
	}
	allPassed := len(results) > 0
	for _, r := range results {
		if !r.Passed {
			allPassed = false
			break
		}
	}
	return Summary{Results: results, AllPassed: allPassed}
}
