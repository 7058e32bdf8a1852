package execution

// ExecutionRequest is one submission together with the cases to run against it.
type ExecutionRequest struct {
	ID        string     `json:"id,omitempty"`
	Language  Language   `json:"language"`
	Code      string     `json:"code"`
	TestCases []TestCase `json:"testCases"`
}

// RunReport captures the outcome of executing an ExecutionRequest.
type RunReport struct {
	Request ExecutionRequest
	Summary Summary
	Err     error
}
