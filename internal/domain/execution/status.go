package execution

// Status describes how a sandboxed process finished.
type Status string

const (
	StatusOK          Status = "OK"
	StatusTimeLimit   Status = "TIME_LIMIT_EXCEEDED"
	StatusMemoryLimit Status = "MEMORY_LIMIT_EXCEEDED"
)
