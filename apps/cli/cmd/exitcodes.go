package cmd

// Exit codes for the watchcat CLI
const (
	// ExitSuccess indicates the run resolved
	ExitSuccess = 0

	// ExitTestFailure indicates the run was rejected
	ExitTestFailure = 1

	// ExitConfigError indicates a configuration error
	ExitConfigError = 3

	// ExitRuntimeError indicates the scripting runtime could not be
	// started or broke the event protocol
	ExitRuntimeError = 4

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)
