package exitcodes

// Exit codes for project-cleanup.
// Per-target failures never change the exit code; only the process-level
// failures below do.
const (
	Success       = 0 // Cleanup pass completed, whatever the per-target outcomes
	InvalidConfig = 2 // Command-line options invalid
	RuntimeError  = 4 // Working directory could not be resolved
)
