// Package exitcodes defines the exit codes op-rpreporter terminates with.
package exitcodes

// Exit code constants used by op-rpreporter:
//
// * Success (0): the run was reported and the launch did not fail
// * TestFailure (1): the reported launch finished FAILED
// * RuntimeErr (2): the run could not be reported, e.g. an unreadable event log
const (
	Success     = 0 // Launch passed or was left to its owner
	TestFailure = 1 // Launch finished FAILED
	RuntimeErr  = 2 // Runtime errors or malformed input
)
