package commands

import "errors"

// errConfig and errBind tag the two non-zero exit codes the CLI surface
// distinguishes (spec §6): 1 for configuration errors, 2 for bind
// failures. SIGINT exits directly with 130 from the signal handler, never
// through this path.
var (
	errConfig = errors.New("configuration error")
	errBind   = errors.New("bind failure")
)

func exitCodeFor(err error) int {
	switch {
	case errors.Is(err, errBind):
		return 2
	case errors.Is(err, errConfig):
		return 1
	default:
		return 1
	}
}
