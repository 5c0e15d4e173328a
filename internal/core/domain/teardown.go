package domain

import "fmt"

// TeardownOutcome classifies the result of a single teardown call.
type TeardownOutcome int

const (
	TeardownTornDown TeardownOutcome = iota
	TeardownAlreadyAbsent
	TeardownFailed
)

func (o TeardownOutcome) String() string {
	switch o {
	case TeardownTornDown:
		return "torn-down"
	case TeardownAlreadyAbsent:
		return "already-absent"
	case TeardownFailed:
		return "failed"
	default:
		return fmt.Sprintf("TeardownOutcome(%d)", int(o))
	}
}

// TeardownResult is returned by every destructive call made during cleanup.
// Torn-down and already-absent both mean the target is in its desired state.
type TeardownResult struct {
	Target  string
	Outcome TeardownOutcome
	Err     error
}

// TornDown returns a successful result for target.
func TornDown(target string) TeardownResult {
	return TeardownResult{Target: target, Outcome: TeardownTornDown}
}

// AlreadyAbsent returns a result for a target that did not exist.
func AlreadyAbsent(target string) TeardownResult {
	return TeardownResult{Target: target, Outcome: TeardownAlreadyAbsent}
}

// TeardownError returns a failed result carrying err.
func TeardownError(target string, err error) TeardownResult {
	return TeardownResult{Target: target, Outcome: TeardownFailed, Err: err}
}

// OK is true unless the teardown failed.
func (r TeardownResult) OK() bool {
	return r.Outcome != TeardownFailed
}

// Error returns a wrapped error for failed results and nil otherwise.
func (r TeardownResult) Error() error {
	if r.OK() {
		return nil
	}
	if r.Err == nil {
		return fmt.Errorf("teardown %s failed", r.Target)
	}
	return fmt.Errorf("teardown %s: %w", r.Target, r.Err)
}
