package cleanup

import (
	"errors"
	"time"

	"project-cleanup/internal/targets"
)

// Outcome is the category a processed target ends up in.
type Outcome string

const (
	OutcomeRemoved Outcome = "removed"
	OutcomeAbsent  Outcome = "absent"
	OutcomeError   Outcome = "error"
)

// ErrKindMismatch is reported when a target exists but is not the kind of
// filesystem entry it was configured as.
var ErrKindMismatch = errors.New("path type does not match target kind")

// Result is the outcome of processing one target
type Result struct {
	Target  targets.Target
	Path    string
	Outcome Outcome
	Size    int64 // Bytes of regular files removed, best effort
	Err     error // Set only for OutcomeError
	At      time.Time
}

// Report is the ordered list of results of one cleanup pass
type Report struct {
	Root       string
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []Result
}

// Count returns how many results have the given outcome
func (r *Report) Count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

func (r *Report) Removed() int { return r.Count(OutcomeRemoved) }
func (r *Report) Absent() int  { return r.Count(OutcomeAbsent) }
func (r *Report) Failed() int  { return r.Count(OutcomeError) }

// BytesFreed sums the sizes of removed targets
func (r *Report) BytesFreed() int64 {
	var total int64
	for _, res := range r.Results {
		if res.Outcome == OutcomeRemoved {
			total += res.Size
		}
	}
	return total
}

func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
