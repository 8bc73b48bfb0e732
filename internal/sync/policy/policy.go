// Package policy implements the skip rules that let a sync run leave
// existing records untouched without calling the upstream.
package policy

import "time"

// Terminal skips records that reached a terminal state long enough ago.
type Terminal struct {
	// Threshold is the minimum age past the terminal timestamp. Zero
	// disables age based skipping.
	Threshold time.Duration
}

// Skip reports whether a record may be skipped. The age must strictly exceed
// the threshold; a record exactly at the threshold is still synced.
func (p Terminal) Skip(terminal bool, terminalAt *time.Time, fullSync bool, now time.Time) bool {
	if p.Threshold <= 0 || fullSync || !terminal || terminalAt == nil {
		return false
	}
	return now.Sub(*terminalAt) > p.Threshold
}

// Thresholds holds the per-type age thresholds.
type Thresholds struct {
	IssuesClosed        time.Duration
	MergeRequestsClosed time.Duration
	PipelinesFinished   time.Duration
	MilestonesClosed    time.Duration
}

// DefaultThresholds returns the built-in thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		IssuesClosed:        4380 * time.Hour,
		MergeRequestsClosed: 2160 * time.Hour,
		PipelinesFinished:   720 * time.Hour,
	}
}
