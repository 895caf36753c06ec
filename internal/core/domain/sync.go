package domain

import "time"

// SyncRun records the outcome of one sync run.
type SyncRun struct {
	// ID uniquely identifies the run.
	ID string `json:"id"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Unchanged lists documents skipped by fingerprint.
	Unchanged []string `json:"unchanged,omitempty"`

	// Added lists documents with no prior report.
	Added []string `json:"added,omitempty"`

	// Changed lists documents whose fingerprint differed.
	Changed []string `json:"changed,omitempty"`

	// Removed lists reports deleted because their file left the corpus.
	Removed []string `json:"removed,omitempty"`

	// Failed maps document names to the error that skipped them this run.
	Failed map[string]string `json:"failed,omitempty"`

	// Rebuilt is true when chunks, tables and vectors were all regenerated.
	Rebuilt bool `json:"rebuilt"`

	// RebuildPending is true while derived data is out of step with the
	// reports: set when a rebuild is owed, cleared once it completes. A run
	// saved with it set makes the next sync rebuild even if nothing changed.
	RebuildPending bool `json:"rebuild_pending,omitempty"`

	Chunks  int `json:"chunks"`
	Tables  int `json:"tables"`
	Vectors int `json:"vectors"`
}

// Dirty reports whether any document was added, changed or removed.
func (r *SyncRun) Dirty() bool {
	return len(r.Added) > 0 || len(r.Changed) > 0 || len(r.Removed) > 0
}

// Duration returns how long the run took.
func (r *SyncRun) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
