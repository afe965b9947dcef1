package models

import "time"

// ProgressRecord tracks a user's interaction with a single lesson.
// Fields are pointers so that a partial update can distinguish "not supplied"
// from a zero value when merging.
type ProgressRecord struct {
	Notes       *string    `json:"notes,omitempty"`
	LastScore   *int       `json:"last_score,omitempty"`   // 0-100 pronunciation score
	PracticedAt *time.Time `json:"practiced_at,omitempty"`
}

// Merge applies the non-nil fields of partial on top of the record,
// leaving everything else untouched
func (r *ProgressRecord) Merge(partial ProgressRecord) {
	if partial.Notes != nil {
		r.Notes = partial.Notes
	}
	if partial.LastScore != nil {
		r.LastScore = partial.LastScore
	}
	if partial.PracticedAt != nil {
		r.PracticedAt = partial.PracticedAt
	}
}

// UserMetrics holds the per-user aggregate counters. The whole struct is
// overwritten on every award, never merged.
type UserMetrics struct {
	XP        int       `json:"xp" db:"xp"`
	Streak    int       `json:"streak" db:"streak"` // Number of scoring events, not time-windowed
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ProgressSnapshot is the full local progress document: lesson records plus
// the per-user metrics slot plus the owner marker. It is serialized as a
// single JSON value into the progress storage slot.
type ProgressSnapshot struct {
	Records map[string]ProgressRecord `json:"records"`
	Meta    map[string]UserMetrics    `json:"meta"`
	Owner   string                    `json:"owner,omitempty"` // id of the last authenticated user
}

// NewProgressSnapshot returns an empty snapshot with initialized maps
func NewProgressSnapshot() *ProgressSnapshot {
	return &ProgressSnapshot{
		Records: make(map[string]ProgressRecord),
		Meta:    make(map[string]UserMetrics),
	}
}
