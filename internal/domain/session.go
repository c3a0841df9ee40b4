package domain

import (
	"context"
	"time"
)

// IterationStatus is the terminal outcome of a single transformation iteration.
type IterationStatus string

const (
	IterationCompleted IterationStatus = "completed"
	IterationModerated IterationStatus = "moderated"
	IterationError     IterationStatus = "error"
)

// ValidIterationStatus reports whether s is one of the known terminal states.
func ValidIterationStatus(s IterationStatus) bool {
	switch s {
	case IterationCompleted, IterationModerated, IterationError:
		return true
	}
	return false
}

// IterationResult records the terminal outcome of one prompt iteration. It is
// created once by the orchestrator and never mutated afterwards, except that
// Image may be filled in from ImageURL before persistence.
type IterationResult struct {
	Iteration int
	Prompt    string
	Status    IterationStatus
	ImageURL  string
	Image     []byte
	Message   string
}

// Session is the persisted record of one complete orchestration run: the
// original upload plus every iteration outcome, in order.
type Session struct {
	ID        string
	CreatedAt time.Time
	Original  []byte
	Results   []IterationResult
	Caption   string
	Concepts  []string
}

// SessionRepository is implemented by the persistence backends (Postgres and
// filesystem). Save is an idempotent upsert: re-saving an existing id
// replaces the stored record. Load returns ErrNotFound when no record exists
// for the id and ErrCorrupted when stored data cannot be decoded.
type SessionRepository interface {
	Save(ctx context.Context, session *Session) error
	Load(ctx context.Context, id string) (*Session, error)
}
