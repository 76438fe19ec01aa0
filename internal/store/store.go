// Package store persists durable delegated-credential sessions. A session
// row holds the opaque handle that lets the backend re-acquire access tokens
// for a mentor without the mentor being present.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Session is a durable credential handle for one subject. SessionKey is an
// opaque secret and must never be logged in full.
type Session struct {
	ID              uuid.UUID
	SubjectEmail    string
	SubjectObjectID string
	SessionKey      string
	CreatedAt       time.Time
	LastUsedAt      time.Time
	Active          bool
}

// CreateSessionParams holds the fields needed to persist a new session from
// the interactive bootstrap flow.
type CreateSessionParams struct {
	SubjectEmail    string
	SubjectObjectID string
	SessionKey      string
}

// SessionStore is the persistence boundary for durable sessions. Lookups
// return (nil, nil) when no active session exists; that is not an error at
// this layer.
type SessionStore interface {
	// FindActiveByEmail returns the most recently created active session
	// for the given mail address, or nil when none exists.
	FindActiveByEmail(ctx context.Context, email string) (*Session, error)

	// FindActiveBySubjectID returns the most recently created active
	// session for the given opaque subject id, or nil when none exists.
	FindActiveBySubjectID(ctx context.Context, subjectID string) (*Session, error)

	// Create persists a new active session and deactivates any previous
	// active sessions for the same subject, keeping the one-active-row
	// invariant.
	Create(ctx context.Context, params CreateSessionParams) (*Session, error)

	// Touch updates last_used_at on a session after a successful use.
	Touch(ctx context.Context, id uuid.UUID) error

	// DeactivateAllForSubject marks every active session for the subject
	// (matched by email or object id) inactive. Returns the number of
	// rows deactivated. Sessions are never deleted.
	DeactivateAllForSubject(ctx context.Context, subject string) (int64, error)

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
}
