package session

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by lookups that find no matching record.
var ErrNotFound = errors.New("session: not found")

// Registry is the Session Registry's public contract (C3). Both the
// Redis-backed store and the in-memory test double implement it.
type Registry interface {
	// CreateOrReplace atomically creates a new session for imei, or, if a
	// session (authenticated or not) already exists for that IMEI, replaces it.
	// replaced reports whether a prior session was displaced; its id is
	// returned so the caller (the Connection Handler) can instruct that
	// connection to close before the Connected event is emitted.
	CreateOrReplace(ctx context.Context, imei, channelID, remoteAddr string) (sess *Session, priorSessionID string, replaced bool, err error)

	// Touch updates last_activity. Implementations rate-limit writes to at
	// most once per touch window per session (the window is a constructor
	// argument, one second by default in the gateway's configuration; a zero
	// window writes on every call); callers may call this on every frame.
	Touch(ctx context.Context, sessionID string, at time.Time) error

	// Authenticate marks a session authenticated and stamps last_login_at.
	Authenticate(ctx context.Context, sessionID string) error

	// UpdatePosition records the session's last known fix.
	UpdatePosition(ctx context.Context, sessionID string, pos Position) error

	GetByIMEI(ctx context.Context, imei string) (*Session, error)
	GetByChannel(ctx context.Context, channelID string) (*Session, error)
	GetBySessionID(ctx context.Context, sessionID string) (*Session, error)

	// FindIdle returns the ids of sessions whose last_activity is before
	// cutoff. Best-effort: a failed scan returns an error but the caller
	// (the Idle Reaper) simply retries on the next tick.
	FindIdle(ctx context.Context, cutoff time.Time) ([]string, error)

	// Delete atomically removes the record and both index entries and
	// drops the session from the active set.
	Delete(ctx context.Context, sessionID string) error

	// Count returns the number of sessions in the active set, for metrics.
	Count(ctx context.Context) (int, error)
}
