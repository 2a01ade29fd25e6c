package session

import (
	"context"
	"sync"
	"time"

	"github.com/gofrs/uuid"
)

// MemoryRegistry is an in-process Registry implementation. It backs the
// registry's own unit tests and the connection handler and reaper tests, the way
// jimi-vl103m's cmd/tcp-server/main.go kept sessions in a plain
// sync.RWMutex-guarded map — except here that map sits behind the Registry
// interface instead of being reached into directly.
type MemoryRegistry struct {
	mu          sync.RWMutex
	byID        map[string]*Session
	byIMEI      map[string]string // imei -> session id
	byChannel   map[string]string // channel id -> session id
	touchWindow time.Duration
}

// NewMemoryRegistry returns an empty MemoryRegistry. touchWindow bounds how
// often Touch actually writes last_activity, mirroring the Redis store's
// rate limiting.
func NewMemoryRegistry(touchWindow time.Duration) *MemoryRegistry {
	return &MemoryRegistry{
		byID:        make(map[string]*Session),
		byIMEI:      make(map[string]string),
		byChannel:   make(map[string]string),
		touchWindow: touchWindow,
	}
}

func (r *MemoryRegistry) CreateOrReplace(_ context.Context, imei, channelID, remoteAddr string) (*Session, string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	var priorID string
	var replaced bool
	if existingID, ok := r.byIMEI[imei]; ok {
		priorID = existingID
		replaced = true
		if prior, ok := r.byID[existingID]; ok {
			delete(r.byChannel, prior.ChannelID)
		}
		delete(r.byID, existingID)
	}

	id := uuid.Must(uuid.NewV4()).String()
	sess := &Session{
		ID:           id,
		IMEI:         imei,
		ChannelID:    channelID,
		RemoteAddr:   remoteAddr,
		CreatedAt:    now,
		LastActivity: now,
		Attributes:   make(map[string]string),
	}
	r.byID[id] = sess
	r.byIMEI[imei] = id
	r.byChannel[channelID] = id

	copy := *sess
	return &copy, priorID, replaced, nil
}

func (r *MemoryRegistry) Touch(_ context.Context, sessionID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.byID[sessionID]
	if !ok {
		return ErrNotFound
	}
	if r.touchWindow > 0 && at.Sub(sess.LastActivity) < r.touchWindow {
		return nil
	}
	sess.LastActivity = at
	return nil
}

func (r *MemoryRegistry) Authenticate(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.byID[sessionID]
	if !ok {
		return ErrNotFound
	}
	sess.Authenticated = true
	sess.LastLoginAt = time.Now()
	return nil
}

func (r *MemoryRegistry) UpdatePosition(_ context.Context, sessionID string, pos Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.byID[sessionID]
	if !ok {
		return ErrNotFound
	}
	p := pos
	sess.LastPosition = &p
	return nil
}

func (r *MemoryRegistry) GetByIMEI(_ context.Context, imei string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byIMEI[imei]
	if !ok {
		return nil, ErrNotFound
	}
	sess, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	copy := *sess
	return &copy, nil
}

func (r *MemoryRegistry) GetByChannel(_ context.Context, channelID string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byChannel[channelID]
	if !ok {
		return nil, ErrNotFound
	}
	sess, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	copy := *sess
	return &copy, nil
}

func (r *MemoryRegistry) GetBySessionID(_ context.Context, sessionID string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.byID[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	copy := *sess
	return &copy, nil
}

func (r *MemoryRegistry) FindIdle(_ context.Context, cutoff time.Time) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []string
	for id, sess := range r.byID {
		if sess.LastActivity.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *MemoryRegistry) Delete(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.byID[sessionID]
	if !ok {
		return ErrNotFound
	}
	delete(r.byID, sessionID)
	delete(r.byIMEI, sess.IMEI)
	delete(r.byChannel, sess.ChannelID)
	return nil
}

func (r *MemoryRegistry) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID), nil
}

var _ Registry = (*MemoryRegistry)(nil)
