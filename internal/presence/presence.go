// Package presence tracks which identities currently hold an open realtime
// channel. A Registry is created at process start, shared by the channel
// handler and the event dispatcher, and closed at shutdown.
package presence

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// ErrRegistryClosed is returned by Bind after Close.
var ErrRegistryClosed = errors.New("presence registry is closed")

// Handle is one open realtime channel.
type Handle interface {
	// ID is unique per open channel and stable for its lifetime.
	ID() string
	// Send writes one message to the channel. Implementations must be safe for
	// concurrent use and honour ctx's deadline.
	Send(ctx context.Context, msg []byte) error
	// Close closes the underlying channel. Calling it more than once is safe.
	Close() error
}

// Registry maps identities to their open handles. A handle belongs to at
// most one identity at a time. All methods are safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	byIdentity map[uuid.UUID]map[string]Handle
	owner      map[string]uuid.UUID
	closed     bool
	logger     *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		byIdentity: make(map[uuid.UUID]map[string]Handle),
		owner:      make(map[string]uuid.UUID),
		logger:     logger.With(slog.String("component", "presence")),
	}
}

// Bind adds h to identity's set. Binding the same pair again is a no-op.
// If h was bound to a different identity it is moved.
func (r *Registry) Bind(identity uuid.UUID, h Handle) error {
	id := h.ID()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRegistryClosed
	}

	if prev, ok := r.owner[id]; ok {
		if prev == identity {
			return nil
		}
		r.removeLocked(prev, id)
		r.logger.Warn("handle rebound to a different identity",
			slog.String("handle_id", id),
			slog.String("from", prev.String()),
			slog.String("to", identity.String()))
	}

	set, ok := r.byIdentity[identity]
	if !ok {
		set = make(map[string]Handle)
		r.byIdentity[identity] = set
	}
	set[id] = h
	r.owner[id] = identity

	r.logger.Debug("handle bound",
		slog.String("handle_id", id),
		slog.String("identity", identity.String()),
		slog.Int("identity_handles", len(set)))
	return nil
}

// Unbind removes h from whichever identity holds it. Unknown handles are ignored.
// It reports whether h was bound.
func (r *Registry) Unbind(h Handle) bool {
	id := h.ID()

	r.mu.Lock()
	defer r.mu.Unlock()

	identity, ok := r.owner[id]
	if !ok {
		return false
	}
	r.removeLocked(identity, id)

	r.logger.Debug("handle unbound",
		slog.String("handle_id", id),
		slog.String("identity", identity.String()))
	return true
}

func (r *Registry) removeLocked(identity uuid.UUID, handleID string) {
	delete(r.owner, handleID)
	set := r.byIdentity[identity]
	delete(set, handleID)
	if len(set) == 0 {
		delete(r.byIdentity, identity)
	}
}

// HandlesOf returns a snapshot of identity's handles, possibly empty.
func (r *Registry) HandlesOf(identity uuid.UUID) []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.byIdentity[identity]
	handles := make([]Handle, 0, len(set))
	for _, h := range set {
		handles = append(handles, h)
	}
	return handles
}

// HandlesOfAll returns the union of HandlesOf over identities, taken under a
// single lock. Duplicate identities contribute their handles once.
func (r *Registry) HandlesOfAll(identities []uuid.UUID) []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[uuid.UUID]struct{}, len(identities))
	var handles []Handle
	for _, identity := range identities {
		if _, dup := seen[identity]; dup {
			continue
		}
		seen[identity] = struct{}{}
		for _, h := range r.byIdentity[identity] {
			handles = append(handles, h)
		}
	}
	return handles
}

// IdentityOf returns the identity h is bound to.
func (r *Registry) IdentityOf(h Handle) (uuid.UUID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	identity, ok := r.owner[h.ID()]
	return identity, ok
}

// IsPresent reports whether identity has at least one open handle.
func (r *Registry) IsPresent(identity uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byIdentity[identity]) > 0
}

// Count returns the number of bound handles.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.owner)
}

// Close empties the registry and closes every handle it held.
// Later calls to Bind fail with ErrRegistryClosed.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	var handles []Handle
	for _, set := range r.byIdentity {
		for _, h := range set {
			handles = append(handles, h)
		}
	}
	r.byIdentity = make(map[uuid.UUID]map[string]Handle)
	r.owner = make(map[string]uuid.UUID)
	r.mu.Unlock()

	for _, h := range handles {
		if err := h.Close(); err != nil {
			r.logger.Debug("error closing handle at shutdown",
				slog.String("handle_id", h.ID()),
				slog.String("error", err.Error()))
		}
	}
	r.logger.Info("presence registry closed", slog.Int("closed_handles", len(handles)))
}
