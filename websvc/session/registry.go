package session

import (
	"sync"
	"time"

	"github.com/ichigozero/todokit/websvc/taskstore"
	"github.com/twinj/uuid"
)

// Session is the state of one browser.
type Session struct {
	ID         string
	Identity   *Identity
	Collection *Collection
}

type entry struct {
	session  *Session
	lastSeen time.Time
}

// Registry maps session ids to sessions. A session unused for longer than
// the idle timeout is evicted; expired entries are swept on Create and
// dropped on Get.
type Registry struct {
	store taskstore.Store
	idle  time.Duration
	now   func() time.Time

	mtx      sync.Mutex
	sessions map[string]*entry
}

// DefaultIdleTimeout matches the lifetime of an access token.
const DefaultIdleTimeout = 24 * time.Hour

func NewRegistry(store taskstore.Store, idle time.Duration) *Registry {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	return &Registry{
		store:    store,
		idle:     idle,
		now:      time.Now,
		sessions: make(map[string]*entry),
	}
}

var newID = func() string { return uuid.NewV4().String() }

// Create starts a session whose identity is still unresolved.
func (r *Registry) Create() *Session {
	identity := NewIdentity()
	s := &Session{
		ID:         newID(),
		Identity:   identity,
		Collection: NewCollection(identity, r.store),
	}

	r.mtx.Lock()
	defer r.mtx.Unlock()

	now := r.now()
	r.sweep(now)
	r.sessions[s.ID] = &entry{session: s, lastSeen: now}
	return s
}

// Get returns a live session and marks it as used.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	e, ok := r.sessions[id]
	if !ok {
		return nil, false
	}

	now := r.now()
	if r.expired(e, now) {
		delete(r.sessions, id)
		return nil, false
	}
	e.lastSeen = now
	return e.session, true
}

func (r *Registry) Remove(id string) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	delete(r.sessions, id)
}

func (r *Registry) Len() int {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	return len(r.sessions)
}

func (r *Registry) expired(e *entry, now time.Time) bool {
	return now.Sub(e.lastSeen) > r.idle
}

// sweep must be called with r.mtx held.
func (r *Registry) sweep(now time.Time) {
	for id, e := range r.sessions {
		if r.expired(e, now) {
			delete(r.sessions, id)
		}
	}
}
