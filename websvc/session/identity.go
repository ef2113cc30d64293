package session

import (
	"sync"

	"github.com/ichigozero/todokit/websvc"
)

// Identity tracks the principal of one browser session. It starts
// unresolved with no principal; the first Notify resolves it.
type Identity struct {
	mtx       sync.RWMutex
	principal *websvc.Principal
	resolving bool
}

func NewIdentity() *Identity {
	return &Identity{resolving: true}
}

// Principal returns a copy of the current principal, or nil.
func (i *Identity) Principal() *websvc.Principal {
	i.mtx.RLock()
	defer i.mtx.RUnlock()

	if i.principal == nil {
		return nil
	}
	p := *i.principal
	return &p
}

func (i *Identity) Resolving() bool {
	i.mtx.RLock()
	defer i.mtx.RUnlock()

	return i.resolving
}

// Notify is the provider's auth state callback. A nil p means signed out,
// including when the provider failed.
func (i *Identity) Notify(p *websvc.Principal) {
	i.mtx.Lock()
	defer i.mtx.Unlock()

	if p == nil {
		i.principal = nil
	} else {
		cp := *p
		i.principal = &cp
	}
	i.resolving = false
}

// Settle resolves a still unresolved identity as signed out. It reports
// whether it did; after any Notify it does nothing.
func (i *Identity) Settle() bool {
	i.mtx.Lock()
	defer i.mtx.Unlock()

	if !i.resolving {
		return false
	}
	i.resolving = false
	return true
}
