package store

import (
	"errors"
	"sync"
	"time"
)

// ErrDuplicateKeyValue is returned by CreateKeyAndRotate when the new
// key's value collides with an existing key (spec.md §3 "value is
// globally unique"). SaveKey does not check for collisions.
var ErrDuplicateKeyValue = errors.New("store: key value already exists")

// MemoryRepository is the in-process Repository implementation
// (spec.md §1 "an abstract key-value repository"). A single mutex
// serializes every mutating operation, which is sufficient to give
// CreateKeyAndRotate the atomicity spec.md §4.6 requires: the mutex is
// held across both the Key insert and the Terminal update.
type MemoryRepository struct {
	mu        sync.RWMutex
	terminals map[string]*Terminal
	keys      map[string]*Key
	keyValues map[string]string // key value -> key id, for uniqueness checks
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		terminals: make(map[string]*Terminal),
		keys:      make(map[string]*Key),
		keyValues: make(map[string]string),
	}
}

func (r *MemoryRepository) FindTerminal(terminalID string) (*Terminal, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.terminals[terminalID]
	if !ok {
		return nil, false
	}
	cp := *t
	return &cp, true
}

func (r *MemoryRepository) ExistsTerminal(terminalID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.terminals[terminalID]
	return ok
}

// SaveTerminal inserts or replaces a terminal by TerminalID. Returns a
// defensive copy so callers never hold a reference the repository can
// mutate out from under them. terminal_id uniqueness (spec.md §3) is
// structural here: the map is keyed by TerminalID, so there is no
// distinct "duplicate terminal" error to raise — a second save under
// the same id is an update of the same row, not a collision.
func (r *MemoryRepository) SaveTerminal(t *Terminal) *Terminal {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	r.terminals[t.TerminalID] = &cp
	out := cp
	return &out
}

func (r *MemoryRepository) FindKey(keyID string) (*Key, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.keys[keyID]
	if !ok {
		return nil, false
	}
	cp := *k
	return &cp, true
}

func (r *MemoryRepository) ExistsKeyValue(value string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.keyValues[value]
	return ok
}

func (r *MemoryRepository) SaveKey(k *Key) *Key {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saveKeyLocked(k)
}

func (r *MemoryRepository) saveKeyLocked(k *Key) *Key {
	cp := *k
	r.keys[k.KeyID] = &cp
	r.keyValues[k.Value] = k.KeyID
	out := cp
	return &out
}

// CreateKeyAndRotate implements the atomic boundary from spec.md §4.6:
// save newKey, deactivate the terminal's previous key, set
// terminal.CurrentKeyID, bump KeyChangeCount and timestamps. All of it
// happens under the single repository mutex, so a concurrent reader
// via FindTerminal/FindKey sees either the whole-before or whole-after
// state, never an intermediate one.
func (r *MemoryRepository) CreateKeyAndRotate(terminal *Terminal, newKey *Key) (*Terminal, *Key, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, collides := r.keyValues[newKey.Value]; collides {
		return nil, nil, ErrDuplicateKeyValue
	}

	now := time.Now()
	if terminal.CurrentKeyID != "" {
		if prev, ok := r.keys[terminal.CurrentKeyID]; ok && prev.Status == KeyActive {
			prevCopy := *prev
			prevCopy.Status = KeyInactive
			prevCopy.Notes = appendNote(prevCopy.Notes, "deactivated by key-change on "+now.UTC().Format(time.RFC3339))
			r.keys[prevCopy.KeyID] = &prevCopy
		}
	}

	savedKey := r.saveKeyLocked(newKey)

	termCopy := *terminal
	termCopy.CurrentKeyID = savedKey.KeyID
	termCopy.KeyChangeCount++
	termCopy.LastKeyChange = now
	termCopy.Updated = now
	r.terminals[termCopy.TerminalID] = &termCopy

	outTerm := termCopy
	outKey := *savedKey
	return &outTerm, &outKey, nil
}

func appendNote(existing, note string) string {
	if existing == "" {
		return note
	}
	return existing + "; " + note
}

func (r *MemoryRepository) ActiveTerminals() []*Terminal {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Terminal
	for _, t := range r.terminals {
		if t.Status == TerminalActive {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out
}

func (r *MemoryRepository) TerminalsWithoutKey() []*Terminal {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Terminal
	for _, t := range r.terminals {
		if t.CurrentKeyID == "" {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out
}

func (r *MemoryRepository) TerminalsWithExpiredKey(now time.Time) []*Terminal {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Terminal
	for _, t := range r.terminals {
		if t.CurrentKeyID == "" {
			continue
		}
		k, ok := r.keys[t.CurrentKeyID]
		if !ok || k.Expiry == nil {
			continue
		}
		if now.After(*k.Expiry) || k.Status == KeyExpired {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out
}

func (r *MemoryRepository) KeysExpiringWithin(now time.Time, window time.Duration) []*Key {
	r.mu.RLock()
	defer r.mu.RUnlock()
	deadline := now.Add(window)
	var out []*Key
	for _, k := range r.keys {
		if k.Expiry == nil {
			continue
		}
		if k.Expiry.After(now) && !k.Expiry.After(deadline) {
			cp := *k
			out = append(out, &cp)
		}
	}
	return out
}
