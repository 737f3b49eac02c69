// Package store implements the terminal/key repository (C6): the
// Terminal and Key entities from spec.md §3, a Repository interface,
// and an in-memory implementation that serializes the mutating
// operations spec.md §4.6 requires to be atomic.
//
// Real persistence is explicitly out of scope (spec.md §1); this
// package is the full implementation of the abstract repository
// contract, the same role the teacher's KeyFile/LoadAllHexKeys
// (pkg/ntag424/keys.go) play for key material — a first-class value
// type plus load/save operations, minus any particular file format.
package store

import (
	"time"

	"github.com/google/uuid"
)

// TerminalStatus is the lifecycle state of a Terminal (spec.md §3).
type TerminalStatus string

const (
	TerminalActive         TerminalStatus = "ACTIVE"
	TerminalInactive       TerminalStatus = "INACTIVE"
	TerminalSuspended      TerminalStatus = "SUSPENDED"
	TerminalMaintenance    TerminalStatus = "MAINTENANCE"
	TerminalDecommissioned TerminalStatus = "DECOMMISSIONED"
)

// KeyStatus is the lifecycle state of a Key (spec.md §3).
type KeyStatus string

const (
	KeyActive      KeyStatus = "ACTIVE"
	KeyInactive    KeyStatus = "INACTIVE"
	KeyExpired     KeyStatus = "EXPIRED"
	KeyCompromised KeyStatus = "COMPROMISED"
	KeyPending     KeyStatus = "PENDING"
)

// Terminal is the POS terminal entity (spec.md §3 "T"). CurrentKeyID is
// the owning side of the Terminal<->Key cycle (DESIGN.md "Bidirectional
// ownership"): Terminal holds the id by value, Key never points back.
type Terminal struct {
	TerminalID     string
	MerchantID     string
	Status         TerminalStatus
	TerminalType   string
	Created        time.Time
	Updated        time.Time
	LastActivity   time.Time
	LastKeyChange  time.Time
	KeyChangeCount int
	CurrentKeyID   string // empty when no key has ever been issued
}

// Key is the TDES key entity (spec.md §3 "K").
type Key struct {
	KeyID   string
	Value   string // 32 or 48 uppercase hex chars
	Type    string // always "TDES"
	Status  KeyStatus
	KCV     string
	Length  int // 2 or 3
	Created time.Time
	Expiry  *time.Time
	Notes   string
}

// Repository is the abstract terminal/key persistence contract
// (spec.md §4.6, §6). Implementations MUST make CreateKeyAndRotate
// atomic: a reader observes either the pre- or post-rotation state,
// never a torn one (spec.md §5 "Shared resources and locking").
type Repository interface {
	FindTerminal(terminalID string) (*Terminal, bool)
	SaveTerminal(t *Terminal) *Terminal
	ExistsTerminal(terminalID string) bool

	FindKey(keyID string) (*Key, bool)
	SaveKey(k *Key) *Key
	ExistsKeyValue(value string) bool

	// CreateKeyAndRotate saves newKey, deactivates the terminal's
	// previous key (if any), sets terminal.CurrentKeyID, and
	// increments KeyChangeCount — all within one atomic boundary
	// (spec.md §4.6, §4.7 step 7).
	CreateKeyAndRotate(terminal *Terminal, newKey *Key) (*Terminal, *Key, error)

	ActiveTerminals() []*Terminal
	TerminalsWithoutKey() []*Terminal
	TerminalsWithExpiredKey(now time.Time) []*Terminal
	KeysExpiringWithin(now time.Time, window time.Duration) []*Key
}

// NewKeyID mints a surrogate key identifier. Grounded on the key-change
// protocol's need (spec.md §4.7 step 8) for a stable reference id
// distinct from the raw key value.
func NewKeyID() string {
	return uuid.NewString()
}
