// Package keychange implements the key-change protocol (C7): MTI
// 0800/processing-code 900000. Grounded on keyswap/main.go's end-to-end
// flow (probe current key slot, confirm, changeKey/changeKeySame,
// re-authenticate to verify) — here generalized to generate a fresh
// TDES key, retry on collision, and atomically rotate the terminal's
// key reference.
package keychange

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kevshake/mastergateway/internal/store"
	"github.com/kevshake/mastergateway/internal/tdes"
)

// Reason codes returned alongside failure (spec.md §4.7 "Failure
// modes").
const (
	ReasonNotFound      = "not found"
	ReasonNotPermitted  = "not permitted"
	ReasonUniqueness    = "uniqueness"
	ReasonSystemError   = "system error"
	ReasonInvalidInput  = "invalid input"
)

// maxGenerationAttempts bounds the candidate-key collision retry loop
// (spec.md §4.7 step 5: "regenerate up to 10 attempts").
const maxGenerationAttempts = 10

// Config carries the options spec.md §6 enumerates for the key-change
// protocol and terminal auto-creation.
type Config struct {
	AutoCreateTerminal bool
	EnableKeyChange    bool
	KeyLength          int // 2 or 3
	KeyExpiryDays      int // 0 disables expiry
}

// Request is the key-change input (spec.md §4.7 "Input").
type Request struct {
	TerminalID string
	MerchantID string // optional; empty means "not supplied"
}

// Result is the key-change output (spec.md §4.7 "Output"). RawKeyValue
// is returned here for the gateway's out-of-band provisioning channel
// only (spec.md §4.7 step 8) — callers building a log line or an ISO
// 8583 response field MUST use KeyRef/MaskedValue instead, never
// RawKeyValue.
type Result struct {
	Success      bool
	Reason       string
	Terminal     *store.Terminal
	Key          *store.Key
	KeyRef       string // opaque reference id for out-of-band retrieval
	MaskedValue  string // first4+stars+last4, safe for logs
	RawKeyValue  string
}

// Service runs the key-change protocol against a Repository.
type Service struct {
	Repo store.Repository
	Cfg  Config
	Now  func() time.Time // overridable for tests; defaults to time.Now
}

// NewService returns a Service with Now defaulted to time.Now.
func NewService(repo store.Repository, cfg Config) *Service {
	return &Service{Repo: repo, Cfg: cfg, Now: time.Now}
}

// Change runs the full protocol: find-or-create terminal, generate a
// unique candidate key, compute its KCV, and atomically rotate
// (spec.md §4.7 steps 1-8).
func (s *Service) Change(req Request) Result {
	if !s.Cfg.EnableKeyChange {
		return Result{Success: false, Reason: ReasonNotPermitted}
	}

	terminalID := strings.TrimSpace(req.TerminalID)
	if terminalID == "" {
		return Result{Success: false, Reason: ReasonInvalidInput}
	}

	now := s.now()
	terminal, found := s.Repo.FindTerminal(terminalID)
	if !found {
		if !s.Cfg.AutoCreateTerminal {
			return Result{Success: false, Reason: ReasonNotPermitted}
		}
		terminal = &store.Terminal{
			TerminalID:   terminalID,
			MerchantID:   req.MerchantID,
			Status:       store.TerminalActive,
			TerminalType: "POS",
			Created:      now,
			Updated:      now,
			LastActivity: now,
		}
	} else if req.MerchantID != "" && req.MerchantID != terminal.MerchantID {
		terminal.MerchantID = req.MerchantID
		terminal.Updated = now
	}

	keyLength := s.Cfg.KeyLength
	if keyLength != 3 {
		keyLength = 2
	}

	newKey, err := s.generateUniqueKey(keyLength, now)
	if err != nil {
		if errors.Is(err, errUniqueness) {
			return Result{Success: false, Reason: ReasonUniqueness}
		}
		return Result{Success: false, Reason: ReasonSystemError}
	}

	updatedTerm, savedKey, err := s.Repo.CreateKeyAndRotate(terminal, newKey)
	if err != nil {
		return Result{Success: false, Reason: ReasonSystemError}
	}

	return Result{
		Success:     true,
		Terminal:    updatedTerm,
		Key:         savedKey,
		KeyRef:      ShortRef(savedKey.KeyID),
		MaskedValue: maskKey(savedKey.Value),
		RawKeyValue: savedKey.Value,
	}
}

// ShortRef derives a compact, wire-safe reference from a surrogate key
// id (a full UUID) for use in ISO 8583 field 53 text, which has far
// less room than a 36-character UUID (spec.md §4.7 step 8 "a reference
// identifier sufficient for the terminal to retrieve it through an
// out-of-band provisioning channel").
func ShortRef(keyID string) string {
	compact := strings.ReplaceAll(keyID, "-", "")
	if len(compact) > 16 {
		compact = compact[:16]
	}
	return strings.ToUpper(compact)
}

var errUniqueness = errors.New("keychange: could not generate a unique key value")

// generateUniqueKey produces a candidate key of the given length
// (32 or 48 hex chars) via crypto/rand, retrying on collision with the
// repository up to maxGenerationAttempts times (spec.md §4.7 step 5,
// §5 "RNG for key generation MUST be a cryptographically secure
// source").
func (s *Service) generateUniqueKey(length int, now time.Time) (*store.Key, error) {
	byteLen := length * 8
	for attempt := 0; attempt < maxGenerationAttempts; attempt++ {
		raw := make([]byte, byteLen)
		if _, err := rand.Read(raw); err != nil {
			return nil, fmt.Errorf("keychange: rng: %w", err)
		}
		value := strings.ToUpper(hex.EncodeToString(raw))
		if s.Repo.ExistsKeyValue(value) {
			continue
		}

		kcv, err := tdes.Kcv(value)
		if err != nil {
			return nil, fmt.Errorf("keychange: kcv: %w", err)
		}

		var expiry *time.Time
		if s.Cfg.KeyExpiryDays > 0 {
			e := now.AddDate(0, 0, s.Cfg.KeyExpiryDays)
			expiry = &e
		}

		return &store.Key{
			KeyID:   store.NewKeyID(),
			Value:   value,
			Type:    "TDES",
			Status:  store.KeyActive,
			KCV:     kcv,
			Length:  length,
			Created: now,
			Expiry:  expiry,
		}, nil
	}
	return nil, errUniqueness
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// maskKey keeps the first 4 and last 4 hex chars visible, masking the
// rest — the same shape as cardvalidator.mask but for key material
// rather than a PAN.
func maskKey(value string) string {
	if len(value) <= 8 {
		return value
	}
	stars := len(value) - 8
	return value[:4] + strings.Repeat("*", stars) + value[len(value)-4:]
}
