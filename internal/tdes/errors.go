package tdes

import "errors"

// Sentinel errors for the TDES/PIN-block core. Wrapped with fmt.Errorf
// where extra context (field name, length) is useful to the caller.
var (
	ErrInvalidHex       = errors.New("tdes: invalid hex")
	ErrInvalidLength    = errors.New("tdes: invalid length")
	ErrInvalidKeyLength = errors.New("tdes: invalid key length")
	ErrPinLengthRange   = errors.New("tdes: decoded PIN length out of range")
	ErrPanTooShort      = errors.New("tdes: PAN too short")
	ErrBadPadding       = errors.New("tdes: invalid PIN block padding")
	ErrZeroPinBlock     = errors.New("tdes: PIN block is all zero")
)
