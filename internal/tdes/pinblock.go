package tdes

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Format0Encode builds an ISO 9564 format-0 PIN block: XOR(PIN-field,
// PAN-field). PIN-field is "0L" || PIN || 'F' padding to 16 hex chars;
// PAN-field is "0000" || the rightmost 12 digits of pan excluding its
// trailing check digit (left-padded with '0' to 12 if pan is short).
func Format0Encode(pin, pan string) (string, error) {
	if err := validatePin(pin); err != nil {
		return "", err
	}
	panField, err := panField(pan)
	if err != nil {
		return "", err
	}

	pinFieldStr := fmt.Sprintf("0%X%s", len(pin), pin)
	for len(pinFieldStr) < 16 {
		pinFieldStr += "F"
	}
	pinField, err := hex.DecodeString(pinFieldStr)
	if err != nil {
		return "", fmt.Errorf("%w: pin field", ErrInvalidHex)
	}

	out := make([]byte, 8)
	for i := range out {
		out[i] = pinField[i] ^ panField[i]
	}
	return toUpperHex(out), nil
}

// Format0Decode recovers the PIN from a format-0 PIN block given the
// same pan used to build it.
func Format0Decode(pinBlockHex, pan string) (string, error) {
	block, err := decodeFixedHex(pinBlockHex, 8)
	if err != nil {
		return "", err
	}
	panField, err := panField(pan)
	if err != nil {
		return "", err
	}

	clear := make([]byte, 8)
	for i := range clear {
		clear[i] = block[i] ^ panField[i]
	}
	clearHex := toUpperHex(clear)

	pinLen, err := strconv.ParseInt(clearHex[1:2], 16, 64)
	if err != nil || pinLen < 4 || pinLen > 12 {
		return "", ErrPinLengthRange
	}
	end := 2 + int(pinLen)
	if end > 16 {
		return "", ErrPinLengthRange
	}
	pin := clearHex[2:end]
	for _, c := range clearHex[end:] {
		if c != 'F' {
			return "", ErrBadPadding
		}
	}
	return pin, nil
}

// panField builds the 8-byte "0000"||pan12 field shared by encode/decode.
func panField(pan string) ([]byte, error) {
	digits, err := pan12Digits(pan)
	if err != nil {
		return nil, err
	}
	b, err := hex.DecodeString("0000" + digits)
	if err != nil {
		return nil, fmt.Errorf("%w: pan field", ErrInvalidHex)
	}
	return b, nil
}

// pan12Digits returns the rightmost 12 digits of pan with its trailing
// check digit excluded, left-padded with '0' to 12 when pan is shorter.
func pan12Digits(pan string) (string, error) {
	if len(pan) < 1 {
		return "", ErrPanTooShort
	}
	withoutCheck := pan[:len(pan)-1]
	if len(withoutCheck) >= 12 {
		return withoutCheck[len(withoutCheck)-12:], nil
	}
	return strings.Repeat("0", 12-len(withoutCheck)) + withoutCheck, nil
}

func validatePin(pin string) error {
	if len(pin) < 4 || len(pin) > 12 {
		return ErrPinLengthRange
	}
	for _, c := range pin {
		if c < '0' || c > '9' {
			return fmt.Errorf("%w: pin must be decimal digits", ErrInvalidHex)
		}
	}
	return nil
}
