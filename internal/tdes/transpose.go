package tdes

import "strings"

// Transpose re-encrypts a PIN block from sourceKey to destKey without
// ever exposing the clear PIN outside this function: decrypt under
// sourceKey, decode format-0 to recover the PIN, re-encode format-0
// (against the same pan, so this is a no-op when source and destination
// legs agree on the PAN), re-encrypt under destKey.
//
// Transpose is a pure function: it persists nothing and writes nothing
// to any logging sink.
func Transpose(sourceKey, destKey, pinBlockHex, pan string) (string, error) {
	if len(pinBlockHex) != 16 {
		return "", ErrInvalidLength
	}
	if isAllZeroHex(pinBlockHex) {
		return "", ErrZeroPinBlock
	}
	if len(pan) < 12 {
		return "", ErrPanTooShort
	}

	clearBlock, err := TdesDecrypt(pinBlockHex, sourceKey, len(sourceKey) == 48)
	if err != nil {
		return "", err
	}
	pin, err := Format0Decode(clearBlock, pan)
	if err != nil {
		return "", err
	}
	newClear, err := Format0Encode(pin, pan)
	if err != nil {
		return "", err
	}
	return TdesEncrypt(newClear, destKey, len(destKey) == 48)
}

func isAllZeroHex(s string) bool {
	return strings.Count(s, "0") == len(s)
}
