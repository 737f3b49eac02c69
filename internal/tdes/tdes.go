// Package tdes implements the PIN cryptography core: single/double/triple
// DES in ECB mode, key check values, and ISO 9564 format-0 PIN blocks.
//
// All public functions take and return uppercase hex strings, matching
// the wire representation used everywhere else in the gateway (field 52,
// terminal/key store values). Internally everything works on raw bytes.
package tdes

import (
	"crypto/des" //nolint:staticcheck // DES is mandated by the ISO 8583/9564 domain, not a choice.
	"encoding/hex"
	"fmt"
)

const blockSize = des.BlockSize // 8 bytes = 16 hex chars.

// DesEncrypt performs a single-DES ECB encryption of one 8-byte block.
// block and key are 16 hex chars each (FIPS 46-3: IP, 16 Feistel rounds
// with the PC1/PC2 key schedule, S-boxes 1..8, P, IP^-1 — exactly what
// crypto/des.NewCipher implements and is validated against the NIST
// test vectors).
func DesEncrypt(blockHex, keyHex string) (string, error) {
	return cryptBlock(blockHex, keyHex, true)
}

// DesDecrypt is the inverse of DesEncrypt.
func DesDecrypt(blockHex, keyHex string) (string, error) {
	return cryptBlock(blockHex, keyHex, false)
}

func cryptBlock(blockHex, keyHex string, encrypt bool) (string, error) {
	block, err := decodeFixedHex(blockHex, blockSize)
	if err != nil {
		return "", err
	}
	key, err := decodeFixedHex(keyHex, blockSize)
	if err != nil {
		return "", err
	}
	cipherBlock, err := des.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidKeyLength, err)
	}
	out := make([]byte, blockSize)
	if encrypt {
		cipherBlock.Encrypt(out, block)
	} else {
		cipherBlock.Decrypt(out, block)
	}
	return toUpperHex(out), nil
}

// TdesEncrypt encrypts data (a multiple of 16 hex chars) under key in ECB
// mode. key is 32 hex chars (EDE-2, K3==K1) or 48 hex chars (EDE-3) when
// threeKey is true. Each 8-byte block is independently put through
// E(K1) -> D(K2) -> E(K3).
func TdesEncrypt(dataHex, keyHex string, threeKey bool) (string, error) {
	return tdesCrypt(dataHex, keyHex, threeKey, true)
}

// TdesDecrypt is the inverse of TdesEncrypt: D(K3) -> E(K2) -> D(K1).
func TdesDecrypt(dataHex, keyHex string, threeKey bool) (string, error) {
	return tdesCrypt(dataHex, keyHex, threeKey, false)
}

func tdesCrypt(dataHex, keyHex string, threeKey, encrypt bool) (string, error) {
	data, err := hex.DecodeString(dataHex)
	if err != nil {
		return "", fmt.Errorf("%w: data", ErrInvalidHex)
	}
	if len(data) == 0 || len(data)%blockSize != 0 {
		return "", fmt.Errorf("%w: data must be a non-zero multiple of %d hex chars", ErrInvalidLength, blockSize*2)
	}

	key24, err := expandKey(keyHex, threeKey)
	if err != nil {
		return "", err
	}
	cipherBlock, err := des.NewTripleDESCipher(key24)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidKeyLength, err)
	}

	out := make([]byte, len(data))
	for offset := 0; offset < len(data); offset += blockSize {
		chunk := data[offset : offset+blockSize]
		dst := out[offset : offset+blockSize]
		if encrypt {
			cipherBlock.Encrypt(dst, chunk)
		} else {
			cipherBlock.Decrypt(dst, chunk)
		}
	}
	return toUpperHex(out), nil
}

// expandKey normalizes a 32-hex (EDE-2) or 48-hex (EDE-3) key into the
// 24-byte K1||K2||K3 form des.NewTripleDESCipher expects, setting K3=K1
// for the two-key case.
func expandKey(keyHex string, threeKey bool) ([]byte, error) {
	wantHexLen := 32
	if threeKey {
		wantHexLen = 48
	}
	key, err := decodeFixedHex(keyHex, wantHexLen/2)
	if err != nil {
		return nil, err
	}
	if !threeKey {
		full := make([]byte, 24)
		copy(full[0:8], key[0:8])
		copy(full[8:16], key[8:16])
		copy(full[16:24], key[0:8])
		return full, nil
	}
	return key, nil
}

// Kcv computes the 6-hex-char Key Check Value: the first 3 bytes of a
// TDES encryption of a zero block under key.
func Kcv(keyHex string) (string, error) {
	threeKey := len(keyHex) == 48
	enc, err := TdesEncrypt("0000000000000000", keyHex, threeKey)
	if err != nil {
		return "", err
	}
	return enc[:6], nil
}

func decodeFixedHex(s string, wantBytes int) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHex, err)
	}
	if len(b) != wantBytes {
		return nil, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidLength, wantBytes, len(b))
	}
	return b, nil
}

func toUpperHex(b []byte) string {
	const upperhex = "0123456789ABCDEF"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = upperhex[v>>4]
		out[i*2+1] = upperhex[v&0x0f]
	}
	return string(out)
}
