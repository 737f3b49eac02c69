package tdes

import "testing"

// FIPS 46-3 known-answer test vector (the canonical worked example).
func TestDesEncrypt_NistVector(t *testing.T) {
	got, err := DesEncrypt("0123456789ABCDEF", "133457799BBCDFF1")
	if err != nil {
		t.Fatalf("DesEncrypt: %v", err)
	}
	want := "85E813540F0AB405"
	if got != want {
		t.Fatalf("DesEncrypt = %s, want %s", got, want)
	}
}

func TestDesEncryptDecrypt_RoundTrip(t *testing.T) {
	block := "0123456789ABCDEF"
	key := "133457799BBCDFF1"
	enc, err := DesEncrypt(block, key)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	dec, err := DesDecrypt(enc, key)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if dec != block {
		t.Fatalf("round trip = %s, want %s", dec, block)
	}
}

func TestTdesEncryptDecrypt_RoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		threeKey bool
	}{
		{"ede2", "0123456789ABCDEFFEDCBA9876543210", false},
		{"ede3", "0123456789ABCDEFFEDCBA9876543210FFEEDDCCBBAA0011", true},
	}
	data := "00112233445566778899AABBCCDDEEFF"
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			enc, err := TdesEncrypt(data, tc.key, tc.threeKey)
			if err != nil {
				t.Fatalf("encrypt: %v", err)
			}
			dec, err := TdesDecrypt(enc, tc.key, tc.threeKey)
			if err != nil {
				t.Fatalf("decrypt: %v", err)
			}
			if dec != data {
				t.Fatalf("round trip = %s, want %s", dec, data)
			}
		})
	}
}

func TestKcv_MatchesDefinition(t *testing.T) {
	key := "0123456789ABCDEFFEDCBA9876543210"
	kcv, err := Kcv(key)
	if err != nil {
		t.Fatalf("Kcv: %v", err)
	}
	enc, err := TdesEncrypt("0000000000000000", key, false)
	if err != nil {
		t.Fatalf("TdesEncrypt: %v", err)
	}
	if kcv != enc[:6] {
		t.Fatalf("Kcv = %s, want %s", kcv, enc[:6])
	}
	if len(kcv) != 6 {
		t.Fatalf("Kcv length = %d, want 6", len(kcv))
	}
}

func TestTdesEncrypt_InvalidHex(t *testing.T) {
	if _, err := TdesEncrypt("ZZ", "0123456789ABCDEFFEDCBA9876543210", false); err == nil {
		t.Fatal("expected error for invalid hex")
	}
}

func TestTdesEncrypt_InvalidLength(t *testing.T) {
	if _, err := TdesEncrypt("00", "0123456789ABCDEFFEDCBA9876543210", false); err == nil {
		t.Fatal("expected error for short data")
	}
}
