package tdes

import "testing"

// Scenario G from spec.md §8: chained transposition terminal -> gateway
// -> bank must recover the original clear PIN.
func TestTranspose_ChainRoundTrip(t *testing.T) {
	terminalKey := "0123456789ABCDEFFEDCBA9876543210"
	gatewayKey := "FFEEDDCCBBAA00112233445566778899"
	bankKey := "111111111111111122222222222222223333333333333333"
	pan := "4532015112830366"
	pin := "1234"

	clear, err := Format0Encode(pin, pan)
	if err != nil {
		t.Fatalf("Format0Encode: %v", err)
	}
	eTerm, err := TdesEncrypt(clear, terminalKey, false)
	if err != nil {
		t.Fatalf("TdesEncrypt: %v", err)
	}

	eGateway, err := Transpose(terminalKey, gatewayKey, eTerm, pan)
	if err != nil {
		t.Fatalf("Transpose term->gateway: %v", err)
	}
	eBank, err := Transpose(gatewayKey, bankKey, eGateway, pan)
	if err != nil {
		t.Fatalf("Transpose gateway->bank: %v", err)
	}

	decClear, err := TdesDecrypt(eBank, bankKey, true)
	if err != nil {
		t.Fatalf("TdesDecrypt: %v", err)
	}
	gotPin, err := Format0Decode(decClear, pan)
	if err != nil {
		t.Fatalf("Format0Decode: %v", err)
	}
	if gotPin != pin {
		t.Fatalf("recovered pin = %s, want %s", gotPin, pin)
	}
}

func TestTranspose_RejectsZeroBlock(t *testing.T) {
	_, err := Transpose("0123456789ABCDEFFEDCBA9876543210", "FFEEDDCCBBAA00112233445566778899",
		"0000000000000000", "4532015112830366")
	if err == nil {
		t.Fatal("expected error for all-zero pin block")
	}
}

func TestTranspose_RejectsShortPan(t *testing.T) {
	_, err := Transpose("0123456789ABCDEFFEDCBA9876543210", "FFEEDDCCBBAA00112233445566778899",
		"1111111111111111", "123")
	if err == nil {
		t.Fatal("expected error for short pan")
	}
}
