package respcode

import "testing"

func TestPOSCodesCoversFullRange(t *testing.T) {
	if len(POSCodes) != 100 {
		t.Fatalf("POSCodes has %d entries, want 100", len(POSCodes))
	}
	approved := POSCodes["00"]
	if approved.Severity != Info || approved.Category != Success {
		t.Fatalf("code 00 = %+v, want Info/Success", approved)
	}
}

func TestBankCodesIncludesAlphaCodes(t *testing.T) {
	for _, code := range []string{"B1", "N0", "P2", "Z3"} {
		if _, ok := BankCodes[code]; !ok {
			t.Fatalf("BankCodes missing alpha code %s", code)
		}
	}
	if len(BankCodes) != len(POSCodes)+4 {
		t.Fatalf("BankCodes has %d entries, want %d", len(BankCodes), len(POSCodes)+4)
	}
}

func TestCategorizeOverridesSeedForNormativeSets(t *testing.T) {
	securityCode := POSCodes["59"]
	if securityCode.Category != SecurityErr {
		t.Fatalf("code 59 category = %s, want SECURITY_ERROR", securityCode.Category)
	}
	pinCode := POSCodes["55"]
	if pinCode.Category != PinError {
		t.Fatalf("code 55 category = %s, want PIN_ERROR", pinCode.Category)
	}
}

func TestLookupUnknownCodeReturnsSyntheticEntry(t *testing.T) {
	entry := Lookup(BankCodes, "ZZ")
	if entry.Category != Unknown || entry.Severity != Warn {
		t.Fatalf("Lookup(ZZ) = %+v, want Unknown/Warn", entry)
	}
	if entry.Code != "ZZ" {
		t.Fatalf("Lookup(ZZ).Code = %s, want ZZ", entry.Code)
	}
}
