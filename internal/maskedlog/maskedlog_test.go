package maskedlog

import "testing"

func TestMaskFieldsWipesPinBlock(t *testing.T) {
	out := MaskFields(map[int]string{52: "0123456789ABCDEF", 3: "000000"})
	if _, present := out[52]; present {
		t.Errorf("field 52 must be wiped, got %q", out[52])
	}
	if out[3] != "000000" {
		t.Errorf("field 3 should pass through unmasked, got %q", out[3])
	}
}

func TestMaskFieldsFullMasksPAN(t *testing.T) {
	out := MaskFields(map[int]string{2: "4532015112830366"})
	want := "4532********0366"
	if out[2] != want {
		t.Errorf("masked PAN = %q, want %q", out[2], want)
	}
}

func TestMaskFieldsPartialMasksRRN(t *testing.T) {
	out := MaskFields(map[int]string{37: "123456789012"})
	if out[37][0] != '1' || out[37][len(out[37])-1] != '2' {
		t.Errorf("partial mask should keep first/last char, got %q", out[37])
	}
}

func TestMaskFieldsPassesThroughUnlistedFields(t *testing.T) {
	out := MaskFields(map[int]string{11: "000123"})
	if out[11] != "000123" {
		t.Errorf("unlisted field should pass through, got %q", out[11])
	}
}
