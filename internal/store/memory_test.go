package store

import "testing"

func TestSaveAndFindTerminal(t *testing.T) {
	repo := NewMemoryRepository()
	term := &Terminal{TerminalID: "TID00001", Status: TerminalActive, TerminalType: "POS"}
	repo.SaveTerminal(term)

	got, ok := repo.FindTerminal("TID00001")
	if !ok {
		t.Fatalf("expected terminal to be found")
	}
	if got.Status != TerminalActive {
		t.Errorf("status = %q, want ACTIVE", got.Status)
	}
	if !repo.ExistsTerminal("TID00001") {
		t.Errorf("ExistsTerminal = false, want true")
	}
}

func TestCreateKeyAndRotateFirstKey(t *testing.T) {
	repo := NewMemoryRepository()
	term := &Terminal{TerminalID: "TID00001", Status: TerminalActive}

	key := &Key{KeyID: "k1", Value: "00112233445566778899AABBCCDDEEFF", Status: KeyActive, Length: 2}
	outTerm, outKey, err := repo.CreateKeyAndRotate(term, key)
	if err != nil {
		t.Fatalf("CreateKeyAndRotate: %v", err)
	}
	if outTerm.CurrentKeyID != "k1" {
		t.Errorf("CurrentKeyID = %q, want k1", outTerm.CurrentKeyID)
	}
	if outTerm.KeyChangeCount != 1 {
		t.Errorf("KeyChangeCount = %d, want 1", outTerm.KeyChangeCount)
	}
	if outKey.Status != KeyActive {
		t.Errorf("new key status = %q, want ACTIVE", outKey.Status)
	}
}

func TestCreateKeyAndRotateDeactivatesPrevious(t *testing.T) {
	repo := NewMemoryRepository()
	term := &Terminal{TerminalID: "TID00001", Status: TerminalActive}

	key1 := &Key{KeyID: "k1", Value: "00112233445566778899AABBCCDDEEFF", Status: KeyActive, Length: 2}
	term1, _, err := repo.CreateKeyAndRotate(term, key1)
	if err != nil {
		t.Fatalf("first rotate: %v", err)
	}

	key2 := &Key{KeyID: "k2", Value: "FFEEDDCCBBAA99887766554433221100", Status: KeyActive, Length: 2}
	term2, _, err := repo.CreateKeyAndRotate(term1, key2)
	if err != nil {
		t.Fatalf("second rotate: %v", err)
	}
	if term2.CurrentKeyID != "k2" {
		t.Errorf("CurrentKeyID = %q, want k2", term2.CurrentKeyID)
	}
	if term2.KeyChangeCount != 2 {
		t.Errorf("KeyChangeCount = %d, want 2", term2.KeyChangeCount)
	}

	prev, ok := repo.FindKey("k1")
	if !ok {
		t.Fatalf("expected k1 to still exist")
	}
	if prev.Status != KeyInactive {
		t.Errorf("previous key status = %q, want INACTIVE", prev.Status)
	}
}

func TestCreateKeyAndRotateRejectsDuplicateValue(t *testing.T) {
	repo := NewMemoryRepository()
	existing := &Key{KeyID: "k1", Value: "00112233445566778899AABBCCDDEEFF", Status: KeyActive}
	repo.SaveKey(existing)

	term := &Terminal{TerminalID: "TID00001", Status: TerminalActive}
	dup := &Key{KeyID: "k2", Value: existing.Value, Status: KeyActive}
	if _, _, err := repo.CreateKeyAndRotate(term, dup); err != ErrDuplicateKeyValue {
		t.Fatalf("err = %v, want ErrDuplicateKeyValue", err)
	}
}

func TestTerminalsWithoutKey(t *testing.T) {
	repo := NewMemoryRepository()
	repo.SaveTerminal(&Terminal{TerminalID: "A", Status: TerminalActive})
	repo.SaveTerminal(&Terminal{TerminalID: "B", Status: TerminalActive, CurrentKeyID: "k1"})

	got := repo.TerminalsWithoutKey()
	if len(got) != 1 || got[0].TerminalID != "A" {
		t.Errorf("TerminalsWithoutKey = %+v, want just [A]", got)
	}
}
