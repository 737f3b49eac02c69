package router

import (
	"context"
	"testing"

	"github.com/kevshake/mastergateway/internal/iso8583"
	"github.com/kevshake/mastergateway/internal/keychange"
	"github.com/kevshake/mastergateway/internal/store"
)

func newTestRouter() *Router {
	repo := store.NewMemoryRepository()
	kc := keychange.NewService(repo, keychange.Config{AutoCreateTerminal: true, EnableKeyChange: true, KeyLength: 2, KeyExpiryDays: 365})
	cfg := Config{
		EnableCardValidation: true,
		RejectInvalidCard:    true,
		EnablePINTranspose:   false, // no F52 in these scenarios
	}
	return New(cfg, repo, kc, nil, nil)
}

func packRequest(t *testing.T, req *iso8583.Message) []byte {
	t.Helper()
	raw, err := iso8583.Pack(iso8583.POSDictionary, req)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	return raw
}

func unpackResponse(t *testing.T, raw []byte) *iso8583.Message {
	t.Helper()
	resp, err := iso8583.Unpack(iso8583.POSDictionary, raw)
	if err != nil {
		t.Fatalf("Unpack response: %v", err)
	}
	return resp
}

// Scenario A: Visa purchase, approved, no bank forward. handleFinancial
// forwards only when a bank dispatcher is configured; Bank is nil here,
// so the request is answered locally.
func TestScenarioA_VisaPurchaseApproved(t *testing.T) {
	r := newTestRouter()
	req := iso8583.NewMessage("0200")
	req.Set(2, "4532015112830366")
	req.Set(3, "000000")
	req.Set(4, "000000005000")
	req.Set(11, "000123")
	req.Set(41, "TERM0001")

	raw, err := r.Handle(context.Background(), packRequest(t, req))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	resp := unpackResponse(t, raw)

	if resp.MTI != "0210" {
		t.Errorf("MTI = %s, want 0210", resp.MTI)
	}
	if v, _ := resp.Get(39); v != "00" {
		t.Errorf("field 39 = %q, want 00", v)
	}
	if v, _ := resp.Get(38); len(v) != 6 {
		t.Errorf("field 38 = %q, want 6 digits", v)
	}
	if v, _ := resp.Get(37); len(v) != 12 {
		t.Errorf("field 37 = %q, want 12 digits", v)
	}
	if v, _ := resp.Get(2); v != "4532015112830366" {
		t.Errorf("field 2 not echoed: %q", v)
	}
}

// Scenario B: Luhn failure.
func TestScenarioB_LuhnFailure(t *testing.T) {
	r := newTestRouter()
	req := iso8583.NewMessage("0200")
	req.Set(2, "4532015112830367") // bad check digit
	req.Set(3, "000000")
	req.Set(4, "000000001000")
	req.Set(11, "000124")

	raw, err := r.Handle(context.Background(), packRequest(t, req))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	resp := unpackResponse(t, raw)
	if resp.MTI != "0210" {
		t.Errorf("MTI = %s, want 0210", resp.MTI)
	}
	if v, _ := resp.Get(39); v != "14" {
		t.Errorf("field 39 = %q, want 14", v)
	}
	if v, _ := resp.Get(37); len(v) != 12 {
		t.Errorf("field 37 = %q, want 12-digit RRN even on a decline", v)
	}
}

// A field-level decode error (spec.md §7 "FieldDecodeError(N)") must
// still produce a well-formed "30" reply, not a silently closed
// connection — only a framing-level failure (bad length, unreadable
// MTI) does that.
func TestHandle_FieldDecodeErrorBuildsFormatErrorReply(t *testing.T) {
	r := newTestRouter()
	req := iso8583.NewMessage("0200")
	req.Set(11, "000125")
	req.Set(35, "4111111111111111=2512101")
	raw := packRequest(t, req)

	// Truncate the tail so field 35's declared length header no longer
	// matches the bytes actually present, without touching the MTI or
	// bitmap.
	truncated := raw[:len(raw)-5]

	respRaw, err := r.Handle(context.Background(), truncated)
	if err != nil {
		t.Fatalf("Handle returned an error, want a built \"30\" reply: %v", err)
	}
	resp := unpackResponse(t, respRaw)
	if resp.MTI != "0210" {
		t.Errorf("MTI = %s, want 0210", resp.MTI)
	}
	if v, _ := resp.Get(39); v != "30" {
		t.Errorf("field 39 = %q, want 30", v)
	}
}

// A true framing-level failure (MTI itself unreadable) still has no
// MTI to reply against, so Handle must return an error for the framing
// layer to close the connection on (spec.md §4.5/§7).
func TestHandle_FramingErrorReturnsErrorNotReply(t *testing.T) {
	r := newTestRouter()
	if _, err := r.Handle(context.Background(), []byte("ab")); err == nil {
		t.Fatal("expected an error for a message shorter than the MTI")
	}
}

// Scenario C: amount cap exceeded.
func TestScenarioC_AmountCap(t *testing.T) {
	r := newTestRouter()
	req := iso8583.NewMessage("0200")
	req.Set(3, "000000")
	req.Set(4, "000000200000")
	req.Set(11, "000125")

	raw, err := r.Handle(context.Background(), packRequest(t, req))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	resp := unpackResponse(t, raw)
	if v, _ := resp.Get(39); v != "61" {
		t.Errorf("field 39 = %q, want 61", v)
	}
}

func TestDuplicateDetection(t *testing.T) {
	r := newTestRouter()
	req := iso8583.NewMessage("0200")
	req.Set(3, "000000")
	req.Set(4, "000000001000")
	req.Set(11, "000126")
	req.Set(13, "0731")

	raw := packRequest(t, req)
	first, err := r.Handle(context.Background(), raw)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	firstResp := unpackResponse(t, first)
	if v, _ := firstResp.Get(39); v != "00" {
		t.Fatalf("first attempt field 39 = %q, want 00", v)
	}

	second, err := r.Handle(context.Background(), raw)
	if err != nil {
		t.Fatalf("Handle (dup): %v", err)
	}
	secondResp := unpackResponse(t, second)
	if v, _ := secondResp.Get(39); v != "94" {
		t.Errorf("duplicate field 39 = %q, want 94", v)
	}
}

// Scenario D: key change creates terminal and key.
func TestScenarioD_KeyChangeCreatesTerminalAndKey(t *testing.T) {
	r := newTestRouter()
	req := iso8583.NewMessage("0800")
	req.Set(3, "900000")
	req.Set(11, "000200")
	req.Set(41, "NEWTID01")
	req.Set(42, "MERCH01")

	raw, err := r.Handle(context.Background(), packRequest(t, req))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	resp := unpackResponse(t, raw)
	if resp.MTI != "0810" {
		t.Errorf("MTI = %s, want 0810", resp.MTI)
	}
	if v, _ := resp.Get(39); v != "00" {
		t.Errorf("field 39 = %q, want 00", v)
	}
	f53, _ := resp.Get(53)
	if len(f53) < 7 || f53[:7] != "KEY_ID:" {
		t.Errorf("field 53 = %q, want KEY_ID: prefix", f53)
	}

	terminal, ok := r.Repo.FindTerminal("NEWTID01")
	if !ok {
		t.Fatalf("expected terminal NEWTID01 to be created")
	}
	if terminal.KeyChangeCount != 1 {
		t.Errorf("KeyChangeCount = %d, want 1", terminal.KeyChangeCount)
	}
}

// Scenario E: key rotation deactivates prior key.
func TestScenarioE_KeyRotationDeactivatesPrior(t *testing.T) {
	r := newTestRouter()
	req := iso8583.NewMessage("0800")
	req.Set(3, "900000")
	req.Set(11, "000201")
	req.Set(41, "NEWTID01")
	req.Set(42, "MERCH01")
	raw := packRequest(t, req)

	if _, err := r.Handle(context.Background(), raw); err != nil {
		t.Fatalf("first key change: %v", err)
	}

	terminal, _ := r.Repo.FindTerminal("NEWTID01")
	firstKeyID := terminal.CurrentKeyID

	req.Set(11, "000202") // distinct STAN to avoid duplicate detection
	raw = packRequest(t, req)
	if _, err := r.Handle(context.Background(), raw); err != nil {
		t.Fatalf("second key change: %v", err)
	}

	terminal, _ = r.Repo.FindTerminal("NEWTID01")
	if terminal.KeyChangeCount != 2 {
		t.Errorf("KeyChangeCount = %d, want 2", terminal.KeyChangeCount)
	}
	if terminal.CurrentKeyID == firstKeyID {
		t.Errorf("expected a new key id after rotation")
	}

	prevKey, ok := r.Repo.FindKey(firstKeyID)
	if !ok {
		t.Fatalf("expected previous key to still exist")
	}
	if prevKey.Status != store.KeyInactive {
		t.Errorf("previous key status = %q, want INACTIVE", prevKey.Status)
	}
}
