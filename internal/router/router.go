// Package router implements the transaction router (C8): MTI dispatch,
// request validation, PIN transposition, business caps, STAN/RRN
// minting, duplicate detection, and response composition (spec.md
// §4.8). Grounded on 1ph-sim_reader's cmd/root.go
// (connectAndPrepareReader -> verifyADMKeys): a sequence of
// short-circuiting validation steps ending in a result, generalized
// here to ISO 8583 request processing.
package router

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/kevshake/mastergateway/internal/bank"
	"github.com/kevshake/mastergateway/internal/cardvalidator"
	"github.com/kevshake/mastergateway/internal/iso8583"
	"github.com/kevshake/mastergateway/internal/keychange"
	"github.com/kevshake/mastergateway/internal/maskedlog"
	"github.com/kevshake/mastergateway/internal/respcode"
	"github.com/kevshake/mastergateway/internal/store"
	"github.com/kevshake/mastergateway/internal/tdes"
)

// duplicateWindow is the duration a (stan, local_date) pair is
// remembered for duplicate detection. spec.md §9 leaves this
// unspecified ("Duplicate-detection window duration is not declared in
// the source"); fixed at 5 minutes here (DESIGN.md "Open Questions
// resolved").
const duplicateWindow = 5 * time.Minute

// Config carries the security/terminal options spec.md §6 enumerates
// that affect routing decisions.
type Config struct {
	TerminalKey        string // default terminal key, used when a terminal has no key_ref yet
	GatewayZonalKey    string
	EnablePINTranspose bool
	EnableCardValidation bool
	RejectInvalidCard  bool
}

// Router is the transaction router. It holds no long-lived session
// state beyond the duplicate-detection cache; the repository and bank
// dispatcher are injected collaborators.
type Router struct {
	Cfg        Config
	Repo       store.Repository
	KeyChange  *keychange.Service
	Bank       *bank.Dispatcher
	Log        *maskedlog.Logger
	RawLog     *slog.Logger

	mu   sync.Mutex
	seen map[string]time.Time // "stan|date" -> first-seen time
}

// New constructs a Router.
func New(cfg Config, repo store.Repository, kc *keychange.Service, dispatcher *bank.Dispatcher, rawLog *slog.Logger) *Router {
	if rawLog == nil {
		rawLog = slog.Default()
	}
	return &Router{
		Cfg:       cfg,
		Repo:      repo,
		KeyChange: kc,
		Bank:      dispatcher,
		Log:       maskedlog.New(rawLog),
		RawLog:    rawLog,
		seen:      make(map[string]time.Time),
	}
}

// Handle decodes, routes, and builds the response for one raw POS
// frame (spec.md §4.4/§4.8, data-flow in spec.md §2). A FieldDecodeError
// is answered with a well-formed "30" reply, per spec.md §7's
// propagation policy; a FramingError (message shorter than the MTI,
// non-numeric MTI, unreadable bitmap) is returned as an error, for the
// framing layer to close the connection without a reply.
func (r *Router) Handle(ctx context.Context, raw []byte) ([]byte, error) {
	req, err := iso8583.Unpack(iso8583.POSDictionary, raw)
	if err != nil {
		var fde *iso8583.FieldDecodeError
		if errors.As(err, &fde) && fde.MTI != "" {
			resp := r.errorResponse(iso8583.NewMessage(fde.MTI), nextEvenMTI(fde.MTI), "30")
			r.logResponse(resp)
			return iso8583.Pack(iso8583.POSDictionary, resp)
		}
		return nil, err // framing-level failure (bad length, unreadable MTI): close without replying (spec.md §4.5/§7)
	}

	r.Log.LogMessage(slog.LevelInfo, "pos request received", req.MTI, req.Fields)

	resp := r.route(ctx, req)
	if resp == nil {
		return nil, nil // advice (0220/0420): no reply, session stays open (spec.md §4.8)
	}

	r.logResponse(resp)

	return iso8583.Pack(iso8583.POSDictionary, resp)
}

// logResponse logs the composed response alongside the response code's
// severity/category intelligence (spec.md §4.10).
func (r *Router) logResponse(resp *iso8583.Message) {
	level := slog.LevelInfo
	if code, ok := resp.Get(39); ok {
		entry := respcode.Lookup(respcode.POSCodes, code)
		switch entry.Severity {
		case respcode.Error:
			level = slog.LevelError
		case respcode.Warn:
			level = slog.LevelWarn
		}
		r.RawLog.Debug("response code classified", "code", code, "category", entry.Category, "action", entry.RecommendedAction)
	}
	r.Log.LogMessage(level, "pos response sent", resp.MTI, resp.Fields)
}

// route dispatches on MTI (spec.md §4.8 "Dispatch table").
func (r *Router) route(ctx context.Context, req *iso8583.Message) *iso8583.Message {
	switch req.MTI {
	case "0100", "0200":
		return r.handleFinancial(ctx, req)
	case "0220":
		r.recordAdvice(req)
		return nil // no response for advices; framing layer treats nil as "no reply"
	case "0400":
		return r.handleFinancial(ctx, req)
	case "0420":
		r.recordAdvice(req)
		return nil
	case "0800":
		return r.handleNetworkManagement(req)
	default:
		return r.errorResponse(req, defaultReplyMTI(req.MTI), "12")
	}
}

// handleFinancial implements spec.md §4.8 "Per-request processing
// order (financial)".
func (r *Router) handleFinancial(ctx context.Context, req *iso8583.Message) *iso8583.Message {
	replyMTI := nextEvenMTI(req.MTI)

	if r.isDuplicate(req) {
		return r.errorResponse(req, replyMTI, "94")
	}

	if pan, ok := req.Get(2); ok && r.Cfg.EnableCardValidation {
		result := cardvalidator.Validate(pan)
		if !result.Valid && r.Cfg.RejectInvalidCard {
			return r.errorResponse(req, replyMTI, "14")
		}
	}

	if pinBlock, ok := req.Get(52); ok && r.Cfg.EnablePINTranspose {
		pan, _ := req.Get(2)
		terminalKey := r.terminalKeyFor(req)
		transposed, err := tdes.Transpose(terminalKey, r.Cfg.GatewayZonalKey, pinBlock, pan)
		if err != nil {
			return r.errorResponse(req, replyMTI, "96")
		}
		req.Set(52, transposed)
	}

	processingCode, _ := req.Get(3)
	amountStr, _ := req.Get(4)
	capCode, capOK := businessCap(processingCode, amountStr)
	if !capOK {
		return r.errorResponse(req, replyMTI, capCode)
	}

	respCode := capCode
	if shouldForward(req.MTI) && r.Bank != nil {
		bankResp, err := r.Bank.Submit(ctx, req)
		if err != nil {
			return r.errorResponse(req, replyMTI, "91")
		}
		if v, ok := bankResp.Get(39); ok {
			respCode = v
		}
	}

	resp := iso8583.NewMessage(replyMTI)
	resp.CopyFieldsFrom(req, 2, 3, 4, 11, 12, 13, 14, 22, 25, 37, 41, 42, 43, 49)
	resp.Set(37, mintRRN())
	resp.Set(39, respCode)
	if respCode == "00" || respCode == "10" || respCode == "11" {
		resp.Set(38, mintAuthCode())
	}
	return resp
}

func (r *Router) recordAdvice(req *iso8583.Message) {
	if terminalID, ok := req.Get(41); ok {
		r.touchTerminalActivity(terminalID)
	}
}

func (r *Router) touchTerminalActivity(terminalID string) {
	if terminal, ok := r.Repo.FindTerminal(terminalID); ok {
		terminal.LastActivity = time.Now()
		r.Repo.SaveTerminal(terminal)
	}
}

// handleNetworkManagement implements spec.md §4.8's MTI 0800
// processing-code table.
func (r *Router) handleNetworkManagement(req *iso8583.Message) *iso8583.Message {
	replyMTI := nextEvenMTI(req.MTI)
	processingCode, _ := req.Get(3)

	switch processingCode {
	case "990000", "990001", "990002":
		if terminalID, ok := req.Get(41); ok {
			r.touchTerminalActivity(terminalID)
		}
		resp := iso8583.NewMessage(replyMTI)
		resp.CopyFieldsFrom(req, 11, 12, 13, 41, 42)
		resp.Set(39, "00")
		return resp

	case "900000":
		terminalID, _ := req.Get(41)
		merchantID, _ := req.Get(42)
		result := r.KeyChange.Change(keychange.Request{TerminalID: terminalID, MerchantID: merchantID})
		resp := iso8583.NewMessage(replyMTI)
		resp.CopyFieldsFrom(req, 11, 12, 13, 41, 42)
		if !result.Success {
			resp.Set(39, "96")
			return resp
		}
		resp.Set(53, "KEY_ID:"+result.KeyRef)
		resp.Set(39, "00")
		return resp

	case "900001":
		terminalID, _ := req.Get(41)
		resp := iso8583.NewMessage(replyMTI)
		resp.CopyFieldsFrom(req, 11, 12, 13, 41, 42)
		terminal, ok := r.Repo.FindTerminal(terminalID)
		if !ok {
			resp.Set(39, "14")
			return resp
		}
		resp.Set(53, fmt.Sprintf("STATUS:%s,KEYS:%s,CHANGES:%d", terminal.Status, keychange.ShortRef(terminal.CurrentKeyID), terminal.KeyChangeCount))
		resp.Set(39, "00")
		return resp

	default:
		return r.errorResponse(req, replyMTI, "12")
	}
}

// terminalKeyFor resolves the terminal key to transpose the incoming
// PIN block from: the terminal's current key if known, otherwise the
// configured default terminal key (spec.md §6
// "security.default_terminal_key").
func (r *Router) terminalKeyFor(req *iso8583.Message) string {
	terminalID, ok := req.Get(41)
	if !ok {
		return r.Cfg.TerminalKey
	}
	terminal, found := r.Repo.FindTerminal(terminalID)
	if !found || terminal.CurrentKeyID == "" {
		return r.Cfg.TerminalKey
	}
	key, found := r.Repo.FindKey(terminal.CurrentKeyID)
	if !found {
		return r.Cfg.TerminalKey
	}
	return key.Value
}

// isDuplicate implements the in-memory (stan, local_date) duplicate
// cache (spec.md §4.8 "Duplicate detection").
func (r *Router) isDuplicate(req *iso8583.Message) bool {
	stan, _ := req.Get(11)
	date, _ := req.Get(13)
	key := stan + "|" + date

	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for k, seenAt := range r.seen {
		if now.Sub(seenAt) > duplicateWindow {
			delete(r.seen, k)
		}
	}
	if _, exists := r.seen[key]; exists {
		return true
	}
	r.seen[key] = now
	return false
}

func (r *Router) errorResponse(req *iso8583.Message, replyMTI, code string) *iso8583.Message {
	resp := iso8583.NewMessage(replyMTI)
	resp.CopyFieldsFrom(req, 2, 3, 4, 11, 12, 13, 14, 22, 25, 37, 41, 42, 43, 49)
	resp.Set(37, mintRRN())
	resp.Set(39, code)
	return resp
}

// shouldForward reports whether the request MTI is forwarded to the
// bank (spec.md §4.8 step 5: "0100/0200/0400").
func shouldForward(mti string) bool {
	return mti == "0100" || mti == "0200" || mti == "0400"
}

// businessCap applies the processing-code-dependent amount caps
// (spec.md §4.8 step 4). It returns the local response code and
// whether the transaction is locally approved to proceed.
func businessCap(processingCode, amountStr string) (code string, ok bool) {
	amount, err := strconv.ParseInt(amountStr, 10, 64)
	if err != nil {
		amount = 0
	}
	switch processingCode {
	case "000000": // Purchase
		if amount > 100000 {
			return "61", false
		}
		return "00", true
	case "010000": // Cash advance
		if amount > 50000 {
			return "61", false
		}
		return "00", true
	case "200000", "310000", "400000", "500000": // Refund/Balance/Payment/Transfer
		if amount > 1000000 {
			return "61", false
		}
		return "00", true
	default:
		return "12", false
	}
}

// nextEvenMTI returns the response MTI for a request MTI: same
// version/class, function digit incremented by one (request 0 ->
// response 1), origin reset to 0 (spec.md §4.8 dispatch
// table: 0100->0110, 0200->0210, 0400->0410, 0800->0810).
func nextEvenMTI(mti string) string {
	if len(mti) != 4 {
		return "0810"
	}
	fn := mti[2]
	if fn >= '0' && fn <= '8' {
		fn++
	}
	return mti[:2] + string(fn) + "0"
}

// defaultReplyMTI is used for MTIs outside the dispatch table (spec.md
// §4.8 "others -> error response at the parent MTI's reply").
func defaultReplyMTI(mti string) string {
	if len(mti) == 4 {
		return nextEvenMTI(mti)
	}
	return "0210"
}

// mintRRN mints a 12-digit Retrieval Reference Number (spec.md §4.8
// "STAN/RRN"): now_ms mod 10^12, zero-padded.
func mintRRN() string {
	ms := time.Now().UnixMilli() % 1_000_000_000_000
	s := strconv.FormatInt(ms, 10)
	for len(s) < 12 {
		s = "0" + s
	}
	return s
}

// mintAuthCode mints a 6-digit authorization code from a cryptographically
// secure source (spec.md §4.8 step 6: "6 random decimal digits").
func mintAuthCode() string {
	var buf [6]byte
	_, _ = rand.Read(buf[:])
	out := make([]byte, 6)
	for i, b := range buf {
		out[i] = byte('0' + int(b)%10)
	}
	return string(out)
}
