// Package bank implements the bank dispatcher (C9): the single owned
// outbound connection to the acquiring/issuing host, submission
// queueing, connection-failure retry with exponential backoff,
// per-submission deadlines, and STAN+date correlation (spec.md §4.9).
//
// No teacher file opens a live retrying network connection (DESIGN.md
// C9 entry); this component is built directly on the standard Go
// concurrency idiom — context.Context, a buffered channel, one owner
// goroutine — the same "owned resource behind a channel" shape the
// teacher uses for the PC/SC Connection (pkg/ntag424/pcsc.go),
// generalized from connect-on-demand card I/O to connect-on-demand TCP.
package bank

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/kevshake/mastergateway/internal/framing"
	"github.com/kevshake/mastergateway/internal/iso8583"
	"github.com/kevshake/mastergateway/internal/respcode"
	"github.com/kevshake/mastergateway/internal/tdes"
)

// ErrTimeout is returned when a submission's deadline elapses before a
// matching bank response arrives (spec.md §4.9 "Timeout").
var ErrTimeout = errors.New("bank: timeout")

// Config carries the options spec.md §6 enumerates for the bank leg.
type Config struct {
	Host              string
	Port              int
	TimeoutMs         int
	MaxAttempts       int
	DelayMs           int
	BackoffMultiplier float64

	// GatewayZonalKey and BankKey drive the PIN transposition step
	// (spec.md §4.9 step (b)): Gateway-Zonal-key -> bank-specific key.
	GatewayZonalKey string
	BankKey         string
	EnablePINTranspose bool
}

// pending is an in-flight correlation record (spec.md §3 "Transaction-
// in-flight (X)").
type pending struct {
	key      string
	resultCh chan result
	deadline time.Time
}

type result struct {
	resp *iso8583.Message
	err  error
}

type submission struct {
	posMsg   *iso8583.Message
	ctx      context.Context
	resultCh chan result
}

// Dispatcher owns the bank connection and serializes every send/receive
// across submitters through a bounded channel (spec.md §5 "Bank I/O
// task (1 instance)").
type Dispatcher struct {
	Cfg  Config
	Dict *iso8583.Dictionary
	Log  *slog.Logger

	channel *framing.BankChannel
	submits chan submission

	mu       sync.Mutex
	inFlight map[string]*pending
}

// NewDispatcher constructs a Dispatcher. The connection is dialed
// lazily on the first send (spec.md §4.5 "Reconnect lazily on
// demand").
func NewDispatcher(cfg Config, dict *iso8583.Dictionary, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		Cfg:  cfg,
		Dict: dict,
		Log:  log,
		channel: &framing.BankChannel{
			Host: cfg.Host,
			Port: cfg.Port,
		},
		submits:  make(chan submission, 64),
		inFlight: make(map[string]*pending),
	}
}

// Run is the Bank I/O task's main loop: pop a submission, translate,
// transpose, send with retry, await the correlated response or
// timeout, resolve the caller's future. It runs until ctx is canceled
// (spec.md §5 "Cancellation & timeouts" / "On graceful shutdown").
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			d.channel.Close()
			return
		case sub := <-d.submits:
			d.process(sub)
		}
	}
}

// Submit enqueues posMsg for the Bank I/O task (Run), which translates
// it into the bank dialect, transposes the PIN block if present,
// registers correlation, and sends it. Submit blocks until the bank
// host replies, a timeout fires, or ctx is canceled (spec.md §4.9
// "submit(posMsg) -> future<bankMsg>").
func (d *Dispatcher) Submit(ctx context.Context, posMsg *iso8583.Message) (*iso8583.Message, error) {
	resultCh := make(chan result, 1)
	sub := submission{posMsg: posMsg, ctx: ctx, resultCh: resultCh}

	select {
	case d.submits <- sub:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-resultCh:
		return res.resp, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// forwardedFields are the fields copied POS->Bank verbatim before F7
// is re-stamped and F37 re-minted (spec.md §4.9 step (a)).
var forwardedFields = []int{2, 3, 4, 7, 11, 12, 13, 14, 22, 25, 35, 41, 42, 43, 49}

func (d *Dispatcher) process(sub submission) {
	bankMsg := iso8583.NewMessage(forwardMTI(sub.posMsg.MTI))
	bankMsg.CopyFieldsFrom(sub.posMsg, forwardedFields...)
	bankMsg.Set(7, time.Now().UTC().Format("0102150405"))
	bankMsg.Set(37, mintRRN())

	if pin, ok := sub.posMsg.Get(52); ok && d.Cfg.EnablePINTranspose {
		pan, _ := sub.posMsg.Get(2)
		transposed, err := tdes.Transpose(d.Cfg.GatewayZonalKey, d.Cfg.BankKey, pin, pan)
		if err != nil {
			sub.resultCh <- result{err: fmt.Errorf("bank: pin transpose: %w", err)}
			return
		}
		bankMsg.Set(52, transposed)
	}

	stan, _ := bankMsg.Get(11)
	date, _ := bankMsg.Get(13)
	key := stan + "|" + date

	timeoutMs := d.Cfg.TimeoutMs
	if timeoutMs <= 0 {
		timeoutMs = 30000
	}
	deadline := time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)

	p := &pending{key: key, resultCh: sub.resultCh, deadline: deadline}
	d.mu.Lock()
	d.inFlight[key] = p
	d.mu.Unlock()
	defer d.clearInFlight(key)

	raw, err := iso8583.Pack(d.Dict, bankMsg)
	if err != nil {
		sub.resultCh <- result{err: fmt.Errorf("bank: pack: %w", err)}
		return
	}

	if err := d.sendWithRetry(raw); err != nil {
		sub.resultCh <- result{err: err}
		return
	}

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			sub.resultCh <- result{err: ErrTimeout}
			return
		}
		respRaw, err := d.channel.Receive(deadline)
		if err != nil {
			sub.resultCh <- result{err: fmt.Errorf("%w: %v", ErrTimeout, err)}
			return
		}
		respMsg, err := iso8583.Unpack(d.Dict, respRaw)
		if err != nil {
			d.Log.Warn("bank: dropping undecodable response", "error", err)
			continue
		}
		respStan, _ := respMsg.Get(11)
		respDate, _ := respMsg.Get(13)
		respKey := respStan + "|" + respDate

		d.mu.Lock()
		matched, ok := d.inFlight[respKey]
		d.mu.Unlock()
		if !ok {
			d.Log.Warn("bank: dropping unmatched response", "stan", respStan, "date", respDate)
			continue
		}
		if matched != p {
			// The (stan, date) key is registered to a submission other than
			// the one this loop is waiting for, so the response is not this
			// submission's (spec.md §4.9 "Correlation": unmatched responses
			// are logged and dropped).
			d.Log.Warn("bank: dropping late response for expired submission", "stan", respStan, "date", respDate)
			continue
		}
		if code, ok := respMsg.Get(39); ok {
			entry := respcode.Lookup(respcode.BankCodes, code)
			if entry.Severity == respcode.Error {
				d.Log.Warn("bank declined", "code", code, "category", entry.Category, "action", entry.RecommendedAction)
			}
		}
		sub.resultCh <- result{resp: respMsg}
		return
	}
}

// sendWithRetry attempts to send raw, retrying on connection failure
// only (never on a logical decline, which is a property of the
// response, not the send) up to Cfg.MaxAttempts with exponential
// backoff starting at Cfg.DelayMs (spec.md §4.9 "Retry").
func (d *Dispatcher) sendWithRetry(raw []byte) error {
	maxAttempts := d.Cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	delay := time.Duration(d.Cfg.DelayMs) * time.Millisecond
	if delay <= 0 {
		delay = 5 * time.Second
	}
	multiplier := d.Cfg.BackoffMultiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			d.channel.Close() // each retry re-opens the connection
			time.Sleep(delay)
			delay = time.Duration(float64(delay) * multiplier)
		}
		if err := d.channel.Send(raw); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("bank: send failed after %d attempts: %w", maxAttempts, lastErr)
}

func (d *Dispatcher) clearInFlight(key string) {
	d.mu.Lock()
	delete(d.inFlight, key)
	d.mu.Unlock()
}

// forwardMTI maps a POS request MTI to its bank-facing equivalent.
// This gateway speaks the same MTI family to the bank as to the
// terminal (spec.md doesn't define a distinct bank MTI table), so the
// request MTI is forwarded unchanged.
func forwardMTI(mti string) string {
	return mti
}

// mintRRN mints a 12-digit Retrieval Reference Number: now_ms mod
// 10^12, zero-padded (spec.md §4.8 "STAN/RRN").
func mintRRN() string {
	ms := time.Now().UnixMilli() % 1_000_000_000_000
	s := strconv.FormatInt(ms, 10)
	for len(s) < 12 {
		s = "0" + s
	}
	return s
}
