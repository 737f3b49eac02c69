// Package maskedlog implements the masking logger interface (C11): a
// field-aware masking policy applied to an ISO 8583 message before it
// reaches any sink. Wraps *slog.Logger, the same sink every teacher
// main.go configures (slog.NewTextHandler/NewJSONHandler), rather than
// inventing a new logging abstraction.
package maskedlog

import (
	"context"
	"log/slog"
	"strings"
)

// policy classifies how a field is displayed in a masked log line.
type policy int

const (
	visible policy = iota
	fullMask
	partialMask
	wipe
)

// fieldPolicy is the masking table from spec.md §4.11.
var fieldPolicy = map[int]policy{
	2:   fullMask,    // PAN: keep first-4+last-4
	14:  fullMask,    // ExpDate
	35:  fullMask,    // Track2
	45:  fullMask,    // Track1
	52:  wipe,        // PIN block: never in the transaction-logger view
	55:  fullMask,    // EMV
	120: fullMask,
	126: fullMask,
	37:  partialMask, // RRN
	41:  partialMask, // Terminal ID
	42:  partialMask, // Merchant ID
}

// Logger wraps a *slog.Logger and applies the masking policy to ISO
// 8583 message fields before they're attached as log attributes.
type Logger struct {
	base *slog.Logger
}

// New wraps base. Passing slog.Default() matches the teacher's
// bootstrap convention of configuring one process-wide logger.
func New(base *slog.Logger) *Logger {
	if base == nil {
		base = slog.Default()
	}
	return &Logger{base: base}
}

// MaskFields returns a copy of fields with the masking policy applied,
// safe to pass to any sink.
func MaskFields(fields map[int]string) map[int]string {
	out := make(map[int]string, len(fields))
	for n, v := range fields {
		switch fieldPolicy[n] {
		case wipe:
			continue
		case fullMask:
			out[n] = maskFull(n, v)
		case partialMask:
			out[n] = maskPartial(v)
		default:
			out[n] = v
		}
	}
	return out
}

// maskFull keeps the first 4 and last 4 characters of the PAN (field 2)
// visible when it is longer than 8; every other fully masked value
// (e.g. Track2 with its separators) and any PAN of 8 or fewer
// characters is replaced wholesale with '*' of the same length.
func maskFull(n int, v string) string {
	if n != 2 || len(v) <= 8 {
		return strings.Repeat("*", len(v))
	}
	stars := len(v) - 8
	return v[:4] + strings.Repeat("*", stars) + v[len(v)-4:]
}

// maskPartial keeps the first and last character visible, matching
// spec.md §4.11's "first/last visible" policy for RRN/Terminal
// ID/Merchant ID.
func maskPartial(v string) string {
	if len(v) <= 2 {
		return v
	}
	middle := len(v) - 2
	return v[:1] + strings.Repeat("*", middle) + v[len(v)-1:]
}

// LogMessage logs an incoming or outgoing ISO 8583 message with its
// fields masked per policy (spec.md §4.11, data-flow step "C11 log
// incoming, masked").
func (l *Logger) LogMessage(level slog.Level, msg, mti string, fields map[int]string) {
	masked := MaskFields(fields)
	attrs := make([]any, 0, 2+len(masked)*2)
	attrs = append(attrs, "mti", mti)
	for n, v := range masked {
		attrs = append(attrs, fieldAttrName(n), v)
	}
	l.base.Log(context.Background(), level, msg, attrs...)
}

func fieldAttrName(n int) string {
	const digits = "0123456789"
	if n < 10 {
		return "f" + string(digits[n])
	}
	return "f" + itoa(n)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [4]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
