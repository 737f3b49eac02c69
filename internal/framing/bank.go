package framing

import (
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"
)

// MaxBankFrame bounds the ASCII-decimal length header (4 digits:
// spec.md §4.5 "4-char ASCII decimal length header").
const MaxBankFrame = 9999

// BankChannel is a single persistent outbound connection to the bank
// host, framed with the jPOS ASCIIChannel convention: a 4-ASCII-digit
// decimal length header followed by the body (spec.md §4.5 "Bank
// client"). Modeled on the teacher's Connection wrapper
// (pkg/ntag424/pcsc.go): Dial/Close/Send/Receive around one live I/O
// handle, reconnected lazily on demand rather than pooled.
type BankChannel struct {
	Host string
	Port int
	// DialTimeout bounds each connection attempt.
	DialTimeout time.Duration

	mu   sync.Mutex
	conn net.Conn
}

// Dial establishes the connection if not already connected. Reconnect
// is lazy: callers invoke Dial (directly or via Send) on demand rather
// than the channel maintaining a background keepalive (spec.md §4.5
// "Reconnect lazily on demand"). Receive never dials; it fails when
// there is no connection.
func (c *BankChannel) Dial() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dialLocked()
}

func (c *BankChannel) dialLocked() error {
	if c.conn != nil {
		return nil
	}
	addr := fmt.Sprintf("%s:%d", c.Host, c.Port)
	timeout := c.DialTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return fmt.Errorf("framing: dial bank %s: %w", addr, err)
	}
	c.conn = conn
	return nil
}

// Close drops the connection so the next Send reconnects.
func (c *BankChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *BankChannel) closeLocked() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// Send writes one ASCII-length-framed message. Send/Receive ordering
// is the caller's (the bank dispatcher's) responsibility to serialize
// (spec.md §4.5 "Send/receive ordering is serialized by the
// dispatcher").
func (c *BankChannel) Send(body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.dialLocked(); err != nil {
		return err
	}
	if len(body) > MaxBankFrame {
		c.closeLocked()
		return fmt.Errorf("framing: bank frame exceeds %d bytes", MaxBankFrame)
	}
	header := fmt.Sprintf("%04d", len(body))
	if _, err := c.conn.Write([]byte(header)); err != nil {
		c.closeLocked()
		return err
	}
	if _, err := c.conn.Write(body); err != nil {
		c.closeLocked()
		return err
	}
	return nil
}

// Receive reads one ASCII-length-framed message, applying deadline as
// the read timeout.
func (c *BankChannel) Receive(deadline time.Time) ([]byte, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil, fmt.Errorf("framing: bank channel not connected")
	}

	if !deadline.IsZero() {
		_ = conn.SetReadDeadline(deadline)
	}

	var lenBuf [4]byte
	if _, err := io.ReadFull(conn, lenBuf[:]); err != nil {
		c.Close()
		return nil, err
	}
	length, err := strconv.Atoi(string(lenBuf[:]))
	if err != nil || length < 0 || length > MaxBankFrame {
		c.Close()
		return nil, fmt.Errorf("framing: bad bank length header %q", lenBuf[:])
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(conn, body); err != nil {
		c.Close()
		return nil, err
	}
	return body, nil
}
