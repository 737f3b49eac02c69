package bank

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/kevshake/mastergateway/internal/iso8583"
)

// fakeBankHost accepts one connection and echoes back a 0210 approval
// for whatever it receives, preserving STAN/date so the dispatcher's
// correlation succeeds.
func fakeBankHost(t *testing.T, ln net.Listener) {
	t.Helper()
	conn, err := ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		var lenBuf [4]byte
		if _, err := readFull(conn, lenBuf[:]); err != nil {
			return
		}
		n, _ := strconv.Atoi(string(lenBuf[:]))
		body := make([]byte, n)
		if _, err := readFull(conn, body); err != nil {
			return
		}

		req, err := iso8583.Unpack(iso8583.BankDictionary, body)
		if err != nil {
			return
		}
		resp := iso8583.NewMessage("0210")
		resp.CopyFieldsFrom(req, 2, 3, 4, 11, 13, 37, 41)
		resp.Set(39, "00")
		raw, err := iso8583.Pack(iso8583.BankDictionary, resp)
		if err != nil {
			return
		}
		header := []byte(paddedLen(len(raw)))
		conn.Write(header)
		conn.Write(raw)
	}
}

func paddedLen(n int) string {
	s := strconv.Itoa(n)
	for len(s) < 4 {
		s = "0" + s
	}
	return s
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func TestSubmitRoundTrip(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go fakeBankHost(t, ln)

	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)

	d := NewDispatcher(Config{
		Host:        host,
		Port:        port,
		TimeoutMs:   2000,
		MaxAttempts: 1,
	}, iso8583.BankDictionary, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	posMsg := iso8583.NewMessage("0200")
	posMsg.Set(2, "4532015112830366")
	posMsg.Set(3, "000000")
	posMsg.Set(4, "000000005000")
	posMsg.Set(11, "000123")
	posMsg.Set(13, "0731")
	posMsg.Set(41, "TERM0001")

	resp, err := d.Submit(ctx, posMsg)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if v, _ := resp.Get(39); v != "00" {
		t.Errorf("field 39 = %q, want 00", v)
	}
}

func TestSubmitTimesOutWhenHostSilent(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		time.Sleep(5 * time.Second) // never responds
	}()

	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)

	d := NewDispatcher(Config{
		Host:        host,
		Port:        port,
		TimeoutMs:   200,
		MaxAttempts: 1,
	}, iso8583.BankDictionary, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	posMsg := iso8583.NewMessage("0200")
	posMsg.Set(11, "000124")
	posMsg.Set(13, "0731")

	_, err = d.Submit(ctx, posMsg)
	if err == nil {
		t.Fatalf("expected timeout error")
	}
}
