package iso8583

import (
	"encoding/hex"
	"strconv"
)

// Unpack decodes raw per dict, mirroring Pack. It stops at the first
// protocol-fatal error (bad length, non-numeric where numeric is
// required, a bitmap bit referencing a field the dictionary doesn't
// define) and never returns a partial message (spec.md §4.4).
func Unpack(dict *Dictionary, raw []byte) (*Message, error) {
	if len(raw) < 4 {
		return nil, &FramingError{Reason: "message shorter than MTI"}
	}
	m := NewMessage(string(raw[:4]))
	for _, c := range m.MTI {
		if c < '0' || c > '9' {
			return nil, &FramingError{Reason: "MTI must be numeric"}
		}
	}
	pos := 4

	primary, n, err := decodeBitmap(raw[pos:], dict.BinaryBitmap)
	if err != nil {
		return nil, err
	}
	pos += n

	var secondary bitmap64
	if primary.isSet(1) {
		secondary, n, err = decodeBitmap(raw[pos:], dict.BinaryBitmap)
		if err != nil {
			return nil, err
		}
		pos += n
	}

	for field := 2; field <= 64; field++ {
		if !primary.isSet(field) {
			continue
		}
		pos, err = unpackOneField(dict, m, field, raw, pos)
		if err != nil {
			return nil, annotateMTI(err, m.MTI)
		}
	}
	for field := 1; field <= 64; field++ {
		if !secondary.isSet(field) {
			continue
		}
		pos, err = unpackOneField(dict, m, field+64, raw, pos)
		if err != nil {
			return nil, annotateMTI(err, m.MTI)
		}
	}
	return m, nil
}

// annotateMTI stamps a FieldDecodeError with the request MTI so the
// router can still build the mandated "30" reply (spec.md §7); other
// error kinds (FramingError) pass through unchanged.
func annotateMTI(err error, mti string) error {
	if fde, ok := err.(*FieldDecodeError); ok {
		fde.MTI = mti
	}
	return err
}

func unpackOneField(dict *Dictionary, m *Message, number int, raw []byte, pos int) (int, error) {
	entry, ok := dict.Fields[number]
	if !ok {
		return 0, &FieldDecodeError{Number: number, Reason: "bitmap references field not defined by dictionary"}
	}

	switch entry.Type {
	case FixedNumeric:
		v, newPos, err := readFixed(raw, pos, entry.Length)
		if err != nil {
			return 0, &FieldDecodeError{Number: number, Reason: err.Error()}
		}
		for _, c := range v {
			if c < '0' || c > '9' {
				return 0, &FieldDecodeError{Number: number, Reason: "non-numeric in numeric field"}
			}
		}
		m.Set(number, v)
		return newPos, nil

	case FixedChar:
		v, newPos, err := readFixed(raw, pos, entry.Length)
		if err != nil {
			return 0, &FieldDecodeError{Number: number, Reason: err.Error()}
		}
		m.Set(number, v)
		return newPos, nil

	case FixedBinary:
		v, newPos, err := readFixed(raw, pos, entry.Length)
		if err != nil {
			return 0, &FieldDecodeError{Number: number, Reason: err.Error()}
		}
		m.Set(number, hexUpper([]byte(v)))
		return newPos, nil

	case LLNum, LLChar:
		length, newPos, err := readLengthHeader(raw, pos, 2)
		if err != nil {
			return 0, &FieldDecodeError{Number: number, Reason: err.Error()}
		}
		if length > entry.Length {
			return 0, &FieldDecodeError{Number: number, Reason: "length exceeds dictionary maximum"}
		}
		v, newPos2, err := readFixed(raw, newPos, length)
		if err != nil {
			return 0, &FieldDecodeError{Number: number, Reason: err.Error()}
		}
		if entry.Type == LLNum {
			for _, c := range v {
				if c < '0' || c > '9' {
					return 0, &FieldDecodeError{Number: number, Reason: "non-numeric in LL-num field"}
				}
			}
		}
		m.Set(number, v)
		return newPos2, nil

	case LLLChar:
		length, newPos, err := readLengthHeader(raw, pos, 3)
		if err != nil {
			return 0, &FieldDecodeError{Number: number, Reason: err.Error()}
		}
		if length > entry.Length {
			return 0, &FieldDecodeError{Number: number, Reason: "length exceeds dictionary maximum"}
		}
		v, newPos2, err := readFixed(raw, newPos, length)
		if err != nil {
			return 0, &FieldDecodeError{Number: number, Reason: err.Error()}
		}
		m.Set(number, v)
		return newPos2, nil

	case LLLBinary:
		length, newPos, err := readLengthHeader(raw, pos, 3)
		if err != nil {
			return 0, &FieldDecodeError{Number: number, Reason: err.Error()}
		}
		if length > entry.Length {
			return 0, &FieldDecodeError{Number: number, Reason: "length exceeds dictionary maximum"}
		}
		v, newPos2, err := readFixed(raw, newPos, length)
		if err != nil {
			return 0, &FieldDecodeError{Number: number, Reason: err.Error()}
		}
		m.Set(number, hexUpper([]byte(v)))
		return newPos2, nil

	default:
		return 0, &FieldDecodeError{Number: number, Reason: "unknown field type"}
	}
}

func readFixed(raw []byte, pos, length int) (string, int, error) {
	if pos+length > len(raw) {
		return "", 0, errShortField
	}
	return string(raw[pos : pos+length]), pos + length, nil
}

func readLengthHeader(raw []byte, pos, headerLen int) (int, int, error) {
	if pos+headerLen > len(raw) {
		return 0, 0, errShortField
	}
	digits := raw[pos : pos+headerLen]
	for _, c := range digits {
		if c < '0' || c > '9' {
			return 0, 0, errBadLengthHeader
		}
	}
	n, err := strconv.Atoi(string(digits))
	if err != nil {
		return 0, 0, errBadLengthHeader
	}
	return n, pos + headerLen, nil
}

func hexUpper(b []byte) string {
	s := hex.EncodeToString(b)
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'f' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

var (
	errShortField      = errShort{}
	errBadLengthHeader = errBadHeader{}
)

type errShort struct{}

func (errShort) Error() string { return "message truncated before field boundary" }

type errBadHeader struct{}

func (errBadHeader) Error() string { return "non-numeric length header" }
