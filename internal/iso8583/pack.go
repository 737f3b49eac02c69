package iso8583

import (
	"encoding/hex"
	"fmt"
	"sort"
)

// Pack encodes m per dict: 4-char MTI, primary (and secondary, when
// needed) bitmap, then each present field in ascending number order
// (spec.md §4.4 "Pack algorithm").
func Pack(dict *Dictionary, m *Message) ([]byte, error) {
	if len(m.MTI) != 4 {
		return nil, &FramingError{Reason: "MTI must be 4 chars"}
	}

	numbers := presentFieldNumbers(m)
	var primary, secondary bitmap64
	hasSecondary := false
	for _, n := range numbers {
		if n <= 1 {
			continue // field 1 is the secondary-bitmap indicator, not user data
		}
		if n <= 64 {
			primary.set(n)
		} else if n <= 128 {
			secondary.set(n - 64)
			hasSecondary = true
		} else {
			return nil, &FieldDecodeError{Number: n, Reason: "field number out of range"}
		}
	}
	if hasSecondary {
		primary.set(1)
	}

	out := make([]byte, 0, 128)
	out = append(out, []byte(m.MTI)...)
	out = append(out, primary.encode(dict.BinaryBitmap)...)
	if hasSecondary {
		out = append(out, secondary.encode(dict.BinaryBitmap)...)
	}

	for _, n := range numbers {
		if n <= 1 {
			continue
		}
		entry, ok := dict.Fields[n]
		if !ok {
			return nil, &FieldDecodeError{Number: n, Reason: "field not defined by dictionary"}
		}
		encoded, err := encodeField(entry, m.Fields[n])
		if err != nil {
			return nil, err
		}
		out = append(out, encoded...)
	}
	return out, nil
}

func presentFieldNumbers(m *Message) []int {
	numbers := make([]int, 0, len(m.Fields))
	for n := range m.Fields {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	return numbers
}

func encodeField(entry FieldDict, value string) ([]byte, error) {
	switch entry.Type {
	case FixedNumeric:
		if len(value) > entry.Length {
			return nil, &FieldDecodeError{Number: entry.Number, Reason: "value exceeds fixed length"}
		}
		return []byte(padLeft(value, entry.Length, '0')), nil
	case FixedChar:
		if len(value) > entry.Length {
			return nil, &FieldDecodeError{Number: entry.Number, Reason: "value exceeds fixed length"}
		}
		return []byte(padRight(value, entry.Length, ' ')), nil
	case FixedBinary:
		raw, err := hex.DecodeString(value)
		if err != nil || len(raw) != entry.Length {
			return nil, &FieldDecodeError{Number: entry.Number, Reason: "value must be exactly-length hex"}
		}
		return raw, nil
	case LLNum, LLChar:
		if len(value) > entry.Length || len(value) > 99 {
			return nil, &FieldDecodeError{Number: entry.Number, Reason: "value exceeds LL length"}
		}
		return append([]byte(fmt.Sprintf("%02d", len(value))), value...), nil
	case LLLChar:
		if len(value) > entry.Length || len(value) > 999 {
			return nil, &FieldDecodeError{Number: entry.Number, Reason: "value exceeds LLL length"}
		}
		return append([]byte(fmt.Sprintf("%03d", len(value))), value...), nil
	case LLLBinary:
		raw, err := hex.DecodeString(value)
		if err != nil || len(raw) > entry.Length {
			return nil, &FieldDecodeError{Number: entry.Number, Reason: "invalid LLL-binary value"}
		}
		header := []byte(fmt.Sprintf("%03d", len(raw)))
		return append(header, raw...), nil
	default:
		return nil, &FieldDecodeError{Number: entry.Number, Reason: "unknown field type"}
	}
}

func padLeft(s string, n int, pad byte) string {
	if len(s) >= n {
		return s
	}
	out := make([]byte, n)
	offset := n - len(s)
	for i := 0; i < offset; i++ {
		out[i] = pad
	}
	copy(out[offset:], s)
	return string(out)
}

func padRight(s string, n int, pad byte) string {
	if len(s) >= n {
		return s
	}
	out := make([]byte, n)
	copy(out, s)
	for i := len(s); i < n; i++ {
		out[i] = pad
	}
	return string(out)
}
