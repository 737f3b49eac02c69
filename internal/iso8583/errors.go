package iso8583

import "fmt"

// FieldDecodeError reports a protocol-fatal problem unpacking field
// Number. The unpacker stops at the first such error; partial messages
// are never returned (spec.md §4.4). MTI carries the already-decoded
// request MTI so a caller can still build the mandated reply (spec.md
// §7: "FieldDecodeError(N) -> reply MTI = next even MTI of request,
// F39=\"30\"") even though the field itself failed to decode.
type FieldDecodeError struct {
	MTI    string
	Number int
	Reason string
}

func (e *FieldDecodeError) Error() string {
	return fmt.Sprintf("iso8583: field %d: %s", e.Number, e.Reason)
}

// FramingError reports a malformed bitmap or MTI at the message level,
// not attributable to a single field.
type FramingError struct {
	Reason string
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("iso8583: %s", e.Reason)
}
