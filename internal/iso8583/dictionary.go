package iso8583

// FieldType identifies how a field's value is framed on the wire
// (spec.md §3 "Field-dictionary entry (D)").
type FieldType int

const (
	// FixedNumeric is ASCII digits, left-padded with '0' to Length chars.
	FixedNumeric FieldType = iota
	// FixedChar is ASCII, right-padded with ' ' to Length chars.
	FixedChar
	// FixedBinary is Length raw bytes, represented internally as a
	// hex string of Length*2 chars.
	FixedBinary
	// LLNum is a 2-digit decimal length header (digit count) followed
	// by that many ASCII digits, up to Length digits.
	LLNum
	// LLChar is a 2-digit decimal length header (char count) followed
	// by that many ASCII chars, up to Length chars.
	LLChar
	// LLLChar is a 3-digit decimal length header (char count) followed
	// by that many ASCII chars, up to Length chars.
	LLLChar
	// LLLBinary is a 3-digit decimal length header (byte count)
	// followed by that many raw bytes, represented internally as hex,
	// up to Length bytes.
	LLLBinary
)

// FieldDict is one field dictionary entry: its wire type and its
// maximum (variable-length) or exact (fixed-length) size.
type FieldDict struct {
	Number int
	Type   FieldType
	Length int // chars for Fixed*/LL*Char, bytes for *Binary
}

// Dictionary maps field numbers to their encoding rules and records
// whether this dialect carries the bitmap as binary bytes (Bank) or
// ASCII hex (POS). Dictionaries are built once at package init and
// never mutated afterward — safe to share across every session and
// worker goroutine (spec.md §4.5 "Shared-resource policy").
type Dictionary struct {
	Name         string
	Fields       map[int]FieldDict
	BinaryBitmap bool
}

func dict(entries []FieldDict, binaryBitmap bool, name string) *Dictionary {
	m := make(map[int]FieldDict, len(entries))
	for _, e := range entries {
		m[e.Number] = e
	}
	return &Dictionary{Name: name, Fields: m, BinaryBitmap: binaryBitmap}
}

// commonFields holds the field semantics shared by both dialects
// (spec.md §4.4). The two dictionaries below share this table; only
// the bitmap encoding differs between them, per spec.md §3.
var commonFields = []FieldDict{
	{2, LLNum, 19},
	{3, FixedNumeric, 6},
	{4, FixedNumeric, 12},
	{7, FixedNumeric, 10},
	{11, FixedNumeric, 6},
	{12, FixedNumeric, 6},
	{13, FixedNumeric, 4},
	{14, FixedNumeric, 4},
	{22, FixedNumeric, 3},
	{25, FixedNumeric, 2},
	{35, LLChar, 37},
	{37, FixedChar, 12},
	{38, FixedChar, 6},
	{39, FixedChar, 2},
	{41, FixedChar, 8},
	{42, FixedChar, 15},
	{43, FixedChar, 40},
	{49, FixedChar, 3},
	{52, FixedBinary, 8},
	// F53 carries free-form key-change/terminal-status text for MTI
	// 0800/0810 ("KEY_ID:<ref>", "STATUS:...,KEYS:...,CHANGES:...")
	// rather than the numeric security-control-info spec.md's field
	// list names it after; widened to FixedChar to hold that payload
	// (see DESIGN.md "Open Questions resolved").
	{53, FixedChar, 64},
	{55, LLLBinary, 255},
	// F64 is the primary bitmap's own message-authentication-code field
	// (the last field addressable by the primary bitmap alone) — also
	// gives the boundary between "primary bitmap only" and "secondary
	// bitmap present" (spec.md §8) a real dictionary entry to pack/
	// unpack through the public API instead of only bitmap64 internals.
	{64, FixedBinary, 8},
	{90, FixedChar, 42},
	{120, LLLChar, 999},
	{126, LLLChar, 999},
}

// POSDictionary is the terminal-facing field dictionary: ASCII-hex
// bitmap (16 chars), as configured for POS framing (spec.md §6).
var POSDictionary = dict(commonFields, false, "POS")

// BankDictionary is the bank-facing field dictionary: binary-packed
// bitmap (8 bytes) (spec.md §6).
var BankDictionary = dict(commonFields, true, "Bank")
