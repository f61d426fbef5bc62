package xltemplate

import (
	"regexp"
	"strconv"
	"strings"
)

// CellRef is a single A1-style cell address, optionally qualified by a sheet
// and with absolute ($) markers on either axis.
type CellRef struct {
	Sheet       string // sheet qualifier as written, quotes included (empty = none)
	ColAbsolute bool
	Col         string // column letters, A..XFD
	RowAbsolute bool
	Row         int // 1-based
}

// MaxColumns is the number of columns in a worksheet (A..XFD).
const MaxColumns = 16384

// refPattern matches "[Sheet!][$]COL[$]ROW". The sheet is either quoted or
// a plain word, so formulas combining several references do not match.
var refPattern = regexp.MustCompile(`^(?:('(?:[^']|'')+'|[\p{L}\p{N}_.]+)!)?(\$)?([A-Za-z]+)(\$)?([0-9]+)$`)

// ParseRef parses a cell reference like "B5", "$A$1" or "'My Sheet'!C3".
func ParseRef(s string) (CellRef, error) {
	m := refPattern.FindStringSubmatch(s)
	if m == nil {
		return CellRef{}, &MalformedReferenceError{Ref: s}
	}
	row, err := strconv.Atoi(m[5])
	if err != nil || row < 1 {
		return CellRef{}, &MalformedReferenceError{Ref: s}
	}
	if len(m[3]) > 3 || CharsToNumber(m[3]) > MaxColumns {
		return CellRef{}, &MalformedReferenceError{Ref: s}
	}
	return CellRef{
		Sheet:       m[1],
		ColAbsolute: m[2] != "",
		Col:         strings.ToUpper(m[3]),
		RowAbsolute: m[4] != "",
		Row:         row,
	}, nil
}

// String formats the reference back to text. The column is always uppercased.
func (c CellRef) String() string {
	var b strings.Builder
	if c.Sheet != "" {
		b.WriteString(c.Sheet)
		b.WriteByte('!')
	}
	if c.ColAbsolute {
		b.WriteByte('$')
	}
	b.WriteString(strings.ToUpper(c.Col))
	if c.RowAbsolute {
		b.WriteByte('$')
	}
	b.WriteString(strconv.Itoa(c.Row))
	return b.String()
}

// ColNumber returns the 1-based column number.
func (c CellRef) ColNumber() int {
	return CharsToNumber(c.Col)
}

// WithCol returns a copy of c moved to the given 1-based column.
func (c CellRef) WithCol(col int) CellRef {
	c.Col = NumberToChars(col)
	return c
}

// WithRow returns a copy of c moved to the given 1-based row.
func (c CellRef) WithRow(row int) CellRef {
	c.Row = row
	return c
}

// ShiftCols moves the reference n columns to the right.
func (c CellRef) ShiftCols(n int) CellRef {
	return c.WithCol(c.ColNumber() + n)
}

// ShiftRows moves the reference n rows down.
func (c CellRef) ShiftRows(n int) CellRef {
	c.Row += n
	return c
}

// NextColumn returns the reference one column to the right.
func (c CellRef) NextColumn() CellRef {
	return c.ShiftCols(1)
}

// NextRow returns the reference one row down.
func (c CellRef) NextRow() CellRef {
	return c.ShiftRows(1)
}

// CharsToNumber decodes bijective base-26 column letters.
// "A"→1, "Z"→26, "AA"→27
func CharsToNumber(letters string) int {
	n := 0
	for _, ch := range strings.ToUpper(letters) {
		n = n*26 + int(ch-'A') + 1
	}
	return n
}

// NumberToChars encodes a 1-based column number as letters.
// 1→"A", 26→"Z", 27→"AA", 703→"AAA"
func NumberToChars(n int) string {
	var buf [8]byte
	i := len(buf)
	for n > 0 {
		n--
		i--
		buf[i] = byte('A' + n%26)
		n /= 26
	}
	return string(buf[i:])
}

// Range is a rectangular area "START:END".
type Range struct {
	Start CellRef
	End   CellRef
}

// SplitRange splits "A1:C5" at the colon. A text without a colon is
// returned as both start and end.
func SplitRange(s string) (start, end string) {
	if i := strings.IndexByte(s, ':'); i >= 0 {
		return s[:i], s[i+1:]
	}
	return s, s
}

// JoinRange is the inverse of SplitRange.
func JoinRange(start, end string) string {
	return start + ":" + end
}

// IsRange reports whether the text has range form.
func IsRange(s string) bool {
	return strings.Contains(s, ":")
}

// ParseRange parses "A1:C5". A single reference yields a one-cell range.
func ParseRange(s string) (Range, error) {
	start, end := SplitRange(s)
	first, err := ParseRef(start)
	if err != nil {
		return Range{}, &MalformedReferenceError{Ref: s}
	}
	last, err := ParseRef(end)
	if err != nil {
		return Range{}, &MalformedReferenceError{Ref: s}
	}
	return Range{Start: first, End: last}, nil
}

// String formats the range as "START:END".
func (r Range) String() string {
	return JoinRange(r.Start.String(), r.End.String())
}

// ShiftCols moves both corners n columns to the right.
func (r Range) ShiftCols(n int) Range {
	return Range{Start: r.Start.ShiftCols(n), End: r.End.ShiftCols(n)}
}

// ShiftRows moves both corners n rows down.
func (r Range) ShiftRows(n int) Range {
	return Range{Start: r.Start.ShiftRows(n), End: r.End.ShiftRows(n)}
}

// Contains reports whether ref lies inside the range. Sheet qualifiers are ignored.
func (r Range) Contains(ref CellRef) bool {
	return IsWithin(ref, r.Start, r.End)
}

// IsWithin reports whether ref's row is in [start.Row, end.Row] and its
// column is in [start.Col, end.Col].
func IsWithin(ref, start, end CellRef) bool {
	col := ref.ColNumber()
	return start.Row <= ref.Row && ref.Row <= end.Row &&
		start.ColNumber() <= col && col <= end.ColNumber()
}
