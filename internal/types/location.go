package types

import "fmt"

// Position is a zero-based line/column pair, columns counted in bytes
type Position struct {
	Line   int
	Column int
}

// Less orders positions by line, then column
func (p Position) Less(o Position) bool {
	if p.Line != o.Line {
		return p.Line < o.Line
	}
	return p.Column < o.Column
}

// Range is the half-open source span of a declaration
type Range struct {
	Start Position
	End   Position
}

// String renders the range as 1-based line:col-line:col
func (r Range) String() string {
	return fmt.Sprintf("%d:%d-%d:%d", r.Start.Line+1, r.Start.Column+1, r.End.Line+1, r.End.Column+1)
}

// Contains reports whether p falls inside the range
func (r Range) Contains(p Position) bool {
	return !p.Less(r.Start) && p.Less(r.End)
}

// DocRef points at the declaration whose leading comments form its
// documentation. The text itself is read lazily from the file content.
type DocRef struct {
	Path string
	Line int // zero-based line of the declaration keyword
}

// IsZero reports whether the reference points nowhere
func (d DocRef) IsZero() bool {
	return d.Path == ""
}
