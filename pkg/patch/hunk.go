package patch

import "strings"

// Operation identifies what a single diff line does to the original text.
type Operation uint8

const (
	// Equal keeps an original line (prefix ' ').
	Equal Operation = iota
	// Delete drops an original line (prefix '-').
	Delete
	// Insert adds a line that has no original counterpart (prefix '+').
	Insert
)

func (o Operation) String() string {
	switch o {
	case Equal:
		return "equal"
	case Delete:
		return "delete"
	case Insert:
		return "insert"
	default:
		return "unknown"
	}
}

// Prefix returns the unified-diff prefix byte for the operation.
func (o Operation) Prefix() byte {
	switch o {
	case Delete:
		return '-'
	case Insert:
		return '+'
	default:
		return ' '
	}
}

// consumesOriginal reports whether the operation walks past an original line.
func (o Operation) consumesOriginal() bool { return o != Insert }

// producesOutput reports whether the operation contributes an output line.
func (o Operation) producesOutput() bool { return o != Delete }

func operationForPrefix(prefix byte) (Operation, bool) {
	switch prefix {
	case ' ':
		return Equal, true
	case '-':
		return Delete, true
	case '+':
		return Insert, true
	default:
		return 0, false
	}
}

// LineOperation is one body line of a hunk. Text is the line content after the
// prefix and shares memory with the diff text it was parsed from.
type LineOperation struct {
	Op   Operation
	Text string
}

func (l LineOperation) String() string {
	return string(l.Op.Prefix()) + l.Text
}

// Hunk groups the operations of one "@@" block by the original line number they
// are attached to.
type Hunk struct {
	Header HunkHeader

	buckets [][]LineOperation
	cursor  int
	countA  int
	countB  int
}

func newHunk(header HunkHeader) *Hunk {
	return &Hunk{
		Header:  header,
		buckets: make([][]LineOperation, max(header.LengthA, 1)),
		cursor:  header.StartA - 1,
	}
}

// addOperation attaches op to a line bucket. Original-side operations advance
// the cursor; inserts stick to the current line, or to the first line of the
// hunk when no original line has been seen yet so they are emitted before it.
func (h *Hunk) addOperation(op LineOperation) *Error {
	if op.Op.consumesOriginal() {
		if h.cursor+1 > h.lastLine() {
			return &Error{
				Message: "hunk has more original-side lines than its header declares " + h.Header.String(),
				Code:    CodeHunkLengthMismatch,
			}
		}
		h.cursor++
		h.countA++
	}
	if op.Op.producesOutput() {
		h.countB++
	}
	line := max(h.cursor, h.Header.StartA)
	idx := line - h.Header.StartA
	h.buckets[idx] = append(h.buckets[idx], op)
	return nil
}

func (h *Hunk) lengthsAreConsistent() bool {
	return h.countA == h.Header.LengthA && h.countB == h.Header.LengthB
}

// lastLine is the highest original line number owned by the hunk.
func (h *Hunk) lastLine() int {
	return h.Header.StartA + len(h.buckets) - 1
}

// Operations returns the operations attached to an original line number.
func (h *Hunk) Operations(line int) ([]LineOperation, bool) {
	idx := line - h.Header.StartA
	if idx < 0 || idx >= len(h.buckets) {
		return nil, false
	}
	return h.buckets[idx], true
}

// Len reports how many body lines the hunk holds.
func (h *Hunk) Len() int {
	n := 0
	for _, bucket := range h.buckets {
		n += len(bucket)
	}
	return n
}

// String renders the hunk back into unified-diff text, one line per operation.
func (h *Hunk) String() string {
	var b strings.Builder
	b.WriteString(h.Header.String())
	for _, bucket := range h.buckets {
		for _, op := range bucket {
			b.WriteByte('\n')
			b.WriteString(op.String())
		}
	}
	return b.String()
}
