package tui

import (
	"fmt"
	"strings"

	"github.com/asynkron/strictpatch/pkg/patch"
)

// RowKind classifies a line in the annotated view.
type RowKind int

const (
	RowUnchanged RowKind = iota
	RowContext
	RowDelete
	RowInsert
)

// Row is one line of the annotated view. OldLine and NewLine are 1-based and
// zero when the line does not exist on that side.
type Row struct {
	Kind    RowKind
	OldLine int
	NewLine int
	Text    string
}

// Changed reports whether the row is an insertion or deletion.
func (r Row) Changed() bool {
	return r.Kind == RowDelete || r.Kind == RowInsert
}

// Stats counts the changes shown in a view.
type Stats struct {
	Hunks      int
	Inserted   int
	Deleted    int
	OutputSize int
}

// BuildView checks that diff applies to original and returns every original
// and output line annotated with its fate.
func BuildView(diff *patch.UnifiedDiff, original string) ([]Row, Stats, error) {
	if _, err := diff.Apply(original); err != nil {
		return nil, Stats{}, err
	}

	stats := Stats{
		Hunks:      len(diff.Hunks()),
		OutputSize: diff.OutputSize(len(original)),
	}
	lines := strings.Split(original, "\n")
	rows := make([]Row, 0, len(lines))
	newLine := 0
	for i, line := range lines {
		oldLine := i + 1
		ops, touched := diff.Operations(oldLine)
		if !touched {
			newLine++
			rows = append(rows, Row{Kind: RowUnchanged, OldLine: oldLine, NewLine: newLine, Text: line})
			continue
		}
		for _, op := range ops {
			switch op.Op {
			case patch.Equal:
				newLine++
				rows = append(rows, Row{Kind: RowContext, OldLine: oldLine, NewLine: newLine, Text: op.Text})
			case patch.Delete:
				stats.Deleted++
				rows = append(rows, Row{Kind: RowDelete, OldLine: oldLine, Text: op.Text})
			case patch.Insert:
				newLine++
				stats.Inserted++
				rows = append(rows, Row{Kind: RowInsert, NewLine: newLine, Text: op.Text})
			}
		}
	}
	return rows, stats, nil
}

// Summary renders stats as a short markdown document.
func Summary(title string, stats Stats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "- **%d** hunk%s\n", stats.Hunks, plural(stats.Hunks))
	fmt.Fprintf(&b, "- **+%d** / **-%d** lines\n", stats.Inserted, stats.Deleted)
	fmt.Fprintf(&b, "- patched size **%d** bytes\n", stats.OutputSize)
	return b.String()
}

// NextChange returns the index of the first changed row after from, or -1.
func NextChange(rows []Row, from int) int {
	for i := from + 1; i < len(rows); i++ {
		if rows[i].Changed() && (i == 0 || !rows[i-1].Changed()) {
			return i
		}
	}
	return -1
}

// PrevChange returns the index of the start of the change block before from,
// or -1.
func PrevChange(rows []Row, from int) int {
	for i := min(from, len(rows)) - 1; i >= 0; i-- {
		if rows[i].Changed() && (i == 0 || !rows[i-1].Changed()) {
			return i
		}
	}
	return -1
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
