package patch

import (
	"slices"
	"strings"
)

// UnifiedDiff is a parsed, validated unified diff. It is immutable once Parse
// returns and safe for concurrent readers.
type UnifiedDiff struct {
	hunks    []*Hunk
	index    map[int][]LineOperation
	delta    int
	lastLine int
}

// Hunks returns the hunks in the order they appeared in the diff text.
func (d *UnifiedDiff) Hunks() []*Hunk {
	return slices.Clone(d.hunks)
}

// Operations returns the operations attached to a 1-based original line number.
func (d *UnifiedDiff) Operations(line int) ([]LineOperation, bool) {
	ops, ok := d.index[line]
	return ops, ok
}

// LineNumbers returns every original line number touched by the diff, ascending.
func (d *UnifiedDiff) LineNumbers() []int {
	lines := make([]int, 0, len(d.index))
	for line := range d.index {
		lines = append(lines, line)
	}
	slices.Sort(lines)
	return lines
}

// CharacterDelta is the byte length of inserted lines minus deleted lines, each
// counted with its line separator.
func (d *UnifiedDiff) CharacterDelta() int { return d.delta }

// LastLine is the highest original line number the diff refers to, or 0 for a
// diff without hunks.
func (d *UnifiedDiff) LastLine() int { return d.lastLine }

// OutputSize returns the exact length of the patched text for an original of
// originalLen bytes. A patch that deletes every line yields 0.
func (d *UnifiedDiff) OutputSize(originalLen int) int {
	return max(originalLen+d.delta, 0)
}

type parseState int

const (
	stateFileHeader1 parseState = iota
	stateFileHeader2
	stateBetweenHunks
	stateInHunk
)

// parser is the accumulator threaded through one Parse call.
type parser struct {
	state      parseState
	diff       *UnifiedDiff
	hunk       *Hunk
	hunkLine   int
	hunkLines  []int
	hunkHeader string
}

// Parse validates diffText and builds its line-number index.
//
// The text must start with a "---" line and a "+++" line; file names are not
// interpreted. Every following line is a hunk header ("@...") or a body line
// prefixed with ' ', '-' or '+'. A single empty segment after a final newline
// is ignored.
func Parse(diffText string) (*UnifiedDiff, error) {
	p := &parser{
		state: stateFileHeader1,
		diff:  &UnifiedDiff{},
	}

	lineNumber := 0
	rest := diffText
	for {
		lineNumber++
		line, tail, more := strings.Cut(rest, "\n")
		if !more && line == "" && lineNumber > 1 && p.state >= stateBetweenHunks {
			// Empty segment after the final newline.
			break
		}
		if err := p.consume(lineNumber, line); err != nil {
			return nil, err
		}
		if !more {
			break
		}
		rest = tail
	}

	if p.state < stateBetweenHunks {
		return nil, parseError(CodeMalformedHeader, lineNumber, "", "unified diff text does not begin with the standard header")
	}
	if err := p.closeHunk(); err != nil {
		return nil, err
	}
	if err := p.buildIndex(); err != nil {
		return nil, err
	}
	return p.diff, nil
}

func (p *parser) consume(lineNumber int, line string) *Error {
	switch p.state {
	case stateFileHeader1:
		if !strings.HasPrefix(line, "---") {
			return parseError(CodeMalformedHeader, lineNumber, line, "unified diff text does not begin with the standard header")
		}
		p.state = stateFileHeader2
		return nil
	case stateFileHeader2:
		if !strings.HasPrefix(line, "+++") {
			return parseError(CodeMalformedHeader, lineNumber, line, "unified diff text does not begin with the standard header")
		}
		p.state = stateBetweenHunks
		return nil
	}

	if strings.HasPrefix(line, "@") {
		if err := p.closeHunk(); err != nil {
			return err
		}
		header, err := ParseHunkHeader(line)
		if err != nil {
			pe := err.(*Error)
			pe.Line = lineNumber
			return pe
		}
		p.hunk = newHunk(header)
		p.hunkLine = lineNumber
		p.hunkHeader = line
		p.state = stateInHunk
		return nil
	}

	if line == "" {
		return parseError(CodeMalformedLine, lineNumber, line, "line %d does not begin with a standard prefix", lineNumber)
	}
	if line[0] == '\\' {
		return parseError(CodeUnsupportedFeature, lineNumber, line, "'no newline at end of file' markers are not supported")
	}
	op, ok := operationForPrefix(line[0])
	if !ok {
		return parseError(CodeMalformedLine, lineNumber, line, "line %d does not begin with a standard prefix", lineNumber)
	}
	if p.state != stateInHunk {
		return parseError(CodeMalformedLine, lineNumber, line, "line operation found before any hunk")
	}

	text := line[1:]
	if err := p.hunk.addOperation(LineOperation{Op: op, Text: text}); err != nil {
		err.Line = lineNumber
		err.LineText = line
		return err
	}
	switch op {
	case Insert:
		p.diff.delta += len(line)
	case Delete:
		p.diff.delta -= len(line)
	}
	return nil
}

// closeHunk validates the open hunk, if any, and moves it into the diff.
func (p *parser) closeHunk() *Error {
	if p.hunk == nil {
		return nil
	}
	hunk := p.hunk
	p.hunk = nil
	p.state = stateBetweenHunks
	if !hunk.lengthsAreConsistent() {
		return parseError(CodeHunkLengthMismatch, p.hunkLine, p.hunkHeader,
			"hunk header declares %d original and %d output lines but the body has %d and %d",
			hunk.Header.LengthA, hunk.Header.LengthB, hunk.countA, hunk.countB)
	}
	p.diff.hunks = append(p.diff.hunks, hunk)
	p.hunkLines = append(p.hunkLines, p.hunkLine)
	return nil
}

func (p *parser) buildIndex() *Error {
	total := 0
	for _, hunk := range p.diff.hunks {
		total += len(hunk.buckets)
	}
	index := make(map[int][]LineOperation, total)
	for i, hunk := range p.diff.hunks {
		for offset, bucket := range hunk.buckets {
			line := hunk.Header.StartA + offset
			if _, exists := index[line]; exists {
				return parseError(CodeOverlappingHunks, p.hunkLines[i], hunk.Header.String(),
					"patch has overlapping hunks for line number %d", line)
			}
			index[line] = bucket
			p.diff.lastLine = max(p.diff.lastLine, line)
		}
	}
	p.diff.index = index
	return nil
}
