package patch

import (
	"fmt"
	"strings"
)

// Apply parses diffText and applies it to original, returning the patched
// text. Every context and deleted line must match the original exactly; on any
// failure the result is empty and the error is a *Error.
func Apply(diffText, original string) (string, error) {
	diff, err := Parse(diffText)
	if err != nil {
		return "", err
	}
	return diff.Apply(original)
}

// ApplyTo parses diffText and writes the patched text into dst, returning the
// number of bytes written. dst must hold at least OutputSize(len(original))
// bytes. On failure the contents of dst are unspecified.
func ApplyTo(diffText, original string, dst []byte) (int, error) {
	diff, err := Parse(diffText)
	if err != nil {
		return 0, err
	}
	return diff.ApplyTo(original, dst)
}

// TryApply is ApplyTo for callers that only need a success flag, such as
// tight loops checking many candidates.
func TryApply(diffText, original string, dst []byte) (bool, int) {
	n, err := ApplyTo(diffText, original, dst)
	if err != nil {
		return false, 0
	}
	return true, n
}

// Apply applies the parsed diff to original.
func (d *UnifiedDiff) Apply(original string) (string, error) {
	size := d.OutputSize(len(original))
	out := &builderOutput{}
	out.b.Grow(size)
	if err := d.walk(original, out); err != nil {
		return "", err
	}
	if out.b.Len() != size {
		return "", sizeMismatch(size, out.b.Len())
	}
	return out.b.String(), nil
}

// ApplyTo applies the parsed diff to original, writing into dst.
func (d *UnifiedDiff) ApplyTo(original string, dst []byte) (int, error) {
	size := d.OutputSize(len(original))
	if len(dst) < size {
		return 0, &Error{
			Message: fmt.Sprintf("destination holds %d bytes but the patched text needs %d", len(dst), size),
			Code:    CodeBufferTooSmall,
		}
	}
	out := &sliceOutput{buf: dst[:size]}
	if err := d.walk(original, out); err != nil {
		return 0, err
	}
	if out.n != size {
		return 0, sizeMismatch(size, out.n)
	}
	return out.n, nil
}

// lineOutput receives patched text. Each write is one line or a run of
// pass-through lines; implementations insert the separator between writes.
type lineOutput interface {
	writeLine(s string) error
}

type builderOutput struct {
	b       strings.Builder
	started bool
}

func (o *builderOutput) writeLine(s string) error {
	if o.started {
		o.b.WriteByte('\n')
	}
	o.started = true
	o.b.WriteString(s)
	return nil
}

type sliceOutput struct {
	buf     []byte
	n       int
	started bool
}

func (o *sliceOutput) writeLine(s string) error {
	need := len(s)
	if o.started {
		need++
	}
	if o.n+need > len(o.buf) {
		return sizeMismatch(len(o.buf), o.n+need)
	}
	if o.started {
		o.buf[o.n] = '\n'
		o.n++
	}
	o.started = true
	o.n += copy(o.buf[o.n:], s)
	return nil
}

func sizeMismatch(want, got int) *Error {
	return &Error{
		Message: fmt.Sprintf("patched text is %d bytes but %d were expected", got, want),
		Code:    CodeSizeMismatch,
	}
}

// walk visits original line by line. Untouched lines accumulate into a
// pass-through span that is written in one piece at the next change or at the
// end of the text.
func (d *UnifiedDiff) walk(original string, out lineOutput) error {
	if lines := strings.Count(original, "\n") + 1; lines < d.lastLine {
		return beyondEnd(d.lastLine, lines)
	}

	spanStart, spanEnd := -1, -1
	lineNumber := 0
	pos := 0
	for {
		lineNumber++
		end := len(original)
		last := true
		if i := strings.IndexByte(original[pos:], '\n'); i >= 0 {
			end = pos + i
			last = false
		}
		line := original[pos:end]

		if ops, ok := d.index[lineNumber]; ok {
			if spanStart >= 0 {
				if err := out.writeLine(original[spanStart:spanEnd]); err != nil {
					return err
				}
				spanStart = -1
			}
			if err := applyOperations(ops, line, lineNumber, out.writeLine); err != nil {
				return err
			}
		} else {
			if spanStart < 0 {
				spanStart = pos
			}
			spanEnd = end
		}

		if last {
			break
		}
		pos = end + 1
	}

	if spanStart >= 0 {
		return out.writeLine(original[spanStart:spanEnd])
	}
	return nil
}

// applyOperations runs the operations attached to one original line.
func applyOperations(ops []LineOperation, line string, lineNumber int, emit func(string) error) error {
	for _, op := range ops {
		switch op.Op {
		case Equal:
			if op.Text != line {
				return mismatchError(lineNumber, op.Text, line)
			}
			if err := emit(line); err != nil {
				return err
			}
		case Delete:
			if op.Text != line {
				return mismatchError(lineNumber, op.Text, line)
			}
		case Insert:
			if err := emit(op.Text); err != nil {
				return err
			}
		}
	}
	return nil
}

func beyondEnd(line, available int) *Error {
	return &Error{
		Message:      fmt.Sprintf("patch refers to line %d but the original text has only %d lines", line, available),
		Code:         CodeContentMismatch,
		OriginalLine: line,
	}
}
