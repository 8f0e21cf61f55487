package patch

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"

	"golang.org/x/sync/errgroup"
)

// LineSource yields the original text one line at a time, without separators.
// ReadLine returns io.EOF once every line has been produced.
type LineSource interface {
	ReadLine(ctx context.Context) (string, error)
}

// LineSink receives patched lines in output order.
type LineSink interface {
	WriteLine(ctx context.Context, line string) error
}

type flusher interface {
	Flush() error
}

// ApplyStream parses diffText and applies it to the lines produced by src,
// writing the patched lines to dst. Reading, deciding and writing run in
// separate goroutines joined by single-slot channels, so the next original
// line is read while the previous output line is being written.
//
// If dst has a Flush() error method it is called after the last line.
func ApplyStream(ctx context.Context, diffText string, src LineSource, dst LineSink) error {
	diff, err := Parse(diffText)
	if err != nil {
		return err
	}
	return diff.ApplyStream(ctx, src, dst)
}

// ApplyStream applies the parsed diff to a line stream. See ApplyStream.
func (d *UnifiedDiff) ApplyStream(ctx context.Context, src LineSource, dst LineSink) error {
	if src == nil || dst == nil {
		return errors.New("nil line source or sink")
	}

	g, gctx := errgroup.WithContext(ctx)
	in := make(chan string, 1)
	out := make(chan string, 1)

	// The channels are closed only on success; on failure the other stages
	// observe the cancelled group context instead.
	g.Go(func() error {
		for {
			line, err := src.ReadLine(gctx)
			if errors.Is(err, io.EOF) {
				close(in)
				return nil
			}
			if err != nil {
				return ioError(err)
			}
			select {
			case in <- line:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	g.Go(func() error {
		emit := func(line string) error {
			select {
			case out <- line:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		lineNumber := 0
		for {
			var (
				line string
				ok   bool
			)
			select {
			case line, ok = <-in:
			case <-gctx.Done():
				return gctx.Err()
			}
			if !ok {
				break
			}
			lineNumber++
			ops, touched := d.index[lineNumber]
			if !touched {
				if err := emit(line); err != nil {
					return err
				}
				continue
			}
			if err := applyOperations(ops, line, lineNumber, emit); err != nil {
				return err
			}
		}
		if lineNumber < d.lastLine {
			return beyondEnd(d.lastLine, lineNumber)
		}
		close(out)
		return nil
	})

	g.Go(func() error {
		for {
			select {
			case line, ok := <-out:
				if !ok {
					return nil
				}
				if err := dst.WriteLine(gctx, line); err != nil {
					return ioError(err)
				}
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	if err := g.Wait(); err != nil {
		return err
	}
	if f, ok := dst.(flusher); ok {
		if err := f.Flush(); err != nil {
			return ioError(err)
		}
	}
	return nil
}

// ReaderSource splits an io.Reader on '\n'. Like strings.Split, a reader that
// ends with a separator yields a final empty line, and an empty reader yields
// a single empty line.
type ReaderSource struct {
	r    *bufio.Reader
	done bool
}

// NewReaderSource wraps r as a LineSource.
func NewReaderSource(r io.Reader) *ReaderSource {
	return &ReaderSource{r: bufio.NewReader(r)}
}

// ReadLine implements LineSource.
func (s *ReaderSource) ReadLine(ctx context.Context) (string, error) {
	if s.done {
		return "", io.EOF
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	line, err := s.r.ReadString('\n')
	if errors.Is(err, io.EOF) {
		s.done = true
		return line, nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(line, "\n"), nil
}

// WriterSink joins written lines with '\n' on an io.Writer. No separator
// follows the last line, so the output mirrors the buffered Apply result.
type WriterSink struct {
	w       *bufio.Writer
	started bool
	written int64
}

// NewWriterSink wraps w as a LineSink. Call Flush (ApplyStream does) to push
// buffered output to w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: bufio.NewWriter(w)}
}

// WriteLine implements LineSink.
func (s *WriterSink) WriteLine(ctx context.Context, line string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.started {
		if err := s.w.WriteByte('\n'); err != nil {
			return err
		}
		s.written++
	}
	s.started = true
	n, err := s.w.WriteString(line)
	s.written += int64(n)
	return err
}

// Flush writes any buffered data to the underlying writer.
func (s *WriterSink) Flush() error {
	return s.w.Flush()
}

// Written reports how many bytes have been accepted so far.
func (s *WriterSink) Written() int64 {
	return s.written
}
