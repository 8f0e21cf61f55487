package patch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type sliceSource struct {
	lines  []string
	next   int
	err    error
	failAt int
}

func (s *sliceSource) ReadLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.err != nil && s.next == s.failAt {
		return "", s.err
	}
	if s.next >= len(s.lines) {
		return "", io.EOF
	}
	line := s.lines[s.next]
	s.next++
	return line, nil
}

type collectSink struct {
	lines   []string
	err     error
	flushed bool
}

func (s *collectSink) WriteLine(_ context.Context, line string) error {
	if s.err != nil {
		return s.err
	}
	s.lines = append(s.lines, line)
	return nil
}

func (s *collectSink) Flush() error {
	s.flushed = true
	return nil
}

func TestApplyStreamMatchesApply(t *testing.T) {
	t.Parallel()

	for _, tc := range applyCases() {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			src := &sliceSource{lines: strings.Split(tc.original, "\n")}
			sink := &collectSink{}
			require.NoError(t, ApplyStream(context.Background(), tc.diff, src, sink))
			require.True(t, sink.flushed)
			if tc.want == "" {
				require.Empty(t, sink.lines)
				return
			}
			require.Equal(t, tc.want, strings.Join(sink.lines, "\n"))
		})
	}
}

func TestApplyStreamOverReaderAndWriter(t *testing.T) {
	t.Parallel()

	for _, tc := range applyCases() {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var out bytes.Buffer
			sink := NewWriterSink(&out)
			err := ApplyStream(context.Background(), tc.diff, NewReaderSource(strings.NewReader(tc.original)), sink)
			require.NoError(t, err)
			require.Equal(t, tc.want, out.String())
			require.EqualValues(t, len(tc.want), sink.Written())
		})
	}
}

func TestApplyStreamReportsMismatch(t *testing.T) {
	t.Parallel()

	src := &sliceSource{lines: []string{"a", "b", "c"}}
	err := ApplyStream(context.Background(), diffText("@@ -2 +2 @@", "-x", "+y"), src, &collectSink{})
	var pe *Error
	require.ErrorAs(t, err, &pe)
	require.Equal(t, CodeContentMismatch, pe.Code)
	require.Equal(t, 2, pe.OriginalLine)
}

func TestApplyStreamReportsShortInput(t *testing.T) {
	t.Parallel()

	src := &sliceSource{lines: []string{"a"}}
	err := ApplyStream(context.Background(), diffText("@@ -4 +4 @@", " d"), src, &collectSink{})
	var pe *Error
	require.ErrorAs(t, err, &pe)
	require.Equal(t, CodeContentMismatch, pe.Code)
	require.Equal(t, 4, pe.OriginalLine)
}

func TestApplyStreamPropagatesParseErrors(t *testing.T) {
	t.Parallel()

	err := ApplyStream(context.Background(), "garbage", &sliceSource{}, &collectSink{})
	require.Equal(t, CodeMalformedHeader, CodeOf(err))
}

func TestApplyStreamSourceFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("disk on fire")
	src := &sliceSource{lines: []string{"a", "b", "c"}, err: boom, failAt: 1}
	err := ApplyStream(context.Background(), diffText("@@ -3 +3 @@", " c"), src, &collectSink{})
	require.ErrorIs(t, err, boom)
	require.Equal(t, CodeIO, CodeOf(err))
}

func TestApplyStreamSinkFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("pipe closed")
	src := &sliceSource{lines: []string{"a", "b", "c"}}
	err := ApplyStream(context.Background(), diffText("@@ -3 +3 @@", " c"), src, &collectSink{err: boom})
	require.ErrorIs(t, err, boom)
	require.Equal(t, CodeIO, CodeOf(err))
}

func TestApplyStreamHonorsCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &sliceSource{lines: []string{"a"}}
	err := ApplyStream(ctx, diffText("@@ -1 +1 @@", " a"), src, &collectSink{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestApplyStreamRejectsNilEndpoints(t *testing.T) {
	t.Parallel()

	require.Error(t, ApplyStream(context.Background(), diffText(), nil, &collectSink{}))
}

func TestReaderSourceSplitsLikeStrings(t *testing.T) {
	t.Parallel()

	cases := []string{"", "a", "a\n", "a\nb", "\n\n", "a\r\nb"}
	for _, input := range cases {
		src := NewReaderSource(strings.NewReader(input))
		var got []string
		for {
			line, err := src.ReadLine(context.Background())
			if errors.Is(err, io.EOF) {
				break
			}
			require.NoError(t, err)
			got = append(got, line)
		}
		require.Equal(t, strings.Split(input, "\n"), got, "input %q", input)
	}
}
