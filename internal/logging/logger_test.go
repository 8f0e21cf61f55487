package logging

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fixedLogger(level Level, buf *bytes.Buffer) *StdLogger {
	l := NewStdLogger(level, buf)
	l.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	return l
}

func TestStdLoggerFormatsEntries(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := fixedLogger(LevelDebug, &buf).WithFields(F("cmd", "apply"))
	ctx := WithRunID(context.Background(), "run-1")

	logger.Error(ctx, "patch failed", errors.New("boom"), F("path", "a.txt"))

	require.Equal(t,
		`[2024-01-02T03:04:05Z] [ERROR] [error="boom"] patch failed fields=[cmd=apply path=a.txt run_id=run-1]`+"\n",
		buf.String())
}

func TestStdLoggerFiltersBelowMinimumLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := fixedLogger(LevelWarn, &buf)
	logger.Debug(context.Background(), "debug")
	logger.Info(context.Background(), "info")
	logger.Warn(context.Background(), "warn")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	require.Contains(t, lines[0], "[WARN] warn")
}

func TestWithFieldsDoesNotLeakBetweenChildren(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := fixedLogger(LevelInfo, &buf).WithFields(F("a", 1))
	left := base.WithFields(F("b", 2))
	right := base.WithFields(F("c", 3))

	left.Info(context.Background(), "left")
	right.Info(context.Background(), "right")

	out := buf.String()
	require.Contains(t, out, "left fields=[a=1 b=2]")
	require.Contains(t, out, "right fields=[a=1 c=3]")
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]Level{
		"debug":   LevelDebug,
		" Info ":  LevelInfo,
		"":        LevelInfo,
		"warning": LevelWarn,
		"ERROR":   LevelError,
	}
	for input, want := range cases {
		got, err := ParseLevel(input)
		require.NoError(t, err, input)
		require.Equal(t, want, got, input)
	}

	_, err := ParseLevel("loud")
	require.Error(t, err)
}

func TestNilWriterAndNoOpLoggerDiscard(t *testing.T) {
	t.Parallel()

	NewStdLogger(LevelDebug, nil).Info(context.Background(), "dropped")
	var noop Logger = &NoOpLogger{}
	noop.WithFields(F("k", "v")).Error(context.Background(), "dropped", errors.New("x"))
	require.NotEqual(t, NewRunID(), NewRunID())
	require.Empty(t, RunID(context.Background()))
}
