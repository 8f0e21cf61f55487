package patch

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type applyCase struct {
	name     string
	original string
	diff     string
	want     string
}

func applyCases() []applyCase {
	return []applyCase{
		{
			name:     "delete first line",
			original: "1\n2\n3",
			diff:     diffText("@@ -1,1 +1,0 @@", "-1"),
			want:     "2\n3",
		},
		{
			name:     "delete middle line",
			original: "1\n2\n3",
			diff:     diffText("@@ -2,1 +2,0 @@", "-2"),
			want:     "1\n3",
		},
		{
			name:     "delete last line",
			original: "1\n2\n3",
			diff:     diffText("@@ -3,1 +3,0 @@", "-3"),
			want:     "1\n2",
		},
		{
			name:     "insert before first line of hunk",
			original: "A\nB",
			diff:     diffText("@@ -1,1 +1,2 @@", "+1", " A"),
			want:     "1\nA\nB",
		},
		{
			name:     "insert after context line",
			original: "A\nB",
			diff:     diffText("@@ -1,1 +1,2 @@", " A", "+2"),
			want:     "A\n2\nB",
		},
		{
			name:     "insert after last line",
			original: "A\nB",
			diff:     diffText("@@ -2,1 +2,2 @@", " B", "+3"),
			want:     "A\nB\n3",
		},
		{
			name:     "replace keeps trailing newline",
			original: "1\n2\n3\n",
			diff:     diffText("@@ -2 +2 @@", "-2", "+two") + "\n",
			want:     "1\ntwo\n3\n",
		},
		{
			name:     "several hunks",
			original: "a\nb\nc\nd\ne\nf\ng",
			diff: diffText(
				"@@ -1,2 +1,2 @@",
				"-a",
				"+A",
				" b",
				"@@ -5,2 +5,3 @@",
				" e",
				"+e2",
				"-f",
				"+F",
			),
			want: "A\nb\nc\nd\ne\ne2\nF\ng",
		},
		{
			name:     "empty first line survives",
			original: "\nB\nC",
			diff:     diffText("@@ -3 +3 @@", "-C", "+D"),
			want:     "\nB\nD",
		},
		{
			name:     "delete every line",
			original: "A",
			diff:     diffText("@@ -1 +1,0 @@", "-A"),
			want:     "",
		},
		{
			name:     "diff without hunks",
			original: "unchanged\n",
			diff:     "--- a\n+++ b\n",
			want:     "unchanged\n",
		},
		{
			name:     "append to file ending in newline",
			original: "x\n",
			diff:     diffText("@@ -1,2 +1,3 @@", " x", "+y", " "),
			want:     "x\ny\n",
		},
	}
}

func TestApplyScenarios(t *testing.T) {
	t.Parallel()

	for _, tc := range applyCases() {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := Apply(tc.diff, tc.original)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)

			again, err := Apply(tc.diff, tc.original)
			require.NoError(t, err)
			require.Equal(t, got, again, "apply must be deterministic")
		})
	}
}

func TestApplyToWritesExactSize(t *testing.T) {
	t.Parallel()

	for _, tc := range applyCases() {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			diff, err := Parse(tc.diff)
			require.NoError(t, err)
			size := diff.OutputSize(len(tc.original))
			require.Equal(t, len(tc.want), size)

			buf := make([]byte, size+8)
			n, err := ApplyTo(tc.diff, tc.original, buf)
			require.NoError(t, err)
			require.Equal(t, size, n)
			require.Equal(t, tc.want, string(buf[:n]))
		})
	}
}

func TestApplyToRejectsSmallBuffer(t *testing.T) {
	t.Parallel()

	diff := diffText("@@ -1,1 +1,2 @@", " A", "+2")
	_, err := ApplyTo(diff, "A\nB", make([]byte, 4))
	require.Equal(t, CodeBufferTooSmall, CodeOf(err))
}

func TestTryApply(t *testing.T) {
	t.Parallel()

	diff := diffText("@@ -1,1 +1,2 @@", " A", "+2")
	buf := make([]byte, 16)

	ok, n := TryApply(diff, "A\nB", buf)
	require.True(t, ok)
	require.Equal(t, "A\n2\nB", string(buf[:n]))

	ok, n = TryApply(diff, "X\nB", buf)
	require.False(t, ok)
	require.Zero(t, n)

	ok, n = TryApply("not a diff", "A", buf)
	require.False(t, ok)
	require.Zero(t, n)
}

func TestApplyDetectsMismatch(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		original string
		diff     string
		line     int
	}{
		{name: "context differs", original: "A\nB", diff: diffText("@@ -1 +1 @@", " X"), line: 1},
		{name: "deleted line differs", original: "A\nB\nC", diff: diffText("@@ -2 +2,0 @@", "-b"), line: 2},
		{name: "trailing whitespace counts", original: "A \nB", diff: diffText("@@ -1 +1 @@", " A"), line: 1},
		{name: "second hunk differs", original: "a\nb\nc", diff: diffText("@@ -1 +1 @@", " a", "@@ -3 +3 @@", "-C", "+D"), line: 3},
		{name: "past end of original", original: "A", diff: diffText("@@ -3 +3 @@", " C"), line: 3},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := Apply(tc.diff, tc.original)
			require.Empty(t, got)
			var pe *Error
			require.ErrorAs(t, err, &pe)
			require.Equal(t, CodeContentMismatch, pe.Code)
			require.Equal(t, tc.line, pe.OriginalLine)
		})
	}
}

func TestApplyPassesUntouchedLinesThrough(t *testing.T) {
	t.Parallel()

	lines := make([]string, 50)
	for i := range lines {
		lines[i] = strings.Repeat("x", i)
	}
	original := strings.Join(lines, "\n")
	diff := diffText("@@ -20 +20 @@", "-"+lines[19], "+changed")

	got, err := Apply(diff, original)
	require.NoError(t, err)

	out := strings.Split(got, "\n")
	require.Len(t, out, len(lines))
	for i, line := range out {
		if i == 19 {
			require.Equal(t, "changed", line)
			continue
		}
		require.Equal(t, lines[i], line, "line %d", i+1)
	}
}
