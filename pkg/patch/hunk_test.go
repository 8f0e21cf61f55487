package patch

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestHunkInsertBeforeFirstLineSharesItsBucket(t *testing.T) {
	t.Parallel()

	h := newHunk(HunkHeader{StartA: 1, LengthA: 1, StartB: 1, LengthB: 2})
	for _, op := range []LineOperation{{Op: Insert, Text: "1"}, {Op: Equal, Text: "A"}} {
		if err := h.addOperation(op); err != nil {
			t.Fatalf("addOperation returned error: %v", err)
		}
	}

	got, ok := h.Operations(1)
	if !ok {
		t.Fatalf("expected bucket for line 1")
	}
	want := []LineOperation{{Op: Insert, Text: "1"}, {Op: Equal, Text: "A"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("bucket mismatch (-want +got):\n%s", diff)
	}
	if !h.lengthsAreConsistent() {
		t.Fatalf("expected consistent lengths")
	}
}

func TestHunkInsertAfterLineFollowsIt(t *testing.T) {
	t.Parallel()

	h := newHunk(HunkHeader{StartA: 3, LengthA: 2, StartB: 3, LengthB: 2})
	ops := []LineOperation{
		{Op: Equal, Text: "c"},
		{Op: Insert, Text: "new"},
		{Op: Delete, Text: "d"},
	}
	for _, op := range ops {
		if err := h.addOperation(op); err != nil {
			t.Fatalf("addOperation returned error: %v", err)
		}
	}

	first, _ := h.Operations(3)
	if diff := cmp.Diff(ops[:2], first); diff != "" {
		t.Fatalf("line 3 bucket mismatch (-want +got):\n%s", diff)
	}
	second, _ := h.Operations(4)
	if diff := cmp.Diff(ops[2:], second); diff != "" {
		t.Fatalf("line 4 bucket mismatch (-want +got):\n%s", diff)
	}
	if _, ok := h.Operations(5); ok {
		t.Fatalf("line 5 is outside the hunk")
	}
	if h.Len() != 3 {
		t.Fatalf("Len() = %d", h.Len())
	}
}

func TestHunkRejectsExtraOriginalLines(t *testing.T) {
	t.Parallel()

	h := newHunk(HunkHeader{StartA: 1, LengthA: 1, StartB: 1, LengthB: 0})
	if err := h.addOperation(LineOperation{Op: Delete, Text: "a"}); err != nil {
		t.Fatalf("first delete should fit: %v", err)
	}
	err := h.addOperation(LineOperation{Op: Delete, Text: "b"})
	if err == nil || err.Code != CodeHunkLengthMismatch {
		t.Fatalf("expected HUNK_LENGTH_MISMATCH, got %v", err)
	}
}

func TestHunkLengthsDetectShortBody(t *testing.T) {
	t.Parallel()

	h := newHunk(HunkHeader{StartA: 1, LengthA: 2, StartB: 1, LengthB: 2})
	_ = h.addOperation(LineOperation{Op: Equal, Text: "a"})
	if h.lengthsAreConsistent() {
		t.Fatalf("one line body must not satisfy a two line header")
	}
}

func TestHunkString(t *testing.T) {
	t.Parallel()

	h := newHunk(HunkHeader{StartA: 1, LengthA: 1, StartB: 1, LengthB: 2})
	_ = h.addOperation(LineOperation{Op: Equal, Text: "A"})
	_ = h.addOperation(LineOperation{Op: Insert, Text: "2"})

	if got, want := h.String(), "@@ -1,1 +1,2 @@\n A\n+2"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}
