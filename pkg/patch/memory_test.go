package patch

import (
	"context"
	"testing"
)

func TestApplyToMemoryCopiesInput(t *testing.T) {
	t.Parallel()

	initial := map[string]string{"file.txt": "alpha\nbeta"}
	patches := []FilePatch{{
		Path: "file.txt",
		Diff: diffText("@@ -1 +1 @@", "-alpha", "+gamma"),
	}}

	updated, results, err := ApplyToMemory(ctxBackground(), patches, initial)
	if err != nil {
		t.Fatalf("ApplyToMemory returned error: %v", err)
	}
	if got, want := updated["file.txt"], "gamma\nbeta"; got != want {
		t.Fatalf("unexpected updated value: %q", got)
	}
	if initial["file.txt"] != "alpha\nbeta" {
		t.Fatalf("initial map mutated: %q", initial["file.txt"])
	}
	if len(results) != 1 || results[0].Status != "M" || results[0].Bytes != int64(len("gamma\nbeta")) {
		t.Fatalf("unexpected results: %#v", results)
	}
}

func TestApplyToMemoryChainsPatchesForSameDocument(t *testing.T) {
	t.Parallel()

	initial := map[string]string{"./notes.txt": "one\ntwo"}
	patches := []FilePatch{
		{Path: "notes.txt", Diff: diffText("@@ -1 +1,2 @@", " one", "+one and a half")},
		{Path: "notes.txt", Diff: diffText("@@ -3 +3 @@", "-two", "+three")},
	}

	updated, results, err := ApplyToMemory(ctxBackground(), patches, initial)
	if err != nil {
		t.Fatalf("ApplyToMemory returned error: %v", err)
	}
	if got, want := updated["notes.txt"], "one\none and a half\nthree"; got != want {
		t.Fatalf("chained result mismatch: got %q want %q", got, want)
	}
	if len(results) != 1 {
		t.Fatalf("expected a single result per document, got %#v", results)
	}
}

func TestApplyToMemoryIsAllOrNothing(t *testing.T) {
	t.Parallel()

	initial := map[string]string{"a.txt": "a", "b.txt": "b"}
	patches := []FilePatch{
		{Path: "a.txt", Diff: diffText("@@ -1 +1 @@", "-a", "+A")},
		{Path: "b.txt", Diff: diffText("@@ -1 +1 @@", "-x", "+X")},
	}

	updated, results, err := ApplyToMemory(ctxBackground(), patches, initial)
	if err == nil {
		t.Fatalf("expected mismatch error")
	}
	if updated != nil || results != nil {
		t.Fatalf("expected no partial results, got %#v %#v", updated, results)
	}
	pe, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if pe.Path != "b.txt" || pe.Code != CodeContentMismatch {
		t.Fatalf("unexpected error details: %#v", pe)
	}
}

func TestApplyToMemoryMissingDocument(t *testing.T) {
	t.Parallel()

	_, _, err := ApplyToMemory(ctxBackground(), []FilePatch{{Path: "ghost.txt", Diff: diffText()}}, map[string]string{})
	if err == nil {
		t.Fatalf("expected error when patching a missing document")
	}
	if CodeOf(err) != CodeIO {
		t.Fatalf("unexpected code: %q", CodeOf(err))
	}
}

func TestApplyToMemoryHonorsContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := ApplyToMemory(ctx, []FilePatch{{Path: "a.txt", Diff: diffText()}}, map[string]string{"a.txt": ""})
	if err == nil {
		t.Fatalf("expected cancellation error")
	}
}

func TestApplyMemoryPatch(t *testing.T) {
	t.Parallel()

	updated, result, err := ApplyMemoryPatch(ctxBackground(), "doc.md", diffText("@@ -1 +1,2 @@", " # Title", "+body"), map[string]string{"doc.md": "# Title"})
	if err != nil {
		t.Fatalf("ApplyMemoryPatch returned error: %v", err)
	}
	if updated["doc.md"] != "# Title\nbody" {
		t.Fatalf("unexpected content: %q", updated["doc.md"])
	}
	if result.Path != "doc.md" || result.Status != "M" {
		t.Fatalf("unexpected result: %#v", result)
	}
}

func ctxBackground() context.Context {
	return context.Background()
}
