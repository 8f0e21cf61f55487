package patch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// FilePatch pairs a document path with the unified diff to apply to it.
type FilePatch struct {
	Path string
	Diff string
	// Output optionally names a different file to receive the result. Only
	// ApplyFilesystem honours it.
	Output string
}

// Result describes the outcome for a single document when applying patches.
type Result struct {
	Status string
	Path   string
	Bytes  int64
}

// ApplyToMemory applies patches to an in-memory document store represented by
// a map. The provided map is copied before mutation and the updated snapshot
// is returned. Patches run in order, so several patches may target the same
// document; if any of them fails nothing is returned.
func ApplyToMemory(ctx context.Context, patches []FilePatch, files map[string]string) (map[string]string, []Result, error) {
	snapshot := make(map[string]string, len(files))
	for k, v := range files {
		snapshot[cleanDocumentPath(k)] = v
	}

	touched := make(map[string]int)
	var results []Result
	for _, fp := range patches {
		if ctx.Err() != nil {
			return nil, nil, &Error{Message: ctx.Err().Error(), Code: CodeIO, Err: ctx.Err()}
		}
		rel := cleanDocumentPath(fp.Path)
		if rel == "" || rel == "." {
			return nil, nil, &Error{Message: "invalid patch path", Code: CodeIO, Path: fp.Path}
		}
		content, ok := snapshot[rel]
		if !ok {
			return nil, nil, &Error{Message: fmt.Sprintf("failed to read %s: document does not exist", rel), Code: CodeIO, Path: rel}
		}
		patched, err := Apply(fp.Diff, content)
		if err != nil {
			return nil, nil, withPath(err, rel)
		}
		snapshot[rel] = patched

		result := Result{Status: "M", Path: rel, Bytes: int64(len(patched))}
		if idx, seen := touched[rel]; seen {
			results[idx] = result
			continue
		}
		touched[rel] = len(results)
		results = append(results, result)
	}
	return snapshot, results, nil
}

// ApplyMemoryPatch applies a single diff to the document at path.
func ApplyMemoryPatch(ctx context.Context, path, diffText string, files map[string]string) (map[string]string, Result, error) {
	updated, results, err := ApplyToMemory(ctx, []FilePatch{{Path: path, Diff: diffText}}, files)
	if err != nil {
		return nil, Result{}, err
	}
	return updated, results[0], nil
}

func cleanDocumentPath(path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return ""
	}
	return filepath.Clean(trimmed)
}

// withPath records the document path on a *Error, wrapping foreign errors.
func withPath(err error, path string) error {
	var pe *Error
	if errors.As(err, &pe) {
		pe.Path = path
		return pe
	}
	return &Error{Message: err.Error(), Code: CodeIO, Path: path, Err: err}
}
