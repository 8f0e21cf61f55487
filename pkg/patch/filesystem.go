package patch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FilesystemOptions configures ApplyFilesystem.
type FilesystemOptions struct {
	// WorkingDir resolves relative paths. Empty means the process working directory.
	WorkingDir string
	// OutputSuffix, when set, writes each result next to its original as
	// path+OutputSuffix instead of replacing the original.
	OutputSuffix string
	// DryRun applies every patch but discards the results.
	DryRun bool
	// Buffered reads each original whole and patches it with Apply instead of
	// streaming it line by line.
	Buffered bool
}

// ApplyFilesystem streams each original file through its patch into a staged
// temporary file. Only when every patch applied cleanly are the staged files
// moved into place; otherwise they are removed and no file is changed.
func ApplyFilesystem(ctx context.Context, patches []FilePatch, opts FilesystemOptions) ([]Result, error) {
	ws, err := newFilesystemWorkspace(opts)
	if err != nil {
		return nil, err
	}
	for _, fp := range patches {
		if ctx.Err() != nil {
			ws.discard()
			return nil, &Error{Message: ctx.Err().Error(), Code: CodeIO, Err: ctx.Err()}
		}
		if err := ws.stage(ctx, fp); err != nil {
			ws.discard()
			return nil, err
		}
	}
	if opts.DryRun {
		results := ws.results()
		ws.discard()
		return results, nil
	}
	return ws.commit()
}

type stagedFile struct {
	path         string
	relativePath string
	target       string
	targetRel    string
	tmp          string
	originalMode fs.FileMode
	isNew        bool
	bytes        int64
}

type filesystemWorkspace struct {
	workingDir string
	suffix     string
	buffered   bool
	staged     map[string]*stagedFile
	order      []string
}

func newFilesystemWorkspace(opts FilesystemOptions) (*filesystemWorkspace, error) {
	workingDir := strings.TrimSpace(opts.WorkingDir)
	if workingDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to determine working directory: %w", err)
		}
		workingDir = wd
	}
	if abs, err := filepath.Abs(workingDir); err == nil {
		workingDir = abs
	}
	return &filesystemWorkspace{
		workingDir: workingDir,
		suffix:     opts.OutputSuffix,
		buffered:   opts.Buffered,
		staged:     make(map[string]*stagedFile),
	}, nil
}

func (ws *filesystemWorkspace) stage(ctx context.Context, fp FilePatch) error {
	abs, rel, err := ws.resolvePath(fp.Path)
	if err != nil {
		return err
	}

	st, seen := ws.staged[abs]
	source := abs
	if seen {
		// A second patch for the same file continues from the staged result.
		source = st.tmp
		if fp.Output != "" {
			target, _, err := ws.resolvePath(fp.Output)
			if err != nil {
				return err
			}
			if target != st.target {
				return &Error{Message: fmt.Sprintf("conflicting outputs for %s", rel), Code: CodeIO, Path: rel}
			}
		}
	} else {
		info, statErr := os.Stat(abs)
		if statErr != nil {
			return &Error{Message: fmt.Sprintf("failed to stat %s", rel), Code: CodeIO, Path: rel, Err: statErr}
		}
		if info.IsDir() {
			return &Error{Message: fmt.Sprintf("cannot patch directory %s", rel), Code: CodeIO, Path: rel}
		}
		target, targetRel := abs+ws.suffix, rel+ws.suffix
		if fp.Output != "" {
			if target, targetRel, err = ws.resolvePath(fp.Output); err != nil {
				return err
			}
		}
		_, targetErr := os.Stat(target)
		st = &stagedFile{
			path:         abs,
			relativePath: rel,
			target:       target,
			targetRel:    targetRel,
			originalMode: info.Mode(),
			isNew:        target != abs && errors.Is(targetErr, fs.ErrNotExist),
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(st.target), ".strictpatch-*")
	if err != nil {
		return &Error{Message: fmt.Sprintf("failed to stage %s", rel), Code: CodeIO, Path: rel, Err: err}
	}
	var (
		written  int64
		applyErr error
	)
	if ws.buffered {
		written, applyErr = applyBuffered(source, fp.Diff, tmp)
	} else {
		written, applyErr = applyStreamed(ctx, source, fp.Diff, tmp)
	}
	closeErr := tmp.Close()
	if applyErr == nil && closeErr != nil {
		applyErr = &Error{Message: fmt.Sprintf("failed to stage %s", rel), Code: CodeIO, Err: closeErr}
	}
	if applyErr != nil {
		_ = os.Remove(tmp.Name())
		return withPath(applyErr, rel)
	}

	if seen {
		_ = os.Remove(st.tmp)
	} else {
		ws.staged[abs] = st
		ws.order = append(ws.order, abs)
	}
	st.tmp = tmp.Name()
	st.bytes = written
	return nil
}

func applyStreamed(ctx context.Context, source, diffText string, dst *os.File) (int64, error) {
	in, err := os.Open(source)
	if err != nil {
		return 0, &Error{Message: "failed to read original", Code: CodeIO, Err: err}
	}
	defer in.Close()

	sink := NewWriterSink(dst)
	if err := ApplyStream(ctx, diffText, NewReaderSource(in), sink); err != nil {
		return 0, err
	}
	return sink.Written(), nil
}

func applyBuffered(source, diffText string, dst *os.File) (int64, error) {
	original, err := os.ReadFile(source)
	if err != nil {
		return 0, &Error{Message: "failed to read original", Code: CodeIO, Err: err}
	}
	patched, err := Apply(diffText, string(original))
	if err != nil {
		return 0, err
	}
	n, err := dst.WriteString(patched)
	if err != nil {
		return 0, &Error{Message: "failed to write staged output", Code: CodeIO, Err: err}
	}
	return int64(n), nil
}

func (ws *filesystemWorkspace) results() []Result {
	results := make([]Result, 0, len(ws.order))
	for _, key := range ws.order {
		st := ws.staged[key]
		status := "M"
		if st.isNew {
			status = "A"
		}
		results = append(results, Result{Status: status, Path: st.targetRel, Bytes: st.bytes})
	}
	return results
}

func (ws *filesystemWorkspace) discard() {
	for _, st := range ws.staged {
		if st.tmp != "" {
			_ = os.Remove(st.tmp)
		}
	}
}

func (ws *filesystemWorkspace) commit() ([]Result, error) {
	for i, key := range ws.order {
		st := ws.staged[key]
		perm := st.originalMode & fs.ModePerm
		if perm == 0 {
			perm = 0o644
		}
		desired := perm | (st.originalMode & (fs.ModeSetuid | fs.ModeSetgid | fs.ModeSticky))
		if err := os.Chmod(st.tmp, desired); err != nil {
			ws.discardFrom(i)
			return nil, &Error{Message: fmt.Sprintf("failed to restore permissions for %s", st.relativePath), Code: CodeIO, Path: st.relativePath, Err: err}
		}
		if err := os.Rename(st.tmp, st.target); err != nil {
			ws.discardFrom(i)
			return nil, &Error{Message: fmt.Sprintf("failed to write %s", st.relativePath), Code: CodeIO, Path: st.relativePath, Err: err}
		}
		st.tmp = ""
	}
	return ws.results(), nil
}

func (ws *filesystemWorkspace) discardFrom(start int) {
	for _, key := range ws.order[start:] {
		if st := ws.staged[key]; st.tmp != "" {
			_ = os.Remove(st.tmp)
		}
	}
}

func (ws *filesystemWorkspace) resolvePath(relative string) (string, string, error) {
	rel := strings.TrimSpace(relative)
	if rel == "" {
		return "", "", &Error{Message: "invalid patch path", Code: CodeIO}
	}
	cleaned := filepath.Clean(rel)
	var abs string
	if filepath.IsAbs(cleaned) {
		abs = cleaned
	} else {
		abs = filepath.Clean(filepath.Join(ws.workingDir, cleaned))
	}
	return abs, cleaned, nil
}
