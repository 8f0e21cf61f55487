// Package patch parses unified diffs and applies them to text with strict,
// non-fuzzy matching.
//
// Every context (' ') and deletion ('-') line of a hunk must equal the
// original line at the position the hunk header declares, byte for byte, or
// the whole operation fails with a *Error. There is no offset search and no
// partial application.
//
// Parse builds an immutable index from original line numbers to the
// operations attached to them. Apply walks the original once against that
// index and writes into a buffer sized exactly to the result; ApplyTo does the
// same into a caller-owned buffer and TryApply reports only success.
// ApplyStream runs the identical per-line logic over a LineSource and a
// LineSink for inputs that should not be held in memory. ApplyToMemory and
// ApplyFilesystem apply a set of patches to documents held in a map or on
// disk, all-or-nothing.
//
// Not supported: "\ No newline at end of file" markers, diff formats other
// than unified diff, and hunks with an empty original range.
package patch
