package patch

import (
	"fmt"
	"strconv"
	"strings"
)

// HunkHeader holds the ranges declared by a "@@ -a,b +c,d @@" line.
//
// StartB is retained for display only; output positions are derived from the
// order in which original lines are walked.
type HunkHeader struct {
	StartA  int
	LengthA int
	StartB  int
	LengthB int
}

// String renders the header in canonical unified-diff form.
func (h HunkHeader) String() string {
	return fmt.Sprintf("@@ -%d,%d +%d,%d @@", h.StartA, h.LengthA, h.StartB, h.LengthB)
}

// ParseHunkHeader reads the ranges from a hunk header line. Anything after the
// recognised range tokens (the closing "@@", a function-context hint) is
// ignored.
func ParseHunkHeader(line string) (HunkHeader, error) {
	var (
		header                  HunkHeader
		seenStart, seenA, seenB bool
	)
	for _, token := range strings.Split(line, " ") {
		switch {
		case strings.HasPrefix(token, "-"):
			start, length, err := parseRange(token[1:])
			if err != nil {
				return HunkHeader{}, parseError(CodeMalformedHeader, 0, line, "cannot parse hunk header %q: %v", line, err)
			}
			header.StartA, header.LengthA = start, length
			seenA = true
			continue
		case strings.HasPrefix(token, "+"):
			start, length, err := parseRange(token[1:])
			if err != nil {
				return HunkHeader{}, parseError(CodeMalformedHeader, 0, line, "cannot parse hunk header %q: %v", line, err)
			}
			header.StartB, header.LengthB = start, length
			seenB = true
			continue
		case strings.HasPrefix(token, "@") && !seenStart:
			seenStart = true
			continue
		}
		break
	}

	if !seenA || !seenB {
		return HunkHeader{}, parseError(CodeMalformedHeader, 0, line, "hunk header %q is missing its -/+ ranges", line)
	}
	if err := header.validate(); err != nil {
		err.LineText = line
		return HunkHeader{}, err
	}
	return header, nil
}

func (h HunkHeader) validate() *Error {
	switch {
	case h.StartA < 1:
		return parseError(CodeInvalidHunkBounds, 0, "", "hunk start %d must be at least 1", h.StartA)
	case h.LengthA < 1:
		return parseError(CodeInvalidHunkBounds, 0, "", "hunk original length %d must be at least 1", h.LengthA)
	case h.LengthB < 0:
		return parseError(CodeInvalidHunkBounds, 0, "", "hunk output length %d must not be negative", h.LengthB)
	}
	return nil
}

// parseRange reads "start" or "start,length"; a missing length means 1.
func parseRange(text string) (int, int, error) {
	startText, lengthText, found := strings.Cut(text, ",")
	start, err := strconv.Atoi(startText)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid start %q", startText)
	}
	if !found {
		return start, 1, nil
	}
	length, err := strconv.Atoi(lengthText)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid length %q", lengthText)
	}
	return start, length, nil
}
