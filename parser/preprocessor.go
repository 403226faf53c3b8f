package parser

import "strings"

// Preprocessor implements C1: strip comments, normalize whitespace, and
// fold case everywhere except inside string literals. It is line-oriented
// and keeps a single piece of latching state (whether it is inside a
// multi-line /* ... */ comment) across calls to Line.
type Preprocessor struct {
	inBlockComment bool
}

// NewPreprocessor returns a fresh preprocessor with no latched state.
func NewPreprocessor() *Preprocessor {
	return &Preprocessor{}
}

// Reset clears the multi-line-comment latch, for reuse across files.
func (p *Preprocessor) Reset() {
	p.inBlockComment = false
}

// Line applies C1 to a single raw input line and returns the normalized
// result plus whether the line should be discarded entirely (blank, or
// wholly consumed by a comment).
func (p *Preprocessor) Line(raw string) (string, bool) {
	line := foldCaseOutsideStrings(raw)

	if p.inBlockComment {
		if idx := strings.Index(line, "*/"); idx >= 0 {
			p.inBlockComment = false
			line = line[idx+2:]
		} else {
			return "", true
		}
	}

	// A same-line /* ... */ comment is removed; per spec, a block comment
	// may not share a line with code, so if a start without a matching end
	// is found the whole line is discarded and the latch is set.
	for {
		start := strings.Index(line, "/*")
		if start < 0 {
			break
		}
		end := strings.Index(line[start:], "*/")
		if end < 0 {
			p.inBlockComment = true
			return "", true
		}
		line = line[:start] + line[start+end+2:]
	}

	if idx := strings.Index(line, "//"); idx >= 0 {
		line = line[:idx]
	}

	line = normalizeWhitespace(strings.TrimSpace(line))
	if line == "" {
		return "", true
	}
	return line, false
}

// foldCaseOutsideStrings lowercases everything left of the first double
// quote and leaves the remainder (the string literal and anything after
// it) untouched, so `.asciz "Hello, World\n"` keeps its case.
func foldCaseOutsideStrings(line string) string {
	if idx := strings.IndexByte(line, '"'); idx >= 0 {
		return strings.ToLower(line[:idx]) + line[idx:]
	}
	return strings.ToLower(line)
}

// normalizeWhitespace collapses runs of spaces/tabs to a single space.
func normalizeWhitespace(line string) string {
	var sb strings.Builder
	sb.Grow(len(line))
	prevSpace := false
	for _, r := range line {
		if r == ' ' || r == '\t' {
			if !prevSpace {
				sb.WriteByte(' ')
			}
			prevSpace = true
			continue
		}
		prevSpace = false
		sb.WriteRune(r)
	}
	return sb.String()
}
