package parser

import (
	"regexp"
	"strconv"
	"strings"
)

// Program is the output of a parse: the symbol table, the static data
// image, the ordered instruction list, and a frozen label→index map built
// once parsing completes (labels cannot be declared after parse, so the
// map never goes stale — see the Design Notes on label lookup).
type Program struct {
	Instructions []string
	Symbols      *SymbolTable
	StaticData   []byte
	LabelIndex   map[string]int
}

// region is the section parser's mutually-exclusive state.
type region int

const (
	regionCode region = iota
	regionData
	regionBSS
)

var (
	reAsciz    = regexp.MustCompile(`^([a-z_][a-z0-9_]*):\.asciz (.*)$`)
	reWords8   = regexp.MustCompile(`^([a-z_][a-z0-9_]*):\.8byte (.*)$`)
	reSpace    = regexp.MustCompile(`^([a-z_][a-z0-9_]*):\.space (.*)$`)
	reSizeOf   = regexp.MustCompile(`^([a-z_][a-z0-9_]*)=\.-([a-z_][a-z0-9_]*)$`)
	reAssign   = regexp.MustCompile(`^([a-z_][a-z0-9_]*)=(.+)$`)
	reLabel    = regexp.MustCompile(`^[.]*[a-z0-9_]+:$`)
	reDotWords = regexp.MustCompile(`\s*\.\s*`)
	reDotColon = regexp.MustCompile(`\s*:\s*`)
	reDotDash  = regexp.MustCompile(`\s*-\s*`)
	reDotEq    = regexp.MustCompile(`\s*=\s*`)
)

// Parse runs C1 (a fresh Preprocessor, applied line by line) plus C2 over
// raw source lines, and returns the resulting Program.
func Parse(lines []string, filename string) (*Program, error) {
	pp := NewPreprocessor()
	prog := &Program{
		Symbols: NewSymbolTable(),
	}
	var static []byte
	index := 0
	cur := regionCode

	for lineNo, raw := range lines {
		line, skip := pp.Line(raw)
		if skip {
			continue
		}
		pos := Position{Filename: filename, Line: lineNo + 1}

		switch line {
		case ".data":
			cur = regionData
			continue
		case ".bss":
			cur = regionBSS
			continue
		}
		if line == "main:" || line == "_start:" {
			cur = regionCode
			prog.Instructions = append(prog.Instructions, line)
			continue
		}

		switch cur {
		case regionCode:
			prog.Instructions = append(prog.Instructions, line)

		case regionData, regionBSS:
			var err error
			index, err = parseDataLine(line, pos, prog.Symbols, &static, index)
			if err != nil {
				return nil, err
			}
		}
	}

	prog.StaticData = static
	prog.LabelIndex = buildLabelIndex(prog.Instructions)
	return prog, nil
}

// buildLabelIndex maps every label (with trailing colon) to its position
// in the instruction list, frozen once at end of parse.
func buildLabelIndex(instructions []string) map[string]int {
	idx := make(map[string]int, len(instructions))
	for i, line := range instructions {
		if reLabel.MatchString(line) {
			idx[line] = i
		}
	}
	return idx
}

// IsLabel reports whether a canonical instruction-list line is a label
// declaration (as opposed to a code line).
func IsLabel(line string) bool {
	return reLabel.MatchString(line)
}

// parseDataLine normalizes and matches one `.data`/`.bss` line against the
// five directive forms, in the order spec.md §4.2 specifies, and returns
// the updated static-data index.
func parseDataLine(line string, pos Position, syms *SymbolTable, static *[]byte, index int) (int, error) {
	norm := strings.ReplaceAll(line, `"`, "")
	norm = reDotColon.ReplaceAllString(norm, ":")
	norm = reDotWords.ReplaceAllString(norm, ".")
	norm = reDotDash.ReplaceAllString(norm, "-")
	norm = reDotEq.ReplaceAllString(norm, "=")

	if m := reAsciz.FindStringSubmatch(norm); m != nil {
		name := m[1]
		content := ProcessEscapeSequences(m[2])
		bytes := []byte(content)
		if err := syms.DefineAddress(name, int64(index), len(bytes), DataAsciz); err != nil {
			return index, NewErrorWithContext(pos, ErrorDuplicateSymbol, err.Error(), line)
		}
		*static = append(*static, bytes...)
		return index + len(bytes), nil
	}

	if m := reWords8.FindStringSubmatch(norm); m != nil {
		name := m[1]
		parts := strings.Split(m[2], ",")
		bytes := make([]byte, 0, 8*len(parts))
		for _, p := range parts {
			n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
			if err != nil {
				return index, NewErrorWithContext(pos, ErrorSyntax, "invalid .8byte value", line)
			}
			var buf [8]byte
			u := uint64(n)
			for i := 0; i < 8; i++ {
				buf[i] = byte(u)
				u >>= 8
			}
			bytes = append(bytes, buf[:]...)
		}
		if err := syms.DefineAddress(name, int64(index), len(bytes), DataWords8); err != nil {
			return index, NewErrorWithContext(pos, ErrorDuplicateSymbol, err.Error(), line)
		}
		*static = append(*static, bytes...)
		return index + len(bytes), nil
	}

	if m := reSpace.FindStringSubmatch(norm); m != nil {
		name := m[1]
		expr := m[2]
		size, err := resolveSize(expr, syms)
		if err != nil {
			return index, NewErrorWithContext(pos, ErrorSyntax, err.Error(), line)
		}
		if err := syms.DefineAddress(name, int64(index), size, DataSpace); err != nil {
			return index, NewErrorWithContext(pos, ErrorDuplicateSymbol, err.Error(), line)
		}
		*static = append(*static, make([]byte, size)...)
		return index + size, nil
	}

	if m := reSizeOf.FindStringSubmatch(norm); m != nil {
		name, other := m[1], m[2]
		size, err := syms.Size(other)
		if err != nil {
			return index, NewErrorWithContext(pos, ErrorUnknownSymbol, err.Error(), line)
		}
		syms.DefineLiteral(name, int64(size))
		return index, nil
	}

	if m := reAssign.FindStringSubmatch(norm); m != nil {
		name, rhs := m[1], m[2]
		if other, ok := syms.Lookup(rhs); ok {
			syms.DefineLiteral(name, other.Value)
			return index, nil
		}
		n, err := parseIntLiteral(rhs)
		if err != nil {
			return index, NewErrorWithContext(pos, ErrorSyntax, "invalid assignment value", line)
		}
		syms.DefineLiteral(name, n)
		return index, nil
	}

	return index, NewErrorWithContext(pos, ErrorSyntax, "unrecognized data/bss directive", line)
}

func resolveSize(expr string, syms *SymbolTable) (int, error) {
	if sym, ok := syms.Lookup(expr); ok {
		return int(sym.Value), nil
	}
	n, err := parseIntLiteral(expr)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// parseIntLiteral parses a decimal or 0x-prefixed hex integer, optionally
// negative.
func parseIntLiteral(s string) (int64, error) {
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	var n int64
	var err error
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		n, err = strconv.ParseInt(s[2:], 16, 64)
	} else {
		n, err = strconv.ParseInt(s, 10, 64)
	}
	if err != nil {
		return 0, err
	}
	if neg {
		n = -n
	}
	return n, nil
}
