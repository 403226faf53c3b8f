package vm

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Op identifies a decoded instruction's family. A label declaration line
// decodes to OpLabel rather than going through the executor dispatch.
type Op int

const (
	OpLabel Op = iota
	OpLdp
	OpStp
	OpLdr
	OpLdrLit
	OpStr
	OpMov
	OpAdd
	OpAdds
	OpSub
	OpSubs
	OpAsr
	OpLsl
	OpMul
	OpUdiv
	OpSdiv
	OpMadd
	OpMsub
	OpAnd
	OpAnds
	OpOrr
	OpOrrs
	OpEor
	OpEors
	OpCmp
	OpCbnz
	OpCbz
	OpB
	OpBCond
	OpBl
	OpRet
	OpSvc
)

// AddrMode is the addressing mode of a decoded memory operand.
type AddrMode int

const (
	AddrNone AddrMode = iota
	AddrPlain
	AddrOffset
	AddrPreIndex
	AddrPostIndex
	AddrRegister
)

// Instr is a fully decoded instruction line: the operand fields populated
// depend on Op, mirroring the decoder table in §4.5.
type Instr struct {
	Op  Op
	Raw string

	Rd, Rt, Rt2, Rn, Rm, Ra string

	Imm    int64
	HasImm bool

	Offset    int64
	HasOffset bool
	Mode      AddrMode

	Label string
	Var   string
	Cond  string
}

var labelTokenRe = regexp.MustCompile(`^[.]*[a-z0-9_]+$`)

// Decode turns one canonical instruction-list line into a typed Instr.
// A line ending in ':' decodes directly as a label declaration; anything
// else is tokenized into a mnemonic and a bracket-aware operand list and
// dispatched by exact mnemonic match, never by regex cascade — this avoids
// the ambiguity between `mov rd,imm` and `mov rd,rn` sharing a dispatch
// prefix, since each operand is classified only after it has already been
// isolated by the splitter.
func Decode(line string) (*Instr, error) {
	if strings.HasSuffix(line, ":") {
		return &Instr{Op: OpLabel, Raw: line, Label: strings.TrimSuffix(line, ":")}, nil
	}

	mnem, rest := splitMnemonic(line)
	ops := splitOperands(rest)

	switch {
	case mnem == "ldp":
		return decodeLoadStorePair(OpLdp, ops, line)
	case mnem == "stp":
		return decodeLoadStorePair(OpStp, ops, line)
	case mnem == "ldr":
		return decodeLdr(ops, line)
	case mnem == "str":
		return decodeStr(ops, line)
	case mnem == "mov":
		return decodeMov(ops, line)
	case mnem == "add":
		return decodeArith(OpAdd, ops, line)
	case mnem == "adds":
		return decodeArith(OpAdds, ops, line)
	case mnem == "sub":
		return decodeArith(OpSub, ops, line)
	case mnem == "subs":
		return decodeArith(OpSubs, ops, line)
	case mnem == "asr":
		return decodeShift(OpAsr, ops, line)
	case mnem == "lsl":
		return decodeShift(OpLsl, ops, line)
	case mnem == "mul":
		return decodeTriReg(OpMul, ops, line)
	case mnem == "udiv":
		return decodeTriReg(OpUdiv, ops, line)
	case mnem == "sdiv":
		return decodeTriReg(OpSdiv, ops, line)
	case mnem == "madd":
		return decodeMaddMsub(OpMadd, ops, line)
	case mnem == "msub":
		return decodeMaddMsub(OpMsub, ops, line)
	case mnem == "and":
		return decodeArith(OpAnd, ops, line)
	case mnem == "ands":
		return decodeArith(OpAnds, ops, line)
	case mnem == "orr":
		return decodeArith(OpOrr, ops, line)
	case mnem == "orrs":
		return decodeArith(OpOrrs, ops, line)
	case mnem == "eor":
		return decodeArith(OpEor, ops, line)
	case mnem == "eors":
		return decodeArith(OpEors, ops, line)
	case mnem == "cmp":
		return decodeCmp(ops, line)
	case mnem == "cbnz":
		return decodeCb(OpCbnz, ops, line)
	case mnem == "cbz":
		return decodeCb(OpCbz, ops, line)
	case mnem == "b":
		return decodeB(ops, line)
	case strings.HasPrefix(mnem, "b."):
		return decodeBCond(mnem, ops, line)
	case mnem == "bl":
		return decodeBl(ops, line)
	case mnem == "ret":
		return decodeRet(ops, line)
	case mnem == "svc":
		return decodeSvc(ops, line)
	}
	return nil, syntaxErr(line)
}

func splitMnemonic(line string) (mnem, rest string) {
	if sp := strings.IndexByte(line, ' '); sp >= 0 {
		return line[:sp], strings.TrimSpace(line[sp+1:])
	}
	return line, ""
}

// splitOperands splits a comma-separated operand string at top level only,
// treating a bracketed `[...]` group as a single atomic token so addressing
// forms like `[x1,#8]` or `[x1,x2]` never get split internally.
func splitOperands(s string) []string {
	if s == "" {
		return nil
	}
	var result []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			depth--
		case ',':
			if depth == 0 {
				result = append(result, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	result = append(result, strings.TrimSpace(s[start:]))
	return result
}

func parseImmediateToken(tok string) (int64, bool) {
	tok = strings.TrimPrefix(tok, "#")
	neg := false
	if strings.HasPrefix(tok, "-") {
		neg = true
		tok = tok[1:]
	}
	if tok == "" {
		return 0, false
	}
	var n int64
	var err error
	if strings.HasPrefix(tok, "0x") || strings.HasPrefix(tok, "0X") {
		n, err = strconv.ParseInt(tok[2:], 16, 64)
	} else {
		n, err = strconv.ParseInt(tok, 10, 64)
	}
	if err != nil {
		return 0, false
	}
	if neg {
		n = -n
	}
	return n, true
}

func isLabelToken(tok string) bool {
	return tok != "" && labelTokenRe.MatchString(tok)
}

func syntaxErr(raw string) error {
	return fmt.Errorf("%w: %q", ErrSyntaxOrUnsupported, raw)
}

// parseBracket strips an optional trailing `!` (pre-index write-back marker)
// and the surrounding `[...]`, returning the inner text.
func parseBracket(tok string) (inner string, preIndexed bool, err error) {
	preIndexed = strings.HasSuffix(tok, "!")
	if preIndexed {
		tok = strings.TrimSuffix(tok, "!")
	}
	if !strings.HasPrefix(tok, "[") || !strings.HasSuffix(tok, "]") {
		return "", false, fmt.Errorf("not a bracketed address operand")
	}
	return tok[1 : len(tok)-1], preIndexed, nil
}

func decodeLoadStorePair(op Op, ops []string, raw string) (*Instr, error) {
	if len(ops) == 4 {
		rt, rt2, memTok, offTok := ops[0], ops[1], ops[2], ops[3]
		if !IsRegisterName(rt) || !IsRegisterName(rt2) {
			return nil, syntaxErr(raw)
		}
		inner, pre, err := parseBracket(memTok)
		if err != nil || pre {
			return nil, syntaxErr(raw)
		}
		rn := inner
		if !IsRegisterName(rn) {
			return nil, syntaxErr(raw)
		}
		off, ok := parseImmediateToken(offTok)
		if !ok {
			return nil, syntaxErr(raw)
		}
		return &Instr{Op: op, Raw: raw, Rt: rt, Rt2: rt2, Rn: rn, Offset: off, HasOffset: true, Mode: AddrPostIndex}, nil
	}
	if len(ops) != 3 {
		return nil, syntaxErr(raw)
	}
	rt, rt2, memTok := ops[0], ops[1], ops[2]
	if !IsRegisterName(rt) || !IsRegisterName(rt2) {
		return nil, syntaxErr(raw)
	}
	inner, pre, err := parseBracket(memTok)
	if err != nil {
		return nil, syntaxErr(raw)
	}
	parts := splitOperands(inner)
	if len(parts) < 1 || len(parts) > 2 {
		return nil, syntaxErr(raw)
	}
	rn := parts[0]
	if !IsRegisterName(rn) {
		return nil, syntaxErr(raw)
	}
	instr := &Instr{Op: op, Raw: raw, Rt: rt, Rt2: rt2, Rn: rn}
	if len(parts) == 2 {
		off, ok := parseImmediateToken(parts[1])
		if !ok {
			return nil, syntaxErr(raw)
		}
		instr.Offset = off
		instr.HasOffset = true
	}
	switch {
	case pre:
		if !instr.HasOffset {
			return nil, syntaxErr(raw)
		}
		instr.Mode = AddrPreIndex
	case instr.HasOffset:
		instr.Mode = AddrOffset
	default:
		instr.Mode = AddrPlain
	}
	return instr, nil
}

func decodeLdr(ops []string, raw string) (*Instr, error) {
	if len(ops) < 2 {
		return nil, syntaxErr(raw)
	}
	rt := ops[0]
	if !IsRegisterName(rt) {
		return nil, syntaxErr(raw)
	}
	if len(ops) == 2 && strings.HasPrefix(ops[1], "=") {
		return &Instr{Op: OpLdrLit, Raw: raw, Rt: rt, Var: ops[1][1:]}, nil
	}
	return decodeMemOperand(OpLdr, rt, ops[1:], raw)
}

func decodeStr(ops []string, raw string) (*Instr, error) {
	if len(ops) < 2 {
		return nil, syntaxErr(raw)
	}
	rt := ops[0]
	if !IsRegisterName(rt) {
		return nil, syntaxErr(raw)
	}
	return decodeMemOperand(OpStr, rt, ops[1:], raw)
}

func decodeMemOperand(op Op, rt string, tokens []string, raw string) (*Instr, error) {
	if len(tokens) == 2 {
		memTok, offTok := tokens[0], tokens[1]
		inner, pre, err := parseBracket(memTok)
		if err != nil || pre {
			return nil, syntaxErr(raw)
		}
		rn := inner
		if !IsRegisterName(rn) {
			return nil, syntaxErr(raw)
		}
		off, ok := parseImmediateToken(offTok)
		if !ok {
			return nil, syntaxErr(raw)
		}
		return &Instr{Op: op, Raw: raw, Rt: rt, Rn: rn, Offset: off, HasOffset: true, Mode: AddrPostIndex}, nil
	}
	if len(tokens) != 1 {
		return nil, syntaxErr(raw)
	}
	inner, pre, err := parseBracket(tokens[0])
	if err != nil {
		return nil, syntaxErr(raw)
	}
	parts := splitOperands(inner)
	if len(parts) < 1 || len(parts) > 2 {
		return nil, syntaxErr(raw)
	}
	rn := parts[0]
	if !IsRegisterName(rn) {
		return nil, syntaxErr(raw)
	}
	instr := &Instr{Op: op, Raw: raw, Rt: rt, Rn: rn}
	if len(parts) == 2 {
		second := parts[1]
		if imm, ok := parseImmediateToken(second); ok {
			instr.Offset = imm
			instr.HasOffset = true
		} else if IsRegisterName(second) {
			instr.Rm = second
		} else {
			return nil, syntaxErr(raw)
		}
	}
	switch {
	case pre:
		if !instr.HasOffset {
			return nil, syntaxErr(raw)
		}
		instr.Mode = AddrPreIndex
	case instr.Rm != "":
		instr.Mode = AddrRegister
	case instr.HasOffset:
		instr.Mode = AddrOffset
	default:
		instr.Mode = AddrPlain
	}
	return instr, nil
}

func decodeMov(ops []string, raw string) (*Instr, error) {
	if len(ops) != 2 {
		return nil, syntaxErr(raw)
	}
	rd := ops[0]
	if !IsRegisterName(rd) {
		return nil, syntaxErr(raw)
	}
	instr := &Instr{Op: OpMov, Raw: raw, Rd: rd}
	if imm, ok := parseImmediateToken(ops[1]); ok {
		instr.Imm = imm
		instr.HasImm = true
		return instr, nil
	}
	if IsRegisterName(ops[1]) {
		instr.Rn = ops[1]
		return instr, nil
	}
	return nil, syntaxErr(raw)
}

func decodeArith(op Op, ops []string, raw string) (*Instr, error) {
	if len(ops) != 3 {
		return nil, syntaxErr(raw)
	}
	rd, rn := ops[0], ops[1]
	if !IsRegisterName(rd) || !IsRegisterName(rn) {
		return nil, syntaxErr(raw)
	}
	instr := &Instr{Op: op, Raw: raw, Rd: rd, Rn: rn}
	third := ops[2]
	if imm, ok := parseImmediateToken(third); ok {
		instr.Imm = imm
		instr.HasImm = true
		return instr, nil
	}
	if IsRegisterName(third) {
		instr.Rm = third
		return instr, nil
	}
	return nil, syntaxErr(raw)
}

func decodeShift(op Op, ops []string, raw string) (*Instr, error) {
	if len(ops) != 3 {
		return nil, syntaxErr(raw)
	}
	rd, rn := ops[0], ops[1]
	if !IsRegisterName(rd) || !IsRegisterName(rn) {
		return nil, syntaxErr(raw)
	}
	imm, ok := parseImmediateToken(ops[2])
	if !ok {
		return nil, syntaxErr(raw)
	}
	return &Instr{Op: op, Raw: raw, Rd: rd, Rn: rn, Imm: imm, HasImm: true}, nil
}

func decodeTriReg(op Op, ops []string, raw string) (*Instr, error) {
	if len(ops) != 3 {
		return nil, syntaxErr(raw)
	}
	rd, rn, rm := ops[0], ops[1], ops[2]
	if !IsRegisterName(rd) || !IsRegisterName(rn) || !IsRegisterName(rm) {
		return nil, syntaxErr(raw)
	}
	return &Instr{Op: op, Raw: raw, Rd: rd, Rn: rn, Rm: rm}, nil
}

func decodeMaddMsub(op Op, ops []string, raw string) (*Instr, error) {
	if len(ops) != 4 {
		return nil, syntaxErr(raw)
	}
	rd, rn, rm, ra := ops[0], ops[1], ops[2], ops[3]
	if !IsRegisterName(rd) || !IsRegisterName(rn) || !IsRegisterName(rm) || !IsRegisterName(ra) {
		return nil, syntaxErr(raw)
	}
	return &Instr{Op: op, Raw: raw, Rd: rd, Rn: rn, Rm: rm, Ra: ra}, nil
}

func decodeCmp(ops []string, raw string) (*Instr, error) {
	if len(ops) != 2 {
		return nil, syntaxErr(raw)
	}
	rn := ops[0]
	if !IsRegisterName(rn) {
		return nil, syntaxErr(raw)
	}
	second := ops[1]
	if second == "sp" {
		return nil, syntaxErr(raw)
	}
	instr := &Instr{Op: OpCmp, Raw: raw, Rn: rn}
	if imm, ok := parseImmediateToken(second); ok {
		instr.Imm = imm
		instr.HasImm = true
		return instr, nil
	}
	if IsRegisterName(second) {
		instr.Rm = second
		return instr, nil
	}
	return nil, syntaxErr(raw)
}

func decodeCb(op Op, ops []string, raw string) (*Instr, error) {
	if len(ops) != 2 {
		return nil, syntaxErr(raw)
	}
	rn := ops[0]
	if !IsRegisterName(rn) {
		return nil, syntaxErr(raw)
	}
	label := ops[1]
	if IsRegisterName(label) || !isLabelToken(label) {
		return nil, syntaxErr(raw)
	}
	return &Instr{Op: op, Raw: raw, Rn: rn, Label: label}, nil
}

func decodeB(ops []string, raw string) (*Instr, error) {
	if len(ops) != 1 {
		return nil, syntaxErr(raw)
	}
	label := ops[0]
	if IsRegisterName(label) || !isLabelToken(label) {
		return nil, syntaxErr(raw)
	}
	return &Instr{Op: OpB, Raw: raw, Label: label}, nil
}

var validConds = map[string]bool{
	"eq": true, "ne": true, "lt": true, "le": true,
	"gt": true, "ge": true, "mi": true, "pl": true,
}

func decodeBCond(mnem string, ops []string, raw string) (*Instr, error) {
	cond := strings.TrimPrefix(mnem, "b.")
	if !validConds[cond] {
		return nil, syntaxErr(raw)
	}
	if len(ops) != 1 {
		return nil, syntaxErr(raw)
	}
	label := ops[0]
	if IsRegisterName(label) || !isLabelToken(label) {
		return nil, syntaxErr(raw)
	}
	return &Instr{Op: OpBCond, Raw: raw, Cond: cond, Label: label}, nil
}

func decodeBl(ops []string, raw string) (*Instr, error) {
	if len(ops) != 1 {
		return nil, syntaxErr(raw)
	}
	label := ops[0]
	if IsRegisterName(label) || !isLabelToken(label) {
		return nil, syntaxErr(raw)
	}
	return &Instr{Op: OpBl, Raw: raw, Label: label}, nil
}

func decodeRet(ops []string, raw string) (*Instr, error) {
	if len(ops) != 0 {
		return nil, syntaxErr(raw)
	}
	return &Instr{Op: OpRet, Raw: raw}, nil
}

func decodeSvc(ops []string, raw string) (*Instr, error) {
	if len(ops) != 1 {
		return nil, syntaxErr(raw)
	}
	imm, ok := parseImmediateToken(ops[0])
	if !ok {
		return nil, syntaxErr(raw)
	}
	return &Instr{Op: OpSvc, Raw: raw, Imm: imm, HasImm: true}, nil
}
