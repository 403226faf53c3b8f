package vm

import (
	"encoding/binary"
	"fmt"

	"github.com/aarch64sim/armsim/parser"
)

// DataValue is the result of C9's data accessor: exactly one of its fields
// is meaningful, selected by Kind.
type DataValue struct {
	Kind    parser.DataType
	Text    string  // Kind == DataAsciz
	Words   []int64 // Kind == DataWords8
	Raw     []byte  // Kind == DataSpace
	Literal int64   // Kind == DataNone (a pure literal, or an address symbol with no _TYPE_ shadow)
}

// ResolveSymbol implements C9: given a symbol name, consult its _TYPE_
// shadow (absent for a pure literal) and return the matching sequence.
// Used by external collaborators such as the debugger to print variables.
func (e *Engine) ResolveSymbol(name string) (*DataValue, error) {
	sym, ok := e.Syms.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: unknown symbol %q", ErrSyntaxOrUnsupported, name)
	}
	if sym.Kind == parser.SymbolLiteral {
		return &DataValue{Kind: parser.DataNone, Literal: sym.Value}, nil
	}

	raw := e.Arena.Raw(int(sym.Value), sym.Size)
	switch sym.Type {
	case parser.DataAsciz:
		return &DataValue{Kind: parser.DataAsciz, Text: string(raw)}, nil
	case parser.DataWords8:
		words := make([]int64, sym.Size/8)
		for i := range words {
			words[i] = int64(binary.LittleEndian.Uint64(raw[i*8 : i*8+8]))
		}
		return &DataValue{Kind: parser.DataWords8, Words: words}, nil
	case parser.DataSpace:
		return &DataValue{Kind: parser.DataSpace, Raw: raw}, nil
	default:
		return &DataValue{Kind: parser.DataNone, Literal: sym.Value}, nil
	}
}
