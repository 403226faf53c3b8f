package vm

import (
	"encoding/binary"
	"fmt"
)

// Arena is the flat byte array hosting the static data, heap, and stack
// regions. Layout, left to right: static data [0, DataPtr), heap
// [DataPtr, DataPtr+HeapCapacity), stack [DataPtr+HeapCapacity, len).
//
// Brk is the guest-visible end of the heap (moved only by the brk
// syscall); HeapPtr is the page-rounded high-water mark used by the main
// loop's stack-overflow check. Both start at DataPtr and move only through
// the brk syscall.
type Arena struct {
	Bytes   []byte
	DataPtr int
	Brk     int
	HeapPtr int
	HeapCap int // reserved heap capacity; brk requests beyond DataPtr+HeapCap fail
}

// NewArena lays static out at the front of a fresh arena and reserves
// HeapCapacity+StackCapacity zero bytes after it, per end-of-parse in the
// section parser (C2).
func NewArena(static []byte) *Arena {
	return NewArenaWithCapacity(static, HeapCapacity, StackCapacity)
}

// NewArenaWithCapacity is NewArena with caller-supplied heap/stack
// reservations, for configs that override the spec's default sizes.
func NewArenaWithCapacity(static []byte, heapCap, stackCap int) *Arena {
	dataPtr := len(static)
	buf := make([]byte, dataPtr+heapCap+stackCap)
	copy(buf, static)
	return &Arena{
		Bytes:   buf,
		DataPtr: dataPtr,
		Brk:     dataPtr,
		HeapPtr: dataPtr,
		HeapCap: heapCap,
	}
}

// Len returns the arena's total size in bytes.
func (a *Arena) Len() int { return len(a.Bytes) }

// InitialSP is the stack pointer's value at the start of a run: the last
// valid byte index of the arena, per original_source/armsim.py (`s=[0]*1001;
// reg['sp']=1000`) — see DESIGN.md for why this, not "one past the last
// byte", is the value that satisfies the `sp <= arena_len` invariant used
// elsewhere in the spec.
func (a *Arena) InitialSP() int64 { return int64(len(a.Bytes) - 1) }

// checkAccess enforces the §3 memory invariants for an access of the given
// width at addr, given the current stack pointer: inside the arena, and
// either wholly within [0, Brk) or wholly within [sp, len) — never
// straddling the brk/sp gap.
func (a *Arena) checkAccess(addr, width int, sp int64) error {
	if width <= 0 {
		return fmt.Errorf("%w: invalid access width %d", ErrOutOfBounds, width)
	}
	if addr < 0 || addr+width > len(a.Bytes) {
		return fmt.Errorf("%w: address 0x%x width %d outside arena [0,0x%x)", ErrOutOfBounds, addr, width, len(a.Bytes))
	}
	inData := addr+width <= a.Brk
	inStack := int64(addr) >= sp
	if !inData && !inStack {
		return fmt.Errorf("%w: access [0x%x,0x%x) straddles the brk/sp gap (brk=0x%x, sp=0x%x)", ErrOutOfBounds, addr, addr+width, a.Brk, sp)
	}
	return nil
}

// ReadN reads width bytes starting at addr.
func (a *Arena) ReadN(addr, width int, sp int64) ([]byte, error) {
	if err := a.checkAccess(addr, width, sp); err != nil {
		return nil, err
	}
	out := make([]byte, width)
	copy(out, a.Bytes[addr:addr+width])
	return out, nil
}

// WriteN writes data starting at addr.
func (a *Arena) WriteN(addr int, data []byte, sp int64) error {
	if err := a.checkAccess(addr, len(data), sp); err != nil {
		return err
	}
	copy(a.Bytes[addr:addr+len(data)], data)
	return nil
}

// ReadInt64 loads 8 bytes little-endian and widens to the engine's signed
// register representation.
func (a *Arena) ReadInt64(addr int, sp int64) (int64, error) {
	b, err := a.ReadN(addr, 8, sp)
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(b)), nil
}

// WriteInt64 stores the low 8 bytes of v's two's-complement representation,
// little-endian.
func (a *Arena) WriteInt64(addr int, v int64, sp int64) error {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, uint64(v))
	return a.WriteN(addr, b, sp)
}

// Raw returns a copy of the raw byte range [addr, addr+size) without
// bounds checking against brk/sp — used by the data accessor (C9), which
// reads already-validated static-data ranges rather than runtime operands.
func (a *Arena) Raw(addr, size int) []byte {
	out := make([]byte, size)
	copy(out, a.Bytes[addr:addr+size])
	return out
}
