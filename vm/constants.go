package vm

// Fixed sizes of the memory arena's dynamic regions. The static data region
// is whatever the parser emitted; these two are reserved once at end-of-parse
// and never resized.
const (
	HeapCapacity  = 0x4000 // 16 KiB
	StackCapacity = 4096   // bytes
)

// brkRoundSize is the page size the brk syscall rounds requests up to.
const brkRoundSize = 0x1000

// generalRegisterCount is the number of x0..x28 registers.
const generalRegisterCount = 29
