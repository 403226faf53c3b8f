package debugger

// Memory Display Constants
const (
	// MemoryDisplayBytesPerRow is the number of bytes displayed per row of
	// a hex dump.
	MemoryDisplayBytesPerRow = 16

	// MemoryDisplayDefaultRows is how many rows "mem <addr>" shows when no
	// explicit length is given.
	MemoryDisplayDefaultRows = 8
)

// CodeContextLines is how many instructions of context "list" shows
// around the current PC.
const CodeContextLines = 5
