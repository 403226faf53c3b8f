package vm_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aarch64sim/armsim/parser"
	"github.com/aarch64sim/armsim/vm"
)

func mustParse(t *testing.T, lines []string) *parser.Program {
	t.Helper()
	prog, err := parser.Parse(lines, "engine_test")
	require.NoError(t, err)
	return prog
}

func TestEngine_Arithmetic(t *testing.T) {
	prog := mustParse(t, []string{
		"mov x0,#2",
		"mov x1,#5",
		"add x0,x0,x1",
		"sub x0,x0,#0",
	})
	engine := vm.NewEngine(prog)
	require.NoError(t, engine.Run(vm.DynamicRules{}))

	assert.EqualValues(t, 7, engine.ExitCode())
	assert.False(t, engine.Flags.Z)
	assert.False(t, engine.Flags.N)
}

// The spec's prose writes the taken branch as "b.eq +1", a PC-relative
// offset form the decoder never supports (branches are always resolved by
// label name, per the decoder's isLabelToken grammar). Rewritten with an
// explicit label, this is the same one-instruction skip (over "mov x0,#99")
// the scenario describes.
func TestEngine_Branching(t *testing.T) {
	prog := mustParse(t, []string{
		"mov x0,#0",
		"mov x1,#1",
		"cmp x1,#1",
		"b.eq skip",
		"mov x0,#99",
		"skip:",
		"add x0,x0,#7",
	})
	engine := vm.NewEngine(prog)
	require.NoError(t, engine.Run(vm.DynamicRules{}))

	assert.EqualValues(t, 7, engine.ExitCode())
	assert.Equal(t, 1, engine.LabelHitCounts["skip:"])
}

func TestEngine_LoadStorePair(t *testing.T) {
	prog := mustParse(t, []string{
		".data",
		"buf: .space 32",
		"_start:",
		"ldr x1,=buf",
		"mov x2,#3",
		"mov x3,#4",
		"stp x2,x3,[x1]",
		"ldp x4,x5,[x1]",
		"add x0,x4,x5",
	})
	engine := vm.NewEngine(prog)
	require.NoError(t, engine.Run(vm.DynamicRules{}))

	assert.EqualValues(t, 7, engine.ExitCode())
}

// Computes the Collatz step count of 37 by counting every recursive call,
// including the terminal n==1 call: 37,112,56,28,14,7,22,11,34,17,52,26,
// 13,40,20,10,5,16,8,4,2,1 is 22 calls. Each recursive level saves/restores
// lr around its own "bl collatz" the way a real AArch64 leaf-calling-
// non-leaf function would, since lr is a single register, not a stack:
// without the save/restore every "ret" at every recursion depth would
// resolve to the same link address and unwind only one level correctly.
func collatzLines() []string {
	return []string{
		"_start:",
		"mov x0,#37",
		"mov x1,#0",
		"bl collatz",
		"b collatz_exit",
		"collatz:",
		"add x1,x1,#1",
		"cmp x0,#1",
		"b.eq collatz_done",
		"and x2,x0,#1",
		"cbnz x2,collatz_odd",
		"asr x0,x0,#1",
		"b collatz_recurse",
		"collatz_odd:",
		"mov x3,#3",
		"mul x0,x0,x3",
		"add x0,x0,#1",
		"collatz_recurse:",
		"sub sp,sp,#8",
		"str lr,[sp]",
		"bl collatz",
		"ldr lr,[sp]",
		"add sp,sp,#8",
		"ret",
		"collatz_done:",
		"mov x0,x1",
		"ret",
		"collatz_exit:",
	}
}

func TestEngine_Recursion_Collatz(t *testing.T) {
	prog := mustParse(t, collatzLines())
	engine := vm.NewEngine(prog)
	require.NoError(t, engine.Run(vm.DynamicRules{}))

	assert.EqualValues(t, 22, engine.ExitCode())
	assert.True(t, engine.RecursedLabels["collatz"])
	// collatz: is reached only via bl, never via b/b.cond/cbz/cbnz, so its
	// hit count is arrivals (22, one per call) plus bl instructions
	// targeting it (22, the same 22 calls) per the spec's stated sum.
	assert.Equal(t, 44, engine.LabelHitCounts["collatz:"])
}

func TestEngine_ForbidRecursion(t *testing.T) {
	prog := mustParse(t, collatzLines())
	engine := vm.NewEngine(prog)

	err := engine.Run(vm.DynamicRules{ForbidRecursion: true})
	require.Error(t, err)

	var violation *vm.StaticRuleViolation
	require.True(t, errors.As(err, &violation))
	assert.True(t, errors.Is(err, vm.ErrStaticRuleViolation))
}

func TestEngine_RequireRecursiveLabel_Missing(t *testing.T) {
	prog := mustParse(t, []string{
		"mov x0,#1",
	})
	engine := vm.NewEngine(prog)

	err := engine.Run(vm.DynamicRules{RecursiveLabels: []string{"collatz"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, vm.ErrStaticRuleViolation))
}

func TestCheckStatic_ForbiddenMnemonic(t *testing.T) {
	prog := mustParse(t, []string{
		"mov x0,#1",
	})

	err := vm.CheckStatic(prog, nil, vm.AnalyzerConfig{Forbidden: []string{"mov"}})
	require.Error(t, err)

	var violation *vm.StaticRuleViolation
	require.True(t, errors.As(err, &violation))
}

func TestEngine_CmpSameRegister(t *testing.T) {
	prog := mustParse(t, []string{
		"mov x0,#5",
		"cmp x0,x0",
	})
	engine := vm.NewEngine(prog)
	require.NoError(t, engine.Run(vm.DynamicRules{}))

	assert.True(t, engine.Flags.Z)
	assert.False(t, engine.Flags.N)
}

func TestEngine_SdivByZero(t *testing.T) {
	prog := mustParse(t, []string{
		"mov x1,#10",
		"mov x2,#0",
		"sdiv x0,x1,x2",
	})
	engine := vm.NewEngine(prog)
	err := engine.Run(vm.DynamicRules{})
	require.Error(t, err)
}

func TestEngine_Sdiv_FloorsTowardNegativeInfinity(t *testing.T) {
	prog := mustParse(t, []string{
		"mov x1,#-7",
		"mov x2,#2",
		"sdiv x0,x1,x2",
	})
	engine := vm.NewEngine(prog)
	require.NoError(t, engine.Run(vm.DynamicRules{}))

	// -7/2 truncated toward zero is -3; floored toward -infinity is -4.
	assert.EqualValues(t, -4, engine.ExitCode())
}

// udiv is spec'd to alias sdiv's signed division exactly: there is no true
// unsigned division in this register file, since every register is signed.
func TestEngine_Udiv_IsSignedLikeSdiv(t *testing.T) {
	prog := mustParse(t, []string{
		"mov x1,#-4",
		"mov x2,#2",
		"udiv x0,x1,x2",
	})
	engine := vm.NewEngine(prog)
	require.NoError(t, engine.Run(vm.DynamicRules{}))

	assert.EqualValues(t, -2, engine.ExitCode())
}

func TestEngine_UdivByZero(t *testing.T) {
	prog := mustParse(t, []string{
		"mov x1,#10",
		"mov x2,#0",
		"udiv x0,x1,x2",
	})
	engine := vm.NewEngine(prog)
	err := engine.Run(vm.DynamicRules{})
	require.Error(t, err)
}

func TestEngine_StoreLoadRoundTrip(t *testing.T) {
	prog := mustParse(t, []string{
		".data",
		"buf: .space 8",
		"_start:",
		"ldr x1,=buf",
		"mov x2,#-42",
		"str x2,[x1]",
		"ldr x0,[x1]",
	})
	engine := vm.NewEngine(prog)
	require.NoError(t, engine.Run(vm.DynamicRules{}))

	assert.EqualValues(t, -42, engine.ExitCode())
}

func TestEngine_RunsToEndOfInstructions(t *testing.T) {
	prog := mustParse(t, []string{
		"mov x0,#1",
		"mov x0,#2",
		"mov x0,#3",
	})
	engine := vm.NewEngine(prog)
	require.NoError(t, engine.Run(vm.DynamicRules{}))
	assert.EqualValues(t, 3, engine.ExitCode())
}
