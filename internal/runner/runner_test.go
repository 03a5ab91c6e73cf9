package runner

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/bilberry/internal/loader"
	"github.com/eigerco/bilberry/internal/riscv"
	"github.com/eigerco/bilberry/internal/store"
)

func program(entry uint32, words []uint32) *loader.Program {
	data := new(bytes.Buffer)
	for _, w := range words {
		binary.Write(data, binary.LittleEndian, w)
	}
	return &loader.Program{
		Segments:  []loader.Segment{{Addr: entry, Data: data.Bytes()}},
		Entry:     entry,
		StackBase: loader.DefaultStackBase,
		StackSize: loader.DefaultStackSize,
	}
}

// requireDumpEqual diffs two register dumps line by line, so a mismatch shows
// exactly which registers diverged.
func requireDumpEqual(t *testing.T, expected, actual string) {
	t.Helper()
	diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(expected),
		B:        difflib.SplitLines(actual),
		FromFile: "Expected",
		ToFile:   "Actual",
		Context:  1,
	})
	if diff != "" {
		t.Fatalf("state mismatch:\n%s", diff)
	}
}

func TestRunAddiSequence(t *testing.T) {
	prog := program(0x100, []uint32{
		0x00500293, // addi x5, x0, 5
		0x00A00313, // addi x6, x0, 10
		0x006283B3, // add x7, x5, x6
		0x00008067, // ret
	})

	var out bytes.Buffer
	dump, err := Run(prog, Options{Out: &out})
	require.NoError(t, err)
	assert.Equal(t, dump, out.String())

	expected := &riscv.Registers{}
	expected.Write(riscv.RA, riscv.ReturnAddressSentinel)
	expected.Write(riscv.SP, prog.StackTop())
	expected.Write(riscv.T0, 5)
	expected.Write(riscv.T1, 10)
	expected.Write(riscv.T2, 15)
	requireDumpEqual(t, expected.Dump(riscv.ReturnAddressSentinel), dump)
}

func TestRunDumpFormat(t *testing.T) {
	prog := program(0, []uint32{0x00008067})

	var out bytes.Buffer
	dump, err := Run(prog, Options{Out: &out})
	require.NoError(t, err)

	assert.Regexp(t, `^PC: 0x[0-9a-f]{8}\n`, dump)
	assert.Contains(t, dump, fmt.Sprintf("sp: 0x%08x\n", prog.StackTop()))
	assert.Contains(t, dump, fmt.Sprintf("ra: 0x%08x\n", riscv.ReturnAddressSentinel))
	assert.Equal(t, 33, bytes.Count([]byte(dump), []byte("\n")))
}

func TestRunFaultStillDumps(t *testing.T) {
	prog := program(0, []uint32{
		0x00500293, // addi x5, x0, 5
		0x00000000, // zero word: illegal
	})

	var out bytes.Buffer
	_, err := Run(prog, Options{Out: &out})
	var illegal *riscv.ErrIllegalInstruction
	require.ErrorAs(t, err, &illegal)
	assert.NotEmpty(t, out.String(), "the state at the fault point must still be reported")
}

func TestRunSegmentOutsideMemory(t *testing.T) {
	prog := &loader.Program{
		Segments: []loader.Segment{{Addr: 0xFFFFF000, Data: []byte{1, 2, 3, 4}}},
		Entry:    0xFFFFF000,
	}
	_, err := Run(prog, Options{MemorySize: 1 << 16})
	require.Error(t, err)
}

func TestRunTimeout(t *testing.T) {
	prog := program(0, []uint32{
		riscv.Encode(riscv.Instruction{Opcode: riscv.OpcodeJAL, Shape: riscv.ShapeJ, Rd: riscv.Zero, Imm: 0}),
	})
	_, err := Run(prog, Options{MaxTicks: 50})
	require.ErrorIs(t, err, riscv.ErrTimeout)
}

func TestRunWithTraceStore(t *testing.T) {
	ts, err := store.Open(t.TempDir())
	require.NoError(t, err)
	defer ts.Close()

	prog := program(0, []uint32{
		0x00500293, // addi x5, x0, 5
		0x00008067, // ret
	})
	dump, err := Run(prog, Options{Out: &bytes.Buffer{}, Trace: ts})
	require.NoError(t, err)

	records, err := ts.Records()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, uint32(0), records[0].PC)
	assert.Equal(t, uint32(0x00500293), records[0].Word)
	assert.Equal(t, riscv.T0, records[0].Rd)
	assert.Equal(t, uint32(5), records[0].RdValue)
	assert.Equal(t, uint32(4), records[1].PC)

	digest, err := ts.StateDigest()
	require.NoError(t, err)
	assert.Len(t, digest, 32)
	assert.NotEmpty(t, dump)
}
