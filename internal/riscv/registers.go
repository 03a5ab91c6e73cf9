package riscv

import (
	"fmt"
	"strings"
)

// Reg is a general-purpose register index (x0..x31).
type Reg uint8

const (
	Zero Reg = 0
	RA   Reg = 1
	SP   Reg = 2
	GP   Reg = 3
	TP   Reg = 4
	T0   Reg = 5
	T1   Reg = 6
	T2   Reg = 7
	S0   Reg = 8
	S1   Reg = 9
	A0   Reg = 10
	A1   Reg = 11
	A2   Reg = 12
	A3   Reg = 13
	A4   Reg = 14
	A5   Reg = 15
	A6   Reg = 16
	A7   Reg = 17
	S2   Reg = 18
	S3   Reg = 19
	S4   Reg = 20
	S5   Reg = 21
	S6   Reg = 22
	S7   Reg = 23
	S8   Reg = 24
	S9   Reg = 25
	S10  Reg = 26
	S11  Reg = 27
	T3   Reg = 28
	T4   Reg = 29
	T5   Reg = 30
	T6   Reg = 31
)

// ReturnAddressSentinel is planted into ra before execution starts. A return
// that would redirect the PC here is the program leaving its entry function,
// which is how a run terminates. The value sits far above any loadable
// segment of a 32-bit image.
const ReturnAddressSentinel uint32 = 1<<32 - 1<<16

// abiNames holds the calling-convention mnemonics in index order. Names are
// attached here rather than stored per entry.
var abiNames = [32]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

func (r Reg) String() string {
	if r > 31 {
		return fmt.Sprintf("x%d", uint8(r))
	}
	return abiNames[r]
}

// Registers is the general-purpose register file (ω). Index 0 is hardwired to
// zero: reads return 0 and writes are dropped here, so no execution unit has
// to care.
type Registers struct {
	x [32]uint32
}

func (r *Registers) Read(idx Reg) uint32 {
	if idx == Zero {
		return 0
	}
	return r.x[idx&31]
}

func (r *Registers) Write(idx Reg, value uint32) {
	if idx == Zero {
		return
	}
	r.x[idx&31] = value
}

// SP returns the current stack pointer.
func (r *Registers) SP() uint32 {
	return r.x[SP]
}

// Dump renders the architectural state in the stable report format: a PC line
// followed by one line per register in ABI index order.
func (r *Registers) Dump(pc uint32) string {
	var b strings.Builder
	fmt.Fprintf(&b, "PC: 0x%08x\n", pc)
	for i := range r.x {
		fmt.Fprintf(&b, "%s: 0x%08x\n", Reg(i), r.Read(Reg(i)))
	}
	return b.String()
}
