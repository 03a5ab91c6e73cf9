package riscv

import (
	"errors"
	"fmt"
)

// ErrHalt regular program termination: a return whose target is the sentinel
// return address planted by the runner.
var ErrHalt = errors.New("halt")

// ErrTimeout the optional bounded-execution ceiling was exceeded.
var ErrTimeout = errors.New("instruction ceiling exceeded")

// ErrOutOfRange a memory access with at least one byte outside the image.
type ErrOutOfRange struct {
	Addr  uint32
	Width int
	Size  uint32
}

func (e *ErrOutOfRange) Error() string {
	return fmt.Sprintf("memory access out of range: addr=0x%08x width=%d size=0x%x", e.Addr, e.Width, e.Size)
}

// ErrIllegalInstruction an instruction word the decoder does not recognize:
// an opcode outside the supported table, an all-zero word, or an R-type with
// an unknown (funct3, funct7) pair.
type ErrIllegalInstruction struct {
	Word uint32
	PC   uint32
}

func (e *ErrIllegalInstruction) Error() string {
	return fmt.Sprintf("illegal instruction 0x%08x at pc=0x%08x", e.Word, e.PC)
}

// ErrMemoryFault a load or store whose effective address lies outside the
// memory image. Wraps the underlying *ErrOutOfRange.
type ErrMemoryFault struct {
	PC  uint32
	Err error
}

func (e *ErrMemoryFault) Error() string {
	return fmt.Sprintf("memory fault at pc=0x%08x: %v", e.PC, e.Err)
}

func (e *ErrMemoryFault) Unwrap() error {
	return e.Err
}
