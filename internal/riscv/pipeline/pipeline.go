// Package pipeline drives decoded instructions through the five classic
// stages: fetch, decode, execute, memory and write-back. The engine is a
// single-threaded tick loop that evaluates the stages in reverse order, so
// within one tick every in-flight instruction advances exactly one stage and
// no instruction can skip ahead.
package pipeline

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/eigerco/bilberry/internal/riscv"
)

// Commit describes one instruction leaving write-back. It feeds the debug
// tracer and any registered commit hook.
type Commit struct {
	Tick    uint64
	PC      uint32
	Word    uint32
	RdWrite bool
	Rd      riscv.Reg
	RdValue uint32
}

// CommitFn observes committed instructions, e.g. to persist an execution
// trace. Errors are logged as warnings and do not stop the run.
type CommitFn func(Commit) error

// Options tune a pipeline run.
type Options struct {
	// MaxTicks bounds execution for testing; 0 means unbounded. Exceeding
	// the ceiling fails the run with riscv.ErrTimeout.
	MaxTicks uint64
	// OnCommit, when set, is called for every committed instruction.
	OnCommit CommitFn
	// Log receives per-commit debug tracing and commit-hook warnings.
	Log zerolog.Logger
}

// Pipeline stage latches. Downstream stages act only on valid entries; a
// stall leaves the upstream latch untouched, a flush clears valid.
type (
	ifidLatch struct {
		valid bool
		pc    uint32
		word  uint32
		// err is a fault raised while fetching this slot. It is reported
		// only if the slot reaches decode; a flush discards it along with
		// the wrong-path word.
		err error
	}
	idexLatch struct {
		valid bool
		pc    uint32
		word  uint32
		inst  riscv.Instruction
		rs1v  uint32
		rs2v  uint32
	}
	exmemLatch struct {
		valid bool
		pc    uint32
		word  uint32
		inst  riscv.Instruction
		out   riscv.Outcome
	}
	memwbLatch struct {
		valid bool
		pc    uint32
		word  uint32
		inst  riscv.Instruction
		out   riscv.Outcome
	}
)

type Pipeline struct {
	mem  *riscv.Memory
	regs *riscv.Registers
	pc   uint32

	ifid  ifidLatch
	idex  idexLatch
	exmem exmemLatch
	memwb memwbLatch

	// stalled is set by decode when a source register is still in flight;
	// fetch then holds its output and the PC for one tick.
	stalled bool
	// draining is set once a return targets the sentinel: fetch stops and
	// the older in-flight instructions run to completion.
	draining bool

	sentinel uint32
	ticks    uint64
	commits  uint64
	opts     Options
}

// New builds a pipeline over the given memory image and register file,
// fetching from entry. A control redirect to sentinel terminates the run.
func New(mem *riscv.Memory, regs *riscv.Registers, entry, sentinel uint32, opts Options) *Pipeline {
	return &Pipeline{
		mem:      mem,
		regs:     regs,
		pc:       entry,
		sentinel: sentinel,
		opts:     opts,
	}
}

// PC returns the address the next fetch would read.
func (p *Pipeline) PC() uint32 {
	return p.pc
}

// Ticks returns the number of completed ticks.
func (p *Pipeline) Ticks() uint64 {
	return p.ticks
}

// Commits returns the number of committed instructions.
func (p *Pipeline) Commits() uint64 {
	return p.commits
}

// Run ticks until the program terminates through the sentinel return, a
// fault aborts it, or the optional tick ceiling trips. Termination reports
// riscv.ErrHalt converted to nil; every other error is returned as is.
func (p *Pipeline) Run() error {
	for {
		if err := p.Tick(); err != nil {
			if errors.Is(err, riscv.ErrHalt) {
				return nil
			}
			return err
		}
	}
}

// Tick advances the pipeline one cycle. Stages run write-back first, so an
// instruction takes exactly one step per tick and architectural effects land
// in stage order WB, MEM, EX, ID, IF.
func (p *Pipeline) Tick() error {
	if p.opts.MaxTicks > 0 && p.ticks >= p.opts.MaxTicks {
		return riscv.ErrTimeout
	}
	p.ticks++

	p.writeBack()

	if p.draining && !p.ifid.valid && !p.idex.valid && !p.exmem.valid && !p.memwb.valid {
		return riscv.ErrHalt
	}

	if err := p.memory(); err != nil {
		return err
	}
	if err := p.execute(); err != nil {
		return err
	}
	if err := p.decode(); err != nil {
		return err
	}
	return p.fetch()
}

// writeBack commits the oldest in-flight instruction to the register file.
func (p *Pipeline) writeBack() {
	if !p.memwb.valid {
		return
	}
	p.memwb.valid = false
	out := p.memwb.out
	if out.RdWrite {
		p.regs.Write(out.Rd, out.RdValue)
	}
	p.commits++
	p.opts.Log.Debug().
		Uint64("tick", p.ticks).
		Str("pc", fmt.Sprintf("0x%08x", p.memwb.pc)).
		Str("word", fmt.Sprintf("0x%08x", p.memwb.word)).
		Str("inst", p.memwb.inst.String()).
		Msg("commit")
	if p.opts.OnCommit != nil {
		if err := p.opts.OnCommit(Commit{
			Tick:    p.ticks,
			PC:      p.memwb.pc,
			Word:    p.memwb.word,
			RdWrite: out.RdWrite,
			Rd:      out.Rd,
			RdValue: out.RdValue,
		}); err != nil {
			// Observer failures are logged as a warn right away; the
			// architectural run is unaffected.
			p.opts.Log.Warn().Err(err).Msg("commit hook failed")
		}
	}
}

// memory issues the pending load or store of the instruction leaving EX.
func (p *Pipeline) memory() error {
	if !p.exmem.valid {
		return nil
	}
	p.exmem.valid = false
	out := p.exmem.out

	if op := out.Mem; op != nil {
		switch op.Kind {
		case riscv.MemLoad:
			value, err := p.load(op)
			if err != nil {
				return &riscv.ErrMemoryFault{PC: p.exmem.pc, Err: err}
			}
			out.RdValue = value
		case riscv.MemStore:
			if err := p.store(op); err != nil {
				return &riscv.ErrMemoryFault{PC: p.exmem.pc, Err: err}
			}
		}
		out.Mem = nil
	}

	p.memwb = memwbLatch{valid: true, pc: p.exmem.pc, word: p.exmem.word, inst: p.exmem.inst, out: out}
	return nil
}

func (p *Pipeline) load(op *riscv.MemOp) (uint32, error) {
	switch op.Width {
	case 1:
		b, err := p.mem.LoadByte(op.Addr)
		if err != nil {
			return 0, err
		}
		if op.Signed {
			return uint32(int32(int8(b))), nil
		}
		return uint32(b), nil
	case 2:
		h, err := p.mem.LoadHalf(op.Addr)
		if err != nil {
			return 0, err
		}
		if op.Signed {
			return uint32(int32(int16(h))), nil
		}
		return uint32(h), nil
	default:
		return p.mem.LoadWord(op.Addr)
	}
}

func (p *Pipeline) store(op *riscv.MemOp) error {
	switch op.Width {
	case 1:
		return p.mem.StoreByte(op.Addr, uint8(op.Value))
	case 2:
		return p.mem.StoreHalf(op.Addr, uint16(op.Value))
	default:
		return p.mem.StoreWord(op.Addr, op.Value)
	}
}

// execute runs the execution units and resolves control flow. A redirect
// flushes the younger fetch latch; a redirect to the sentinel starts the
// drain that ends the run.
func (p *Pipeline) execute() error {
	if !p.idex.valid {
		return nil
	}
	p.idex.valid = false

	out, err := riscv.Execute(p.idex.inst, p.idex.pc, p.idex.rs1v, p.idex.rs2v)
	if err != nil {
		var illegal *riscv.ErrIllegalInstruction
		if errors.As(err, &illegal) {
			illegal.PC = p.idex.pc
			illegal.Word = p.idex.word
		}
		return err
	}

	if out.NextPC != nil {
		target := *out.NextPC
		p.ifid.valid = false
		p.stalled = false
		p.pc = target
		if target == p.sentinel {
			p.draining = true
		}
	}

	p.exmem = exmemLatch{valid: true, pc: p.idex.pc, word: p.idex.word, inst: p.idex.inst, out: out}
	return nil
}

// decode turns the fetched word into its tagged variant and captures source
// operands. If a source register is still owned by an instruction in EX/MEM
// or MEM/WB the stage stalls; a producer that left write-back this same tick
// is already visible (write-back runs first).
func (p *Pipeline) decode() error {
	p.stalled = false
	if !p.ifid.valid {
		return nil
	}

	if p.ifid.err != nil {
		return p.ifid.err
	}

	inst, err := riscv.Decode(p.ifid.word)
	if err != nil {
		var illegal *riscv.ErrIllegalInstruction
		if errors.As(err, &illegal) {
			illegal.PC = p.ifid.pc
		}
		return err
	}

	rs1, rs2 := inst.Sources()
	if p.inFlight(rs1) || p.inFlight(rs2) {
		p.stalled = true
		return nil
	}

	p.ifid.valid = false
	p.idex = idexLatch{
		valid: true,
		pc:    p.ifid.pc,
		word:  p.ifid.word,
		inst:  inst,
		rs1v:  p.regs.Read(rs1),
		rs2v:  p.regs.Read(rs2),
	}
	return nil
}

// inFlight reports whether reg will be written by an uncommitted instruction
// ahead in the pipeline.
func (p *Pipeline) inFlight(reg riscv.Reg) bool {
	if reg == riscv.Zero {
		return false
	}
	if p.exmem.valid && p.exmem.out.RdWrite && p.exmem.out.Rd == reg {
		return true
	}
	if p.memwb.valid && p.memwb.out.RdWrite && p.memwb.out.Rd == reg {
		return true
	}
	return false
}

// fetch reads the next instruction word. It holds during a decode stall and
// stops entirely once the run is draining.
func (p *Pipeline) fetch() error {
	if p.draining || p.stalled || p.ifid.valid {
		return nil
	}
	word, err := p.mem.LoadWord(p.pc)
	if err != nil {
		err = &riscv.ErrMemoryFault{PC: p.pc, Err: err}
	}
	p.ifid = ifidLatch{valid: true, pc: p.pc, word: word, err: err}
	p.pc += 4
	return nil
}
