// Package runner wires loader output into the architectural core and drives
// the pipeline to completion.
package runner

import (
	"fmt"
	"io"
	"os"

	"github.com/eigerco/bilberry/internal/loader"
	"github.com/eigerco/bilberry/internal/riscv"
	"github.com/eigerco/bilberry/internal/riscv/pipeline"
	"github.com/eigerco/bilberry/internal/store"
	"github.com/eigerco/bilberry/pkg/log"
)

// Options configure a run.
type Options struct {
	// MemorySize of the image in bytes; riscv.DefaultMemorySize if zero.
	MemorySize uint32
	// MaxTicks bounds execution; 0 means run to termination.
	MaxTicks uint64
	// Trace, when set, receives a record per committed instruction and the
	// final state digest.
	Trace *store.TraceStore
	// Out receives the final state dump; os.Stdout if nil.
	Out io.Writer
}

// Run executes prog and prints the final architectural state. The returned
// dump is what was printed; err is non-nil on any fault, in which case the
// state at the fault point has still been dumped.
func Run(prog *loader.Program, opts Options) (string, error) {
	size := opts.MemorySize
	if size == 0 {
		size = riscv.DefaultMemorySize
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	mem := riscv.NewMemory(size)
	for _, seg := range prog.Segments {
		if err := mem.WriteBytes(seg.Addr, seg.Data); err != nil {
			return "", fmt.Errorf("deposit segment at 0x%08x: %w", seg.Addr, err)
		}
	}

	regs := &riscv.Registers{}
	regs.Write(riscv.SP, prog.StackTop())
	regs.Write(riscv.RA, riscv.ReturnAddressSentinel)

	var onCommit pipeline.CommitFn
	if opts.Trace != nil {
		onCommit = func(c pipeline.Commit) error {
			return opts.Trace.PutRecord(store.Record{
				Tick:    c.Tick,
				PC:      c.PC,
				Word:    c.Word,
				Rd:      c.Rd,
				RdWrite: c.RdWrite,
				RdValue: c.RdValue,
			})
		}
	}

	p := pipeline.New(mem, regs, prog.Entry, riscv.ReturnAddressSentinel, pipeline.Options{
		MaxTicks: opts.MaxTicks,
		OnCommit: onCommit,
		Log:      log.Core,
	})

	log.Core.Debug().Msg("initial state:\n" + regs.Dump(p.PC()))

	runErr := p.Run()
	if runErr != nil {
		log.Core.Error().Err(runErr).Msg("execution aborted")
	} else {
		log.Core.Info().
			Uint64("ticks", p.Ticks()).
			Uint64("instructions", p.Commits()).
			Msg("execution terminated")
	}

	dump := regs.Dump(p.PC())
	fmt.Fprint(out, dump)

	if opts.Trace != nil {
		if err := opts.Trace.PutStateDigest(dump); err != nil {
			log.Trace.Warn().Err(err).Msg("failed to store state digest")
		}
	}
	return dump, runErr
}
