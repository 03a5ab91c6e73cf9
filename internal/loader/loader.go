// Package loader parses statically linked 32-bit RISC-V ELF executables into
// the segment list, entry point and stack region the runner feeds into the
// memory image.
package loader

import (
	"debug/elf"
	"fmt"
	"io"

	"github.com/eigerco/bilberry/pkg/log"
)

// Stack region given to every loaded program. Load does not read a stack
// description from the executable.
const (
	DefaultStackBase uint32 = 0x10000
	DefaultStackSize uint32 = 0x1000
)

// Segment is a run of bytes to deposit at a virtual address.
type Segment struct {
	Addr uint32
	Data []byte
}

// Layout records the section ranges of the loaded image, for diagnostics.
type Layout struct {
	TextStart uint32
	TextSize  uint32
	DataStart uint32
	DataSize  uint32
	BSSStart  uint32
	BSSSize   uint32
}

// Program is everything the runner needs to start executing.
type Program struct {
	Segments  []Segment
	Entry     uint32
	StackBase uint32
	StackSize uint32
	Layout    Layout
}

// StackTop returns the initial stack pointer.
func (p *Program) StackTop() uint32 {
	return p.StackBase + p.StackSize
}

// ErrBadELF a file that is not a loadable 32-bit RISC-V executable.
type ErrBadELF struct {
	Path   string
	Reason string
}

func (e *ErrBadELF) Error() string {
	return fmt.Sprintf("bad ELF %q: %s", e.Path, e.Reason)
}

// Load opens and parses the executable at path.
func Load(path string) (*Program, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ELF %q: %w", path, err)
	}
	defer f.Close()
	return read(f, path)
}

func read(f *elf.File, path string) (*Program, error) {
	if f.Class != elf.ELFCLASS32 {
		return nil, &ErrBadELF{Path: path, Reason: "not a 32-bit executable"}
	}
	if f.Machine != elf.EM_RISCV {
		return nil, &ErrBadELF{Path: path, Reason: fmt.Sprintf("not a RISC-V executable (machine %v)", f.Machine)}
	}
	bigEndian := f.Data == elf.ELFDATA2MSB

	prog := &Program{
		Entry:     uint32(f.Entry),
		StackBase: DefaultStackBase,
		StackSize: DefaultStackSize,
	}

	for _, ph := range f.Progs {
		if ph.Type != elf.PT_LOAD || ph.Memsz == 0 {
			continue
		}
		data := make([]byte, ph.Memsz)
		if ph.Filesz > 0 {
			if _, err := io.ReadFull(ph.Open(), data[:ph.Filesz]); err != nil {
				return nil, &ErrBadELF{Path: path, Reason: fmt.Sprintf("short segment read: %v", err)}
			}
		}
		if bigEndian {
			swapWords(data)
		}
		prog.Segments = append(prog.Segments, Segment{Addr: uint32(ph.Vaddr), Data: data})
		log.Loader.Debug().
			Str("vaddr", fmt.Sprintf("0x%08x", uint32(ph.Vaddr))).
			Uint64("filesz", ph.Filesz).
			Uint64("memsz", ph.Memsz).
			Msg("loadable segment")
	}
	if len(prog.Segments) == 0 {
		return nil, &ErrBadELF{Path: path, Reason: "no loadable segments"}
	}

	prog.Layout = sectionLayout(f)
	log.Loader.Info().
		Str("entry", fmt.Sprintf("0x%08x", prog.Entry)).
		Str("text", fmt.Sprintf("0x%08x+0x%x", prog.Layout.TextStart, prog.Layout.TextSize)).
		Str("data", fmt.Sprintf("0x%08x+0x%x", prog.Layout.DataStart, prog.Layout.DataSize)).
		Str("bss", fmt.Sprintf("0x%08x+0x%x", prog.Layout.BSSStart, prog.Layout.BSSSize)).
		Str("stack", fmt.Sprintf("0x%08x+0x%x", prog.StackBase, prog.StackSize)).
		Msg("loaded executable")
	return prog, nil
}

func sectionLayout(f *elf.File) Layout {
	var l Layout
	for _, s := range f.Sections {
		switch s.Name {
		case ".text":
			l.TextStart, l.TextSize = uint32(s.Addr), uint32(s.Size)
		case ".data":
			l.DataStart, l.DataSize = uint32(s.Addr), uint32(s.Size)
		case ".bss":
			l.BSSStart, l.BSSSize = uint32(s.Addr), uint32(s.Size)
		}
	}
	return l
}

// swapWords converts big-endian encoded segment contents to the little-endian
// byte order the memory image expects. Trailing bytes short of a full word
// are left as is.
func swapWords(data []byte) {
	for i := 0; i+4 <= len(data); i += 4 {
		data[i], data[i+3] = data[i+3], data[i]
		data[i+1], data[i+2] = data[i+2], data[i+1]
	}
}
