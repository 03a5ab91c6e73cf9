package loader

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	ehdrSize = 52
	phdrSize = 32

	elfClass32   = 1
	elfClass64   = 2
	elfData2LSB  = 1
	etExec       = 2
	emRISCV      = 243
	em68K        = 4
	ptLoad       = 1
)

// buildELF assembles a minimal 32-bit little-endian executable with a single
// PT_LOAD segment holding words at vaddr.
func buildELF(t *testing.T, class, machine uint16, entry, vaddr uint32, words []uint32) []byte {
	t.Helper()

	payload := new(bytes.Buffer)
	for _, w := range words {
		require.NoError(t, binary.Write(payload, binary.LittleEndian, w))
	}

	var buf bytes.Buffer
	buf.Write([]byte{0x7F, 'E', 'L', 'F', byte(class), elfData2LSB, 1, 0})
	buf.Write(make([]byte, 8)) // ident padding

	le := binary.LittleEndian
	write16 := func(v uint16) { require.NoError(t, binary.Write(&buf, le, v)) }
	write32 := func(v uint32) { require.NoError(t, binary.Write(&buf, le, v)) }

	write16(etExec)
	write16(machine)
	write32(1)                   // e_version
	write32(entry)               // e_entry
	write32(ehdrSize)            // e_phoff
	write32(0)                   // e_shoff
	write32(0)                   // e_flags
	write16(ehdrSize)            // e_ehsize
	write16(phdrSize)            // e_phentsize
	write16(1)                   // e_phnum
	write16(0)                   // e_shentsize
	write16(0)                   // e_shnum
	write16(0)                   // e_shstrndx

	write32(ptLoad)                        // p_type
	write32(ehdrSize + phdrSize)           // p_offset
	write32(vaddr)                         // p_vaddr
	write32(vaddr)                         // p_paddr
	write32(uint32(payload.Len()))         // p_filesz
	write32(uint32(payload.Len()))         // p_memsz
	write32(5)                             // p_flags R+X
	write32(4)                             // p_align

	buf.Write(payload.Bytes())
	return buf.Bytes()
}

func writeTemp(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prog.elf")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestLoadExecutable(t *testing.T) {
	words := []uint32{0x00500293, 0x00A00313, 0x00008067}
	path := writeTemp(t, buildELF(t, elfClass32, emRISCV, 0x1000, 0x1000, words))

	prog, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, uint32(0x1000), prog.Entry)
	require.Len(t, prog.Segments, 1)
	assert.Equal(t, uint32(0x1000), prog.Segments[0].Addr)

	got := make([]uint32, len(words))
	require.NoError(t, binary.Read(bytes.NewReader(prog.Segments[0].Data), binary.LittleEndian, got))
	assert.Equal(t, words, got)

	// No stack description in the ELF: the defaults apply.
	assert.Equal(t, DefaultStackBase, prog.StackBase)
	assert.Equal(t, DefaultStackSize, prog.StackSize)
	assert.Equal(t, DefaultStackBase+DefaultStackSize, prog.StackTop())
}

func TestLoadRejectsWrongClass(t *testing.T) {
	path := writeTemp(t, buildELF(t, elfClass64, emRISCV, 0, 0, []uint32{0x00008067}))
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsWrongMachine(t *testing.T) {
	path := writeTemp(t, buildELF(t, elfClass32, em68K, 0x1000, 0x1000, []uint32{0x00008067}))
	_, err := Load(path)
	var bad *ErrBadELF
	require.ErrorAs(t, err, &bad)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.elf"))
	require.Error(t, err)
}

func TestSwapWords(t *testing.T) {
	data := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x01, 0x02}
	swapWords(data)
	assert.Equal(t, []byte{0xEF, 0xBE, 0xAD, 0xDE, 0x01, 0x02}, data)
}
