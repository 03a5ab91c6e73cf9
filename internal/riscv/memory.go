package riscv

import (
	"encoding/binary"
)

// DefaultMemorySize is the size of the memory image when the caller does not
// ask for anything else.
const DefaultMemorySize = 1 << 20 // 1 MiB

// Memory is the flat byte-addressable image backing text, data, bss, heap and
// stack. All accesses are little-endian; alignment is not enforced, a
// misaligned access reads the little-endian byte interpretation. Every touched
// byte must lie inside [0, Size()), otherwise the access fails with
// *ErrOutOfRange.
type Memory struct {
	data []byte
}

func NewMemory(size uint32) *Memory {
	return &Memory{data: make([]byte, size)}
}

func (m *Memory) Size() uint32 {
	return uint32(len(m.data))
}

// span bounds-checks a width-byte access starting at addr.
func (m *Memory) span(addr uint32, width int) ([]byte, error) {
	if uint64(addr)+uint64(width) > uint64(len(m.data)) {
		return nil, &ErrOutOfRange{Addr: addr, Width: width, Size: uint32(len(m.data))}
	}
	return m.data[addr : addr+uint32(width)], nil
}

func (m *Memory) LoadByte(addr uint32) (uint8, error) {
	s, err := m.span(addr, 1)
	if err != nil {
		return 0, err
	}
	return s[0], nil
}

func (m *Memory) LoadHalf(addr uint32) (uint16, error) {
	s, err := m.span(addr, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(s), nil
}

func (m *Memory) LoadWord(addr uint32) (uint32, error) {
	s, err := m.span(addr, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(s), nil
}

func (m *Memory) StoreByte(addr uint32, value uint8) error {
	s, err := m.span(addr, 1)
	if err != nil {
		return err
	}
	s[0] = value
	return nil
}

func (m *Memory) StoreHalf(addr uint32, value uint16) error {
	s, err := m.span(addr, 2)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(s, value)
	return nil
}

func (m *Memory) StoreWord(addr uint32, value uint32) error {
	s, err := m.span(addr, 4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(s, value)
	return nil
}

// WriteBytes deposits a loader segment at addr.
func (m *Memory) WriteBytes(addr uint32, data []byte) error {
	s, err := m.span(addr, len(data))
	if err != nil {
		return err
	}
	copy(s, data)
	return nil
}
