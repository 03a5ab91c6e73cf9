package riscv

import "fmt"

// Opcode is the 7-bit major opcode in bits [6:0] of an encoded instruction.
type Opcode uint8

const (
	OpcodeRegReg Opcode = 0x33 // register-register ALU, RV32I + RV32M
	OpcodeRegImm Opcode = 0x13 // register-immediate ALU
	OpcodeLoad   Opcode = 0x03 // LB, LH, LW, LBU, LHU
	OpcodeJALR   Opcode = 0x67
	OpcodeStore  Opcode = 0x23 // SB, SH, SW
	OpcodeBranch Opcode = 0x63 // BEQ, BNE, BLT, BGE, BLTU, BGEU
	OpcodeJAL    Opcode = 0x6F
	OpcodeLUI    Opcode = 0x37
	OpcodeAUIPC  Opcode = 0x17
)

// Shape is the encoding shape of a decoded instruction.
type Shape uint8

const (
	ShapeR Shape = iota
	ShapeI
	ShapeS
	ShapeB
	ShapeU
	ShapeJ
)

func (s Shape) String() string {
	switch s {
	case ShapeR:
		return "R"
	case ShapeI:
		return "I"
	case ShapeS:
		return "S"
	case ShapeB:
		return "B"
	case ShapeU:
		return "U"
	case ShapeJ:
		return "J"
	}
	return "?"
}

// funct3 selectors, grouped by the opcode they apply under.
const (
	// OpcodeRegReg / OpcodeRegImm
	Funct3AddSub uint8 = 0x0
	Funct3SLL    uint8 = 0x1
	Funct3SLT    uint8 = 0x2
	Funct3SLTU   uint8 = 0x3
	Funct3XOR    uint8 = 0x4
	Funct3SRLSRA uint8 = 0x5
	Funct3OR     uint8 = 0x6
	Funct3AND    uint8 = 0x7

	// OpcodeLoad
	Funct3LB  uint8 = 0x0
	Funct3LH  uint8 = 0x1
	Funct3LW  uint8 = 0x2
	Funct3LBU uint8 = 0x4
	Funct3LHU uint8 = 0x5

	// OpcodeStore
	Funct3SB uint8 = 0x0
	Funct3SH uint8 = 0x1
	Funct3SW uint8 = 0x2

	// OpcodeBranch
	Funct3BEQ  uint8 = 0x0
	Funct3BNE  uint8 = 0x1
	Funct3BLT  uint8 = 0x4
	Funct3BGE  uint8 = 0x5
	Funct3BLTU uint8 = 0x6
	Funct3BGEU uint8 = 0x7
)

// funct7 selectors for OpcodeRegReg.
const (
	Funct7Base uint8 = 0x00
	Funct7Alt  uint8 = 0x20 // SUB, SRA
	Funct7MulM uint8 = 0x01 // RV32M
)

// Instruction is a decoded instruction: the closed set of six encoding shapes
// with the fields each shape defines. Fields outside a shape are zero.
//
//	R: Funct3, Funct7, Rd, Rs1, Rs2
//	I: Funct3, Rd, Rs1, Imm (sign-extended 12-bit)
//	S: Funct3, Rs1, Rs2, Imm (sign-extended 12-bit)
//	B: Funct3, Rs1, Rs2, Imm (sign-extended 13-bit, bit 0 clear)
//	U: Rd, Imm (bits 31:12, low 12 clear)
//	J: Rd, Imm (sign-extended 21-bit, bit 0 clear)
type Instruction struct {
	Opcode Opcode
	Shape  Shape
	Funct3 uint8
	Funct7 uint8
	Rd     Reg
	Rs1    Reg
	Rs2    Reg
	Imm    int32
}

// Sources returns which registers the instruction reads. Unused slots are x0,
// which never participates in hazard tracking.
func (i Instruction) Sources() (Reg, Reg) {
	switch i.Shape {
	case ShapeR, ShapeS, ShapeB:
		return i.Rs1, i.Rs2
	case ShapeI:
		return i.Rs1, Zero
	default:
		return Zero, Zero
	}
}

// WritesRd reports whether the instruction defines a destination register.
func (i Instruction) WritesRd() bool {
	switch i.Shape {
	case ShapeS, ShapeB:
		return false
	default:
		return i.Rd != Zero
	}
}

func (i Instruction) String() string {
	switch i.Shape {
	case ShapeR:
		return fmt.Sprintf("%s f3=%d f7=0x%02x %s, %s, %s", i.Shape, i.Funct3, i.Funct7, i.Rd, i.Rs1, i.Rs2)
	case ShapeI:
		return fmt.Sprintf("%s op=0x%02x f3=%d %s, %s, %d", i.Shape, uint8(i.Opcode), i.Funct3, i.Rd, i.Rs1, i.Imm)
	case ShapeS:
		return fmt.Sprintf("%s f3=%d %s, %d(%s)", i.Shape, i.Funct3, i.Rs2, i.Imm, i.Rs1)
	case ShapeB:
		return fmt.Sprintf("%s f3=%d %s, %s, %d", i.Shape, i.Funct3, i.Rs1, i.Rs2, i.Imm)
	case ShapeU:
		return fmt.Sprintf("%s op=0x%02x %s, 0x%x", i.Shape, uint8(i.Opcode), i.Rd, uint32(i.Imm)>>12)
	case ShapeJ:
		return fmt.Sprintf("%s %s, %d", i.Shape, i.Rd, i.Imm)
	}
	return "invalid"
}
