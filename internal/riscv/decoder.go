package riscv

// Decode maps a 32-bit encoded instruction to its tagged variant. The zero
// word and any opcode outside the supported table decode to
// *ErrIllegalInstruction (reported with PC 0; the pipeline rewrites the PC of
// the faulting fetch).
func Decode(word uint32) (Instruction, error) {
	if word == 0 {
		return Instruction{}, &ErrIllegalInstruction{Word: word}
	}

	opcode := Opcode(word & 0x7F)
	funct3 := uint8((word >> 12) & 0x7)
	rd := Reg((word >> 7) & 0x1F)
	rs1 := Reg((word >> 15) & 0x1F)
	rs2 := Reg((word >> 20) & 0x1F)

	switch opcode {
	case OpcodeRegReg:
		return Instruction{
			Opcode: opcode,
			Shape:  ShapeR,
			Funct3: funct3,
			Funct7: uint8(word >> 25),
			Rd:     rd,
			Rs1:    rs1,
			Rs2:    rs2,
		}, nil

	case OpcodeRegImm, OpcodeLoad, OpcodeJALR:
		return Instruction{
			Opcode: opcode,
			Shape:  ShapeI,
			Funct3: funct3,
			Rd:     rd,
			Rs1:    rs1,
			Imm:    immI(word),
		}, nil

	case OpcodeStore:
		return Instruction{
			Opcode: opcode,
			Shape:  ShapeS,
			Funct3: funct3,
			Rs1:    rs1,
			Rs2:    rs2,
			Imm:    immS(word),
		}, nil

	case OpcodeBranch:
		return Instruction{
			Opcode: opcode,
			Shape:  ShapeB,
			Funct3: funct3,
			Rs1:    rs1,
			Rs2:    rs2,
			Imm:    immB(word),
		}, nil

	case OpcodeLUI, OpcodeAUIPC:
		return Instruction{
			Opcode: opcode,
			Shape:  ShapeU,
			Rd:     rd,
			Imm:    immU(word),
		}, nil

	case OpcodeJAL:
		return Instruction{
			Opcode: opcode,
			Shape:  ShapeJ,
			Rd:     rd,
			Imm:    immJ(word),
		}, nil
	}

	return Instruction{}, &ErrIllegalInstruction{Word: word}
}

// immI assembles {sext(inst[31]), inst[30:20]}.
func immI(word uint32) int32 {
	return int32(word) >> 20
}

// immS assembles {sext(inst[31]), inst[30:25], inst[11:7]}.
func immS(word uint32) int32 {
	return int32(word&0xFE000000)>>20 | int32((word>>7)&0x1F)
}

// immB assembles {sext(inst[31]), inst[7], inst[30:25], inst[11:8], 0}.
func immB(word uint32) int32 {
	imm := int32(word&0x80000000)>>19 | // bit 12
		int32((word>>7)&0x1)<<11 | // bit 11
		int32((word>>25)&0x3F)<<5 | // bits 10:5
		int32((word>>8)&0xF)<<1 // bits 4:1
	return imm
}

// immU keeps inst[31:12] in the high bits with the low 12 clear.
func immU(word uint32) int32 {
	return int32(word & 0xFFFFF000)
}

// immJ assembles {sext(inst[31]), inst[19:12], inst[20], inst[30:21], 0}.
func immJ(word uint32) int32 {
	imm := int32(word&0x80000000)>>11 | // bit 20
		int32(word&0x000FF000) | // bits 19:12
		int32((word>>20)&0x1)<<11 | // bit 11
		int32((word>>21)&0x3FF)<<1 // bits 10:1
	return imm
}
