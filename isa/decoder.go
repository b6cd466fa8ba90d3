package isa

import (
	"errors"
	"fmt"
)

// Op represents a MIPS-I opcode recognised by this simulator.
type Op uint8

// Supported MIPS-I opcodes.
const (
	OpUnknown Op = iota
	// R-type
	OpADD
	OpSUB
	OpAND
	OpOR
	OpXOR
	OpNOR
	OpSLT
	OpSLL
	OpSRA
	OpMULT
	OpDIV
	OpJR
	OpMFHI
	OpMFLO
	// I-type
	OpADDI
	OpANDI
	OpORI
	OpXORI
	OpSLTI
	OpLUI
	OpLW
	OpSW
	OpBEQ
	OpBNE
	OpBLEZ
	OpBGTZ
	// J-type
	OpJ
	OpJAL
)

// String implements fmt.Stringer for readable trace output.
func (o Op) String() string {
	switch o {
	case OpADD:
		return "add"
	case OpSUB:
		return "sub"
	case OpAND:
		return "and"
	case OpOR:
		return "or"
	case OpXOR:
		return "xor"
	case OpNOR:
		return "nor"
	case OpSLT:
		return "slt"
	case OpSLL:
		return "sll"
	case OpSRA:
		return "sra"
	case OpMULT:
		return "mult"
	case OpDIV:
		return "div"
	case OpJR:
		return "jr"
	case OpMFHI:
		return "mfhi"
	case OpMFLO:
		return "mflo"
	case OpADDI:
		return "addi"
	case OpANDI:
		return "andi"
	case OpORI:
		return "ori"
	case OpXORI:
		return "xori"
	case OpSLTI:
		return "slti"
	case OpLUI:
		return "lui"
	case OpLW:
		return "lw"
	case OpSW:
		return "sw"
	case OpBEQ:
		return "beq"
	case OpBNE:
		return "bne"
	case OpBLEZ:
		return "blez"
	case OpBGTZ:
		return "bgtz"
	case OpJ:
		return "j"
	case OpJAL:
		return "jal"
	default:
		return "unknown"
	}
}

// Type represents an instruction encoding format.
type Type uint8

// Instruction formats.
const (
	TypeUnknown Type = iota
	TypeR
	TypeI
	TypeJ
)

// Raw MIPS-I opcode and function-field encodings.
const (
	rawOpcodeRType = 0

	fnADD  = 0x20
	fnSUB  = 0x22
	fnAND  = 0x24
	fnOR   = 0x25
	fnXOR  = 0x26
	fnNOR  = 0x27
	fnSLT  = 0x2A
	fnSLL  = 0x00
	fnSRA  = 0x03
	fnMULT = 0x18
	fnDIV  = 0x1A
	fnJR   = 0x08
	fnMFHI = 0x10
	fnMFLO = 0x12

	opADDI = 0x08
	opANDI = 0x0C
	opORI  = 0x0D
	opXORI = 0x0E
	opSLTI = 0x0A
	opLUI  = 0x0F
	opLW   = 0x23
	opSW   = 0x2B
	opBEQ  = 0x04
	opBNE  = 0x05
	opBLEZ = 0x06
	opBGTZ = 0x07

	opJ   = 0x02
	opJAL = 0x03
)

// ErrInvalidOpcode is returned when a 32-bit word does not match any
// supported (opcode, function) pair.
var ErrInvalidOpcode = errors.New("isa: invalid opcode")

// RegHI and RegLO name the two non-general-purpose architectural registers
// that mult/div/mfhi/mflo read and write.
const (
	RegHI uint8 = 32
	RegLO uint8 = 33
)

// NumRegisters is the size of the architectural register file (32 GPRs
// plus HI and LO).
const NumRegisters = 34

// Operand is a captured source-operand snapshot, taken at decode time.
//
// When Valid is true, Value holds the register's architectural value at
// decode. When Valid is false, the operand has been renamed: Tag names the
// ROB entry whose result map will eventually hold the value.
type Operand struct {
	Valid bool
	Value int32
	Tag   int
}

// Instruction is a fully decoded instruction record, augmented by the
// pipeline's decode stage with renaming and speculation metadata.
//
// Fields populated by Decode: PC, Op, Typ, Rs, Rt, Rd, Shamt, Imm, Addr.
// Fields populated by the pipeline's decode stage: RsOperand, RtOperand,
// RobEntry, PredictedPC, Block.
type Instruction struct {
	PC uint32

	Op  Op
	Typ Type

	Rs    uint8
	Rt    uint8
	Rd    uint8
	Shamt uint8
	Imm   uint16 // raw 16-bit field; callers sign/zero-extend per opcode
	Addr  uint32 // 26-bit jump target field

	RsOperand Operand
	RtOperand Operand

	RobEntry    int
	PredictedPC uint32
	Block       uint64
}

// SignExtImm returns the 16-bit immediate sign-extended to 32 bits, for
// opcodes where MIPS specifies a signed immediate (addi, slti, lw, sw, and
// the conditional branches).
func (i *Instruction) SignExtImm() int32 {
	return int32(int16(i.Imm))
}

// ZeroExtImm returns the 16-bit immediate zero-extended to 32 bits, for the
// logical-immediate opcodes (andi, ori, xori, lui).
func (i *Instruction) ZeroExtImm() uint32 {
	return uint32(i.Imm)
}

// Decoder decodes 32-bit MIPS-I machine words into Instruction records.
type Decoder struct{}

// NewDecoder creates a new MIPS-I instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes the word fetched from pc. It returns ErrInvalidOpcode if
// the (opcode, function) pair is not one of the supported mnemonics.
func (d *Decoder) Decode(word uint32, pc uint32) (*Instruction, error) {
	opcode := (word >> 26) & 0x3F

	inst := &Instruction{PC: pc}

	if opcode == rawOpcodeRType {
		fn := word & 0x3F
		op, ok := rFunctToOp[fn]
		if !ok {
			return nil, fmt.Errorf("%w: opcode=0 funct=0x%02x", ErrInvalidOpcode, fn)
		}
		inst.Op = op
		inst.Typ = TypeR
		inst.Rs = uint8((word >> 21) & 0x1F)
		inst.Rt = uint8((word >> 16) & 0x1F)
		inst.Rd = uint8((word >> 11) & 0x1F)
		inst.Shamt = uint8((word >> 6) & 0x1F)
		return inst, nil
	}

	if opcode == opJ || opcode == opJAL {
		inst.Op = jOpcodeToOp[opcode]
		inst.Typ = TypeJ
		inst.Addr = word & 0x3FFFFFF
		return inst, nil
	}

	op, ok := iOpcodeToOp[opcode]
	if !ok {
		return nil, fmt.Errorf("%w: opcode=0x%02x", ErrInvalidOpcode, opcode)
	}
	inst.Op = op
	inst.Typ = TypeI
	inst.Rs = uint8((word >> 21) & 0x1F)
	inst.Rt = uint8((word >> 16) & 0x1F)
	inst.Imm = uint16(word & 0xFFFF)
	return inst, nil
}

var rFunctToOp = map[uint32]Op{
	fnADD:  OpADD,
	fnSUB:  OpSUB,
	fnAND:  OpAND,
	fnOR:   OpOR,
	fnXOR:  OpXOR,
	fnNOR:  OpNOR,
	fnSLT:  OpSLT,
	fnSLL:  OpSLL,
	fnSRA:  OpSRA,
	fnMULT: OpMULT,
	fnDIV:  OpDIV,
	fnJR:   OpJR,
	fnMFHI: OpMFHI,
	fnMFLO: OpMFLO,
}

var iOpcodeToOp = map[uint32]Op{
	opADDI: OpADDI,
	opANDI: OpANDI,
	opORI:  OpORI,
	opXORI: OpXORI,
	opSLTI: OpSLTI,
	opLUI:  OpLUI,
	opLW:   OpLW,
	opSW:   OpSW,
	opBEQ:  OpBEQ,
	opBNE:  OpBNE,
	opBLEZ: OpBLEZ,
	opBGTZ: OpBGTZ,
}

var jOpcodeToOp = map[uint32]Op{
	opJ:   OpJ,
	opJAL: OpJAL,
}

// IsBranch reports whether op is one of the conditional branch mnemonics.
func IsBranch(op Op) bool {
	switch op {
	case OpBEQ, OpBNE, OpBLEZ, OpBGTZ:
		return true
	default:
		return false
	}
}

// IsJump reports whether op is one of the unconditional jump/link mnemonics.
func IsJump(op Op) bool {
	switch op {
	case OpJ, OpJAL, OpJR:
		return true
	default:
		return false
	}
}

// IsControlFlow reports whether op can redirect the program counter.
func IsControlFlow(op Op) bool {
	return IsBranch(op) || IsJump(op)
}

// IsLoad reports whether op reads memory.
func IsLoad(op Op) bool {
	return op == OpLW
}

// IsStore reports whether op writes memory.
func IsStore(op Op) bool {
	return op == OpSW
}

// IsMemory reports whether op is a load or a store (an LSU op, for the
// reservation station's hardware-port accounting).
func IsMemory(op Op) bool {
	return IsLoad(op) || IsStore(op)
}

// DestRegisters returns the architectural register indices this
// instruction writes, which decode renames to the new ROB id. mult writes
// only LO; div writes LO and HI; jr and the branch/store opcodes write
// nothing; jal writes r31; everything else writes Rd (R-type) or Rt
// (I-type).
func (i *Instruction) DestRegisters() []uint8 {
	switch i.Typ {
	case TypeR:
		switch i.Op {
		case OpMULT:
			return []uint8{RegLO}
		case OpDIV:
			return []uint8{RegLO, RegHI}
		case OpJR:
			return nil
		default:
			return []uint8{i.Rd}
		}
	case TypeI:
		switch i.Op {
		case OpBEQ, OpBNE, OpBLEZ, OpBGTZ, OpSW:
			return nil
		default:
			return []uint8{i.Rt}
		}
	case TypeJ:
		if i.Op == OpJAL {
			return []uint8{31}
		}
		return nil
	default:
		return nil
	}
}

// SourceRegs returns the architectural register indices this instruction
// reads, in the order the decode stage should snapshot them into
// (RsOperand, RtOperand). Most opcodes read their decoded Rs/Rt fields
// directly; mfhi and mflo instead read the implicit HI/LO registers
// (their Rs/Rt fields decode to zero and are unused), and sll/sra read
// only Rt (the shift subject — Shamt is an immediate, not a register).
func (i *Instruction) SourceRegs() []uint8 {
	switch i.Typ {
	case TypeR:
		switch i.Op {
		case OpMFHI:
			return []uint8{RegHI}
		case OpMFLO:
			return []uint8{RegLO}
		case OpSLL, OpSRA:
			return []uint8{i.Rt}
		case OpJR:
			return []uint8{i.Rs}
		default:
			return []uint8{i.Rs, i.Rt}
		}
	case TypeI:
		switch i.Op {
		case OpLUI:
			return nil
		case OpSW:
			return []uint8{i.Rs, i.Rt}
		case OpBEQ, OpBNE:
			return []uint8{i.Rs, i.Rt}
		default:
			return []uint8{i.Rs}
		}
	default:
		return nil
	}
}
