// Package fu implements the functional units that execute decoded,
// operand-ready instructions: an ALU, an LSU, and a BEU (branch/jump
// execution unit), plus the master/slave dispatcher that routes
// reservation-station issues to them.
//
// Units never read the register file: every input is an already-captured
// Operand, and a renamed one is resolved through the producing ROB entry
// at the moment of execution. That resolution is the forwarding path.
package fu

import (
	"errors"
	"fmt"

	"github.com/archlab/mipsooo/isa"
)

// ErrUnsupportedInstruction is returned when a unit is asked to execute an
// opcode it has no case for (e.g. a memory op handed to the ALU).
var ErrUnsupportedInstruction = errors.New("fu: unsupported instruction")

// Resolver reads the value a renamed operand refers to: the result that
// ROB entry tag recorded for architectural register reg. Functional units
// depend on the ROB only through this narrow query, so this package
// never imports timing/rob.
type Resolver func(tag int, reg uint8) (int32, error)

// resolveOperand returns op's value: the captured snapshot if op was ready at
// decode, or the forwarded result read through resolve otherwise.
func resolveOperand(op isa.Operand, reg uint8, resolve Resolver) (int32, error) {
	if op.Valid {
		return op.Value, nil
	}
	return resolve(op.Tag, reg)
}

// Write is one functional unit's post-execution register write, queued
// by the dispatcher for the pipeline controller to apply to the ROB
// entry's result map.
type Write struct {
	Reg   uint8
	Value int32
}

// MemRead reads a 32-bit big-endian word, the interface the LSU needs from
// the memory subsystem (satisfied by *emu.Memory).
type MemRead interface {
	Read32(addr uint32) (uint32, error)
}

// MemWrite writes a 32-bit big-endian word, the interface the LSU needs to
// perform a store (satisfied by *emu.Memory).
type MemWrite interface {
	Write32(addr uint32, value uint32)
}

// ALU executes the integer arithmetic/logic opcodes, mult/div, and the
// HI/LO moves. It holds no state: every input arrives resolved through
// the instruction's captured operands.
type ALU struct{}

// NewALU creates an ALU.
func NewALU() *ALU { return &ALU{} }

// Execute computes inst's result and returns the register writes it
// produces (one, for every op but div, which writes both LO and HI).
func (a *ALU) Execute(inst *isa.Instruction, resolve Resolver) ([]Write, error) {
	switch inst.Op {
	case isa.OpADD, isa.OpSUB, isa.OpAND, isa.OpOR, isa.OpXOR, isa.OpNOR, isa.OpSLT:
		rs, err := resolveOperand(inst.RsOperand, inst.Rs, resolve)
		if err != nil {
			return nil, err
		}
		rt, err := resolveOperand(inst.RtOperand, inst.Rt, resolve)
		if err != nil {
			return nil, err
		}
		return []Write{{Reg: inst.Rd, Value: aluBinary(inst.Op, rs, rt)}}, nil

	case isa.OpSLL, isa.OpSRA:
		rt, err := resolveOperand(inst.RsOperand, inst.Rt, resolve)
		if err != nil {
			return nil, err
		}
		return []Write{{Reg: inst.Rd, Value: shift(inst.Op, rt, inst.Shamt)}}, nil

	case isa.OpMULT:
		rs, err := resolveOperand(inst.RsOperand, inst.Rs, resolve)
		if err != nil {
			return nil, err
		}
		rt, err := resolveOperand(inst.RtOperand, inst.Rt, resolve)
		if err != nil {
			return nil, err
		}
		product := int64(rs) * int64(rt)
		return []Write{{Reg: isa.RegLO, Value: int32(uint64(product) & 0xFFFFFFFF)}}, nil

	case isa.OpDIV:
		rs, err := resolveOperand(inst.RsOperand, inst.Rs, resolve)
		if err != nil {
			return nil, err
		}
		rt, err := resolveOperand(inst.RtOperand, inst.Rt, resolve)
		if err != nil {
			return nil, err
		}
		if rt == 0 {
			return []Write{{Reg: isa.RegLO, Value: 0}, {Reg: isa.RegHI, Value: 0}}, nil
		}
		quot, rem := floorDivMod(rs, rt)
		return []Write{
			{Reg: isa.RegLO, Value: quot},
			{Reg: isa.RegHI, Value: rem},
		}, nil

	case isa.OpMFHI:
		hi, err := resolveOperand(inst.RsOperand, isa.RegHI, resolve)
		if err != nil {
			return nil, err
		}
		return []Write{{Reg: inst.Rd, Value: hi}}, nil

	case isa.OpMFLO:
		lo, err := resolveOperand(inst.RsOperand, isa.RegLO, resolve)
		if err != nil {
			return nil, err
		}
		return []Write{{Reg: inst.Rd, Value: lo}}, nil

	case isa.OpADDI, isa.OpSLTI:
		rs, err := resolveOperand(inst.RsOperand, inst.Rs, resolve)
		if err != nil {
			return nil, err
		}
		return []Write{{Reg: inst.Rt, Value: aluImmSigned(inst.Op, rs, inst.SignExtImm())}}, nil

	case isa.OpANDI, isa.OpORI, isa.OpXORI:
		rs, err := resolveOperand(inst.RsOperand, inst.Rs, resolve)
		if err != nil {
			return nil, err
		}
		return []Write{{Reg: inst.Rt, Value: aluImmUnsigned(inst.Op, rs, inst.ZeroExtImm())}}, nil

	case isa.OpLUI:
		return []Write{{Reg: inst.Rt, Value: int32(inst.ZeroExtImm() << 16)}}, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedInstruction, inst.Op)
	}
}

// floorDivMod computes quotient and remainder with floor-division
// rounding (toward negative infinity), not the truncate-toward-zero
// rounding of Go's / and %.
func floorDivMod(rs, rt int32) (quot, rem int32) {
	quot = rs / rt
	rem = rs % rt
	if rem != 0 && (rem < 0) != (rt < 0) {
		quot--
		rem += rt
	}
	return quot, rem
}

func aluBinary(op isa.Op, rs, rt int32) int32 {
	switch op {
	case isa.OpADD:
		return rs + rt
	case isa.OpSUB:
		return rs - rt
	case isa.OpAND:
		return rs & rt
	case isa.OpOR:
		return rs | rt
	case isa.OpXOR:
		return rs ^ rt
	case isa.OpNOR:
		return ^(rs | rt)
	case isa.OpSLT:
		if rs < rt {
			return 1
		}
		return 0
	default:
		return 0
	}
}

func shift(op isa.Op, rt int32, shamt uint8) int32 {
	switch op {
	case isa.OpSLL:
		return int32(uint32(rt) << shamt)
	case isa.OpSRA:
		return rt >> shamt
	default:
		return 0
	}
}

func aluImmSigned(op isa.Op, rs int32, imm int32) int32 {
	switch op {
	case isa.OpADDI:
		return rs + imm
	case isa.OpSLTI:
		if rs < imm {
			return 1
		}
		return 0
	default:
		return 0
	}
}

func aluImmUnsigned(op isa.Op, rs int32, imm uint32) int32 {
	switch op {
	case isa.OpANDI:
		return int32(uint32(rs) & imm)
	case isa.OpORI:
		return int32(uint32(rs) | imm)
	case isa.OpXORI:
		return int32(uint32(rs) ^ imm)
	default:
		return 0
	}
}

// LSU executes lw/sw. Both the base register and, for sw, the stored
// value are read through the same renamed-operand resolution path the
// ALU uses.
type LSU struct {
	mem interface {
		MemRead
		MemWrite
	}
}

// NewLSU creates an LSU backed by mem.
func NewLSU(mem interface {
	MemRead
	MemWrite
}) *LSU {
	return &LSU{mem: mem}
}

// Execute performs inst's load or store and returns the register write a
// load produces (nil for a store, which writes no register).
func (l *LSU) Execute(inst *isa.Instruction, resolve Resolver) ([]Write, error) {
	base, err := resolveOperand(inst.RsOperand, inst.Rs, resolve)
	if err != nil {
		return nil, err
	}
	addr := uint32(base + inst.SignExtImm())

	switch inst.Op {
	case isa.OpLW:
		word, err := l.mem.Read32(addr)
		if err != nil {
			return nil, fmt.Errorf("fu: lw at 0x%08x: %w", addr, err)
		}
		return []Write{{Reg: inst.Rt, Value: int32(word)}}, nil

	case isa.OpSW:
		value, err := resolveOperand(inst.RtOperand, inst.Rt, resolve)
		if err != nil {
			return nil, err
		}
		l.mem.Write32(addr, uint32(value))
		return nil, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedInstruction, inst.Op)
	}
}

// BranchOutcome is the BEU's verdict on a control-flow instruction: the
// architecturally correct next PC, whether it differs from what was
// fetched speculatively, and the register write jal produces (the link
// register), if any.
type BranchOutcome struct {
	Taken      bool
	TargetPC   uint32
	Mispredict bool
	Write      *Write
}

// BEU executes jumps and branches, comparing the architectural outcome
// against what the pipeline fetched speculatively.
type BEU struct{}

// NewBEU creates a BEU.
func NewBEU() *BEU { return &BEU{} }

// Execute resolves inst's true outcome. predictedPC is the PC the pipeline
// fetched after inst, taken either from the predictor (conditional
// branches) or from sequential/direct-target fetch (jumps); Execute
// reports a mispredict whenever the true outcome disagrees.
func (b *BEU) Execute(inst *isa.Instruction, resolve Resolver, predictedPC uint32) (BranchOutcome, error) {
	switch inst.Op {
	case isa.OpBEQ, isa.OpBNE, isa.OpBLEZ, isa.OpBGTZ:
		rs, err := resolveOperand(inst.RsOperand, inst.Rs, resolve)
		if err != nil {
			return BranchOutcome{}, err
		}
		rt, err := resolveOperand(inst.RtOperand, inst.Rt, resolve)
		if err != nil {
			return BranchOutcome{}, err
		}
		taken := branchTaken(inst.Op, rs, rt)
		target := inst.PC + 4
		if taken {
			target = uint32(int32(inst.PC) + (inst.SignExtImm() << 2))
		}
		return BranchOutcome{Taken: taken, TargetPC: target, Mispredict: target != predictedPC}, nil

	case isa.OpJ:
		target := inst.Addr
		return BranchOutcome{Taken: true, TargetPC: target, Mispredict: target != predictedPC}, nil

	case isa.OpJAL:
		target := inst.Addr
		return BranchOutcome{
			Taken:      true,
			TargetPC:   target,
			Mispredict: target != predictedPC,
			Write:      &Write{Reg: 31, Value: int32(inst.PC + 4)},
		}, nil

	case isa.OpJR:
		rs, err := resolveOperand(inst.RsOperand, inst.Rs, resolve)
		if err != nil {
			return BranchOutcome{}, err
		}
		target := uint32(rs)
		return BranchOutcome{Taken: true, TargetPC: target, Mispredict: target != predictedPC}, nil

	default:
		return BranchOutcome{}, fmt.Errorf("%w: %s", ErrUnsupportedInstruction, inst.Op)
	}
}

func branchTaken(op isa.Op, rs, rt int32) bool {
	switch op {
	case isa.OpBEQ:
		return rs == rt
	case isa.OpBNE:
		return rs != rt
	case isa.OpBLEZ:
		return rs <= 0
	case isa.OpBGTZ:
		return rs > 0
	default:
		return false
	}
}
