package asm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/archlab/mipsooo/isa"
)

// encodeStatement resolves s's operand tokens against labels and encodes
// the instruction, dispatching on op's assembly-syntax shape. The operand
// order and count here is the exact inverse of
// isa.Instruction.SourceRegs/DestRegisters.
func encodeStatement(s textStatement, op isa.Op, labels map[string]uint32) (uint32, error) {
	switch op {
	case isa.OpADD, isa.OpSUB, isa.OpAND, isa.OpOR, isa.OpXOR, isa.OpNOR, isa.OpSLT:
		rd, rs, rt, err := threeRegs(s)
		if err != nil {
			return 0, err
		}
		return isa.EncodeR(op, rs, rt, rd, 0)

	case isa.OpSLL, isa.OpSRA:
		if len(s.args) != 3 {
			return 0, wrongArgCount(s, 3)
		}
		rd, err := reg(s, s.args[0])
		if err != nil {
			return 0, err
		}
		rt, err := reg(s, s.args[1])
		if err != nil {
			return 0, err
		}
		shamt, err := immediate(s, s.args[2], labels)
		if err != nil {
			return 0, err
		}
		return isa.EncodeR(op, 0, rt, rd, uint8(shamt))

	case isa.OpMULT, isa.OpDIV:
		if len(s.args) != 2 {
			return 0, wrongArgCount(s, 2)
		}
		rs, err := reg(s, s.args[0])
		if err != nil {
			return 0, err
		}
		rt, err := reg(s, s.args[1])
		if err != nil {
			return 0, err
		}
		return isa.EncodeR(op, rs, rt, 0, 0)

	case isa.OpJR:
		if len(s.args) != 1 {
			return 0, wrongArgCount(s, 1)
		}
		rs, err := reg(s, s.args[0])
		if err != nil {
			return 0, err
		}
		return isa.EncodeR(op, rs, 0, 0, 0)

	case isa.OpMFHI, isa.OpMFLO:
		if len(s.args) != 1 {
			return 0, wrongArgCount(s, 1)
		}
		rd, err := reg(s, s.args[0])
		if err != nil {
			return 0, err
		}
		return isa.EncodeR(op, 0, 0, rd, 0)

	case isa.OpADDI, isa.OpSLTI:
		rt, rs, imm, err := regRegImm(s, labels)
		if err != nil {
			return 0, err
		}
		return isa.EncodeI(op, rs, rt, uint16(int16(imm)))

	case isa.OpANDI, isa.OpORI, isa.OpXORI:
		rt, rs, imm, err := regRegImm(s, labels)
		if err != nil {
			return 0, err
		}
		return isa.EncodeI(op, rs, rt, uint16(imm))

	case isa.OpLUI:
		if len(s.args) != 2 {
			return 0, wrongArgCount(s, 2)
		}
		rt, err := reg(s, s.args[0])
		if err != nil {
			return 0, err
		}
		imm, err := immediate(s, s.args[1], labels)
		if err != nil {
			return 0, err
		}
		return isa.EncodeI(op, 0, rt, uint16(imm))

	case isa.OpLW, isa.OpSW:
		if len(s.args) != 2 {
			return 0, wrongArgCount(s, 2)
		}
		rt, err := reg(s, s.args[0])
		if err != nil {
			return 0, err
		}
		rs, imm, err := memOperand(s, s.args[1], labels)
		if err != nil {
			return 0, err
		}
		return isa.EncodeI(op, rs, rt, uint16(int16(imm)))

	case isa.OpBEQ, isa.OpBNE:
		if len(s.args) != 3 {
			return 0, wrongArgCount(s, 3)
		}
		rs, err := reg(s, s.args[0])
		if err != nil {
			return 0, err
		}
		rt, err := reg(s, s.args[1])
		if err != nil {
			return 0, err
		}
		offset, err := branchOffset(s, s.args[2], labels)
		if err != nil {
			return 0, err
		}
		return isa.EncodeI(op, rs, rt, uint16(int16(offset)))

	case isa.OpBLEZ, isa.OpBGTZ:
		if len(s.args) != 2 {
			return 0, wrongArgCount(s, 2)
		}
		rs, err := reg(s, s.args[0])
		if err != nil {
			return 0, err
		}
		offset, err := branchOffset(s, s.args[1], labels)
		if err != nil {
			return 0, err
		}
		return isa.EncodeI(op, rs, 0, uint16(int16(offset)))

	case isa.OpJ, isa.OpJAL:
		if len(s.args) != 1 {
			return 0, wrongArgCount(s, 1)
		}
		target, err := resolveValue(s, s.args[0], labels)
		if err != nil {
			return 0, err
		}
		return isa.EncodeJ(op, uint32(target))

	default:
		return 0, lineError(s.lineNo, ErrInvalidInstructionName, fmt.Sprintf("unsupported opcode %q", s.op))
	}
}

func threeRegs(s textStatement) (rd, rs, rt uint8, err error) {
	if len(s.args) != 3 {
		return 0, 0, 0, wrongArgCount(s, 3)
	}
	if rd, err = reg(s, s.args[0]); err != nil {
		return
	}
	if rs, err = reg(s, s.args[1]); err != nil {
		return
	}
	rt, err = reg(s, s.args[2])
	return
}

// regRegImm resolves the common "rt, rs, imm" three-operand I-type form
// shared by addi/slti/andi/ori/xori.
func regRegImm(s textStatement, labels map[string]uint32) (rt, rs uint8, imm int64, err error) {
	if len(s.args) != 3 {
		err = wrongArgCount(s, 3)
		return
	}
	if rt, err = reg(s, s.args[0]); err != nil {
		return
	}
	if rs, err = reg(s, s.args[1]); err != nil {
		return
	}
	imm, err = immediate(s, s.args[2], labels)
	return
}

func reg(s textStatement, tok string) (uint8, error) {
	r, err := parseRegister(tok)
	if err != nil {
		return 0, lineError(s.lineNo, ErrInvalidInstructionFormat, err.Error())
	}
	return r, nil
}

// resolveValue resolves tok as either an integer literal or a label.
func resolveValue(s textStatement, tok string, labels map[string]uint32) (int64, error) {
	tok = strings.TrimSpace(tok)
	if v, err := strconv.ParseInt(tok, 0, 64); err == nil {
		return v, nil
	}
	if addr, ok := labels[tok]; ok {
		return int64(addr), nil
	}
	return 0, lineError(s.lineNo, ErrInvalidLabel, fmt.Sprintf("unresolved operand %q", tok))
}

func immediate(s textStatement, tok string, labels map[string]uint32) (int64, error) {
	return resolveValue(s, tok, labels)
}

// memOperand parses the load/store operand form "imm($reg)"; a bare
// immediate or label with no register suffix implies $zero, so "lw $v0,
// x" loads straight through a data label.
func memOperand(s textStatement, tok string, labels map[string]uint32) (rs uint8, imm int64, err error) {
	tok = strings.TrimSpace(tok)
	open := strings.IndexByte(tok, '(')
	if open < 0 {
		imm, err = resolveValue(s, tok, labels)
		return 0, imm, err
	}
	if !strings.HasSuffix(tok, ")") {
		return 0, 0, lineError(s.lineNo, ErrInvalidInstructionFormat, fmt.Sprintf("malformed memory operand %q", tok))
	}
	immTok := strings.TrimSpace(tok[:open])
	regTok := tok[open+1 : len(tok)-1]

	if immTok == "" {
		imm = 0
	} else if imm, err = resolveValue(s, immTok, labels); err != nil {
		return 0, 0, err
	}
	rs, err = reg(s, regTok)
	return rs, imm, err
}

// branchOffset resolves a branch target label/immediate to the
// PC-relative word offset the BEU's `pc + (imm << 2)` expects: branch
// resolution has no delay slot, so the offset is measured from the
// branch instruction's own address, not pc+4.
func branchOffset(s textStatement, tok string, labels map[string]uint32) (int64, error) {
	target, err := resolveValue(s, tok, labels)
	if err != nil {
		return 0, err
	}
	diff := target - int64(s.addr)
	if diff%4 != 0 {
		return 0, lineError(s.lineNo, ErrInvalidInstructionFormat, fmt.Sprintf("branch target %q is not word-aligned relative to its instruction", tok))
	}
	offset := diff / 4
	if offset < -(1<<15) || offset >= (1<<15) {
		return 0, lineError(s.lineNo, ErrInvalidInstructionFormat, fmt.Sprintf("branch target %q is out of 16-bit range", tok))
	}
	return offset, nil
}

func wrongArgCount(s textStatement, want int) error {
	return lineError(s.lineNo, ErrInvalidInstructionFormat,
		fmt.Sprintf("%q expects %d operand(s), got %d", s.op, want, len(s.args)))
}
