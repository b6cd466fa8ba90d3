package isa

import "fmt"

// ErrUnencodable is returned by the Encode* helpers when asked to encode an
// opcode that does not belong to the format being encoded (e.g. handing a
// branch mnemonic to EncodeR). Only the `asm` package calls these — the
// simulator itself never encodes, only decodes.
var ErrUnencodable = fmt.Errorf("isa: opcode cannot be encoded in this format")

// rOpFunct maps every R-type mnemonic back to its function-field encoding,
// the mirror image of rFunctToOp used by Decode.
var rOpFunct = map[Op]uint32{
	OpADD:  fnADD,
	OpSUB:  fnSUB,
	OpAND:  fnAND,
	OpOR:   fnOR,
	OpXOR:  fnXOR,
	OpNOR:  fnNOR,
	OpSLT:  fnSLT,
	OpSLL:  fnSLL,
	OpSRA:  fnSRA,
	OpMULT: fnMULT,
	OpDIV:  fnDIV,
	OpJR:   fnJR,
	OpMFHI: fnMFHI,
	OpMFLO: fnMFLO,
}

// iOpField is the mirror image of iOpcodeToOp.
var iOpField = map[Op]uint32{
	OpADDI: opADDI,
	OpANDI: opANDI,
	OpORI:  opORI,
	OpXORI: opXORI,
	OpSLTI: opSLTI,
	OpLUI:  opLUI,
	OpLW:   opLW,
	OpSW:   opSW,
	OpBEQ:  opBEQ,
	OpBNE:  opBNE,
	OpBLEZ: opBLEZ,
	OpBGTZ: opBGTZ,
}

// jOpField is the mirror image of jOpcodeToOp.
var jOpField = map[Op]uint32{
	OpJ:   opJ,
	OpJAL: opJAL,
}

// EncodeR assembles an R-type word (opcode field 0, function field from op)
// from its rs/rt/rd/shamt fields, the inverse of Decode's R-type branch.
func EncodeR(op Op, rs, rt, rd, shamt uint8) (uint32, error) {
	fn, ok := rOpFunct[op]
	if !ok {
		return 0, fmt.Errorf("%w: %s is not an R-type opcode", ErrUnencodable, op)
	}
	var w uint32
	w |= uint32(rawOpcodeRType) << 26
	w |= (uint32(rs) & 0x1F) << 21
	w |= (uint32(rt) & 0x1F) << 16
	w |= (uint32(rd) & 0x1F) << 11
	w |= (uint32(shamt) & 0x1F) << 6
	w |= fn
	return w, nil
}

// EncodeI assembles an I-type word from its opcode, rs/rt fields, and raw
// 16-bit immediate (already sign- or zero-extended by the caller as
// appropriate for the mnemonic).
func EncodeI(op Op, rs, rt uint8, imm uint16) (uint32, error) {
	opcode, ok := iOpField[op]
	if !ok {
		return 0, fmt.Errorf("%w: %s is not an I-type opcode", ErrUnencodable, op)
	}
	var w uint32
	w |= opcode << 26
	w |= (uint32(rs) & 0x1F) << 21
	w |= (uint32(rt) & 0x1F) << 16
	w |= uint32(imm)
	return w, nil
}

// EncodeJ assembles a J-type word from its opcode and 26-bit jump address.
func EncodeJ(op Op, addr uint32) (uint32, error) {
	opcode, ok := jOpField[op]
	if !ok {
		return 0, fmt.Errorf("%w: %s is not a J-type opcode", ErrUnencodable, op)
	}
	var w uint32
	w |= opcode << 26
	w |= addr & 0x3FFFFFF
	return w, nil
}

// LookupMnemonic returns the Op named by a lower-case assembly mnemonic
// (e.g. "addi"), used by the assembler's operand-format table. ok is false
// for any string that is not one of the 28 supported mnemonics.
func LookupMnemonic(name string) (Op, bool) {
	op, ok := mnemonicToOp[name]
	return op, ok
}

var mnemonicToOp = map[string]Op{
	"add": OpADD, "sub": OpSUB, "and": OpAND, "or": OpOR, "xor": OpXOR,
	"nor": OpNOR, "slt": OpSLT, "sll": OpSLL, "sra": OpSRA,
	"mult": OpMULT, "div": OpDIV, "jr": OpJR, "mfhi": OpMFHI, "mflo": OpMFLO,
	"addi": OpADDI, "andi": OpANDI, "ori": OpORI, "xori": OpXORI,
	"slti": OpSLTI, "lui": OpLUI, "lw": OpLW, "sw": OpSW,
	"beq": OpBEQ, "bne": OpBNE, "blez": OpBLEZ, "bgtz": OpBGTZ,
	"j": OpJ, "jal": OpJAL,
}
