// Package isa provides MIPS-I instruction definitions and decoding.
//
// This package implements decoding of 32-bit MIPS-I machine words into a
// structured Instruction representation. It supports the R/I/J instruction
// classes needed by the out-of-order simulator:
//
//   - R-type: add, sub, and, or, xor, nor, slt, sll, sra, mult, div, jr,
//     mfhi, mflo
//   - I-type: addi, andi, ori, xori, slti, lui, lw, sw, beq, bne, blez, bgtz
//   - J-type: j, jal
//
// Usage:
//
//	dec := isa.NewDecoder()
//	inst, err := dec.Decode(0x20080007, 0x400000) // addi $t0, $zero, 7
package isa
