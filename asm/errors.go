package asm

import (
	"errors"
	"fmt"
)

// The three fatal assembly-time error classes.
var (
	// ErrInvalidLabel is returned when an operand names a label with no
	// corresponding definition in either section.
	ErrInvalidLabel = errors.New("asm: invalid label")
	// ErrInvalidInstructionName is returned when a mnemonic is not one of
	// the 28 supported opcodes.
	ErrInvalidInstructionName = errors.New("asm: invalid instruction name")
	// ErrInvalidInstructionFormat is returned when an instruction has the
	// wrong number or shape of operands for its mnemonic.
	ErrInvalidInstructionFormat = errors.New("asm: invalid instruction format")
)

// lineError wraps one of the sentinels above with the source line
// number.
func lineError(line int, base error, detail string) error {
	return fmt.Errorf("asm: line %d: %s: %w", line, detail, base)
}
