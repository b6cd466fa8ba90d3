package emu

import "github.com/archlab/mipsooo/isa"

// Register is one architectural register-file entry: its symbolic name,
// its 32-bit signed value, whether that value is authoritative, and the
// ROB entry (if any) that last renamed it. While Valid is true, RobEntry
// may be stale and must not be consulted.
type Register struct {
	Name     string
	Value    int32
	Valid    bool
	RobEntry int
}

// RegFile is the 34-entry MIPS architectural register file: 32
// general-purpose registers plus HI (32) and LO (33). Register 0 is
// hard-wired zero.
type RegFile struct {
	regs [isa.NumRegisters]Register
}

var regNames = [isa.NumRegisters]string{
	"zero", "at", "v0", "v1", "a0", "a1", "a2", "a3",
	"t0", "t1", "t2", "t3", "t4", "t5", "t6", "t7",
	"s0", "s1", "s2", "s3", "s4", "s5", "s6", "s7",
	"t8", "t9", "k0", "k1", "gp", "sp", "fp", "ra",
	"hi", "lo",
}

// NewRegFile creates a register file with every register valid and zero;
// no register starts renamed.
func NewRegFile() *RegFile {
	rf := &RegFile{}
	for i := range rf.regs {
		rf.regs[i] = Register{Name: regNames[i], Valid: true}
	}
	return rf
}

// GetValue returns the current architectural value if r is valid, or the
// renamer tag if it has been invalidated.
func (rf *RegFile) GetValue(r uint8) isa.Operand {
	reg := &rf.regs[r]
	if reg.Valid {
		return isa.Operand{Valid: true, Value: reg.Value}
	}
	return isa.Operand{Valid: false, Tag: reg.RobEntry}
}

// Invalidate marks r invalid and records the renaming ROB tag. It is a
// no-op for r == 0, which is permanently valid and zero.
func (rf *RegFile) Invalidate(r uint8, robTag int) {
	if r == 0 {
		return
	}
	rf.regs[r].Valid = false
	rf.regs[r].RobEntry = robTag
}

// Write assigns value to register r, skipping r == 0. It reports whether
// the register was actually updated (used by callers that need to know
// which architectural registers changed this cycle).
func (rf *RegFile) Write(r uint8, value int32, robEntry int) bool {
	if r == 0 {
		return false
	}
	reg := &rf.regs[r]
	reg.Value = value
	if reg.RobEntry == robEntry {
		reg.Valid = true
	}
	return true
}

// SetAllValid forces every register valid, discarding any pending
// renaming tags. Used only by speculative-recovery flush.
func (rf *RegFile) SetAllValid() {
	for i := range rf.regs {
		rf.regs[i].Valid = true
	}
}

// NoWritebacks reports whether every register is valid.
func (rf *RegFile) NoWritebacks() bool {
	for i := range rf.regs {
		if !rf.regs[i].Valid {
			return false
		}
	}
	return true
}

// Peek returns the raw architectural value of r regardless of validity,
// for observing final results (v0/v1 at termination) and for memory-dump
// style reporting.
func (rf *RegFile) Peek(r uint8) int32 {
	return rf.regs[r].Value
}

// Snapshot returns a copy of the full register array, for debugging and
// for the simulator CLI's -dump file.
func (rf *RegFile) Snapshot() [isa.NumRegisters]Register {
	return rf.regs
}
