// Package emu provides the byte-addressable memory image and the
// architectural register file that the timing model reads and writes
// through its functional units.
package emu

import "errors"

// ErrNoMoreInstructions is the expected "end of program" signal: a fetch
// outside the loaded text region. The pipeline controller treats this as
// a normal termination event, not a failure.
var ErrNoMoreInstructions = errors.New("emu: fetch past loaded instruction region")

// Memory is a sparse byte-addressable mapping from a 32-bit address to
// an 8-bit value. It tracks the bounds of the loaded instruction region
// so that a fetch leaving it is reported rather than silently reading
// zero bytes forever.
type Memory struct {
	bytes map[uint32]uint8
	// textStart/textEnd bound the loaded instruction region: textEnd is
	// one past the highest address written by LoadText. A fetch outside
	// [textStart, textEnd) signals program termination; jr to an address
	// below the text region (conventionally 0 in $ra) terminates the same
	// way a fetch past the end does.
	textStart uint32
	textEnd   uint32
}

// NewMemory creates an empty memory image.
func NewMemory() *Memory {
	return &Memory{bytes: make(map[uint32]uint8)}
}

// Read8 reads a single byte. Unwritten addresses read as zero.
func (m *Memory) Read8(addr uint32) uint8 {
	return m.bytes[addr]
}

// Write8 writes a single byte.
func (m *Memory) Write8(addr uint32, v uint8) {
	m.bytes[addr] = v
}

// Read32 composes four consecutive bytes big-endian into a 32-bit word.
func (m *Memory) Read32(addr uint32) uint32 {
	return uint32(m.Read8(addr))<<24 |
		uint32(m.Read8(addr+1))<<16 |
		uint32(m.Read8(addr+2))<<8 |
		uint32(m.Read8(addr+3))
}

// Write32 splits a 32-bit word into four consecutive big-endian bytes.
func (m *Memory) Write32(addr uint32, v uint32) {
	m.Write8(addr, uint8(v>>24))
	m.Write8(addr+1, uint8(v>>16))
	m.Write8(addr+2, uint8(v>>8))
	m.Write8(addr+3, uint8(v))
}

// LoadText marks [addr, addr+len(data)) as the loaded instruction region
// and writes data into it. Called once by the loader before execution
// begins; FetchWord uses the high-water mark to detect the end of the
// program.
func (m *Memory) LoadText(addr uint32, data []byte) {
	if len(data) == 0 {
		return
	}
	for i, b := range data {
		m.Write8(addr+uint32(i), b)
	}
	if m.textEnd == m.textStart || addr < m.textStart {
		m.textStart = addr
	}
	if end := addr + uint32(len(data)); end > m.textEnd {
		m.textEnd = end
	}
}

// LoadData writes data into memory without extending the fetchable text
// region (used for the assembler's .data section).
func (m *Memory) LoadData(addr uint32, data []byte) {
	for i, b := range data {
		m.Write8(addr+uint32(i), b)
	}
}

// Snapshot returns a copy of every byte currently held in the image, for
// the post-run memory dump.
func (m *Memory) Snapshot() map[uint32]uint8 {
	out := make(map[uint32]uint8, len(m.bytes))
	for addr, b := range m.bytes {
		out[addr] = b
	}
	return out
}

// FetchWord reads the instruction word at pc. It returns
// ErrNoMoreInstructions once pc leaves the loaded text region, which the
// pipeline controller interprets as normal program termination.
func (m *Memory) FetchWord(pc uint32) (uint32, error) {
	if pc < m.textStart || pc+4 > m.textEnd {
		return 0, ErrNoMoreInstructions
	}
	return m.Read32(pc), nil
}
