package pipeline

import "github.com/archlab/mipsooo/isa"

// FetchSlot is one N-way fetch/decode slot: either empty (nothing fetched
// this cycle, or a slot whose read left the text region) or a
// speculatively decoded instruction carrying its predicted next PC and
// speculation block.
type FetchSlot struct {
	Valid bool
	Inst  *isa.Instruction
}

// Clear empties the slot.
func (f *FetchSlot) Clear() {
	*f = FetchSlot{}
}

// newSlots allocates a fresh all-empty N-wide fetch/decode register.
func newSlots(n int) []FetchSlot {
	return make([]FetchSlot, n)
}

// clearAll empties every slot, used by the squash path to flush both
// fetch buffers in one call.
func clearAll(regs []FetchSlot) {
	for i := range regs {
		regs[i].Clear()
	}
}
