// Package predictor implements the global 2-bit saturating-counter
// branch predictor (Smith algorithm) with a return-address stack, plus
// the speculation-block counter and recovery flag the pipeline uses to
// scope a mispredict flush.
package predictor

// Counter is the 2-bit saturating-counter state.
type Counter uint8

// The four saturating-counter states.
const (
	StronglyNotTaken Counter = iota
	WeaklyNotTaken
	WeaklyTaken
	StronglyTaken
)

// Taken reports whether this counter state predicts the branch taken.
func (c Counter) Taken() bool {
	return c >= WeaklyTaken
}

// rasEntry is one return-address-stack slot: the pushed address and the
// speculation block the jal that pushed it belongs to, so a later squash
// can drop exactly the entries a mispredicted call introduced.
type rasEntry struct {
	addr  uint32
	block uint64
}

// State holds all of the branch predictor's mutable state: the single
// global 2-bit counter, the return-address stack, the monotonic
// speculation-block counter, the in-recovery flag, and cumulative
// prediction statistics. The pipeline controller owns the single State
// value; the branch execution unit only reports outcomes and never holds
// a predictor handle.
type State struct {
	counter Counter
	ras     []rasEntry

	block      uint64
	inRecovery bool

	totalPredictions     uint64
	incorrectPredictions uint64
}

// NewState creates a predictor initialised to weakly-taken.
func NewState() *State {
	return &State{counter: WeaklyTaken}
}

// Block returns the current speculation-block id.
func (s *State) Block() uint64 {
	return s.block
}

// NextBlock increments and returns the new speculation-block id. Called
// by the pipeline controller's fetch stage on every fetched conditional
// branch or jal.
func (s *State) NextBlock() uint64 {
	s.block++
	return s.block
}

// InRecovery reports whether the predictor is waiting for a squash to
// fully drain before fetch may resume.
func (s *State) InRecovery() bool {
	return s.inRecovery
}

// EnterRecovery marks the predictor as recovering, called by the
// pipeline controller when a branch resolves against its prediction.
// Fetch stays gated until recovery clears.
func (s *State) EnterRecovery() {
	s.inRecovery = true
}

// ClearRecovery ends recovery. The controller calls this only once every
// ROB entry has been written back.
func (s *State) ClearRecovery() {
	s.inRecovery = false
}

// Stats reports the cumulative prediction counts.
type Stats struct {
	Total     uint64
	Incorrect uint64
}

// Stats returns the predictor's cumulative prediction statistics.
func (s *State) Stats() Stats {
	return Stats{Total: s.totalPredictions, Incorrect: s.incorrectPredictions}
}

// PushReturn pushes pc+4 onto the return-address stack tagged with the
// current speculation block, called on every jal fetch.
func (s *State) PushReturn(pc uint32) {
	s.ras = append(s.ras, rasEntry{addr: pc + 4, block: s.block})
}

// PopReturn pops the most recent return address. ok is false if the RAS
// is empty, in which case the caller falls back to pc+4. Every call
// counts as a prediction, answered or not.
func (s *State) PopReturn() (addr uint32, ok bool) {
	s.totalPredictions++
	if len(s.ras) == 0 {
		return 0, false
	}
	n := len(s.ras) - 1
	addr = s.ras[n].addr
	s.ras = s.ras[:n]
	return addr, true
}

// RemoveInvalidReturns drops every RAS entry pushed by a jal in a
// speculation block >= block, called during squash recovery so a
// mispredicted call's return address cannot leak into jr prediction
// after the flush.
func (s *State) RemoveInvalidReturns(block uint64) {
	keep := len(s.ras)
	for keep > 0 && s.ras[keep-1].block >= block {
		keep--
	}
	s.ras = s.ras[:keep]
}

// UpdatePrediction applies a saturating +1/-1 move to the global counter
// based on the branch's actual outcome.
func (s *State) UpdatePrediction(taken bool) {
	if taken {
		if s.counter < StronglyTaken {
			s.counter++
		}
	} else {
		if s.counter > StronglyNotTaken {
			s.counter--
		}
	}
}

// RecordPrediction increments total_predictions, called once per fetched
// conditional branch (jr's equivalent bookkeeping lives in PopReturn,
// since every jr counts whether or not the RAS could answer it).
func (s *State) RecordPrediction() {
	s.totalPredictions++
}

// RecordMispredict increments incorrect_predictions, called by the
// pipeline controller when a resolved branch, jump-register, disagrees
// with what was predicted at fetch.
func (s *State) RecordMispredict() {
	s.incorrectPredictions++
}

// CounterTaken reports whether the current global counter predicts taken,
// for callers assembling a prediction for a conditional branch.
func (s *State) CounterTaken() bool {
	return s.counter.Taken()
}
