// Package rs implements the reservation station: the FIFO of pending
// instructions awaiting operand readiness and a functional-unit slot.
//
// Readiness is recomputed for every pending entry each cycle from the
// operand snapshots plus the ROB's forwardable results, then capped by
// the per-class hardware-port budget, so issue is genuinely out of order
// behind a stalled head.
package rs

import "github.com/archlab/mipsooo/isa"

// ReadyFunc reports whether the ROB entry named by tag has a ready
// result, i.e. whether a renamed operand can be satisfied by forwarding.
// The reservation station depends on the ROB only through this narrow
// query, so rs never imports rob directly.
type ReadyFunc func(robTag int) bool

// Entry is one pending reservation-station row: the instruction plus
// whether it was judged ready in the most recent readiness pass.
type Entry struct {
	Inst  *isa.Instruction
	Ready bool
}

// PortBudget caps how many instructions of each hardware-port class may
// issue in a single cycle.
type PortBudget struct {
	MaxLSU    int
	MaxBranch int
	MaxALU    int
}

// DefaultPortBudget allows at most one LSU op, one branch op, and two
// ALU ops per cycle.
func DefaultPortBudget() PortBudget {
	return PortBudget{MaxLSU: 1, MaxBranch: 1, MaxALU: 2}
}

// Station is the reservation station: an ordered FIFO of pending
// instructions.
type Station struct {
	entries []*Entry
	ports   PortBudget
}

// NewStation creates an empty reservation station with the given
// hardware-port budget.
func NewStation(ports PortBudget) *Station {
	return &Station{ports: ports}
}

// Len returns the number of pending entries.
func (s *Station) Len() int {
	return len(s.entries)
}

// AddInstruction appends inst to the station.
func (s *Station) AddInstruction(inst *isa.Instruction) {
	s.entries = append(s.entries, &Entry{Inst: inst})
}

// operandReady reports whether operand can be consumed this cycle:
// either it was captured as a concrete value at decode, or its renaming
// ROB entry now has a forwardable result.
func operandReady(op isa.Operand, robReady ReadyFunc) bool {
	return op.Valid || robReady(op.Tag)
}

// recomputeReadiness re-evaluates operand readiness for every entry, not
// just the head of the queue.
func (s *Station) recomputeReadiness(robReady ReadyFunc) {
	for _, e := range s.entries {
		e.Ready = operandReady(e.Inst.RsOperand, robReady) && operandReady(e.Inst.RtOperand, robReady)
	}
}

// GetReadyInstructions recomputes readiness for every entry, applies the
// hardware-port budget, and removes and returns up to width operand-ready
// instructions in program (FIFO) order. Entries that are operand-ready
// but exceed this cycle's port budget remain in the station for a later
// cycle.
func (s *Station) GetReadyInstructions(width int, robReady ReadyFunc) []*isa.Instruction {
	s.recomputeReadiness(robReady)

	var issued []*isa.Instruction
	var remaining []*Entry
	lsu, branch, alu := 0, 0, 0

	for _, e := range s.entries {
		if len(issued) >= width || !e.Ready {
			remaining = append(remaining, e)
			continue
		}

		op := e.Inst.Op
		switch {
		case isa.IsMemory(op):
			if lsu >= s.ports.MaxLSU {
				remaining = append(remaining, e)
				continue
			}
			lsu++
		case isa.IsControlFlow(op):
			if branch >= s.ports.MaxBranch {
				remaining = append(remaining, e)
				continue
			}
			branch++
		default:
			if alu >= s.ports.MaxALU {
				remaining = append(remaining, e)
				continue
			}
			alu++
		}

		issued = append(issued, e.Inst)
	}

	s.entries = remaining
	return issued
}

// ClearBlock discards every entry whose instruction belongs to a
// speculation block >= block, called during mispredict recovery.
func (s *Station) ClearBlock(block uint64) {
	var kept []*Entry
	for _, e := range s.entries {
		if e.Inst.Block < block {
			kept = append(kept, e)
		}
	}
	s.entries = kept
}

// ClearAfter discards every entry whose instruction was decoded into a ROB
// entry with id strictly greater than robID. Used for the jr squash, where
// the block counter cannot separate the mispredicting instruction from the
// straight-line code decoded before it.
func (s *Station) ClearAfter(robID int) {
	var kept []*Entry
	for _, e := range s.entries {
		if e.Inst.RobEntry <= robID {
			kept = append(kept, e)
		}
	}
	s.entries = kept
}
