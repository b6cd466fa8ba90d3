package fu

import (
	"errors"
	"fmt"

	"github.com/archlab/mipsooo/isa"
)

// ErrAlreadyExecuting is returned by Dispatch when every subunit capable of
// executing the opcode has already accepted an instruction this cycle,
// before ClearSubunits has run.
var ErrAlreadyExecuting = errors.New("fu: unit already executing this cycle")

// ErrNoCapableUnit is returned by Dispatch when no unit in the pair has a
// subunit for the given opcode class at all.
var ErrNoCapableUnit = errors.New("fu: no unit can execute this instruction")

// Outcome is one dispatched instruction's completed execution: its
// register writes, and, for a control-flow instruction, its BEU verdict.
type Outcome struct {
	Inst   *isa.Instruction
	Writes []Write
	Branch *BranchOutcome
}

// subunit names one of a unit's three per-cycle execution slots.
type subunit uint8

const (
	subALU subunit = iota
	subLSU
	subBEU
)

func subunitFor(op isa.Op) subunit {
	switch {
	case isa.IsMemory(op):
		return subLSU
	case isa.IsControlFlow(op):
		return subBEU
	default:
		return subALU
	}
}

// unit is one execution unit: a set of subunits, each of which accepts
// at most one instruction per cycle. The master composes all three; the
// slave has only an ALU.
type unit struct {
	has  [3]bool
	busy [3]bool
}

// acquire claims the subunit for op. It reports whether this unit has the
// subunit at all, and whether the claim succeeded (false when the subunit
// already accepted an instruction this cycle).
func (u *unit) acquire(op isa.Op) (capable, acquired bool) {
	s := subunitFor(op)
	if !u.has[s] {
		return false, false
	}
	if u.busy[s] {
		return true, false
	}
	u.busy[s] = true
	return true, true
}

func (u *unit) clear() {
	u.busy = [3]bool{}
}

// Dispatcher is the master/slave execution-unit pair: the master
// composes ALU, LSU, and BEU subunits, the slave an ALU only, so one
// cycle can carry at most two ALU ops, one memory op, and one branch —
// the same ceiling the reservation station's port budget enforces.
// Dispatch tries the master first and falls back to the slave.
type Dispatcher struct {
	master unit
	slave  unit

	alu *ALU
	lsu *LSU
	beu *BEU
}

// NewDispatcher creates a master/slave dispatcher backed by the given
// functional units.
func NewDispatcher(alu *ALU, lsu *LSU, beu *BEU) *Dispatcher {
	return &Dispatcher{
		master: unit{has: [3]bool{true, true, true}},
		slave:  unit{has: [3]bool{subALU: true}},
		alu:    alu,
		lsu:    lsu,
		beu:    beu,
	}
}

// ClearSubunits resets every subunit to unoccupied, at the start of a
// new execute phase.
func (d *Dispatcher) ClearSubunits() {
	d.master.clear()
	d.slave.clear()
}

// Dispatch routes inst to a capable, unoccupied subunit and executes it.
// predictedPC is only consulted for control-flow instructions.
func (d *Dispatcher) Dispatch(inst *isa.Instruction, resolve Resolver, predictedPC uint32) (Outcome, error) {
	if err := d.assign(inst.Op); err != nil {
		return Outcome{}, err
	}

	switch {
	case isa.IsMemory(inst.Op):
		writes, err := d.lsu.Execute(inst, resolve)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Inst: inst, Writes: writes}, nil

	case isa.IsControlFlow(inst.Op):
		branch, err := d.beu.Execute(inst, resolve, predictedPC)
		if err != nil {
			return Outcome{}, err
		}
		var writes []Write
		if branch.Write != nil {
			writes = []Write{*branch.Write}
		}
		return Outcome{Inst: inst, Writes: writes, Branch: &branch}, nil

	default:
		writes, err := d.alu.Execute(inst, resolve)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Inst: inst, Writes: writes}, nil
	}
}

// assign claims a subunit for op, master first, then slave.
func (d *Dispatcher) assign(op isa.Op) error {
	capM, okM := d.master.acquire(op)
	if okM {
		return nil
	}
	capS, okS := d.slave.acquire(op)
	if okS {
		return nil
	}
	if capM || capS {
		return fmt.Errorf("%w: %s", ErrAlreadyExecuting, op)
	}
	return fmt.Errorf("%w: %s", ErrNoCapableUnit, op)
}
