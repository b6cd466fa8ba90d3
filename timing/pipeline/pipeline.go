// Package pipeline implements the out-of-order superscalar pipeline
// controller: the single `Tick` that fetches, retires, issues/executes,
// and decodes N instructions per cycle, and owns the shared predictor,
// reservation station, re-order buffer, and execution-unit dispatcher
// that the rest of the timing model depends on.
//
// Within one tick the stages run against a consistent snapshot: fetch
// fills this cycle's slot register while decode consumes last cycle's,
// and the two swap only at the end of the tick, so no stage observes
// another stage's same-cycle mutations except through the ROB forwarding
// path.
package pipeline

import (
	"github.com/archlab/mipsooo/emu"
	"github.com/archlab/mipsooo/isa"
	"github.com/archlab/mipsooo/timing/fu"
	"github.com/archlab/mipsooo/timing/predictor"
	"github.com/archlab/mipsooo/timing/rob"
	"github.com/archlab/mipsooo/timing/rs"
)

// memPort adapts *emu.Memory's error-free Read32/Write32 to the
// fu.MemRead/fu.MemWrite interfaces the LSU depends on.
type memPort struct{ mem *emu.Memory }

func (m memPort) Read32(addr uint32) (uint32, error) { return m.mem.Read32(addr), nil }
func (m memPort) Write32(addr uint32, value uint32)  { m.mem.Write32(addr, value) }

// MakePrediction decodes word (fetched from pc) and computes its
// predicted next PC. A jal opens a new speculation block and then pushes
// its return address tagged with that block, so squashing the jal's block
// also discards its RAS entry; a conditional branch opens a block and
// counts the prediction; jr counts the prediction via the RAS pop itself;
// j and everything else leave the block and prediction count untouched.
func MakePrediction(pred *predictor.State, dec *isa.Decoder, word uint32, pc uint32) (*isa.Instruction, error) {
	inst, err := dec.Decode(word, pc)
	if err != nil {
		return nil, err
	}

	switch {
	case inst.Op == isa.OpJAL:
		pred.NextBlock()
		pred.PushReturn(pc)
		inst.PredictedPC = inst.Addr

	case inst.Op == isa.OpJ:
		inst.PredictedPC = inst.Addr

	case inst.Op == isa.OpJR:
		if addr, ok := pred.PopReturn(); ok {
			inst.PredictedPC = addr
		} else {
			inst.PredictedPC = pc + 4
		}

	case isa.IsBranch(inst.Op):
		pred.NextBlock()
		pred.RecordPrediction()
		if pred.CounterTaken() {
			inst.PredictedPC = uint32(int32(pc) + (inst.SignExtImm() << 2))
		} else {
			inst.PredictedPC = pc + 4
		}

	default:
		inst.PredictedPC = pc + 4
	}

	inst.Block = pred.Block()
	return inst, nil
}

// Pipeline is the out-of-order superscalar controller: one register file,
// one memory image, one predictor, one reservation station, one re-order
// buffer, and the master/slave dispatcher, advanced one atomic Tick at a
// time. The dispatcher's subunit occupancy is the only per-cycle state;
// it resets at the start of every execute phase.
type Pipeline struct {
	cfg Config

	dec  *isa.Decoder
	mem  *emu.Memory
	regs *emu.RegFile
	pred *predictor.State
	rs   *rs.Station
	rob  *rob.Buffer
	disp *fu.Dispatcher

	pc   uint32
	curr []FetchSlot // raw_instructions: this tick's fetch
	prev []FetchSlot // prev_raw_instructions: what decode sees this tick

	halted bool

	cycleCount       uint64
	instructionCount uint64
	branchCount      uint64
	flushCount       uint64
}

// NewPipeline creates a pipeline over the given memory image and register
// file, wiring the ALU/LSU/BEU dispatcher and the reservation station's
// hardware-port budget from cfg.
func NewPipeline(mem *emu.Memory, regs *emu.RegFile, cfg Config) *Pipeline {
	ports := rs.PortBudget{MaxLSU: 1, MaxBranch: 1, MaxALU: cfg.MaxALUPorts}
	disp := fu.NewDispatcher(fu.NewALU(), fu.NewLSU(memPort{mem: mem}), fu.NewBEU())

	return &Pipeline{
		cfg:  cfg,
		dec:  isa.NewDecoder(),
		mem:  mem,
		regs: regs,
		pred: predictor.NewState(),
		rs:   rs.NewStation(ports),
		rob:  rob.NewBuffer(),
		disp: disp,
		curr: newSlots(cfg.Width),
		prev: newSlots(cfg.Width),
	}
}

// SetPC sets the program counter fetch will resume from.
func (p *Pipeline) SetPC(pc uint32) {
	p.pc = pc
}

// PC returns the current fetch program counter.
func (p *Pipeline) PC() uint32 {
	return p.pc
}

// Halted reports whether the controller has declared the program finished:
// nothing fetched, nothing pending decode, the RS empty, the ROB fully
// written back, and the predictor out of recovery, all at once.
func (p *Pipeline) Halted() bool {
	return p.halted
}

// Stats reports the pipeline's cumulative performance counters.
type Stats struct {
	Cycles         uint64
	Instructions   uint64
	Branches       uint64
	Mispredictions uint64
	Flushes        uint64
	CPI            float64
}

// Stats returns the pipeline's performance statistics, including the
// predictor's own prediction/misprediction tally.
func (p *Pipeline) Stats() Stats {
	ps := p.pred.Stats()
	s := Stats{
		Cycles:         p.cycleCount,
		Instructions:   p.instructionCount,
		Branches:       p.branchCount,
		Mispredictions: ps.Incorrect,
		Flushes:        p.flushCount,
	}
	if s.Instructions > 0 {
		s.CPI = float64(s.Cycles) / float64(s.Instructions)
	}
	return s
}

// PredictorStats exposes the branch predictor's raw prediction tally.
func (p *Pipeline) PredictorStats() predictor.Stats {
	return p.pred.Stats()
}

// Tick advances the pipeline by exactly one cycle: recovery-clear check,
// fetch gate, retire, issue/execute (with mispredict squash), decode,
// then rotate the fetch buffers. A non-nil error indicates a scheduling
// bug (an invalid opcode reaching fetch, or a dispatcher invariant
// violation) and the caller should treat the simulation as aborted.
func (p *Pipeline) Tick() error {
	if p.halted {
		return nil
	}
	p.cycleCount++

	if p.pred.InRecovery() && p.rob.NoWritebacks() {
		p.pred.ClearRecovery()
		p.regs.SetAllValid()
	}

	fetchedAny := false
	if !p.pred.InRecovery() && p.rs.Len() <= p.cfg.RSCapacity-p.cfg.Width {
		var err error
		fetchedAny, err = p.fetch()
		if err != nil {
			return err
		}
	}

	p.retire()

	if err := p.issueExecute(); err != nil {
		return err
	}

	decodedAny := p.decode()

	if !fetchedAny && !decodedAny && p.rs.Len() == 0 && p.rob.NoWritebacks() && !p.pred.InRecovery() {
		p.halted = true
	}

	p.prev, p.curr = p.curr, newSlots(p.cfg.Width)
	return nil
}

// fetch fills curr with up to Width speculatively decoded instructions,
// advancing pc by the predicted next PC after each successful slot and by
// 4 after one that read outside the text region. The failed slot stays
// empty rather than aborting the group: running out of instructions is
// how programs end.
func (p *Pipeline) fetch() (bool, error) {
	any := false
	for i := 0; i < p.cfg.Width; i++ {
		word, err := p.mem.FetchWord(p.pc)
		if err != nil {
			p.curr[i].Clear()
			p.pc += 4
			continue
		}

		inst, err := MakePrediction(p.pred, p.dec, word, p.pc)
		if err != nil {
			return any, err
		}

		p.curr[i] = FetchSlot{Valid: true, Inst: inst}
		p.pc = inst.PredictedPC
		any = true
	}
	return any, nil
}

// retire applies up to Width finished ROB entries to the register file in
// program order. The entries stay in the buffer afterwards: later
// instructions renamed to them still read their results through the
// forwarding path.
func (p *Pipeline) retire() {
	for _, id := range p.rob.GetFinishedInstructions(p.cfg.Width) {
		entry, ok := p.rob.Get(id)
		if !ok {
			continue
		}
		for reg, val := range entry.Results {
			p.regs.Write(reg, val, id)
		}
		p.rob.MarkWritten(id)
		p.instructionCount++
	}
}

// issueExecute pulls this cycle's operand-ready, port-budgeted
// instructions from the reservation station and dispatches each to the
// master/slave execution units. The first mispredicting branch or jr
// stops the loop and drives the squash/recovery sequence; squash discards
// the wrong path from the RS and ROB regardless of how far this loop had
// progressed, including issued entries the break leaves unexecuted.
func (p *Pipeline) issueExecute() error {
	ready := p.rs.GetReadyInstructions(p.cfg.Width, p.rob.IsReady)
	p.disp.ClearSubunits()

	for _, inst := range ready {
		resolve := func(tag int, reg uint8) (int32, error) {
			return p.rob.GetResult(tag, reg)
		}

		outcome, err := p.disp.Dispatch(inst, resolve, inst.PredictedPC)
		if err != nil {
			return err
		}
		for _, w := range outcome.Writes {
			p.rob.WriteResult(inst.RobEntry, w.Reg, w.Value)
		}

		mispredicted := false
		if outcome.Branch != nil {
			p.branchCount++
			if isa.IsBranch(inst.Op) {
				p.pred.UpdatePrediction(outcome.Branch.Taken)
			}
			mispredicted = outcome.Branch.Mispredict
		}

		p.rob.MarkReady(inst.RobEntry)

		if mispredicted {
			p.squash(inst, outcome.Branch.TargetPC)
			break
		}
	}
	return nil
}

// squash discards the wrong-path entries from the RS and ROB, enters
// recovery, prunes stale return addresses, flushes both fetch buffers,
// and redirects the program counter. A conditional branch opened its own
// speculation block at fetch, so everything from that block onward (the
// branch included) goes; a jr never opens a block and shares one with the
// straight-line code decoded before it, so its wrong path is cut by ROB
// id instead — everything after the jr's own entry.
func (p *Pipeline) squash(inst *isa.Instruction, target uint32) {
	p.pred.RecordMispredict()
	p.flushCount++
	if inst.Op == isa.OpJR {
		p.rs.ClearAfter(inst.RobEntry)
		p.rob.ClearAfter(inst.RobEntry)
	} else {
		p.rs.ClearBlock(inst.Block)
		p.rob.ClearBlock(inst.Block)
	}
	p.pred.EnterRecovery()
	p.pred.RemoveInvalidReturns(inst.Block)
	clearAll(p.curr)
	clearAll(p.prev)
	p.pc = target
}

// decode builds each pending fetch slot into a live in-flight instruction:
// insert it into the ROB, snapshot its source operands, rename its
// destination register(s) to the new ROB id, and enqueue it in the
// reservation station. It reports whether prev held anything to decode,
// for the termination check.
func (p *Pipeline) decode() bool {
	any := false
	for i := range p.prev {
		slot := p.prev[i]
		if !slot.Valid {
			continue
		}
		any = true

		inst := slot.Inst
		id := p.rob.InsertEntry(inst)
		inst.RobEntry = id

		// Unused operand slots stay valid-zero so the readiness check
		// never consults a ROB tag the instruction does not have.
		inst.RsOperand = isa.Operand{Valid: true}
		inst.RtOperand = isa.Operand{Valid: true}
		srcs := inst.SourceRegs()
		if len(srcs) > 0 {
			inst.RsOperand = p.regs.GetValue(srcs[0])
		}
		if len(srcs) > 1 {
			inst.RtOperand = p.regs.GetValue(srcs[1])
		}

		for _, d := range inst.DestRegisters() {
			p.regs.Invalidate(d, id)
		}

		p.rs.AddInstruction(inst)
	}
	return any
}

// Run ticks the pipeline until it halts or an internal error occurs.
func (p *Pipeline) Run() error {
	for !p.halted {
		if err := p.Tick(); err != nil {
			return err
		}
	}
	return nil
}

// RunCycles ticks the pipeline up to n times, stopping early if it halts.
// It reports whether the pipeline is still running.
func (p *Pipeline) RunCycles(n uint64) (bool, error) {
	for i := uint64(0); i < n && !p.halted; i++ {
		if err := p.Tick(); err != nil {
			return false, err
		}
	}
	return !p.halted, nil
}
