// Package core provides the cycle-accurate CPU core model. It wraps the
// out-of-order pipeline implementation to provide a high-level interface
// for the simulator CLI and the end-to-end tests.
package core

import (
	"github.com/archlab/mipsooo/emu"
	"github.com/archlab/mipsooo/timing/pipeline"
	"github.com/archlab/mipsooo/timing/predictor"
)

// Core represents a cycle-accurate CPU core model. It wraps the
// out-of-order pipeline and owns the register file and memory image the
// pipeline operates over.
type Core struct {
	Pipeline *pipeline.Pipeline

	regs *emu.RegFile
	mem  *emu.Memory
}

// NewCore creates a new Core with the given register file, memory, and
// pipeline configuration.
func NewCore(regs *emu.RegFile, mem *emu.Memory, cfg pipeline.Config) *Core {
	return &Core{
		Pipeline: pipeline.NewPipeline(mem, regs, cfg),
		regs:     regs,
		mem:      mem,
	}
}

// SetPC sets the program counter fetch resumes from.
func (c *Core) SetPC(pc uint32) {
	c.Pipeline.SetPC(pc)
}

// Tick executes one pipeline cycle.
func (c *Core) Tick() error {
	return c.Pipeline.Tick()
}

// Halted returns true if the core has halted (the pipeline has drained
// with nothing left to fetch, decode, issue, or retire).
func (c *Core) Halted() bool {
	return c.Pipeline.Halted()
}

// Stats returns performance statistics for the core.
func (c *Core) Stats() pipeline.Stats {
	return c.Pipeline.Stats()
}

// PredictorStats exposes the branch predictor's raw prediction tally.
func (c *Core) PredictorStats() predictor.Stats {
	return c.Pipeline.PredictorStats()
}

// RegFile exposes the register file backing this core, for result
// inspection once the core has halted.
func (c *Core) RegFile() *emu.RegFile {
	return c.regs
}

// Memory exposes the memory image backing this core, for result
// inspection once the core has halted.
func (c *Core) Memory() *emu.Memory {
	return c.mem
}

// Run ticks the core until it halts or an internal error occurs.
func (c *Core) Run() error {
	return c.Pipeline.Run()
}

// RunCycles ticks the core up to n times, stopping early if it halts. It
// reports whether the core is still running.
func (c *Core) RunCycles(n uint64) (bool, error) {
	return c.Pipeline.RunCycles(n)
}
