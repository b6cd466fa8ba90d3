// Command simulator loads an assembled program and runs it to
// termination on the out-of-order pipeline, reporting v0/v1 and, with
// -v, cumulative timing statistics.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/archlab/mipsooo/emu"
	"github.com/archlab/mipsooo/loader"
	"github.com/archlab/mipsooo/timing/core"
	"github.com/archlab/mipsooo/timing/pipeline"
)

var (
	verbose    = flag.Bool("v", false, "print a timing statistics report after the run")
	dumpPath   = flag.String("dump", "", "write a memory dump to FILE after the run")
	configPath = flag.String("config", "", "path to a pipeline configuration JSON file")
	width      = flag.Int("width", pipeline.DefaultConfig().Width, "fetch/decode/retire width")
	rsCap      = flag.Int("rs-capacity", pipeline.DefaultConfig().RSCapacity, "reservation station capacity")
	aluPorts   = flag.Int("alu-ports", pipeline.DefaultConfig().MaxALUPorts, "ALU issue ports per cycle")
	maxCycle   = flag.Uint64("max-cycles", 10_000_000, "abort if the program has not halted after this many cycles")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: simulator [options] <program.bin>\n\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := run(flag.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "simulator: %v\n", err)
		os.Exit(1)
	}
}

func run(programPath string) error {
	f, err := os.Open(programPath)
	if err != nil {
		return fmt.Errorf("open program: %w", err)
	}
	defer f.Close()

	prog, err := loader.Load(f)
	if err != nil {
		return fmt.Errorf("load program: %w", err)
	}

	if *verbose {
		fmt.Printf("Loaded: %s\n", programPath)
		fmt.Printf("Entry point: 0x%08x\n", prog.Entry)
		fmt.Printf("Regions: %d\n", len(prog.Regions))
	}

	mem := emu.NewMemory()
	prog.InstallInto(mem)

	cfg := pipeline.Config{Width: *width, RSCapacity: *rsCap, MaxALUPorts: *aluPorts}
	if *configPath != "" {
		cfg, err = pipeline.LoadConfig(*configPath)
		if err != nil {
			return err
		}
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("pipeline config: %w", err)
	}

	regs := emu.NewRegFile()
	// Initialise the stack pointer 1000 words above the loaded image.
	regs.Write(29, int32(imageTop(prog)+1000*4), 0)

	c := core.NewCore(regs, mem, cfg)
	c.SetPC(prog.Entry)

	running, err := c.RunCycles(*maxCycle)
	if err != nil {
		return fmt.Errorf("running: %w", err)
	}
	if running {
		return fmt.Errorf("did not halt within %d cycles", *maxCycle)
	}

	fmt.Printf("v0 = %d\n", regs.Peek(2))
	fmt.Printf("v1 = %d\n", regs.Peek(3))

	if *verbose {
		printReport(c)
	}

	if *dumpPath != "" {
		if err := writeDump(*dumpPath, mem, regs); err != nil {
			return fmt.Errorf("writing dump: %w", err)
		}
	}

	return nil
}

// imageTop returns one past the highest address any region of prog loads.
func imageTop(prog *loader.Program) uint32 {
	var top uint32
	for _, r := range prog.Regions {
		if end := r.Addr + uint32(len(r.Data)); end > top {
			top = end
		}
	}
	return top
}

// printReport prints the post-run cycle/instruction/branch breakdown.
func printReport(c *core.Core) {
	stats := c.Stats()
	pstats := c.PredictorStats()

	fmt.Printf("\n")
	fmt.Printf("Total Instructions: %d\n", stats.Instructions)
	fmt.Printf("Total Cycles:       %d\n", stats.Cycles)
	fmt.Printf("CPI:                %.2f\n", stats.CPI)
	fmt.Printf("\n")
	fmt.Printf("Branches:       %d\n", stats.Branches)
	fmt.Printf("Mispredictions: %d\n", stats.Mispredictions)
	fmt.Printf("Flushes:        %d\n", stats.Flushes)
	fmt.Printf("\n")
	fmt.Printf("Predictor: %d/%d correct\n", pstats.Total-pstats.Incorrect, pstats.Total)
}

// writeDump writes the final machine state to path: every architectural
// register as a "name = value" line, then the memory image as "address:
// byte" lines in address order.
func writeDump(path string, mem *emu.Memory, regs *emu.RegFile) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	for _, r := range regs.Snapshot() {
		if _, err := fmt.Fprintf(f, "%s = %d\n", r.Name, r.Value); err != nil {
			return err
		}
	}

	image := mem.Snapshot()
	addrs := make([]uint32, 0, len(image))
	for addr := range image {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	for _, addr := range addrs {
		if _, err := fmt.Fprintf(f, "%d: %02x\n", addr, image[addr]); err != nil {
			return err
		}
	}
	return nil
}
