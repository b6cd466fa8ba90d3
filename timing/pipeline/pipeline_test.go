package pipeline_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/archlab/mipsooo/emu"
	"github.com/archlab/mipsooo/isa"
	"github.com/archlab/mipsooo/timing/pipeline"
)

func TestPipeline(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Pipeline Suite")
}

const textBase = uint32(0x1000)

// install lays words out big-endian as the text region at textBase. The
// tests below spell out register numbers directly (2 = $v0, 3 = $v1,
// 8 = $t0, 9 = $t1, 31 = $ra) rather than depending on the asm package.
func install(mem *emu.Memory, words ...uint32) {
	data := make([]byte, 0, len(words)*4)
	for _, w := range words {
		data = append(data, byte(w>>24), byte(w>>16), byte(w>>8), byte(w))
	}
	mem.LoadText(textBase, data)
}

func mustR(op isa.Op, rs, rt, rd, shamt uint8) uint32 {
	w, err := isa.EncodeR(op, rs, rt, rd, shamt)
	Expect(err).NotTo(HaveOccurred())
	return w
}

func mustI(op isa.Op, rs, rt uint8, imm uint16) uint32 {
	w, err := isa.EncodeI(op, rs, rt, imm)
	Expect(err).NotTo(HaveOccurred())
	return w
}

func mustJ(op isa.Op, addr uint32) uint32 {
	w, err := isa.EncodeJ(op, addr)
	Expect(err).NotTo(HaveOccurred())
	return w
}

func runToHalt(p *pipeline.Pipeline) {
	for i := 0; i < 100000 && !p.Halted(); i++ {
		Expect(p.Tick()).To(Succeed())
	}
	Expect(p.Halted()).To(BeTrue())
}

var _ = Describe("Pipeline", func() {
	var (
		mem  *emu.Memory
		regs *emu.RegFile
		p    *pipeline.Pipeline
	)

	BeforeEach(func() {
		mem = emu.NewMemory()
		regs = emu.NewRegFile()
		p = pipeline.NewPipeline(mem, regs, pipeline.DefaultConfig())
		p.SetPC(textBase)
	})

	// Scenario 1: addi $v0, $zero, 7 => v0 = 7 after one retirement.
	It("retires a single addi", func() {
		install(mem, mustI(isa.OpADDI, 0, 2, 7))
		runToHalt(p)

		Expect(regs.Peek(2)).To(Equal(int32(7)))
		Expect(p.Stats().Instructions).To(Equal(uint64(1)))
	})

	// Scenario 2: mult/mflo resolves HI/LO renaming without stall.
	It("resolves mult/mflo through LO renaming", func() {
		install(mem,
			mustI(isa.OpADDI, 0, 8, 4), // addi $t0, $zero, 4
			mustI(isa.OpADDI, 0, 9, 5), // addi $t1, $zero, 5
			mustR(isa.OpMULT, 8, 9, 0, 0), // mult $t0, $t1
			mustR(isa.OpMFLO, 0, 0, 2, 0), // mflo $v0
		)
		runToHalt(p)

		Expect(regs.Peek(2)).To(Equal(int32(20)))
	})

	// Scenario 3: .data x: .word 42 ; lw $v0, x => v0 = 42.
	It("loads a word written directly into memory", func() {
		mem.LoadData(32, []byte{0, 0, 0, 42})
		install(mem, mustI(isa.OpLW, 0, 2, 32)) // lw $v0, 32($zero)
		runToHalt(p)

		Expect(regs.Peek(2)).To(Equal(int32(42)))
	})

	// Scenario 4: a countdown loop driven by bne, exercising the predictor
	// and at least one flush/recovery.
	It("runs a countdown loop to zero via a predicted branch", func() {
		// addi $t0, $zero, 10
		// L: addi $t0, $t0, -1
		//    bne  $t0, $zero, L
		//    add  $v0, $zero, $zero
		negOne := int16(-1)
		install(mem,
			mustI(isa.OpADDI, 0, 8, 10),
			mustI(isa.OpADDI, 8, 8, uint16(negOne)),
			mustI(isa.OpBNE, 8, 0, uint16(negOne)),
			mustR(isa.OpADD, 0, 0, 2, 0),
		)
		runToHalt(p)

		Expect(regs.Peek(2)).To(Equal(int32(0)))
		Expect(regs.Peek(8)).To(Equal(int32(0)))

		stats := p.Stats()
		Expect(stats.Mispredictions).To(Equal(uint64(1)))
		Expect(stats.Branches - stats.Mispredictions).To(BeNumerically(">=", 8))
	})

	// Scenario 5: jal/jr/RAS round trip with no recovery.
	It("returns through jal/jr without entering recovery", func() {
		// jal F          @ textBase
		// j   END        @ textBase+4
		// F: addi $v0, $zero, 1   @ textBase+8
		//    jr $ra               @ textBase+12
		// END: sll $zero, $zero, 0 (nop) @ textBase+16
		install(mem,
			mustJ(isa.OpJAL, textBase+8),
			mustJ(isa.OpJ, textBase+16),
			mustI(isa.OpADDI, 0, 2, 1),
			mustR(isa.OpJR, 31, 0, 0, 0),
			mustR(isa.OpSLL, 0, 0, 0, 0),
		)
		runToHalt(p)

		Expect(regs.Peek(2)).To(Equal(int32(1)))
		Expect(p.Stats().Flushes).To(Equal(uint64(0)))
	})

	// Scenario 6: a write-after-write pair resolves to the program-order
	// last write regardless of how the RS schedules the two independent
	// instructions.
	It("resolves a WAW pair to the last write in program order", func() {
		install(mem,
			mustI(isa.OpADDI, 0, 8, 1),
			mustI(isa.OpADDI, 0, 8, 2),
		)
		runToHalt(p)

		Expect(regs.Peek(8)).To(Equal(int32(2)))
	})

	// Returning through jr with $ra = 0 is the conventional way a program
	// ends: the jump leaves the text region, which fetch reports as "no
	// more instructions". The jr mispredicts (the RAS is empty), but the
	// squash must not take the pending results of the straight-line code
	// decoded before it.
	It("keeps predecessor results across a terminating jr's squash", func() {
		install(mem,
			mustI(isa.OpADDI, 0, 8, 7),   // addi $t0, $zero, 7
			mustI(isa.OpADDI, 0, 9, 35),  // addi $t1, $zero, 35
			mustR(isa.OpADD, 8, 9, 2, 0), // add  $v0, $t0, $t1
			mustR(isa.OpJR, 31, 0, 0, 0), // jr   $ra
		)
		runToHalt(p)

		Expect(regs.Peek(2)).To(Equal(int32(42)))
		Expect(p.Stats().Flushes).To(Equal(uint64(1)))
	})

	It("keeps register 0 permanently valid and zero", func() {
		install(mem, mustI(isa.OpADDI, 0, 0, 99)) // addi $zero, $zero, 99 (no-op target)
		runToHalt(p)

		Expect(regs.Peek(0)).To(Equal(int32(0)))
	})

	It("halts only once fetch, decode, RS, and ROB have all drained", func() {
		install(mem, mustI(isa.OpADDI, 0, 2, 1))
		Expect(p.Halted()).To(BeFalse())
		runToHalt(p)
		Expect(p.Halted()).To(BeTrue())

		// Ticking a halted pipeline is a no-op, not an error.
		Expect(p.Tick()).To(Succeed())
	})
})
