package fu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/archlab/mipsooo/isa"
	"github.com/archlab/mipsooo/timing/fu"
)

var _ = Describe("Dispatcher", func() {
	var d *fu.Dispatcher
	var mem *fakeMem

	BeforeEach(func() {
		mem = newFakeMem()
		d = fu.NewDispatcher(fu.NewALU(), fu.NewLSU(mem), fu.NewBEU())
	})

	It("co-issues an ALU op and a memory op on separate subunits", func() {
		inst := &isa.Instruction{Op: isa.OpADD, Rd: 1, RsOperand: ready(1), RtOperand: ready(2)}
		outcome, err := d.Dispatch(inst, noResolver, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(outcome.Writes).To(Equal([]fu.Write{{Reg: 1, Value: 3}}))

		lw := &isa.Instruction{Op: isa.OpLW, Rt: 2, RsOperand: ready(0)}
		_, err = d.Dispatch(lw, noResolver, 0)
		Expect(err).NotTo(HaveOccurred())
	})

	It("carries a full-width cycle: two ALU ops, a load, and a branch", func() {
		for _, inst := range []*isa.Instruction{
			{Op: isa.OpADD, Rd: 1, RsOperand: ready(1), RtOperand: ready(1)},
			{Op: isa.OpADD, Rd: 2, RsOperand: ready(2), RtOperand: ready(2)},
			{Op: isa.OpLW, Rt: 3, RsOperand: ready(0)},
			{Op: isa.OpJ, Addr: 4},
		} {
			_, err := d.Dispatch(inst, noResolver, 4)
			Expect(err).NotTo(HaveOccurred())
		}
	})

	It("routes a memory op to the master, since the slave cannot execute it", func() {
		lw := &isa.Instruction{Op: isa.OpLW, Rt: 2, RsOperand: ready(0)}
		outcome, err := d.Dispatch(lw, noResolver, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(outcome.Writes).To(HaveLen(1))
	})

	It("routes a control-flow op to the master and reports its branch outcome", func() {
		j := &isa.Instruction{Op: isa.OpJ, PC: 0, Addr: 4}
		outcome, err := d.Dispatch(j, noResolver, 0x10)
		Expect(err).NotTo(HaveOccurred())
		Expect(outcome.Branch).NotTo(BeNil())
		Expect(outcome.Branch.TargetPC).To(Equal(uint32(4)))
	})

	It("rejects a second LSU op in the same cycle: only the master can take it and it's busy", func() {
		lw1 := &isa.Instruction{Op: isa.OpLW, Rt: 2, RsOperand: ready(0)}
		_, err := d.Dispatch(lw1, noResolver, 0)
		Expect(err).NotTo(HaveOccurred())

		lw2 := &isa.Instruction{Op: isa.OpLW, Rt: 3, RsOperand: ready(4)}
		_, err = d.Dispatch(lw2, noResolver, 0)
		Expect(err).To(MatchError(fu.ErrAlreadyExecuting))
	})

	It("allows two ALU ops in one cycle: one per unit", func() {
		a1 := &isa.Instruction{Op: isa.OpADD, Rd: 1, RsOperand: ready(1), RtOperand: ready(1)}
		a2 := &isa.Instruction{Op: isa.OpADD, Rd: 2, RsOperand: ready(2), RtOperand: ready(2)}

		_, err := d.Dispatch(a1, noResolver, 0)
		Expect(err).NotTo(HaveOccurred())
		_, err = d.Dispatch(a2, noResolver, 0)
		Expect(err).NotTo(HaveOccurred())
	})

	It("rejects a third ALU op once both ALU subunits are occupied", func() {
		for i := 0; i < 2; i++ {
			inst := &isa.Instruction{Op: isa.OpADD, Rd: uint8(i), RsOperand: ready(1), RtOperand: ready(1)}
			_, err := d.Dispatch(inst, noResolver, 0)
			Expect(err).NotTo(HaveOccurred())
		}
		third := &isa.Instruction{Op: isa.OpADD, Rd: 3, RsOperand: ready(1), RtOperand: ready(1)}
		_, err := d.Dispatch(third, noResolver, 0)
		Expect(err).To(HaveOccurred())
	})

	It("frees every subunit after ClearSubunits", func() {
		inst := &isa.Instruction{Op: isa.OpLW, Rt: 2, RsOperand: ready(0)}
		_, err := d.Dispatch(inst, noResolver, 0)
		Expect(err).NotTo(HaveOccurred())

		d.ClearSubunits()

		again := &isa.Instruction{Op: isa.OpLW, Rt: 2, RsOperand: ready(0)}
		_, err = d.Dispatch(again, noResolver, 0)
		Expect(err).NotTo(HaveOccurred())
	})
})
