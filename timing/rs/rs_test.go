package rs_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/archlab/mipsooo/isa"
	"github.com/archlab/mipsooo/timing/rs"
)

func TestRS(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "RS Suite")
}

func readyOperand(v int32) isa.Operand {
	return isa.Operand{Valid: true, Value: v}
}

func renamedOperand(tag int) isa.Operand {
	return isa.Operand{Valid: false, Tag: tag}
}

var _ = Describe("Station", func() {
	var station *rs.Station

	BeforeEach(func() {
		station = rs.NewStation(rs.DefaultPortBudget())
	})

	It("issues an entry with fully-ready operands", func() {
		inst := &isa.Instruction{Op: isa.OpADD, RsOperand: readyOperand(1), RtOperand: readyOperand(2)}
		station.AddInstruction(inst)

		issued := station.GetReadyInstructions(4, func(int) bool { return false })

		Expect(issued).To(ConsistOf(inst))
		Expect(station.Len()).To(Equal(0))
	})

	It("holds back an entry with a not-yet-ready renamed operand", func() {
		inst := &isa.Instruction{Op: isa.OpADD, RsOperand: renamedOperand(3), RtOperand: readyOperand(2)}
		station.AddInstruction(inst)

		issued := station.GetReadyInstructions(4, func(int) bool { return false })

		Expect(issued).To(BeEmpty())
		Expect(station.Len()).To(Equal(1))
	})

	It("issues a renamed operand once the ROB reports it ready", func() {
		inst := &isa.Instruction{Op: isa.OpADD, RsOperand: renamedOperand(3), RtOperand: readyOperand(2)}
		station.AddInstruction(inst)

		issued := station.GetReadyInstructions(4, func(tag int) bool { return tag == 3 })

		Expect(issued).To(ConsistOf(inst))
	})

	It("recomputes readiness for every entry, not only the head", func() {
		blocked := &isa.Instruction{Op: isa.OpADD, RsOperand: renamedOperand(1), RtOperand: readyOperand(0)}
		ready := &isa.Instruction{Op: isa.OpADD, RsOperand: readyOperand(1), RtOperand: readyOperand(2)}
		station.AddInstruction(blocked)
		station.AddInstruction(ready)

		issued := station.GetReadyInstructions(4, func(int) bool { return false })

		Expect(issued).To(ConsistOf(ready))
		Expect(station.Len()).To(Equal(1))
	})

	It("caps LSU issue at one per cycle", func() {
		lw1 := &isa.Instruction{Op: isa.OpLW, RsOperand: readyOperand(0), RtOperand: readyOperand(0)}
		lw2 := &isa.Instruction{Op: isa.OpLW, RsOperand: readyOperand(0), RtOperand: readyOperand(0)}
		station.AddInstruction(lw1)
		station.AddInstruction(lw2)

		issued := station.GetReadyInstructions(4, func(int) bool { return false })

		Expect(issued).To(HaveLen(1))
		Expect(station.Len()).To(Equal(1))
	})

	It("caps branch issue at one per cycle", func() {
		b1 := &isa.Instruction{Op: isa.OpBEQ, RsOperand: readyOperand(0), RtOperand: readyOperand(0)}
		b2 := &isa.Instruction{Op: isa.OpBNE, RsOperand: readyOperand(0), RtOperand: readyOperand(0)}
		station.AddInstruction(b1)
		station.AddInstruction(b2)

		issued := station.GetReadyInstructions(4, func(int) bool { return false })

		Expect(issued).To(HaveLen(1))
	})

	It("caps ALU issue at two per cycle", func() {
		for i := 0; i < 3; i++ {
			station.AddInstruction(&isa.Instruction{Op: isa.OpADD, RsOperand: readyOperand(0), RtOperand: readyOperand(0)})
		}

		issued := station.GetReadyInstructions(4, func(int) bool { return false })

		Expect(issued).To(HaveLen(2))
		Expect(station.Len()).To(Equal(1))
	})

	It("never issues more than the requested width", func() {
		for i := 0; i < 4; i++ {
			station.AddInstruction(&isa.Instruction{Op: isa.OpADD, RsOperand: readyOperand(0), RtOperand: readyOperand(0)})
		}

		issued := station.GetReadyInstructions(1, func(int) bool { return false })

		Expect(issued).To(HaveLen(1))
	})

	It("clears entries belonging to a squashed speculation block", func() {
		keep := &isa.Instruction{Op: isa.OpADD, Block: 1, RsOperand: renamedOperand(9), RtOperand: readyOperand(0)}
		drop := &isa.Instruction{Op: isa.OpADD, Block: 2, RsOperand: renamedOperand(9), RtOperand: readyOperand(0)}
		station.AddInstruction(keep)
		station.AddInstruction(drop)

		station.ClearBlock(2)

		Expect(station.Len()).To(Equal(1))
	})

	It("clears entries decoded after a squashing instruction's ROB id", func() {
		keep := &isa.Instruction{Op: isa.OpADD, RobEntry: 2, RsOperand: renamedOperand(0), RtOperand: readyOperand(0)}
		drop := &isa.Instruction{Op: isa.OpADD, RobEntry: 4, RsOperand: renamedOperand(0), RtOperand: readyOperand(0)}
		station.AddInstruction(keep)
		station.AddInstruction(drop)

		station.ClearAfter(3)

		Expect(station.Len()).To(Equal(1))
	})
})
