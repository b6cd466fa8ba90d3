package isa_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/archlab/mipsooo/isa"
)

var _ = Describe("Encode", func() {
	var decoder *isa.Decoder

	BeforeEach(func() {
		decoder = isa.NewDecoder()
	})

	It("round-trips an R-type instruction through decode", func() {
		word, err := isa.EncodeR(isa.OpADD, 8, 9, 2, 0)
		Expect(err).NotTo(HaveOccurred())

		inst, err := decoder.Decode(word, 0x1000)
		Expect(err).NotTo(HaveOccurred())
		Expect(inst.Op).To(Equal(isa.OpADD))
		Expect(inst.Rs).To(Equal(uint8(8)))
		Expect(inst.Rt).To(Equal(uint8(9)))
		Expect(inst.Rd).To(Equal(uint8(2)))
	})

	It("round-trips a negative addi immediate through decode", func() {
		negFive := int16(-5)
		word, err := isa.EncodeI(isa.OpADDI, 0, 8, uint16(negFive))
		Expect(err).NotTo(HaveOccurred())

		inst, err := decoder.Decode(word, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(inst.Op).To(Equal(isa.OpADDI))
		Expect(inst.SignExtImm()).To(Equal(int32(-5)))
	})

	It("round-trips a J-type instruction through decode", func() {
		word, err := isa.EncodeJ(isa.OpJAL, 0x3FFFFFF)
		Expect(err).NotTo(HaveOccurred())

		inst, err := decoder.Decode(word, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(inst.Op).To(Equal(isa.OpJAL))
		Expect(inst.Addr).To(Equal(uint32(0x3FFFFFF)))
	})

	It("rejects an opcode that doesn't belong to the requested format", func() {
		_, err := isa.EncodeR(isa.OpADDI, 0, 0, 0, 0)
		Expect(err).To(MatchError(isa.ErrUnencodable))
	})

	It("looks up a supported mnemonic and rejects nop, which has no opcode", func() {
		op, ok := isa.LookupMnemonic("bgtz")
		Expect(ok).To(BeTrue())
		Expect(op).To(Equal(isa.OpBGTZ))

		_, ok = isa.LookupMnemonic("nop")
		Expect(ok).To(BeFalse())
	})
})
