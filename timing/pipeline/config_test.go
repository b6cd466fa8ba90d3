package pipeline_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/archlab/mipsooo/timing/pipeline"
)

var _ = Describe("Config", func() {
	It("round-trips through a JSON file", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "pipeline.json")

		cfg := pipeline.Config{Width: 8, RSCapacity: 32, MaxALUPorts: 4}
		Expect(cfg.SaveConfig(path)).To(Succeed())

		got, err := pipeline.LoadConfig(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(cfg))
	})

	It("keeps defaults for fields absent from the file", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "partial.json")
		Expect(os.WriteFile(path, []byte(`{"width": 2}`), 0644)).To(Succeed())

		got, err := pipeline.LoadConfig(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Width).To(Equal(2))
		Expect(got.RSCapacity).To(Equal(pipeline.DefaultConfig().RSCapacity))
	})

	It("fails to load a missing file", func() {
		_, err := pipeline.LoadConfig("/nonexistent/pipeline.json")
		Expect(err).To(HaveOccurred())
	})

	Describe("Validate", func() {
		It("accepts the defaults", func() {
			Expect(pipeline.DefaultConfig().Validate()).To(Succeed())
		})

		It("rejects a zero width", func() {
			cfg := pipeline.DefaultConfig()
			cfg.Width = 0
			Expect(cfg.Validate()).NotTo(Succeed())
		})

		It("rejects a reservation station smaller than the fetch width", func() {
			cfg := pipeline.DefaultConfig()
			cfg.RSCapacity = cfg.Width - 1
			Expect(cfg.Validate()).NotTo(Succeed())
		})
	})
})
