package askcmder_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	askcmder "github.com/lectorhq/lector/cmd/lector/ask"
)

var _ = Describe("NewAskCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := askcmder.NewAskCmd()
		Expect(cmd.Use).To(Equal("ask <question>"))
	})

	It("requires exactly one argument", func() {
		cmd := askcmder.NewAskCmd()
		Expect(cmd.Args(cmd, []string{})).To(HaveOccurred())
		Expect(cmd.Args(cmd, []string{"a question"})).To(Succeed())
		Expect(cmd.Args(cmd, []string{"one", "two"})).To(HaveOccurred())
	})

	It("defaults --top-k from the configuration defaults", func() {
		cmd := askcmder.NewAskCmd()
		f := cmd.Flags().Lookup("top-k")
		Expect(f).NotTo(BeNil())
		Expect(f.Shorthand).To(Equal("k"))
		Expect(f.DefValue).To(Equal("10"))
	})

	It("has decompose and approve flags off by default", func() {
		cmd := askcmder.NewAskCmd()
		for _, name := range []string{"decompose", "approve"} {
			f := cmd.Flags().Lookup(name)
			Expect(f).NotTo(BeNil(), name)
			Expect(f.DefValue).To(Equal("false"), name)
		}
	})

	It("has a model flag with the local default", func() {
		cmd := askcmder.NewAskCmd()
		f := cmd.Flags().Lookup("model")
		Expect(f).NotTo(BeNil())
		Expect(f.DefValue).To(Equal("ollama:llama3.2"))
	})
})
