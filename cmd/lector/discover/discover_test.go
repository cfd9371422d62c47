package discovercmder_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	discovercmder "github.com/lectorhq/lector/cmd/lector/discover"
)

var _ = Describe("NewDiscoverCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := discovercmder.NewDiscoverCmd()
		Expect(cmd.Use).To(Equal("discover"))
	})

	It("rejects positional arguments", func() {
		cmd := discovercmder.NewDiscoverCmd()
		Expect(cmd.Args(cmd, []string{"extra"})).To(HaveOccurred())
	})

	It("has sampling flags with shorthands", func() {
		cmd := discovercmder.NewDiscoverCmd()

		n := cmd.Flags().Lookup("n-sample")
		Expect(n).NotTo(BeNil())
		Expect(n.Shorthand).To(Equal("n"))

		p := cmd.Flags().Lookup("p-sample")
		Expect(p).NotTo(BeNil())
		Expect(p.Shorthand).To(Equal("p"))
	})

	It("defaults --cluster-percentage from the configuration defaults", func() {
		cmd := discovercmder.NewDiscoverCmd()
		f := cmd.Flags().Lookup("cluster-percentage")
		Expect(f).NotTo(BeNil())
		Expect(f.DefValue).To(Equal("0.1"))
	})

	It("rejects --n-sample combined with --p-sample", func() {
		cmd := discovercmder.NewDiscoverCmd()
		cmd.SetArgs([]string{"--n-sample", "5", "--p-sample", "0.2"})
		err := cmd.Execute()
		Expect(err).To(MatchError(ContainSubstring("mutually exclusive")))
	})
})
