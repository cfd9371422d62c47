package lectorcmder_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	lectorcmder "github.com/lectorhq/lector/cmd/lector"
)

var _ = Describe("NewLectorCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := lectorcmder.NewLectorCmd()
		Expect(cmd.Use).To(Equal("lector"))
	})

	It("registers every subcommand", func() {
		cmd := lectorcmder.NewLectorCmd()
		names := make([]string, 0, len(cmd.Commands()))
		for _, sub := range cmd.Commands() {
			names = append(names, sub.Name())
		}
		Expect(names).To(ContainElements(
			"init", "ingest", "ask", "discover", "chat",
			"watch", "config", "status", "serve", "version",
		))
	})

	It("has a persistent debug flag", func() {
		cmd := lectorcmder.NewLectorCmd()
		f := cmd.PersistentFlags().Lookup("debug")
		Expect(f).NotTo(BeNil())
		Expect(f.Shorthand).To(Equal("d"))
	})

	It("has a persistent config-dir flag", func() {
		cmd := lectorcmder.NewLectorCmd()
		Expect(cmd.PersistentFlags().Lookup("config-dir")).NotTo(BeNil())
	})
})
