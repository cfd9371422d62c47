package chatcmder_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	chatcmder "github.com/lectorhq/lector/cmd/lector/chat"
)

var _ = Describe("NewChatCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := chatcmder.NewChatCmd()
		Expect(cmd.Use).To(Equal("chat"))
	})

	It("rejects positional arguments", func() {
		cmd := chatcmder.NewChatCmd()
		Expect(cmd.Args(cmd, []string{"extra"})).To(HaveOccurred())
	})

	It("carries the shared QA flags", func() {
		cmd := chatcmder.NewChatCmd()
		for _, name := range []string{"model", "top-k", "decompose", "approve"} {
			Expect(cmd.Flags().Lookup(name)).NotTo(BeNil(), name)
		}
	})

	It("shares flag defaults with the ask command", func() {
		cmd := chatcmder.NewChatCmd()
		Expect(cmd.Flags().Lookup("top-k").DefValue).To(Equal("10"))
		Expect(cmd.Flags().Lookup("model").DefValue).To(Equal("ollama:llama3.2"))
	})
})
