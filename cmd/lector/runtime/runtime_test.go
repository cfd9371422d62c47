package runtime_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/viper"

	"github.com/lectorhq/lector/cmd/lector/runtime"
)

// newViper returns a viper instance configured for fully local, offline
// components.
func newViper() *viper.Viper {
	v := viper.New()
	v.Set("llm.model", "ollama:llama3.2")
	v.Set("embedding.provider", "ollama")
	v.Set("embedding.model", "nomic-embed-text")
	v.Set("embedding.dimensions", uint(8))
	v.Set("vector_store.provider", "memory")
	v.Set("events.enabled", false)
	v.Set("qa.approval_timeout_secs", uint(45))
	return v
}

var _ = Describe("Build", func() {
	It("assembles a runtime from local configuration", func() {
		rt, err := runtime.Build(context.Background(), newViper(), nil)
		Expect(err).NotTo(HaveOccurred())

		Expect(rt.Store).NotTo(BeNil())
		Expect(rt.Client).NotTo(BeNil())
		Expect(rt.Events).NotTo(BeNil())
		Expect(rt.Close()).To(Succeed())
	})

	It("names the client after the configured model", func() {
		rt, err := runtime.Build(context.Background(), newViper(), nil)
		Expect(err).NotTo(HaveOccurred())
		defer rt.Close()

		Expect(rt.Client.Name()).To(ContainSubstring("llama3.2"))
	})

	It("rejects an unknown embedding provider", func() {
		v := newViper()
		v.Set("embedding.provider", "word2vec")

		_, err := runtime.Build(context.Background(), v, nil)
		Expect(err).To(MatchError(ContainSubstring("creating embedder")))
	})

	It("rejects an unknown vector store provider", func() {
		v := newViper()
		v.Set("vector_store.provider", "faiss")

		_, err := runtime.Build(context.Background(), v, nil)
		Expect(err).To(MatchError(ContainSubstring("creating vector driver")))
	})

	It("rejects an unknown model provider", func() {
		v := newViper()
		v.Set("llm.model", "mistral:mistral-small")

		_, err := runtime.Build(context.Background(), v, nil)
		Expect(err).To(MatchError(ContainSubstring("creating model client")))
	})

	It("rejects events.enabled with no brokers", func() {
		v := newViper()
		v.Set("events.enabled", true)
		v.Set("events.brokers", "")

		_, err := runtime.Build(context.Background(), v, nil)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("ApprovalTimeout", func() {
	It("converts the configured seconds to a duration", func() {
		Expect(runtime.ApprovalTimeout(newViper())).To(Equal(45 * time.Second))
	})
})
