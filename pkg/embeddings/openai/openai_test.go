package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/lectorhq/lector/pkg/embeddings"
	"github.com/lectorhq/lector/pkg/embeddings/openai"
)

var _ = Describe("Embedder", func() {
	var (
		server   *httptest.Server
		embedder *openai.Embedder
	)

	BeforeEach(func() {
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			Expect(r.URL.Path).To(Equal("/embeddings"))
			Expect(r.Header.Get("Authorization")).To(Equal("Bearer test-key"))

			var body struct {
				Input []string `json:"input"`
			}
			Expect(json.NewDecoder(r.Body).Decode(&body)).To(Succeed())

			data := make([]map[string]any, len(body.Input))
			// Reversed order verifies the index field is honored.
			for i := range body.Input {
				idx := len(body.Input) - 1 - i
				data[i] = map[string]any{
					"index":     idx,
					"embedding": []float32{float32(idx), 1},
				}
			}
			json.NewEncoder(w).Encode(map[string]any{"data": data})
		}))

		var err error
		embedder, err = openai.NewEmbedder(openai.EmbedderConfig{
			BaseURL: server.URL,
			APIKey:  "test-key",
		})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	It("requires an API key", func() {
		GinkgoT().Setenv("OPENAI_API_KEY", "")
		_, err := openai.NewEmbedder(openai.EmbedderConfig{})
		Expect(err).To(MatchError(embeddings.ErrEmbedding))
	})

	It("embeds a single text", func() {
		vec, err := embedder.Embed(context.Background(), "hello")
		Expect(err).NotTo(HaveOccurred())
		Expect(vec).To(Equal([]float32{0, 1}))
	})

	It("orders batch results by index", func() {
		vecs, err := embedder.EmbedBatch(context.Background(), []string{"a", "b", "c"})
		Expect(err).NotTo(HaveOccurred())
		Expect(vecs).To(HaveLen(3))
		for i, vec := range vecs {
			Expect(vec[0]).To(BeNumerically("==", i))
		}
	})

	It("wraps server errors with ErrEmbedding", func() {
		failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
		}))
		defer failing.Close()

		e, err := openai.NewEmbedder(openai.EmbedderConfig{BaseURL: failing.URL, APIKey: "test-key"})
		Expect(err).NotTo(HaveOccurred())

		_, err = e.Embed(context.Background(), "hello")
		Expect(err).To(MatchError(embeddings.ErrEmbedding))
	})
})
