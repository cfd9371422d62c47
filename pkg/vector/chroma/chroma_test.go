package chroma_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	lectorlogger "github.com/lectorhq/lector/pkg/logger"
	"github.com/lectorhq/lector/pkg/vector"
	"github.com/lectorhq/lector/pkg/vector/chroma"
)

var _ = Describe("Driver", func() {
	var logger *slog.Logger

	BeforeEach(func() {
		logger = lectorlogger.Nop()
	})

	Describe("NewDriver", func() {
		It("should return an error when URL is empty", func() {
			_, err := chroma.NewDriver(chroma.Config{URL: ""}, logger)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("chroma URL is required"))
		})

		It("should succeed after retrying when Chroma becomes available", func() {
			var attempts atomic.Int32

			// The GET request for the collection and the POST to create it
			// are separate requests. Each retry attempt may hit both endpoints.
			// We track total requests and fail the first few to simulate Chroma
			// still starting up.
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				attempt := attempts.Add(1)

				// Fail the first 4 requests (2 retry cycles: GET+POST each),
				// succeed on the 5th (the GET of the 3rd retry cycle).
				if attempt <= 4 {
					http.Error(w, "service unavailable", http.StatusServiceUnavailable)
					return
				}

				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(map[string]string{
					"id":   "test-collection-id",
					"name": "lector",
				})
			}))
			defer server.Close()

			driver, err := chroma.NewDriver(chroma.Config{
				URL:           server.URL,
				MaxRetries:    5,
				RetryDelay:    10 * time.Millisecond,
				MaxRetryDelay: 50 * time.Millisecond,
			}, logger)
			Expect(err).NotTo(HaveOccurred())
			Expect(driver).NotTo(BeNil())
			Expect(attempts.Load()).To(BeNumerically(">=", int32(5)))
		})

		It("should return an error after exhausting all retries", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			}))
			defer server.Close()

			_, err := chroma.NewDriver(chroma.Config{
				URL:           server.URL,
				MaxRetries:    3,
				RetryDelay:    10 * time.Millisecond,
				MaxRetryDelay: 50 * time.Millisecond,
			}, logger)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("after 3 attempts"))
		})
	})

	Describe("Flush", func() {
		It("should drop and recreate the collection", func() {
			var deleted atomic.Bool
			created := make([]string, 0, 2)

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				switch {
				case r.Method == http.MethodDelete:
					deleted.Store(true)
					w.WriteHeader(http.StatusOK)
				case r.Method == http.MethodGet:
					if deleted.Load() {
						// Gone after the flush, force a re-create.
						http.Error(w, "not found", http.StatusNotFound)
						return
					}
					json.NewEncoder(w).Encode(map[string]string{"id": "id-1", "name": "lector"})
				case r.Method == http.MethodPost:
					id := "id-2"
					created = append(created, id)
					json.NewEncoder(w).Encode(map[string]string{"id": id, "name": "lector"})
				}
			}))
			defer server.Close()

			driver, err := chroma.NewDriver(chroma.Config{URL: server.URL}, logger)
			Expect(err).NotTo(HaveOccurred())

			Expect(driver.Flush(context.Background())).To(Succeed())
			Expect(deleted.Load()).To(BeTrue())
			Expect(created).To(HaveLen(1))
		})
	})

	Describe("Interface compliance", func() {
		It("should implement vector.Driver interface", func() {
			// Compile-time check that Driver implements vector.Driver
			var _ vector.Driver = (*chroma.Driver)(nil)
		})
	})
})
