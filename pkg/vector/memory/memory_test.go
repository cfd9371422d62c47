package memory_test

import (
	"context"
	"fmt"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/lectorhq/lector/pkg/logger"
	"github.com/lectorhq/lector/pkg/vector"
	"github.com/lectorhq/lector/pkg/vector/memory"
)

var _ = Describe("Driver", func() {
	var driver *memory.Driver

	BeforeEach(func() {
		driver = memory.NewDriver(logger.Nop())
	})

	Describe("Add", func() {
		It("should reject documents with empty IDs", func() {
			err := driver.Add(context.Background(), []vector.Document{{ID: ""}})
			Expect(err).To(MatchError(vector.ErrWrite))
		})

		It("should replace a document with the same ID", func() {
			Expect(driver.Add(context.Background(), []vector.Document{
				{ID: "doc-1", Text: "old", Embedding: []float32{1, 0}},
			})).To(Succeed())
			Expect(driver.Add(context.Background(), []vector.Document{
				{ID: "doc-1", Text: "new", Embedding: []float32{0, 1}},
			})).To(Succeed())

			count, err := driver.Count(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(1))

			docs, err := driver.Get(context.Background(), []string{"doc-1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(docs[0].Text).To(Equal("new"))
		})
	})

	Describe("Query", func() {
		BeforeEach(func() {
			Expect(driver.Add(context.Background(), []vector.Document{
				{ID: "x", Text: "x axis", Embedding: []float32{1, 0}},
				{ID: "y", Text: "y axis", Embedding: []float32{0, 1}},
				{ID: "xy", Text: "diagonal", Embedding: []float32{1, 1}},
			})).To(Succeed())
		})

		It("should rank by cosine similarity", func() {
			results, err := driver.Query(context.Background(), []float32{1, 0}, 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(3))
			Expect(results[0].ID).To(Equal("x"))
			Expect(results[0].Score).To(BeNumerically("~", 1.0, 0.001))
			Expect(results[1].ID).To(Equal("xy"))
		})

		It("should respect topK", func() {
			results, err := driver.Query(context.Background(), []float32{1, 0}, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
		})
	})

	Describe("AllIDs", func() {
		It("should return an empty slice for an empty index", func() {
			ids, err := driver.AllIDs(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(ids).To(BeEmpty())
		})

		It("should preserve insertion order", func() {
			Expect(driver.Add(context.Background(), []vector.Document{
				{ID: "c", Embedding: []float32{1}},
				{ID: "a", Embedding: []float32{1}},
				{ID: "b", Embedding: []float32{1}},
			})).To(Succeed())

			ids, err := driver.AllIDs(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(ids).To(Equal([]string{"c", "a", "b"}))
		})
	})

	Describe("Flush", func() {
		It("should leave no residue behind", func() {
			Expect(driver.Add(context.Background(), []vector.Document{
				{ID: "a", Embedding: []float32{1}},
				{ID: "b", Embedding: []float32{1}},
			})).To(Succeed())

			Expect(driver.Flush(context.Background())).To(Succeed())

			count, err := driver.Count(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(0))

			Expect(driver.Add(context.Background(), []vector.Document{
				{ID: "c", Embedding: []float32{1}},
			})).To(Succeed())

			ids, err := driver.AllIDs(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(ids).To(Equal([]string{"c"}))
		})
	})

	Describe("concurrent access", func() {
		It("should tolerate concurrent adds and queries", func() {
			var wg sync.WaitGroup
			for i := 0; i < 16; i++ {
				wg.Add(1)
				go func(i int) {
					defer GinkgoRecover()
					defer wg.Done()
					err := driver.Add(context.Background(), []vector.Document{
						{ID: fmt.Sprintf("doc-%d", i), Embedding: []float32{float32(i), 1}},
					})
					Expect(err).NotTo(HaveOccurred())

					_, err = driver.Query(context.Background(), []float32{1, 1}, 5)
					Expect(err).NotTo(HaveOccurred())
				}(i)
			}
			wg.Wait()

			count, err := driver.Count(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(16))
		})
	})
})
