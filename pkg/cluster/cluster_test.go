package cluster_test

import (
	"context"
	"errors"
	"fmt"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/lectorhq/lector/pkg/cluster"
	"github.com/lectorhq/lector/pkg/logger"
	"github.com/lectorhq/lector/pkg/store"
	"github.com/lectorhq/lector/pkg/vector"
)

// fakeStore serves a fixed corpus where each document's neighbors are the
// documents adjacent by index.
type fakeStore struct {
	mu         sync.Mutex
	docs       map[string]vector.Document
	order      []string
	countErr   error
	queryErr   map[string]error
	queryEmpty map[string]bool
	queries    int
}

func newFakeStore(n int) *fakeStore {
	fs := &fakeStore{
		docs:       make(map[string]vector.Document),
		queryErr:   make(map[string]error),
		queryEmpty: make(map[string]bool),
	}
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("doc-%d", i)
		fs.docs[id] = vector.Document{ID: id, Text: fmt.Sprintf("text-%d", i)}
		fs.order = append(fs.order, id)
	}
	return fs
}

func (f *fakeStore) Count(ctx context.Context) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return len(f.docs), nil
}

func (f *fakeStore) Get(ctx context.Context, ids []string) ([]vector.Document, error) {
	var out []vector.Document
	for _, id := range ids {
		if doc, ok := f.docs[id]; ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (f *fakeStore) Query(ctx context.Context, queryTexts []string, topK int, opts ...store.QueryOption) ([][]vector.QueryResult, error) {
	f.mu.Lock()
	f.queries++
	f.mu.Unlock()

	results := make([][]vector.QueryResult, len(queryTexts))
	for qi, text := range queryTexts {
		if err, ok := f.queryErr[text]; ok {
			return nil, err
		}
		if f.queryEmpty[text] {
			results[qi] = nil
			continue
		}

		// Self first, then the following documents in order.
		var anchor int
		fmt.Sscanf(text, "text-%d", &anchor)

		var ranked []vector.QueryResult
		for i := anchor; i < len(f.order) && len(ranked) < topK; i++ {
			doc := f.docs[f.order[i]]
			ranked = append(ranked, vector.QueryResult{Document: doc, Score: 1})
		}
		results[qi] = ranked
	}
	return results, nil
}

var _ = Describe("Builder", func() {
	var fs *fakeStore

	build := func(cfg cluster.Config, sampleIDs []string) ([]cluster.Cluster, error) {
		b := cluster.NewBuilder(fs, cfg, logger.Nop())
		return b.Build(context.Background(), sampleIDs)
	}

	BeforeEach(func() {
		fs = newFakeStore(20)
	})

	Describe("percentage validation", func() {
		It("rejects zero, negative, and above-one percentages", func() {
			for _, pct := range []float64{0, -0.5, 1.5} {
				_, err := build(cluster.Config{ClusterPercentage: pct}, []string{"doc-0"})
				Expect(err).To(MatchError(cluster.ErrInvalidPercentage), "pct=%g", pct)
			}
		})
	})

	Describe("cluster sizing", func() {
		It("sizes clusters as floor(total*pct) within clamps", func() {
			// 20 docs * 0.25 = 5 members per cluster
			clusters, err := build(cluster.Config{ClusterPercentage: 0.25}, []string{"doc-0"})
			Expect(err).NotTo(HaveOccurred())
			Expect(clusters).To(HaveLen(1))
			Expect(clusters[0].Members).To(HaveLen(5))
		})

		It("applies min and max clamps", func() {
			clusters, err := build(cluster.Config{
				ClusterPercentage: 0.25,
				MaxClusterSize:    2,
			}, []string{"doc-0"})
			Expect(err).NotTo(HaveOccurred())
			Expect(clusters[0].Members).To(HaveLen(2))

			clusters, err = build(cluster.Config{
				ClusterPercentage: 0.01, // floor = 0, raised to 1, then min
				MinClusterSize:    3,
			}, []string{"doc-0"})
			Expect(err).NotTo(HaveOccurred())
			Expect(clusters[0].Members).To(HaveLen(3))
		})
	})

	Describe("empty inputs", func() {
		It("returns nil for an empty index", func() {
			fs = newFakeStore(0)
			clusters, err := build(cluster.Config{ClusterPercentage: 0.5}, []string{"doc-0"})
			Expect(err).NotTo(HaveOccurred())
			Expect(clusters).To(BeNil())
		})

		It("returns nil for an empty sample", func() {
			clusters, err := build(cluster.Config{ClusterPercentage: 0.5}, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(clusters).To(BeNil())
		})
	})

	Describe("per-anchor isolation", func() {
		It("skips anchors whose query fails and keeps the rest", func() {
			fs.queryErr["text-1"] = errors.New("backend exploded")

			clusters, err := build(cluster.Config{ClusterPercentage: 0.1},
				[]string{"doc-0", "doc-1", "doc-2"})
			Expect(err).NotTo(HaveOccurred())
			Expect(clusters).To(HaveLen(2))
			Expect(clusters[0].AnchorID).To(Equal("doc-0"))
			Expect(clusters[1].AnchorID).To(Equal("doc-2"))
		})

		It("skips anchors that are missing from the store", func() {
			clusters, err := build(cluster.Config{ClusterPercentage: 0.1},
				[]string{"doc-0", "ghost", "doc-2"})
			Expect(err).NotTo(HaveOccurred())
			Expect(clusters).To(HaveLen(2))
		})

		It("skips anchors whose neighbor query comes back empty", func() {
			fs.queryEmpty["text-1"] = true

			clusters, err := build(cluster.Config{ClusterPercentage: 0.1},
				[]string{"doc-0", "doc-1", "doc-2"})
			Expect(err).NotTo(HaveOccurred())
			Expect(clusters).To(HaveLen(2))
			for _, c := range clusters {
				Expect(c.Members).NotTo(BeEmpty())
			}
		})

		It("aborts when Count fails", func() {
			fs.countErr = errors.New("count failed")
			_, err := build(cluster.Config{ClusterPercentage: 0.5}, []string{"doc-0"})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Coverage", func() {
		member := func(id string) cluster.Member {
			return cluster.Member{ID: id, Text: "text"}
		}

		It("reports orphans as the uncovered share of the index", func() {
			// 10 indexed documents, 2 anchors covering 3 distinct
			// documents between them: 7 orphans, 70%.
			clusters := []cluster.Cluster{
				{AnchorID: "doc-0", Members: []cluster.Member{member("doc-0"), member("doc-1")}},
				{AnchorID: "doc-5", Members: []cluster.Member{member("doc-5"), member("doc-1")}},
			}

			stats := cluster.Coverage(clusters, 10)
			Expect(stats.Clusters).To(Equal(2))
			Expect(stats.Documents).To(Equal(10))
			Expect(stats.Covered).To(Equal(3))
			Expect(stats.Orphans).To(Equal(7))
			Expect(stats.OrphanPercentage).To(BeNumerically("~", 70.0, 1e-9))
		})

		It("counts overlapping members once and never goes negative", func() {
			shared := []cluster.Member{member("doc-0"), member("doc-1")}
			clusters := []cluster.Cluster{
				{AnchorID: "doc-0", Members: shared},
				{AnchorID: "doc-1", Members: shared},
			}

			stats := cluster.Coverage(clusters, 2)
			Expect(stats.Covered).To(Equal(2))
			Expect(stats.Orphans).To(BeZero())
			Expect(stats.OrphanPercentage).To(BeZero())
		})

		It("is zero-valued for an empty index", func() {
			stats := cluster.Coverage(nil, 0)
			Expect(stats.Orphans).To(BeZero())
			Expect(stats.OrphanPercentage).To(BeZero())
		})
	})

	Describe("ordering", func() {
		It("returns clusters in sample order", func() {
			sample := []string{"doc-5", "doc-1", "doc-9", "doc-3"}
			clusters, err := build(cluster.Config{ClusterPercentage: 0.1, Concurrency: 2}, sample)
			Expect(err).NotTo(HaveOccurred())
			Expect(clusters).To(HaveLen(4))
			for i, c := range clusters {
				Expect(c.AnchorID).To(Equal(sample[i]))
			}
		})
	})
})
