package discovery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/lectorhq/lector/pkg/cluster"
	"github.com/lectorhq/lector/pkg/llm"
	"github.com/lectorhq/lector/pkg/llm/llmtest"
	"github.com/lectorhq/lector/pkg/pipeline"
	"github.com/lectorhq/lector/pkg/sampler"
	"github.com/lectorhq/lector/pkg/store"
	"github.com/lectorhq/lector/pkg/vector"
)

type fakeInteractor struct {
	notices  []string
	streamed bytes.Buffer
}

func (f *fakeInteractor) AskText(context.Context, string, time.Duration) (string, bool, error) {
	return "", false, nil
}

func (f *fakeInteractor) AskFiles(context.Context, string, time.Duration) ([]string, bool, error) {
	return nil, false, nil
}

func (f *fakeInteractor) Notify(_ context.Context, msg string) error {
	f.notices = append(f.notices, msg)
	return nil
}

func (f *fakeInteractor) Stream(context.Context) io.Writer { return &f.streamed }

// fakeDiscoveryStore serves a fixed ordered corpus. Query returns the
// whole corpus in order, truncated to topK, regardless of the query text.
type fakeDiscoveryStore struct {
	ids    []string
	texts  map[string]string
	allErr error
}

func (f *fakeDiscoveryStore) AllIDs(context.Context) ([]string, error) {
	if f.allErr != nil {
		return nil, f.allErr
	}
	return append([]string{}, f.ids...), nil
}

func (f *fakeDiscoveryStore) Count(context.Context) (int, error) {
	return len(f.ids), nil
}

func (f *fakeDiscoveryStore) Get(_ context.Context, ids []string) ([]vector.Document, error) {
	docs := make([]vector.Document, 0, len(ids))
	for _, id := range ids {
		text, found := f.texts[id]
		if !found {
			continue
		}
		docs = append(docs, vector.Document{ID: id, Text: text})
	}
	return docs, nil
}

func (f *fakeDiscoveryStore) Query(_ context.Context, queryTexts []string, topK int, _ ...store.QueryOption) ([][]vector.QueryResult, error) {
	out := make([][]vector.QueryResult, len(queryTexts))
	for i := range queryTexts {
		for j, id := range f.ids {
			if j >= topK {
				break
			}
			out[i] = append(out[i], vector.QueryResult{
				Document: vector.Document{ID: id, Text: f.texts[id]},
				Score:    1 - float32(j)*0.1,
			})
		}
	}
	return out, nil
}

func newFakeStore(n int) *fakeDiscoveryStore {
	s := &fakeDiscoveryStore{texts: map[string]string{}}
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("doc-%d", i)
		s.ids = append(s.ids, id)
		s.texts[id] = fmt.Sprintf("text of %s", id)
	}
	return s
}

var _ = Describe("ClusterRetrieve", func() {
	It("samples anchors and builds a cluster per anchor", func() {
		st := newFakeStore(4)
		interactor := &fakeInteractor{}
		stage := NewClusterRetrieve(st, cluster.Config{ClusterPercentage: 0.5}, sampler.N(2), interactor, nil)

		update, err := stage.Run(context.Background(), pipeline.State{})
		Expect(err).NotTo(HaveOccurred())
		Expect(*update.Clusters).To(HaveLen(2))
		for _, cl := range *update.Clusters {
			Expect(cl.Members).To(HaveLen(2))
		}
		Expect(interactor.notices).To(ContainElement(ContainSubstring("clustering")))
	})

	It("propagates invalid sampling options", func() {
		st := newFakeStore(4)
		stage := NewClusterRetrieve(st, cluster.Config{ClusterPercentage: 0.5}, sampler.N(0), &fakeInteractor{}, nil)

		_, err := stage.Run(context.Background(), pipeline.State{})
		Expect(err).To(MatchError(sampler.ErrInvalidParameter))
	})

	It("propagates listing failures", func() {
		st := newFakeStore(4)
		st.allErr = errors.New("driver gone")
		stage := NewClusterRetrieve(st, cluster.Config{ClusterPercentage: 0.5}, sampler.N(2), &fakeInteractor{}, nil)

		_, err := stage.Run(context.Background(), pipeline.State{})
		Expect(err).To(MatchError(ContainSubstring("listing documents")))
	})
})

var _ = Describe("MapSummarize", func() {
	clusters := []cluster.Cluster{
		{AnchorID: "a", Members: []cluster.Member{{ID: "a", Text: "alpha"}}},
		{AnchorID: "b", Members: []cluster.Member{{ID: "b", Text: "beta"}}},
		{AnchorID: "c", Members: []cluster.Member{{ID: "c", Text: "gamma"}}},
	}

	It("produces one summary per cluster, index aligned", func() {
		client := &llmtest.Client{
			InvokeFn: func(_ context.Context, msgs []llm.Message) (*llm.Response, error) {
				prompt := msgs[len(msgs)-1].GetText()
				switch {
				case strings.Contains(prompt, "alpha"):
					return &llm.Response{Text: "about alpha"}, nil
				case strings.Contains(prompt, "beta"):
					return &llm.Response{Text: "about beta"}, nil
				default:
					return &llm.Response{Text: "about gamma"}, nil
				}
			},
		}
		stage := NewMapSummarize(client, &fakeInteractor{}, 2)

		update, err := stage.Run(context.Background(), pipeline.State{Clusters: clusters})
		Expect(err).NotTo(HaveOccurred())
		Expect(*update.ClusterSummaries).To(Equal([]string{"about alpha", "about beta", "about gamma"}))
	})

	It("aborts the whole phase when any cluster fails", func() {
		client := &llmtest.Client{
			InvokeFn: func(_ context.Context, msgs []llm.Message) (*llm.Response, error) {
				if strings.Contains(msgs[len(msgs)-1].GetText(), "beta") {
					return nil, errors.New("rate limited")
				}
				return &llm.Response{Text: "ok"}, nil
			},
		}
		stage := NewMapSummarize(client, &fakeInteractor{}, 2)

		_, err := stage.Run(context.Background(), pipeline.State{Clusters: clusters})
		Expect(err).To(MatchError(ContainSubstring("summarizing cluster b")))
	})
})

var _ = Describe("ReduceSummarize", func() {
	It("tells the user the knowledge base is empty without calling the model", func() {
		client := &llmtest.Client{}
		interactor := &fakeInteractor{}
		stage := NewReduceSummarize(client, interactor)

		update, err := stage.Run(context.Background(), pipeline.State{})
		Expect(err).NotTo(HaveOccurred())
		Expect(*update.Summary).To(BeEmpty())
		Expect(client.CallCount()).To(Equal(0))
		Expect(interactor.notices).To(ContainElement(ContainSubstring("empty")))
	})

	It("streams the reduced overview", func() {
		client := &llmtest.Client{
			InvokeFn: func(context.Context, []llm.Message) (*llm.Response, error) {
				return &llm.Response{Text: "the corpus covers consensus protocols."}, nil
			},
		}
		interactor := &fakeInteractor{}
		stage := NewReduceSummarize(client, interactor)

		update, err := stage.Run(context.Background(), pipeline.State{
			ClusterSummaries: []string{"raft", "paxos"},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(*update.Summary).To(Equal("the corpus covers consensus protocols."))
		Expect(interactor.streamed.String()).To(Equal("the corpus covers consensus protocols."))
	})
})

var _ = Describe("NewGraph", func() {
	It("runs the full map-reduce over a sampled corpus", func() {
		st := newFakeStore(6)
		interactor := &fakeInteractor{}
		client := &llmtest.Client{
			InvokeFn: func(_ context.Context, msgs []llm.Message) (*llm.Response, error) {
				prompt := msgs[len(msgs)-1].GetText()
				if strings.Contains(prompt, "map-summary") {
					return &llm.Response{Text: "overview"}, nil
				}
				return &llm.Response{Text: "cluster summary"}, nil
			},
		}

		engine := NewGraph(GraphConfig{
			Client:     client,
			Store:      st,
			Interactor: interactor,
			Sample:     sampler.P(0.5),
			Cluster:    cluster.Config{ClusterPercentage: 0.4},
		})

		final, err := engine.Run(context.Background(), pipeline.State{})
		Expect(err).NotTo(HaveOccurred())
		Expect(final.Clusters).To(HaveLen(3))
		Expect(final.ClusterSummaries).To(HaveLen(3))
		Expect(final.Summary).To(Equal("overview"))
	})
})
