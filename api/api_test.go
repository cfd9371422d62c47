package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/lectorhq/lector/api"
	"github.com/lectorhq/lector/pkg/cluster"
	"github.com/lectorhq/lector/pkg/eventstream"
	"github.com/lectorhq/lector/pkg/llm"
	"github.com/lectorhq/lector/pkg/llm/llmtest"
	"github.com/lectorhq/lector/pkg/sampler"
	"github.com/lectorhq/lector/pkg/store"
	"github.com/lectorhq/lector/pkg/vector"
)

// memStore is a minimal in-memory api.Store.
type memStore struct {
	mu       sync.Mutex
	ids      []string
	texts    map[string]string
	addErr   error
	countErr error
}

func newMemStore() *memStore {
	return &memStore{texts: map[string]string{}}
}

func (m *memStore) Add(_ context.Context, texts []string, _ []map[string]any) error {
	if m.addErr != nil {
		return m.addErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range texts {
		id := fmt.Sprintf("doc-%d", len(m.ids))
		m.ids = append(m.ids, id)
		m.texts[id] = t
	}
	return nil
}

func (m *memStore) AllIDs(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.ids...), nil
}

func (m *memStore) Count(context.Context) (int, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ids), nil
}

func (m *memStore) Get(_ context.Context, ids []string) ([]vector.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var docs []vector.Document
	for _, id := range ids {
		if text, ok := m.texts[id]; ok {
			docs = append(docs, vector.Document{ID: id, Text: text})
		}
	}
	return docs, nil
}

func (m *memStore) Query(_ context.Context, queryTexts []string, topK int, _ ...store.QueryOption) ([][]vector.QueryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]vector.QueryResult, len(queryTexts))
	for i := range queryTexts {
		for j, id := range m.ids {
			if j >= topK {
				break
			}
			out[i] = append(out[i], vector.QueryResult{
				Document: vector.Document{ID: id, Text: m.texts[id]},
				Score:    1 - float32(j)*0.01,
			})
		}
	}
	return out, nil
}

// recordingPublisher captures published run events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []*eventstream.RunCompletedEvent
}

func (r *recordingPublisher) PublishRun(_ context.Context, e *eventstream.RunCompletedEvent) error {
	if e == nil {
		return eventstream.ErrNilRunEvent
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

func (r *recordingPublisher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func newServer(st api.Store, client llm.Client, events eventstream.Publisher) *api.Server {
	return api.NewServer(api.Config{
		ListenAddr: ":0",
		TopK:       5,
		Sample:     sampler.P(0.5),
		Cluster:    cluster.Config{ClusterPercentage: 0.5},
	}, st, client, events, nil)
}

func postJSON(s *api.Server, path string, body any) *http.Response {
	payload, err := json.Marshal(body)
	Expect(err).NotTo(HaveOccurred())

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.App().Test(req, -1)
	Expect(err).NotTo(HaveOccurred())
	return resp
}

func decode[T any](resp *http.Response) T {
	var out T
	raw, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	Expect(json.Unmarshal(raw, &out)).To(Succeed(), "body: %s", raw)
	return out
}

var _ = Describe("Server", func() {
	var (
		st     *memStore
		client *llmtest.Client
		events *recordingPublisher
		server *api.Server
	)

	BeforeEach(func() {
		st = newMemStore()
		client = &llmtest.Client{
			InvokeFn: func(context.Context, []llm.Message) (*llm.Response, error) {
				return &llm.Response{Text: "model says"}, nil
			},
		}
		events = &recordingPublisher{}
		server = newServer(st, client, events)
	})

	Describe("GET /ping", func() {
		It("responds pong", func() {
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			resp, err := server.App().Test(req, -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})

	Describe("POST /api/v1/ingest", func() {
		It("ingests JSON documents and reports chunk counts", func() {
			resp := postJSON(server, "/api/v1/ingest", api.IngestRequest{
				Documents: []api.IngestDocument{
					{Name: "notes.md", Text: "first paragraph\n\nsecond paragraph"},
				},
			})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			out := decode[api.IngestResponse](resp)
			Expect(out.Files).To(Equal(1))
			Expect(out.Chunks).To(BeNumerically(">=", 1))

			count, err := st.Count(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(out.Chunks))
		})

		It("ingests multipart uploads", func() {
			var body bytes.Buffer
			writer := multipart.NewWriter(&body)
			part, err := writer.CreateFormFile("files", "paper.txt")
			Expect(err).NotTo(HaveOccurred())
			_, err = part.Write([]byte("some paper text"))
			Expect(err).NotTo(HaveOccurred())
			Expect(writer.Close()).To(Succeed())

			req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest", &body)
			req.Header.Set("Content-Type", writer.FormDataContentType())

			resp, err := server.App().Test(req, -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			out := decode[api.IngestResponse](resp)
			Expect(out.Files).To(Equal(1))
			Expect(out.Chunks).To(Equal(1))
		})

		It("rejects an empty document list", func() {
			resp := postJSON(server, "/api/v1/ingest", api.IngestRequest{})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("hides storage failure details from the caller", func() {
			st.addErr = errors.New("pgvector: connection refused to 10.0.0.7")

			resp := postJSON(server, "/api/v1/ingest", api.IngestRequest{
				Documents: []api.IngestDocument{{Name: "a.txt", Text: "text"}},
			})
			Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))

			out := decode[api.ErrorResponse](resp)
			Expect(out.Error).NotTo(ContainSubstring("10.0.0.7"))
		})
	})

	Describe("POST /api/v1/ask", func() {
		BeforeEach(func() {
			Expect(st.Add(context.Background(), []string{"alpha text", "beta text"}, nil)).To(Succeed())
		})

		It("answers a query and publishes a run event", func() {
			resp := postJSON(server, "/api/v1/ask", api.AskRequest{Query: "what is alpha?"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			out := decode[api.AskResponse](resp)
			Expect(out.Summary).To(Equal("model says"))
			Expect(out.Subqueries).To(Equal([]string{"what is alpha?"}))
			Expect(out.Documents).NotTo(BeEmpty())
			Expect(events.count()).To(Equal(1))
		})

		It("rejects a missing query", func() {
			resp := postJSON(server, "/api/v1/ask", api.AskRequest{})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("rejects a non-positive top_k", func() {
			bad := -1
			resp := postJSON(server, "/api/v1/ask", api.AskRequest{Query: "q", TopK: &bad})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("decomposes when asked to", func() {
			client.InvokeFn = func(_ context.Context, msgs []llm.Message) (*llm.Response, error) {
				if strings.Contains(msgs[len(msgs)-1].GetText(), "sub-queries") {
					return &llm.Response{Text: "alpha basics\nalpha history"}, nil
				}
				return &llm.Response{Text: "answer"}, nil
			}

			yes := true
			resp := postJSON(server, "/api/v1/ask", api.AskRequest{Query: "alpha?", Decompose: &yes})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			out := decode[api.AskResponse](resp)
			Expect(out.Subqueries).To(Equal([]string{"alpha basics", "alpha history"}))
		})
	})

	Describe("POST /api/v1/discover", func() {
		It("summarizes an empty knowledge base without model calls", func() {
			resp := postJSON(server, "/api/v1/discover", api.DiscoverRequest{})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			out := decode[api.DiscoverResponse](resp)
			Expect(out.Clusters).To(BeZero())
			Expect(out.Overview).To(BeEmpty())
			Expect(client.CallCount()).To(BeZero())
		})

		It("builds an overview from a populated knowledge base", func() {
			Expect(st.Add(context.Background(), []string{"a", "b", "c", "d"}, nil)).To(Succeed())

			resp := postJSON(server, "/api/v1/discover", api.DiscoverRequest{})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			out := decode[api.DiscoverResponse](resp)
			Expect(out.Overview).To(Equal("model says"))
			Expect(out.Clusters).To(Equal(2))
			Expect(out.DocumentsIndexed).To(Equal(4))
			Expect(events.count()).To(Equal(1))
		})

		It("rejects naming both n_sample and p_sample", func() {
			n := 2
			p := 0.5
			resp := postJSON(server, "/api/v1/discover", api.DiscoverRequest{NSample: &n, PSample: &p})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("GET /api/v1/stats", func() {
		It("reports the document count", func() {
			Expect(st.Add(context.Background(), []string{"one", "two"}, nil)).To(Succeed())

			req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
			resp, err := server.App().Test(req, -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			out := decode[api.StatsResponse](resp)
			Expect(out.Documents).To(Equal(2))
		})
	})
})
