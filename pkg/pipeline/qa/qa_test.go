package qa

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/lectorhq/lector/pkg/llm"
	"github.com/lectorhq/lector/pkg/llm/llmtest"
	"github.com/lectorhq/lector/pkg/pipeline"
	"github.com/lectorhq/lector/pkg/store"
	"github.com/lectorhq/lector/pkg/vector"
)

type fakeInteractor struct {
	answer   string
	ok       bool
	askErr   error
	asked    []string
	notices  []string
	streamed bytes.Buffer
}

func (f *fakeInteractor) AskText(_ context.Context, prompt string, _ time.Duration) (string, bool, error) {
	f.asked = append(f.asked, prompt)
	return f.answer, f.ok, f.askErr
}

func (f *fakeInteractor) AskFiles(ctx context.Context, prompt string, timeout time.Duration) ([]string, bool, error) {
	answer, ok, err := f.AskText(ctx, prompt, timeout)
	_ = answer
	return nil, ok, err
}

func (f *fakeInteractor) Notify(_ context.Context, msg string) error {
	f.notices = append(f.notices, msg)
	return nil
}

func (f *fakeInteractor) Stream(context.Context) io.Writer { return &f.streamed }

type fakeQAStore struct {
	results  [][]vector.QueryResult
	queryErr error
	queries  []string
}

func (f *fakeQAStore) Query(_ context.Context, queryTexts []string, topK int, _ ...store.QueryOption) ([][]vector.QueryResult, error) {
	f.queries = queryTexts
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if f.results != nil {
		return f.results, nil
	}
	return make([][]vector.QueryResult, len(queryTexts)), nil
}

func doc(id, text string, score float32) vector.QueryResult {
	return vector.QueryResult{
		Document: vector.Document{ID: id, Text: text},
		Score:    score,
	}
}

var _ = Describe("Optimizer", func() {
	It("passes the user query through when decomposition is off", func() {
		client := &llmtest.Client{}
		opt := NewOptimizer(client, false)

		update, err := opt.Run(context.Background(), pipeline.State{UserQuery: "what is raft?"})
		Expect(err).NotTo(HaveOccurred())
		Expect(*update.Subqueries).To(Equal([]string{"what is raft?"}))
		Expect(client.CallCount()).To(Equal(0))
	})

	It("splits the model reply into trimmed sub-queries", func() {
		client := &llmtest.Client{
			InvokeFn: func(context.Context, []llm.Message) (*llm.Response, error) {
				return &llm.Response{Text: "raft leader election\n\n  raft log replication  \n"}, nil
			},
		}
		opt := NewOptimizer(client, true)

		update, err := opt.Run(context.Background(), pipeline.State{UserQuery: "what is raft?"})
		Expect(err).NotTo(HaveOccurred())
		Expect(*update.Subqueries).To(Equal([]string{"raft leader election", "raft log replication"}))
		Expect(update.AppendMessages).To(HaveLen(2))
		Expect(update.AppendMessages[0].Role).To(Equal(llm.RoleUser))
		Expect(update.AppendMessages[1].Role).To(Equal(llm.RoleAssistant))
	})

	It("propagates model failures", func() {
		client := &llmtest.Client{
			InvokeFn: func(context.Context, []llm.Message) (*llm.Response, error) {
				return nil, errors.New("model down")
			},
		}
		opt := NewOptimizer(client, true)

		_, err := opt.Run(context.Background(), pipeline.State{UserQuery: "q"})
		Expect(err).To(MatchError(ContainSubstring("decomposing query")))
	})
})

var _ = Describe("ApprovalGate", func() {
	It("proceeds on timeout after notifying once", func() {
		interactor := &fakeInteractor{ok: false}
		client := &llmtest.Client{}
		gate := NewApprovalGate(client, interactor, GateConfig{}, nil)

		update, err := gate.Run(context.Background(), pipeline.State{})
		Expect(err).NotTo(HaveOccurred())
		Expect(*update.Approval).To(Equal(ActionProceed))
		Expect(update.Revisions).To(BeNil())
		Expect(interactor.notices).To(HaveLen(1))
		Expect(interactor.notices[0]).To(ContainSubstring("No feedback"))
		Expect(client.CallCount()).To(Equal(0))
	})

	It("regenerates and bumps revisions when the user disapproves", func() {
		interactor := &fakeInteractor{answer: "these miss the point entirely", ok: true}
		client := &llmtest.Client{
			StructuredFn: func(_ context.Context, _ []llm.Message, out any) error {
				out.(*Decision).Action = ActionRegenerate
				return nil
			},
		}
		gate := NewApprovalGate(client, interactor, GateConfig{}, nil)

		update, err := gate.Run(context.Background(), pipeline.State{Revisions: 0})
		Expect(err).NotTo(HaveOccurred())
		Expect(*update.Approval).To(Equal(ActionRegenerate))
		Expect(*update.Revisions).To(Equal(1))
	})

	It("forces a proceed once the revision limit is reached", func() {
		interactor := &fakeInteractor{answer: "still wrong", ok: true}
		client := &llmtest.Client{
			StructuredFn: func(_ context.Context, _ []llm.Message, out any) error {
				out.(*Decision).Action = ActionRegenerate
				return nil
			},
		}
		gate := NewApprovalGate(client, interactor, GateConfig{MaxRevisions: 2}, nil)

		update, err := gate.Run(context.Background(), pipeline.State{Revisions: 1})
		Expect(err).NotTo(HaveOccurred())
		Expect(*update.Approval).To(Equal(ActionProceed))
		Expect(*update.Revisions).To(Equal(2))
		Expect(interactor.notices).To(HaveLen(1))
		Expect(interactor.notices[0]).To(ContainSubstring("2 revisions"))
	})

	It("proceeds when feedback approves", func() {
		interactor := &fakeInteractor{answer: "looks good, go ahead", ok: true}
		client := &llmtest.Client{
			StructuredFn: func(_ context.Context, _ []llm.Message, out any) error {
				out.(*Decision).Action = ActionProceed
				return nil
			},
		}
		gate := NewApprovalGate(client, interactor, GateConfig{}, nil)

		update, err := gate.Run(context.Background(), pipeline.State{})
		Expect(err).NotTo(HaveOccurred())
		Expect(*update.Approval).To(Equal(ActionProceed))
		Expect(update.AppendMessages).To(HaveLen(2))
	})

	It("propagates structured decode failures", func() {
		interactor := &fakeInteractor{answer: "gibberish", ok: true}
		client := &llmtest.Client{
			StructuredFn: func(context.Context, []llm.Message, any) error {
				return fmt.Errorf("%w: bad json", llm.ErrValidation)
			},
		}
		gate := NewApprovalGate(client, interactor, GateConfig{}, nil)

		_, err := gate.Run(context.Background(), pipeline.State{})
		Expect(err).To(MatchError(llm.ErrValidation))
	})
})

var _ = Describe("Decision", func() {
	It("rejects unknown actions", func() {
		d := &Decision{Action: "maybe"}
		Expect(d.Validate()).To(MatchError(ContainSubstring("maybe")))
		d.Action = ActionProceed
		Expect(d.Validate()).To(Succeed())
		d.Action = ActionRegenerate
		Expect(d.Validate()).To(Succeed())
	})
})

var _ = Describe("Retriever", func() {
	It("always prepends the original user query", func() {
		st := &fakeQAStore{}
		r := NewRetriever(st, &fakeInteractor{}, 5)

		_, err := r.Run(context.Background(), pipeline.State{
			UserQuery:  "original",
			Subqueries: []string{"sub one", "sub two"},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(st.queries).To(Equal([]string{"original", "sub one", "sub two"}))
	})

	It("merges result sets deduplicated by ID at the best score", func() {
		st := &fakeQAStore{results: [][]vector.QueryResult{
			{doc("a", "alpha", 0.9), doc("b", "beta", 0.5)},
			{doc("b", "beta", 0.8), doc("c", "gamma", 0.7)},
		}}
		r := NewRetriever(st, &fakeInteractor{}, 5)

		update, err := r.Run(context.Background(), pipeline.State{UserQuery: "q"})
		Expect(err).NotTo(HaveOccurred())
		Expect(*update.RetrievedDocuments).To(Equal([]string{"alpha", "beta", "gamma"}))
		Expect(*update.RetrievedMetadatas).To(HaveLen(3))
	})

	It("reports progress through the interactor", func() {
		interactor := &fakeInteractor{}
		st := &fakeQAStore{results: [][]vector.QueryResult{{doc("a", "alpha", 0.9)}}}
		r := NewRetriever(st, interactor, 5)

		_, err := r.Run(context.Background(), pipeline.State{UserQuery: "q"})
		Expect(err).NotTo(HaveOccurred())
		Expect(interactor.notices).To(HaveLen(2))
		Expect(interactor.notices[1]).To(ContainSubstring("Retrieved 1"))
	})

	It("propagates store failures", func() {
		st := &fakeQAStore{queryErr: errors.New("store offline")}
		r := NewRetriever(st, &fakeInteractor{}, 5)

		_, err := r.Run(context.Background(), pipeline.State{UserQuery: "q"})
		Expect(err).To(MatchError(ContainSubstring("querying store")))
	})
})

var _ = Describe("Summarizer", func() {
	It("streams the answer and records it as the summary", func() {
		interactor := &fakeInteractor{}
		client := &llmtest.Client{
			InvokeFn: func(context.Context, []llm.Message) (*llm.Response, error) {
				return &llm.Response{Text: "raft elects a leader."}, nil
			},
		}
		s := NewSummarizer(client, interactor)

		update, err := s.Run(context.Background(), pipeline.State{
			UserQuery:          "what is raft?",
			RetrievedDocuments: []string{"doc one", "doc two"},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(*update.Summary).To(Equal("raft elects a leader."))
		Expect(interactor.streamed.String()).To(Equal("raft elects a leader."))
	})
})

var _ = Describe("NewGraph", func() {
	It("runs optimizer, retriever and summarizer without the gate", func() {
		interactor := &fakeInteractor{}
		st := &fakeQAStore{results: [][]vector.QueryResult{{doc("a", "alpha doc", 0.9)}}}
		client := &llmtest.Client{
			InvokeFn: func(context.Context, []llm.Message) (*llm.Response, error) {
				return &llm.Response{Text: "the answer"}, nil
			},
		}

		engine := NewGraph(GraphConfig{
			Client:     client,
			Store:      st,
			Interactor: interactor,
		})

		final, err := engine.Run(context.Background(), pipeline.State{UserQuery: "q"})
		Expect(err).NotTo(HaveOccurred())
		Expect(final.Summary).To(Equal("the answer"))
		Expect(final.RetrievedDocuments).To(Equal([]string{"alpha doc"}))
		Expect(interactor.asked).To(BeEmpty())
	})

	It("loops back to the optimizer on a regenerate decision", func() {
		interactor := &fakeInteractor{answer: "try again", ok: true}
		st := &fakeQAStore{results: [][]vector.QueryResult{{doc("a", "alpha doc", 0.9)}}}

		decisions := []string{ActionRegenerate, ActionProceed}
		client := &llmtest.Client{
			InvokeFn: func(context.Context, []llm.Message) (*llm.Response, error) {
				return &llm.Response{Text: "subquery"}, nil
			},
			StructuredFn: func(_ context.Context, _ []llm.Message, out any) error {
				out.(*Decision).Action = decisions[0]
				decisions = decisions[1:]
				return nil
			},
		}

		engine := NewGraph(GraphConfig{
			Client:     client,
			Store:      st,
			Interactor: interactor,
			Decompose:  true,
			Approve:    true,
		})

		final, err := engine.Run(context.Background(), pipeline.State{UserQuery: "q"})
		Expect(err).NotTo(HaveOccurred())
		Expect(final.Revisions).To(Equal(1))
		Expect(final.Summary).NotTo(BeEmpty())
		Expect(interactor.asked).To(HaveLen(2))
	})
})
