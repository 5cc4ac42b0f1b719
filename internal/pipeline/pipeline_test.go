package pipeline

import (
	"context"
	"fmt"
	"testing"

	"ragcore/internal/llm"
	"ragcore/internal/types"
)

type fakeRewriter struct {
	rewritten string
	called    bool
}

func (r *fakeRewriter) Rewrite(context.Context, string, []types.Message) string {
	r.called = true
	return r.rewritten
}

type fakeRetriever struct {
	results []types.QueryResult
	err     error
	calls   int
}

func (r *fakeRetriever) Search(context.Context, string, string, int, map[string]string) ([]types.QueryResult, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return r.results, nil
}

type fakePromptService struct {
	contextText string
	err         error
}

func (p *fakePromptService) Resolve(context.Context, string, *string, types.TemplateType) (types.PromptTemplate, error) {
	return types.PromptTemplate{ID: "rag-query", TemplateFormat: "{question}{context}"}, nil
}

func (p *fakePromptService) Format(_ context.Context, tmpl types.PromptTemplate, variables map[string]any) (string, error) {
	return fmt.Sprintf("%s|%v", tmpl.ID, variables), nil
}

func (p *fakePromptService) ApplyContextStrategy(context.Context, types.ContextStrategy, []types.QueryResult, *int) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	return p.contextText, nil
}

type fakeProvider struct {
	completion llm.Completion
	err        error
}

func (f *fakeProvider) Generate(context.Context, string, types.LLMParameters) (llm.Completion, error) {
	if f.err != nil {
		return llm.Completion{}, f.err
	}
	return f.completion, nil
}
func (f *fakeProvider) HealthCheck(context.Context) error { return nil }
func (f *fakeProvider) Capabilities() llm.Capabilities    { return llm.Capabilities{} }

type fakeCoTRunner struct {
	answer string
	trace  types.CoTTrace
	usage  types.TokenUsage
	err    error
}

func (c *fakeCoTRunner) Run(context.Context, string, string, string, types.CoTConfig, types.LLMParameters) (string, types.CoTTrace, types.TokenUsage, error) {
	if c.err != nil {
		return "", types.CoTTrace{}, types.TokenUsage{}, c.err
	}
	return c.answer, c.trace, c.usage, nil
}

type fakeEvaluator struct {
	eval types.Evaluation
	err  error
}

func (e *fakeEvaluator) Evaluate(context.Context, string, string, string) (types.Evaluation, error) {
	if e.err != nil {
		return types.Evaluation{}, e.err
	}
	return e.eval, nil
}

func chunkResult(chunkID, documentID string, score float64) types.QueryResult {
	return types.QueryResult{Chunk: types.Chunk{ChunkID: chunkID, DocumentID: documentID, Text: "text for " + chunkID}, Score: score}
}

func newPipeline(retriever Retriever, prompts PromptService, provider llm.Provider, cotRunner CoTRunner, eval Evaluator) *Pipeline {
	return New(nil, retriever, prompts, provider, cotRunner, eval, types.ContextStrategy{Kind: types.StrategyConcatenate}, 5, types.LLMParameters{Temperature: 0.0, MaxNewTokens: 256})
}

func TestExecuteNonCoTHappyPath(t *testing.T) {
	retriever := &fakeRetriever{results: []types.QueryResult{chunkResult("c1", "d1", 0.9), chunkResult("c2", "d1", 0.8)}}
	prompts := &fakePromptService{contextText: "assembled context"}
	provider := &fakeProvider{completion: llm.Completion{Content: "Paris", Usage: types.TokenUsage{PromptTokens: 10, CompletionTokens: 2}}}
	p := newPipeline(retriever, prompts, provider, nil, nil)

	result, err := p.Execute(context.Background(), types.SearchInput{Question: "what is the capital?", CollectionID: "docs"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Answer != "Paris" {
		t.Fatalf("got answer %q", result.Answer)
	}
	if len(result.Citations) != 2 {
		t.Fatalf("expected 2 citations, got %d", len(result.Citations))
	}
	if result.TokenUsage.PromptTokens != 10 {
		t.Fatalf("got usage %+v", result.TokenUsage)
	}
	if result.CotTrace != nil {
		t.Fatalf("expected no cot trace, got %+v", result.CotTrace)
	}
	if _, ok := result.TimingsByStage["retrieve"]; !ok {
		t.Fatalf("expected retrieve stage to be timed, got %+v", result.TimingsByStage)
	}
	if _, ok := result.TimingsByStage["assemble"]; !ok {
		t.Fatalf("expected assemble stage to be timed, got %+v", result.TimingsByStage)
	}
	if _, ok := result.TimingsByStage["generate"]; !ok {
		t.Fatalf("expected generate stage to be timed separately from assemble, got %+v", result.TimingsByStage)
	}
}

func TestExecuteCoTHappyPathDerivesCitationsFromSteps(t *testing.T) {
	trace := types.CoTTrace{
		Steps: []types.CoTStepResult{
			{SubQuestion: "q1", Answer: "a1", Quality: 0.9, Attempts: 1, Results: []types.QueryResult{chunkResult("c1", "d1", 0.9)}},
			{SubQuestion: "q2", Answer: "a2", Quality: 0.8, Attempts: 1, Results: []types.QueryResult{chunkResult("c2", "d2", 0.7)}},
		},
		Attempts: 2,
	}
	cotRunner := &fakeCoTRunner{answer: "synthesized answer", trace: trace, usage: types.TokenUsage{PromptTokens: 20}}
	p := newPipeline(&fakeRetriever{}, &fakePromptService{}, &fakeProvider{}, cotRunner, nil)

	result, err := p.Execute(context.Background(), types.SearchInput{Question: "compound question? and another?", CollectionID: "docs", CotEnabled: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Answer != "synthesized answer" {
		t.Fatalf("got answer %q", result.Answer)
	}
	if result.CotTrace == nil || len(result.CotTrace.Steps) != 2 {
		t.Fatalf("expected cot trace with 2 steps, got %+v", result.CotTrace)
	}
	if len(result.Citations) != 2 {
		t.Fatalf("expected 2 citations derived from cot steps, got %+v", result.Citations)
	}
	if result.Citations[0].ChunkID != "c1" || result.Citations[1].ChunkID != "c2" {
		t.Fatalf("expected citations in step order, got %+v", result.Citations)
	}
}

func TestExecuteDeduplicatesCitationsByChunkID(t *testing.T) {
	retriever := &fakeRetriever{results: []types.QueryResult{
		chunkResult("c1", "d1", 0.9),
		chunkResult("c1", "d1", 0.5),
		chunkResult("c2", "d1", 0.4),
	}}
	prompts := &fakePromptService{contextText: "ctx"}
	provider := &fakeProvider{completion: llm.Completion{Content: "answer"}}
	p := newPipeline(retriever, prompts, provider, nil, nil)

	result, err := p.Execute(context.Background(), types.SearchInput{Question: "q", CollectionID: "docs"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Citations) != 2 {
		t.Fatalf("expected deduplicated citations, got %+v", result.Citations)
	}
	if result.Citations[0].ChunkID != "c1" || result.Citations[0].Score != 0.9 {
		t.Fatalf("expected first occurrence's score to win, got %+v", result.Citations[0])
	}
}

func TestExecuteFailsHardOnRetrievalError(t *testing.T) {
	retriever := &fakeRetriever{err: fmt.Errorf("vector store unreachable")}
	p := newPipeline(retriever, &fakePromptService{}, &fakeProvider{}, nil, nil)

	_, err := p.Execute(context.Background(), types.SearchInput{Question: "q", CollectionID: "docs"})
	if err == nil {
		t.Fatal("expected retrieval error to fail the pipeline")
	}
}

func TestExecuteFailsHardOnGenerationError(t *testing.T) {
	retriever := &fakeRetriever{results: []types.QueryResult{chunkResult("c1", "d1", 0.9)}}
	provider := &fakeProvider{err: fmt.Errorf("provider timeout")}
	p := newPipeline(retriever, &fakePromptService{contextText: "ctx"}, provider, nil, nil)

	_, err := p.Execute(context.Background(), types.SearchInput{Question: "q", CollectionID: "docs"})
	if err == nil {
		t.Fatal("expected generation error to fail the pipeline")
	}
}

func TestExecuteSoftFailsOnEvaluationError(t *testing.T) {
	retriever := &fakeRetriever{results: []types.QueryResult{chunkResult("c1", "d1", 0.9)}}
	provider := &fakeProvider{completion: llm.Completion{Content: "answer"}}
	eval := &fakeEvaluator{err: fmt.Errorf("evaluator unavailable")}
	p := newPipeline(retriever, &fakePromptService{contextText: "ctx"}, provider, nil, eval)

	result, err := p.Execute(context.Background(), types.SearchInput{Question: "q", CollectionID: "docs", EvaluationEnabled: true})
	if err != nil {
		t.Fatalf("expected evaluation failure to soft-fail, got hard error: %v", err)
	}
	if result.Evaluation != nil {
		t.Fatalf("expected nil evaluation, got %+v", result.Evaluation)
	}
	found := false
	for _, d := range result.Degraded {
		if d == "evaluation_failed" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected degraded flags to include evaluation_failed, got %+v", result.Degraded)
	}
}

func TestExecuteValidatesRequiredFields(t *testing.T) {
	p := newPipeline(&fakeRetriever{}, &fakePromptService{}, &fakeProvider{}, nil, nil)

	if _, err := p.Execute(context.Background(), types.SearchInput{CollectionID: "docs"}); err == nil {
		t.Fatal("expected error for empty question")
	}
	if _, err := p.Execute(context.Background(), types.SearchInput{Question: "q"}); err == nil {
		t.Fatal("expected error for empty collection id")
	}
}

func TestExecuteUsesRewrittenQuestionWhenHistoryPresent(t *testing.T) {
	rewriter := &fakeRewriter{rewritten: "rewritten question"}
	retriever := &fakeRetriever{results: []types.QueryResult{chunkResult("c1", "d1", 0.9)}}
	prompts := &fakePromptService{contextText: "ctx"}
	provider := &fakeProvider{completion: llm.Completion{Content: "answer"}}
	p := New(rewriter, retriever, prompts, provider, nil, nil, types.ContextStrategy{Kind: types.StrategyConcatenate}, 5, types.LLMParameters{})

	_, err := p.Execute(context.Background(), types.SearchInput{
		Question:     "follow up?",
		CollectionID: "docs",
		History:      []types.Message{{Role: types.RoleUser, Content: "first question"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rewriter.called {
		t.Fatal("expected rewriter to be invoked when history is present")
	}
}
