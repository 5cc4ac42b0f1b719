package evaluator

import (
	"context"
	"fmt"
	"testing"

	"ragcore/internal/llm"
	"ragcore/internal/types"
)

type fakePromptService struct {
	tmpl types.PromptTemplate
	ok   bool
}

func (p *fakePromptService) Resolve(context.Context, string, *string, types.TemplateType) (types.PromptTemplate, error) {
	if !p.ok {
		return types.PromptTemplate{}, fmt.Errorf("no template registered")
	}
	return p.tmpl, nil
}

func (p *fakePromptService) Format(_ context.Context, tmpl types.PromptTemplate, variables map[string]any) (string, error) {
	return fmt.Sprintf("%s|%v", tmpl.ID, variables), nil
}

type stubProvider struct {
	content string
	err     error
}

func (s *stubProvider) Generate(context.Context, string, types.LLMParameters) (llm.Completion, error) {
	if s.err != nil {
		return llm.Completion{}, s.err
	}
	return llm.Completion{Content: s.content}, nil
}
func (s *stubProvider) HealthCheck(context.Context) error { return nil }
func (s *stubProvider) Capabilities() llm.Capabilities    { return llm.Capabilities{} }

func newEvaluator(provider llm.Provider) *Evaluator {
	prompts := &fakePromptService{ok: true, tmpl: types.PromptTemplate{ID: "eval", TemplateFormat: "{question}{answer}{context}"}}
	return New(prompts, provider, "user1", types.LLMParameters{Temperature: 0.0, MaxNewTokens: 256})
}

func TestEvaluateParsesWellFormedJSON(t *testing.T) {
	provider := &stubProvider{content: `{"faithfulness": 0.9, "relevance": 0.8, "groundedness": 0.7, "notes": "well grounded"}`}
	e := newEvaluator(provider)

	eval, err := e.Evaluate(context.Background(), "what is the capital?", "Paris", "Paris is the capital of France.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eval.Faithfulness != 0.9 || eval.Relevance != 0.8 || eval.Groundedness != 0.7 {
		t.Fatalf("got %+v", eval)
	}
	if eval.Notes == nil || *eval.Notes != "well grounded" {
		t.Fatalf("expected notes to be set, got %+v", eval.Notes)
	}
}

func TestEvaluateExtractsJSONFromSurroundingProse(t *testing.T) {
	provider := &stubProvider{content: "Sure, here is the scoring:\n```json\n{\"faithfulness\": 1.0, \"relevance\": 1.0, \"groundedness\": 1.0, \"notes\": \"\"}\n```\nhope that helps"}
	e := newEvaluator(provider)

	eval, err := e.Evaluate(context.Background(), "q", "a", "c")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eval.Faithfulness != 1.0 || eval.Notes != nil {
		t.Fatalf("got %+v", eval)
	}
}

func TestEvaluateClampsOutOfRangeScores(t *testing.T) {
	provider := &stubProvider{content: `{"faithfulness": 1.4, "relevance": -0.3, "groundedness": 0.5}`}
	e := newEvaluator(provider)

	eval, err := e.Evaluate(context.Background(), "q", "a", "c")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eval.Faithfulness != 1.0 || eval.Relevance != 0.0 {
		t.Fatalf("expected clamping, got %+v", eval)
	}
}

func TestEvaluateFailsOnUnparsableResponse(t *testing.T) {
	provider := &stubProvider{content: "I cannot produce a structured score."}
	e := newEvaluator(provider)

	if _, err := e.Evaluate(context.Background(), "q", "a", "c"); err == nil {
		t.Fatal("expected error for unparsable response")
	}
}

func TestEvaluateFailsWhenTemplateMissing(t *testing.T) {
	prompts := &fakePromptService{ok: false}
	e := New(prompts, &stubProvider{content: "{}"}, "user1", types.LLMParameters{})

	if _, err := e.Evaluate(context.Background(), "q", "a", "c"); err == nil {
		t.Fatal("expected error when no template resolves")
	}
}

func TestEvaluateWrapsLLMFailure(t *testing.T) {
	e := newEvaluator(&stubProvider{err: fmt.Errorf("upstream unavailable")})

	if _, err := e.Evaluate(context.Background(), "q", "a", "c"); err == nil {
		t.Fatal("expected error when generation fails")
	}
}
