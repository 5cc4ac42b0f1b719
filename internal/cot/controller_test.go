package cot

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"ragcore/internal/llm"
	"ragcore/internal/types"
)

type fakeRetriever struct {
	results []types.QueryResult
}

func (r *fakeRetriever) Search(context.Context, string, string, int, map[string]string) ([]types.QueryResult, error) {
	return r.results, nil
}

type fakePromptService struct {
	templates map[types.TemplateType]types.PromptTemplate
}

func newFakePromptService() *fakePromptService {
	return &fakePromptService{templates: map[types.TemplateType]types.PromptTemplate{
		types.TemplateCoTDecomposition: {ID: "decompose", TemplateFormat: "decompose: {question}"},
		types.TemplateRAGQuery:         {ID: "rag", TemplateFormat: "answer {question} using {context}"},
		types.TemplateCoTSynthesis:     {ID: "synth", TemplateFormat: "synthesize: {steps}"},
	}}
}

func (p *fakePromptService) Resolve(_ context.Context, _ string, _ *string, templateType types.TemplateType) (types.PromptTemplate, error) {
	tmpl, ok := p.templates[templateType]
	if !ok {
		return types.PromptTemplate{}, fmt.Errorf("no template for %s", templateType)
	}
	return tmpl, nil
}

func (p *fakePromptService) Format(_ context.Context, tmpl types.PromptTemplate, variables map[string]any) (string, error) {
	out := tmpl.TemplateFormat
	for k, v := range variables {
		out = strings.ReplaceAll(out, "{"+k+"}", fmt.Sprintf("%v", v))
	}
	return out, nil
}

func (p *fakePromptService) ApplyContextStrategy(context.Context, types.ContextStrategy, []types.QueryResult, *int) (string, error) {
	return "context-block", nil
}

type fakeLLM struct {
	responses []string
	calls     int
}

func (f *fakeLLM) Generate(_ context.Context, prompt string, _ types.LLMParameters) (llm.Completion, error) {
	if f.calls >= len(f.responses) {
		return llm.Completion{}, fmt.Errorf("no more scripted responses (prompt=%q)", prompt)
	}
	resp := f.responses[f.calls]
	f.calls++
	return llm.Completion{Content: resp}, nil
}
func (f *fakeLLM) HealthCheck(context.Context) error { return nil }
func (f *fakeLLM) Capabilities() llm.Capabilities     { return llm.Capabilities{} }

func TestRunSkipsDecomposeAndSynthesizeForSimpleQuestion(t *testing.T) {
	retriever := &fakeRetriever{}
	prompts := newFakePromptService()
	fakeModel := &fakeLLM{responses: []string{"<answer>Paris is the capital of France, a beautiful city.</answer>"}}
	c := New(retriever, prompts, fakeModel, types.ContextStrategy{Kind: types.StrategyConcatenate}, 5)

	cfg := types.DefaultCoTConfig()
	answer, trace, _, err := c.Run(context.Background(), "what is the capital of france?", "coll1", "user1", cfg, types.LLMParameters{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "Paris is the capital of France, a beautiful city." {
		t.Fatalf("got %q", answer)
	}
	if len(trace.Steps) != 1 {
		t.Fatalf("expected 1 step, got %d", len(trace.Steps))
	}
	if fakeModel.calls != 1 {
		t.Fatalf("expected exactly 1 LLM call, got %d", fakeModel.calls)
	}
}

func TestRunDecomposesCompoundQuestionIntoMultipleSteps(t *testing.T) {
	retriever := &fakeRetriever{}
	prompts := newFakePromptService()
	fakeModel := &fakeLLM{responses: []string{
		"1. What is the capital of France?\n2. What is its population?",
		"<answer>Paris is the capital of France, a beautiful city.</answer>",
		"<answer>Paris has roughly two million residents today.</answer>",
		"<answer>Paris is the capital with about two million people.</answer>",
	}}
	c := New(retriever, prompts, fakeModel, types.ContextStrategy{Kind: types.StrategyConcatenate}, 5)

	cfg := types.DefaultCoTConfig()
	cfg.MaxReasoningDepth = 3
	answer, trace, _, err := c.Run(context.Background(), "what is the capital of france? and then what is its population?", "coll1", "user1", cfg, types.LLMParameters{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(trace.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(trace.Steps))
	}
	if answer != "Paris is the capital with about two million people." {
		t.Fatalf("got %q", answer)
	}
}

func TestRunDecomposesComparativeQuestionWithoutQuestionMark(t *testing.T) {
	retriever := &fakeRetriever{}
	prompts := newFakePromptService()
	fakeModel := &fakeLLM{responses: []string{
		"1. What was IBM's 2021 revenue?\n2. What was IBM's 2022 revenue?",
		"<answer>IBM's 2021 revenue was 57.4 billion dollars.</answer>",
		"<answer>IBM's 2022 revenue was 60.5 billion dollars.</answer>",
		"<answer>IBM's revenue grew from 57.4 billion in 2021 to 60.5 billion in 2022.</answer>",
	}}
	c := New(retriever, prompts, fakeModel, types.ContextStrategy{Kind: types.StrategyConcatenate}, 5)

	cfg := types.DefaultCoTConfig()
	cfg.MaxReasoningDepth = 3
	_, trace, _, err := c.Run(context.Background(), "Compare IBM 2021 and 2022 revenue", "coll1", "user1", cfg, types.LLMParameters{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(trace.Steps) != 2 {
		t.Fatalf("expected comparative question to decompose into 2 steps, got %d", len(trace.Steps))
	}
}

func TestIsSimpleQuestionClassifiesComparativeFormsAsCompound(t *testing.T) {
	compound := []string{
		"Compare IBM 2021 and 2022 revenue",
		"IBM revenue versus Microsoft revenue",
		"Python vs Go for backend services",
		"difference between REST and GraphQL",
	}
	for _, q := range compound {
		if isSimpleQuestion(q) {
			t.Errorf("expected %q to be classified as compound", q)
		}
	}

	simple := []string{
		"what is the capital of france?",
		"how does photosynthesis work?",
	}
	for _, q := range simple {
		if !isSimpleQuestion(q) {
			t.Errorf("expected %q to be classified as simple", q)
		}
	}
}

func TestRunRetriesLowQualityStepThenAccepts(t *testing.T) {
	retriever := &fakeRetriever{}
	prompts := newFakePromptService()
	fakeModel := &fakeLLM{responses: []string{
		"Sub-question 1",
		"<answer>Paris is the capital of France, a beautiful historic city.</answer>",
	}}
	c := New(retriever, prompts, fakeModel, types.ContextStrategy{Kind: types.StrategyConcatenate}, 5)

	cfg := types.DefaultCoTConfig()
	answer, trace, _, err := c.Run(context.Background(), "what is the capital of france?", "coll1", "user1", cfg, types.LLMParameters{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "Paris is the capital of France, a beautiful historic city." {
		t.Fatalf("got %q", answer)
	}
	if trace.Steps[0].Attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", trace.Steps[0].Attempts)
	}
	if trace.FailSoft {
		t.Fatal("did not expect fail-soft")
	}
}

func TestRunExhaustsRetriesAndFailsSoft(t *testing.T) {
	retriever := &fakeRetriever{}
	prompts := newFakePromptService()
	fakeModel := &fakeLLM{responses: []string{"Sub-question 1", "Sub-question 1", "Sub-question 1", "Sub-question 1"}}
	c := New(retriever, prompts, fakeModel, types.ContextStrategy{Kind: types.StrategyConcatenate}, 5)

	cfg := types.DefaultCoTConfig()
	cfg.MaxRetries = 3
	_, trace, _, err := c.Run(context.Background(), "what is the capital of france?", "coll1", "user1", cfg, types.LLMParameters{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !trace.FailSoft {
		t.Fatal("expected fail-soft")
	}
	if trace.Steps[0].Attempts != 4 {
		t.Fatalf("expected 4 attempts, got %d", trace.Steps[0].Attempts)
	}
}

func TestRunReturnsContextErrorWhenCancelledBeforeSteps(t *testing.T) {
	retriever := &fakeRetriever{}
	prompts := newFakePromptService()
	fakeModel := &fakeLLM{responses: []string{"<answer>unused</answer>"}}
	c := New(retriever, prompts, fakeModel, types.ContextStrategy{Kind: types.StrategyConcatenate}, 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := types.DefaultCoTConfig()
	_, _, _, err := c.Run(ctx, "what is the capital of france?", "coll1", "user1", cfg, types.LLMParameters{})
	if err == nil {
		t.Fatal("expected cancellation error")
	}
}
