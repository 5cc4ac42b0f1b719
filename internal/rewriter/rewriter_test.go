package rewriter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"ragcore/internal/llm"
	"ragcore/internal/prompts"
	"ragcore/internal/types"
)

type stubProvider struct {
	content string
	err     error
}

func (p *stubProvider) Generate(context.Context, string, types.LLMParameters) (llm.Completion, error) {
	if p.err != nil {
		return llm.Completion{}, p.err
	}
	return llm.Completion{Content: p.content}, nil
}
func (p *stubProvider) HealthCheck(context.Context) error { return nil }
func (p *stubProvider) Capabilities() llm.Capabilities     { return llm.Capabilities{} }

func newTestRewriter(t *testing.T, provider llm.Provider) *Rewriter {
	t.Helper()
	registry := prompts.NewRegistry()
	registry.Put(types.PromptTemplate{
		ID:             "rewrite-default",
		TemplateType:   types.TemplateQueryRewrite,
		TemplateFormat: "History: {history}\nQuestion: {question}",
		InputVariables: map[string]string{"history": "", "question": ""},
		IsDefault:      true,
	})
	svc := prompts.NewService(registry, nil, 0)
	return New(svc, provider, types.LLMParameters{Temperature: 0.2}, nil)
}

func TestRewritePassesThroughWhenHistoryEmpty(t *testing.T) {
	r := newTestRewriter(t, &stubProvider{content: "rewritten"})
	got := r.Rewrite(context.Background(), "what about it?", nil)
	assert.Equal(t, "what about it?", got)
}

func TestRewritePassesThroughWhenQuestionSelfContained(t *testing.T) {
	r := newTestRewriter(t, &stubProvider{content: "rewritten"})
	history := []types.Message{{Role: types.RoleUser, Content: "tell me about Go channels"}}
	got := r.Rewrite(context.Background(), "How does garbage collection work in Go?", history)
	assert.Equal(t, "How does garbage collection work in Go?", got)
}

func TestRewriteCallsLLMWhenAnaphoraPresent(t *testing.T) {
	r := newTestRewriter(t, &stubProvider{content: "How does garbage collection work in Go?"})
	history := []types.Message{{Role: types.RoleUser, Content: "tell me about Go"}}
	got := r.Rewrite(context.Background(), "how does it handle memory?", history)
	assert.Equal(t, "How does garbage collection work in Go?", got)
}

func TestRewriteFallsBackToOriginalOnLLMFailure(t *testing.T) {
	r := newTestRewriter(t, &stubProvider{err: assert.AnError})
	history := []types.Message{{Role: types.RoleUser, Content: "tell me about Go"}}
	got := r.Rewrite(context.Background(), "how does it handle memory?", history)
	assert.Equal(t, "how does it handle memory?", got)
}

func TestRewriteFallsBackWhenNoTemplateResolved(t *testing.T) {
	emptyRegistry := prompts.NewRegistry()
	svc := prompts.NewService(emptyRegistry, nil, 0)
	r := New(svc, &stubProvider{content: "rewritten"}, types.LLMParameters{}, nil)

	history := []types.Message{{Role: types.RoleUser, Content: "tell me about Go"}}
	got := r.Rewrite(context.Background(), "how does it handle memory?", history)
	assert.Equal(t, "how does it handle memory?", got)
}
