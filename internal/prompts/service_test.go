package prompts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragcore/internal/llm"
	"ragcore/internal/types"
)

func strPtr(s string) *string { return &s }

func TestRegistryResolveFallsBackToSystemDefault(t *testing.T) {
	reg := NewRegistry()
	reg.Put(types.PromptTemplate{
		ID: "sys-rag", TemplateType: types.TemplateRAGQuery, IsDefault: true,
		TemplateFormat: "Answer: {question}",
	})

	tmpl, err := reg.resolve("alice", strPtr("col-1"), types.TemplateRAGQuery)
	require.NoError(t, err)
	assert.Equal(t, "sys-rag", tmpl.ID)
}

func TestRegistryResolvePrefersUserOverSystemDefault(t *testing.T) {
	reg := NewRegistry()
	reg.Put(types.PromptTemplate{ID: "sys-rag", TemplateType: types.TemplateRAGQuery, IsDefault: true})
	reg.Put(types.PromptTemplate{ID: "alice-rag", OwnerID: "alice", TemplateType: types.TemplateRAGQuery, IsDefault: true})

	tmpl, err := reg.resolve("alice", nil, types.TemplateRAGQuery)
	require.NoError(t, err)
	assert.Equal(t, "alice-rag", tmpl.ID)
}

func TestRegistryResolveFailsWhenNoDefaultExists(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.resolve("alice", nil, types.TemplateRAGQuery)
	require.Error(t, err)
}

func TestRegistryPutClearsPreviousDefaultInSameScope(t *testing.T) {
	reg := NewRegistry()
	reg.Put(types.PromptTemplate{ID: "v1", OwnerID: "alice", TemplateType: types.TemplateRAGQuery, IsDefault: true})
	reg.Put(types.PromptTemplate{ID: "v2", OwnerID: "alice", TemplateType: types.TemplateRAGQuery, IsDefault: true})

	v1, _ := reg.Get("v1")
	v2, _ := reg.Get("v2")
	assert.False(t, v1.IsDefault)
	assert.True(t, v2.IsDefault)
}

func TestFormatSubstitutesPlaceholdersAndEscapes(t *testing.T) {
	svc := NewService(NewRegistry(), nil, 0)
	tmpl := types.PromptTemplate{
		ID:             "t1",
		TemplateFormat: "Q: {question} {{literal}}",
		InputVariables: map[string]string{"question": "the user's question"},
	}

	out, err := svc.Format(context.Background(), tmpl, map[string]any{"question": "why?"})
	require.NoError(t, err)
	assert.Equal(t, "Q: why? {literal}", out)
}

func TestFormatFailsOnMissingRequiredVariable(t *testing.T) {
	svc := NewService(NewRegistry(), nil, 0)
	tmpl := types.PromptTemplate{
		ID:             "t1",
		TemplateFormat: "Q: {question}",
		InputVariables: map[string]string{"question": "required"},
	}

	_, err := svc.Format(context.Background(), tmpl, map[string]any{})
	require.Error(t, err)
}

func TestApplyContextStrategyConcatenate(t *testing.T) {
	svc := NewService(NewRegistry(), nil, 0)
	results := []types.QueryResult{
		{Chunk: types.Chunk{Text: "a"}, Score: 0.9},
		{Chunk: types.Chunk{Text: "b"}, Score: 0.8},
	}

	out, err := svc.ApplyContextStrategy(context.Background(), types.ContextStrategy{
		Kind: types.StrategyConcatenate, Separator: "|", MaxChunks: 2,
	}, results, nil)
	require.NoError(t, err)
	assert.Equal(t, "a|b", out)
}

func TestApplyContextStrategyPriorityOrdersByScore(t *testing.T) {
	svc := NewService(NewRegistry(), nil, 0)
	results := []types.QueryResult{
		{Chunk: types.Chunk{Text: "low"}, Score: 0.1},
		{Chunk: types.Chunk{Text: "high"}, Score: 0.9},
	}

	out, err := svc.ApplyContextStrategy(context.Background(), types.ContextStrategy{
		Kind: types.StrategyPriority, MaxChunks: 2,
	}, results, nil)
	require.NoError(t, err)
	assert.Equal(t, "high\n\nlow", out)
}

func TestApplyContextStrategyTruncateCutsToLength(t *testing.T) {
	svc := NewService(NewRegistry(), nil, 0)
	results := []types.QueryResult{{Chunk: types.Chunk{Text: "0123456789"}}}

	out, err := svc.ApplyContextStrategy(context.Background(), types.ContextStrategy{
		Kind: types.StrategyTruncate, MaxLength: 5, End: types.TruncateTail,
	}, results, nil)
	require.NoError(t, err)
	assert.Equal(t, "01234", out)
}

type stubSummarizer struct {
	content string
	calls   int
}

func (s *stubSummarizer) Generate(_ context.Context, _ string, _ types.LLMParameters) (llm.Completion, error) {
	s.calls++
	return llm.Completion{Content: s.content}, nil
}

func TestApplyContextStrategySummarizeCachesResult(t *testing.T) {
	stub := &stubSummarizer{content: "summary"}
	svc := NewService(NewRegistry(), stub, 10)
	results := []types.QueryResult{{Chunk: types.Chunk{Text: "long context"}}}
	strategy := types.ContextStrategy{Kind: types.StrategySummarize, MaxLength: 100}

	first, err := svc.ApplyContextStrategy(context.Background(), strategy, results, nil)
	require.NoError(t, err)
	second, err := svc.ApplyContextStrategy(context.Background(), strategy, results, nil)
	require.NoError(t, err)

	assert.Equal(t, "summary", first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, stub.calls)
}
