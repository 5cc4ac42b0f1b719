// Package rewriter implements the Query Rewriter component (C8): it turns
// a conversational follow-up question into a standalone form suitable for
// retrieval, skipping the LLM call entirely when the question is already
// self-contained.
package rewriter

import (
	"context"
	"regexp"
	"strings"

	"ragcore/internal/llm"
	"ragcore/internal/logging"
	"ragcore/internal/prompts"
	"ragcore/internal/types"
)

// defaultAnaphoraMarkers are the pronoun/anaphora cues that trigger a
// rewrite when history is non-empty; configurable per S4.8's "configurable
// list" requirement rather than hard-coded into the heuristic itself.
var defaultAnaphoraMarkers = []string{
	"it", "that", "this", "those", "these", "they", "them",
	"he", "she", "him", "her", "the former", "the latter",
	"above", "aforementioned", "previous", "previously",
}

// Rewriter rewrites a follow-up question into a standalone one, falling
// back to the original question whenever the heuristic finds no anaphora
// or the LLM call fails.
type Rewriter struct {
	prompts        *prompts.Service
	llm            llm.Provider
	params         types.LLMParameters
	anaphoraRegexp *regexp.Regexp
	logger         *logging.EnhancedLogger
}

// New builds a Rewriter. markers overrides defaultAnaphoraMarkers when
// non-empty.
func New(promptSvc *prompts.Service, provider llm.Provider, params types.LLMParameters, markers []string) *Rewriter {
	if len(markers) == 0 {
		markers = defaultAnaphoraMarkers
	}
	return &Rewriter{
		prompts:        promptSvc,
		llm:            provider,
		params:         params,
		anaphoraRegexp: compileAnaphoraRegexp(markers),
		logger:         logging.NewEnhancedLogger("rewriter"),
	}
}

func compileAnaphoraRegexp(markers []string) *regexp.Regexp {
	escaped := make([]string, len(markers))
	for i, m := range markers {
		escaped[i] = regexp.QuoteMeta(m)
	}
	return regexp.MustCompile(`(?i)\b(` + strings.Join(escaped, "|") + `)\b`)
}

// Rewrite returns currentQuestion unchanged if history is empty or the
// question is already self-contained; otherwise it calls the LLM provider
// with the QUERY_REWRITE template, falling back to the original question
// on any resolution, formatting, or generation failure.
func (r *Rewriter) Rewrite(ctx context.Context, currentQuestion string, history []types.Message) string {
	if len(history) == 0 || !r.needsRewrite(currentQuestion) {
		return currentQuestion
	}

	rewritten, err := r.callLLM(ctx, currentQuestion, history)
	if err != nil {
		r.logger.WithContext(ctx).Warn("query rewrite failed, falling back to original question", "error", err)
		return currentQuestion
	}
	return rewritten
}

func (r *Rewriter) needsRewrite(question string) bool {
	return r.anaphoraRegexp.MatchString(question)
}

func (r *Rewriter) callLLM(ctx context.Context, currentQuestion string, history []types.Message) (string, error) {
	tmpl, err := r.prompts.Resolve(ctx, "", nil, types.TemplateQueryRewrite)
	if err != nil {
		return "", err
	}

	rendered, err := r.prompts.Format(ctx, tmpl, map[string]any{
		"history":  formatHistory(history),
		"question": currentQuestion,
	})
	if err != nil {
		return "", err
	}

	completion, err := r.llm.Generate(ctx, rendered, r.params)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(completion.Content), nil
}

func formatHistory(history []types.Message) string {
	lines := make([]string, 0, len(history))
	for _, m := range history {
		lines = append(lines, string(m.Role)+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}
