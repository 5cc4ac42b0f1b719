// Package evaluator implements the Evaluator (C11): a side-effect-free
// judge that scores one question/answer/context triple along faithfulness,
// relevance, and groundedness using a fixed RESPONSE_EVALUATION template
// over the LLM provider.
package evaluator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"ragcore/internal/llm"
	"ragcore/internal/rcerrors"
	"ragcore/internal/types"
)

// PromptService is the C4 surface the evaluator needs: resolve and format
// the fixed RESPONSE_EVALUATION template.
type PromptService interface {
	Resolve(ctx context.Context, userID string, collectionID *string, templateType types.TemplateType) (types.PromptTemplate, error)
	Format(ctx context.Context, tmpl types.PromptTemplate, variables map[string]any) (string, error)
}

// Evaluator scores a generated answer against the question and context it
// was produced from. It never mutates state and never retries -- callers
// that want resilience wrap the LLM provider, not the Evaluator.
type Evaluator struct {
	prompts PromptService
	llm     llm.Provider
	userID  string
	params  types.LLMParameters
}

// New builds an Evaluator. userID scopes RESPONSE_EVALUATION template
// resolution the same way every other template lookup in the core is
// scoped; params are the fixed, low-temperature generation parameters used
// for every evaluation call.
func New(promptSvc PromptService, provider llm.Provider, userID string, params types.LLMParameters) *Evaluator {
	return &Evaluator{prompts: promptSvc, llm: provider, userID: userID, params: params}
}

// rawScores mirrors the JSON shape the RESPONSE_EVALUATION template asks
// the model for.
type rawScores struct {
	Faithfulness float64 `json:"faithfulness"`
	Relevance    float64 `json:"relevance"`
	Groundedness float64 `json:"groundedness"`
	Notes        string  `json:"notes"`
}

// Evaluate scores answer against question and the context it was
// generated from. A parse or generation failure returns an error -- the
// pipeline (C10) is responsible for turning that into a soft-fail with
// evaluation=null, not this component.
func (e *Evaluator) Evaluate(ctx context.Context, question, answer, contextText string) (types.Evaluation, error) {
	tmpl, err := e.prompts.Resolve(ctx, e.userID, nil, types.TemplateResponseEval)
	if err != nil {
		return types.Evaluation{}, err
	}

	rendered, err := e.prompts.Format(ctx, tmpl, map[string]any{
		"question": question,
		"answer":   answer,
		"context":  contextText,
	})
	if err != nil {
		return types.Evaluation{}, err
	}

	completion, err := e.llm.Generate(ctx, rendered, e.params)
	if err != nil {
		return types.Evaluation{}, rcerrors.Wrap(rcerrors.KindTransientUpstream, rcerrors.CodeGenerationError, "evaluator: scoring call failed", err)
	}

	scores, err := parseScores(completion.Content)
	if err != nil {
		return types.Evaluation{}, rcerrors.Wrap(rcerrors.KindDegradedResult, rcerrors.CodeResponseParseError, "evaluator: could not parse scoring response", err)
	}

	notes := strings.TrimSpace(scores.Notes)
	eval := types.Evaluation{
		Faithfulness: clampUnit(scores.Faithfulness),
		Relevance:    clampUnit(scores.Relevance),
		Groundedness: clampUnit(scores.Groundedness),
	}
	if notes != "" {
		eval.Notes = &notes
	}
	return eval, nil
}

// parseScores extracts the span from the first '{' to the last '}' in raw
// -- models routinely wrap their JSON in prose or code fences -- and
// decodes it into rawScores.
func parseScores(raw string) (rawScores, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end < start {
		return rawScores{}, fmt.Errorf("no JSON object found in evaluation response")
	}

	var scores rawScores
	if err := json.Unmarshal([]byte(raw[start:end+1]), &scores); err != nil {
		return rawScores{}, fmt.Errorf("invalid evaluation JSON: %w", err)
	}
	return scores, nil
}

func clampUnit(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
