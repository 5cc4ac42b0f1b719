// Package cot implements the Chain-of-Thought Controller (C9): it wraps
// generation in a DECOMPOSE -> (STEP -> SCORE -> (ACCEPT|RETRY))* ->
// SYNTHESIZE state machine so multi-hop questions get answered artifact-free,
// retrying low-quality steps with escalating temperature before accepting
// the best attempt seen (FAIL_SOFT).
package cot

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"ragcore/internal/llm"
	"ragcore/internal/logging"
	"ragcore/internal/rcerrors"
	"ragcore/internal/types"
)

// Retriever is the C7 surface the controller needs: embed + search.
type Retriever interface {
	Search(ctx context.Context, queryText, collectionID string, topK int, filters map[string]string) ([]types.QueryResult, error)
}

// PromptService is the C4 surface the controller needs: resolve, format,
// and assemble retrieved context into a prompt block.
type PromptService interface {
	Resolve(ctx context.Context, userID string, collectionID *string, templateType types.TemplateType) (types.PromptTemplate, error)
	Format(ctx context.Context, tmpl types.PromptTemplate, variables map[string]any) (string, error)
	ApplyContextStrategy(ctx context.Context, strategy types.ContextStrategy, results []types.QueryResult, maxTokens *int) (string, error)
}

// Controller runs the Chain-of-Thought state machine for one question.
type Controller struct {
	retriever       Retriever
	prompts         PromptService
	llm             llm.Provider
	weights         QualityWeights
	contextStrategy types.ContextStrategy
	topK            int
	logger          *logging.EnhancedLogger
}

// New builds a Controller. contextStrategy is the strategy used to
// assemble each step's retrieved context, and topK bounds each step's
// retrieval.
func New(retriever Retriever, promptSvc PromptService, provider llm.Provider, contextStrategy types.ContextStrategy, topK int) *Controller {
	return &Controller{
		retriever:       retriever,
		prompts:         promptSvc,
		llm:             provider,
		weights:         DefaultQualityWeights(),
		contextStrategy: contextStrategy,
		topK:            topK,
		logger:          logging.NewEnhancedLogger("cot"),
	}
}

// WithQualityWeights overrides the default scoring penalties.
func (c *Controller) WithQualityWeights(weights QualityWeights) *Controller {
	c.weights = weights
	return c
}

// compoundMarkers are compound-question cues: their absence is this
// controller's "classified simple" heuristic. Besides a second '?' and
// sequential/additive cues ("and then", "as well as"), comparative and
// conjunctive forms ("compare X and Y", "X versus Y") are multi-hop even
// without a second '?' or any question mark at all.
var compoundMarkers = regexp.MustCompile(`(?i)\?.*\?|\band then\b|\bafter that\b|\bas well as\b|\?.*\band\b|\bcompare\b.*\band\b|\bcompared to\b|\bcomparison\b.*\band\b|\bversus\b|\bvs\.?\b|\bdifference between\b.*\band\b`)

func isSimpleQuestion(question string) bool {
	return !compoundMarkers.MatchString(question)
}

// Run executes the full state machine for question against collectionID,
// using userID to scope template resolution. It returns the synthesized
// answer, an observable trace, and accumulated token usage.
func (c *Controller) Run(ctx context.Context, question, collectionID, userID string, cfg types.CoTConfig, params types.LLMParameters) (string, types.CoTTrace, types.TokenUsage, error) {
	var usage types.TokenUsage

	subQuestions, decomposeUsage, err := c.decompose(ctx, question, userID, cfg)
	usage = usage.Add(decomposeUsage)
	if err != nil {
		return "", types.CoTTrace{}, usage, err
	}

	if ctx.Err() != nil {
		return "", types.CoTTrace{}, usage, ctx.Err()
	}

	steps := make([]types.CoTStepResult, 0, len(subQuestions))
	failSoft := false
	for _, sub := range subQuestions {
		if ctx.Err() != nil {
			return "", types.CoTTrace{}, usage, ctx.Err()
		}
		step, stepUsage, stepFailSoft, err := c.runStep(ctx, sub, collectionID, userID, cfg, params)
		usage = usage.Add(stepUsage)
		if err != nil {
			return "", types.CoTTrace{}, usage, err
		}
		if stepFailSoft {
			failSoft = true
		}
		steps = append(steps, step)
	}

	if ctx.Err() != nil {
		return "", types.CoTTrace{}, usage, ctx.Err()
	}

	answer, synthUsage, err := c.synthesize(ctx, question, userID, steps, params)
	usage = usage.Add(synthUsage)
	if err != nil {
		return "", types.CoTTrace{}, usage, err
	}

	trace := types.CoTTrace{Steps: steps, Attempts: totalAttempts(steps), FailSoft: failSoft}
	return answer, trace, usage, nil
}

func totalAttempts(steps []types.CoTStepResult) int {
	total := 0
	for _, s := range steps {
		total += s.Attempts
	}
	return total
}

func (c *Controller) decompose(ctx context.Context, question, userID string, cfg types.CoTConfig) ([]string, types.TokenUsage, error) {
	if cfg.MaxReasoningDepth <= 1 || isSimpleQuestion(question) {
		return []string{question}, types.TokenUsage{}, nil
	}

	tmpl, err := c.prompts.Resolve(ctx, userID, nil, types.TemplateCoTDecomposition)
	if err != nil {
		return nil, types.TokenUsage{}, err
	}
	rendered, err := c.prompts.Format(ctx, tmpl, map[string]any{"question": question, "max_sub_questions": cfg.MaxReasoningDepth})
	if err != nil {
		return nil, types.TokenUsage{}, err
	}

	completion, err := c.llm.Generate(ctx, rendered, decomposeParams())
	if err != nil {
		return nil, types.TokenUsage{}, rcerrors.Wrap(rcerrors.KindTransientUpstream, rcerrors.CodeGenerationError, "cot: decomposition call failed", err)
	}

	subQuestions := parseSubQuestions(completion.Content)
	if len(subQuestions) == 0 {
		subQuestions = []string{question}
	}
	if cfg.MaxReasoningDepth > 0 && len(subQuestions) > cfg.MaxReasoningDepth {
		subQuestions = subQuestions[:cfg.MaxReasoningDepth]
	}
	return subQuestions, completion.Usage, nil
}

// decomposeParams keeps decomposition deterministic and short -- it only
// produces a list of questions, not prose.
func decomposeParams() types.LLMParameters {
	return types.LLMParameters{Temperature: 0.0, MaxNewTokens: 512, TopP: 1, TopK: 1, RepetitionPenalty: 1}
}

var subQuestionLineRegexp = regexp.MustCompile(`^\s*(?:\d+[.)]|[-*])\s*`)

func parseSubQuestions(raw string) []string {
	lines := strings.Split(raw, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		cleaned := subQuestionLineRegexp.ReplaceAllString(line, "")
		cleaned = strings.TrimSpace(cleaned)
		if cleaned != "" {
			out = append(out, cleaned)
		}
	}
	return out
}

// runStep retrieves context for subQuestion, generates an answer, and
// retries with escalating temperature until the quality threshold is met
// or attempts are exhausted, at which point the best-scoring attempt wins
// (FAIL_SOFT).
func (c *Controller) runStep(ctx context.Context, subQuestion, collectionID, userID string, cfg types.CoTConfig, params types.LLMParameters) (types.CoTStepResult, types.TokenUsage, bool, error) {
	var usage types.TokenUsage

	results, err := c.retriever.Search(ctx, subQuestion, collectionID, c.topK, nil)
	if err != nil {
		return types.CoTStepResult{}, usage, false, rcerrors.Wrap(rcerrors.KindTransientUpstream, rcerrors.CodeRetrievalError, "cot: step retrieval failed", err)
	}

	contextText, err := c.prompts.ApplyContextStrategy(ctx, c.contextStrategy, results, nil)
	if err != nil {
		return types.CoTStepResult{}, usage, false, err
	}

	tmpl, err := c.prompts.Resolve(ctx, userID, &collectionID, types.TemplateRAGQuery)
	if err != nil {
		return types.CoTStepResult{}, usage, false, err
	}

	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	var best types.CoTStepResult
	bestScore := -1.0
	attempts := 0

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if ctx.Err() != nil {
			return types.CoTStepResult{}, usage, false, ctx.Err()
		}
		attempts++

		variables := map[string]any{"question": subQuestion, "context": contextText}
		if attempt > 0 {
			variables["clarifying_instruction"] = "Answer more precisely and avoid repeating the question."
		}
		rendered, err := c.prompts.Format(ctx, tmpl, variables)
		if err != nil {
			return types.CoTStepResult{}, usage, false, err
		}

		stepParams := params
		stepParams.Temperature = RetryTemperature(cfg.BaseTemperature, attempt)

		completion, err := c.llm.Generate(ctx, rendered, stepParams)
		if err != nil {
			return types.CoTStepResult{}, usage, false, rcerrors.Wrap(rcerrors.KindTransientUpstream, rcerrors.CodeGenerationError, "cot: step generation failed", err)
		}
		usage = usage.Add(completion.Usage)

		answer, _ := ParseResponse(completion.Content)
		score := Score(answer, subQuestion, c.weights)

		if score > bestScore {
			bestScore = score
			best = types.CoTStepResult{SubQuestion: subQuestion, Context: contextText, Answer: answer, Quality: score, Attempts: attempts, Results: results}
		}
		if score >= cfg.QualityThreshold {
			return best, usage, false, nil
		}
	}

	best.Attempts = attempts
	c.logger.WithContext(ctx).Warn("cot step exhausted retries, accepting best attempt", "sub_question", subQuestion, "quality", best.Quality)
	return best, usage, true, nil
}

func (c *Controller) synthesize(ctx context.Context, question, userID string, steps []types.CoTStepResult, params types.LLMParameters) (string, types.TokenUsage, error) {
	if len(steps) == 1 {
		return steps[0].Answer, types.TokenUsage{}, nil
	}

	tmpl, err := c.prompts.Resolve(ctx, userID, nil, types.TemplateCoTSynthesis)
	if err != nil {
		return "", types.TokenUsage{}, err
	}
	rendered, err := c.prompts.Format(ctx, tmpl, map[string]any{"question": question, "steps": formatSteps(steps)})
	if err != nil {
		return "", types.TokenUsage{}, err
	}

	completion, err := c.llm.Generate(ctx, rendered, params)
	if err != nil {
		return "", types.TokenUsage{}, rcerrors.Wrap(rcerrors.KindTransientUpstream, rcerrors.CodeGenerationError, "cot: synthesis call failed", err)
	}

	answer, _ := ParseResponse(completion.Content)
	return answer, completion.Usage, nil
}

func formatSteps(steps []types.CoTStepResult) string {
	parts := make([]string, 0, len(steps))
	for i, s := range steps {
		parts = append(parts, fmt.Sprintf("Q%d: %s\nA%d: %s", i+1, s.SubQuestion, i+1, s.Answer))
	}
	return strings.Join(parts, "\n\n")
}
