// Package pipeline implements the Search Pipeline (C10): the single
// Execute entry point wiring rewrite (C8) -> retrieve (C7) -> assemble
// (C4) -> generate (C9 or C3) -> evaluate (C11), timing every stage and
// translating component failures into the fail/soft-fail split spec S4.10
// demands.
package pipeline

import (
	"context"

	"ragcore/internal/llm"
	"ragcore/internal/logging"
	"ragcore/internal/observability"
	"ragcore/internal/rcerrors"
	"ragcore/internal/types"
)

// Rewriter is the C8 surface the pipeline needs. Rewrite already carries
// its own fallback-to-original-question behavior, so it never returns an
// error -- a rewrite "failure" is invisible at this layer by design.
type Rewriter interface {
	Rewrite(ctx context.Context, currentQuestion string, history []types.Message) string
}

// Retriever is the C7 surface the pipeline needs for its own (non-CoT)
// single retrieval pass.
type Retriever interface {
	Search(ctx context.Context, queryText, collectionID string, topK int, filters map[string]string) ([]types.QueryResult, error)
}

// PromptService is the C4 surface the pipeline needs to assemble the
// RAG_QUERY prompt for a single (non-CoT) generation call.
type PromptService interface {
	Resolve(ctx context.Context, userID string, collectionID *string, templateType types.TemplateType) (types.PromptTemplate, error)
	Format(ctx context.Context, tmpl types.PromptTemplate, variables map[string]any) (string, error)
	ApplyContextStrategy(ctx context.Context, strategy types.ContextStrategy, results []types.QueryResult, maxTokens *int) (string, error)
}

// CoTRunner is the C9 surface the pipeline delegates to when a request has
// CotEnabled set.
type CoTRunner interface {
	Run(ctx context.Context, question, collectionID, userID string, cfg types.CoTConfig, params types.LLMParameters) (string, types.CoTTrace, types.TokenUsage, error)
}

// Evaluator is the C11 surface the pipeline calls when EvaluationEnabled
// is set. A failure here never fails the pipeline -- see Execute.
type Evaluator interface {
	Evaluate(ctx context.Context, question, answer, contextText string) (types.Evaluation, error)
}

// Pipeline is the C10 orchestrator.
type Pipeline struct {
	rewriter        Rewriter
	retriever       Retriever
	prompts         PromptService
	llm             llm.Provider
	cotRunner       CoTRunner
	evaluator       Evaluator
	contextStrategy types.ContextStrategy
	defaultTopK     int
	params          types.LLMParameters
	tracer          *observability.Tracer
	metrics         *observability.Metrics
	logger          *logging.EnhancedLogger
}

// New builds a Pipeline. contextStrategy and defaultTopK back every
// non-CoT retrieval; params are the LLMParameters passed to single-shot
// generation and to the CoT runner. SearchInput carries no parameters of
// its own, and the evaluator uses the parameters it was built with.
func New(rewriter Rewriter, retriever Retriever, promptSvc PromptService, provider llm.Provider, cotRunner CoTRunner, eval Evaluator, contextStrategy types.ContextStrategy, defaultTopK int, params types.LLMParameters) *Pipeline {
	return &Pipeline{
		rewriter:        rewriter,
		retriever:       retriever,
		prompts:         promptSvc,
		llm:             provider,
		cotRunner:       cotRunner,
		evaluator:       eval,
		contextStrategy: contextStrategy,
		defaultTopK:     defaultTopK,
		params:          params,
		tracer:          observability.NewNoopTracer(),
		logger:          logging.NewEnhancedLogger("pipeline"),
	}
}

// WithObservability attaches a live tracer and metrics registry. Without
// this call, Execute still populates SearchResult.TimingsByStage -- it
// just emits no spans or counters.
func (p *Pipeline) WithObservability(tracer *observability.Tracer, metrics *observability.Metrics) *Pipeline {
	if tracer != nil {
		p.tracer = tracer
	}
	p.metrics = metrics
	return p
}

// Execute runs the full state machine for one question.
func (p *Pipeline) Execute(ctx context.Context, input types.SearchInput) (types.SearchResult, error) {
	if input.Question == "" {
		return types.SearchResult{}, rcerrors.New(rcerrors.KindValidation, rcerrors.CodeInvalidInput, "pipeline: question must not be empty")
	}
	if input.CollectionID == "" {
		return types.SearchResult{}, rcerrors.New(rcerrors.KindValidation, rcerrors.CodeInvalidInput, "pipeline: collection_id must not be empty")
	}

	timer := observability.NewStageTimer()
	var degraded []string
	var usage types.TokenUsage

	question := p.rewrite(ctx, timer, input)

	topK := input.TopK
	if topK <= 0 {
		topK = p.defaultTopK
	}

	var (
		results  []types.QueryResult
		cotTrace *types.CoTTrace
		answer   string
	)

	if input.CotEnabled {
		cfg := types.DefaultCoTConfig()
		if input.CotConfig != nil {
			cfg = *input.CotConfig
		}

		var trace types.CoTTrace
		var err error
		err = p.timeStage(ctx, timer, "generate", func(ctx context.Context) error {
			var genErr error
			answer, trace, usage, genErr = p.cotRunner.Run(ctx, question, input.CollectionID, input.UserID, cfg, p.params)
			return genErr
		})
		p.recordProviderCall("llm", err)
		if err != nil {
			p.recordRun(err)
			return types.SearchResult{}, rcerrors.Wrap(rcerrors.KindTransientUpstream, rcerrors.CodeGenerationError, "pipeline: chain-of-thought generation failed", err)
		}
		cotTrace = &trace
		results = flattenStepResults(trace.Steps)
		if trace.FailSoft {
			degraded = append(degraded, "cot_fail_soft")
		}
	} else {
		err := p.timeStage(ctx, timer, "retrieve", func(ctx context.Context) error {
			var retrErr error
			results, retrErr = p.retriever.Search(ctx, question, input.CollectionID, topK, input.Filters)
			return retrErr
		})
		p.recordProviderCall("vectorstore", err)
		if err != nil {
			p.recordRun(err)
			return types.SearchResult{}, err
		}

		var contextText, rendered string
		err = p.timeStage(ctx, timer, "assemble", func(ctx context.Context) error {
			tmpl, tmplErr := p.prompts.Resolve(ctx, input.UserID, &input.CollectionID, types.TemplateRAGQuery)
			if tmplErr != nil {
				return tmplErr
			}
			var strategyErr error
			contextText, strategyErr = p.prompts.ApplyContextStrategy(ctx, p.contextStrategy, results, nil)
			if strategyErr != nil {
				return strategyErr
			}
			var formatErr error
			rendered, formatErr = p.prompts.Format(ctx, tmpl, map[string]any{"question": question, "context": contextText})
			return formatErr
		})
		if err != nil {
			p.recordRun(err)
			return types.SearchResult{}, err
		}

		err = p.timeStage(ctx, timer, "generate", func(ctx context.Context) error {
			completion, genErr := p.llm.Generate(ctx, rendered, p.params)
			if genErr != nil {
				return rcerrors.Wrap(rcerrors.KindTransientUpstream, rcerrors.CodeGenerationError, "pipeline: generation failed", genErr)
			}
			answer = completion.Content
			usage = usage.Add(completion.Usage)
			return nil
		})
		p.recordProviderCall("llm", err)
		if err != nil {
			p.recordRun(err)
			return types.SearchResult{}, err
		}
	}

	citations := buildCitations(results)

	var evaluation *types.Evaluation
	if input.EvaluationEnabled {
		evalContext := evaluationContext(cotTrace, results)
		var eval types.Evaluation
		err := p.timeStage(ctx, timer, "evaluate", func(ctx context.Context) error {
			var evalErr error
			eval, evalErr = p.evaluator.Evaluate(ctx, question, answer, evalContext)
			return evalErr
		})
		if err != nil {
			p.logger.WithContext(ctx).Warn("pipeline: evaluation failed, returning result without evaluation", "error", err.Error())
			degraded = append(degraded, "evaluation_failed")
		} else {
			evaluation = &eval
		}
	}

	result := types.SearchResult{
		Answer:         answer,
		Citations:      citations,
		Evaluation:     evaluation,
		TokenUsage:     usage,
		TimingsByStage: timer.Timings(),
		CotTrace:       cotTrace,
		Degraded:       degraded,
	}
	p.recordRun(nil)
	return result, nil
}

// rewrite runs C8 inside its own timed stage. Per S4.10's failure
// semantics, rewrite failure soft-fails by using the original question --
// Rewriter.Rewrite already guarantees that, so there is nothing further
// for the pipeline to degrade here.
func (p *Pipeline) rewrite(ctx context.Context, timer *observability.StageTimer, input types.SearchInput) string {
	if len(input.History) == 0 || p.rewriter == nil {
		return input.Question
	}
	var question string
	_ = p.timeStage(ctx, timer, "rewrite", func(ctx context.Context) error {
		question = p.rewriter.Rewrite(ctx, input.Question, input.History)
		return nil
	})
	return question
}

func (p *Pipeline) timeStage(ctx context.Context, timer *observability.StageTimer, stage string, fn func(context.Context) error) error {
	return timer.Time(stage, func() error {
		return p.tracer.WithStage(ctx, stage, fn)
	})
}

func (p *Pipeline) recordRun(err error) {
	if p.metrics != nil {
		p.metrics.RecordRun(err)
	}
}

func (p *Pipeline) recordProviderCall(component string, err error) {
	if p.metrics != nil {
		p.metrics.RecordProviderCall(component, err)
	}
}

// flattenStepResults concatenates every CoT step's retrieval results, in
// step order, for citation derivation -- C9 retrieves per sub-question, so
// there is no single "step 2" result set to cite when CoT is enabled.
func flattenStepResults(steps []types.CoTStepResult) []types.QueryResult {
	var out []types.QueryResult
	for _, step := range steps {
		out = append(out, step.Results...)
	}
	return out
}

// buildCitations derives citations in retrieval order, deduplicated by
// chunk ID, per S4.10.
func buildCitations(results []types.QueryResult) []types.Citation {
	seen := make(map[string]bool, len(results))
	citations := make([]types.Citation, 0, len(results))
	for _, r := range results {
		if seen[r.Chunk.ChunkID] {
			continue
		}
		seen[r.Chunk.ChunkID] = true
		citations = append(citations, types.Citation{
			DocumentID: r.Chunk.DocumentID,
			ChunkID:    r.Chunk.ChunkID,
			Score:      r.Score,
		})
	}
	return citations
}

// evaluationContext gives the Evaluator the same context the answer was
// actually generated from: the concatenated per-step context for a CoT
// run, or the retrieved chunk text otherwise.
func evaluationContext(trace *types.CoTTrace, results []types.QueryResult) string {
	if trace != nil {
		contexts := make([]string, 0, len(trace.Steps))
		for _, step := range trace.Steps {
			contexts = append(contexts, step.Context)
		}
		return joinNonEmpty(contexts)
	}
	texts := make([]string, 0, len(results))
	for _, r := range results {
		texts = append(texts, r.Chunk.Text)
	}
	return joinNonEmpty(texts)
}

func joinNonEmpty(parts []string) string {
	out := ""
	for _, part := range parts {
		if part == "" {
			continue
		}
		if out != "" {
			out += "\n\n"
		}
		out += part
	}
	return out
}
