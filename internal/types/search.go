package types

import "time"

// TokenUsage tallies provider token consumption for one generation call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Add accumulates usage from another call, used when C9 makes several LLM
// calls (decompose, steps, synthesize) for one pipeline execution.
func (u TokenUsage) Add(other TokenUsage) TokenUsage {
	return TokenUsage{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
	}
}

// Citation references one retrieved chunk backing the final answer, in the
// order it was retrieved.
type Citation struct {
	DocumentID string  `json:"document_id"`
	ChunkID    string  `json:"chunk_id"`
	Score      float64 `json:"score"`
}

// Evaluation is the Evaluator's (C11) side-effect-free judgement of an
// answer.
type Evaluation struct {
	Faithfulness  float64 `json:"faithfulness"`
	Relevance     float64 `json:"relevance"`
	Groundedness  float64 `json:"groundedness"`
	Notes         *string `json:"notes,omitempty"`
}

// CoTStepResult is one sub-question's retrieval + generation + scoring
// outcome within a Chain-of-Thought run.
type CoTStepResult struct {
	SubQuestion string       `json:"sub_question"`
	Context     string       `json:"context"`
	Answer      string       `json:"answer"`
	Quality     float64      `json:"quality"`
	Attempts    int          `json:"attempts"`
	Results     []QueryResult `json:"-"`
}

// CoTTrace is the observable record of one Chain-of-Thought run, attached to
// SearchResult when CoT was enabled.
type CoTTrace struct {
	Steps     []CoTStepResult `json:"steps"`
	Attempts  int             `json:"attempts"`
	FailSoft  bool            `json:"fail_soft"`
}

// CoTConfig exposes the Chain-of-Thought Controller's thresholds as
// configuration rather than hard-coded constants (open question 3).
type CoTConfig struct {
	MaxReasoningDepth int     `json:"max_reasoning_depth"`
	QualityThreshold  float64 `json:"quality_threshold"`
	MaxRetries        int     `json:"max_retries"`
	BaseTemperature   float64 `json:"base_temperature"`
}

// DefaultCoTConfig returns the spec's documented defaults.
func DefaultCoTConfig() CoTConfig {
	return CoTConfig{
		MaxReasoningDepth: 3,
		QualityThreshold:  0.6,
		MaxRetries:        3,
		BaseTemperature:   0.2,
	}
}

// SearchInput is the single entry point's request shape (C10).
type SearchInput struct {
	Question          string
	CollectionID      string
	UserID            string
	History           []Message
	Filters           map[string]string
	TopK              int
	CotEnabled        bool
	CotConfig         *CoTConfig
	EvaluationEnabled bool
}

// SearchResult is the single entry point's response shape (C10). Citation
// order equals retrieval order, deduplicated by chunk ID.
type SearchResult struct {
	Answer         string                   `json:"answer"`
	Citations      []Citation               `json:"citations"`
	Evaluation     *Evaluation              `json:"evaluation,omitempty"`
	TokenUsage     TokenUsage               `json:"token_usage"`
	TimingsByStage map[string]time.Duration `json:"timings_by_stage"`
	CotTrace       *CoTTrace                `json:"cot_trace,omitempty"`
	Degraded       []string                 `json:"degraded,omitempty"`
}
