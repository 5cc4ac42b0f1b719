package types

// TemplateType enumerates the purposes a PromptTemplate can serve. The
// Prompt Template Service (C4) resolves exactly one default template per
// (owner, collection?, type) scope.
type TemplateType string

const (
	TemplateRAGQuery          TemplateType = "RAG_QUERY"
	TemplateQuestionGen       TemplateType = "QUESTION_GENERATION"
	TemplateResponseEval      TemplateType = "RESPONSE_EVALUATION"
	TemplateCoTDecomposition  TemplateType = "COT_DECOMPOSITION"
	TemplateCoTSynthesis      TemplateType = "COT_SYNTHESIS"
	TemplateQueryRewrite      TemplateType = "QUERY_REWRITE"
	TemplateCustom            TemplateType = "CUSTOM"
)

// ContextStrategyKind tags which variant of ContextStrategy is active.
type ContextStrategyKind string

const (
	StrategyConcatenate ContextStrategyKind = "CONCATENATE"
	StrategyTruncate    ContextStrategyKind = "TRUNCATE"
	StrategyPriority    ContextStrategyKind = "PRIORITY"
	StrategySummarize   ContextStrategyKind = "SUMMARIZE"
)

// TruncateEnd names which end of the assembled context TRUNCATE cuts from.
type TruncateEnd string

const (
	TruncateStart  TruncateEnd = "start"
	TruncateMiddle TruncateEnd = "middle"
	TruncateTail   TruncateEnd = "end"
)

// PriorityOrdering selects how PRIORITY orders chunks: by retrieval score
// (relevance, the default) or by document ID then chunk index.
type PriorityOrdering string

const (
	OrderingRelevance     PriorityOrdering = "relevance"
	OrderingDocumentOrder PriorityOrdering = "document_order"
)

// ContextStrategy is a tagged union realised as a struct with a Kind
// discriminator and only the fields relevant to that Kind populated --
// idiomatic Go stands in for the source's tagged variant.
type ContextStrategy struct {
	Kind ContextStrategyKind `json:"kind"`

	// CONCATENATE
	Separator string `json:"separator,omitempty"`
	MaxChunks int    `json:"max_chunks,omitempty"`

	// TRUNCATE
	MaxLength int         `json:"max_length,omitempty"`
	End       TruncateEnd `json:"end,omitempty"`

	// PRIORITY
	Ordering PriorityOrdering `json:"ordering,omitempty"`

	// SUMMARIZE reuses MaxLength above.
}

// PromptTemplate is a resolvable, formattable prompt definition. Exactly one
// template per (OwnerID, CollectionID, Type) scope may have IsDefault=true;
// the Prompt Template Service enforces the atomic swap.
type PromptTemplate struct {
	ID               string            `json:"id"`
	OwnerID          string            `json:"owner_id"`
	CollectionID     *string           `json:"collection_id,omitempty"`
	Name             string            `json:"name"`
	TemplateType     TemplateType      `json:"template_type"`
	SystemPrompt     string            `json:"system_prompt"`
	TemplateFormat   string            `json:"template_format"`
	InputVariables   map[string]string `json:"input_variables"`
	ValidationSchema map[string]string `json:"validation_schema,omitempty"`
	ContextStrategy  ContextStrategy   `json:"context_strategy"`
	IsDefault        bool              `json:"is_default"`
	UseCache         bool              `json:"use_cache"`
}

// LLMParameters configures a generation call. Resolution order is per-user
// then system-default (C5); validation rejects out-of-range values (it does
// not clamp them) before a provider call is attempted.
type LLMParameters struct {
	ID                string   `json:"id"`
	OwnerID           string   `json:"owner_id"`
	Name              string   `json:"name"`
	Temperature       float64  `json:"temperature"`
	MaxNewTokens      int      `json:"max_new_tokens"`
	TopP              float64  `json:"top_p"`
	TopK              int      `json:"top_k"`
	RepetitionPenalty float64  `json:"repetition_penalty"`
	StopSequences     []string `json:"stop_sequences,omitempty"`
	IsDefault         bool     `json:"is_default"`
}

// ProviderConfig describes one LLM provider instance. Credentials are never
// logged; UpdatedAt drives the Provider Factory's cache-invalidation check.
type ProviderConfig struct {
	ProviderName     string            `json:"provider_name"`
	ModelID          string            `json:"model_id"`
	Credentials      string            `json:"-"`
	APIURL           string            `json:"api_url"`
	ConnectTimeoutMS int               `json:"connect_timeout_ms"`
	ReadTimeoutMS    int               `json:"read_timeout_ms"`
	WriteTimeoutMS   int               `json:"write_timeout_ms"`
	RateLimit        float64           `json:"rate_limit"`
	ConcurrencyLimit int               `json:"concurrency_limit"`
	Active           bool              `json:"active"`
	LastVerifiedAt   *string           `json:"last_verified_at,omitempty"`
	UpdatedAt        string            `json:"updated_at"`
	Extra            map[string]string `json:"extra,omitempty"`
}
