package prompts

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"ragcore/internal/llm"
	"ragcore/internal/logging"
	"ragcore/internal/rcerrors"
	"ragcore/internal/types"
)

// Summarizer generates the condensed context SUMMARIZE falls back on; it
// is satisfied by llm.Provider so C4 never imports a concrete driver.
type Summarizer interface {
	Generate(ctx context.Context, prompt string, params types.LLMParameters) (llm.Completion, error)
}

// Service resolves, formats, and assembles prompt templates -- the C4
// component every RAG_QUERY/QUESTION_GENERATION/RESPONSE_EVALUATION call
// goes through before reaching C3.
type Service struct {
	registry    *Registry
	summarizer  Summarizer
	formatCache *lru.Cache[string, string]
	logger      *logging.EnhancedLogger
}

// NewService builds a Service backed by registry, using summarizer for the
// SUMMARIZE context strategy. cacheSize <= 0 disables the format cache.
func NewService(registry *Registry, summarizer Summarizer, cacheSize int) *Service {
	var cache *lru.Cache[string, string]
	if cacheSize > 0 {
		cache, _ = lru.New[string, string](cacheSize)
	}
	return &Service{
		registry:    registry,
		summarizer:  summarizer,
		formatCache: cache,
		logger:      logging.NewEnhancedLogger("prompts"),
	}
}

// Resolve looks up the template to use for (userID, collectionID, type).
func (s *Service) Resolve(ctx context.Context, userID string, collectionID *string, templateType types.TemplateType) (types.PromptTemplate, error) {
	tmpl, err := s.registry.resolve(userID, collectionID, templateType)
	if err != nil {
		s.logger.WithContext(ctx).Debug("template resolution failed", "owner_id", userID, "template_type", string(templateType))
		return tmpl, err
	}
	return tmpl, nil
}

// Format renders template against variables, validating required
// input_variables are present, and caches the result when UseCache is set.
func (s *Service) Format(_ context.Context, tmpl types.PromptTemplate, variables map[string]any) (string, error) {
	if err := validateVariables(tmpl, variables); err != nil {
		return "", err
	}

	var cacheKey string
	if tmpl.UseCache && s.formatCache != nil {
		cacheKey = formatCacheKey(tmpl.ID, variables)
		if cached, ok := s.formatCache.Get(cacheKey); ok {
			return cached, nil
		}
	}

	rendered, err := renderPlaceholders(tmpl.TemplateFormat, variables)
	if err != nil {
		return "", err
	}

	if tmpl.UseCache && s.formatCache != nil {
		s.formatCache.Add(cacheKey, rendered)
	}
	return rendered, nil
}

func validateVariables(tmpl types.PromptTemplate, variables map[string]any) error {
	for name := range tmpl.InputVariables {
		if _, ok := variables[name]; !ok {
			return rcerrors.New(rcerrors.KindValidation, rcerrors.CodeMissingVariable,
				fmt.Sprintf("missing required variable %q for template %q", name, tmpl.ID))
		}
	}
	return nil
}

// renderPlaceholders replaces {name} with its string value from variables.
// No recursive expansion: a substituted value is never re-scanned for
// further placeholders. Literal `{{`/`}}` escape to `{`/`}`.
func renderPlaceholders(format string, variables map[string]any) (string, error) {
	var b strings.Builder
	i := 0
	for i < len(format) {
		switch {
		case strings.HasPrefix(format[i:], "{{"):
			b.WriteByte('{')
			i += 2
		case strings.HasPrefix(format[i:], "}}"):
			b.WriteByte('}')
			i += 2
		case format[i] == '{':
			end := strings.IndexByte(format[i:], '}')
			if end < 0 {
				return "", rcerrors.New(rcerrors.KindValidation, rcerrors.CodeInvalidVariable, "unterminated placeholder in template")
			}
			name := format[i+1 : i+end]
			value, ok := variables[name]
			if !ok {
				return "", rcerrors.New(rcerrors.KindValidation, rcerrors.CodeInvalidVariable,
					fmt.Sprintf("placeholder %q has no matching variable", name))
			}
			fmt.Fprintf(&b, "%v", value)
			i += end + 1
		default:
			b.WriteByte(format[i])
			i++
		}
	}
	return b.String(), nil
}

func formatCacheKey(templateID string, variables map[string]any) string {
	h := sha256.New()
	h.Write([]byte(templateID))
	keys := make([]string, 0, len(variables))
	for k := range variables {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(h, "\x00%s=%v", k, variables[k])
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// ApplyContextStrategy realizes the tagged ContextStrategy variant over a
// set of retrieved results, producing the context block C4 splices into
// the RAG_QUERY template.
func (s *Service) ApplyContextStrategy(ctx context.Context, strategy types.ContextStrategy, results []types.QueryResult, maxTokens *int) (string, error) {
	switch strategy.Kind {
	case types.StrategyConcatenate:
		return applyConcatenate(strategy, results), nil
	case types.StrategyPriority:
		return applyPriority(strategy, results), nil
	case types.StrategyTruncate:
		return applyTruncate(strategy, results), nil
	case types.StrategySummarize:
		return s.applySummarize(ctx, strategy, results)
	default:
		return "", rcerrors.New(rcerrors.KindValidation, rcerrors.CodeInvalidVariable,
			fmt.Sprintf("unknown context strategy %q", strategy.Kind))
	}
}

func applyConcatenate(strategy types.ContextStrategy, results []types.QueryResult) string {
	n := strategy.MaxChunks
	if n <= 0 || n > len(results) {
		n = len(results)
	}
	texts := make([]string, 0, n)
	for _, r := range results[:n] {
		texts = append(texts, r.Chunk.Text)
	}
	sep := strategy.Separator
	if sep == "" {
		sep = "\n\n"
	}
	return strings.Join(texts, sep)
}

func applyPriority(strategy types.ContextStrategy, results []types.QueryResult) string {
	ordered := make([]types.QueryResult, len(results))
	copy(ordered, results)

	if strategy.Ordering == types.OrderingDocumentOrder {
		sort.SliceStable(ordered, func(i, j int) bool {
			if ordered[i].Chunk.DocumentID != ordered[j].Chunk.DocumentID {
				return ordered[i].Chunk.DocumentID < ordered[j].Chunk.DocumentID
			}
			return ordered[i].Chunk.ChunkIndex < ordered[j].Chunk.ChunkIndex
		})
	} else {
		sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Score > ordered[j].Score })
	}

	n := strategy.MaxChunks
	if n <= 0 || n > len(ordered) {
		n = len(ordered)
	}
	texts := make([]string, 0, n)
	for _, r := range ordered[:n] {
		texts = append(texts, r.Chunk.Text)
	}
	return strings.Join(texts, "\n\n")
}

func applyTruncate(strategy types.ContextStrategy, results []types.QueryResult) string {
	texts := make([]string, 0, len(results))
	for _, r := range results {
		texts = append(texts, r.Chunk.Text)
	}
	joined := strings.Join(texts, "\n\n")

	if strategy.MaxLength <= 0 || len(joined) <= strategy.MaxLength {
		return joined
	}

	switch strategy.End {
	case types.TruncateStart:
		return joined[len(joined)-strategy.MaxLength:]
	case types.TruncateMiddle:
		half := strategy.MaxLength / 2
		return joined[:half] + joined[len(joined)-(strategy.MaxLength-half):]
	default: // TruncateTail, and the zero value
		return joined[:strategy.MaxLength]
	}
}

func (s *Service) applySummarize(ctx context.Context, strategy types.ContextStrategy, results []types.QueryResult) (string, error) {
	if s.summarizer == nil {
		return "", rcerrors.New(rcerrors.KindConfiguration, rcerrors.CodeProviderMisconfig, "SUMMARIZE strategy requires a summarizer")
	}

	texts := make([]string, 0, len(results))
	for _, r := range results {
		texts = append(texts, r.Chunk.Text)
	}
	joined := strings.Join(texts, "\n\n")

	var cacheKey string
	if s.formatCache != nil {
		cacheKey = "summarize:" + formatCacheKey("", map[string]any{"text": joined})
		if cached, ok := s.formatCache.Get(cacheKey); ok {
			return cached, nil
		}
	}

	prompt := fmt.Sprintf("Summarize the following context in no more than %d characters:\n\n%s", strategy.MaxLength, joined)
	completion, err := s.summarizer.Generate(ctx, prompt, types.LLMParameters{MaxNewTokens: 512})
	if err != nil {
		return "", rcerrors.Wrap(rcerrors.KindDegradedResult, rcerrors.CodeGenerationError, "context summarization failed", err)
	}

	if s.formatCache != nil {
		s.formatCache.Add(cacheKey, completion.Content)
	}
	return completion.Content, nil
}
