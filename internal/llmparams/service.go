package llmparams

import (
	"context"
	"fmt"

	"ragcore/internal/logging"
	"ragcore/internal/rcerrors"
	"ragcore/internal/types"
)

const (
	minTemperature = 0.0
	maxTemperature = 2.0
	minTopP        = 0.0 // exclusive
	maxTopP        = 1.0
	minTopK        = 1
	maxTopK        = 1000
	minRepetition  = 1.0
	maxRepetition  = 2.0
)

// Service resolves and validates LLMParameters -- the C5 component every
// generation call passes its parameters through before reaching C3.
type Service struct {
	registry *Registry
	logger   *logging.EnhancedLogger
}

// NewService builds a Service backed by registry.
func NewService(registry *Registry) *Service {
	return &Service{registry: registry, logger: logging.NewEnhancedLogger("llmparams")}
}

// Resolve looks up the parameter set to use for ownerID, falling back to
// the system default when the owner has none of its own.
func (s *Service) Resolve(ctx context.Context, ownerID string) (types.LLMParameters, error) {
	params, err := s.registry.resolve(ownerID)
	if err != nil {
		s.logger.WithContext(ctx).Debug("parameter resolution failed", "owner_id", ownerID)
		return params, err
	}
	return params, nil
}

// Validate rejects params whose numeric values fall outside their allowed
// ranges, and any combination a provider can't serve; it does not clamp
// values into range. modelCap is the provider's MaxTokens capability;
// a zero or negative modelCap skips the max_new_tokens-vs-cap check, since
// not every caller resolving parameters also has a provider in hand.
func Validate(params types.LLMParameters, modelCap int) error {
	if params.Temperature < minTemperature || params.Temperature > maxTemperature {
		return invalidParam("temperature", params.Temperature, minTemperature, maxTemperature, false)
	}
	if params.MaxNewTokens < 1 {
		return rcerrors.New(rcerrors.KindValidation, rcerrors.CodeInvalidParameters,
			"max_new_tokens must be at least 1")
	}
	if modelCap > 0 && params.MaxNewTokens > modelCap {
		return rcerrors.New(rcerrors.KindValidation, rcerrors.CodeInvalidParameters,
			fmt.Sprintf("max_new_tokens %d exceeds provider cap %d", params.MaxNewTokens, modelCap))
	}
	if params.TopP <= minTopP || params.TopP > maxTopP {
		return invalidParam("top_p", params.TopP, minTopP, maxTopP, true)
	}
	if params.TopK < minTopK || params.TopK > maxTopK {
		return rcerrors.New(rcerrors.KindValidation, rcerrors.CodeInvalidParameters,
			fmt.Sprintf("top_k %d out of range [%d, %d]", params.TopK, minTopK, maxTopK))
	}
	if params.RepetitionPenalty < minRepetition || params.RepetitionPenalty > maxRepetition {
		return invalidParam("repetition_penalty", params.RepetitionPenalty, minRepetition, maxRepetition, false)
	}
	return nil
}

func invalidParam(name string, got, min, max float64, minExclusive bool) error {
	open := "["
	if minExclusive {
		open = "("
	}
	return rcerrors.New(rcerrors.KindValidation, rcerrors.CodeInvalidParameters,
		fmt.Sprintf("%s %v out of range %s%v, %v]", name, got, open, min, max))
}

// ResolveValidated resolves ownerID's parameters and validates them
// against modelCap in one call, the shape C10 actually needs before a
// generation call.
func (s *Service) ResolveValidated(ctx context.Context, ownerID string, modelCap int) (types.LLMParameters, error) {
	params, err := s.Resolve(ctx, ownerID)
	if err != nil {
		return params, err
	}
	if err := Validate(params, modelCap); err != nil {
		return types.LLMParameters{}, err
	}
	return params, nil
}
