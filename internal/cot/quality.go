package cot

import (
	"strings"
)

// QualityWeights exposes the scoring penalties as configuration (open
// question 3) rather than hard-coded constants, mirroring CoTConfig's own
// exposure of thresholds.
type QualityWeights struct {
	ArtifactPenalty           float64
	ShortAnswerPenalty        float64
	DuplicateSentencePenalty  float64
	QuestionEchoPenalty       float64
	ShortAnswerThreshold      int
}

// DefaultQualityWeights returns spec S4.9's documented penalty values.
func DefaultQualityWeights() QualityWeights {
	return QualityWeights{
		ArtifactPenalty:          0.4,
		ShortAnswerPenalty:       0.3,
		DuplicateSentencePenalty: 0.2,
		QuestionEchoPenalty:      0.1,
		ShortAnswerThreshold:     20,
	}
}

// Score computes the [0,1] quality score for answer against the question
// it is meant to address, using weights' penalty schedule.
func Score(answer, question string, weights QualityWeights) float64 {
	trimmed := strings.TrimSpace(answer)
	if trimmed == "" {
		return 0
	}

	score := 1.0
	if ContainsArtifacts(trimmed) {
		score -= weights.ArtifactPenalty
	}
	if len(trimmed) < weights.ShortAnswerThreshold {
		score -= weights.ShortAnswerPenalty
	}
	if hasDuplicateSentence(trimmed) {
		score -= weights.DuplicateSentencePenalty
	}
	if question != "" && strings.Contains(strings.ToLower(trimmed), strings.ToLower(strings.TrimSpace(question))) {
		score -= weights.QuestionEchoPenalty
	}

	if score < 0 {
		score = 0
	}
	return score
}

func hasDuplicateSentence(text string) bool {
	seen := make(map[string]bool)
	for _, s := range splitSentences(text) {
		key := strings.ToLower(strings.TrimSpace(s))
		if key == "" {
			continue
		}
		if seen[key] {
			return true
		}
		seen[key] = true
	}
	return false
}

// RetryTemperature computes attempt i's generation temperature, clamped at
// 1.5 per S4.9's documented schedule.
func RetryTemperature(baseTemp float64, attempt int) float64 {
	t := baseTemp + 0.1*float64(attempt)
	if t > 1.5 {
		t = 1.5
	}
	return t
}
