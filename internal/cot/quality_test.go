package cot

import "testing"

func TestScoreReturnsZeroForEmptyAnswer(t *testing.T) {
	if got := Score("   ", "what is the capital?", DefaultQualityWeights()); got != 0 {
		t.Fatalf("got %v", got)
	}
}

func TestScorePenalizesArtifacts(t *testing.T) {
	weights := DefaultQualityWeights()
	clean := Score("The capital of France is Paris, a city rich in history.", "what is the capital?", weights)
	withArtifact := Score("Based on the analysis, the capital of France is Paris, a city rich in history.", "what is the capital?", weights)
	if withArtifact >= clean {
		t.Fatalf("expected artifact-penalized score to be lower: clean=%v artifact=%v", clean, withArtifact)
	}
}

func TestScorePenalizesShortAnswers(t *testing.T) {
	weights := DefaultQualityWeights()
	got := Score("Paris.", "what is the capital?", weights)
	if got > 1-weights.ShortAnswerPenalty {
		t.Fatalf("expected short-answer penalty applied, got %v", got)
	}
}

func TestScorePenalizesQuestionEcho(t *testing.T) {
	weights := DefaultQualityWeights()
	question := "what is the capital of france"
	got := Score("what is the capital of france -- it is Paris, a lovely city full of history.", question, weights)
	withoutEcho := Score("The capital of France is Paris, a lovely city full of history.", question, weights)
	if got >= withoutEcho {
		t.Fatalf("expected echo-penalized score lower: echo=%v noecho=%v", got, withoutEcho)
	}
}

func TestRetryTemperatureEscalatesAndClamps(t *testing.T) {
	if got := RetryTemperature(0.2, 0); got != 0.2 {
		t.Fatalf("got %v", got)
	}
	if got := RetryTemperature(0.2, 1); got < 0.29 || got > 0.31 {
		t.Fatalf("got %v", got)
	}
	if got := RetryTemperature(1.4, 5); got != 1.5 {
		t.Fatalf("expected clamp to 1.5, got %v", got)
	}
}
