package cot

import (
	"encoding/json"
	"regexp"
	"strings"
)

// parseStrategy extracts a clean answer from a raw LLM completion. Layers
// are tried in order; the first one to report success wins.
type parseStrategy func(string) (string, bool)

var parseLayers = []parseStrategy{
	parseXMLAnswer,
	parseJSONAnswer,
	parseFinalAnswerMarker,
	parseRegexCleaned,
}

var (
	answerTagRegexp   = regexp.MustCompile(`(?is)<answer>(.*?)</answer>`)
	thinkingTagRegexp = regexp.MustCompile(`(?is)<thinking>.*?</thinking>`)
	finalAnswerRegexp = regexp.MustCompile(`(?i)final answer:\s*`)

	knownPrefixes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^based on the analysis[,:]?\s*`),
		regexp.MustCompile(`(?i)^in the context of [^,]*,\s*`),
		regexp.MustCompile(`(?i)^furthermore,\s*`),
		regexp.MustCompile(`(?i)^additionally,\s*`),
		regexp.MustCompile(`(?i)^##\s*instruction:\s*`),
	}

	// artifactPatterns backs ContainsArtifacts: any match means the parsed
	// answer still carries scaffolding that should never reach the user.
	artifactPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)based on the analysis`),
		regexp.MustCompile(`(?i)^##\s*instruction:`),
		regexp.MustCompile(`(?is)<thinking>`),
		regexp.MustCompile(`(?is)</?answer>`),
		regexp.MustCompile(`(?i)^sub-question \d+`),
		regexp.MustCompile(`(?i)^step \d+:`),
	}
)

// ParseResponse runs the multi-layer parser over raw, returning the
// cleaned answer and whether any structured layer (as opposed to raw
// passthrough) succeeded.
func ParseResponse(raw string) (answer string, structured bool) {
	for _, layer := range parseLayers {
		if cleaned, ok := layer(raw); ok {
			return cleaned, true
		}
	}
	return strings.TrimSpace(raw), false
}

func parseXMLAnswer(raw string) (string, bool) {
	if m := answerTagRegexp.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	if loc := thinkingTagRegexp.FindStringIndex(raw); loc != nil {
		rest := strings.TrimSpace(raw[loc[1]:])
		if rest != "" {
			return rest, true
		}
	}
	return "", false
}

func parseJSONAnswer(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		return "", false
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(trimmed), &obj); err != nil {
		return "", false
	}
	answer, ok := obj["answer"].(string)
	if !ok || strings.TrimSpace(answer) == "" {
		return "", false
	}
	return strings.TrimSpace(answer), true
}

func parseFinalAnswerMarker(raw string) (string, bool) {
	loc := finalAnswerRegexp.FindStringIndex(raw)
	if loc == nil {
		return "", false
	}
	rest := strings.TrimSpace(raw[loc[1]:])
	if rest == "" {
		return "", false
	}
	return rest, true
}

// parseRegexCleaned strips known scaffolding prefixes and thinking blocks
// and drops every repeated sentence (case-insensitive, consecutive or not),
// joining what remains with single spaces. It reports success only when
// something is left and the cleaning changed the trimmed input; otherwise
// ParseResponse falls through to raw passthrough.
func parseRegexCleaned(raw string) (string, bool) {
	cleaned := thinkingTagRegexp.ReplaceAllString(raw, "")
	for _, prefix := range knownPrefixes {
		cleaned = prefix.ReplaceAllString(cleaned, "")
	}
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return "", false
	}
	cleaned = collapseDuplicateSentences(cleaned)
	if cleaned == strings.TrimSpace(raw) {
		return "", false
	}
	return cleaned, true
}

func collapseDuplicateSentences(text string) string {
	sentences := splitSentences(text)
	seen := make(map[string]bool, len(sentences))
	out := make([]string, 0, len(sentences))
	for _, s := range sentences {
		key := strings.ToLower(strings.TrimSpace(s))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return strings.Join(out, " ")
}

func splitSentences(text string) []string {
	raw := regexp.MustCompile(`(?s)(?:[^.!?]+[.!?]+|[^.!?]+$)`).FindAllString(text, -1)
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if trimmed := strings.TrimSpace(s); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// ContainsArtifacts reports whether answer still carries any leaked
// scaffolding from the decomposition/synthesis prompts.
func ContainsArtifacts(answer string) bool {
	for _, pattern := range artifactPatterns {
		if pattern.MatchString(answer) {
			return true
		}
	}
	return false
}
