package research

import (
	"encoding/json"
	"strings"
)

// flexibleStrings accepts either a JSON array of strings or a single string,
// since models drift between the two shapes.
type flexibleStrings []string

func (f *flexibleStrings) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*f = list
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single != "" {
			*f = []string{single}
		}
		return nil
	}
	// Any other shape is dropped rather than failing the whole response.
	*f = nil
	return nil
}

// parseResponse extracts the analyst schema from raw model output. Code
// fences and prose around the JSON object are stripped; if no JSON can be
// recovered the raw text becomes a single truncated finding.
func parseResponse(raw string, queryType QueryType) response {
	var out response

	candidate := extractJSON(raw)
	if candidate != "" && json.Unmarshal([]byte(candidate), &out) == nil {
		if out.ExecutiveSummary.ConfidenceScore == 0 {
			out.ExecutiveSummary.ConfidenceScore = 0.75
		}
		return out
	}

	// Plain-text fallback mirrors the degraded shape used when the model
	// ignores the JSON instruction.
	text := strings.TrimSpace(raw)
	if len(text) > 200 {
		text = text[:200] + "..."
	}
	if text != "" {
		out.ExecutiveSummary.KeyFindings = flexibleStrings{text}
	}
	out.ExecutiveSummary.ConfidenceScore = 0.75
	out.StrategicImplications.Recommendations = flexibleStrings{
		"Strategic recommendation for " + string(queryType),
	}
	return out
}

// extractJSON finds the outermost JSON object in text, tolerating markdown
// fences and surrounding prose.
func extractJSON(text string) string {
	if fenced := betweenFences(text); fenced != "" {
		text = fenced
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

func betweenFences(text string) string {
	open := strings.Index(text, "```")
	if open < 0 {
		return ""
	}
	rest := text[open+3:]
	if nl := strings.Index(rest, "\n"); nl >= 0 && len(strings.TrimSpace(rest[:nl])) <= 8 {
		rest = rest[nl+1:] // drop the language tag line
	}
	closing := strings.Index(rest, "```")
	if closing < 0 {
		return ""
	}
	return rest[:closing]
}
