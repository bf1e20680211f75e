package service

import (
	"encoding/json"
	"strings"
)

// OutputExtractor pulls the free-text answer out of a decoded response body
type OutputExtractor interface {
	Name() string
	Extract(body map[string]any) (string, bool)
}

// DefaultExtractors returns the extraction strategies in priority order
func DefaultExtractors() []OutputExtractor {
	return []OutputExtractor{
		nestedOutputExtractor{},
		fieldExtractor{field: "result"},
		fieldExtractor{field: "output"},
		fieldExtractor{field: "text"},
		fieldExtractor{field: "message"},
	}
}

// nestedOutputExtractor reads flow-runner responses of the form
// {"outputs":[{"outputs":[{"results":{"message":{"text":...}}}]}]}
type nestedOutputExtractor struct{}

var nestedOutputPaths = [][]any{
	{"outputs", 0, "outputs", 0, "results", "message", "text"},
	{"outputs", 0, "outputs", 0, "results", "message", "data", "text"},
	{"outputs", 0, "outputs", 0, "outputs", "message", "message"},
	{"outputs", 0, "outputs", 0, "artifacts", "message"},
	{"outputs", 0, "outputs", 0, "messages", 0, "message"},
}

func (nestedOutputExtractor) Name() string { return "outputs" }

func (nestedOutputExtractor) Extract(body map[string]any) (string, bool) {
	for _, path := range nestedOutputPaths {
		if s, ok := lookup(body, path).(string); ok && strings.TrimSpace(s) != "" {
			return s, true
		}
	}
	return "", false
}

// fieldExtractor reads a top-level string field, or an object's "text" member
type fieldExtractor struct {
	field string
}

func (e fieldExtractor) Name() string { return e.field }

func (e fieldExtractor) Extract(body map[string]any) (string, bool) {
	switch v := body[e.field].(type) {
	case string:
		if strings.TrimSpace(v) != "" {
			return v, true
		}
	case map[string]any:
		if s, ok := v["text"].(string); ok && strings.TrimSpace(s) != "" {
			return s, true
		}
	}
	return "", false
}

func lookup(v any, path []any) any {
	for _, step := range path {
		switch key := step.(type) {
		case string:
			m, ok := v.(map[string]any)
			if !ok {
				return nil
			}
			v = m[key]
		case int:
			arr, ok := v.([]any)
			if !ok || key >= len(arr) {
				return nil
			}
			v = arr[key]
		}
	}
	return v
}

// ExtractOutput applies extractors in order and returns the first hit
func ExtractOutput(body map[string]any, extractors []OutputExtractor) (text, strategy string, ok bool) {
	for _, ex := range extractors {
		if s, found := ex.Extract(body); found {
			return s, ex.Name(), true
		}
	}
	return "", "", false
}

// Insights is the structured answer embedded in the service's free text
type Insights struct {
	Summary         *string  `json:"summary"`
	Recommendations []string `json:"recommendations"`
}

// ExtractInsights locates a JSON object inside free text. Balanced objects
// carrying both "summary" and "recommendations" at their top level are tried
// first, in order of appearance, then the widest span from the first '{' to
// the last '}'.
func ExtractInsights(text string) (Insights, bool) {
	if strings.Contains(text, `"summary"`) && strings.Contains(text, `"recommendations"`) {
		for start := strings.IndexByte(text, '{'); start >= 0; {
			if end := matchBrace(text, start); end > start {
				if ins, ok := decodeInsights(text[start:end+1], true); ok {
					return ins, true
				}
			}
			next := strings.IndexByte(text[start+1:], '{')
			if next < 0 {
				break
			}
			start += next + 1
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return decodeInsights(text[start:end+1], false)
	}
	return Insights{}, false
}

func decodeInsights(span string, requireKeys bool) (Insights, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(span), &fields); err != nil {
		return Insights{}, false
	}
	if requireKeys {
		if _, ok := fields["summary"]; !ok {
			return Insights{}, false
		}
		if _, ok := fields["recommendations"]; !ok {
			return Insights{}, false
		}
	}
	var ins Insights
	if err := json.Unmarshal([]byte(span), &ins); err != nil {
		return Insights{}, false
	}
	return ins, true
}

// matchBrace returns the index of the '}' closing the '{' at start, or -1.
// Braces inside JSON strings are ignored.
func matchBrace(text string, start int) int {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
