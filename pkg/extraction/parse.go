package extraction

import (
	"encoding/json"
	"strings"

	apperrors "github.com/931405/mem1/pkg/errors"
	"github.com/931405/mem1/pkg/log"
	"github.com/931405/mem1/pkg/mem/ltm"
)

// Defaults applied to parsed facts when the model omits fields.
const (
	defaultCategory      = "other"
	defaultConfidence    = 0.8
	bareStringConfidence = 0.7
)

// ParseFacts normalizes a model response into facts. Responses arrive as a
// bare JSON array, a {"facts": [...]} object, either of those wrapped in a
// markdown fence or surrounding prose, or truncated mid-array; the parsers
// are tried in order from strictest to most forgiving:
//
//  1. strip a markdown code fence
//  2. the whole content as a JSON array
//  3. the whole content as an object with a "facts" array
//  4. the "[" .. "]" substring as an array
//  5. the "{" .. "}" substring as a facts object
//  6. individual complete objects recovered from truncated JSON
//
// An error means no parser recognized anything; an empty slice with a nil
// error means the model legitimately found no facts.
func ParseFacts(content string) ([]ltm.Fact, error) {
	content = stripMarkdownFence(strings.TrimSpace(content))
	if content == "" {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "empty extraction response")
	}

	if strings.HasPrefix(content, "[") {
		if facts, err := parseArray([]byte(content)); err == nil {
			return facts, nil
		}
	}

	if strings.HasPrefix(content, "{") {
		if facts, ok := parseFactsObject([]byte(content)); ok {
			// An explicit empty facts list is a valid "nothing to remember".
			return facts, nil
		}
	}

	if start, end := strings.Index(content, "["), strings.LastIndex(content, "]"); start >= 0 && end > start {
		if facts, err := parseArray([]byte(content[start : end+1])); err == nil && len(facts) > 0 {
			return facts, nil
		}
	}

	if start, end := strings.Index(content, "{"), strings.LastIndex(content, "}"); start >= 0 && end > start {
		substring := content[start : end+1]
		if facts, ok := parseFactsObject([]byte(substring)); ok && len(facts) > 0 {
			return facts, nil
		}
		if facts := recoverTruncated(substring); len(facts) > 0 {
			log.Warn("Extraction response was truncated, recovered partial facts", "count", len(facts))
			return facts, nil
		}
	}

	if facts := recoverTruncated(content); len(facts) > 0 {
		log.Warn("Extraction response was truncated, recovered partial facts", "count", len(facts))
		return facts, nil
	}

	return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "no parseable facts in extraction response")
}

// stripMarkdownFence removes a surrounding ``` block, with or without a
// language tag.
func stripMarkdownFence(content string) string {
	if !strings.HasPrefix(content, "```") {
		return content
	}
	if newline := strings.Index(content, "\n"); newline > 0 {
		content = content[newline+1:]
	} else {
		content = content[3:]
	}
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}

func parseArray(data []byte) ([]ltm.Fact, error) {
	var elements []json.RawMessage
	if err := json.Unmarshal(data, &elements); err != nil {
		return nil, err
	}
	return factsFromElements(elements), nil
}

// parseFactsObject parses {"facts": [...]}. The second return reports
// whether the object form with a facts array was recognized at all.
func parseFactsObject(data []byte) ([]ltm.Fact, bool) {
	var object map[string]json.RawMessage
	if err := json.Unmarshal(data, &object); err != nil {
		return nil, false
	}
	raw, exists := object["facts"]
	if !exists {
		return nil, false
	}
	var elements []json.RawMessage
	if err := json.Unmarshal(raw, &elements); err != nil {
		return nil, false
	}
	return factsFromElements(elements), true
}

// factsFromElements accepts objects, bare strings, and nested arrays.
// Unusable elements are skipped rather than failing the batch.
func factsFromElements(elements []json.RawMessage) []ltm.Fact {
	facts := make([]ltm.Fact, 0, len(elements))
	for i, element := range elements {
		if fact, ok := parseFactObject(element); ok {
			facts = append(facts, fact)
			continue
		}

		var text string
		if err := json.Unmarshal(element, &text); err == nil {
			if text = strings.TrimSpace(text); text != "" {
				facts = append(facts, ltm.Fact{Text: text, Category: defaultCategory, Confidence: bareStringConfidence})
			}
			continue
		}

		var nested []json.RawMessage
		if err := json.Unmarshal(element, &nested); err == nil {
			facts = append(facts, factsFromElements(nested)...)
			continue
		}

		log.Debug("Skipping unusable extraction element", "index", i)
	}
	return facts
}

func parseFactObject(data []byte) (ltm.Fact, bool) {
	var object struct {
		Fact       *string  `json:"fact"`
		Category   string   `json:"category"`
		Confidence *float64 `json:"confidence"`
	}
	if err := json.Unmarshal(data, &object); err != nil || object.Fact == nil {
		return ltm.Fact{}, false
	}

	text := strings.TrimSpace(*object.Fact)
	if text == "" {
		return ltm.Fact{}, false
	}

	category := strings.TrimSpace(object.Category)
	if category == "" {
		category = defaultCategory
	}

	confidence := defaultConfidence
	if object.Confidence != nil {
		confidence = *object.Confidence
		if confidence < 0 {
			confidence = 0
		}
		if confidence > 1 {
			confidence = 1
		}
	}

	return ltm.Fact{Text: text, Category: category, Confidence: confidence}, true
}

// recoverTruncated walks the content collecting every brace-balanced
// object and keeps the ones that parse as facts. This salvages responses
// cut off mid-array by a token limit.
func recoverTruncated(content string) []ltm.Fact {
	// Skip past a wrapping `{"facts": [` so its unbalanced brace does not
	// swallow the objects inside.
	if factsIdx := strings.Index(content, `"facts"`); factsIdx >= 0 {
		if arrayStart := strings.Index(content[factsIdx:], "["); arrayStart >= 0 {
			content = content[factsIdx+arrayStart+1:]
		}
	}

	var facts []ltm.Fact
	depth := 0
	var current strings.Builder

	for _, ch := range content {
		switch ch {
		case '{':
			if depth == 0 {
				current.Reset()
			}
			depth++
			current.WriteRune(ch)
		case '}':
			if depth == 0 {
				continue
			}
			current.WriteRune(ch)
			depth--
			if depth == 0 {
				if fact, ok := parseFactObject([]byte(current.String())); ok {
					facts = append(facts, fact)
				}
			}
		default:
			if depth > 0 {
				current.WriteRune(ch)
			}
		}
	}
	return facts
}
