package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var ErrInvalidJSON = errors.New("response is not valid JSON")

var fencedJSON = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)\\s*```")

// SafeParseJSON decodes model output into v. It tries the raw content, then a fenced ```json block,
// then the first balanced {...} object.
func SafeParseJSON(content string, v interface{}) error {
	cleaned := strings.TrimSpace(content)
	if cleaned == "" {
		return fmt.Errorf("empty content: %w", ErrInvalidJSON)
	}

	err := json.Unmarshal([]byte(cleaned), v)
	if err == nil {
		return nil
	}

	if m := fencedJSON.FindStringSubmatch(cleaned); m != nil {
		if fErr := json.Unmarshal([]byte(m[1]), v); fErr == nil {
			return nil
		}
	}

	if obj, ok := extractFirstJSONObject(cleaned); ok {
		if oErr := json.Unmarshal([]byte(obj), v); oErr == nil {
			return nil
		}
	}

	return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
}

// ParseJSONMap is SafeParseJSON into a generic object.
func ParseJSONMap(content string) (map[string]interface{}, error) {
	var out map[string]interface{}
	if err := SafeParseJSON(content, &out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("null object: %w", ErrInvalidJSON)
	}
	return out, nil
}

// extractFirstJSONObject finds the first outermost balanced {...}
func extractFirstJSONObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		char := s[i]

		if escaped {
			escaped = false
			continue
		}

		if char == '\\' {
			escaped = true
			continue
		}

		if char == '"' {
			inString = !inString
			continue
		}

		if !inString {
			if char == '{' {
				depth++
			} else if char == '}' {
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
	}

	return "", false
}

// ValidateChoice canonicalises an LLM label against allowed, ignoring case and surrounding space.
func ValidateChoice(value string, allowed []string) (string, bool) {
	valid := FilterValid([]string{strings.TrimSpace(value)}, allowed)
	if len(valid) == 0 {
		return "", false
	}
	return valid[0], true
}

// FilterValid keeps the tags present in allowed, rewritten to their canonical spelling.
func FilterValid(tags []string, allowed []string) []string {
	valid := make([]string, 0)
	allowedMap := make(map[string]bool)
	for _, a := range allowed {
		allowedMap[a] = true
	}

	for _, t := range tags {
		if allowedMap[t] {
			valid = append(valid, t)
			continue
		}
		for _, a := range allowed {
			if strings.EqualFold(a, t) {
				valid = append(valid, a)
				break
			}
		}
	}
	return valid
}
