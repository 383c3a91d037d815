package providers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Knowledge providers answer in prose around the JSON they were asked for:
// code fences, language tags, leading commentary. Everything in this file
// exists to coerce that untrusted text into exactly one JSON value, so the
// fragile heuristics stay testable in one place.

// Clean strips code-fence markup (leading ``` with an optional language tag,
// trailing ```) and surrounding whitespace from a provider response.
func Clean(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = text[3:]
		// Drop a language tag such as "json" on the fence line.
		if idx := strings.IndexByte(text, '\n'); idx >= 0 {
			first := strings.TrimSpace(text[:idx])
			if first != "" && !strings.ContainsAny(first, "{}[]") {
				text = text[idx+1:]
			}
		}
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// ExtractObject returns the first JSON object found in text, after cleaning.
// Direct parse is attempted first; on failure the first balanced {...}
// substring is decoded instead. Failures wrap ErrMalformedResponse.
func ExtractObject(text string) (json.RawMessage, error) {
	return extract(text, '{')
}

// ExtractArray is ExtractObject for JSON arrays.
func ExtractArray(text string) (json.RawMessage, error) {
	return extract(text, '[')
}

func extract(text string, open byte) (json.RawMessage, error) {
	cleaned := Clean(text)
	if cleaned == "" {
		return nil, fmt.Errorf("%w: empty text", ErrMalformedResponse)
	}

	if cleaned[0] == open {
		var raw json.RawMessage
		if err := json.Unmarshal([]byte(cleaned), &raw); err == nil {
			return raw, nil
		}
	}

	// Fall back to the first balanced value starting at the opening bracket.
	// A JSON decoder reads exactly one value and ignores trailing text.
	start := strings.IndexByte(cleaned, open)
	if start < 0 {
		return nil, fmt.Errorf("%w: no %q found", ErrMalformedResponse, string(open))
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(cleaned[start:])))
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return raw, nil
}

// MustCompileSchema compiles a JSON Schema from source, panicking on error.
// Intended for package-level schema variables validated at init time.
func MustCompileSchema(name, source string) *jsonschema.Schema {
	schema, err := jsonschema.CompileString(name, source)
	if err != nil {
		panic(fmt.Sprintf("compile schema %s: %v", name, err))
	}
	return schema
}

// Validate checks raw against schema. Shape violations wrap
// ErrMalformedResponse so callers can treat them as lookup failures.
func Validate(schema *jsonschema.Schema, raw json.RawMessage) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}
