// Package normalize turns untrusted model output into typed values.
//
// Parsing is a two-step heuristic: a direct JSON parse, then (when repair is
// enabled) one retry after stripping a surrounding Markdown code fence. Typed
// decoders then shape-check every field, filling documented defaults and
// coercing unexpected shapes to empty values so rendering stays total.
package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/p-n-ai/pai-course/internal/ai"
	"github.com/p-n-ai/pai-course/internal/intent"
)

// ErrMalformedResponse reports a response that could not be parsed or validated.
var ErrMalformedResponse = errors.New("malformed response")

// Policy controls how forgiving the normalizer is.
type Policy struct {
	// Repair enables the single fence-stripping retry.
	Repair bool
	// Strict rejects payloads that do not conform to the intent schema
	// instead of coercing them.
	Strict bool
}

// DefaultPolicy repairs fenced output and coerces non-conformant shapes.
func DefaultPolicy() Policy {
	return Policy{Repair: true}
}

// Normalizer decodes model responses for the structured intents.
type Normalizer struct {
	policy  Policy
	schemas map[ai.Intent]*gojsonschema.Schema
}

// New creates a Normalizer. The catalog supplies schemas for strict mode and may be nil.
func New(catalog *intent.Catalog, policy Policy) *Normalizer {
	n := &Normalizer{
		policy:  policy,
		schemas: make(map[ai.Intent]*gojsonschema.Schema),
	}
	if catalog != nil {
		for _, i := range ai.Intents {
			if s := catalog.Get(i).CompiledSchema(); s != nil {
				n.schemas[i] = s
			}
		}
	}
	return n
}

// Policy returns the active policy.
func (n *Normalizer) Policy() Policy {
	return n.policy
}

// Parse decodes raw as JSON, retrying once without code fences when repair is on.
func Parse(raw string, repair bool) (any, error) {
	var v any
	err := json.Unmarshal([]byte(raw), &v)
	if err == nil {
		return v, nil
	}
	if !repair {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	stripped := StripFences(raw)
	if retryErr := json.Unmarshal([]byte(stripped), &v); retryErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, retryErr)
	}
	return v, nil
}

// StripFences removes a surrounding Markdown code fence (``` or ```lang) if present.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	// Single-line form: ```{"a":1}```
	if !strings.Contains(s, "\n") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
		return strings.TrimSpace(s)
	}

	lines := strings.Split(s, "\n")
	body := lines[1:]
	if last := strings.TrimSpace(body[len(body)-1]); last == "```" {
		body = body[:len(body)-1]
	} else if strings.HasSuffix(last, "```") {
		body[len(body)-1] = strings.TrimSuffix(strings.TrimRight(body[len(body)-1], " \t\r"), "```")
	}
	return strings.TrimSpace(strings.Join(body, "\n"))
}

// wrappedInFence reports whether s is a single code block: an opening fence
// on the first line, a closing fence ending the last line and no fence in
// between. Text that merely starts with a code block is not wrapped.
func wrappedInFence(s string) bool {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return false
	}
	lines := strings.Split(s, "\n")
	if len(lines) == 1 {
		return len(s) > 6 && strings.HasSuffix(s, "```")
	}
	if !strings.HasSuffix(strings.TrimSpace(lines[len(lines)-1]), "```") {
		return false
	}
	for _, line := range lines[1 : len(lines)-1] {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			return false
		}
	}
	return true
}

// decode parses raw and, in strict mode, validates it against the intent schema.
func (n *Normalizer) decode(i ai.Intent, raw string) (any, error) {
	v, err := Parse(raw, n.policy.Repair)
	if err != nil {
		return nil, err
	}
	if !n.policy.Strict {
		return v, nil
	}

	schema, ok := n.schemas[i]
	if !ok {
		return v, nil
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(v))
	if err != nil {
		return nil, fmt.Errorf("%w: validating %s: %v", ErrMalformedResponse, i, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: %s does not match schema: %s", ErrMalformedResponse, i, strings.Join(msgs, "; "))
	}
	return v, nil
}

// Text normalizes a free-text response such as lesson Markdown. A response
// wrapped entirely in a code fence is unwrapped; empty text is malformed.
func (n *Normalizer) Text(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	if n.policy.Repair && wrappedInFence(text) {
		text = StripFences(text)
	}
	text = cleanString(text)
	if text == "" {
		return "", fmt.Errorf("%w: empty text", ErrMalformedResponse)
	}
	return text, nil
}

// Snippet shortens raw model output for logs.
func Snippet(raw string, max int) string {
	r := []rune(raw)
	if len(r) <= max {
		return raw
	}
	return string(r[:max]) + "…"
}
