package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/docpin/docpin/internal/providers"
	"github.com/docpin/docpin/internal/resolve"
)

// candidateSchemaJSON is the contract every provider response must satisfy.
const candidateSchemaJSON = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["type", "value"],
    "properties": {
      "type": {"type": "string", "minLength": 1},
      "value": {"type": "string", "minLength": 1}
    },
    "additionalProperties": false
  }
}`

var candidateSchema = func() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("candidates.json", strings.NewReader(candidateSchemaJSON)); err != nil {
		panic(err)
	}
	return compiler.MustCompile("candidates.json")
}()

// parseCandidates turns a raw model response into candidates. It tolerates
// markdown code fences and surrounding prose around the JSON array, but the
// array itself must validate against candidateSchemaJSON. Anything else is a
// malformed response; there is no free-text scraping fallback.
func parseCandidates(raw string) ([]resolve.Candidate, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("empty response: %w", providers.ErrMalformedResponse)
	}

	attempts := []string{trimmed}
	if stripped := stripCodeFences(trimmed); stripped != "" && stripped != trimmed {
		attempts = append(attempts, stripped)
	}
	if extracted := extractJSONArray(trimmed); extracted != "" && extracted != trimmed {
		attempts = append(attempts, extracted)
	}

	for _, attempt := range attempts {
		var doc any
		if err := json.Unmarshal([]byte(attempt), &doc); err != nil {
			continue
		}
		if err := candidateSchema.Validate(doc); err != nil {
			return nil, fmt.Errorf("response does not match candidate schema: %v: %w",
				err, providers.ErrMalformedResponse)
		}
		var out []resolve.Candidate
		if err := json.Unmarshal([]byte(attempt), &out); err != nil {
			return nil, fmt.Errorf("failed to decode candidates: %v: %w",
				err, providers.ErrMalformedResponse)
		}
		return out, nil
	}

	return nil, fmt.Errorf("no JSON array in response: %w", providers.ErrMalformedResponse)
}

func stripCodeFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return ""
	}

	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return ""
	}

	lines = lines[1:]
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func extractJSONArray(content string) string {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end < start {
		return ""
	}
	return strings.TrimSpace(content[start : end+1])
}
