package extract

import (
	"fmt"
	"strings"

	"github.com/docpin/docpin/internal/querytypes"
)

const promptTemplate = `You are an information extraction engine. Extract every occurrence of the requested information types from the document text below.

Requested types:
%s
Return ONLY a JSON array (no markdown, no commentary). Each element must be an object with exactly two string fields:
  "type"  - one of the requested type names
  "value" - the text exactly as it appears in the document

Copy values verbatim from the document. Do not invent, translate, or reformat values. Return [] if nothing matches.

Document text:
%s`

// buildPrompt renders the extraction prompt for one chunk of document text.
func buildPrompt(text string, types []querytypes.QueryType) string {
	var list strings.Builder
	for _, qt := range types {
		fmt.Fprintf(&list, "- %s (%s): %s\n", qt.Name, qt.Label, qt.Description)
	}
	return fmt.Sprintf(promptTemplate, list.String(), text)
}
