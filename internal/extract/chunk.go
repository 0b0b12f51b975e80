package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/docpin/docpin/internal/pdfindex"
	"github.com/docpin/docpin/internal/providers"
)

// chunks splits the document text into pieces that fit within budget runes.
// Splits happen only on segment boundaries; a single segment larger than the
// budget becomes its own oversized chunk rather than being cut mid-segment.
func chunks(idx *pdfindex.DocumentIndex, budget int) []string {
	if budget <= 0 {
		budget = providers.DefaultContextBudget
	}

	var out []string
	var b strings.Builder
	count := 0

	for i := 0; i < idx.SegmentCount(); i++ {
		text := idx.Segment(i).Text
		n := utf8.RuneCountInString(text)

		if count > 0 && count+1+n > budget {
			out = append(out, b.String())
			b.Reset()
			count = 0
		}
		if count > 0 {
			b.WriteByte(' ')
			count++
		}
		b.WriteString(text)
		count += n
	}

	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}
