// Package resolve locates extracted candidate values inside an indexed
// document, attaching page numbers, bounding boxes, and surrounding context
// to each occurrence. Candidates whose value cannot be found anywhere in the
// document are dropped rather than reported with a guessed location.
package resolve

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/docpin/docpin/internal/pdfindex"
)

// DefaultContextRunes is the number of runes of surrounding text captured on
// each side of a located value.
const DefaultContextRunes = 80

// Candidate is a value proposed by an extractor, not yet tied to a location.
type Candidate struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Item is a candidate resolved to a concrete place in the document.
type Item struct {
	Type    string        `json:"type"`
	Value   string        `json:"value"`
	Page    int           `json:"page"`
	BBox    pdfindex.BBox `json:"position"`
	Context string        `json:"context"`

	// SegmentOrder is the reading-order index of the first segment the value
	// appears in, used to keep results in document order.
	SegmentOrder int `json:"-"`
}

// Result holds the resolved items plus a count of candidates that could not
// be located in the document text.
type Result struct {
	Items   []Item
	Dropped int
}

// Resolver maps candidate values back to document locations. It matches
// exactly first, then falls back to a case- and whitespace-insensitive
// comparison. It never guesses: no fuzzy or edit-distance matching.
type Resolver struct {
	index        *pdfindex.DocumentIndex
	contextRunes int

	normText  string
	normStart []int // normText byte offset -> original start offset
	normEnd   []int // normText byte offset -> original end offset (exclusive)
}

// NewResolver builds a resolver over the given index. contextRunes sets the
// context window size per side; zero selects DefaultContextRunes.
func NewResolver(index *pdfindex.DocumentIndex, contextRunes int) *Resolver {
	if contextRunes <= 0 {
		contextRunes = DefaultContextRunes
	}
	r := &Resolver{index: index, contextRunes: contextRunes}
	r.normText, r.normStart, r.normEnd = normalizeMapped(index.Text())
	return r
}

// Resolve locates every candidate, emitting one Item per occurrence. The
// Items preserve candidate input order within each value; callers that need
// document order sort afterwards.
func (r *Resolver) Resolve(candidates []Candidate) Result {
	var res Result
	for _, c := range candidates {
		items := r.resolveOne(c)
		if len(items) == 0 {
			res.Dropped++
			continue
		}
		res.Items = append(res.Items, items...)
	}
	return res
}

func (r *Resolver) resolveOne(c Candidate) []Item {
	value := strings.TrimSpace(c.Value)
	if value == "" {
		return nil
	}

	spans := findAll(r.index.Text(), value)
	if len(spans) == 0 {
		spans = r.findNormalized(value)
	}

	var items []Item
	for _, sp := range spans {
		if item, ok := r.buildItem(c, sp); ok {
			items = append(items, item)
		}
	}
	return items
}

// span is a byte range in the original document text.
type span struct {
	start, end int
}

func findAll(text, needle string) []span {
	var spans []span
	for off := 0; ; {
		i := strings.Index(text[off:], needle)
		if i < 0 {
			break
		}
		start := off + i
		spans = append(spans, span{start: start, end: start + len(needle)})
		off = start + 1
	}
	return spans
}

// findNormalized searches the normalized document text and maps matches back
// to original byte offsets.
func (r *Resolver) findNormalized(value string) []span {
	needle := Normalize(value)
	if needle == "" {
		return nil
	}

	var spans []span
	for _, sp := range findAll(r.normText, needle) {
		spans = append(spans, span{
			start: r.normStart[sp.start],
			end:   r.normEnd[sp.end-1],
		})
	}
	return spans
}

func (r *Resolver) buildItem(c Candidate, sp span) (Item, bool) {
	segIdx := r.index.SegmentsInRange(sp.start, sp.end)
	if len(segIdx) == 0 {
		return Item{}, false
	}

	first := r.index.Segment(segIdx[0])
	page := first.Page
	order := first.Order
	bbox := first.BBox
	for _, i := range segIdx[1:] {
		s := r.index.Segment(i)
		if s.Page != page {
			break
		}
		bbox = bbox.Union(s.BBox)
	}

	return Item{
		Type:         c.Type,
		Value:        c.Value,
		Page:         page,
		BBox:         bbox,
		Context:      r.contextWindow(sp, page),
		SegmentOrder: order,
	}, true
}

// contextWindow returns the matched text with up to contextRunes runes on
// each side, clipped so that the window never crosses a page boundary.
func (r *Resolver) contextWindow(sp span, page int) string {
	text := r.index.Text()
	pageStart, pageEnd, ok := r.index.PageSpan(page)
	if !ok {
		pageStart, pageEnd = 0, len(text)
	}

	lo := sp.start
	for i := 0; i < r.contextRunes && lo > pageStart; i++ {
		_, size := utf8.DecodeLastRuneInString(text[pageStart:lo])
		lo -= size
	}

	hi := sp.end
	if hi > pageEnd {
		hi = pageEnd
	}
	for i := 0; i < r.contextRunes && hi < pageEnd; i++ {
		_, size := utf8.DecodeRuneInString(text[hi:pageEnd])
		hi += size
	}

	return text[lo:hi]
}

// Normalize lowercases text, collapses runs of whitespace to a single space,
// and removes zero-width characters. Used for the fallback comparison tier.
func Normalize(s string) string {
	out, _, _ := normalizeMapped(s)
	return out
}

// normalizeMapped normalizes s and records, per output byte, the start and
// exclusive end offsets of the source rune it came from.
func normalizeMapped(s string) (string, []int, []int) {
	var b strings.Builder
	starts := make([]int, 0, len(s))
	ends := make([]int, 0, len(s))

	pendingSpace := false
	spaceStart, spaceEnd := 0, 0
	wrote := false

	for i, r := range s {
		size := utf8.RuneLen(r)
		switch {
		case isZeroWidth(r):
			// skip entirely
		case unicode.IsSpace(r):
			if !pendingSpace {
				pendingSpace = true
				spaceStart = i
			}
			spaceEnd = i + size
		default:
			if pendingSpace && wrote {
				b.WriteByte(' ')
				starts = append(starts, spaceStart)
				ends = append(ends, spaceEnd)
			}
			pendingSpace = false
			lower := unicode.ToLower(r)
			n := b.Len()
			b.WriteRune(lower)
			for j := n; j < b.Len(); j++ {
				starts = append(starts, i)
				ends = append(ends, i+size)
			}
			wrote = true
		}
	}
	return b.String(), starts, ends
}

func isZeroWidth(r rune) bool {
	switch r {
	case '\u200b', '\u200c', '\u200d', '\ufeff':
		return true
	}
	return false
}
