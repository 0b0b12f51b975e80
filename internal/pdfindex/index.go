// Package pdfindex builds a position-indexed view of a PDF document.
//
// A DocumentIndex owns an ordered sequence of page segments, each a run of
// text with a bounding box in the page's native coordinate space. The index
// exposes the concatenated, whitespace-normalized text of the whole document
// together with a byte-offset to segment mapping, so that matches found in
// the concatenated text can be traced back to pages and boxes.
package pdfindex

import (
	"errors"
	"sort"
	"strings"
)

// ErrDocumentParse indicates the PDF could not be parsed at all
// (corrupted, encrypted, or not a PDF).
var ErrDocumentParse = errors.New("document parse failed")

// BBox is an axis-aligned bounding box in PDF user-space coordinates.
type BBox struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// Union returns the smallest box containing both b and other.
func (b BBox) Union(other BBox) BBox {
	return BBox{
		X0: min(b.X0, other.X0),
		Y0: min(b.Y0, other.Y0),
		X1: max(b.X1, other.X1),
		Y1: max(b.Y1, other.Y1),
	}
}

// PageSegment is a contiguous run of text on one page.
// Segments are immutable once the index is built.
type PageSegment struct {
	Page int    `json:"page"`  // 1-based page number
	Text string `json:"text"`  // whitespace-normalized text
	BBox BBox   `json:"bbox"`  // box in the page's native coordinates
	Order int   `json:"order"` // reading-order index within the page
}

// DocumentIndex is a read-only position index over one document.
type DocumentIndex struct {
	segments []PageSegment
	starts   []int // byte offset of each segment's text within text
	text     string
	pages    int
}

// NewFromSegments builds an index directly from segments.
// pageCount may exceed the highest segment page (trailing empty pages).
func NewFromSegments(segments []PageSegment, pageCount int) *DocumentIndex {
	segs := make([]PageSegment, len(segments))
	copy(segs, segments)
	sort.SliceStable(segs, func(i, j int) bool {
		if segs[i].Page != segs[j].Page {
			return segs[i].Page < segs[j].Page
		}
		return segs[i].Order < segs[j].Order
	})

	var sb strings.Builder
	starts := make([]int, len(segs))
	for i, seg := range segs {
		if i > 0 {
			sb.WriteByte(' ')
		}
		starts[i] = sb.Len()
		sb.WriteString(seg.Text)
		if seg.Page > pageCount {
			pageCount = seg.Page
		}
	}

	return &DocumentIndex{
		segments: segs,
		starts:   starts,
		text:     sb.String(),
		pages:    pageCount,
	}
}

// Text returns the concatenated normalized text of all segments,
// separated by single spaces.
func (idx *DocumentIndex) Text() string { return idx.text }

// PageCount returns the number of pages in the source document.
func (idx *DocumentIndex) PageCount() int { return idx.pages }

// SegmentCount returns the number of segments in the index.
func (idx *DocumentIndex) SegmentCount() int { return len(idx.segments) }

// Segment returns the i-th segment in reading order.
func (idx *DocumentIndex) Segment(i int) PageSegment { return idx.segments[i] }

// Segments returns all segments in reading order.
func (idx *DocumentIndex) Segments() []PageSegment {
	out := make([]PageSegment, len(idx.segments))
	copy(out, idx.segments)
	return out
}

// Empty reports whether the index holds no text.
func (idx *DocumentIndex) Empty() bool { return len(idx.segments) == 0 }

// SegmentStart returns the byte offset of segment i within Text().
func (idx *DocumentIndex) SegmentStart(i int) int { return idx.starts[i] }

// segmentEnd returns the byte offset one past segment i's text.
func (idx *DocumentIndex) segmentEnd(i int) int {
	return idx.starts[i] + len(idx.segments[i].Text)
}

// SegmentsInRange returns the indexes of all segments whose text overlaps
// the byte range [start, end) of Text(). Separator spaces between segments
// belong to neither segment.
func (idx *DocumentIndex) SegmentsInRange(start, end int) []int {
	if start >= end || len(idx.segments) == 0 {
		return nil
	}
	// First segment whose end is past start.
	first := sort.Search(len(idx.segments), func(i int) bool {
		return idx.segmentEnd(i) > start
	})
	var out []int
	for i := first; i < len(idx.segments) && idx.starts[i] < end; i++ {
		out = append(out, i)
	}
	return out
}

// PageSpan returns the byte range of Text() covered by a page's segments.
// ok is false when the page has no segments.
func (idx *DocumentIndex) PageSpan(page int) (start, end int, ok bool) {
	for i, seg := range idx.segments {
		if seg.Page != page {
			continue
		}
		if !ok {
			start = idx.starts[i]
			ok = true
		}
		end = idx.segmentEnd(i)
	}
	return start, end, ok
}
