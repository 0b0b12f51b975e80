package pdfindex

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// wordGapFactor decides when two glyph runs on the same row are separate
// words: a horizontal gap wider than this fraction of the font size gets a
// space inserted between them.
const wordGapFactor = 0.3

// New parses raw PDF bytes into a DocumentIndex.
//
// Corrupted or encrypted files return ErrDocumentParse. A structurally valid
// document with no pages or no extractable text returns a valid empty index.
func New(data []byte) (*DocumentIndex, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrDocumentParse)
	}

	// pdfcpu validates structure up front and rejects encrypted or
	// truncated files with a useful message.
	pageCount, err := api.PageCount(bytes.NewReader(data), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDocumentParse, err)
	}
	if pageCount == 0 {
		return NewFromSegments(nil, 0), nil
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDocumentParse, err)
	}

	var segments []PageSegment
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		segments = append(segments, pageSegments(page, pageNum)...)
	}

	return NewFromSegments(segments, pageCount), nil
}

// pageSegments extracts one segment per text row of a page, in the PDF's
// layout stream order (top-to-bottom, left-to-right).
func pageSegments(page pdf.Page, pageNum int) []PageSegment {
	rows, err := page.GetTextByRow()
	if err != nil {
		// Unreadable content stream on a single page: treat as empty
		// rather than failing the whole document.
		return nil
	}

	var segments []PageSegment
	order := 0
	for _, row := range rows {
		if row == nil || len(row.Content) == 0 {
			continue
		}

		text, box := joinRow(row.Content)
		text = normalizeWhitespace(text)
		if text == "" {
			continue
		}

		segments = append(segments, PageSegment{
			Page:  pageNum,
			Text:  text,
			BBox:  box,
			Order: order,
		})
		order++
	}
	return segments
}

// joinRow concatenates the glyph runs of one row into a string, inserting
// spaces at word gaps, and computes the row's bounding box.
func joinRow(content []pdf.Text) (string, BBox) {
	var sb strings.Builder
	box := BBox{
		X0: content[0].X,
		Y0: content[0].Y,
		X1: content[0].X + content[0].W,
		Y1: content[0].Y + content[0].FontSize,
	}

	var prev *pdf.Text
	for i := range content {
		t := &content[i]
		if prev != nil {
			gap := t.X - (prev.X + prev.W)
			threshold := wordGapFactor * prev.FontSize
			if threshold <= 0 {
				threshold = 1.0
			}
			if gap > threshold && !strings.HasSuffix(sb.String(), " ") {
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(t.S)

		box.X0 = min(box.X0, t.X)
		box.Y0 = min(box.Y0, t.Y)
		box.X1 = max(box.X1, t.X+t.W)
		box.Y1 = max(box.Y1, t.Y+t.FontSize)
		prev = t
	}

	return sb.String(), box
}

// normalizeWhitespace collapses runs of whitespace to single spaces and
// trims the ends. Segment boxes are per-segment, so collapsing inside a
// segment does not lose position information.
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
