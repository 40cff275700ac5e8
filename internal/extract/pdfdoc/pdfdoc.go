// Package pdfdoc adapts github.com/ledongthuc/pdf to the extract.Document
// contract: per-page text rows with span-level geometry, converted from PDF
// bottom-left coordinates to top-left-origin rectangles.
package pdfdoc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/ledongthuc/pdf"

	"github.com/docsift/docsift/internal/domain"
	"github.com/docsift/docsift/internal/extract"
)

// Magic is the byte prefix every well-formed PDF starts with.
var Magic = []byte("%PDF-")

// US Letter fallback when a page carries no resolvable MediaBox.
const (
	defaultPageWidth  = 612.0
	defaultPageHeight = 792.0
)

// wordGapFactor decides when two adjacent glyph runs belong to different
// words: a horizontal gap wider than this fraction of the font size gets a
// space inserted between them.
const wordGapFactor = 0.3

// Document implements extract.Document over a parsed PDF.
type Document struct {
	reader *pdf.Reader
	closer io.Closer
}

var _ extract.Document = (*Document)(nil)

// Open parses the PDF at path. The returned document holds the file open
// until Close.
func Open(path string) (*Document, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open pdf %s: %v", domain.ErrExtraction, path, err)
	}
	return &Document{reader: r, closer: f}, nil
}

// FromBytes parses an in-memory PDF.
func FromBytes(data []byte) (*Document, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: parse pdf: %v", domain.ErrExtraction, err)
	}
	return &Document{reader: r}, nil
}

// PageCount returns the number of pages.
func (d *Document) PageCount() int {
	return d.reader.NumPage()
}

// Page returns the 1-based page n.
func (d *Document) Page(n int) (extract.Page, error) {
	p := d.reader.Page(n)
	if p.V.IsNull() {
		return nil, fmt.Errorf("%w: page %d missing", domain.ErrExtraction, n)
	}
	return &page{p: p}, nil
}

// Close releases the underlying file, if any.
func (d *Document) Close() error {
	if d.closer == nil {
		return nil
	}
	if err := d.closer.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return fmt.Errorf("close pdf: %w", err)
	}
	return nil
}

// page implements extract.Page over one pdf.Page.
type page struct {
	p pdf.Page
}

// Size returns the MediaBox dimensions, walking the Parent chain for
// inherited boxes and falling back to US Letter.
func (pg *page) Size() (float64, float64) {
	box := findMediaBox(pg.p.V)
	if box.IsNull() || box.Len() < 4 {
		return defaultPageWidth, defaultPageHeight
	}
	w := box.Index(2).Float64() - box.Index(0).Float64()
	h := box.Index(3).Float64() - box.Index(1).Float64()
	if w <= 0 || h <= 0 {
		return defaultPageWidth, defaultPageHeight
	}
	return w, h
}

// Lines reads the page's text rows top to bottom. The underlying parser
// panics on malformed content streams, so the panic is converted to an
// error here and handled by the extractor's skip-page policy.
func (pg *page) Lines() (lines []extract.Line, err error) {
	defer func() {
		if r := recover(); r != nil {
			lines = nil
			err = fmt.Errorf("%w: content stream: %v", domain.ErrExtraction, r)
		}
	}()

	rows, err := pg.p.GetTextByRow()
	if err != nil {
		return nil, fmt.Errorf("%w: text rows: %v", domain.ErrExtraction, err)
	}

	_, pageH := pg.Size()

	// Top of page first. Row positions are PDF y coordinates (origin at the
	// bottom), so descending position is reading order.
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Position > rows[j].Position
	})

	lines = make([]extract.Line, 0, len(rows))
	for _, row := range rows {
		line := rowToLine(row, pageH)
		if len(line.Spans) > 0 {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

// rowToLine merges a row's glyph runs into word spans, flipping the y axis.
func rowToLine(row *pdf.Row, pageH float64) extract.Line {
	var line extract.Line
	var cur extract.Span
	var prev pdf.Text
	open := false

	flush := func(trailingSpace bool) {
		if !open {
			return
		}
		if trailingSpace {
			cur.Text += " "
		}
		line.Spans = append(line.Spans, cur)
		open = false
	}

	for _, t := range row.Content {
		if t.S == "" {
			continue
		}
		box := glyphBox(t, pageH)
		if open && wordGap(prev, t) {
			flush(true)
		}
		if !open {
			cur = extract.Span{Text: t.S, Box: box}
			open = true
		} else {
			cur.Text += t.S
			cur.Box = cur.Box.Union(box)
		}
		prev = t
	}
	flush(false)
	return line
}

// glyphBox approximates a glyph run's rectangle: the parser reports origin,
// advance width, and font size but no exact ascent metrics.
func glyphBox(t pdf.Text, pageH float64) domain.Rect {
	return domain.Rect{
		Left:   t.X,
		Top:    pageH - (t.Y + t.FontSize),
		Right:  t.X + t.W,
		Bottom: pageH - t.Y,
	}
}

func wordGap(prev, next pdf.Text) bool {
	gap := next.X - (prev.X + prev.W)
	return gap > prev.FontSize*wordGapFactor
}

// findMediaBox resolves MediaBox on the page or an ancestor Pages node.
func findMediaBox(v pdf.Value) pdf.Value {
	for !v.IsNull() {
		if box := v.Key("MediaBox"); !box.IsNull() {
			return box
		}
		v = v.Key("Parent")
	}
	return pdf.Value{}
}
