// Package extract turns page-structured documents into flat, ordered lists of
// sentence records tagged with page numbers and normalized bounding boxes.
package extract

import "github.com/docsift/docsift/internal/domain"

// Document is a scoped handle over a page-structured document. It is acquired
// by the caller and must be closed on every exit path.
type Document interface {
	// PageCount returns the number of pages in the document.
	PageCount() int
	// Page returns the 1-based page n.
	Page(n int) (Page, error)
	// Close releases the underlying resources.
	Close() error
}

// Page exposes one page's dimensions and its text lines with span geometry.
type Page interface {
	// Size returns the page width and height in native units.
	Size() (width, height float64)
	// Lines returns the page's text lines in reading order.
	Lines() ([]Line, error)
}

// Line is one visual row of text assembled from spans.
type Line struct {
	Spans []Span
}

// Span is a run of text with its box in native top-left-origin units.
type Span struct {
	Text string
	Box  domain.Rect
}
