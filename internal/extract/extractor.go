package extract

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/docsift/docsift/internal/domain"
)

// DefaultMinSentenceLen is the minimum trimmed sentence length kept by the
// extractor. Shorter fragments are almost always artifacts (page numbers,
// stray header runs) rather than retrievable content.
const DefaultMinSentenceLen = 10

// Extractor walks a Document and emits sentence records with dense ids.
// A page whose extraction fails is skipped and counted; one bad page never
// aborts the document.
type Extractor struct {
	minSentenceLen int
	logger         *zap.Logger
}

// New creates an extractor with the default minimum sentence length.
func New(logger *zap.Logger) *Extractor {
	return &Extractor{minSentenceLen: DefaultMinSentenceLen, logger: logger}
}

// WithMinSentenceLen overrides the minimum trimmed sentence length.
func (e *Extractor) WithMinSentenceLen(n int) *Extractor {
	if n > 0 {
		e.minSentenceLen = n
	}
	return e
}

// Extract walks every page of doc and returns the flat sentence list plus
// per-page records. The caller owns doc and is responsible for closing it.
func (e *Extractor) Extract(ctx context.Context, doc Document) (domain.Extraction, error) {
	total := doc.PageCount()
	ext := domain.Extraction{
		TotalPages: total,
		Sentences:  []domain.SentenceRecord{},
		Pages:      make([]domain.PageRecord, 0, total),
	}

	for n := 1; n <= total; n++ {
		if err := ctx.Err(); err != nil {
			return domain.Extraction{}, fmt.Errorf("extract page %d: %w", n, err)
		}

		rec, err := e.extractPage(doc, n, &ext.Sentences)
		if err != nil {
			ext.FailedPages++
			e.logger.Warn("Skipping unreadable page",
				zap.Int("page", n),
				zap.Error(err),
			)
			rec = domain.PageRecord{PageNumber: n, SentenceIDs: []int{}}
		}
		ext.Pages = append(ext.Pages, rec)
	}

	return ext, nil
}

func (e *Extractor) extractPage(doc Document, n int, sentences *[]domain.SentenceRecord) (domain.PageRecord, error) {
	page, err := doc.Page(n)
	if err != nil {
		return domain.PageRecord{}, fmt.Errorf("open page: %w", err)
	}

	width, height := page.Size()
	rec := domain.PageRecord{
		PageNumber:  n,
		SentenceIDs: []int{},
		Width:       width,
		Height:      height,
	}

	lines, err := page.Lines()
	if err != nil {
		return domain.PageRecord{}, fmt.Errorf("read lines: %w", err)
	}

	for _, line := range lines {
		text, box := assembleLine(line)
		for _, s := range SplitSentences(text) {
			if len([]rune(strings.TrimSpace(s))) <= e.minSentenceLen {
				continue
			}
			id := len(*sentences)
			*sentences = append(*sentences, domain.SentenceRecord{
				ID:           id,
				Text:         strings.TrimSpace(s),
				Page:         n,
				BBox:         normalizeBox(box, width, height),
				AbsoluteBBox: box,
			})
			rec.SentenceIDs = append(rec.SentenceIDs, id)
		}
	}

	return rec, nil
}

// assembleLine concatenates span texts and unions their boxes.
func assembleLine(line Line) (string, domain.Rect) {
	var sb strings.Builder
	var box domain.Rect
	first := true

	for _, span := range line.Spans {
		if span.Text == "" {
			continue
		}
		sb.WriteString(span.Text)
		if first {
			box = span.Box
			first = false
		} else {
			box = box.Union(span.Box)
		}
	}
	return sb.String(), box
}

// normalizeBox converts a native-unit rectangle to page fractions, clamped
// into [0, 1] so rounding noise in the source geometry never escapes.
func normalizeBox(box domain.Rect, pageWidth, pageHeight float64) domain.BBox {
	if pageWidth <= 0 || pageHeight <= 0 {
		return domain.BBox{}
	}
	left := clamp01(box.Left / pageWidth)
	top := clamp01(box.Top / pageHeight)
	right := clamp01(box.Right / pageWidth)
	bottom := clamp01(box.Bottom / pageHeight)
	return domain.BBox{
		Left:   left,
		Top:    top,
		Width:  right - left,
		Height: bottom - top,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
