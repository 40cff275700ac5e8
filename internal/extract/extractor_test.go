package extract

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/docsift/docsift/internal/domain"
)

// fakeDoc is an in-memory Document for extractor tests.
type fakeDoc struct {
	pages []fakePage
}

type fakePage struct {
	width, height float64
	lines         []Line
	openErr       error
	linesErr      error
}

func (d *fakeDoc) PageCount() int { return len(d.pages) }

func (d *fakeDoc) Page(n int) (Page, error) {
	p := d.pages[n-1]
	if p.openErr != nil {
		return nil, p.openErr
	}
	return &p, nil
}

func (d *fakeDoc) Close() error { return nil }

func (p *fakePage) Size() (float64, float64) { return p.width, p.height }

func (p *fakePage) Lines() ([]Line, error) {
	if p.linesErr != nil {
		return nil, p.linesErr
	}
	return p.lines, nil
}

func textLine(text string, box domain.Rect) Line {
	return Line{Spans: []Span{{Text: text, Box: box}}}
}

func TestExtractAssignsDenseIDs(t *testing.T) {
	doc := &fakeDoc{pages: []fakePage{
		{
			width: 100, height: 200,
			lines: []Line{
				textLine("The first long sentence lives here. The second long sentence follows it.",
					domain.Rect{Left: 10, Top: 20, Right: 90, Bottom: 30}),
			},
		},
		{
			width: 100, height: 200,
			lines: []Line{
				textLine("A third sentence sits on page two.",
					domain.Rect{Left: 5, Top: 40, Right: 95, Bottom: 50}),
			},
		},
	}}

	ext, err := New(zap.NewNop()).Extract(context.Background(), doc)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if ext.TotalPages != 2 {
		t.Errorf("TotalPages = %d, want 2", ext.TotalPages)
	}
	if len(ext.Sentences) != 3 {
		t.Fatalf("len(Sentences) = %d, want 3", len(ext.Sentences))
	}
	for i, s := range ext.Sentences {
		if s.ID != i {
			t.Errorf("Sentences[%d].ID = %d, want %d", i, s.ID, i)
		}
	}
	if got := ext.Sentences[2].Page; got != 2 {
		t.Errorf("third sentence Page = %d, want 2", got)
	}

	// Page records reference exactly the ids extracted from that page.
	if got := ext.Pages[0].SentenceIDs; len(got) != 2 || got[0] != 0 || got[1] != 1 {
		t.Errorf("page 1 SentenceIDs = %v, want [0 1]", got)
	}
	if got := ext.Pages[1].SentenceIDs; len(got) != 1 || got[0] != 2 {
		t.Errorf("page 2 SentenceIDs = %v, want [2]", got)
	}
}

func TestExtractSkipsFailedPages(t *testing.T) {
	doc := &fakeDoc{pages: []fakePage{
		{
			width: 100, height: 100,
			lines: []Line{textLine("A perfectly readable sentence on page one.",
				domain.Rect{Left: 0, Top: 0, Right: 50, Bottom: 10})},
		},
		{linesErr: errors.New("corrupt page stream")},
		{
			width: 100, height: 100,
			lines: []Line{textLine("Another readable sentence on page three.",
				domain.Rect{Left: 0, Top: 0, Right: 50, Bottom: 10})},
		},
	}}

	ext, err := New(zap.NewNop()).Extract(context.Background(), doc)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if ext.FailedPages != 1 {
		t.Errorf("FailedPages = %d, want 1", ext.FailedPages)
	}
	if len(ext.Sentences) != 2 {
		t.Errorf("len(Sentences) = %d, want 2", len(ext.Sentences))
	}
	// The failed page still occupies its slot, with no sentences.
	if len(ext.Pages) != 3 {
		t.Fatalf("len(Pages) = %d, want 3", len(ext.Pages))
	}
	if got := ext.Pages[1]; got.PageNumber != 2 || len(got.SentenceIDs) != 0 {
		t.Errorf("failed page record = %+v, want page 2 with no sentences", got)
	}
	// IDs stay dense across the gap.
	if ext.Sentences[0].ID != 0 || ext.Sentences[1].ID != 1 {
		t.Errorf("ids = [%d %d], want [0 1]", ext.Sentences[0].ID, ext.Sentences[1].ID)
	}
}

func TestExtractDropsShortFragments(t *testing.T) {
	doc := &fakeDoc{pages: []fakePage{
		{
			width: 100, height: 100,
			lines: []Line{
				textLine("Short. Ok! This sentence is long enough to keep.",
					domain.Rect{Left: 0, Top: 0, Right: 100, Bottom: 10}),
			},
		},
	}}

	ext, err := New(zap.NewNop()).Extract(context.Background(), doc)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if len(ext.Sentences) != 1 {
		t.Fatalf("len(Sentences) = %d, want 1", len(ext.Sentences))
	}
	if got := ext.Sentences[0].Text; got != "This sentence is long enough to keep." {
		t.Errorf("kept sentence = %q", got)
	}
}

func TestExtractNormalizesBoxes(t *testing.T) {
	doc := &fakeDoc{pages: []fakePage{
		{
			width: 200, height: 400,
			lines: []Line{textLine("A sentence used to verify geometry scaling.",
				domain.Rect{Left: 20, Top: 100, Right: 180, Bottom: 120})},
		},
	}}

	ext, err := New(zap.NewNop()).Extract(context.Background(), doc)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(ext.Sentences) != 1 {
		t.Fatalf("len(Sentences) = %d, want 1", len(ext.Sentences))
	}

	got := ext.Sentences[0].BBox
	want := domain.BBox{Left: 0.1, Top: 0.25, Width: 0.8, Height: 0.05}
	const eps = 1e-9
	if diff := got.Left - want.Left; diff > eps || diff < -eps {
		t.Errorf("Left = %v, want %v", got.Left, want.Left)
	}
	if diff := got.Top - want.Top; diff > eps || diff < -eps {
		t.Errorf("Top = %v, want %v", got.Top, want.Top)
	}
	if diff := got.Width - want.Width; diff > eps || diff < -eps {
		t.Errorf("Width = %v, want %v", got.Width, want.Width)
	}
	if diff := got.Height - want.Height; diff > eps || diff < -eps {
		t.Errorf("Height = %v, want %v", got.Height, want.Height)
	}
}

func TestExtractClampsOutOfPageGeometry(t *testing.T) {
	doc := &fakeDoc{pages: []fakePage{
		{
			width: 100, height: 100,
			lines: []Line{textLine("Geometry spilling outside the page gets clamped.",
				domain.Rect{Left: -10, Top: -5, Right: 150, Bottom: 110})},
		},
	}}

	ext, err := New(zap.NewNop()).Extract(context.Background(), doc)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	got := ext.Sentences[0].BBox
	if got.Left != 0 || got.Top != 0 || got.Width != 1 || got.Height != 1 {
		t.Errorf("BBox = %+v, want full page", got)
	}
}

func TestExtractCancelledContext(t *testing.T) {
	doc := &fakeDoc{pages: []fakePage{{width: 100, height: 100}}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := New(zap.NewNop()).Extract(ctx, doc); !errors.Is(err, context.Canceled) {
		t.Errorf("Extract() error = %v, want context.Canceled", err)
	}
}

func TestAssembleLineUnionsSpans(t *testing.T) {
	line := Line{Spans: []Span{
		{Text: "Hello ", Box: domain.Rect{Left: 10, Top: 10, Right: 40, Bottom: 20}},
		{Text: "world", Box: domain.Rect{Left: 40, Top: 8, Right: 80, Bottom: 22}},
	}}

	text, box := assembleLine(line)
	if text != "Hello world" {
		t.Errorf("text = %q, want %q", text, "Hello world")
	}
	want := domain.Rect{Left: 10, Top: 8, Right: 80, Bottom: 22}
	if box != want {
		t.Errorf("box = %+v, want %+v", box, want)
	}
}
