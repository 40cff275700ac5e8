package pdfdoc

import (
	"errors"
	"testing"

	"github.com/ledongthuc/pdf"

	"github.com/docsift/docsift/internal/domain"
)

func TestFromBytesRejectsGarbage(t *testing.T) {
	_, err := FromBytes([]byte("definitely not a pdf"))
	if !errors.Is(err, domain.ErrExtraction) {
		t.Errorf("FromBytes() error = %v, want ErrExtraction", err)
	}
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open("/nonexistent/file.pdf")
	if !errors.Is(err, domain.ErrExtraction) {
		t.Errorf("Open() error = %v, want ErrExtraction", err)
	}
}

func TestGlyphBoxFlipsYAxis(t *testing.T) {
	// A 12pt glyph run at PDF baseline y=700 on a 792pt page sits 80pt from
	// the top edge.
	box := glyphBox(pdf.Text{X: 50, Y: 700, W: 30, FontSize: 12}, 792)

	want := domain.Rect{Left: 50, Top: 80, Right: 80, Bottom: 92}
	if box != want {
		t.Errorf("glyphBox() = %+v, want %+v", box, want)
	}
}

func TestWordGap(t *testing.T) {
	a := pdf.Text{X: 10, W: 20, FontSize: 10}

	// Adjacent run: no gap.
	if wordGap(a, pdf.Text{X: 30}) {
		t.Error("wordGap() = true for touching runs")
	}
	// Tiny kerning gap stays inside the word.
	if wordGap(a, pdf.Text{X: 32}) {
		t.Error("wordGap() = true for a sub-threshold gap")
	}
	// A gap wider than the threshold separates words.
	if !wordGap(a, pdf.Text{X: 40}) {
		t.Error("wordGap() = false for a wide gap")
	}
}

func TestRowToLineMergesGlyphRuns(t *testing.T) {
	row := &pdf.Row{Content: pdf.TextHorizontal{
		{S: "Hel", X: 10, Y: 700, W: 15, FontSize: 10},
		{S: "lo", X: 25, Y: 700, W: 10, FontSize: 10},
		{S: "world", X: 50, Y: 700, W: 25, FontSize: 10},
	}}

	line := rowToLine(row, 792)
	if len(line.Spans) != 2 {
		t.Fatalf("len(Spans) = %d, want 2", len(line.Spans))
	}
	if line.Spans[0].Text != "Hello " {
		t.Errorf("Spans[0].Text = %q, want %q", line.Spans[0].Text, "Hello ")
	}
	if line.Spans[1].Text != "world" {
		t.Errorf("Spans[1].Text = %q, want %q", line.Spans[1].Text, "world")
	}

	// The first span covers both merged runs.
	if got := line.Spans[0].Box; got.Left != 10 || got.Right != 35 {
		t.Errorf("Spans[0].Box = %+v, want left 10 right 35", got)
	}
}

func TestRowToLineSkipsEmptyRuns(t *testing.T) {
	row := &pdf.Row{Content: pdf.TextHorizontal{
		{S: "", X: 10, Y: 700},
		{S: "text", X: 10, Y: 700, W: 20, FontSize: 10},
	}}

	line := rowToLine(row, 792)
	if len(line.Spans) != 1 || line.Spans[0].Text != "text" {
		t.Errorf("Spans = %+v, want one span %q", line.Spans, "text")
	}
}
