package domain

// BBox is a rectangle in page-fraction units. Each field is a fraction of the
// page width or height in [0, 1], with the origin at the top-left corner, so
// the same box renders correctly at any resolution.
type BBox struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rect is a rectangle in the document's native coordinate units, origin at
// the top-left corner of the page.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
}

// Width returns the horizontal extent of the rectangle.
func (r Rect) Width() float64 { return r.Right - r.Left }

// Height returns the vertical extent of the rectangle.
func (r Rect) Height() float64 { return r.Bottom - r.Top }

// Union expands the rectangle to cover both r and other.
func (r Rect) Union(other Rect) Rect {
	if other.Left < r.Left {
		r.Left = other.Left
	}
	if other.Top < r.Top {
		r.Top = other.Top
	}
	if other.Right > r.Right {
		r.Right = other.Right
	}
	if other.Bottom > r.Bottom {
		r.Bottom = other.Bottom
	}
	return r
}

// SentenceRecord is the atomic retrievable unit of an analyzed document.
// IDs are dense: across one document they form exactly [0, N).
type SentenceRecord struct {
	ID           int    `json:"id"`
	Text         string `json:"text"`
	Page         int    `json:"page"` // 1-based
	BBox         BBox   `json:"bbox"`
	AbsoluteBBox Rect   `json:"absolute_bbox"`
}

// PageRecord describes one page of an extracted document. Pages with no
// extractable sentences still appear with an empty SentenceIDs slice.
type PageRecord struct {
	PageNumber  int     `json:"page_number"` // 1-based
	SentenceIDs []int   `json:"sentence_ids"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
}

// Extraction is the result of walking a whole document.
type Extraction struct {
	TotalPages  int              `json:"total_pages"`
	Sentences   []SentenceRecord `json:"sentences"`
	Pages       []PageRecord     `json:"pages"`
	FailedPages int              `json:"failed_pages"`
}

// RetrievalHit is one ranked retrieval result.
type RetrievalHit struct {
	SentenceID int     `json:"sentence_id"`
	Text       string  `json:"text"`
	Page       int     `json:"page"`
	BBox       BBox    `json:"bbox"`
	Score      float32 `json:"score"`
}

// Source correlates a line of synthesized answer text back to the exact
// sentence, page, and similarity score it was grounded on.
type Source struct {
	SentenceID int     `json:"sentence_id"`
	Page       int     `json:"page"`
	Score      float32 `json:"score"`
}

// Highlight carries the geometry needed to draw an overlay for one sentence.
type Highlight struct {
	SentenceID int    `json:"sentence_id"`
	Page       int    `json:"page"`
	BBox       BBox   `json:"bbox"`
	Text       string `json:"text"`
}
