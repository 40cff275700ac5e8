package docsift

import "time"

// BBox is a page-relative rectangle: all fields are fractions of the page
// dimensions in [0, 1], origin at the top-left corner.
type BBox struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// PageRecord describes one page of the analyzed document.
type PageRecord struct {
	PageNumber  int     `json:"page_number"`
	SentenceIDs []int   `json:"sentence_ids"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
}

// IndexInfo describes the retrieval index attached to the document.
type IndexInfo struct {
	Built     bool `json:"index_built"`
	Size      int  `json:"size"`
	Dimension int  `json:"dimension"`
}

// DocumentMetadata summarizes an analyzed document.
type DocumentMetadata struct {
	OriginalFilename string    `json:"original_filename"`
	FileSize         int64     `json:"file_size"`
	TotalPages       int       `json:"total_pages"`
	TotalSentences   int       `json:"total_sentences"`
	FailedPages      int       `json:"failed_pages"`
	AnalyzedAt       time.Time `json:"analyzed_at"`
}

// AnalysisResult is the per-upload analysis payload. Answer is present only
// when the upload carried an initial query.
type AnalysisResult struct {
	Metadata  DocumentMetadata `json:"document_metadata"`
	Pages     []PageRecord     `json:"pages"`
	IndexInfo IndexInfo        `json:"index_info"`
	Answer    *Answer          `json:"answer"`
}

// FileInfo describes the stored upload.
type FileInfo struct {
	Filename string `json:"filename"`
	FilePath string `json:"file_path"`
	FileSize int64  `json:"file_size"`
}

// UploadResult is the envelope returned by Upload.
type UploadResult struct {
	Success        bool            `json:"success"`
	AnalysisResult *AnalysisResult `json:"analysis_result"`
	FileInfo       *FileInfo       `json:"file_info"`
	ErrorMessage   string          `json:"error"`
	ErrorType      string          `json:"error_type"`
}

// Source ties an answer back to a retrieved sentence.
type Source struct {
	SentenceID int     `json:"sentence_id"`
	Page       int     `json:"page"`
	Score      float32 `json:"score"`
}

// Answer is the question-answering result. Answer is nil when no index is
// available for the active document.
type Answer struct {
	Answer  *string  `json:"answer"`
	Context string   `json:"context"`
	Sources []Source `json:"sources"`
}

// RetrievalHit is one search result.
type RetrievalHit struct {
	SentenceID int     `json:"sentence_id"`
	Text       string  `json:"text"`
	Page       int     `json:"page"`
	BBox       BBox    `json:"bbox"`
	Score      float32 `json:"score"`
}

// SearchResult is the response to Search.
type SearchResult struct {
	Query        string         `json:"query"`
	Results      []RetrievalHit `json:"results"`
	TotalResults int            `json:"total_results"`
}

// Highlight is a resolved sentence rectangle for viewer overlays.
type Highlight struct {
	SentenceID int    `json:"sentence_id"`
	Page       int    `json:"page"`
	BBox       BBox   `json:"bbox"`
	Text       string `json:"text"`
}

// Stats reports stored uploads.
type Stats struct {
	TotalFiles     int    `json:"total_files"`
	TotalSizeBytes int64  `json:"total_size_bytes"`
	UploadDir      string `json:"upload_dir"`
}

// HealthReport is the service health summary.
type HealthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
