// Package analysis coordinates the upload-and-analyze workflow: validation,
// persistence, extraction, index build, and session publication.
package analysis

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/docsift/docsift/internal/domain"
	"github.com/docsift/docsift/internal/index"
	"github.com/docsift/docsift/internal/metrics"
	"github.com/docsift/docsift/internal/session"
)

// DefaultMaxFileSize caps uploads at 50 MB.
const DefaultMaxFileSize = 50 * 1024 * 1024

var pdfMagic = []byte("%PDF-")

// Metadata summarizes one completed analysis.
type Metadata struct {
	FilePath         string    `json:"file_path"`
	OriginalFilename string    `json:"original_filename"`
	FileSize         int64     `json:"file_size"`
	TotalPages       int       `json:"total_pages"`
	TotalSentences   int       `json:"total_sentences"`
	FailedPages      int       `json:"failed_pages"`
	AnalyzedAt       time.Time `json:"analyzed_at"`
}

// Result is the analysis envelope returned to the caller.
type Result struct {
	Metadata  Metadata            `json:"document_metadata"`
	Pages     []domain.PageRecord `json:"pages"`
	IndexInfo session.IndexInfo   `json:"index_info"`
}

// Service runs document analyses. At most one analysis is in flight; the
// finished session replaces the previous one wholesale (single active
// document per service instance).
type Service struct {
	files       FileStore
	opener      DocumentOpener
	extractor   Extractor
	embedder    Embedder // nil = retrieval unavailable
	sessions    *session.Holder
	maxFileSize int64
	logger      *zap.Logger

	mu sync.Mutex
}

// New creates an analysis service. embedder may be nil, in which case every
// analysis completes with index_built=false.
func New(
	files FileStore,
	opener DocumentOpener,
	extractor Extractor,
	embedder Embedder,
	sessions *session.Holder,
	logger *zap.Logger,
) *Service {
	return &Service{
		files:       files,
		opener:      opener,
		extractor:   extractor,
		embedder:    embedder,
		sessions:    sessions,
		maxFileSize: DefaultMaxFileSize,
		logger:      logger,
	}
}

// WithMaxFileSize overrides the upload size cap.
func (s *Service) WithMaxFileSize(n int64) *Service {
	if n > 0 {
		s.maxFileSize = n
	}
	return s
}

// Validate applies the upload rules in order; the first failure wins.
// No side effects are performed for invalid uploads.
func (s *Service) Validate(content []byte, filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext != ".pdf" {
		return domain.NewValidation("invalid file type %q, only PDF files are accepted", ext)
	}
	if len(content) == 0 {
		return domain.NewValidation("file is empty")
	}
	if int64(len(content)) > s.maxFileSize {
		return domain.NewValidation("file too large, maximum size is %d MB", s.maxFileSize/(1024*1024))
	}
	if !bytes.HasPrefix(content, pdfMagic) {
		return domain.NewValidation("invalid PDF file format")
	}
	return nil
}

// Analyze validates and persists the upload, extracts sentences, builds the
// retrieval index, and publishes the new session. Index build failure is not
// fatal: the session is published with index_built=false and downstream
// question answering degrades.
func (s *Service) Analyze(ctx context.Context, content []byte, filename string) (Result, error) {
	if err := s.Validate(content, filename); err != nil {
		metrics.AnalysisTotal.WithLabelValues("validation").Inc()
		return Result{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.files.Save(content, filename)
	if err != nil {
		metrics.AnalysisTotal.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("persist upload: %w", err)
	}

	extraction, err := s.extract(ctx, path)
	if err != nil {
		metrics.AnalysisTotal.WithLabelValues("error").Inc()
		// The stored file is useless without an extraction.
		if _, rmErr := s.files.Remove(path); rmErr != nil {
			s.logger.Warn("Failed to remove unreadable upload", zap.String("path", path), zap.Error(rmErr))
		}
		return Result{}, err
	}

	idx, info := s.buildIndex(ctx, extraction.Sentences)

	sess := &session.Session{
		Extraction: extraction,
		Index:      idx,
		Info:       info,
		FilePath:   path,
		Filename:   filename,
		AnalyzedAt: time.Now(),
	}
	s.publish(sess)

	outcome := "indexed"
	if !info.Built {
		outcome = "degraded"
	}
	metrics.AnalysisTotal.WithLabelValues(outcome).Inc()

	s.logger.Info("Document analyzed",
		zap.String("file", filename),
		zap.Int("pages", extraction.TotalPages),
		zap.Int("sentences", len(extraction.Sentences)),
		zap.Int("failed_pages", extraction.FailedPages),
		zap.Bool("index_built", info.Built),
	)

	return Result{
		Metadata: Metadata{
			FilePath:         path,
			OriginalFilename: filename,
			FileSize:         int64(len(content)),
			TotalPages:       extraction.TotalPages,
			TotalSentences:   len(extraction.Sentences),
			FailedPages:      extraction.FailedPages,
			AnalyzedAt:       sess.AnalyzedAt,
		},
		Pages:     extraction.Pages,
		IndexInfo: info,
	}, nil
}

// Reset discards the active session and deletes its stored file.
// Reports whether a session existed.
func (s *Service) Reset() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.sessions.Clear()
	if prev == nil {
		return false, nil
	}
	if _, err := s.files.Remove(prev.FilePath); err != nil {
		return true, fmt.Errorf("remove stored document: %w", err)
	}
	return true, nil
}

// extract opens the stored document and walks it, releasing the handle on
// every path.
func (s *Service) extract(ctx context.Context, path string) (domain.Extraction, error) {
	doc, err := s.opener.Open(path)
	if err != nil {
		return domain.Extraction{}, fmt.Errorf("open document: %w", err)
	}
	defer func() {
		if cerr := doc.Close(); cerr != nil {
			s.logger.Warn("Failed to close document", zap.String("path", path), zap.Error(cerr))
		}
	}()

	extraction, err := s.extractor.Extract(ctx, doc)
	if err != nil {
		return domain.Extraction{}, fmt.Errorf("extract document: %w", err)
	}
	return extraction, nil
}

// buildIndex encodes all sentences and constructs the index. Any failure
// degrades to an unbuilt index instead of failing the analysis.
func (s *Service) buildIndex(ctx context.Context, sentences []domain.SentenceRecord) (*index.Index, session.IndexInfo) {
	if s.embedder == nil {
		s.logger.Warn("No embedding provider configured, skipping index build")
		return nil, session.IndexInfo{}
	}
	if len(sentences) == 0 {
		return nil, session.IndexInfo{}
	}

	texts := make([]string, len(sentences))
	for i, sent := range sentences {
		texts[i] = sent.Text
	}

	batch, err := s.embedder.BatchEmbed(ctx, texts)
	if err != nil {
		s.logger.Warn("Embedding failed, analysis degrades to extraction only", zap.Error(err))
		return nil, session.IndexInfo{}
	}
	if len(batch.Embeddings) != len(sentences) || len(batch.Embeddings[0]) == 0 {
		s.logger.Warn("Embedding batch shape mismatch, skipping index build",
			zap.Int("vectors", len(batch.Embeddings)),
			zap.Int("sentences", len(sentences)),
		)
		return nil, session.IndexInfo{}
	}

	dim := len(batch.Embeddings[0])
	entries := make([]index.Entry, len(sentences))
	for i := range sentences {
		entries[i] = index.Entry{ID: sentences[i].ID, Vector: batch.Embeddings[i]}
	}

	idx, err := index.Build(dim, entries)
	if err != nil {
		s.logger.Warn("Index build failed, analysis degrades to extraction only", zap.Error(err))
		return nil, session.IndexInfo{}
	}

	return idx, session.IndexInfo{Built: true, Size: idx.Size(), Dimension: dim}
}

// publish swaps in the new session. The previous document's file stays on
// disk until an explicit Reset; only the index is discarded.
func (s *Service) publish(sess *session.Session) {
	if prev := s.sessions.Replace(sess); prev != nil {
		s.logger.Info("Replaced active document session",
			zap.String("previous", prev.Filename),
			zap.String("current", sess.Filename),
		)
	}
}
