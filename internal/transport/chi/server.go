// Package chi implements the HTTP API: document upload and analysis,
// question answering, in-document search, and highlight lookup.
package chi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/docsift/docsift/internal/domain"
	"github.com/docsift/docsift/internal/storage"
	"github.com/docsift/docsift/internal/usecase/analysis"
	"github.com/docsift/docsift/internal/usecase/answer"
	healthuc "github.com/docsift/docsift/internal/usecase/health"
)

// Error codes returned in the JSON error body.
const (
	codeBadRequest        = "bad_request"
	codeValidationFailed  = "validation_failed"
	codeIndexNotBuilt     = "index_not_built"
	codeNoDocument        = "no_document"
	codeEmbeddingProvider = "embedding_provider_error"
	codeInternal          = "internal_error"
)

// uploadParseSlack is extra request-body headroom over the document size cap
// for multipart framing and form fields.
const uploadParseSlack = 1 << 20

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server exposes the analysis pipeline over HTTP.
type Server struct {
	analysis      *analysis.Service
	answers       *answer.Service
	health        *healthuc.Service
	files         *storage.Files
	maxUploadSize int64
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates the HTTP API server.
func NewServer(
	analysisSvc *analysis.Service,
	answerSvc *answer.Service,
	healthSvc *healthuc.Service,
	files *storage.Files,
	maxUploadSize int64,
	logger *zap.Logger,
) *Server {
	s := &Server{
		analysis:      analysisSvc,
		answers:       answerSvc,
		health:        healthSvc,
		files:         files,
		maxUploadSize: maxUploadSize,
		logger:        logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrIndexNotBuilt, http.StatusConflict, codeIndexNotBuilt),
		sentinelHandler(domain.ErrNoDocument, http.StatusConflict, codeNoDocument),
		sentinelHandler(domain.ErrEmbeddingProvider, http.StatusBadGateway, codeEmbeddingProvider),
	}
	return s
}

// Register mounts all routes on r.
func (s *Server) Register(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Post("/documents", s.UploadDocument)
		r.Delete("/documents", s.DeleteDocument)
		r.Post("/ask", s.Ask)
		r.Post("/search", s.Search)
		r.Post("/highlights", s.Highlights)
		r.Get("/stats", s.Stats)
	})
	r.Get("/health", s.Health)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
}

// uploadResponse is the envelope for POST /v1/documents.
type uploadResponse struct {
	Success        bool            `json:"success"`
	AnalysisResult *analysisResult `json:"analysis_result,omitempty"`
	FileInfo       *fileInfo       `json:"file_info,omitempty"`
	Error          string          `json:"error,omitempty"`
	ErrorType      string          `json:"error_type,omitempty"`
}

type analysisResult struct {
	analysis.Result
	Answer *answer.Result `json:"answer"`
}

type fileInfo struct {
	Filename string `json:"filename"`
	FilePath string `json:"file_path"`
	FileSize int64  `json:"file_size"`
}

// UploadDocument handles POST /v1/documents (multipart: file, query, user_id).
func (s *Server) UploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadSize+uploadParseSlack)
	if err := r.ParseMultipartForm(s.maxUploadSize + uploadParseSlack); err != nil {
		writeJSON(w, http.StatusBadRequest, uploadResponse{
			Success:   false,
			Error:     "invalid multipart form: " + err.Error(),
			ErrorType: "validation",
		})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, uploadResponse{
			Success:   false,
			Error:     "missing file field",
			ErrorType: "validation",
		})
		return
	}
	defer func() { _ = file.Close() }()

	content, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, uploadResponse{
			Success:   false,
			Error:     "failed to read upload: " + err.Error(),
			ErrorType: "validation",
		})
		return
	}

	result, err := s.analysis.Analyze(r.Context(), content, header.Filename)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			writeJSON(w, http.StatusBadRequest, uploadResponse{
				Success:   false,
				Error:     domain.ValidationReason(err),
				ErrorType: "validation",
			})
			return
		}
		s.logger.Error("Document analysis failed", zap.Error(err))
		writeJSON(w, http.StatusUnprocessableEntity, uploadResponse{
			Success:   false,
			Error:     safeMessage(err),
			ErrorType: "processing",
		})
		return
	}

	ar := &analysisResult{Result: result}

	// Best effort: a failed initial answer never fails the upload.
	if query := r.FormValue("query"); query != "" {
		ans, askErr := s.answers.Ask(r.Context(), query, answer.DefaultTopK)
		if askErr != nil {
			s.logger.Warn("Initial query failed after analysis", zap.Error(askErr))
		} else {
			ar.Answer = &ans
		}
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		Success:        true,
		AnalysisResult: ar,
		FileInfo: &fileInfo{
			Filename: header.Filename,
			FilePath: result.Metadata.FilePath,
			FileSize: int64(len(content)),
		},
	})
}

// DeleteDocument handles DELETE /v1/documents: discards the session and the
// stored file.
func (s *Server) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	removed, err := s.analysis.Reset()
	if err != nil {
		s.logger.Error("Failed to reset document session", zap.Error(err))
		writeError(w, http.StatusInternalServerError, codeInternal, "failed to remove stored document")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "removed": removed})
}

type askRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k"`
}

// Ask handles POST /v1/ask.
func (s *Server) Ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "question is required")
		return
	}

	result, err := s.answers.Ask(r.Context(), req.Question, req.TopK)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type searchResponse struct {
	Query        string                `json:"query"`
	Results      []domain.RetrievalHit `json:"results"`
	TotalResults int                   `json:"total_results"`
}

// defaultSearchTopK is the retrieval depth for search-within-document.
const defaultSearchTopK = 10

// Search handles POST /v1/search: raw retrieval hits without synthesis.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "query is required")
		return
	}
	if req.TopK <= 0 {
		req.TopK = defaultSearchTopK
	}

	hits, err := s.answers.Retrieve(r.Context(), req.Query, req.TopK)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{
		Query:        req.Query,
		Results:      hits,
		TotalResults: len(hits),
	})
}

type highlightsRequest struct {
	SentenceIDs []int `json:"sentence_ids"`
}

type highlightsResponse struct {
	Highlights []domain.Highlight `json:"highlights"`
}

// Highlights handles POST /v1/highlights. Unknown ids are silently omitted.
func (s *Server) Highlights(w http.ResponseWriter, r *http.Request) {
	var req highlightsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}

	highlights, err := s.answers.Highlights(req.SentenceIDs)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, highlightsResponse{Highlights: highlights})
}

type statsResponse struct {
	storage.Stats
	UploadDir string `json:"upload_dir"`
}

// Stats handles GET /v1/stats.
func (s *Server) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := s.files.Stats()
	if err != nil {
		s.logger.Error("Failed to read upload stats", zap.Error(err))
		writeError(w, http.StatusInternalServerError, codeInternal, "failed to read upload stats")
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{Stats: st, UploadDir: s.files.Dir()})
}

// Health handles GET /health.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())
	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

// --- error plumbing ---

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeMessage keeps internal details out of client-facing errors for
// unclassified failures.
func safeMessage(err error) string {
	for _, sentinel := range []error{
		domain.ErrValidation, domain.ErrExtraction,
		domain.ErrIndexNotBuilt, domain.ErrNoDocument, domain.ErrEmbeddingProvider,
	} {
		if errors.Is(err, sentinel) {
			return err.Error()
		}
	}
	return "internal error"
}

func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, err.Error())
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	for _, h := range s.errorHandlers {
		if h(w, err) {
			return
		}
	}
	s.logger.Error("Unhandled domain error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
}
