package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	chirouter "github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/docsift/docsift/internal/domain"
	"github.com/docsift/docsift/internal/extract"
	"github.com/docsift/docsift/internal/session"
	"github.com/docsift/docsift/internal/storage"
	"github.com/docsift/docsift/internal/usecase/analysis"
	"github.com/docsift/docsift/internal/usecase/answer"
	healthuc "github.com/docsift/docsift/internal/usecase/health"
)

// --- pipeline fakes ---

type stubDoc struct{}

func (stubDoc) PageCount() int                 { return 1 }
func (stubDoc) Page(int) (extract.Page, error) { return nil, errors.New("not used") }
func (stubDoc) Close() error                   { return nil }

type stubOpener struct{}

func (stubOpener) Open(string) (extract.Document, error) { return stubDoc{}, nil }

type stubExtractor struct {
	extraction domain.Extraction
	err        error
}

func (s *stubExtractor) Extract(context.Context, extract.Document) (domain.Extraction, error) {
	if s.err != nil {
		return domain.Extraction{}, s.err
	}
	return s.extraction, nil
}

// stubEmbedder serves both document batches and queries with fixed vectors.
type stubEmbedder struct {
	byText map[string][]float32
}

func (s *stubEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	out := domain.BatchEmbeddingResult{}
	for _, t := range texts {
		out.Embeddings = append(out.Embeddings, s.byText[t])
	}
	return out, nil
}

func (s *stubEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	v, ok := s.byText[text]
	if !ok {
		return domain.EmbeddingResult{}, errors.New("unexpected query: " + text)
	}
	return domain.EmbeddingResult{Embedding: v}, nil
}

type stubCompleter struct {
	answer string
}

func (s *stubCompleter) Complete(context.Context, string) (string, error) {
	return s.answer, nil
}

// --- harness ---

func testExtraction() domain.Extraction {
	return domain.Extraction{
		TotalPages: 1,
		Sentences: []domain.SentenceRecord{
			{ID: 0, Text: "The capital of France is Paris.", Page: 1,
				BBox: domain.BBox{Left: 0.1, Top: 0.1, Width: 0.8, Height: 0.02}},
			{ID: 1, Text: "France borders Spain and Italy.", Page: 1,
				BBox: domain.BBox{Left: 0.1, Top: 0.2, Width: 0.8, Height: 0.02}},
		},
		Pages: []domain.PageRecord{{PageNumber: 1, SentenceIDs: []int{0, 1}, Width: 612, Height: 792}},
	}
}

func testEmbedder() *stubEmbedder {
	return &stubEmbedder{byText: map[string][]float32{
		"The capital of France is Paris.": {1, 0},
		"France borders Spain and Italy.": {0, 1},
		"capital?":                        {1, 0.2},
	}}
}

func newTestRouter(t *testing.T, completer answer.Completer) http.Handler {
	t.Helper()

	files, err := storage.New(t.TempDir())
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}

	emb := testEmbedder()
	holder := session.NewHolder()
	logger := zap.NewNop()

	analysisSvc := analysis.New(files, stubOpener{}, &stubExtractor{extraction: testExtraction()}, emb, holder, logger)
	answerSvc := answer.New(holder, emb, completer, logger)
	healthSvc := healthuc.New(nil, nil)

	server := NewServer(analysisSvc, answerSvc, healthSvc, files, analysis.DefaultMaxFileSize, logger)
	r := chirouter.NewRouter()
	server.Register(r)
	return r
}

func multipartBody(t *testing.T, filename string, content []byte, query string) (*bytes.Buffer, string) {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatal(err)
	}
	if query != "" {
		if err := mw.WriteField("query", query); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &body, mw.FormDataContentType()
}

func doUpload(t *testing.T, router http.Handler, filename string, content []byte, query string) *httptest.ResponseRecorder {
	t.Helper()

	body, contentType := multipartBody(t, filename, content, query)
	req := httptest.NewRequest("POST", "/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func doJSON(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

// --- upload ---

func TestUploadDocument(t *testing.T) {
	router := newTestRouter(t, nil)

	rr := doUpload(t, router, "france.pdf", []byte("%PDF-1.7 fake body"), "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var resp uploadResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success {
		t.Fatalf("Success = false: %s", resp.Error)
	}
	if resp.AnalysisResult == nil {
		t.Fatal("AnalysisResult missing")
	}
	if !resp.AnalysisResult.IndexInfo.Built {
		t.Error("index_built = false, want true")
	}
	if got := resp.AnalysisResult.Metadata.TotalSentences; got != 2 {
		t.Errorf("total_sentences = %d, want 2", got)
	}
	if resp.AnalysisResult.Answer != nil {
		t.Error("answer present without an upload query")
	}
	if resp.FileInfo == nil || resp.FileInfo.Filename != "france.pdf" {
		t.Errorf("FileInfo = %+v", resp.FileInfo)
	}
}

func TestUploadDocumentWithInitialQuery(t *testing.T) {
	router := newTestRouter(t, &stubCompleter{answer: "Paris."})

	rr := doUpload(t, router, "france.pdf", []byte("%PDF-1.7 fake body"), "capital?")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var resp uploadResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	ans := resp.AnalysisResult.Answer
	if ans == nil || ans.Answer == nil || *ans.Answer != "Paris." {
		t.Fatalf("initial answer = %+v, want Paris.", ans)
	}
	if len(ans.Sources) == 0 {
		t.Error("initial answer has no sources")
	}
}

func TestUploadDocumentValidationFailure(t *testing.T) {
	router := newTestRouter(t, nil)

	rr := doUpload(t, router, "notes.txt", []byte("plain text"), "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}

	var resp uploadResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Success {
		t.Error("Success = true for invalid upload")
	}
	if resp.ErrorType != "validation" {
		t.Errorf("error_type = %q, want validation", resp.ErrorType)
	}
	if !strings.Contains(resp.Error, "invalid file type") {
		t.Errorf("error = %q", resp.Error)
	}
}

func TestUploadDocumentMissingFileField(t *testing.T) {
	router := newTestRouter(t, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("query", "hello"); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("POST", "/v1/documents", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

// --- ask ---

func TestAskWithoutDocument(t *testing.T) {
	router := newTestRouter(t, nil)

	rr := doJSON(router, "POST", "/v1/ask", `{"question":"capital?"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 in the no-document state", rr.Code)
	}

	var resp struct {
		Answer  *string         `json:"answer"`
		Context string          `json:"context"`
		Sources []domain.Source `json:"sources"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Answer != nil || resp.Context != "" || len(resp.Sources) != 0 {
		t.Errorf("response = %+v, want empty no-document result", resp)
	}
}

func TestAskAfterUpload(t *testing.T) {
	router := newTestRouter(t, nil)

	if rr := doUpload(t, router, "france.pdf", []byte("%PDF-1.7 x"), ""); rr.Code != http.StatusOK {
		t.Fatalf("upload status = %d", rr.Code)
	}

	rr := doJSON(router, "POST", "/v1/ask", `{"question":"capital?","top_k":1}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Answer  *string         `json:"answer"`
		Context string          `json:"context"`
		Sources []domain.Source `json:"sources"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Answer == nil {
		t.Fatal("answer = null after indexing")
	}
	if resp.Context != "The capital of France is Paris." {
		t.Errorf("context = %q", resp.Context)
	}
	if len(resp.Sources) != 1 || resp.Sources[0].SentenceID != 0 {
		t.Errorf("sources = %+v", resp.Sources)
	}
}

func TestAskEmptyQuestion(t *testing.T) {
	router := newTestRouter(t, nil)

	rr := doJSON(router, "POST", "/v1/ask", `{"question":""}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestAskMalformedBody(t *testing.T) {
	router := newTestRouter(t, nil)

	rr := doJSON(router, "POST", "/v1/ask", `{not json`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

// --- search ---

func TestSearchWithoutIndex(t *testing.T) {
	router := newTestRouter(t, nil)

	rr := doJSON(router, "POST", "/v1/search", `{"query":"capital?"}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rr.Code)
	}

	var resp errorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Code != codeIndexNotBuilt {
		t.Errorf("code = %q, want %q", resp.Code, codeIndexNotBuilt)
	}
}

func TestSearchAfterUpload(t *testing.T) {
	router := newTestRouter(t, nil)

	if rr := doUpload(t, router, "france.pdf", []byte("%PDF-1.7 x"), ""); rr.Code != http.StatusOK {
		t.Fatalf("upload status = %d", rr.Code)
	}

	rr := doJSON(router, "POST", "/v1/search", `{"query":"capital?","top_k":2}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var resp searchResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.TotalResults != 2 || len(resp.Results) != 2 {
		t.Fatalf("results = %+v", resp)
	}
	if resp.Results[0].SentenceID != 0 {
		t.Errorf("top hit = %+v, want sentence 0", resp.Results[0])
	}
	if resp.Results[0].BBox.Width != 0.8 {
		t.Errorf("top hit bbox = %+v", resp.Results[0].BBox)
	}
}

// --- highlights ---

func TestHighlightsEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)

	if rr := doUpload(t, router, "france.pdf", []byte("%PDF-1.7 x"), ""); rr.Code != http.StatusOK {
		t.Fatalf("upload status = %d", rr.Code)
	}

	rr := doJSON(router, "POST", "/v1/highlights", `{"sentence_ids":[1,99]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var resp highlightsResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	// The unknown id is dropped without an error.
	if len(resp.Highlights) != 1 || resp.Highlights[0].SentenceID != 1 {
		t.Errorf("highlights = %+v, want just sentence 1", resp.Highlights)
	}
}

func TestHighlightsWithoutDocument(t *testing.T) {
	router := newTestRouter(t, nil)

	rr := doJSON(router, "POST", "/v1/highlights", `{"sentence_ids":[0]}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rr.Code)
	}

	var resp errorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Code != codeNoDocument {
		t.Errorf("code = %q, want %q", resp.Code, codeNoDocument)
	}
}

// --- delete, stats, health ---

func TestDeleteDocument(t *testing.T) {
	router := newTestRouter(t, nil)

	if rr := doUpload(t, router, "france.pdf", []byte("%PDF-1.7 x"), ""); rr.Code != http.StatusOK {
		t.Fatalf("upload status = %d", rr.Code)
	}

	rr := doJSON(router, "DELETE", "/v1/documents", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp struct {
		Removed bool `json:"removed"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Removed {
		t.Error("removed = false, want true")
	}

	// Second delete has nothing to remove.
	rr = doJSON(router, "DELETE", "/v1/documents", "")
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Removed {
		t.Error("second delete removed = true")
	}

	// The index is gone with the session.
	if rr := doJSON(router, "POST", "/v1/search", `{"query":"capital?"}`); rr.Code != http.StatusConflict {
		t.Errorf("search after delete = %d, want 409", rr.Code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)

	if rr := doUpload(t, router, "france.pdf", []byte("%PDF-1.7 x"), ""); rr.Code != http.StatusOK {
		t.Fatalf("upload status = %d", rr.Code)
	}

	rr := doJSON(router, "GET", "/v1/stats", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp statsResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.TotalFiles != 1 {
		t.Errorf("total_files = %d, want 1", resp.TotalFiles)
	}
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)

	rr := doJSON(router, "GET", "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp healthuc.Report
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != healthuc.Healthy {
		t.Errorf("status = %v, want ok", resp.Status)
	}
}
