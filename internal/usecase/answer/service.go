// Package answer implements retrieval and grounded question answering over
// the active document session.
package answer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/docsift/docsift/internal/domain"
	"github.com/docsift/docsift/internal/metrics"
)

// DefaultTopK is the retrieval depth for question answering.
const DefaultTopK = 5

// DefaultCompleterTimeout bounds the LLM call.
const DefaultCompleterTimeout = 30 * time.Second

const promptTemplate = `You are a helpful assistant. Answer the question based only on the context below.

Context:
%s

Question:
%s

If the answer is not in the context, say "I don't know".`

// Result is the question-answering envelope. Answer is nil only in the
// no-index state; Sources parallels the retrieval hits used for Context.
type Result struct {
	Answer  *string         `json:"answer"`
	Context string          `json:"context"`
	Sources []domain.Source `json:"sources"`
}

// Service answers questions against the active session.
type Service struct {
	sessions  SessionSource
	embedder  Embedder
	completer Completer // nil = context-as-answer
	timeout   time.Duration
	logger    *zap.Logger
}

// New creates an answer service. completer may be nil.
func New(sessions SessionSource, embedder Embedder, completer Completer, logger *zap.Logger) *Service {
	return &Service{
		sessions:  sessions,
		embedder:  embedder,
		completer: completer,
		timeout:   DefaultCompleterTimeout,
		logger:    logger,
	}
}

// WithCompleterTimeout overrides the LLM call timeout.
func (s *Service) WithCompleterTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// Ask retrieves the topK closest sentences and synthesizes an answer.
// With no usable index it returns the empty no-index result, never an
// error: asking before analysis is an expected state, not a defect.
func (s *Service) Ask(ctx context.Context, question string, topK int) (Result, error) {
	sess, ok := s.sessions.Load()
	if !ok || !sess.Info.Built {
		return Result{Answer: nil, Context: "", Sources: []domain.Source{}}, nil
	}

	if topK <= 0 {
		topK = DefaultTopK
	}

	hits, err := s.Retrieve(ctx, question, topK)
	if err != nil {
		return Result{}, err
	}

	texts := make([]string, len(hits))
	sources := make([]domain.Source, len(hits))
	for i, h := range hits {
		texts[i] = h.Text
		sources[i] = domain.Source{SentenceID: h.SentenceID, Page: h.Page, Score: h.Score}
	}
	contextBlock := strings.Join(texts, "\n\n")

	answerText := s.synthesize(ctx, question, contextBlock)
	return Result{Answer: &answerText, Context: contextBlock, Sources: sources}, nil
}

// Retrieve runs the nearest-neighbor search. Unlike Ask it requires a built
// index: before any analysis it fails with domain.ErrIndexNotBuilt, distinct
// from the empty slice a built-but-empty index returns.
func (s *Service) Retrieve(ctx context.Context, query string, topK int) ([]domain.RetrievalHit, error) {
	sess, ok := s.sessions.Load()
	if !ok || !sess.Info.Built || sess.Index == nil {
		return nil, domain.ErrIndexNotBuilt
	}
	if topK <= 0 {
		return []domain.RetrievalHit{}, nil
	}

	emb, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	raw, err := sess.Index.Search(emb.Embedding, topK)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	hits := make([]domain.RetrievalHit, 0, len(raw))
	for _, h := range raw {
		rec, ok := sess.Sentence(h.ID)
		if !ok {
			// Index/metadata desync should be impossible for an immutable
			// session; drop the position rather than return garbage.
			s.logger.Warn("Dropping out-of-range index hit", zap.Int("id", h.ID))
			continue
		}
		hits = append(hits, domain.RetrievalHit{
			SentenceID: rec.ID,
			Text:       rec.Text,
			Page:       rec.Page,
			BBox:       rec.BBox,
			Score:      h.Score,
		})
	}
	return hits, nil
}

// Highlights maps sentence ids to overlay geometry. Out-of-range ids are
// silently omitted.
func (s *Service) Highlights(ids []int) ([]domain.Highlight, error) {
	sess, ok := s.sessions.Load()
	if !ok {
		return nil, domain.ErrNoDocument
	}

	highlights := make([]domain.Highlight, 0, len(ids))
	for _, id := range ids {
		rec, ok := sess.Sentence(id)
		if !ok {
			continue
		}
		highlights = append(highlights, domain.Highlight{
			SentenceID: rec.ID,
			Page:       rec.Page,
			BBox:       rec.BBox,
			Text:       rec.Text,
		})
	}
	return highlights, nil
}

// synthesize produces the grounded answer. Every completer failure,
// including timeout, degrades to returning the raw context; the error never
// reaches the caller.
func (s *Service) synthesize(ctx context.Context, question, contextBlock string) string {
	if s.completer == nil || contextBlock == "" {
		return contextBlock
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	answer, err := s.completer.Complete(callCtx, fmt.Sprintf(promptTemplate, contextBlock, question))
	if err != nil {
		metrics.AnswerFallbacksTotal.Inc()
		s.logger.Warn("Completer failed, falling back to retrieval context", zap.Error(err))
		return contextBlock
	}
	return answer
}
