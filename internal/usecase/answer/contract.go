package answer

import (
	"context"

	"github.com/docsift/docsift/internal/domain"
	"github.com/docsift/docsift/internal/session"
)

// SessionSource reads the active document session.
type SessionSource interface {
	Load() (*session.Session, bool)
}

// Embedder vectorizes queries. Must be the same embedder configuration that
// encoded the document's sentences.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Completer produces a grounded answer from a prompt. A nil Completer means
// retrieval context doubles as the answer.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
