package analysis

import (
	"context"

	"github.com/docsift/docsift/internal/domain"
	"github.com/docsift/docsift/internal/extract"
)

// FileStore persists uploaded document bytes.
type FileStore interface {
	Save(content []byte, filename string) (string, error)
	Remove(path string) (bool, error)
}

// DocumentOpener parses a stored document into a scoped handle.
type DocumentOpener interface {
	Open(path string) (extract.Document, error)
}

// Extractor walks a document and emits sentence records.
type Extractor interface {
	Extract(ctx context.Context, doc extract.Document) (domain.Extraction, error)
}

// Embedder vectorizes sentence batches. A nil Embedder means the retrieval
// capability is absent and analysis degrades to extraction only.
type Embedder interface {
	BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}
