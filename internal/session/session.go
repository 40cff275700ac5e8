// Package session holds the single active document session. A session is
// immutable after build; replacing a document swaps the whole session via an
// atomic pointer, so readers never observe an index whose size disagrees
// with its sentence metadata.
package session

import (
	"sync/atomic"
	"time"

	"github.com/docsift/docsift/internal/domain"
	"github.com/docsift/docsift/internal/index"
)

// IndexInfo describes the retrieval index attached to a session.
type IndexInfo struct {
	Built     bool `json:"index_built"`
	Size      int  `json:"size"`
	Dimension int  `json:"dimension"`
}

// Session is an immutable snapshot of one analyzed document. Index is nil
// when embedding was unavailable and the pipeline degraded.
type Session struct {
	Extraction domain.Extraction
	Index      *index.Index
	Info       IndexInfo
	FilePath   string
	Filename   string
	AnalyzedAt time.Time
}

// Sentence returns the metadata record at id with a bound check.
func (s *Session) Sentence(id int) (domain.SentenceRecord, bool) {
	if id < 0 || id >= len(s.Extraction.Sentences) {
		return domain.SentenceRecord{}, false
	}
	return s.Extraction.Sentences[id], true
}

// Holder publishes the active session. At most one session is live; Replace
// and Clear return the previous session so the caller can release its file.
type Holder struct {
	active atomic.Pointer[Session]
}

// NewHolder creates an empty holder.
func NewHolder() *Holder { return &Holder{} }

// Load returns the active session, if any.
func (h *Holder) Load() (*Session, bool) {
	s := h.active.Load()
	return s, s != nil
}

// Replace atomically publishes s and returns the previous session.
func (h *Holder) Replace(s *Session) *Session {
	return h.active.Swap(s)
}

// Clear removes the active session and returns it.
func (h *Holder) Clear() *Session {
	return h.active.Swap(nil)
}
