// Package storage persists uploaded documents on the local filesystem under
// collision-resistant generated names.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

const maxStoredNameLen = 100

var unsafeChars = regexp.MustCompile(`[^\w\-.]`)

// Files stores uploaded documents in a single directory.
type Files struct {
	dir string
}

// New creates the upload directory if needed.
func New(dir string) (*Files, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", dir, err)
	}
	return &Files{dir: dir}, nil
}

// Dir returns the upload directory path.
func (f *Files) Dir() string { return f.dir }

// Save writes content under "<timestamp>_<uuid>_<sanitized-name>" and
// returns the stored path.
func (f *Files) Save(content []byte, filename string) (string, error) {
	name := fmt.Sprintf("%s_%s_%s",
		time.Now().Format("20060102_150405"),
		uuid.NewString(),
		SanitizeFilename(filename),
	)
	path := filepath.Join(f.dir, name)

	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("save upload %s: %w", path, err)
	}
	return path, nil
}

// Remove deletes a stored file. Reports whether a file was removed; a
// missing file is not an error.
func (f *Files) Remove(path string) (bool, error) {
	// Refuse paths outside the upload directory.
	rel, err := filepath.Rel(f.dir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false, fmt.Errorf("path %s is outside upload dir", path)
	}

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("remove %s: %w", path, err)
	}
	return true, nil
}

// Stats summarizes the upload directory.
type Stats struct {
	TotalFiles     int   `json:"total_files"`
	TotalSizeBytes int64 `json:"total_size_bytes"`
}

// Stats walks the upload directory and totals stored PDF files.
func (f *Files) Stats() (Stats, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return Stats{}, fmt.Errorf("read upload dir: %w", err)
	}

	var st Stats
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".pdf") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		st.TotalFiles++
		st.TotalSizeBytes += info.Size()
	}
	return st, nil
}

// SanitizeFilename replaces unsafe characters with underscores and caps the
// length, preserving the extension.
func SanitizeFilename(filename string) string {
	safe := unsafeChars.ReplaceAllString(filepath.Base(filename), "_")
	if len(safe) > maxStoredNameLen {
		ext := filepath.Ext(safe)
		keep := maxStoredNameLen - len(ext) - 1
		if keep < 1 {
			keep = 1
		}
		safe = safe[:keep] + ext
	}
	return safe
}
