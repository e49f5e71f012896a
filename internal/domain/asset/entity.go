// Package asset contains the exam asset bundle stored in the document store.
package asset

import (
	"context"
	"strings"
	"time"

	"github.com/calculus-oom/gradebook/internal/domain/shared"
)

// Kind identifies which file of a bundle an upload targets.
type Kind string

const (
	KindPaper     Kind = "paper"
	KindHistogram Kind = "histogram"
)

var kindAliases = map[string]Kind{
	"test_pic":           KindPaper,
	"test_pic_histogram": KindHistogram,
}

// IsValid checks that the kind belongs to the closed set.
func (k Kind) IsValid() bool {
	return k == KindPaper || k == KindHistogram
}

// String returns the canonical spelling.
func (k Kind) String() string {
	return string(k)
}

// ParseKind accepts canonical and legacy spellings.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.TrimSpace(s))
	if k.IsValid() {
		return k, nil
	}
	if alias, ok := kindAliases[string(k)]; ok {
		return alias, nil
	}
	return "", shared.NewValidationError("asset", "ParseKind",
		"kind must be one of paper, histogram", "kind")
}

// Bundle groups the files of one exam. It is created lazily by the first
// upload and addressed by the exam's asset bundle id.
type Bundle struct {
	ID            string    `json:"bundle_id"`
	PaperPath     string    `json:"paper_path"`
	HistogramPath string    `json:"histogram_path"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// PathFor returns the stored path of one kind, or "" when absent.
func (b *Bundle) PathFor(kind Kind) string {
	switch kind {
	case KindPaper:
		return b.PaperPath
	case KindHistogram:
		return b.HistogramPath
	default:
		return ""
	}
}

// SetPath writes the path of one kind.
func (b *Bundle) SetPath(kind Kind, path string, now time.Time) {
	switch kind {
	case KindPaper:
		b.PaperPath = path
	case KindHistogram:
		b.HistogramPath = path
	}
	b.UpdatedAt = now.UTC()
}

// Paths returns every non-empty file path of the bundle.
func (b *Bundle) Paths() []string {
	var paths []string
	for _, p := range []string{b.PaperPath, b.HistogramPath} {
		if p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

// Store is the document store holding asset bundles.
type Store interface {
	// Get returns the bundle or shared.ErrNotFound.
	Get(ctx context.Context, id string) (Bundle, error)

	// Upsert sets the path of one kind, creating the bundle if it does not exist.
	// The write is a single atomic operation.
	Upsert(ctx context.Context, id string, kind Kind, path string, now time.Time) (Bundle, error)

	// Update overwrites an existing bundle. Returns shared.ErrNotFound if absent.
	Update(ctx context.Context, bundle Bundle) error

	// Delete removes the bundle. Returns shared.ErrNotFound if absent.
	Delete(ctx context.Context, id string) error
}

// FileStore saves and loads the binary content referenced by bundle paths.
type FileStore interface {
	Save(ctx context.Context, name string, content []byte) (path string, err error)
	Open(ctx context.Context, path string) ([]byte, error)
	Remove(ctx context.Context, path string) error
}
