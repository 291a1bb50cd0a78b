// Package knowledge is a small retrieval layer: documents are embedded,
// stored in a vector store and searched by cosine similarity.
//
// Two stores are provided: SQLiteStore (brute-force scan, no server needed)
// and PGVectorStore (Postgres with the pgvector extension). Embeddings come
// from a local HashingEmbedder or from the OpenAI embeddings API.
package knowledge

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/assistants/logging"
)

// Document is a unit of knowledge. Documents are replaced when added again
// with the same ID.
type Document struct {
	ID       string
	Text     string
	Metadata map[string]string
}

// Result is a search hit. Distance is the cosine distance to the query
// (0 identical, 2 opposite).
type Result struct {
	Document
	Distance float64
}

// Embedder turns texts into vectors of equal length.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ErrDimensionMismatch is returned when a vector does not match the
// dimensions of the embeddings already stored, which happens after the
// embedding provider changes without rebuilding the store.
var ErrDimensionMismatch = errors.New("embedding dimensions do not match stored vectors")

// VectorStore persists documents with their embeddings.
type VectorStore interface {
	Upsert(ctx context.Context, docs []Document, vectors [][]float32) error
	Search(ctx context.Context, vector []float32, topK int) ([]Result, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// BaseOptions configures a Base.
type BaseOptions struct {
	Logger logging.Logger
}

// Base couples an embedder with a vector store.
type Base struct {
	store    VectorStore
	embedder Embedder
	logger   logging.Logger
}

// New creates a Base.
func New(store VectorStore, embedder Embedder, optFns ...func(o *BaseOptions)) *Base {
	opts := BaseOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Base{store: store, embedder: embedder, logger: opts.Logger}
}

// Add embeds and stores documents.
func (b *Base) Add(ctx context.Context, docs ...Document) error {
	if len(docs) == 0 {
		return nil
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		if d.ID == "" {
			return errors.New("document id is required")
		}

		texts[i] = d.Text
	}

	vectors, err := b.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding documents: %w", err)
	}

	if err := b.store.Upsert(ctx, docs, vectors); err != nil {
		return fmt.Errorf("storing documents: %w", err)
	}

	b.logger.Debug("knowledge.documents.added", "count", len(docs))

	return nil
}

// Search returns the topK documents closest to query, nearest first.
func (b *Base) Search(ctx context.Context, query string, topK int) ([]Result, error) {
	if topK <= 0 {
		topK = 3
	}

	vectors, err := b.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	results, err := b.store.Search(ctx, vectors[0], topK)
	if err != nil {
		return nil, err
	}

	b.logger.Debug("knowledge.search", "top_k", topK, "hits", len(results))

	return results, nil
}

// Count returns the number of stored documents.
func (b *Base) Count(ctx context.Context) (int, error) {
	return b.store.Count(ctx)
}

// LoadIfEmpty adds the documents found in dir when the store holds none and
// reports how many were added.
func (b *Base) LoadIfEmpty(ctx context.Context, dir string) (int, error) {
	n, err := b.store.Count(ctx)
	if err != nil {
		return 0, err
	}

	if n > 0 {
		return 0, nil
	}

	docs, err := LoadDir(dir)
	if err != nil {
		return 0, err
	}

	if err := b.Add(ctx, docs...); err != nil {
		return 0, err
	}

	b.logger.Info("knowledge.directory.loaded", "dir", dir, "documents", len(docs))

	return len(docs), nil
}

// Close closes the vector store.
func (b *Base) Close() error {
	return b.store.Close()
}
