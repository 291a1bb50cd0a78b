package knowledge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

// PGVectorStore keeps documents in Postgres and lets pgvector rank them.
type PGVectorStore struct {
	pool  *pgxpool.Pool
	table string
}

// PGVectorOptions configures a PGVectorStore.
type PGVectorOptions struct {
	// Table holds the documents. Defaults to knowledge_documents.
	Table string
}

// OpenPGVector connects to databaseURL and creates the extension and table
// when missing.
func OpenPGVector(ctx context.Context, databaseURL string, optFns ...func(o *PGVectorOptions)) (*PGVectorStore, error) {
	opts := PGVectorOptions{Table: "knowledge_documents"}
	for _, fn := range optFns {
		fn(&opts)
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	s := &PGVectorStore{pool: pool, table: opts.Table}

	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

func (s *PGVectorStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id         TEXT PRIMARY KEY,
			content    TEXT NOT NULL,
			metadata   JSONB NOT NULL DEFAULT '{}',
			embedding  vector NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, s.table),
	}

	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrating vector store: %w", err)
		}
	}

	return nil
}

// Upsert implements VectorStore.
func (s *PGVectorStore) Upsert(ctx context.Context, docs []Document, vectors [][]float32) error {
	if len(docs) != len(vectors) {
		return fmt.Errorf("got %d documents but %d vectors", len(docs), len(vectors))
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	query := fmt.Sprintf(`
		INSERT INTO %s (id, content, metadata, embedding, updated_at)
		VALUES ($1, $2, $3::jsonb, $4, now())
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding,
			updated_at = EXCLUDED.updated_at`, s.table)

	for i, d := range docs {
		meta, err := marshalMetadata(d.Metadata)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, query, d.ID, d.Text, meta, pgvector.NewVector(vectors[i])); err != nil {
			return fmt.Errorf("upserting document %s: %w", d.ID, err)
		}
	}

	return tx.Commit(ctx)
}

// Search implements VectorStore.
func (s *PGVectorStore) Search(ctx context.Context, vector []float32, topK int) ([]Result, error) {
	if topK <= 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT id, content, metadata, embedding <=> $1 AS distance
		  FROM %s
		 ORDER BY embedding <=> $1, id
		 LIMIT $2`, s.table), pgvector.NewVector(vector), topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Result

	for rows.Next() {
		var (
			r    Result
			meta []byte
		)

		if err := rows.Scan(&r.ID, &r.Text, &meta, &r.Distance); err != nil {
			return nil, err
		}

		if err := json.Unmarshal(meta, &r.Metadata); err != nil {
			return nil, fmt.Errorf("document %s metadata: %w", r.ID, err)
		}

		results = append(results, r)
	}

	return results, rows.Err()
}

// Count implements VectorStore.
func (s *PGVectorStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.table)).Scan(&n)

	return n, err
}

// Close implements VectorStore.
func (s *PGVectorStore) Close() error {
	s.pool.Close()
	return nil
}
