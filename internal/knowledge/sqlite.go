package knowledge

import (
	"container/heap"
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS documents (
	id         TEXT PRIMARY KEY,
	content    TEXT NOT NULL,
	metadata   TEXT NOT NULL DEFAULT '{}',
	embedding  BLOB NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);`

// SQLiteStore keeps embeddings as float32 blobs and searches by scanning
// every row. Fine for a few thousand documents.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) a store at path. ":memory:" keeps
// everything in memory.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating vector store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening vector store: %w", err)
	}

	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating vector store schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Upsert implements VectorStore.
func (s *SQLiteStore) Upsert(ctx context.Context, docs []Document, vectors [][]float32) error {
	if len(docs) != len(vectors) {
		return fmt.Errorf("got %d documents but %d vectors", len(docs), len(vectors))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	dims, err := storedDimensions(ctx, tx)
	if err != nil {
		return err
	}

	for i, v := range vectors {
		if dims == 0 {
			dims = len(v)
		}

		if len(v) != dims {
			return fmt.Errorf("document %s: %w (store %d, got %d)", docs[i].ID, ErrDimensionMismatch, dims, len(v))
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO documents (id, content, metadata, embedding, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			metadata = excluded.metadata,
			embedding = excluded.embedding,
			updated_at = excluded.updated_at`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, d := range docs {
		meta, err := marshalMetadata(d.Metadata)
		if err != nil {
			return err
		}

		if _, err := stmt.ExecContext(ctx, d.ID, d.Text, meta, encodeFloat32s(vectors[i])); err != nil {
			return fmt.Errorf("upserting document %s: %w", d.ID, err)
		}
	}

	return tx.Commit()
}

// Search implements VectorStore. The first pass keeps only ids and scores in
// a bounded heap; the second pass loads the winning rows.
func (s *SQLiteStore) Search(ctx context.Context, vector []float32, topK int) ([]Result, error) {
	if topK <= 0 {
		return nil, nil
	}

	dims, err := storedDimensions(ctx, s.db)
	if err != nil {
		return nil, err
	}

	if dims != 0 && dims != len(vector) {
		return nil, fmt.Errorf("%w (store %d, query %d): rebuild the store or switch the embedder back", ErrDimensionMismatch, dims, len(vector))
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, embedding FROM documents`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	qNorm := norm(vector)

	h := &idScoreHeap{}
	heap.Init(h)

	for rows.Next() {
		var (
			id   string
			blob []byte
		)

		if err := rows.Scan(&id, &blob); err != nil {
			return nil, err
		}

		emb, err := decodeFloat32s(blob)
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", id, err)
		}

		score := cosine(vector, emb, qNorm)

		switch {
		case h.Len() < topK:
			heap.Push(h, idScore{ID: id, Score: score})
		case score > (*h)[0].Score:
			(*h)[0] = idScore{ID: id, Score: score}
			heap.Fix(h, 0)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if h.Len() == 0 {
		return nil, nil
	}

	scores := make(map[string]float32, h.Len())
	ids := make([]any, 0, h.Len())

	for h.Len() > 0 {
		item := heap.Pop(h).(idScore)
		scores[item.ID] = item.Score
		ids = append(ids, item.ID)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")

	docRows, err := s.db.QueryContext(ctx,
		`SELECT id, content, metadata FROM documents WHERE id IN (`+placeholders+`)`, ids...)
	if err != nil {
		return nil, err
	}
	defer docRows.Close()

	results := make([]Result, 0, len(ids))

	for docRows.Next() {
		var (
			d    Document
			meta string
		)

		if err := docRows.Scan(&d.ID, &d.Text, &meta); err != nil {
			return nil, err
		}

		if err := json.Unmarshal([]byte(meta), &d.Metadata); err != nil {
			return nil, fmt.Errorf("document %s metadata: %w", d.ID, err)
		}

		results = append(results, Result{Document: d, Distance: 1 - float64(scores[d.ID])})
	}

	if err := docRows.Err(); err != nil {
		return nil, err
	}

	sortResults(results)

	return results, nil
}

// Count implements VectorStore.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n)

	return n, err
}

// Close implements VectorStore.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// storedDimensions returns the vector length of the stored embeddings, or 0
// for an empty store. Upsert keeps every row at the same length.
func storedDimensions(ctx context.Context, q queryRower) (int, error) {
	var n int

	err := q.QueryRowContext(ctx, `SELECT length(embedding) FROM documents LIMIT 1`).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}

	if err != nil {
		return 0, fmt.Errorf("reading embedding dimensions: %w", err)
	}

	return n / 4, nil
}

func marshalMetadata(m map[string]string) (string, error) {
	if m == nil {
		m = map[string]string{}
	}

	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encoding metadata: %w", err)
	}

	return string(b), nil
}

func sortResults(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}

		return results[i].ID < results[j].ID
	})
}

// encodeFloat32s serializes a float32 slice to little-endian bytes.
func encodeFloat32s(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}

	return buf
}

func decodeFloat32s(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding blob length %d", len(b))
	}

	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}

	return v, nil
}

type idScore struct {
	ID    string
	Score float32
}

// idScoreHeap is a min-heap ordered by Score.
type idScoreHeap []idScore

func (h idScoreHeap) Len() int           { return len(h) }
func (h idScoreHeap) Less(i, j int) bool { return h[i].Score < h[j].Score }
func (h idScoreHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *idScoreHeap) Push(x any)        { *h = append(*h, x.(idScore)) }
func (h *idScoreHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]

	return item
}
