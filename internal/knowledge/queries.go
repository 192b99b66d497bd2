package knowledge

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pgvector/pgvector-go"
)

// DBTX is the subset of pgx shared by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries executes knowledge-chunk SQL against a DBTX.
type Queries struct {
	db DBTX
}

// NewQueries creates a Queries bound to db.
func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

const upsertChunkSQL = `
INSERT INTO knowledge_chunks (source, chunk_index, content, embedding)
VALUES ($1, $2, $3, $4)
ON CONFLICT (source, chunk_index)
DO UPDATE SET content = EXCLUDED.content, embedding = EXCLUDED.embedding`

func (q *Queries) UpsertChunk(ctx context.Context, source string, index int, content string, embedding pgvector.Vector) error {
	_, err := q.db.Exec(ctx, upsertChunkSQL, source, index, content, embedding)
	return err
}

// searchChunksSQL orders by cosine distance; similarity = 1 - distance.
const searchChunksSQL = `
SELECT id, source, chunk_index, content, created_at,
       1 - (embedding <=> $1) AS similarity
FROM knowledge_chunks
ORDER BY embedding <=> $1
LIMIT $2`

func (q *Queries) SearchChunks(ctx context.Context, embedding pgvector.Vector, limit int32) ([]Result, error) {
	rows, err := q.db.Query(ctx, searchChunksSQL, embedding, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanResults(rows)
}

const searchChunksBySourceSQL = `
SELECT id, source, chunk_index, content, created_at,
       1 - (embedding <=> $1) AS similarity
FROM knowledge_chunks
WHERE source = $2
ORDER BY embedding <=> $1
LIMIT $3`

func (q *Queries) SearchChunksBySource(ctx context.Context, embedding pgvector.Vector, source string, limit int32) ([]Result, error) {
	rows, err := q.db.Query(ctx, searchChunksBySourceSQL, embedding, source, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanResults(rows)
}

const countChunksSQL = `
SELECT COUNT(*) FROM knowledge_chunks`

func (q *Queries) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countChunksSQL).Scan(&count)
	return count, err
}

const deleteChunksBySourceSQL = `
DELETE FROM knowledge_chunks WHERE source = $1`

func (q *Queries) DeleteChunksBySource(ctx context.Context, source string) error {
	_, err := q.db.Exec(ctx, deleteChunksBySourceSQL, source)
	return err
}

func scanResults(rows pgx.Rows) ([]Result, error) {
	var results []Result
	for rows.Next() {
		var (
			r         Result
			id        pgtype.UUID
			createdAt pgtype.Timestamptz
		)
		if err := rows.Scan(&id, &r.Chunk.Source, &r.Chunk.Index, &r.Chunk.Content, &createdAt, &r.Similarity); err != nil {
			return nil, err
		}
		if id.Valid {
			r.Chunk.ID = id.Bytes
		}
		r.Chunk.CreatedAt = createdAt.Time
		results = append(results, r)
	}
	return results, rows.Err()
}
