package session

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DBTX is the subset of pgx shared by *pgxpool.Pool and pgx.Tx, so the
// same queries run pooled or inside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries executes session SQL against a DBTX.
type Queries struct {
	db DBTX
}

// NewQueries creates a Queries bound to db.
func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

const createSessionSQL = `
INSERT INTO sessions (owner_id, title)
VALUES ($1, $2)
RETURNING id, owner_id, title, created_at, updated_at`

func (q *Queries) CreateSession(ctx context.Context, ownerID, title string) (Session, error) {
	row := q.db.QueryRow(ctx, createSessionSQL, ownerID, title)
	return scanSession(row)
}

const getSessionSQL = `
SELECT id, owner_id, title, created_at, updated_at
FROM sessions
WHERE id = $1`

func (q *Queries) GetSession(ctx context.Context, id uuid.UUID) (Session, error) {
	row := q.db.QueryRow(ctx, getSessionSQL, uuidToPg(id))
	return scanSession(row)
}

const listSessionsByOwnerSQL = `
SELECT id, owner_id, title, created_at, updated_at
FROM sessions
WHERE owner_id = $1
ORDER BY updated_at DESC
LIMIT $2 OFFSET $3`

func (q *Queries) ListSessionsByOwner(ctx context.Context, ownerID string, limit, offset int32) ([]Session, error) {
	rows, err := q.db.Query(ctx, listSessionsByOwnerSQL, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

const touchSessionSQL = `
UPDATE sessions SET updated_at = now() WHERE id = $1`

func (q *Queries) TouchSession(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, touchSessionSQL, uuidToPg(id))
	return err
}

// lockSessionSQL serializes appends to one session. Concurrent
// AppendTurns calls on the same session queue on this row lock, so
// sequence numbers never collide.
const lockSessionSQL = `
SELECT id FROM sessions WHERE id = $1 FOR UPDATE`

func (q *Queries) LockSession(ctx context.Context, id uuid.UUID) error {
	var locked pgtype.UUID
	return q.db.QueryRow(ctx, lockSessionSQL, uuidToPg(id)).Scan(&locked)
}

const maxSequenceNumberSQL = `
SELECT COALESCE(MAX(sequence_number), 0)
FROM session_turns
WHERE session_id = $1`

func (q *Queries) MaxSequenceNumber(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	var max int64
	err := q.db.QueryRow(ctx, maxSequenceNumberSQL, uuidToPg(sessionID)).Scan(&max)
	return max, err
}

const insertTurnSQL = `
INSERT INTO session_turns (session_id, sequence_number, role, content)
VALUES ($1, $2, $3, $4)`

func (q *Queries) InsertTurn(ctx context.Context, sessionID uuid.UUID, seq int64, role Role, content string) error {
	_, err := q.db.Exec(ctx, insertTurnSQL, uuidToPg(sessionID), seq, string(role), content)
	return err
}

const listTurnsSQL = `
SELECT id, session_id, sequence_number, role, content, created_at
FROM session_turns
WHERE session_id = $1
ORDER BY sequence_number ASC
LIMIT $2`

func (q *Queries) ListTurns(ctx context.Context, sessionID uuid.UUID, limit int32) ([]Turn, error) {
	rows, err := q.db.Query(ctx, listTurnsSQL, uuidToPg(sessionID), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var (
			t         Turn
			id, sid   pgtype.UUID
			role      string
			createdAt pgtype.Timestamptz
		)
		if err := rows.Scan(&id, &sid, &t.SequenceNumber, &role, &t.Content, &createdAt); err != nil {
			return nil, err
		}
		t.ID = pgToUUID(id)
		t.SessionID = pgToUUID(sid)
		t.Role = Role(role)
		t.CreatedAt = createdAt.Time
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

const deleteSessionSQL = `
DELETE FROM sessions WHERE id = $1`

func (q *Queries) DeleteSession(ctx context.Context, id uuid.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteSessionSQL, uuidToPg(id))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanSession(row pgx.Row) (Session, error) {
	var (
		s                    Session
		id                   pgtype.UUID
		createdAt, updatedAt pgtype.Timestamptz
	)
	if err := row.Scan(&id, &s.OwnerID, &s.Title, &createdAt, &updatedAt); err != nil {
		return Session{}, err
	}
	s.ID = pgToUUID(id)
	s.CreatedAt = createdAt.Time
	s.UpdatedAt = updatedAt.Time
	return s, nil
}

func uuidToPg(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

func pgToUUID(id pgtype.UUID) uuid.UUID {
	if !id.Valid {
		return uuid.Nil
	}
	return id.Bytes
}
