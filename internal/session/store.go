package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shakti-ai/shakti/internal/log"
)

// Querier defines the database operations the store needs. Defined by
// the consumer so tests can substitute a mock; *Queries is the
// production implementation.
type Querier interface {
	CreateSession(ctx context.Context, ownerID, title string) (Session, error)
	GetSession(ctx context.Context, id uuid.UUID) (Session, error)
	ListSessionsByOwner(ctx context.Context, ownerID string, limit, offset int32) ([]Session, error)
	TouchSession(ctx context.Context, id uuid.UUID) error
	LockSession(ctx context.Context, id uuid.UUID) error
	MaxSequenceNumber(ctx context.Context, sessionID uuid.UUID) (int64, error)
	InsertTurn(ctx context.Context, sessionID uuid.UUID, seq int64, role Role, content string) error
	ListTurns(ctx context.Context, sessionID uuid.UUID, limit int32) ([]Turn, error)
	DeleteSession(ctx context.Context, id uuid.UUID) (int64, error)
}

// Store persists sessions and turns in PostgreSQL.
// Safe for concurrent use.
type Store struct {
	querier Querier
	pool    *pgxpool.Pool // nil in unit tests; disables the transactional append path
	logger  log.Logger
}

// New creates a Store. pool may be nil for tests with a mock querier;
// production callers must pass the pool so appends run transactionally.
func New(querier Querier, pool *pgxpool.Pool, logger log.Logger) *Store {
	return &Store{querier: querier, pool: pool, logger: logger}
}

// Create starts a new session for ownerID.
func (s *Store) Create(ctx context.Context, ownerID, title string) (*Session, error) {
	sess, err := s.querier.CreateSession(ctx, ownerID, title)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	s.logger.Debug("created session", "id", sess.ID, "owner_id", ownerID)
	return &sess, nil
}

// Get retrieves a session by ID. Returns ErrNotFound if it does not exist.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	sess, err := s.querier.GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting session %s: %w", id, err)
	}
	return &sess, nil
}

// ListByOwner returns ownerID's sessions, most recently updated first.
func (s *Store) ListByOwner(ctx context.Context, ownerID string, limit, offset int32) ([]Session, error) {
	sessions, err := s.querier.ListSessionsByOwner(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing sessions for %s: %w", ownerID, err)
	}
	return sessions, nil
}

// History returns up to limit turns of a session in sequence order.
func (s *Store) History(ctx context.Context, sessionID uuid.UUID, limit int32) ([]Turn, error) {
	turns, err := s.querier.ListTurns(ctx, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing turns for session %s: %w", sessionID, err)
	}
	return turns, nil
}

// AppendTurns appends turns to a session, assigning consecutive sequence
// numbers after the current maximum. The whole append runs in one
// transaction holding the session's row lock, so concurrent appends to
// the same session serialize instead of interleaving.
//
// Returns ErrNotFound if the session does not exist.
func (s *Store) AppendTurns(ctx context.Context, sessionID uuid.UUID, turns []Turn) error {
	if len(turns) == 0 {
		return nil
	}
	for i, t := range turns {
		if !t.Role.Valid() {
			return fmt.Errorf("turn %d has invalid role %q", i, t.Role)
		}
	}

	if s.pool == nil {
		return s.appendTurns(ctx, s.querier, sessionID, turns)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Warn("transaction rollback failed", "error", rbErr)
		}
	}()

	if err := s.appendTurns(ctx, NewQueries(tx), sessionID, turns); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	s.logger.Debug("appended turns", "session_id", sessionID, "count", len(turns))
	return nil
}

func (s *Store) appendTurns(ctx context.Context, q Querier, sessionID uuid.UUID, turns []Turn) error {
	if err := q.LockSession(ctx, sessionID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("locking session %s: %w", sessionID, err)
	}

	maxSeq, err := q.MaxSequenceNumber(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("reading max sequence number: %w", err)
	}

	for i, t := range turns {
		seq := maxSeq + int64(i) + 1
		if err := q.InsertTurn(ctx, sessionID, seq, t.Role, t.Content); err != nil {
			return fmt.Errorf("inserting turn %d: %w", i, err)
		}
	}

	if err := q.TouchSession(ctx, sessionID); err != nil {
		return fmt.Errorf("touching session: %w", err)
	}
	return nil
}

// Delete removes a session and its turns. Returns ErrNotFound if the
// session does not exist.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	affected, err := s.querier.DeleteSession(ctx, id)
	if err != nil {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	s.logger.Debug("deleted session", "id", id)
	return nil
}
