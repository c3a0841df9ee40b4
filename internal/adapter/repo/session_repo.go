package repo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// schemaSQL is applied lazily on first use so a fresh database works without
// an out-of-band migration step.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
    id             TEXT PRIMARY KEY,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
    original_image BYTEA NOT NULL,
    caption        TEXT NOT NULL DEFAULT '',
    concepts       TEXT[] NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS session_iterations (
    session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    iteration  INT NOT NULL,
    prompt     TEXT NOT NULL,
    status     TEXT NOT NULL,
    image_url  TEXT NOT NULL DEFAULT '',
    image_data BYTEA,
    message    TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (session_id, iteration)
);
`

// SessionRepositoryPG implements domain.SessionRepository using PostgreSQL.
type SessionRepositoryPG struct {
	pool *pgxpool.Pool

	mu    sync.Mutex
	ready bool
}

// NewSessionRepository constructs a new session repository instance.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepositoryPG {
	return &SessionRepositoryPG{pool: pool}
}

// ensureSchema runs the DDL once per process. Concurrent first callers
// serialize on the lock; a failure leaves ready unset so the next caller
// retries.
func (r *SessionRepositoryPG) ensureSchema(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ready {
		return nil
	}
	if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	r.ready = true
	return nil
}

// Save upserts the full session record. Re-saving an id replaces its
// iteration rows rather than appending duplicates.
func (r *SessionRepositoryPG) Save(ctx context.Context, session *domain.Session) error {
	if session == nil {
		return errors.New("session is required")
	}
	if err := r.ensureSchema(ctx); err != nil {
		return err
	}
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `
INSERT INTO sessions (id, created_at, original_image, caption, concepts)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET
    created_at     = EXCLUDED.created_at,
    original_image = EXCLUDED.original_image,
    caption        = EXCLUDED.caption,
    concepts       = EXCLUDED.concepts;
`, session.ID, session.CreatedAt, session.Original, session.Caption, coalesceConcepts(session.Concepts)); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM session_iterations WHERE session_id = $1;`, session.ID); err != nil {
		return fmt.Errorf("clear iterations: %w", err)
	}

	for _, result := range session.Results {
		if _, err := tx.Exec(ctx, `
INSERT INTO session_iterations (session_id, iteration, prompt, status, image_url, image_data, message)
VALUES ($1, $2, $3, $4, $5, $6, $7);
`, session.ID, result.Iteration, result.Prompt, string(result.Status), result.ImageURL, result.Image, result.Message); err != nil {
			return fmt.Errorf("save iteration %d: %w", result.Iteration, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

// Load returns the session for the id, domain.ErrNotFound when absent, and
// domain.ErrCorrupted when stored rows fail validation.
func (r *SessionRepositoryPG) Load(ctx context.Context, id string) (*domain.Session, error) {
	if err := r.ensureSchema(ctx); err != nil {
		return nil, err
	}

	session := &domain.Session{}
	err := r.pool.QueryRow(ctx, `
SELECT id, created_at, original_image, caption, concepts
FROM sessions
WHERE id = $1;
`, id).Scan(&session.ID, &session.CreatedAt, &session.Original, &session.Caption, &session.Concepts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
SELECT iteration, prompt, status, image_url, image_data, message
FROM session_iterations
WHERE session_id = $1
ORDER BY iteration ASC;
`, id)
	if err != nil {
		return nil, fmt.Errorf("load iterations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var result domain.IterationResult
		var status string
		if err := rows.Scan(&result.Iteration, &result.Prompt, &status, &result.ImageURL, &result.Image, &result.Message); err != nil {
			return nil, fmt.Errorf("scan iteration: %w", err)
		}
		result.Status = domain.IterationStatus(status)
		if !domain.ValidIterationStatus(result.Status) {
			return nil, fmt.Errorf("iteration %d has status %q: %w", result.Iteration, status, domain.ErrCorrupted)
		}
		session.Results = append(session.Results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load iterations: %w", err)
	}
	return session, nil
}

// coalesceConcepts maps a nil slice to an empty one. pgx encodes nil as SQL
// NULL, an explicit NULL bypasses the column DEFAULT, and concepts is NOT
// NULL, so a session saved without concepts must bind an empty array.
func coalesceConcepts(concepts []string) []string {
	if concepts == nil {
		return []string{}
	}
	return concepts
}

var _ domain.SessionRepository = (*SessionRepositoryPG)(nil)
