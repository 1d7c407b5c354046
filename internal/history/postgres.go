package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists conversation history in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS history_turns (
			seq BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL,
			role TEXT NOT NULL,
			parts JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_history_turns_user_recent
			ON history_turns (user_id, created_at DESC, seq DESC);`,
		`CREATE TABLE IF NOT EXISTS history_policies (
			user_id BIGINT PRIMARY KEY,
			retention_limit INT NOT NULL
		);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, userID int64, role Role, parts []Part) error {
	raw, err := json.Marshal(parts)
	if err != nil {
		return fmt.Errorf("encode parts: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO history_turns (user_id, role, parts, created_at) VALUES ($1, $2, $3, $4)`,
		userID,
		string(role),
		raw,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

// Window reads the newest turns first, bounded by the user's retention limit,
// and reverses them so callers replay oldest-first.
func (s *PostgresStore) Window(ctx context.Context, userID int64) ([]Turn, error) {
	limit, err := s.PolicyLimit(ctx, userID)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT seq, user_id, role, parts, created_at
		 FROM history_turns WHERE user_id=$1
		 ORDER BY created_at DESC, seq DESC LIMIT $2`,
		userID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query window: %w", err)
	}
	defer rows.Close()

	turns := make([]Turn, 0, limit)
	for rows.Next() {
		var (
			t    Turn
			role string
			raw  []byte
		)
		if err := rows.Scan(&t.Seq, &t.UserID, &role, &raw, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		if err := json.Unmarshal(raw, &t.Parts); err != nil {
			return nil, fmt.Errorf("decode parts: %w", err)
		}
		t.Role = Role(role)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}

	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

func (s *PostgresStore) SetPolicy(ctx context.Context, userID int64, limit int) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO history_policies (user_id, retention_limit) VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET retention_limit=EXCLUDED.retention_limit`,
		userID,
		limit,
	)
	if err != nil {
		return fmt.Errorf("set policy: %w", err)
	}
	return nil
}

func (s *PostgresStore) PolicyLimit(ctx context.Context, userID int64) (int, error) {
	var limit int
	err := s.pool.QueryRow(ctx,
		`SELECT retention_limit FROM history_policies WHERE user_id=$1`,
		userID,
	).Scan(&limit)
	if err != nil {
		if isNoRows(err) {
			return DefaultLimit, nil
		}
		return 0, fmt.Errorf("get policy: %w", err)
	}
	return limit, nil
}

func (s *PostgresStore) Clear(ctx context.Context, userID int64) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM history_turns WHERE user_id=$1`, userID); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
