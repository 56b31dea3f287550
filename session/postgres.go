package session

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// PostgresConfig holds PostgreSQL connection configuration.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DefaultPostgresConfig returns default PostgreSQL configuration.
func DefaultPostgresConfig() *PostgresConfig {
	return &PostgresConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		DBName:   "regrag",
		SSLMode:  "disable",
	}
}

// NewPostgresStore creates a PostgreSQL-backed turn log.
func NewPostgresStore(config *PostgresConfig) (*PostgresStore, error) {
	if config == nil {
		config = DefaultPostgresConfig()
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.createTable(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) createTable(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS session_turns (
		id VARCHAR(64) PRIMARY KEY,
		session_id VARCHAR(64) NOT NULL,
		query TEXT NOT NULL,
		answer TEXT NOT NULL,
		citations TEXT[],
		outcome VARCHAR(32) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_session_turns_session ON session_turns(session_id, created_at);
	`
	_, err := s.db.ExecContext(ctx, query)
	return err
}

// Append inserts the turn.
func (s *PostgresStore) Append(ctx context.Context, turn Turn) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_turns (id, session_id, query, answer, citations, outcome, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		turn.ID, turn.SessionID, turn.Query, turn.Answer,
		pq.Array(turn.Citations), turn.Outcome, turn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert turn: %w", err)
	}
	return nil
}

// History returns the session's turns, oldest first.
func (s *PostgresStore) History(ctx context.Context, sessionID string, limit int) ([]Turn, error) {
	query := `SELECT id, session_id, query, answer, citations, outcome, created_at
		  FROM session_turns WHERE session_id = $1 ORDER BY created_at ASC`
	args := []any{sessionID}
	if limit > 0 {
		query = `SELECT id, session_id, query, answer, citations, outcome, created_at FROM (
			SELECT id, session_id, query, answer, citations, outcome, created_at
			FROM session_turns WHERE session_id = $1 ORDER BY created_at DESC LIMIT $2
		) recent ORDER BY created_at ASC`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query session history: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Query, &t.Answer,
			pq.Array(&t.Citations), &t.Outcome, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// Clear deletes the session's turns.
func (s *PostgresStore) Clear(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM session_turns WHERE session_id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
