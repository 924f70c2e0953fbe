package progress

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is the SQL DDL for the progress tables. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS word_progress (
    word_id    TEXT PRIMARY KEY,
    score      INTEGER NOT NULL DEFAULT 0 CHECK (score BETWEEN 0 AND 100),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS daily_statistics (
    day             DATE PRIMARY KEY,
    words_added     INTEGER NOT NULL DEFAULT 0,
    words_learned   INTEGER NOT NULL DEFAULT 0,
    answers         INTEGER NOT NULL DEFAULT 0,
    correct_answers INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_word_progress_score ON word_progress(score);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by a PostgreSQL database.
type PostgresStore struct {
	db DB
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a [PostgresStore] on the given connection or pool.
// The caller is responsible for calling [PostgresStore.Migrate] before issuing
// queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres connects a pool to dsn, pings it and applies [Schema]. The
// returned pool is owned by the caller.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, *pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("progress: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("progress: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("progress: ping: %w", err)
	}
	s := NewPostgresStore(pool)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return s, pool, nil
}

// Migrate executes the [Schema] DDL against the database.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("progress: migrate: %w", err)
	}
	return nil
}

// Score implements [Store].
func (s *PostgresStore) Score(ctx context.Context, wordID string) (int, error) {
	var score int
	err := s.db.QueryRow(ctx, `SELECT score FROM word_progress WHERE word_id = $1`, wordID).Scan(&score)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrWordNotFound
		}
		return 0, fmt.Errorf("progress: score: %w", err)
	}
	return score, nil
}

// SaveScore implements [Store].
func (s *PostgresStore) SaveScore(ctx context.Context, wordID string, score int) error {
	const query = `
		INSERT INTO word_progress (word_id, score, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (word_id) DO UPDATE SET
			score      = EXCLUDED.score,
			updated_at = now()`
	if _, err := s.db.Exec(ctx, query, wordID, score); err != nil {
		return fmt.Errorf("progress: save score: %w", err)
	}
	return nil
}

// Scores implements [Store].
func (s *PostgresStore) Scores(ctx context.Context, ids []string) (map[string]int, error) {
	out := make(map[string]int, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.db.Query(ctx, `SELECT word_id, score FROM word_progress WHERE word_id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("progress: scores: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id    string
			score int
		)
		if err := rows.Scan(&id, &score); err != nil {
			return nil, fmt.Errorf("progress: scores: scan: %w", err)
		}
		out[id] = score
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("progress: scores: rows: %w", err)
	}
	return out, nil
}

// Entries implements [Store].
func (s *PostgresStore) Entries(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.Query(ctx, `SELECT word_id, score, updated_at FROM word_progress ORDER BY word_id`)
	if err != nil {
		return nil, fmt.Errorf("progress: entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.WordID, &e.Score, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("progress: entries: scan: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("progress: entries: rows: %w", err)
	}
	return out, nil
}

// AddDaily implements [Store].
func (s *PostgresStore) AddDaily(ctx context.Context, d Daily) error {
	const query = `
		INSERT INTO daily_statistics (day, words_added, words_learned, answers, correct_answers)
		VALUES ($1::date, $2, $3, $4, $5)
		ON CONFLICT (day) DO UPDATE SET
			words_added     = daily_statistics.words_added + EXCLUDED.words_added,
			words_learned   = daily_statistics.words_learned + EXCLUDED.words_learned,
			answers         = daily_statistics.answers + EXCLUDED.answers,
			correct_answers = daily_statistics.correct_answers + EXCLUDED.correct_answers`
	_, err := s.db.Exec(ctx, query, d.Day, d.WordsAdded, d.WordsLearned, d.Answers, d.CorrectAnswers)
	if err != nil {
		return fmt.Errorf("progress: add daily: %w", err)
	}
	return nil
}

// Daily implements [Store].
func (s *PostgresStore) Daily(ctx context.Context, day string) (Daily, error) {
	d := Daily{Day: day}
	const query = `
		SELECT words_added, words_learned, answers, correct_answers
		FROM daily_statistics WHERE day = $1::date`
	err := s.db.QueryRow(ctx, query, day).Scan(&d.WordsAdded, &d.WordsLearned, &d.Answers, &d.CorrectAnswers)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return Daily{}, fmt.Errorf("progress: daily: %w", err)
	}
	return d, nil
}

// Ping implements [Store].
func (s *PostgresStore) Ping(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, `SELECT 1`); err != nil {
		return fmt.Errorf("progress: ping: %w", err)
	}
	return nil
}
