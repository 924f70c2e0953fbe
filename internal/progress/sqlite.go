package progress

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver.
)

// SQLiteStore is a [Store] backed by a local SQLite file.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens or creates the SQLite database at path and applies
// migrations. Paths starting with "file::memory:" or equal to ":memory:" open
// an in-memory database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	inMemory := path == ":memory:" || strings.HasPrefix(path, "file::memory:")
	if !inMemory {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("progress: sqlite: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("progress: sqlite: open: %w", err)
	}
	// Every connection to an in-memory database is a separate database.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("progress: sqlite: migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS word_progress (
			word_id TEXT PRIMARY KEY,
			score INTEGER NOT NULL DEFAULT 0,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS daily_statistics (
			day TEXT PRIMARY KEY,
			words_added INTEGER NOT NULL DEFAULT 0,
			words_learned INTEGER NOT NULL DEFAULT 0,
			answers INTEGER NOT NULL DEFAULT 0,
			correct_answers INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_word_progress_score ON word_progress(score);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Score implements [Store].
func (s *SQLiteStore) Score(ctx context.Context, wordID string) (int, error) {
	var score int
	err := s.db.QueryRowContext(ctx, `SELECT score FROM word_progress WHERE word_id = ?`, wordID).Scan(&score)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrWordNotFound
		}
		return 0, fmt.Errorf("progress: score: %w", err)
	}
	return score, nil
}

// SaveScore implements [Store].
func (s *SQLiteStore) SaveScore(ctx context.Context, wordID string, score int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO word_progress (word_id, score, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(word_id) DO UPDATE SET score = excluded.score, updated_at = excluded.updated_at`,
		wordID, score, s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("progress: save score: %w", err)
	}
	return nil
}

// Scores implements [Store].
func (s *SQLiteStore) Scores(ctx context.Context, ids []string) (map[string]int, error) {
	out := make(map[string]int, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := `SELECT word_id, score FROM word_progress WHERE word_id IN (?` +
		strings.Repeat(", ?", len(ids)-1) + `)`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("progress: scores: %w", err)
	}
	defer func() { _ = rows.Close() }()

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
func (s *SQLiteStore) Entries(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT word_id, score, updated_at FROM word_progress ORDER BY word_id`)
	if err != nil {
		return nil, fmt.Errorf("progress: entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			updated string
		)
		if err := rows.Scan(&e.WordID, &e.Score, &updated); err != nil {
			return nil, fmt.Errorf("progress: entries: scan: %w", err)
		}
		if e.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
			return nil, fmt.Errorf("progress: entries: parse updated_at: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("progress: entries: rows: %w", err)
	}
	return out, nil
}

// AddDaily implements [Store].
func (s *SQLiteStore) AddDaily(ctx context.Context, d Daily) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO daily_statistics (day, words_added, words_learned, answers, correct_answers)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(day) DO UPDATE SET
			words_added = words_added + excluded.words_added,
			words_learned = words_learned + excluded.words_learned,
			answers = answers + excluded.answers,
			correct_answers = correct_answers + excluded.correct_answers`,
		d.Day, d.WordsAdded, d.WordsLearned, d.Answers, d.CorrectAnswers)
	if err != nil {
		return fmt.Errorf("progress: add daily: %w", err)
	}
	return nil
}

// Daily implements [Store].
func (s *SQLiteStore) Daily(ctx context.Context, day string) (Daily, error) {
	d := Daily{Day: day}
	err := s.db.QueryRowContext(ctx,
		`SELECT words_added, words_learned, answers, correct_answers FROM daily_statistics WHERE day = ?`, day,
	).Scan(&d.WordsAdded, &d.WordsLearned, &d.Answers, &d.CorrectAnswers)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Daily{}, fmt.Errorf("progress: daily: %w", err)
	}
	return d, nil
}

// Ping implements [Store].
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
