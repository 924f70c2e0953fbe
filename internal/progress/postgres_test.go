package progress

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// statement is one call the store issued.
type statement struct {
	sql  string
	args []any
}

// scriptedDB answers every call from a fixed result set and records what was
// asked of it.
type scriptedDB struct {
	result  [][]any
	failErr error // returned by the call itself
	iterErr error // surfaced through rows.Err
	scanErr error

	mu    sync.Mutex
	calls []statement
	open  int
}

func (db *scriptedDB) record(sql string, args []any) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.calls = append(db.calls, statement{sql: sql, args: args})
}

func (db *scriptedDB) last(t *testing.T) statement {
	t.Helper()
	db.mu.Lock()
	defer db.mu.Unlock()
	if len(db.calls) == 0 {
		t.Fatal("no statement issued")
	}
	return db.calls[len(db.calls)-1]
}

func (db *scriptedDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	db.record(sql, args)
	return &scriptedRows{db: db, data: db.result, idx: -1, single: true}
}

func (db *scriptedDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	db.record(sql, args)
	if db.failErr != nil {
		return nil, db.failErr
	}
	db.mu.Lock()
	db.open++
	db.mu.Unlock()
	return &scriptedRows{db: db, data: db.result, idx: -1}, nil
}

func (db *scriptedDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	db.record(sql, args)
	if db.failErr != nil {
		return pgconn.CommandTag{}, db.failErr
	}
	return pgconn.NewCommandTag("OK"), nil
}

// scriptedRows serves both pgx.Row and pgx.Rows.
type scriptedRows struct {
	db     *scriptedDB
	data   [][]any
	idx    int
	single bool
	closed bool
}

func (r *scriptedRows) Next() bool {
	if r.idx+1 >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *scriptedRows) Scan(dest ...any) error {
	if r.single {
		if r.db.failErr != nil {
			return r.db.failErr
		}
		if !r.Next() {
			return pgx.ErrNoRows
		}
	}
	if r.db.scanErr != nil {
		return r.db.scanErr
	}
	return assign(dest, r.data[r.idx])
}

func (r *scriptedRows) Close() {
	if r.closed {
		return
	}
	r.closed = true
	r.db.mu.Lock()
	r.db.open--
	r.db.mu.Unlock()
}

func (r *scriptedRows) Err() error                                   { return r.db.iterErr }
func (r *scriptedRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *scriptedRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *scriptedRows) Values() ([]any, error)                       { return r.data[r.idx], nil }
func (r *scriptedRows) RawValues() [][]byte                          { return nil }
func (r *scriptedRows) Conn() *pgx.Conn                              { return nil }

func assign(dest, row []any) error {
	if len(dest) != len(row) {
		return fmt.Errorf("scan: %d targets for %d columns", len(dest), len(row))
	}
	for i, v := range row {
		var ok bool
		switch d := dest[i].(type) {
		case *string:
			*d, ok = v.(string)
		case *int:
			*d, ok = v.(int)
		case *time.Time:
			*d, ok = v.(time.Time)
		}
		if !ok {
			return fmt.Errorf("scan: column %d: cannot store %T in %T", i, v, dest[i])
		}
	}
	return nil
}

func TestPostgresStore_Statements(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name     string
		call     func(*PostgresStore) error
		wantSQL  []string
		wantArgs []any
	}{
		{
			name:    "migrate creates both tables",
			call:    func(s *PostgresStore) error { return s.Migrate(ctx) },
			wantSQL: []string{"CREATE TABLE IF NOT EXISTS word_progress", "CREATE TABLE IF NOT EXISTS daily_statistics"},
		},
		{
			name:     "save score upserts",
			call:     func(s *PostgresStore) error { return s.SaveScore(ctx, "haus", 60) },
			wantSQL:  []string{"INSERT INTO word_progress", "ON CONFLICT (word_id) DO UPDATE"},
			wantArgs: []any{"haus", 60},
		},
		{
			name: "add daily accumulates",
			call: func(s *PostgresStore) error {
				return s.AddDaily(ctx, Daily{Day: "2026-10-17", WordsAdded: 1, Answers: 3, CorrectAnswers: 2})
			},
			wantSQL:  []string{"daily_statistics.answers + EXCLUDED.answers", "$1::date"},
			wantArgs: []any{"2026-10-17", 1, 0, 3, 2},
		},
		{
			name:    "ping",
			call:    func(s *PostgresStore) error { return s.Ping(ctx) },
			wantSQL: []string{"SELECT 1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			db := &scriptedDB{}
			if err := tt.call(NewPostgresStore(db)); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got := db.last(t)
			for _, frag := range tt.wantSQL {
				if !strings.Contains(got.sql, frag) {
					t.Errorf("sql lacks %q:\n%s", frag, got.sql)
				}
			}
			if fmt.Sprint(got.args) != fmt.Sprint(tt.wantArgs) {
				t.Errorf("args = %v, want %v", got.args, tt.wantArgs)
			}
		})
	}
}

func TestPostgresStore_FailuresAreWrapped(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	down := errors.New("connection refused")

	tests := []struct {
		prefix string
		call   func(*PostgresStore) error
	}{
		{"progress: migrate:", func(s *PostgresStore) error { return s.Migrate(ctx) }},
		{"progress: save score:", func(s *PostgresStore) error { return s.SaveScore(ctx, "haus", 1) }},
		{"progress: add daily:", func(s *PostgresStore) error { return s.AddDaily(ctx, Daily{Day: "2026-10-17"}) }},
		{"progress: ping:", func(s *PostgresStore) error { return s.Ping(ctx) }},
		{"progress: score:", func(s *PostgresStore) error { _, err := s.Score(ctx, "haus"); return err }},
		{"progress: scores:", func(s *PostgresStore) error { _, err := s.Scores(ctx, []string{"haus"}); return err }},
		{"progress: entries:", func(s *PostgresStore) error { _, err := s.Entries(ctx); return err }},
		{"progress: daily:", func(s *PostgresStore) error { _, err := s.Daily(ctx, "2026-10-17"); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			t.Parallel()
			err := tt.call(NewPostgresStore(&scriptedDB{failErr: down}))
			if !errors.Is(err, down) {
				t.Fatalf("error = %v, want it to wrap %v", err, down)
			}
			if !strings.HasPrefix(err.Error(), tt.prefix) {
				t.Errorf("error = %q, want prefix %q", err, tt.prefix)
			}
		})
	}
}

func TestPostgresStore_Score(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		db      *scriptedDB
		want    int
		wantErr error
	}{
		{name: "stored", db: &scriptedDB{result: [][]any{{45}}}, want: 45},
		{name: "never answered", db: &scriptedDB{}, wantErr: ErrWordNotFound},
		{name: "bad column", db: &scriptedDB{result: [][]any{{"45"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := NewPostgresStore(tt.db).Score(context.Background(), "haus")
			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Score error = %v, want %v", err, tt.wantErr)
				}
			case tt.want == 0:
				if err == nil || errors.Is(err, ErrWordNotFound) {
					t.Fatalf("Score error = %v, want a scan failure", err)
				}
			default:
				if err != nil || got != tt.want {
					t.Fatalf("Score = %d, %v, want %d", got, err, tt.want)
				}
			}
			if args := tt.db.last(t).args; len(args) != 1 || args[0] != "haus" {
				t.Errorf("args = %v", args)
			}
		})
	}
}

func TestPostgresStore_Scores(t *testing.T) {
	t.Parallel()

	t.Run("batch lookup", func(t *testing.T) {
		t.Parallel()
		db := &scriptedDB{result: [][]any{{"haus", 10}, {"baum", 90}}}
		got, err := NewPostgresStore(db).Scores(context.Background(), []string{"haus", "baum", "katze"})
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 2 || got["haus"] != 10 || got["baum"] != 90 {
			t.Errorf("Scores = %v", got)
		}
		call := db.last(t)
		if !strings.Contains(call.sql, "= ANY($1)") {
			t.Errorf("sql = %s", call.sql)
		}
		if ids, ok := call.args[0].([]string); !ok || len(ids) != 3 {
			t.Errorf("args = %v", call.args)
		}
		if db.open != 0 {
			t.Errorf("%d result sets left open", db.open)
		}
	})

	t.Run("empty batch issues no query", func(t *testing.T) {
		t.Parallel()
		db := &scriptedDB{}
		got, err := NewPostgresStore(db).Scores(context.Background(), nil)
		if err != nil || len(got) != 0 {
			t.Fatalf("Scores(nil) = %v, %v", got, err)
		}
		if len(db.calls) != 0 {
			t.Errorf("issued %d statements", len(db.calls))
		}
	})

	for name, db := range map[string]*scriptedDB{
		"scan fails":      {result: [][]any{{"haus", 1}}, scanErr: errors.New("bad column")},
		"iteration fails": {iterErr: errors.New("broken pipe")},
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if _, err := NewPostgresStore(db).Scores(context.Background(), []string{"haus"}); err == nil {
				t.Error("Scores succeeded")
			}
			if db.open != 0 {
				t.Errorf("%d result sets left open", db.open)
			}
		})
	}
}

func TestPostgresStore_Entries(t *testing.T) {
	t.Parallel()
	at := time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)
	db := &scriptedDB{result: [][]any{{"baum", MaxScore, at}, {"haus", 5, at}}}

	got, err := NewPostgresStore(db).Entries(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := []Entry{{WordID: "baum", Score: MaxScore, UpdatedAt: at}, {WordID: "haus", Score: 5, UpdatedAt: at}}
	if len(got) != len(want) {
		t.Fatalf("Entries = %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	if !got[0].Learned() || got[1].Learned() {
		t.Error("Learned does not follow the score")
	}
	if !strings.Contains(db.last(t).sql, "ORDER BY word_id") {
		t.Error("entries are not ordered")
	}
}

func TestPostgresStore_Daily(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rows [][]any
		want Daily
	}{
		{
			name: "tallied day",
			rows: [][]any{{2, 1, 9, 7}},
			want: Daily{Day: "2026-10-17", WordsAdded: 2, WordsLearned: 1, Answers: 9, CorrectAnswers: 7},
		},
		{
			name: "quiet day is zero",
			want: Daily{Day: "2026-10-17"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := NewPostgresStore(&scriptedDB{result: tt.rows}).Daily(context.Background(), "2026-10-17")
			if err != nil || got != tt.want {
				t.Errorf("Daily = %+v, %v, want %+v", got, err, tt.want)
			}
		})
	}
}
