package progress

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"
)

// MemoryStore is a [Store] that keeps everything in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	scores map[string]Entry
	daily  map[string]Daily
	now    func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty [MemoryStore].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		scores: make(map[string]Entry),
		daily:  make(map[string]Daily),
		now:    time.Now,
	}
}

// Score implements [Store].
func (s *MemoryStore) Score(_ context.Context, wordID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.scores[wordID]
	if !ok {
		return 0, ErrWordNotFound
	}
	return e.Score, nil
}

// SaveScore implements [Store].
func (s *MemoryStore) SaveScore(_ context.Context, wordID string, score int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores[wordID] = Entry{WordID: wordID, Score: score, UpdatedAt: s.now()}
	return nil
}

// Scores implements [Store].
func (s *MemoryStore) Scores(_ context.Context, ids []string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int, len(ids))
	for _, id := range ids {
		if e, ok := s.scores[id]; ok {
			out[id] = e.Score
		}
	}
	return out, nil
}

// Entries implements [Store].
func (s *MemoryStore) Entries(_ context.Context) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, 0, len(s.scores))
	for _, e := range s.scores {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b Entry) int { return strings.Compare(a.WordID, b.WordID) })
	return out, nil
}

// AddDaily implements [Store].
func (s *MemoryStore) AddDaily(_ context.Context, d Daily) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.daily[d.Day]
	cur.Day = d.Day
	cur.WordsAdded += d.WordsAdded
	cur.WordsLearned += d.WordsLearned
	cur.Answers += d.Answers
	cur.CorrectAnswers += d.CorrectAnswers
	s.daily[d.Day] = cur
	return nil
}

// Daily implements [Store].
func (s *MemoryStore) Daily(_ context.Context, day string) (Daily, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.daily[day]
	if !ok {
		return Daily{Day: day}, nil
	}
	return d, nil
}

// Ping implements [Store]. It always succeeds.
func (s *MemoryStore) Ping(context.Context) error { return nil }
