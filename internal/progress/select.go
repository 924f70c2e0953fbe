package progress

import (
	"cmp"
	"context"
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/MrWong99/lexivox/pkg/types"
)

// Selection limits for [SelectWords].
const (
	DefaultLimit = 10
	MaxLimit     = 50
)

// SelectWords picks up to limit words to practice, least learned first. Words
// with equal scores come in random order. A limit below 1 selects
// [DefaultLimit] words; limits above [MaxLimit] are clamped.
func SelectWords(ctx context.Context, store Store, words []types.Word, limit int) ([]types.Word, error) {
	switch {
	case limit < 1:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}

	ids := make([]string, len(words))
	for i, w := range words {
		ids[i] = w.ID
	}
	scores, err := store.Scores(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("progress: select words: %w", err)
	}

	out := slices.Clone(words)
	rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	slices.SortStableFunc(out, func(a, b types.Word) int {
		return cmp.Compare(scores[a.ID], scores[b.ID])
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
