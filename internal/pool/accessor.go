package pool

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"trivia-service/internal/models"
)

// ErrExhausted reports that the eligible pool is smaller than the requested
// sample size. The accessor never pads or truncates a sample.
var ErrExhausted = errors.New("not enough eligible questions in the pool")

// QuestionFinder is the narrow read surface the accessor needs from storage.
type QuestionFinder interface {
	FindApproved(ctx context.Context, difficulty string) ([]models.Question, error)
}

// Accessor draws uniformly random question samples without replacement.
// It is read-only: presentation counters are the state machine's business.
type Accessor struct {
	questions QuestionFinder

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewAccessor(questions QuestionFinder) *Accessor {
	return &Accessor{
		questions: questions,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Sample returns count distinct approved questions of the given difficulty,
// none of which appear in excludeIDs. Index order of the backing store does
// not bias the draw: indexes are rejection-sampled until count distinct ones
// are collected.
func (a *Accessor) Sample(ctx context.Context, difficulty string, count int, excludeIDs []string) ([]models.Question, error) {
	if count <= 0 {
		return nil, fmt.Errorf("sample count must be positive, got %d", count)
	}

	candidates, err := a.questions.FindApproved(ctx, difficulty)
	if err != nil {
		return nil, fmt.Errorf("loading question pool: %w", err)
	}

	if len(excludeIDs) > 0 {
		excluded := make(map[string]struct{}, len(excludeIDs))
		for _, id := range excludeIDs {
			excluded[id] = struct{}{}
		}
		eligible := candidates[:0:0]
		for _, q := range candidates {
			if _, skip := excluded[q.ID]; !skip {
				eligible = append(eligible, q)
			}
		}
		candidates = eligible
	}

	if len(candidates) < count {
		return nil, fmt.Errorf("%w: need %d, have %d", ErrExhausted, count, len(candidates))
	}

	picked := a.pickIndexes(len(candidates), count)
	sample := make([]models.Question, 0, count)
	for _, idx := range picked {
		sample = append(sample, candidates[idx])
	}
	return sample, nil
}

// pickIndexes collects count distinct indexes in [0, n) by rejection
// sampling, preserving the order in which they were drawn.
func (a *Accessor) pickIndexes(n, count int) []int {
	a.mu.Lock()
	defer a.mu.Unlock()

	seen := make(map[int]struct{}, count)
	picked := make([]int, 0, count)
	for len(picked) < count {
		idx := a.rnd.Intn(n)
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		picked = append(picked, idx)
	}
	return picked
}
