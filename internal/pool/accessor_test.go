package pool

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"trivia-service/internal/models"
)

type stubFinder struct {
	questions []models.Question
	err       error
}

func (f *stubFinder) FindApproved(_ context.Context, difficulty string) ([]models.Question, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Question
	for _, q := range f.questions {
		if q.Difficulty == difficulty {
			out = append(out, q)
		}
	}
	return out, nil
}

func makeQuestions(n int, difficulty string) []models.Question {
	qs := make([]models.Question, 0, n)
	for i := 0; i < n; i++ {
		qs = append(qs, models.Question{
			ID:         fmt.Sprintf("q%03d", i),
			Difficulty: difficulty,
			State:      models.QuestionApproved,
		})
	}
	return qs
}

func TestSampleReturnsDistinctMatchingQuestions(t *testing.T) {
	finder := &stubFinder{questions: append(makeQuestions(40, models.DifficultyEasy), makeQuestions(20, models.DifficultyHard)...)}
	accessor := NewAccessor(finder)

	sample, err := accessor.Sample(context.Background(), models.DifficultyEasy, 10, nil)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if len(sample) != 10 {
		t.Fatalf("expected 10 questions, got %d", len(sample))
	}

	seen := map[string]bool{}
	for _, q := range sample {
		if seen[q.ID] {
			t.Errorf("duplicate question %s in sample", q.ID)
		}
		seen[q.ID] = true
		if q.Difficulty != models.DifficultyEasy {
			t.Errorf("question %s has difficulty %s", q.ID, q.Difficulty)
		}
	}
}

func TestSampleRespectsExclusions(t *testing.T) {
	finder := &stubFinder{questions: makeQuestions(12, models.DifficultyMedium)}
	accessor := NewAccessor(finder)

	exclude := []string{"q000", "q001", "q002", "q003", "q004", "q005"}
	sample, err := accessor.Sample(context.Background(), models.DifficultyMedium, 6, exclude)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	excluded := map[string]bool{}
	for _, id := range exclude {
		excluded[id] = true
	}
	for _, q := range sample {
		if excluded[q.ID] {
			t.Errorf("excluded question %s was sampled", q.ID)
		}
	}
}

func TestSampleFailsWhenPoolExhausted(t *testing.T) {
	finder := &stubFinder{questions: makeQuestions(9, models.DifficultyEasy)}
	accessor := NewAccessor(finder)

	cases := []struct {
		name    string
		count   int
		exclude []string
	}{
		{"pool smaller than count", 10, nil},
		{"exclusions shrink pool below count", 9, []string{"q000"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := accessor.Sample(context.Background(), models.DifficultyEasy, tc.count, tc.exclude)
			if !errors.Is(err, ErrExhausted) {
				t.Errorf("expected ErrExhausted, got %v", err)
			}
		})
	}
}

func TestSampleOfWholePoolReturnsEveryQuestion(t *testing.T) {
	finder := &stubFinder{questions: makeQuestions(10, models.DifficultyHard)}
	accessor := NewAccessor(finder)

	sample, err := accessor.Sample(context.Background(), models.DifficultyHard, 10, nil)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	seen := map[string]bool{}
	for _, q := range sample {
		seen[q.ID] = true
	}
	if len(seen) != 10 {
		t.Errorf("expected all 10 distinct questions, got %d", len(seen))
	}
}

func TestSampleEventuallyDrawsEveryQuestion(t *testing.T) {
	finder := &stubFinder{questions: makeQuestions(8, models.DifficultyEasy)}
	accessor := NewAccessor(finder)

	seen := map[string]bool{}
	for i := 0; i < 400; i++ {
		sample, err := accessor.Sample(context.Background(), models.DifficultyEasy, 2, nil)
		if err != nil {
			t.Fatalf("Sample: %v", err)
		}
		for _, q := range sample {
			seen[q.ID] = true
		}
	}
	if len(seen) != 8 {
		t.Errorf("after 400 draws only %d of 8 questions were ever selected; sampling looks biased", len(seen))
	}
}

func TestSamplePropagatesStorageErrors(t *testing.T) {
	finder := &stubFinder{err: errors.New("connection reset")}
	accessor := NewAccessor(finder)

	if _, err := accessor.Sample(context.Background(), models.DifficultyEasy, 10, nil); err == nil {
		t.Error("expected storage error to propagate")
	}
}
