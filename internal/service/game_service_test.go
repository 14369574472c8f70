package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"trivia-service/internal/models"
	"trivia-service/internal/pool"
	"trivia-service/internal/repository"
	"trivia-service/internal/token"
)

// fakeGameStore mimics the repository's conditional-update semantics,
// including the active-state compare-and-swap on finalize.
type fakeGameStore struct {
	mu     sync.Mutex
	games  map[string]*models.Game
	nextID int
	fail   int // number of upcoming calls that return a transient error
}

func newFakeGameStore() *fakeGameStore {
	return &fakeGameStore{games: map[string]*models.Game{}}
}

func (f *fakeGameStore) transient() error {
	if f.fail > 0 {
		f.fail--
		return errors.New("simulated storage outage")
	}
	return nil
}

func (f *fakeGameStore) Create(_ context.Context, game *models.Game) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.transient(); err != nil {
		return err
	}
	f.nextID++
	game.ID = fmt.Sprintf("game%04d", f.nextID)
	stored := *game
	f.games[game.ID] = &stored
	return nil
}

func (f *fakeGameStore) FindByID(_ context.Context, id string) (*models.Game, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.transient(); err != nil {
		return nil, err
	}
	game, ok := f.games[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *game
	return &copied, nil
}

func (f *fakeGameStore) FindAll(_ context.Context) ([]models.Game, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Game
	for _, g := range f.games {
		out = append(out, *g)
	}
	return out, nil
}

func (f *fakeGameStore) FinalizeActive(_ context.Context, id string, completion models.GameCompletion) (*models.Game, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.transient(); err != nil {
		return nil, err
	}
	game, ok := f.games[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if game.State != models.GameActive {
		return nil, repository.ErrAlreadyFinished
	}
	game.User = completion.User
	game.Questions = completion.Questions
	game.Victory = completion.Victory
	game.Duration = completion.Duration
	game.TimedOut = completion.TimedOut
	game.TotalCorrectAnswers = completion.TotalCorrectAnswers
	game.TotalIncorrectAnswers = completion.TotalIncorrectAnswers
	game.State = models.GameFinished
	game.FinishedAt = time.Now()
	copied := *game
	return &copied, nil
}

func (f *fakeGameStore) FindTop(_ context.Context, limit int64) ([]models.Game, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if limit <= 0 || limit > repository.LeaderboardCap {
		limit = repository.LeaderboardCap
	}
	var out []models.Game
	for _, g := range f.games {
		if g.State != models.GameFinished || g.TimedOut || g.Duration <= 0 {
			continue
		}
		out = append(out, *g)
	}
	// Insertion sort by (correct desc, duration asc); pools are tiny here.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0; j-- {
			a, b := out[j-1], out[j]
			if b.TotalCorrectAnswers > a.TotalCorrectAnswers ||
				(b.TotalCorrectAnswers == a.TotalCorrectAnswers && b.Duration < a.Duration) {
				out[j-1], out[j] = b, a
			}
		}
	}
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

// fakeQuestionStore backs both the sampler (via FindApproved) and grading.
type fakeQuestionStore struct {
	mu        sync.Mutex
	questions map[string]*models.Question
}

func newFakeQuestionStore(qs []models.Question) *fakeQuestionStore {
	store := &fakeQuestionStore{questions: map[string]*models.Question{}}
	for i := range qs {
		q := qs[i]
		store.questions[q.ID] = &q
	}
	return store
}

func (f *fakeQuestionStore) FindApproved(_ context.Context, difficulty string) ([]models.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Question
	for _, q := range f.questions {
		if q.State == models.QuestionApproved && q.Difficulty == difficulty {
			out = append(out, *q)
		}
	}
	return out, nil
}

func (f *fakeQuestionStore) FindByIDs(_ context.Context, ids []string) ([]models.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Question
	for _, id := range ids {
		if q, ok := f.questions[id]; ok {
			out = append(out, *q)
		}
	}
	return out, nil
}

func (f *fakeQuestionStore) IncrementAnswered(_ context.Context, id string, correct bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.questions[id]
	if !ok {
		return repository.ErrNotFound
	}
	q.TimesAnswered++
	if correct {
		q.TimesAnsweredCorrectly++
	}
	return nil
}

func (f *fakeQuestionStore) delete(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.questions, id)
}

func (f *fakeQuestionStore) get(id string) models.Question {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.questions[id]
}

func approvedQuestions(n int, difficulty string) []models.Question {
	qs := make([]models.Question, 0, n)
	for i := 0; i < n; i++ {
		qs = append(qs, models.Question{
			ID:         fmt.Sprintf("q%03d", i),
			Title:      fmt.Sprintf("Question %d", i),
			Difficulty: difficulty,
			State:      models.QuestionApproved,
			Options: []models.Option{
				{Text: "a", OptionID: 0, Correct: i%4 == 0},
				{Text: "b", OptionID: 1, Correct: i%4 == 1},
				{Text: "c", OptionID: 2, Correct: i%4 == 2},
				{Text: "d", OptionID: 3, Correct: i%4 == 3},
			},
		})
	}
	return qs
}

func newTestService(t *testing.T, questions []models.Question) (*GameService, *fakeGameStore, *fakeQuestionStore) {
	t.Helper()
	codec, err := token.NewCodec([]byte("0123456789abcdef0123456789abcdef"), time.Hour)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	games := newFakeGameStore()
	store := newFakeQuestionStore(questions)
	svc := NewGameService(games, store, pool.NewAccessor(store), codec)
	return svc, games, store
}

// answersFor builds a full submission. correctAll decides whether every
// answer picks the option flagged correct or deliberately misses it.
func answersFor(t *testing.T, store *fakeQuestionStore, started *StartedGame, correctAll bool) []AnswerSubmission {
	t.Helper()
	answers := make([]AnswerSubmission, 0, len(started.Questions))
	for _, pub := range started.Questions {
		q := store.get(pub.ID)
		correctID, ok := q.CorrectOptionID()
		if !ok {
			t.Fatalf("question %s has no correct option", pub.ID)
		}
		selected := correctID
		if !correctAll {
			selected = (correctID + 1) % models.OptionsPerQuestion
		}
		answers = append(answers, AnswerSubmission{
			QuestionID:     pub.ID,
			Answered:       true,
			SelectedOption: selected,
			Duration:       20,
			TimedOut:       false,
		})
	}
	return answers
}

func TestStartGameValidatesInput(t *testing.T) {
	svc, _, _ := newTestService(t, approvedQuestions(60, models.DifficultyEasy))

	cases := []struct {
		name       string
		difficulty string
		count      int
	}{
		{"unknown difficulty", "impossible", 10},
		{"count not allowed", models.DifficultyEasy, 7},
		{"zero count", models.DifficultyEasy, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.StartGame(context.Background(), tc.difficulty, tc.count); !errors.Is(err, ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestStartGameStripsCorrectFlags(t *testing.T) {
	svc, games, _ := newTestService(t, approvedQuestions(30, models.DifficultyEasy))

	started, err := svc.StartGame(context.Background(), models.DifficultyEasy, 10)
	if err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	if len(started.Questions) != 10 {
		t.Fatalf("expected 10 questions, got %d", len(started.Questions))
	}
	if started.Token == "" {
		t.Fatal("expected a sealed token")
	}

	game, err := games.FindByID(context.Background(), started.GameID)
	if err != nil {
		t.Fatalf("game record not created: %v", err)
	}
	if game.State != models.GameActive {
		t.Errorf("expected active game, got %s", game.State)
	}
	if len(game.Questions) != 10 {
		t.Errorf("game record should reference 10 questions, got %d", len(game.Questions))
	}
}

func TestStartGameFailsWhenPoolExhausted(t *testing.T) {
	svc, _, _ := newTestService(t, approvedQuestions(9, models.DifficultyEasy))

	if _, err := svc.StartGame(context.Background(), models.DifficultyEasy, 10); !errors.Is(err, ErrPoolExhausted) {
		t.Errorf("expected ErrPoolExhausted, got %v", err)
	}
}

func TestSubmitGameAllCorrectIsVictory(t *testing.T) {
	svc, _, store := newTestService(t, approvedQuestions(30, models.DifficultyEasy))

	started, err := svc.StartGame(context.Background(), models.DifficultyEasy, 10)
	if err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	answers := answersFor(t, store, started, true)

	finished, err := svc.SubmitGame(context.Background(), started.Token, "ana", answers)
	if err != nil {
		t.Fatalf("SubmitGame: %v", err)
	}
	if !finished.Victory {
		t.Error("expected victory with every answer correct")
	}
	if finished.CorrectAnswers != 10 || finished.IncorrectAnswers != 0 {
		t.Errorf("expected 10/0, got %d/%d", finished.CorrectAnswers, finished.IncorrectAnswers)
	}
	if finished.Duration != 200 {
		t.Errorf("expected accumulated duration 200, got %d", finished.Duration)
	}

	// Grading must also bump the per-question counters.
	q := store.get(answers[0].QuestionID)
	if q.TimesAnswered != 1 || q.TimesAnsweredCorrectly != 1 {
		t.Errorf("expected counters 1/1, got %d/%d", q.TimesAnswered, q.TimesAnsweredCorrectly)
	}
}

func TestSubmitGameWrongAnswersLowerVictoryOnly(t *testing.T) {
	svc, _, store := newTestService(t, approvedQuestions(30, models.DifficultyEasy))

	started, err := svc.StartGame(context.Background(), models.DifficultyEasy, 10)
	if err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	answers := answersFor(t, store, started, false)

	// Several wrong answers are a defeat, never a rejection.
	finished, err := svc.SubmitGame(context.Background(), started.Token, "ana", answers)
	if err != nil {
		t.Fatalf("SubmitGame: %v", err)
	}
	if finished.Victory {
		t.Error("expected defeat")
	}
	if finished.IncorrectAnswers != 10 {
		t.Errorf("expected 10 incorrect, got %d", finished.IncorrectAnswers)
	}
}

func TestSubmitGameNeverTrustsClientCorrectness(t *testing.T) {
	svc, _, store := newTestService(t, approvedQuestions(30, models.DifficultyEasy))

	started, err := svc.StartGame(context.Background(), models.DifficultyEasy, 10)
	if err != nil {
		t.Fatalf("StartGame: %v", err)
	}

	// Whatever else the client reports per answer, correctness comes from
	// comparing the selected option with the stored correct flag.
	answers := answersFor(t, store, started, true)
	for i := range answers {
		answers[i].Duration = 1
	}
	finished, err := svc.SubmitGame(context.Background(), started.Token, "", answers)
	if err != nil {
		t.Fatalf("SubmitGame: %v", err)
	}
	if finished.CorrectAnswers != 10 {
		t.Errorf("selected the correct options, expected 10 correct, got %d", finished.CorrectAnswers)
	}
}

func TestSubmitGameRejectsShortSubmission(t *testing.T) {
	svc, _, store := newTestService(t, approvedQuestions(30, models.DifficultyEasy))

	started, err := svc.StartGame(context.Background(), models.DifficultyEasy, 10)
	if err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	answers := answersFor(t, store, started, true)

	if _, err := svc.SubmitGame(context.Background(), started.Token, "ana", answers[:5]); !errors.Is(err, ErrBadAnswers) {
		t.Errorf("expected ErrBadAnswers for 5 of 10 answers, got %v", err)
	}
}

func TestSubmitGameRejectsDisallowedSize(t *testing.T) {
	svc, _, store := newTestService(t, approvedQuestions(60, models.DifficultyEasy))

	started, err := svc.StartGame(context.Background(), models.DifficultyEasy, 50)
	if err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	answers := answersFor(t, store, started, true)

	if _, err := svc.SubmitGame(context.Background(), started.Token, "ana", answers[:45]); !errors.Is(err, ErrBadAnswers) {
		t.Errorf("expected ErrBadAnswers for 45 answers, got %v", err)
	}
}

func TestSubmitGameRejectsForeignQuestions(t *testing.T) {
	svc, _, store := newTestService(t, approvedQuestions(30, models.DifficultyEasy))

	started, err := svc.StartGame(context.Background(), models.DifficultyEasy, 10)
	if err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	answers := answersFor(t, store, started, true)
	answers[3].QuestionID = "q999"

	if _, err := svc.SubmitGame(context.Background(), started.Token, "ana", answers); !errors.Is(err, ErrBadAnswers) {
		t.Errorf("expected ErrBadAnswers for a question outside the game, got %v", err)
	}
}

func TestSubmitGameRejectsDuplicateQuestions(t *testing.T) {
	svc, _, store := newTestService(t, approvedQuestions(30, models.DifficultyEasy))

	started, err := svc.StartGame(context.Background(), models.DifficultyEasy, 10)
	if err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	answers := answersFor(t, store, started, true)
	answers[1].QuestionID = answers[0].QuestionID

	if _, err := svc.SubmitGame(context.Background(), started.Token, "ana", answers); !errors.Is(err, ErrBadAnswers) {
		t.Errorf("expected ErrBadAnswers for duplicated question ids, got %v", err)
	}
}

func TestSubmitGameRejectsTamperedToken(t *testing.T) {
	svc, _, store := newTestService(t, approvedQuestions(30, models.DifficultyEasy))

	started, err := svc.StartGame(context.Background(), models.DifficultyEasy, 10)
	if err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	answers := answersFor(t, store, started, true)

	for _, bad := range []string{"", "garbage", started.Token + "x"} {
		if _, err := svc.SubmitGame(context.Background(), bad, "ana", answers); !errors.Is(err, ErrTokenInvalid) {
			t.Errorf("token %q: expected ErrTokenInvalid, got %v", bad, err)
		}
	}
}

func TestSubmitGameGradesDanglingQuestionAsIncorrect(t *testing.T) {
	svc, _, store := newTestService(t, approvedQuestions(30, models.DifficultyEasy))

	started, err := svc.StartGame(context.Background(), models.DifficultyEasy, 10)
	if err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	answers := answersFor(t, store, started, true)

	// A question deleted mid-game degrades to incorrect, never a crash.
	store.delete(answers[0].QuestionID)

	finished, err := svc.SubmitGame(context.Background(), started.Token, "ana", answers)
	if err != nil {
		t.Fatalf("SubmitGame: %v", err)
	}
	if finished.Victory {
		t.Error("expected defeat when a question reference dangles")
	}
	if finished.CorrectAnswers != 9 || finished.IncorrectAnswers != 1 {
		t.Errorf("expected 9/1, got %d/%d", finished.CorrectAnswers, finished.IncorrectAnswers)
	}
}

func TestSubmitGameConcurrentFinalizeIsSerialized(t *testing.T) {
	svc, _, store := newTestService(t, approvedQuestions(30, models.DifficultyEasy))

	started, err := svc.StartGame(context.Background(), models.DifficultyEasy, 10)
	if err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	answers := answersFor(t, store, started, true)

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.SubmitGame(context.Background(), started.Token, "ana", answers)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, alreadyFinished int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrAlreadyFinished):
			alreadyFinished++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || alreadyFinished != 1 {
		t.Errorf("expected exactly one success and one AlreadyFinished, got %d/%d", succeeded, alreadyFinished)
	}
}

func TestSubmitGameTwiceReturnsAlreadyFinished(t *testing.T) {
	svc, _, store := newTestService(t, approvedQuestions(30, models.DifficultyEasy))

	started, err := svc.StartGame(context.Background(), models.DifficultyEasy, 10)
	if err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	answers := answersFor(t, store, started, true)

	if _, err := svc.SubmitGame(context.Background(), started.Token, "ana", answers); err != nil {
		t.Fatalf("first SubmitGame: %v", err)
	}
	if _, err := svc.SubmitGame(context.Background(), started.Token, "ana", answers); !errors.Is(err, ErrAlreadyFinished) {
		t.Errorf("expected ErrAlreadyFinished on replay, got %v", err)
	}
}

func TestSubmitGameAccumulatesTimedOut(t *testing.T) {
	svc, _, store := newTestService(t, approvedQuestions(30, models.DifficultyEasy))

	started, err := svc.StartGame(context.Background(), models.DifficultyEasy, 10)
	if err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	answers := answersFor(t, store, started, true)
	answers[4].TimedOut = true

	finished, err := svc.SubmitGame(context.Background(), started.Token, "ana", answers)
	if err != nil {
		t.Fatalf("SubmitGame: %v", err)
	}
	if !finished.TimedOut {
		t.Error("one timed-out answer must flag the whole game as timed out")
	}
}

func TestWithRetryRecoversFromOneTransientFailure(t *testing.T) {
	svc, games, store := newTestService(t, approvedQuestions(30, models.DifficultyEasy))

	started, err := svc.StartGame(context.Background(), models.DifficultyEasy, 10)
	if err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	answers := answersFor(t, store, started, true)

	games.mu.Lock()
	games.fail = 1
	games.mu.Unlock()

	if _, err := svc.SubmitGame(context.Background(), started.Token, "ana", answers); err != nil {
		t.Errorf("one transient failure should be absorbed, got %v", err)
	}
}

func TestWithRetrySurfacesPersistentFailure(t *testing.T) {
	svc, games, _ := newTestService(t, approvedQuestions(30, models.DifficultyEasy))

	games.mu.Lock()
	games.fail = 10
	games.mu.Unlock()

	_, err := svc.GetGame(context.Background(), "game0001")
	if !errors.Is(err, ErrStorage) {
		t.Errorf("expected ErrStorage after retry, got %v", err)
	}
}

func TestTopExcludesIneligibleGames(t *testing.T) {
	svc, games, _ := newTestService(t, nil)

	seed := []models.Game{
		{State: models.GameFinished, Duration: 50, TotalCorrectAnswers: 10, User: "fast"},
		{State: models.GameFinished, Duration: 90, TotalCorrectAnswers: 10, User: "slow"},
		{State: models.GameFinished, Duration: 70, TotalCorrectAnswers: 8, User: "ok"},
		{State: models.GameFinished, Duration: 80, TotalCorrectAnswers: 10, TimedOut: true, User: "timedout"},
		{State: models.GameActive, Duration: 10, TotalCorrectAnswers: 10, User: "running"},
		{State: models.GameFinished, Duration: 0, TotalCorrectAnswers: 10, User: "zeroduration"},
	}
	for i := range seed {
		g := seed[i]
		if err := games.Create(context.Background(), &g); err != nil {
			t.Fatalf("seeding: %v", err)
		}
		games.mu.Lock()
		games.games[g.ID].State = seed[i].State
		games.mu.Unlock()
	}

	top, err := svc.Top(context.Background(), 10)
	if err != nil {
		t.Fatalf("Top: %v", err)
	}
	if len(top) != 3 {
		t.Fatalf("expected 3 eligible games, got %d", len(top))
	}
	for _, g := range top {
		if g.TimedOut || g.State != models.GameFinished || g.Duration <= 0 {
			t.Errorf("ineligible game %s on the leaderboard", g.User)
		}
	}
	if top[0].User != "fast" || top[1].User != "slow" || top[2].User != "ok" {
		t.Errorf("wrong order: %s, %s, %s", top[0].User, top[1].User, top[2].User)
	}
}
