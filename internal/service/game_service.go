package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"trivia-service/internal/models"
	"trivia-service/internal/token"
)

// allowedQuestionCounts are the only game sizes a client may request or
// submit. Enforced before sampling and again before grading.
var allowedQuestionCounts = map[int]bool{10: true, 25: true, 50: true}

// GameStore is the persistence surface the state machine needs for games.
// *repository.GameRepository satisfies it; tests use an in-memory fake.
type GameStore interface {
	Create(ctx context.Context, game *models.Game) error
	FindByID(ctx context.Context, id string) (*models.Game, error)
	FindAll(ctx context.Context) ([]models.Game, error)
	FinalizeActive(ctx context.Context, id string, completion models.GameCompletion) (*models.Game, error)
	FindTop(ctx context.Context, limit int64) ([]models.Game, error)
}

// QuestionStore is the question surface used during grading.
type QuestionStore interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.Question, error)
	IncrementAnswered(ctx context.Context, id string, correct bool) error
}

// QuestionSampler draws the game's question set. *pool.Accessor satisfies it.
type QuestionSampler interface {
	Sample(ctx context.Context, difficulty string, count int, excludeIDs []string) ([]models.Question, error)
}

// GameService is the session state machine. Games run in batch mode: the
// whole question set is issued at start and graded together at submission.
// No session state lives in this process; everything a request needs is in
// the sealed token and the game document.
type GameService struct {
	Games     GameStore
	Questions QuestionStore
	Sampler   QuestionSampler
	Codec     *token.Codec
}

func NewGameService(games GameStore, questions QuestionStore, sampler QuestionSampler, codec *token.Codec) *GameService {
	return &GameService{Games: games, Questions: questions, Sampler: sampler, Codec: codec}
}

// StartedGame is the response to a new-game request: the sealed token plus
// the question set with correct-answer flags stripped.
type StartedGame struct {
	GameID    string                  `json:"game_id"`
	Token     string                  `json:"game_token"`
	Questions []models.PublicQuestion `json:"questions"`
}

// AnswerSubmission is one client-reported answer. Note there is no
// correctness field: correctness is always recomputed server-side.
type AnswerSubmission struct {
	QuestionID     string `json:"question" binding:"required"`
	Answered       bool   `json:"answered"`
	SelectedOption int    `json:"selected_option"`
	Duration       int    `json:"duration"`
	TimedOut       bool   `json:"timed_out"`
}

// FinishedGame summarizes a graded game.
type FinishedGame struct {
	GameID           string `json:"game"`
	Victory          bool   `json:"victory"`
	CorrectAnswers   int    `json:"total_correct_answers"`
	IncorrectAnswers int    `json:"total_incorrect_answers"`
	Duration         int    `json:"duration"`
	TimedOut         bool   `json:"timed_out"`
}

// StartGame samples the question set, creates the durable game record and
// seals the token that authorizes exactly one submission for it.
func (s *GameService) StartGame(ctx context.Context, difficulty string, count int) (*StartedGame, error) {
	switch difficulty {
	case models.DifficultyEasy, models.DifficultyMedium, models.DifficultyHard:
	default:
		return nil, fmt.Errorf("%w: unknown difficulty %q", ErrValidation, difficulty)
	}
	if !allowedQuestionCounts[count] {
		return nil, fmt.Errorf("%w: question count must be 10, 25 or 50", ErrValidation)
	}

	var questions []models.Question
	err := s.withRetry(func() error {
		var sampleErr error
		questions, sampleErr = s.Sampler.Sample(ctx, difficulty, count, nil)
		return sampleErr
	})
	if err != nil {
		return nil, err
	}

	refs := make([]models.GameQuestion, 0, len(questions))
	public := make([]models.PublicQuestion, 0, len(questions))
	for _, q := range questions {
		refs = append(refs, models.GameQuestion{QuestionID: q.ID})
		public = append(public, q.Public())
	}

	game := &models.Game{
		Questions:         refs,
		User:              "anonymous",
		Difficulty:        difficulty,
		TotalQuestions:    count,
		RemainingAttempts: models.DefaultAttempts,
		State:             models.GameActive,
		CreatedAt:         time.Now(),
	}
	if err := s.withRetry(func() error { return s.Games.Create(ctx, game) }); err != nil {
		return nil, err
	}

	gameToken, err := s.Codec.Seal(game.ID)
	if err != nil {
		return nil, fmt.Errorf("sealing game token: %w", err)
	}

	return &StartedGame{GameID: game.ID, Token: gameToken, Questions: public}, nil
}

// SubmitGame unseals the token, validates the submission against the stored
// question set, grades every answer against the authoritative options and
// finalizes the game in a single conditional update.
func (s *GameService) SubmitGame(ctx context.Context, gameToken, user string, answers []AnswerSubmission) (*FinishedGame, error) {
	payload, err := s.Codec.Unseal(gameToken)
	if err != nil {
		return nil, ErrTokenInvalid
	}

	// Size checks come before any grading work.
	if !allowedQuestionCounts[len(answers)] {
		return nil, fmt.Errorf("%w: answer count must be 10, 25 or 50", ErrBadAnswers)
	}

	var game *models.Game
	err = s.withRetry(func() error {
		var findErr error
		game, findErr = s.Games.FindByID(ctx, payload.GameID)
		return findErr
	})
	if err != nil {
		return nil, err
	}
	if game.State != models.GameActive {
		return nil, ErrAlreadyFinished
	}
	if len(answers) != len(game.Questions) {
		return nil, fmt.Errorf("%w: expected %d answers, got %d", ErrBadAnswers, len(game.Questions), len(answers))
	}

	// The submitted ids must be exactly the stored set, order-free and
	// duplicate-free.
	expected := make(map[string]bool, len(game.Questions))
	for _, ref := range game.Questions {
		expected[ref.QuestionID] = false
	}
	for _, ans := range answers {
		used, ok := expected[ans.QuestionID]
		if !ok || used {
			return nil, fmt.Errorf("%w: question %s does not belong to this game", ErrBadAnswers, ans.QuestionID)
		}
		expected[ans.QuestionID] = true
	}

	graded, err := s.grade(ctx, answers)
	if err != nil {
		return nil, err
	}

	if user == "" {
		user = "anonymous"
	}
	completion := models.GameCompletion{
		User:                  user,
		Questions:             graded.entries,
		Victory:               graded.victory,
		Duration:              graded.duration,
		TimedOut:              graded.timedOut,
		TotalCorrectAnswers:   graded.correct,
		TotalIncorrectAnswers: graded.incorrect,
	}

	var finished *models.Game
	err = s.withRetry(func() error {
		var finErr error
		finished, finErr = s.Games.FinalizeActive(ctx, payload.GameID, completion)
		return finErr
	})
	if err != nil {
		return nil, err
	}

	// Presentation counters are best-effort bookkeeping: a failed increment
	// must not undo an already-finished game.
	for i, ans := range answers {
		if !ans.Answered {
			continue
		}
		if err := s.Questions.IncrementAnswered(ctx, ans.QuestionID, graded.entriesCorrect[i]); err != nil {
			log.Printf("game %s: incrementing counters for question %s: %v", finished.ID, ans.QuestionID, err)
		}
	}

	return &FinishedGame{
		GameID:           finished.ID,
		Victory:          finished.Victory,
		CorrectAnswers:   finished.TotalCorrectAnswers,
		IncorrectAnswers: finished.TotalIncorrectAnswers,
		Duration:         finished.Duration,
		TimedOut:         finished.TimedOut,
	}, nil
}

type gradedGame struct {
	entries        []models.GameQuestion
	entriesCorrect []bool
	correct        int
	incorrect      int
	duration       int
	timedOut       bool
	victory        bool
}

// grade recomputes correctness for every answer from the authoritative
// option lists. Client-supplied data decides only *which* option was picked,
// never whether it was right. A question deleted mid-game grades as
// incorrect instead of failing the submission.
func (s *GameService) grade(ctx context.Context, answers []AnswerSubmission) (*gradedGame, error) {
	ids := make([]string, 0, len(answers))
	for _, ans := range answers {
		ids = append(ids, ans.QuestionID)
	}

	var fetched []models.Question
	err := s.withRetry(func() error {
		var findErr error
		fetched, findErr = s.Questions.FindByIDs(ctx, ids)
		return findErr
	})
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.Question, len(fetched))
	for _, q := range fetched {
		byID[q.ID] = q
	}

	graded := &gradedGame{
		entries:        make([]models.GameQuestion, 0, len(answers)),
		entriesCorrect: make([]bool, len(answers)),
		victory:        true,
	}
	for i, ans := range answers {
		correct := false
		if question, ok := byID[ans.QuestionID]; ok {
			if correctID, hasCorrect := question.CorrectOptionID(); hasCorrect {
				correct = ans.Answered && ans.SelectedOption == correctID
			}
		} else {
			log.Printf("grading: question %s no longer exists, counting as incorrect", ans.QuestionID)
		}

		graded.entriesCorrect[i] = correct
		graded.duration += ans.Duration
		graded.timedOut = graded.timedOut || ans.TimedOut
		if ans.Answered && correct {
			graded.correct++
		}
		if ans.Answered && !correct {
			graded.incorrect++
		}
		if !ans.Answered || !correct {
			graded.victory = false
		}

		graded.entries = append(graded.entries, models.GameQuestion{
			QuestionID:     ans.QuestionID,
			Answered:       ans.Answered,
			SelectedOption: ans.SelectedOption,
			Duration:       ans.Duration,
			TimedOut:       ans.TimedOut,
		})
	}
	return graded, nil
}

// GetGame returns a single game record.
func (s *GameService) GetGame(ctx context.Context, id string) (*models.Game, error) {
	var game *models.Game
	err := s.withRetry(func() error {
		var findErr error
		game, findErr = s.Games.FindByID(ctx, id)
		return findErr
	})
	return game, err
}

// ListGames returns every game record.
func (s *GameService) ListGames(ctx context.Context) ([]models.Game, error) {
	var games []models.Game
	err := s.withRetry(func() error {
		var findErr error
		games, findErr = s.Games.FindAll(ctx)
		return findErr
	})
	return games, err
}

// Top returns the leaderboard, at most limit rows (capped by the store).
func (s *GameService) Top(ctx context.Context, limit int64) ([]models.Game, error) {
	var games []models.Game
	err := s.withRetry(func() error {
		var findErr error
		games, findErr = s.Games.FindTop(ctx, limit)
		return findErr
	})
	return games, err
}

// withRetry runs a storage operation, retrying exactly once on transient
// failure. Client-fault errors pass through untouched; a second failure is
// surfaced as ErrStorage.
func (s *GameService) withRetry(op func() error) error {
	err := op()
	if err == nil || clientFault(err) {
		return err
	}
	log.Printf("storage operation failed, retrying once: %v", err)
	if err = op(); err != nil {
		if clientFault(err) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}
