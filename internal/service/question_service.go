package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"trivia-service/internal/models"
	"trivia-service/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
)

type QuestionService struct {
	Repo       *repository.QuestionRepository
	Categories *repository.CategoryRepository
}

func NewQuestionService(repo *repository.QuestionRepository, categories *repository.CategoryRepository) *QuestionService {
	return &QuestionService{Repo: repo, Categories: categories}
}

// validateOptions enforces the option-set invariant: a fixed-size set with
// exactly one option flagged correct.
func validateOptions(options []models.Option) error {
	if len(options) != models.OptionsPerQuestion {
		return fmt.Errorf("%w: a question needs exactly %d options", ErrValidation, models.OptionsPerQuestion)
	}
	correct := 0
	for _, opt := range options {
		if opt.Correct {
			correct++
		}
	}
	if correct > 1 {
		return fmt.Errorf("%w: only one option may be correct", ErrValidation)
	}
	if correct == 0 {
		return fmt.Errorf("%w: one option must be correct", ErrValidation)
	}
	return nil
}

// CreateQuestion stores a new question. Admin submissions are approved
// immediately; everything else queues as pending.
func (s *QuestionService) CreateQuestion(ctx context.Context, question *models.Question, isAdmin bool) error {
	if err := validateOptions(question.Options); err != nil {
		return err
	}
	if _, err := s.Categories.FindByID(ctx, question.CategoryID); err != nil {
		return fmt.Errorf("%w: category does not exist", ErrValidation)
	}
	switch question.Difficulty {
	case models.DifficultyEasy, models.DifficultyMedium, models.DifficultyHard:
	default:
		return fmt.Errorf("%w: unknown difficulty %q", ErrValidation, question.Difficulty)
	}

	// Option ids are positional, assigned here so clients cannot pick them.
	for i := range question.Options {
		question.Options[i].OptionID = i
	}

	question.State = models.QuestionPending
	if isAdmin {
		question.State = models.QuestionApproved
	}
	if question.AddedBy == "" {
		question.AddedBy = "anonymous"
	}
	question.TimesAnswered = 0
	question.TimesAnsweredCorrectly = 0
	question.CreatedAt = time.Now()

	if err := s.Repo.Create(ctx, question); err != nil {
		return err
	}
	if question.State == models.QuestionApproved {
		if err := s.Categories.AdjustQuestionCount(ctx, question.CategoryID, 1); err != nil {
			log.Printf("adjusting question count for category %s: %v", question.CategoryID, err)
		}
	}
	return nil
}

// QuestionUpdate carries the mutable question fields. Nil pointers mean
// "leave unchanged".
type QuestionUpdate struct {
	Title      *string         `json:"title"`
	Options    []models.Option `json:"options"`
	CategoryID *string         `json:"category"`
	Tags       []string        `json:"tags"`
	DidYouKnow *string         `json:"did_you_know"`
	Link       *string         `json:"link"`
	Difficulty *string         `json:"difficulty"`
	State      *string         `json:"state"`
}

// UpdateQuestion applies a partial update. Rejecting a pending question
// deletes it, matching the moderation flow: rejected suggestions do not
// linger in the pool.
func (s *QuestionService) UpdateQuestion(ctx context.Context, id string, update QuestionUpdate) (*models.Question, error) {
	if update.Options != nil {
		if err := validateOptions(update.Options); err != nil {
			return nil, err
		}
		for i := range update.Options {
			update.Options[i].OptionID = i
		}
	}
	if update.CategoryID != nil {
		if _, err := s.Categories.FindByID(ctx, *update.CategoryID); err != nil {
			return nil, fmt.Errorf("%w: category does not exist", ErrValidation)
		}
	}

	if update.State != nil && *update.State == models.QuestionRejected {
		if err := s.Repo.Delete(ctx, id); err != nil {
			return nil, err
		}
		return nil, nil
	}

	fields := bson.M{}
	if update.Title != nil {
		fields["title"] = *update.Title
	}
	if update.Options != nil {
		fields["options"] = update.Options
	}
	if update.CategoryID != nil {
		fields["category"] = *update.CategoryID
	}
	if update.Tags != nil {
		fields["tags"] = update.Tags
	}
	if update.DidYouKnow != nil {
		fields["did_you_know"] = *update.DidYouKnow
	}
	if update.Link != nil {
		fields["link"] = *update.Link
	}
	if update.Difficulty != nil {
		switch *update.Difficulty {
		case models.DifficultyEasy, models.DifficultyMedium, models.DifficultyHard:
			fields["difficulty"] = *update.Difficulty
		default:
			return nil, fmt.Errorf("%w: unknown difficulty %q", ErrValidation, *update.Difficulty)
		}
	}
	if update.State != nil {
		switch *update.State {
		case models.QuestionApproved, models.QuestionPending:
			fields["state"] = *update.State
		default:
			return nil, fmt.Errorf("%w: unknown state %q", ErrValidation, *update.State)
		}
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: nothing to update", ErrValidation)
	}

	updated, err := s.Repo.Update(ctx, id, fields)
	if err != nil {
		return nil, err
	}
	if update.State != nil && *update.State == models.QuestionApproved {
		if err := s.Categories.AdjustQuestionCount(ctx, updated.CategoryID, 1); err != nil {
			log.Printf("adjusting question count for category %s: %v", updated.CategoryID, err)
		}
	}
	return updated, nil
}

func (s *QuestionService) DeleteQuestion(ctx context.Context, id string) error {
	return s.Repo.Delete(ctx, id)
}

func (s *QuestionService) GetQuestion(ctx context.Context, id string) (*models.Question, error) {
	return s.Repo.FindByID(ctx, id)
}

func (s *QuestionService) ListQuestions(ctx context.Context, filter repository.QuestionFilter) ([]models.Question, error) {
	if filter.State == "" {
		filter.State = models.QuestionApproved
	}
	return s.Repo.Find(ctx, filter)
}

func (s *QuestionService) ListPending(ctx context.Context) ([]models.Question, error) {
	return s.Repo.Find(ctx, repository.QuestionFilter{State: models.QuestionPending})
}

func (s *QuestionService) PendingCount(ctx context.Context) (int64, error) {
	return s.Repo.CountByState(ctx, models.QuestionPending)
}

// QuestionStats summarizes the pool for the admin dashboard.
type QuestionStats struct {
	TotalQuestions           int64 `json:"total_questions"`
	TotalEasyQuestions       int64 `json:"total_easy_questions"`
	TotalMediumQuestions     int64 `json:"total_medium_questions"`
	TotalHardQuestions       int64 `json:"total_hard_questions"`
	QuestionsWaitingApproval int64 `json:"questions_waiting_approval"`
}

func (s *QuestionService) Stats(ctx context.Context) (*QuestionStats, error) {
	stats := &QuestionStats{}
	var err error
	if stats.TotalQuestions, err = s.Repo.CountByState(ctx, models.QuestionApproved); err != nil {
		return nil, err
	}
	if stats.TotalEasyQuestions, err = s.Repo.CountApprovedByDifficulty(ctx, models.DifficultyEasy); err != nil {
		return nil, err
	}
	if stats.TotalMediumQuestions, err = s.Repo.CountApprovedByDifficulty(ctx, models.DifficultyMedium); err != nil {
		return nil, err
	}
	if stats.TotalHardQuestions, err = s.Repo.CountApprovedByDifficulty(ctx, models.DifficultyHard); err != nil {
		return nil, err
	}
	if stats.QuestionsWaitingApproval, err = s.Repo.CountByState(ctx, models.QuestionPending); err != nil {
		return nil, err
	}
	return stats, nil
}
