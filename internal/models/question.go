package models

import "time"

// Question approval states. Only approved questions are served to games.
const (
	QuestionApproved = "approved"
	QuestionPending  = "pending"
	QuestionRejected = "rejected"
)

// Supported difficulty levels.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// OptionsPerQuestion is the fixed size of a question's option set.
const OptionsPerQuestion = 4

type Option struct {
	Text     string `bson:"text" json:"text"`
	Correct  bool   `bson:"correct" json:"correct"`
	OptionID int    `bson:"option_id" json:"option_id"`
}

type Question struct {
	ID                     string    `bson:"_id,omitempty" json:"id"`
	Title                  string    `bson:"title" json:"title"`
	Options                []Option  `bson:"options" json:"options"`
	CategoryID             string    `bson:"category" json:"category"`
	Tags                   []string  `bson:"tags" json:"tags"`
	DidYouKnow             string    `bson:"did_you_know" json:"did_you_know"`
	Link                   string    `bson:"link" json:"link"`
	Difficulty             string    `bson:"difficulty" json:"difficulty"`
	State                  string    `bson:"state" json:"state"`
	TimesAnswered          int       `bson:"times_answered" json:"times_answered"`
	TimesAnsweredCorrectly int       `bson:"times_answered_correctly" json:"times_answered_correctly"`
	AddedBy                string    `bson:"added_by" json:"added_by"`
	CreatedAt              time.Time `bson:"created_at" json:"created_at"`
}

// PublicOption is an option as exposed to players: the correct flag is
// stripped entirely rather than zeroed, so it cannot leak by accident.
type PublicOption struct {
	Text     string `json:"text"`
	OptionID int    `json:"option_id"`
}

// PublicQuestion is the player-facing view of a question.
type PublicQuestion struct {
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	Options    []PublicOption `json:"options"`
	Difficulty string         `json:"difficulty"`
	DidYouKnow string         `json:"did_you_know"`
	Link       string         `json:"link"`
}

// Public returns the question with the correct-answer flags removed.
func (q *Question) Public() PublicQuestion {
	options := make([]PublicOption, 0, len(q.Options))
	for _, opt := range q.Options {
		options = append(options, PublicOption{Text: opt.Text, OptionID: opt.OptionID})
	}
	return PublicQuestion{
		ID:         q.ID,
		Title:      q.Title,
		Options:    options,
		Difficulty: q.Difficulty,
		DidYouKnow: q.DidYouKnow,
		Link:       q.Link,
	}
}

// CorrectOptionID returns the option id flagged correct, or false when the
// question has no correct option (malformed or legacy data).
func (q *Question) CorrectOptionID() (int, bool) {
	for _, opt := range q.Options {
		if opt.Correct {
			return opt.OptionID, true
		}
	}
	return 0, false
}
