package models

import "time"

// Game lifecycle states. A finished game is immutable.
const (
	GameActive   = "active"
	GameFinished = "finished"
)

// DefaultAttempts is the starting attempt budget carried by every game
// document. The batch engine never decrements it; the field exists so that
// records stay compatible with the one-question-at-a-time variant.
const DefaultAttempts = 3

// GameQuestion is one answered-question entry on a game. It holds a weak
// reference to the question: the question may be deleted independently.
type GameQuestion struct {
	QuestionID     string `bson:"question" json:"question"`
	Answered       bool   `bson:"answered" json:"answered"`
	SelectedOption int    `bson:"selected_option" json:"selected_option"`
	Duration       int    `bson:"duration" json:"duration"`
	TimedOut       bool   `bson:"timed_out" json:"timed_out"`
}

type Game struct {
	ID                    string         `bson:"_id,omitempty" json:"id"`
	Questions             []GameQuestion `bson:"questions" json:"questions"`
	User                  string         `bson:"user" json:"user"`
	Difficulty            string         `bson:"difficulty" json:"difficulty"`
	TotalQuestions        int            `bson:"total_questions" json:"total_questions"`
	Duration              int            `bson:"duration" json:"duration"`
	RemainingAttempts     int            `bson:"remaining_attempts" json:"remaining_attempts"`
	TotalCorrectAnswers   int            `bson:"total_correct_answers" json:"total_correct_answers"`
	TotalIncorrectAnswers int            `bson:"total_incorrect_answers" json:"total_incorrect_answers"`
	TimedOut              bool           `bson:"timed_out" json:"timed_out"`
	Victory               bool           `bson:"victory" json:"victory"`
	State                 string         `bson:"state" json:"state"`
	CreatedAt             time.Time      `bson:"created_at" json:"created_at"`
	FinishedAt            time.Time      `bson:"finished_at,omitempty" json:"finished_at,omitempty"`
}

// GameCompletion carries the graded outcome applied when a game is finalized.
type GameCompletion struct {
	User                  string
	Questions             []GameQuestion
	Victory               bool
	Duration              int
	TimedOut              bool
	TotalCorrectAnswers   int
	TotalIncorrectAnswers int
}
