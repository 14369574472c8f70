package models

import "time"

type Category struct {
	ID            string    `bson:"_id,omitempty" json:"id"`
	Name          string    `bson:"name" json:"name"`
	QuestionCount int       `bson:"question_count" json:"question_count"`
	CreatedAt     time.Time `bson:"created_at" json:"created_at"`
}
