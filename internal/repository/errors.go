package repository

import "errors"

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyFinished is returned when a conditional update targets a
	// game whose state is no longer active. Finished games are immutable.
	ErrAlreadyFinished = errors.New("game already finished")
)
