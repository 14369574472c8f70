package service

import (
	"errors"

	"trivia-service/internal/pool"
	"trivia-service/internal/repository"
	"trivia-service/internal/token"
)

// The service error taxonomy. Handlers map these to HTTP statuses; nothing
// below this layer knows about HTTP. Codec and pool failures are re-exported
// so that callers only ever import this package.
var (
	// ErrValidation covers malformed input: bad difficulty, disallowed
	// question counts, malformed option sets. Caller's fault, not retried.
	ErrValidation = errors.New("invalid request")

	// ErrBadAnswers reports a submission whose answers do not line up with
	// the game's question set.
	ErrBadAnswers = errors.New("submitted answers do not match the game's questions")

	// ErrTokenInvalid covers tampering, corruption and expiry alike.
	ErrTokenInvalid = token.ErrInvalid

	// ErrPoolExhausted means too few eligible questions exist right now.
	ErrPoolExhausted = pool.ErrExhausted

	ErrNotFound        = repository.ErrNotFound
	ErrAlreadyFinished = repository.ErrAlreadyFinished

	// ErrStorage wraps persistence failures that survived one retry.
	ErrStorage = errors.New("storage failure")
)

// clientFault reports whether an error is the caller's doing, in which case
// retrying storage operations would be pointless.
func clientFault(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrBadAnswers) ||
		errors.Is(err, ErrTokenInvalid) ||
		errors.Is(err, ErrPoolExhausted) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAlreadyFinished)
}
