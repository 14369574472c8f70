package handlers

import (
	"errors"
	"net/http"

	"trivia-service/internal/service"

	"github.com/gin-gonic/gin"
)

// statusForError maps the service error taxonomy onto HTTP statuses. The
// routing layer is the only place that knows about status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrBadAnswers),
		errors.Is(err, service.ErrTokenInvalid):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound),
		errors.Is(err, service.ErrPoolExhausted):
		return http.StatusNotFound
	case errors.Is(err, service.ErrAlreadyFinished):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes a uniform error body. Internal detail stays out of the
// response: storage and unknown errors surface as a generic message.
func respondError(c *gin.Context, err error) {
	status := statusForError(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	c.JSON(status, gin.H{"error": message})
}
