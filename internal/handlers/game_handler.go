package handlers

import (
	"net/http"
	"strconv"

	"trivia-service/internal/service"

	"github.com/gin-gonic/gin"
)

type GameHandler struct {
	Service *service.GameService
}

func NewGameHandler(s *service.GameService) *GameHandler {
	return &GameHandler{Service: s}
}

// StartGame creates a new game: a sealed token plus the stripped question
// set for the requested difficulty.
func (h *GameHandler) StartGame(c *gin.Context) {
	difficulty := c.Param("difficulty")
	count, err := strconv.Atoi(c.DefaultQuery("question_count", "10"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "question_count must be a number"})
		return
	}

	started, err := h.Service.StartGame(c.Request.Context(), difficulty, count)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, started)
}

type submitGameRequest struct {
	Token     string                     `json:"token" binding:"required"`
	Name      string                     `json:"name"`
	Questions []service.AnswerSubmission `json:"questions" binding:"required"`
}

// SubmitGame grades a full submission and finalizes the game.
func (h *GameHandler) SubmitGame(c *gin.Context) {
	var req submitGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	finished, err := h.Service.SubmitGame(c.Request.Context(), req.Token, req.Name, req.Questions)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, finished)
}

func (h *GameHandler) GetGame(c *gin.Context) {
	game, err := h.Service.GetGame(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, game)
}

func (h *GameHandler) ListGames(c *gin.Context) {
	games, err := h.Service.ListGames(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"games": games, "game_count": len(games)})
}

// Top serves the leaderboard.
func (h *GameHandler) Top(c *gin.Context) {
	limit, err := strconv.ParseInt(c.DefaultQuery("limit", "100"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a number"})
		return
	}

	games, err := h.Service.Top(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, games)
}
