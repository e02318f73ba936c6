package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/constants"
)

type opponentRequest struct {
	OpponentNumber int `json:"opponent_number" binding:"required"`
}

func (h *Handler) InitializeProgress(c *gin.Context) {
	p, err := h.engine.InitializeProgress(c.Request.Context(), c.Param("wizardID"), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) GetProgress(c *gin.Context) {
	p, err := h.engine.GetProgress(c.Request.Context(), c.Param("wizardID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) CreateCampaignBattle(c *gin.Context) {
	var req opponentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, constants.ErrInvalidRequest)
		return
	}
	d, b, err := h.engine.CreateCampaignBattle(c.Request.Context(), c.Param("wizardID"), currentUser(c), req.OpponentNumber)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"duel": d, "battle": b})
}

func (h *Handler) DefeatOpponent(c *gin.Context) {
	var req opponentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, constants.ErrInvalidRequest)
		return
	}
	p, err := h.engine.DefeatOpponent(c.Request.Context(), c.Param("wizardID"), req.OpponentNumber)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) CompleteCampaignBattle(c *gin.Context) {
	b, err := h.engine.CompleteCampaignBattle(c.Request.Context(), c.Param("duelID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}
