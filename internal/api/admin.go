package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/constants"
)

type creditsRequest struct {
	UserID    string `json:"user_id" binding:"required"`
	Amount    int    `json:"amount"`
	Unlimited bool   `json:"unlimited"`
}

func (h *Handler) ResolveRound(c *gin.Context) {
	r, err := h.engine.ResolveRound(c.Request.Context(), c.Param("duelID"), c.Param("roundID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *Handler) StartDuel(c *gin.Context) {
	d, err := h.engine.StartDuelAfterIntroduction(c.Request.Context(), c.Param("duelID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) GrantCredits(c *gin.Context) {
	var req creditsRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Amount < 0 {
		badRequest(c, constants.ErrInvalidRequest)
		return
	}
	acct, err := h.engine.GrantCredits(c.Request.Context(), req.UserID, req.Amount, req.Unlimited)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, acct)
}
