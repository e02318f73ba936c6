package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/constants"
)

type createWizardRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

func (h *Handler) CreateWizard(c *gin.Context) {
	var req createWizardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, constants.ErrInvalidRequest)
		return
	}
	w, err := h.engine.CreateWizard(c.Request.Context(), currentUser(c), req.Name, req.Description)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, w)
}

func (h *Handler) GetWizard(c *gin.Context) {
	w, err := h.engine.GetWizard(c.Request.Context(), c.Param("wizardID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

func (h *Handler) ListWizards(c *gin.Context) {
	ws, err := h.engine.ListWizards(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ws)
}
