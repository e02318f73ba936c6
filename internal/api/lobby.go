package api

import (
	"net/http"

	"emperror.dev/errors"
	"github.com/gin-gonic/gin"

	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/constants"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/duel"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/logging"
)

type joinLobbyRequest struct {
	WizardID           string           `json:"wizard_id" binding:"required"`
	DuelTypePreference duel.RoundBudget `json:"duel_type_preference"`
}

type matchedDuelRequest struct {
	EntryID1 string `json:"entry_id_1" binding:"required"`
	EntryID2 string `json:"entry_id_2" binding:"required"`
}

// JoinLobby queues the caller and tries to pair them straight away. A
// failed attempt is left to the scheduler's lobby sweep.
func (h *Handler) JoinLobby(c *gin.Context) {
	var req joinLobbyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, constants.ErrInvalidRequest)
		return
	}
	ctx := c.Request.Context()
	entry, err := h.engine.JoinLobby(ctx, currentUser(c), req.WizardID, req.DuelTypePreference)
	if err != nil {
		writeError(c, err)
		return
	}
	out := gin.H{"entry": entry}
	res, err := h.engine.TryMatchmaking(ctx, entry.ID)
	if err != nil {
		logging.Warn("immediate matchmaking failed", err, logging.Fields{constants.LogFieldEntryID: entry.ID})
	} else if res.Matched {
		d, err := h.engine.CreateMatchedDuel(ctx, res.Entry.ID, res.Partner.ID)
		switch {
		case err == nil:
			out["duel"] = d
		case errors.Is(err, duel.ErrAlreadyProcessed):
		default:
			logging.Warn("matched duel creation failed", err, logging.Fields{constants.LogFieldEntryID: entry.ID})
		}
		out["entry"] = res.Entry
	}
	c.JSON(http.StatusCreated, out)
}

func (h *Handler) LeaveLobby(c *gin.Context) {
	if err := h.engine.LeaveLobby(c.Request.Context(), currentUser(c)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) GetLobbyStatus(c *gin.Context) {
	st, err := h.engine.GetLobbyStatus(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) GetLobbyStats(c *gin.Context) {
	stats, err := h.engine.GetLobbyStats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) TryMatchmaking(c *gin.Context) {
	res, err := h.engine.TryMatchmaking(c.Request.Context(), c.Param("entryID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) CreateMatchedDuel(c *gin.Context) {
	var req matchedDuelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, constants.ErrInvalidRequest)
		return
	}
	d, err := h.engine.CreateMatchedDuel(c.Request.Context(), req.EntryID1, req.EntryID2)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}
