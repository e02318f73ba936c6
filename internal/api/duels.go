package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/constants"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/duel"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/logging"
)

type createDuelRequest struct {
	RoundBudget duel.RoundBudget `json:"round_budget"`
	WizardIDs   []string         `json:"wizard_ids" binding:"required,min=1"`
}

type joinDuelRequest struct {
	ShortCode string   `json:"short_code" binding:"required"`
	WizardIDs []string `json:"wizard_ids" binding:"required,min=1"`
}

type actionRequest struct {
	WizardID    string `json:"wizard_id" binding:"required"`
	Description string `json:"description" binding:"required"`
}

// CreateDuel opens a duel owned by the session user. A missing
// round_budget, or "incapacitation", fights until one side falls.
func (h *Handler) CreateDuel(c *gin.Context) {
	var req createDuelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, constants.ErrInvalidRequest)
		return
	}
	d, err := h.engine.CreateDuel(c.Request.Context(), req.RoundBudget, req.WizardIDs, currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

func (h *Handler) JoinDuel(c *gin.Context) {
	var req joinDuelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, constants.ErrInvalidRequest)
		return
	}
	code := normalizeShortCode(req.ShortCode)
	if !shortCodeRegex.MatchString(code) {
		badRequest(c, constants.ErrInvalidDuelCode)
		return
	}
	ctx := c.Request.Context()
	d, err := h.engine.GetDuelByShortCode(ctx, code)
	if err != nil {
		writeError(c, err)
		return
	}
	d, err = h.engine.JoinDuel(ctx, d.ID, req.WizardIDs, currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) ListMyDuels(c *gin.Context) {
	duels, err := h.engine.ListDuelsByPlayer(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, duels)
}

func (h *Handler) ListActiveDuels(c *gin.Context) {
	duels, err := h.engine.ListActiveDuels(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, duels)
}

func (h *Handler) GetDuelByID(c *gin.Context) {
	d, err := h.engine.GetDuel(c.Request.Context(), c.Param("duelID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) GetDuel(c *gin.Context) {
	d, ok := h.duelByCode(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, d)
}

// CancelDuel is open to participants only.
func (h *Handler) CancelDuel(c *gin.Context) {
	d, ok := h.duelByCode(c)
	if !ok {
		return
	}
	if !d.HasUser(currentUser(c)) {
		c.JSON(http.StatusForbidden, gin.H{constants.JSONKeyError: constants.ErrPlayerNotInDuel})
		return
	}
	d, err := h.engine.CancelDuel(c.Request.Context(), d.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) GetRounds(c *gin.Context) {
	d, ok := h.duelByCode(c)
	if !ok {
		return
	}
	rounds, err := h.engine.GetRounds(c.Request.Context(), d.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rounds)
}

// SubmitAction records the caller's spell. When it was the last one the
// round is resolved in the background and 202 is returned.
func (h *Handler) SubmitAction(c *gin.Context) {
	d, ok := h.duelByCode(c)
	if !ok {
		return
	}
	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, constants.ErrInvalidRequest)
		return
	}
	r, ready, err := h.engine.SubmitAction(c.Request.Context(), d.ID, req.WizardID, req.Description, currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	if !ready {
		c.JSON(http.StatusOK, gin.H{"round": r, "ready": false})
		return
	}
	h.engine.ResolveAsync(d.ID, r.ID)
	c.JSON(http.StatusAccepted, gin.H{"round": r, "ready": true})
}

func (h *Handler) ServeIllustration(c *gin.Context) {
	d, ok := h.duelByCode(c)
	if !ok {
		return
	}
	n, err := strconv.Atoi(c.Param("number"))
	if err != nil || n < 0 {
		badRequest(c, constants.ErrInvalidRoundNumber)
		return
	}
	png, err := h.engine.Illustration(c.Request.Context(), d.ID, n)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header(constants.CacheControlHeader, constants.CacheControlImmutable)
	c.Data(http.StatusOK, constants.ContentTypePNG, png)
}

// StreamEvents upgrades to a websocket that receives the duel's change
// notifications until the client disconnects.
func (h *Handler) StreamEvents(c *gin.Context) {
	d, ok := h.duelByCode(c)
	if !ok {
		return
	}
	if err := h.hub.Serve(c.Writer, c.Request, d.ID); err != nil {
		logging.Warn("event stream upgrade failed", err, logging.Fields{constants.LogFieldDuelID: d.ID})
	}
}
