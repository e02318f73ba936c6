package api

import (
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/constants"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/duel"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/events"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/service"
)

var shortCodeRegex = regexp.MustCompile("^[A-Z0-9]{6}$")

// Handler adapts HTTP requests to engine operations.
type Handler struct {
	engine *service.Engine
	hub    *events.Hub
}

func NewHandler(engine *service.Engine, hub *events.Hub) *Handler {
	return &Handler{engine: engine, hub: hub}
}

func normalizeShortCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// duelByCode resolves the :code path parameter. It writes the error
// response itself and reports false when the duel cannot be used.
func (h *Handler) duelByCode(c *gin.Context) (*duel.Duel, bool) {
	code := normalizeShortCode(c.Param("code"))
	if !shortCodeRegex.MatchString(code) {
		badRequest(c, constants.ErrInvalidDuelCode)
		return nil, false
	}
	d, err := h.engine.GetDuelByShortCode(c.Request.Context(), code)
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return d, true
}
