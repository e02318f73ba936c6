package api

import (
	"net/http"

	"emperror.dev/errors"
	"github.com/gin-gonic/gin"

	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/constants"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/duel"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/logging"
)

var statusByKind = map[duel.Kind]int{
	duel.KindNotFound:             http.StatusNotFound,
	duel.KindInvalidState:         http.StatusConflict,
	duel.KindDuplicateAction:      http.StatusConflict,
	duel.KindDuplicatePlayer:      http.StatusConflict,
	duel.KindDuplicateBattle:      http.StatusConflict,
	duel.KindAlreadyQueued:        http.StatusConflict,
	duel.KindAlreadyProcessed:     http.StatusConflict,
	duel.KindAlreadyDefeated:      http.StatusConflict,
	duel.KindConflict:             http.StatusConflict,
	duel.KindUnauthorized:         http.StatusForbidden,
	duel.KindInvalidArgument:      http.StatusBadRequest,
	duel.KindInsufficientResource: http.StatusPaymentRequired,
	duel.KindDataIntegrity:        http.StatusInternalServerError,
}

// writeError renders engine errors by kind. Anything else is logged and
// reported as an internal error without details.
func writeError(c *gin.Context, err error) {
	var de *duel.Error
	if !errors.As(err, &de) {
		logging.Error("request failed", err, logging.Fields{"path": c.FullPath()})
		c.JSON(http.StatusInternalServerError, gin.H{constants.JSONKeyError: constants.ErrInternal})
		return
	}
	status, ok := statusByKind[de.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	if status == http.StatusInternalServerError {
		logging.Error("request failed", err, logging.Fields{"path": c.FullPath()})
	}
	code := de.Code
	if code == "" {
		code = string(de.Kind)
	}
	c.JSON(status, gin.H{constants.JSONKeyError: de.Message, constants.JSONKeyCode: code})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{constants.JSONKeyError: msg})
}
