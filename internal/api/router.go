package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/constants"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/logging"
)

// NewRouter wires every route. adminToken guards the operator group.
func NewRouter(h *Handler, sessions *Sessions, adminToken string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET(constants.RouteMetrics, gin.WrapH(promhttp.Handler()))

	apiRoutes := router.Group(constants.RouteAPIPrefix)
	{
		apiRoutes.GET(constants.RouteVersion, Version)
		apiRoutes.GET(constants.RouteLobbyStats, h.GetLobbyStats)

		protected := apiRoutes.Group("")
		protected.Use(sessions.AuthRequired())

		protected.POST(constants.RouteWizards, h.CreateWizard)
		protected.GET(constants.RouteWizards, h.ListWizards)
		protected.GET(constants.RouteWizardByID, h.GetWizard)

		protected.POST(constants.RouteDuels, h.CreateDuel)
		protected.POST(constants.RouteDuelsJoin, h.JoinDuel)
		protected.GET(constants.RouteDuels, h.ListMyDuels)
		protected.GET(constants.RouteDuelsActive, h.ListActiveDuels)
		protected.GET(constants.RouteDuelByID, h.GetDuelByID)
		protected.GET(constants.RouteDuelByCode, h.GetDuel)
		protected.POST(constants.RouteDuelCancel, h.CancelDuel)
		protected.GET(constants.RouteDuelRounds, h.GetRounds)
		protected.POST(constants.RouteDuelActions, h.SubmitAction)
		protected.GET(constants.RouteIllustration, h.ServeIllustration)
		protected.GET(constants.RouteDuelEvents, h.StreamEvents)

		protected.POST(constants.RouteLobby, h.JoinLobby)
		protected.DELETE(constants.RouteLobby, h.LeaveLobby)
		protected.GET(constants.RouteLobbyStatus, h.GetLobbyStatus)

		protected.POST(constants.RouteProgress, h.InitializeProgress)
		protected.GET(constants.RouteProgress, h.GetProgress)
		protected.POST(constants.RouteBattles, h.CreateCampaignBattle)

		admin := apiRoutes.Group(constants.RouteAdminPrefix)
		admin.Use(AdminRequired(adminToken))
		admin.POST(constants.RouteAdminResolve, h.ResolveRound)
		admin.POST(constants.RouteAdminStart, h.StartDuel)
		admin.POST(constants.RouteAdminTryMatch, h.TryMatchmaking)
		admin.POST(constants.RouteAdminMatchedDuel, h.CreateMatchedDuel)
		admin.POST(constants.RouteAdminDefeat, h.DefeatOpponent)
		admin.POST(constants.RouteAdminCompleteDuel, h.CompleteCampaignBattle)
		admin.POST(constants.RouteAdminCredits, h.GrantCredits)
		admin.POST(constants.RouteAdminSessions, sessions.IssueSession)
	}
	return router
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.FullPath() == constants.RouteMetrics {
			return
		}
		logging.Info("request", logging.Fields{
			"method":      c.Request.Method,
			"path":        c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
	}
}
