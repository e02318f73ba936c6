package constants

// Centralized constants for headers, env keys and OpenAI integration.
const (
	// Environment variable keys
	EnvConfigPath    = "DUEL_CONFIG"
	EnvSessionSecret = "SESSION_SECRET"
	EnvOpenAIAPIKey  = "OPENAI_API_KEY"
	EnvAdminToken    = "ADMIN_TOKEN"

	// HTTP headers and content types
	HeaderAuthorization = "Authorization"
	HeaderContentType   = "Content-Type"
	HeaderAdminToken    = "X-Admin-Token"

	ContentTypeJSON = "application/json"
	ContentTypePNG  = "image/png"

	CacheControlHeader    = "Cache-Control"
	CacheControlNoCache   = "no-cache, no-store, must-revalidate"
	CacheControlImmutable = "private, max-age=31536000, immutable"

	// Authorization prefix
	BearerPrefix = "Bearer "

	// OpenAI model names and typical parameters
	OpenAIChatModel           = "gpt-5-nano"
	OpenAIImageModel          = "gpt-image-1"
	OpenAIImageSizeDefault    = "1024x1024"
	OpenAIImageQualityDefault = "low"

	// Session / Cookie names
	CookieSessionName = "duel_session"

	// CampaignOwner owns every scripted campaign opponent.
	CampaignOwner = "system:campaign"

	// Context keys set by the auth middleware
	ContextUserID   = "userID"
	ContextUserName = "userName"
)

// Routes used by the backend router
const (
	RouteAPIPrefix    = "/api"
	RouteMetrics      = "/metrics"
	RouteVersion      = "/version"
	RouteWizards      = "/wizards"
	RouteWizardByID   = "/wizards/:wizardID"
	RouteDuels        = "/duels"
	RouteDuelsJoin    = "/duels/join"
	RouteDuelsActive  = "/duels/active"
	RouteDuelByID     = "/duels/by-id/:duelID"
	RouteDuelByCode   = "/duels/:code"
	RouteDuelCancel   = "/duels/:code/cancel"
	RouteDuelRounds   = "/duels/:code/rounds"
	RouteDuelActions  = "/duels/:code/actions"
	RouteDuelEvents   = "/duels/:code/events"
	RouteIllustration = "/duels/:code/rounds/:number/illustration"
	RouteLobby        = "/lobby"
	RouteLobbyStatus  = "/lobby/status"
	RouteLobbyStats   = "/lobby/stats"
	RouteProgress     = "/campaign/wizards/:wizardID/progress"
	RouteBattles      = "/campaign/wizards/:wizardID/battles"

	RouteAdminPrefix       = "/admin"
	RouteAdminResolve      = "/duels/:duelID/rounds/:roundID/resolve"
	RouteAdminStart        = "/duels/:duelID/start"
	RouteAdminTryMatch     = "/lobby/:entryID/match"
	RouteAdminMatchedDuel  = "/lobby/matches"
	RouteAdminDefeat       = "/campaign/wizards/:wizardID/defeat"
	RouteAdminCompleteDuel = "/campaign/battles/:duelID/complete"
	RouteAdminCredits      = "/credits"
	RouteAdminSessions     = "/sessions"
)

// Common JSON response keys
const (
	JSONKeyError   = "error"
	JSONKeyCode    = "code"
	JSONKeyMessage = "message"
	JSONKeyToken   = "token"
)

// Common error messages used across API handlers
const (
	ErrInvalidRequest     = "Invalid request"
	ErrInvalidDuelCode    = "Invalid duel code"
	ErrInvalidRoundNumber = "Invalid round number"
	ErrDuelNotFound       = "Duel not found"
	ErrNoIllustration     = "Round has no illustration"
	ErrInternal           = "Internal server error"
	ErrPlayerNotInDuel    = "Player not in this duel"
	ErrAuthRequired       = "Authentication required"
	ErrInvalidSession     = "Invalid session"
	ErrAdminRequired      = "Admin token required"
	ErrFailedCreateToken  = "Failed to create session"
)

// Logging field names
const (
	LogFieldDuelID    = "duel_id"
	LogFieldRoundID   = "round_id"
	LogFieldRound     = "round_number"
	LogFieldWizardID  = "wizard_id"
	LogFieldUserID    = "user_id"
	LogFieldEntryID   = "entry_id"
	LogFieldSource    = "source"
	LogFieldKey       = "key"
	LogFieldAddr      = "addr"
	LogFieldJob       = "job"
	LogFieldCount     = "count"
	LogFieldOpponent  = "opponent_number"
	LogFieldSizeBytes = "size_bytes"
)
