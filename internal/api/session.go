package api

import (
	crand "crypto/rand"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/constants"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/logging"
)

const defaultSessionTTL = 24 * time.Hour

type sessionClaims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Sessions mints and verifies HS256 session tokens. The subject is the
// user id every engine call is made with.
type Sessions struct {
	secret []byte
	ttl    time.Duration
	secure bool
}

// NewSessions uses secret when set. Without one a random secret is
// generated, so tokens do not survive a restart.
func NewSessions(secret string, secureCookie bool) (*Sessions, error) {
	s := &Sessions{secret: []byte(secret), ttl: defaultSessionTTL, secure: secureCookie}
	if secret == "" {
		s.secret = make([]byte, 32)
		if _, err := crand.Read(s.secret); err != nil {
			return nil, errors.WrapIf(err, "generate session secret")
		}
		logging.Warn("SESSION_SECRET not set, using an ephemeral secret", nil, nil)
	}
	return s, nil
}

func (s *Sessions) Issue(userID, name string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", errors.New("session subject is empty")
	}
	now := time.Now()
	claims := sessionClaims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Sessions) Parse(token string) (*sessionClaims, error) {
	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, errors.New("session has no subject")
	}
	return claims, nil
}

func (s *Sessions) setCookie(c *gin.Context, token string) {
	c.SetCookie(constants.CookieSessionName, token, int(s.ttl.Seconds()), "/", "", s.secure, true)
}

// tokenFrom prefers the session cookie and falls back to a bearer header.
func tokenFrom(c *gin.Context) string {
	if token, err := c.Cookie(constants.CookieSessionName); err == nil && token != "" {
		return token
	}
	h := c.GetHeader(constants.HeaderAuthorization)
	if strings.HasPrefix(h, constants.BearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(h, constants.BearerPrefix))
	}
	return ""
}

// AuthRequired validates the session and injects the user id into context.
func (s *Sessions) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := tokenFrom(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{constants.JSONKeyError: constants.ErrAuthRequired})
			return
		}
		claims, err := s.Parse(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{constants.JSONKeyError: constants.ErrInvalidSession})
			return
		}
		c.Set(constants.ContextUserID, claims.Subject)
		c.Set(constants.ContextUserName, claims.Name)
		c.Next()
	}
}

// AdminRequired guards operator endpoints. An empty token disables them.
func AdminRequired(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(constants.HeaderAdminToken)
		if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{constants.JSONKeyError: constants.ErrAdminRequired})
			return
		}
		c.Next()
	}
}

type sessionRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Name   string `json:"name"`
}

// IssueSession mints a session for a user authenticated upstream.
func (s *Sessions) IssueSession(c *gin.Context) {
	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{constants.JSONKeyError: constants.ErrInvalidRequest})
		return
	}
	token, err := s.Issue(req.UserID, req.Name)
	if err != nil {
		logging.Error("failed to create session", err, logging.Fields{constants.LogFieldUserID: req.UserID})
		c.JSON(http.StatusInternalServerError, gin.H{constants.JSONKeyError: constants.ErrFailedCreateToken})
		return
	}
	s.setCookie(c, token)
	c.JSON(http.StatusOK, gin.H{constants.JSONKeyToken: token})
}

func currentUser(c *gin.Context) string {
	return c.GetString(constants.ContextUserID)
}
