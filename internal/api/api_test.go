package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/constants"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/duel"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/events"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/outcome"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/service"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/storage"
)

const testAdminToken = "operator-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

type steadyGenerator struct{}

func (steadyGenerator) Generate(_ context.Context, c outcome.Context) (*outcome.Proposal, error) {
	p := &outcome.Proposal{
		Narrative:     "Sparks fly across the arena.",
		PointsAwarded: map[string]float64{},
		HealthChange:  map[string]float64{},
	}
	for _, w := range c.Wizards {
		p.PointsAwarded[w.ID] = 5
		p.HealthChange[w.ID] = -10
	}
	return p, nil
}

type server struct {
	t        *testing.T
	engine   *service.Engine
	router   *gin.Engine
	sessions *Sessions
}

func newServer(t *testing.T) *server {
	t.Helper()
	db, err := storage.OpenInMemory(strings.ReplaceAll(t.Name(), "/", "_") + "_" + uuid.NewString()[:8])
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	hub := events.NewHub()
	engine := service.New(storage.New(db), service.Options{Generator: steadyGenerator{}, Events: hub})
	sessions, err := NewSessions("test-secret", false)
	require.NoError(t, err)
	return &server{
		t:        t,
		engine:   engine,
		router:   NewRouter(NewHandler(engine, hub), sessions, testAdminToken),
		sessions: sessions,
	}
}

func (s *server) token(userID string) string {
	s.t.Helper()
	tok, err := s.sessions.Issue(userID, userID)
	require.NoError(s.t, err)
	return tok
}

func (s *server) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, constants.RouteAPIPrefix+path, &buf)
	req.Header.Set(constants.HeaderContentType, constants.ContentTypeJSON)
	if token != "" {
		req.Header.Set(constants.HeaderAuthorization, constants.BearerPrefix+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (s *server) wizard(token, name string) duel.Wizard {
	s.t.Helper()
	w := s.do(http.MethodPost, "/wizards", token, gin.H{"name": name, "description": name + " the bold"})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[duel.Wizard](s.t, w)
}

func TestVersionIsPublic(t *testing.T) {
	s := newServer(t)
	w := s.do(http.MethodGet, constants.RouteVersion, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "version")
}

func TestAuthRequired(t *testing.T) {
	s := newServer(t)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/duels", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/duels", "not-a-jwt", nil).Code)

	other, err := NewSessions("another-secret", false)
	require.NoError(t, err)
	forged, err := other.Issue("u1", "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/duels", forged, nil).Code)

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/duels", s.token("u1"), nil).Code)
}

func TestSessionCookieIsAccepted(t *testing.T) {
	s := newServer(t)
	req := httptest.NewRequest(http.MethodGet, constants.RouteAPIPrefix+"/duels", nil)
	req.AddCookie(&http.Cookie{Name: constants.CookieSessionName, Value: s.token("u1")})
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminRoutesNeedToken(t *testing.T) {
	s := newServer(t)
	body := gin.H{"user_id": "u9", "name": "Nine"}
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, "/admin/sessions", "", body).Code)

	req := httptest.NewRequest(http.MethodPost, constants.RouteAPIPrefix+"/admin/sessions", strings.NewReader(`{"user_id":"u9","name":"Nine"}`))
	req.Header.Set(constants.HeaderAdminToken, testAdminToken)
	req.Header.Set(constants.HeaderContentType, constants.ContentTypeJSON)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	out := decode[map[string]string](t, w)
	claims, err := s.sessions.Parse(out[constants.JSONKeyToken])
	require.NoError(t, err)
	assert.Equal(t, "u9", claims.Subject)
	assert.NotEmpty(t, w.Result().Cookies())
}

func TestDuelCreateJoinAndRead(t *testing.T) {
	s := newServer(t)
	t1, t2, t3 := s.token("u1"), s.token("u2"), s.token("u3")
	w1 := s.wizard(t1, "Morgana")
	w2 := s.wizard(t2, "Vexa")

	w := s.do(http.MethodPost, "/duels", t1, gin.H{"round_budget": 3, "wizard_ids": []string{w1.ID}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[duel.Duel](t, w)
	assert.Len(t, created.ShortCode, 6)
	assert.Equal(t, duel.StatusWaitingForPlayers, created.Status)

	w = s.do(http.MethodPost, "/duels/join", t2, gin.H{"short_code": strings.ToLower(created.ShortCode), "wizard_ids": []string{w2.ID}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []string{w1.ID, w2.ID}, decode[duel.Duel](t, w).ParticipantWizards)

	w = s.do(http.MethodPost, "/duels/join", t2, gin.H{"short_code": created.ShortCode, "wizard_ids": []string{w2.ID}})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, string(duel.KindDuplicatePlayer), decode[map[string]string](t, w)[constants.JSONKeyCode])

	w = s.do(http.MethodGet, "/duels/"+created.ShortCode, t3, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created.ID, decode[duel.Duel](t, w).ID)

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/duels/by-id/"+created.ID, t3, nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/duels/AB", t1, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/duels/ZZZZZZ", t1, nil).Code)

	mine := decode[[]duel.Duel](t, s.do(http.MethodGet, "/duels", t2, nil))
	require.Len(t, mine, 1)

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, "/duels/"+created.ShortCode+"/cancel", t3, nil).Code)
	w = s.do(http.MethodPost, "/duels/"+created.ShortCode+"/cancel", t1, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, duel.StatusCancelled, decode[duel.Duel](t, w).Status)
	assert.Equal(t, http.StatusConflict, s.do(http.MethodPost, "/duels/"+created.ShortCode+"/cancel", t1, nil).Code)
}

func TestSubmitActionResolvesInBackground(t *testing.T) {
	s := newServer(t)
	t1, t2 := s.token("u1"), s.token("u2")
	w1 := s.wizard(t1, "Morgana")
	w2 := s.wizard(t2, "Vexa")
	d, err := s.engine.CreateDuel(context.Background(), 3, []string{w1.ID}, "u1")
	require.NoError(t, err)
	_, err = s.engine.JoinDuel(context.Background(), d.ID, []string{w2.ID}, "u2")
	require.NoError(t, err)
	_, err = s.engine.BeginIntroduction(context.Background(), d.ID)
	require.NoError(t, err)

	path := "/duels/" + d.ShortCode + "/actions"
	w := s.do(http.MethodPost, path, t2, gin.H{"wizard_id": w1.ID, "description": "steals a spell"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, path, t1, gin.H{"wizard_id": w1.ID, "description": "hurls a fireball"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = s.do(http.MethodPost, path, t1, gin.H{"wizard_id": w1.ID, "description": "again"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodPost, path, t2, gin.H{"wizard_id": w2.ID, "description": "raises an ice wall"})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	require.Eventually(t, func() bool {
		cur, err := s.engine.GetDuel(context.Background(), d.ID)
		return err == nil && cur.CurrentRoundNumber == 2
	}, 5*time.Second, 20*time.Millisecond)

	rounds := decode[[]duel.Round](t, s.do(http.MethodGet, "/duels/"+d.ShortCode+"/rounds", t1, nil))
	require.GreaterOrEqual(t, len(rounds), 3)
	assert.Equal(t, duel.RoundCompleted, rounds[1].Status)

	w = s.do(http.MethodGet, "/duels/"+d.ShortCode+"/rounds/1/illustration", t1, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = s.do(http.MethodGet, "/duels/"+d.ShortCode+"/rounds/x/illustration", t1, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLobbyPairsOnJoin(t *testing.T) {
	s := newServer(t)
	t1, t2 := s.token("u1"), s.token("u2")
	w1 := s.wizard(t1, "Morgana")
	w2 := s.wizard(t2, "Vexa")

	w := s.do(http.MethodPost, "/lobby", t1, gin.H{"wizard_id": w1.ID, "duel_type_preference": 3})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotContains(t, decode[map[string]json.RawMessage](t, w), "duel")

	w = s.do(http.MethodPost, "/lobby", t1, gin.H{"wizard_id": w1.ID, "duel_type_preference": 3})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodPost, "/lobby", t2, gin.H{"wizard_id": w2.ID, "duel_type_preference": 3})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	out := decode[map[string]json.RawMessage](t, w)
	require.Contains(t, out, "duel")
	var d duel.Duel
	require.NoError(t, json.Unmarshal(out["duel"], &d))
	assert.ElementsMatch(t, []string{"u1", "u2"}, d.ParticipantUsers)

	status := decode[service.LobbyStatus](t, s.do(http.MethodGet, "/lobby/status", t1, nil))
	require.NotNil(t, status.Match)
	assert.Equal(t, d.ID, status.Match.DuelID)

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/lobby/stats", "", nil).Code)
	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, "/lobby", t1, nil).Code)
}

func TestCampaignOutOfOrderIsBadRequest(t *testing.T) {
	s := newServer(t)
	t1 := s.token("u1")
	w1 := s.wizard(t1, "Morgana")

	w := s.do(http.MethodPost, "/campaign/wizards/"+w1.ID+"/progress", t1, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, decode[duel.CampaignProgress](t, w).CurrentOpponentIndex)

	w = s.do(http.MethodPost, "/campaign/wizards/"+w1.ID+"/battles", t1, gin.H{"opponent_number": 4})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "out_of_order", decode[map[string]string](t, w)[constants.JSONKeyCode])
}

func TestWriteErrorMapsKinds(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{duel.NotFound("duel %s not found", "x"), http.StatusNotFound},
		{duel.ErrDuplicateAction, http.StatusConflict},
		{duel.ErrAlreadyQueued, http.StatusConflict},
		{duel.ErrConflict, http.StatusConflict},
		{duel.Unauthorized("no"), http.StatusForbidden},
		{duel.ErrOutOfOrder, http.StatusBadRequest},
		{duel.ErrInsufficientResource, http.StatusPaymentRequired},
		{duel.ErrDataIntegrity, http.StatusInternalServerError},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		writeError(c, tc.err)
		assert.Equal(t, tc.status, w.Code, tc.err.Error())
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	writeError(c, errors.New("disk on fire"))
	assert.NotContains(t, w.Body.String(), "disk")
}
