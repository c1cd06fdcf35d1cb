package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wizardAPI/internal/logger"
	"wizardAPI/internal/types/challenge"
	"wizardAPI/middleware"
	"wizardAPI/repository"
	"wizardAPI/services"
)

type handlerFixture struct {
	repo      *repository.Memory
	handler   *ChallengeHandler
	challenge challenge.Challenge
	day1      challenge.Ritual
	day2      challenge.Ritual
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	ctx := context.Background()
	repo := repository.NewMemory()

	c := challenge.Challenge{Slug: "two", Title: "Two Days", Duration: 2, Category: challenge.CategoryHealing, Goals: []string{}, IsActive: true}
	require.NoError(t, repo.UpsertChallenge(ctx, &c))

	content := "write"
	r1 := challenge.Ritual{ChallengeID: c.ID, Key: "journal", DayNumber: 1, Title: "Journal", Type: challenge.RitualText, TextContent: &content, IsActive: true}
	r2 := challenge.Ritual{ChallengeID: c.ID, Key: "reflect", DayNumber: 2, Title: "Reflect", Type: challenge.RitualText, TextContent: &content, IsActive: true}
	require.NoError(t, repo.UpsertRitual(ctx, &r1))
	require.NoError(t, repo.UpsertRitual(ctx, &r2))

	svc := services.NewChallengeService(repo, logger.Nop())
	return &handlerFixture{
		repo:      repo,
		handler:   NewChallengeHandler(svc, logger.Nop()),
		challenge: c,
		day1:      r1,
		day2:      r2,
	}
}

// newRequest builds a request as the auth middleware and router would leave it.
func newRequest(method, target string, userID *uuid.UUID, vars map[string]string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	if userID != nil {
		ctx := context.WithValue(req.Context(), middleware.UserIDKey, *userID)
		req = req.WithContext(ctx)
	}
	if vars != nil {
		req = mux.SetURLVars(req, vars)
	}
	return req
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body["error"]
}

func TestListChallenges(t *testing.T) {
	fx := newHandlerFixture(t)

	rr := httptest.NewRecorder()
	fx.handler.ListChallenges(rr, newRequest(http.MethodGet, "/api/v1/challenges", nil, nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	var list []challenge.Summary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, 2, list[0].RitualCount)
}

func TestGetChallenge(t *testing.T) {
	fx := newHandlerFixture(t)
	userID := uuid.New()
	vars := map[string]string{"id": fx.challenge.ID.String()}

	rr := httptest.NewRecorder()
	fx.handler.GetChallenge(rr, newRequest(http.MethodGet, "/", nil, vars))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"userProgress":null`)

	rr = httptest.NewRecorder()
	fx.handler.StartChallenge(rr, newRequest(http.MethodPost, "/", &userID, vars))
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = httptest.NewRecorder()
	fx.handler.GetChallenge(rr, newRequest(http.MethodGet, "/", &userID, vars))
	require.Equal(t, http.StatusOK, rr.Code)

	var detail challenge.Detail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &detail))
	require.NotNil(t, detail.UserProgress)
	assert.Equal(t, challenge.StatusActive, detail.UserProgress.Status)
	assert.Len(t, detail.Rituals, 2)

	rr = httptest.NewRecorder()
	fx.handler.GetChallenge(rr, newRequest(http.MethodGet, "/", nil, map[string]string{"id": "not-a-uuid"}))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	fx.handler.GetChallenge(rr, newRequest(http.MethodGet, "/", nil, map[string]string{"id": uuid.NewString()}))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Challenge not found", decodeError(t, rr))
}

func TestChallengeLifecycle(t *testing.T) {
	fx := newHandlerFixture(t)
	userID := uuid.New()
	vars := map[string]string{"id": fx.challenge.ID.String()}
	complete := func(r challenge.Ritual) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		fx.handler.CompleteRitual(rr, newRequest(http.MethodPost, "/", &userID, map[string]string{
			"challengeId": fx.challenge.ID.String(),
			"ritualId":    r.ID.String(),
		}))
		return rr
	}

	rr := httptest.NewRecorder()
	fx.handler.StartChallenge(rr, newRequest(http.MethodPost, "/", &userID, vars))
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = httptest.NewRecorder()
	fx.handler.StartChallenge(rr, newRequest(http.MethodPost, "/", &userID, vars))
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "Challenge already started", decodeError(t, rr))

	rr = httptest.NewRecorder()
	fx.handler.PauseChallenge(rr, newRequest(http.MethodPost, "/", &userID, vars))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = complete(fx.day1)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Challenge is not active", decodeError(t, rr))

	rr = httptest.NewRecorder()
	fx.handler.ResumeChallenge(rr, newRequest(http.MethodPost, "/", &userID, vars))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = complete(fx.day1)
	require.Equal(t, http.StatusOK, rr.Code)
	var result challenge.CompleteRitualResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.Equal(t, challenge.CompleteRitualResult{Completed: true, CurrentDay: 2, DayAdvanced: true}, result)

	rr = complete(fx.day1)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = complete(fx.day2)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.True(t, result.ChallengeCompleted)
	assert.Equal(t, 2, result.CurrentDay)

	rr = httptest.NewRecorder()
	fx.handler.GetProgress(rr, newRequest(http.MethodGet, "/", &userID, vars))
	require.Equal(t, http.StatusOK, rr.Code)
	var progress challenge.Progress
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &progress))
	assert.Equal(t, challenge.StatusCompleted, progress.Status)
	assert.ElementsMatch(t, []uuid.UUID{fx.day1.ID, fx.day2.ID}, progress.CompletedRitualIDs)
	assert.NotNil(t, progress.CompletedAt)

	rr = httptest.NewRecorder()
	fx.handler.GetActiveChallenges(rr, newRequest(http.MethodGet, "/", &userID, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String(), "completed challenges are not active")
}

func TestCompleteRitual_Errors(t *testing.T) {
	fx := newHandlerFixture(t)
	userID := uuid.New()

	rr := httptest.NewRecorder()
	fx.handler.CompleteRitual(rr, newRequest(http.MethodPost, "/", &userID, map[string]string{
		"challengeId": fx.challenge.ID.String(),
		"ritualId":    fx.day1.ID.String(),
	}))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Challenge not started", decodeError(t, rr))

	rr = httptest.NewRecorder()
	fx.handler.CompleteRitual(rr, newRequest(http.MethodPost, "/", &userID, map[string]string{
		"challengeId": fx.challenge.ID.String(),
		"ritualId":    "42",
	}))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Invalid ritualId", decodeError(t, rr))
}

func TestProtectedHandlers_RequireIdentity(t *testing.T) {
	fx := newHandlerFixture(t)
	vars := map[string]string{"id": fx.challenge.ID.String()}

	for name, h := range map[string]http.HandlerFunc{
		"start":    fx.handler.StartChallenge,
		"pause":    fx.handler.PauseChallenge,
		"resume":   fx.handler.ResumeChallenge,
		"progress": fx.handler.GetProgress,
		"active":   fx.handler.GetActiveChallenges,
		"complete": fx.handler.CompleteRitual,
	} {
		t.Run(name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h(rr, newRequest(http.MethodPost, "/", nil, vars))
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
		})
	}
}

func TestRespondWithAppError_HidesInternalErrors(t *testing.T) {
	rr := httptest.NewRecorder()
	respondWithAppError(rr, logger.Nop(), assert.AnError)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.False(t, strings.Contains(rr.Body.String(), assert.AnError.Error()))
	assert.Equal(t, "Internal server error", decodeError(t, rr))
}
