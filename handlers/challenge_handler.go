package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"wizardAPI/internal/logger"
	"wizardAPI/middleware"
	"wizardAPI/services"
)

type ChallengeHandler struct {
	challengeService *services.ChallengeService
	log              *logger.Logger
}

func NewChallengeHandler(challengeService *services.ChallengeService, log *logger.Logger) *ChallengeHandler {
	return &ChallengeHandler{
		challengeService: challengeService,
		log:              log.With("handler", "challenge"),
	}
}

// GET /api/v1/challenges
func (h *ChallengeHandler) ListChallenges(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	challenges, err := h.challengeService.ListChallenges(ctx)
	if err != nil {
		respondWithAppError(w, h.log, err)
		return
	}

	respondWithJSON(w, http.StatusOK, challenges)
}

// GET /api/v1/challenges/{id}
func (h *ChallengeHandler) GetChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	challengeID, err := pathUUID(r, "id")
	if err != nil {
		respondWithAppError(w, h.log, err)
		return
	}

	var caller *uuid.UUID
	if userID, ok := middleware.GetUserID(ctx); ok {
		caller = &userID
	}

	detail, err := h.challengeService.GetChallengeDetail(ctx, challengeID, caller)
	if err != nil {
		respondWithAppError(w, h.log, err)
		return
	}

	respondWithJSON(w, http.StatusOK, detail)
}

// GET /api/v1/challenges/my/active
func (h *ChallengeHandler) GetActiveChallenges(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	active, err := h.challengeService.GetActiveChallenges(ctx, userID)
	if err != nil {
		respondWithAppError(w, h.log, err)
		return
	}

	respondWithJSON(w, http.StatusOK, active)
}

// POST /api/v1/challenges/{id}/start
func (h *ChallengeHandler) StartChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, challengeID, ok := h.userAndChallenge(w, r)
	if !ok {
		return
	}

	enrollment, err := h.challengeService.StartChallenge(ctx, userID, challengeID)
	if err != nil {
		respondWithAppError(w, h.log, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, enrollment)
}

// POST /api/v1/challenges/{id}/pause
func (h *ChallengeHandler) PauseChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, challengeID, ok := h.userAndChallenge(w, r)
	if !ok {
		return
	}

	uc, err := h.challengeService.PauseChallenge(ctx, userID, challengeID)
	if err != nil {
		respondWithAppError(w, h.log, err)
		return
	}

	respondWithJSON(w, http.StatusOK, uc)
}

// POST /api/v1/challenges/{id}/resume
func (h *ChallengeHandler) ResumeChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, challengeID, ok := h.userAndChallenge(w, r)
	if !ok {
		return
	}

	uc, err := h.challengeService.ResumeChallenge(ctx, userID, challengeID)
	if err != nil {
		respondWithAppError(w, h.log, err)
		return
	}

	respondWithJSON(w, http.StatusOK, uc)
}

// POST /api/v1/challenges/{challengeId}/rituals/{ritualId}/complete
func (h *ChallengeHandler) CompleteRitual(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	challengeID, err := pathUUID(r, "challengeId")
	if err != nil {
		respondWithAppError(w, h.log, err)
		return
	}
	ritualID, err := pathUUID(r, "ritualId")
	if err != nil {
		respondWithAppError(w, h.log, err)
		return
	}

	result, err := h.challengeService.CompleteRitual(ctx, userID, challengeID, ritualID)
	if err != nil {
		respondWithAppError(w, h.log, err)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// GET /api/v1/challenges/{id}/progress
func (h *ChallengeHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, challengeID, ok := h.userAndChallenge(w, r)
	if !ok {
		return
	}

	progress, err := h.challengeService.GetProgress(ctx, userID, challengeID)
	if err != nil {
		respondWithAppError(w, h.log, err)
		return
	}

	respondWithJSON(w, http.StatusOK, progress)
}

// userAndChallenge reads the caller and the {id} route variable, writing the
// error response itself when either is missing.
func (h *ChallengeHandler) userAndChallenge(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return uuid.Nil, uuid.Nil, false
	}

	challengeID, err := pathUUID(r, "id")
	if err != nil {
		respondWithAppError(w, h.log, err)
		return uuid.Nil, uuid.Nil, false
	}

	return userID, challengeID, true
}
