package handlers

import (
	"context"
	"net/http"
	"time"

	"wizardAPI/internal/logger"
	"wizardAPI/internal/types/notification"
	"wizardAPI/middleware"
	"wizardAPI/services"
)

type NotificationHandler struct {
	notificationService *services.NotificationService
	log                 *logger.Logger
}

func NewNotificationHandler(notificationService *services.NotificationService, log *logger.Logger) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
		log:                 log.With("handler", "notification"),
	}
}

// POST /api/v1/notifications/register-device
func (h *NotificationHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req notification.RegisterDeviceRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondWithAppError(w, h.log, err)
		return
	}

	device, err := h.notificationService.RegisterDevice(ctx, userID, &req)
	if err != nil {
		respondWithAppError(w, h.log, err)
		return
	}

	respondWithJSON(w, http.StatusOK, device)
}
