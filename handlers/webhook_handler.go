package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	svix "github.com/svix/svix-webhooks/go"

	"wizardAPI/internal/logger"
	"wizardAPI/internal/types/clerk"
	"wizardAPI/internal/types/user"
	"wizardAPI/services"
)

type WebhookHandler struct {
	userService *services.UserService
	webhook     *svix.Webhook
	log         *logger.Logger
}

// NewWebhookHandler takes the Clerk signing secret in its "whsec_<base64>" form.
func NewWebhookHandler(userService *services.UserService, signingSecret string, log *logger.Logger) (*WebhookHandler, error) {
	wh, err := svix.NewWebhook(signingSecret)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook signing secret: %w", err)
	}
	return &WebhookHandler{
		userService: userService,
		webhook:     wh,
		log:         log.With("handler", "webhook"),
	}, nil
}

// POST /webhooks/clerk
func (h *WebhookHandler) HandleClerkWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Error reading body")
		return
	}

	// svix checks the svix-id/svix-timestamp/svix-signature headers and a
	// five minute timestamp tolerance.
	if err := h.webhook.Verify(body, r.Header); err != nil {
		h.log.Warn("invalid webhook signature", "error", err)
		respondWithError(w, http.StatusUnauthorized, "Invalid signature")
		return
	}

	var event clerk.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		respondWithError(w, http.StatusBadRequest, "Error parsing webhook")
		return
	}

	ctx := r.Context()
	switch event.Type {
	case "user.created", "user.updated":
		err = h.handleUserUpsert(ctx, event.Data)
	case "user.deleted":
		err = h.handleUserDeleted(ctx, event.Data)
	default:
		h.log.Debug("unhandled webhook event", "type", event.Type)
	}
	if err != nil {
		h.log.Error("webhook processing failed", "type", event.Type, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Error processing webhook")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *WebhookHandler) handleUserUpsert(ctx context.Context, data json.RawMessage) error {
	var userData clerk.UserData
	if err := json.Unmarshal(data, &userData); err != nil {
		return fmt.Errorf("failed to unmarshal user data: %w", err)
	}

	email, verified := userData.PrimaryEmail()

	username := userData.Username
	if username == "" {
		username = userData.FirstName + userData.LastName
	}

	imageURL := userData.ImageURL
	if imageURL == "" {
		imageURL = userData.ProfileImageURL
	}

	req := &user.UpsertUserRequest{
		AuthSubject:   userData.ID,
		Email:         email,
		EmailVerified: verified,
		Username:      username,
		FirstName:     userData.FirstName,
		LastName:      userData.LastName,
		ImageURL:      imageURL,
	}
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("invalid user payload: %w", err)
	}

	_, err := h.userService.SyncUser(ctx, req)
	return err
}

func (h *WebhookHandler) handleUserDeleted(ctx context.Context, data json.RawMessage) error {
	var userData struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &userData); err != nil {
		return fmt.Errorf("failed to unmarshal user data: %w", err)
	}
	if userData.ID == "" {
		return errors.New("user.deleted without id")
	}

	return h.userService.DeleteUser(ctx, userData.ID)
}
