package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"wizardAPI/internal/logger"
	"wizardAPI/internal/types/challenge"
	"wizardAPI/internal/types/notification"
	"wizardAPI/repository"
)

type NotificationService struct {
	devices    repository.DeviceRepository
	dispatcher *NotificationDispatcher
	log        *logger.Logger
}

func NewNotificationService(devices repository.DeviceRepository, log *logger.Logger) *NotificationService {
	log = log.With("service", "notification")
	return &NotificationService{
		devices:    devices,
		dispatcher: NewNotificationDispatcher(devices, log, 5, 100),
		log:        log,
	}
}

// SetPushProvider injects the push backend (FCM in production).
func (s *NotificationService) SetPushProvider(provider PushProvider) {
	s.dispatcher.SetPushProvider(provider)
}

func (s *NotificationService) Start(ctx context.Context) {
	s.dispatcher.Start(ctx)
}

// Stop cancels the workers and waits for them to exit. Queued pushes are dropped.
func (s *NotificationService) Stop() {
	s.dispatcher.Stop()
}

func (s *NotificationService) RegisterDevice(ctx context.Context, userID uuid.UUID, req *notification.RegisterDeviceRequest) (*notification.DeviceToken, error) {
	device, err := s.devices.RegisterDevice(ctx, userID, req)
	if err != nil {
		return nil, err
	}
	s.log.Info("device registered", "user_id", userID, "platform", device.Platform)
	return device, nil
}

// ProgressMade queues a push for a day advance or a finished challenge.
func (s *NotificationService) ProgressMade(userID uuid.UUID, c *challenge.Challenge, result *challenge.CompleteRitualResult) {
	push := &notification.Push{
		UserID: userID,
		Data: map[string]any{
			"type":        "challenge_progress",
			"challengeId": c.ID.String(),
			"currentDay":  result.CurrentDay,
		},
	}

	if result.ChallengeCompleted {
		push.Title = "Challenge complete"
		push.Body = fmt.Sprintf("You finished %s. All %d days done!", c.Title, c.Duration)
		push.Data["type"] = "challenge_completed"
	} else {
		push.Title = fmt.Sprintf("Day %d unlocked", result.CurrentDay)
		push.Body = fmt.Sprintf("Your next rituals in %s are ready.", c.Title)
	}

	s.dispatcher.Dispatch(push)
}
