package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"wizardAPI/internal/apperror"
	"wizardAPI/internal/logger"
	"wizardAPI/internal/types/challenge"
	"wizardAPI/repository"
)

// ProgressNotifier is told about progress after the completion transaction commits.
type ProgressNotifier interface {
	ProgressMade(userID uuid.UUID, c *challenge.Challenge, result *challenge.CompleteRitualResult)
}

type ChallengeService struct {
	repo     repository.ChallengeRepository
	notifier ProgressNotifier
	log      *logger.Logger
	now      func() time.Time
}

func NewChallengeService(repo repository.ChallengeRepository, log *logger.Logger) *ChallengeService {
	return &ChallengeService{
		repo: repo,
		log:  log.With("service", "challenge"),
		now:  time.Now,
	}
}

func (s *ChallengeService) SetNotifier(n ProgressNotifier) {
	s.notifier = n
}

// SetClock overrides time.Now, for tests.
func (s *ChallengeService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *ChallengeService) ListChallenges(ctx context.Context) ([]challenge.Summary, error) {
	return s.repo.ListActiveChallenges(ctx)
}

// GetChallengeDetail returns the challenge and its active rituals. When
// callerUserID is set the caller's enrollment (with completions) is attached,
// or left nil if they never started it.
func (s *ChallengeService) GetChallengeDetail(ctx context.Context, challengeID uuid.UUID, callerUserID *uuid.UUID) (*challenge.Detail, error) {
	ch, err := s.repo.GetActiveChallenge(ctx, challengeID)
	if err != nil {
		return nil, notFound(err, "Challenge not found")
	}

	rituals, err := s.repo.ListActiveRituals(ctx, challengeID)
	if err != nil {
		return nil, err
	}

	detail := &challenge.Detail{Challenge: *ch, Rituals: rituals}
	if callerUserID == nil {
		return detail, nil
	}

	uc, err := s.repo.GetUserChallenge(ctx, *callerUserID, challengeID)
	if errors.Is(err, repository.ErrNotFound) {
		return detail, nil
	}
	if err != nil {
		return nil, err
	}

	completions, err := s.repo.ListCompletions(ctx, uc.ID)
	if err != nil {
		return nil, err
	}
	detail.UserProgress = &challenge.UserProgress{UserChallenge: *uc, Completions: completions}

	return detail, nil
}

// GetActiveChallenges lists ACTIVE and PAUSED enrollments, newest first, with
// the rituals scheduled for each enrollment's current day.
func (s *ChallengeService) GetActiveChallenges(ctx context.Context, userID uuid.UUID) ([]challenge.ActiveChallenge, error) {
	enrollments, err := s.repo.ListUserChallenges(ctx, userID, []challenge.Status{challenge.StatusActive, challenge.StatusPaused})
	if err != nil {
		return nil, err
	}

	active := make([]challenge.ActiveChallenge, 0, len(enrollments))
	for _, uc := range enrollments {
		ch, err := s.repo.GetChallenge(ctx, uc.ChallengeID)
		if err != nil {
			return nil, fmt.Errorf("challenge %s of enrollment %s: %w", uc.ChallengeID, uc.ID, err)
		}

		today, err := s.repo.ListActiveRitualsForDay(ctx, uc.ChallengeID, uc.CurrentDay)
		if err != nil {
			return nil, err
		}

		completions, err := s.repo.ListCompletions(ctx, uc.ID)
		if err != nil {
			return nil, err
		}

		item := challenge.ActiveChallenge{
			UserChallenge:      uc,
			Challenge:          *ch,
			TodayRituals:       today,
			CompletedRitualIDs: completedRitualIDs(completions),
		}
		if len(today) > 0 {
			item.TodayRitual = &today[0]
		}
		active = append(active, item)
	}

	return active, nil
}

func (s *ChallengeService) StartChallenge(ctx context.Context, userID, challengeID uuid.UUID) (*challenge.Enrollment, error) {
	ch, err := s.repo.GetActiveChallenge(ctx, challengeID)
	if err != nil {
		return nil, notFound(err, "Challenge not found")
	}

	_, err = s.repo.GetUserChallenge(ctx, userID, challengeID)
	if err == nil {
		return nil, apperror.Conflict("Challenge already started")
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	now := s.now()
	uc := challenge.UserChallenge{
		ID:          uuid.New(),
		UserID:      userID,
		ChallengeID: challengeID,
		Status:      challenge.StatusActive,
		CurrentDay:  1,
		StartedAt:   now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.CreateUserChallenge(ctx, &uc); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperror.Conflict("Challenge already started")
		}
		return nil, err
	}

	enrollmentEvents.WithLabelValues("started").Inc()
	s.log.Info("challenge started", "user_id", userID, "challenge_id", challengeID)

	return &challenge.Enrollment{UserChallenge: uc, Challenge: *ch}, nil
}

func (s *ChallengeService) PauseChallenge(ctx context.Context, userID, challengeID uuid.UUID) (*challenge.UserChallenge, error) {
	uc, err := s.transition(ctx, userID, challengeID, func(uc *challenge.UserChallenge, now time.Time) error {
		if uc.Status != challenge.StatusActive {
			return apperror.InvalidState("Challenge is not active")
		}
		uc.Status = challenge.StatusPaused
		uc.PausedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	enrollmentEvents.WithLabelValues("paused").Inc()
	return uc, nil
}

func (s *ChallengeService) ResumeChallenge(ctx context.Context, userID, challengeID uuid.UUID) (*challenge.UserChallenge, error) {
	uc, err := s.transition(ctx, userID, challengeID, func(uc *challenge.UserChallenge, now time.Time) error {
		if uc.Status != challenge.StatusPaused {
			return apperror.InvalidState("Challenge is not paused")
		}
		uc.Status = challenge.StatusActive
		uc.PausedAt = nil
		return nil
	})
	if err != nil {
		return nil, err
	}

	enrollmentEvents.WithLabelValues("resumed").Inc()
	return uc, nil
}

// transition locks the enrollment, applies change and persists it in one transaction.
func (s *ChallengeService) transition(ctx context.Context, userID, challengeID uuid.UUID, change func(uc *challenge.UserChallenge, now time.Time) error) (*challenge.UserChallenge, error) {
	var updated *challenge.UserChallenge

	err := s.repo.WithinTx(ctx, func(tx repository.ChallengeRepository) error {
		uc, err := tx.LockUserChallenge(ctx, userID, challengeID)
		if err != nil {
			return notFound(err, "Challenge not started")
		}

		now := s.now()
		if err := change(uc, now); err != nil {
			return err
		}
		uc.UpdatedAt = now

		if err := tx.UpdateUserChallenge(ctx, uc); err != nil {
			return err
		}
		updated = uc
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// CompleteRitual appends to the completion ledger and re-derives the day
// cursor from it. Duplicate completions are rejected with Conflict.
func (s *ChallengeService) CompleteRitual(ctx context.Context, userID, challengeID, ritualID uuid.UUID) (*challenge.CompleteRitualResult, error) {
	var (
		result *challenge.CompleteRitualResult
		ch     *challenge.Challenge
	)

	err := s.repo.WithinTx(ctx, func(tx repository.ChallengeRepository) error {
		if _, err := tx.GetActiveRitual(ctx, challengeID, ritualID); err != nil {
			return notFound(err, "Ritual not found")
		}

		uc, err := tx.LockUserChallenge(ctx, userID, challengeID)
		if err != nil {
			return notFound(err, "Challenge not started")
		}
		if uc.Status != challenge.StatusActive {
			return apperror.InvalidState("Challenge is not active")
		}

		ch, err = tx.GetChallenge(ctx, challengeID)
		if err != nil {
			return err
		}

		now := s.now()
		completion := challenge.RitualCompletion{
			ID:              uuid.New(),
			UserID:          userID,
			UserChallengeID: uc.ID,
			RitualID:        ritualID,
			CompletedAt:     now,
		}
		if err := tx.InsertCompletion(ctx, &completion); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperror.Conflict("Ritual already completed")
			}
			return err
		}

		day := uc.CurrentDay
		completed, err := tx.CountCompletionsForDay(ctx, uc.ID, day)
		if err != nil {
			return err
		}
		total, err := tx.CountActiveRitualsForDay(ctx, challengeID, day)
		if err != nil {
			return err
		}

		result = &challenge.CompleteRitualResult{Completed: true, CurrentDay: day}
		if !dayComplete(completed, total) {
			return nil
		}

		result.DayAdvanced = advanceEnrollment(uc, ch.Duration, now)
		result.ChallengeCompleted = uc.Status == challenge.StatusCompleted
		result.CurrentDay = uc.CurrentDay

		return tx.UpdateUserChallenge(ctx, uc)
	})
	if err != nil {
		return nil, err
	}

	ritualsCompleted.Inc()
	if result.ChallengeCompleted {
		enrollmentEvents.WithLabelValues("completed").Inc()
		s.log.Info("challenge completed", "user_id", userID, "challenge_id", challengeID)
	}
	if s.notifier != nil && (result.DayAdvanced || result.ChallengeCompleted) {
		s.notifier.ProgressMade(userID, ch, result)
	}

	return result, nil
}

func (s *ChallengeService) GetProgress(ctx context.Context, userID, challengeID uuid.UUID) (*challenge.Progress, error) {
	uc, err := s.repo.GetUserChallenge(ctx, userID, challengeID)
	if err != nil {
		return nil, notFound(err, "Challenge not started")
	}

	ch, err := s.repo.GetChallenge(ctx, challengeID)
	if err != nil {
		return nil, err
	}

	rituals, err := s.repo.ListActiveRituals(ctx, challengeID)
	if err != nil {
		return nil, err
	}

	completions, err := s.repo.ListCompletions(ctx, uc.ID)
	if err != nil {
		return nil, err
	}

	return &challenge.Progress{
		UserChallenge:      *uc,
		Challenge:          *ch,
		Rituals:            rituals,
		Completions:        completions,
		CompletedRitualIDs: completedRitualIDs(completions),
	}, nil
}

func completedRitualIDs(completions []challenge.RitualCompletion) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(completions))
	seen := make(map[uuid.UUID]bool, len(completions))
	for _, c := range completions {
		if seen[c.RitualID] {
			continue
		}
		seen[c.RitualID] = true
		ids = append(ids, c.RitualID)
	}
	return ids
}

// notFound turns repository.ErrNotFound into a client-facing NotFound and
// passes other errors through.
func notFound(err error, message string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.NotFound(message)
	}
	return err
}
