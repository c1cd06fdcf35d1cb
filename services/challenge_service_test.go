package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wizardAPI/internal/apperror"
	"wizardAPI/internal/types/challenge"
	"wizardAPI/repository"
)

type recordingNotifier struct {
	mu      sync.Mutex
	results []challenge.CompleteRitualResult
}

func (n *recordingNotifier) ProgressMade(userID uuid.UUID, c *challenge.Challenge, result *challenge.CompleteRitualResult) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.results = append(n.results, *result)
}

func TestListChallenges_OnlyActiveWithRitualCounts(t *testing.T) {
	repo := repository.NewMemory()
	fx := newTwoDayCatalog(t, repo)
	addChallenge(t, repo, "retired", 5, false)

	svc := newTestChallengeService(repo)
	list, err := svc.ListChallenges(context.Background())
	require.NoError(t, err)

	require.Len(t, list, 1)
	assert.Equal(t, fx.challenge.ID, list[0].ID)
	assert.Equal(t, 3, list[0].RitualCount)
}

func TestGetChallengeDetail(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	fx := newTwoDayCatalog(t, repo)
	svc := newTestChallengeService(repo)
	userID := uuid.New()

	t.Run("anonymous caller gets no progress", func(t *testing.T) {
		detail, err := svc.GetChallengeDetail(ctx, fx.challenge.ID, nil)
		require.NoError(t, err)
		assert.Nil(t, detail.UserProgress)
		require.Len(t, detail.Rituals, 3)
		assert.Equal(t, fx.r1.ID, detail.Rituals[0].ID)
		assert.Equal(t, fx.r2.ID, detail.Rituals[1].ID)
		assert.Equal(t, fx.r3.ID, detail.Rituals[2].ID)
	})

	t.Run("caller who never started gets null progress", func(t *testing.T) {
		detail, err := svc.GetChallengeDetail(ctx, fx.challenge.ID, &userID)
		require.NoError(t, err)
		assert.Nil(t, detail.UserProgress)
	})

	t.Run("enrolled caller sees their completions", func(t *testing.T) {
		_, err := svc.StartChallenge(ctx, userID, fx.challenge.ID)
		require.NoError(t, err)
		_, err = svc.CompleteRitual(ctx, userID, fx.challenge.ID, fx.r1.ID)
		require.NoError(t, err)

		detail, err := svc.GetChallengeDetail(ctx, fx.challenge.ID, &userID)
		require.NoError(t, err)
		require.NotNil(t, detail.UserProgress)
		assert.Equal(t, challenge.StatusActive, detail.UserProgress.Status)
		require.Len(t, detail.UserProgress.Completions, 1)
		assert.Equal(t, fx.r1.ID, detail.UserProgress.Completions[0].RitualID)
	})

	t.Run("inactive challenge is not found", func(t *testing.T) {
		retired := addChallenge(t, repo, "retired", 3, false)
		_, err := svc.GetChallengeDetail(ctx, retired.ID, nil)
		assert.ErrorIs(t, err, apperror.ErrNotFound)
	})

	t.Run("unknown challenge is not found", func(t *testing.T) {
		_, err := svc.GetChallengeDetail(ctx, uuid.New(), nil)
		assert.ErrorIs(t, err, apperror.ErrNotFound)
	})
}

func TestStartChallenge(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	fx := newTwoDayCatalog(t, repo)
	svc := newTestChallengeService(repo)
	userID := uuid.New()

	enrollment, err := svc.StartChallenge(ctx, userID, fx.challenge.ID)
	require.NoError(t, err)
	assert.Equal(t, challenge.StatusActive, enrollment.Status)
	assert.Equal(t, 1, enrollment.CurrentDay)
	assert.Equal(t, testNow, enrollment.StartedAt)
	assert.Nil(t, enrollment.PausedAt)
	assert.Nil(t, enrollment.CompletedAt)
	assert.Equal(t, fx.challenge.Title, enrollment.Challenge.Title)

	_, err = svc.StartChallenge(ctx, userID, fx.challenge.ID)
	assert.ErrorIs(t, err, apperror.ErrConflict)

	active, err := repo.ListUserChallenges(ctx, userID, []challenge.Status{challenge.StatusActive, challenge.StatusPaused, challenge.StatusCompleted})
	require.NoError(t, err)
	assert.Len(t, active, 1)

	t.Run("inactive challenge cannot be started", func(t *testing.T) {
		retired := addChallenge(t, repo, "retired", 3, false)
		_, err := svc.StartChallenge(ctx, userID, retired.ID)
		assert.ErrorIs(t, err, apperror.ErrNotFound)
	})
}

func TestStartChallenge_ConcurrentStartsYieldOneEnrollment(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	fx := newTwoDayCatalog(t, repo)
	svc := newTestChallengeService(repo)
	userID := uuid.New()

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		conflicts int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.StartChallenge(ctx, userID, fx.challenge.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if errors.Is(err, apperror.ErrConflict) {
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, attempts-1, conflicts)
}

func TestPauseResume(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	fx := newTwoDayCatalog(t, repo)
	svc := newTestChallengeService(repo)
	userID := uuid.New()

	_, err := svc.PauseChallenge(ctx, userID, fx.challenge.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound, "pause before start")

	_, err = svc.StartChallenge(ctx, userID, fx.challenge.ID)
	require.NoError(t, err)

	_, err = svc.ResumeChallenge(ctx, userID, fx.challenge.ID)
	assert.ErrorIs(t, err, apperror.ErrInvalidState, "resume while active")

	paused, err := svc.PauseChallenge(ctx, userID, fx.challenge.ID)
	require.NoError(t, err)
	assert.Equal(t, challenge.StatusPaused, paused.Status)
	require.NotNil(t, paused.PausedAt)
	assert.Equal(t, testNow, *paused.PausedAt)

	_, err = svc.PauseChallenge(ctx, userID, fx.challenge.ID)
	assert.ErrorIs(t, err, apperror.ErrInvalidState, "pause while paused")

	_, err = svc.CompleteRitual(ctx, userID, fx.challenge.ID, fx.r1.ID)
	assert.ErrorIs(t, err, apperror.ErrInvalidState, "complete while paused")

	resumed, err := svc.ResumeChallenge(ctx, userID, fx.challenge.ID)
	require.NoError(t, err)
	assert.Equal(t, challenge.StatusActive, resumed.Status)
	assert.Nil(t, resumed.PausedAt)
	assert.Equal(t, 1, resumed.CurrentDay)

	stored, err := repo.GetUserChallenge(ctx, userID, fx.challenge.ID)
	require.NoError(t, err)
	assert.Equal(t, challenge.StatusActive, stored.Status)
	assert.Nil(t, stored.PausedAt)
}

func TestCompleteRitual_TwoDayChallenge(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	fx := newTwoDayCatalog(t, repo)
	svc := newTestChallengeService(repo)
	notifier := &recordingNotifier{}
	svc.SetNotifier(notifier)
	userID := uuid.New()

	_, err := svc.StartChallenge(ctx, userID, fx.challenge.ID)
	require.NoError(t, err)

	res, err := svc.CompleteRitual(ctx, userID, fx.challenge.ID, fx.r1.ID)
	require.NoError(t, err)
	assert.Equal(t, challenge.CompleteRitualResult{Completed: true, CurrentDay: 1}, *res)

	res, err = svc.CompleteRitual(ctx, userID, fx.challenge.ID, fx.r2.ID)
	require.NoError(t, err)
	assert.Equal(t, challenge.CompleteRitualResult{Completed: true, CurrentDay: 2, DayAdvanced: true}, *res)

	res, err = svc.CompleteRitual(ctx, userID, fx.challenge.ID, fx.r3.ID)
	require.NoError(t, err)
	assert.Equal(t, challenge.CompleteRitualResult{Completed: true, CurrentDay: 2, ChallengeCompleted: true}, *res)

	uc, err := repo.GetUserChallenge(ctx, userID, fx.challenge.ID)
	require.NoError(t, err)
	assert.Equal(t, challenge.StatusCompleted, uc.Status)
	assert.Equal(t, 2, uc.CurrentDay)
	require.NotNil(t, uc.CompletedAt)
	assert.Equal(t, testNow, *uc.CompletedAt)

	_, err = svc.CompleteRitual(ctx, userID, fx.challenge.ID, fx.r1.ID)
	assert.ErrorIs(t, err, apperror.ErrInvalidState, "completed enrollment accepts no more completions")

	_, err = svc.PauseChallenge(ctx, userID, fx.challenge.ID)
	assert.ErrorIs(t, err, apperror.ErrInvalidState, "completed enrollment cannot be paused")

	_, err = svc.StartChallenge(ctx, userID, fx.challenge.ID)
	assert.ErrorIs(t, err, apperror.ErrConflict, "completed enrollment cannot be restarted")

	require.Len(t, notifier.results, 2)
	assert.True(t, notifier.results[0].DayAdvanced)
	assert.True(t, notifier.results[1].ChallengeCompleted)
}

func TestCompleteRitual_Duplicate(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	fx := newTwoDayCatalog(t, repo)
	svc := newTestChallengeService(repo)
	userID := uuid.New()

	_, err := svc.StartChallenge(ctx, userID, fx.challenge.ID)
	require.NoError(t, err)

	_, err = svc.CompleteRitual(ctx, userID, fx.challenge.ID, fx.r1.ID)
	require.NoError(t, err)
	_, err = svc.CompleteRitual(ctx, userID, fx.challenge.ID, fx.r1.ID)
	assert.ErrorIs(t, err, apperror.ErrConflict)

	progress, err := svc.GetProgress(ctx, userID, fx.challenge.ID)
	require.NoError(t, err)
	assert.Len(t, progress.Completions, 1)
	assert.Equal(t, 1, progress.CurrentDay)
}

func TestCompleteRitual_FutureDayRitualDoesNotAdvance(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	fx := newTwoDayCatalog(t, repo)
	svc := newTestChallengeService(repo)
	userID := uuid.New()

	_, err := svc.StartChallenge(ctx, userID, fx.challenge.ID)
	require.NoError(t, err)

	res, err := svc.CompleteRitual(ctx, userID, fx.challenge.ID, fx.r3.ID)
	require.NoError(t, err)
	assert.False(t, res.DayAdvanced)
	assert.Equal(t, 1, res.CurrentDay)

	_, err = svc.CompleteRitual(ctx, userID, fx.challenge.ID, fx.r1.ID)
	require.NoError(t, err)
	res, err = svc.CompleteRitual(ctx, userID, fx.challenge.ID, fx.r2.ID)
	require.NoError(t, err)
	assert.True(t, res.DayAdvanced)
	assert.Equal(t, 2, res.CurrentDay)
	assert.False(t, res.ChallengeCompleted, "day 2 is only evaluated by a completion made on day 2")
}

func TestCompleteRitual_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	fx := newTwoDayCatalog(t, repo)
	other := addChallenge(t, repo, "other", 3, true)
	foreign := addRitual(t, repo, other.ID, 1, 0)
	svc := newTestChallengeService(repo)
	userID := uuid.New()

	_, err := svc.CompleteRitual(ctx, userID, fx.challenge.ID, fx.r1.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound, "not started")

	_, err = svc.StartChallenge(ctx, userID, fx.challenge.ID)
	require.NoError(t, err)

	_, err = svc.CompleteRitual(ctx, userID, fx.challenge.ID, foreign.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound, "ritual of another challenge")

	_, err = svc.CompleteRitual(ctx, userID, fx.challenge.ID, uuid.New())
	assert.ErrorIs(t, err, apperror.ErrNotFound, "unknown ritual")

	_, err = repo.DeactivateRitualsExcept(ctx, fx.challenge.ID, []uuid.UUID{fx.r1.ID, fx.r3.ID})
	require.NoError(t, err)
	_, err = svc.CompleteRitual(ctx, userID, fx.challenge.ID, fx.r2.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound, "inactive ritual")

	progress, err := svc.GetProgress(ctx, userID, fx.challenge.ID)
	require.NoError(t, err)
	assert.Empty(t, progress.Completions)
}

func TestCompleteRitual_DeactivatedRitualNoLongerCountsTowardsDay(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	fx := newTwoDayCatalog(t, repo)
	svc := newTestChallengeService(repo)
	userID := uuid.New()

	_, err := svc.StartChallenge(ctx, userID, fx.challenge.ID)
	require.NoError(t, err)

	_, err = repo.DeactivateRitualsExcept(ctx, fx.challenge.ID, []uuid.UUID{fx.r1.ID, fx.r3.ID})
	require.NoError(t, err)

	res, err := svc.CompleteRitual(ctx, userID, fx.challenge.ID, fx.r1.ID)
	require.NoError(t, err)
	assert.True(t, res.DayAdvanced)
	assert.Equal(t, 2, res.CurrentDay)
}

func TestCompleteRitual_EmptyDayAdvancesOnNextCompletion(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	c := addChallenge(t, repo, "gap", 3, true)
	r1 := addRitual(t, repo, c.ID, 1, 0)
	r3 := addRitual(t, repo, c.ID, 3, 0)
	svc := newTestChallengeService(repo)
	userID := uuid.New()

	_, err := svc.StartChallenge(ctx, userID, c.ID)
	require.NoError(t, err)

	res, err := svc.CompleteRitual(ctx, userID, c.ID, r1.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.CurrentDay)

	before, err := svc.GetProgress(ctx, userID, c.ID)
	require.NoError(t, err)
	again, err := svc.GetProgress(ctx, userID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, before.CurrentDay)
	assert.Equal(t, before.UserChallenge, again.UserChallenge, "reading progress never advances")

	res, err = svc.CompleteRitual(ctx, userID, c.ID, r3.ID)
	require.NoError(t, err)
	assert.True(t, res.DayAdvanced)
	assert.Equal(t, 3, res.CurrentDay)
	assert.False(t, res.ChallengeCompleted)
}

func TestGetProgress_SingleEmptyDayStaysActiveOnReads(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	c := addChallenge(t, repo, "empty", 1, true)
	svc := newTestChallengeService(repo)
	userID := uuid.New()

	_, err := svc.StartChallenge(ctx, userID, c.ID)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		progress, err := svc.GetProgress(ctx, userID, c.ID)
		require.NoError(t, err)
		assert.Equal(t, challenge.StatusActive, progress.Status)
		assert.Equal(t, 1, progress.CurrentDay)
		assert.Nil(t, progress.CompletedAt)
		assert.Empty(t, progress.Rituals)
	}

	detail, err := svc.GetChallengeDetail(ctx, c.ID, &userID)
	require.NoError(t, err)
	require.NotNil(t, detail.UserProgress)
	assert.Equal(t, challenge.StatusActive, detail.UserProgress.Status)
	assert.Equal(t, 1, detail.UserProgress.CurrentDay)

	uc, err := repo.GetUserChallenge(ctx, userID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, challenge.StatusActive, uc.Status)
	assert.Equal(t, 1, uc.CurrentDay)
}

func TestCompleteRitual_FailedTransactionLeavesNoCompletion(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	fx := newTwoDayCatalog(t, repo)
	svc := newTestChallengeService(repo)
	userID := uuid.New()

	_, err := svc.StartChallenge(ctx, userID, fx.challenge.ID)
	require.NoError(t, err)
	_, err = svc.PauseChallenge(ctx, userID, fx.challenge.ID)
	require.NoError(t, err)

	_, err = svc.CompleteRitual(ctx, userID, fx.challenge.ID, fx.r1.ID)
	require.Error(t, err)

	uc, err := repo.GetUserChallenge(ctx, userID, fx.challenge.ID)
	require.NoError(t, err)
	completions, err := repo.ListCompletions(ctx, uc.ID)
	require.NoError(t, err)
	assert.Empty(t, completions)
}

func TestGetProgress(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	fx := newTwoDayCatalog(t, repo)
	svc := newTestChallengeService(repo)
	userID := uuid.New()

	_, err := svc.GetProgress(ctx, userID, fx.challenge.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = svc.StartChallenge(ctx, userID, fx.challenge.ID)
	require.NoError(t, err)
	_, err = svc.CompleteRitual(ctx, userID, fx.challenge.ID, fx.r2.ID)
	require.NoError(t, err)

	progress, err := svc.GetProgress(ctx, userID, fx.challenge.ID)
	require.NoError(t, err)
	assert.Equal(t, fx.challenge.ID, progress.Challenge.ID)
	assert.Len(t, progress.Rituals, 3)
	assert.Equal(t, []uuid.UUID{fx.r2.ID}, progress.CompletedRitualIDs)
	require.Len(t, progress.Completions, 1)
	assert.Equal(t, testNow, progress.Completions[0].CompletedAt)
}

func TestGetActiveChallenges(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	fx := newTwoDayCatalog(t, repo)
	second := addChallenge(t, repo, "second", 1, true)
	finished := addChallenge(t, repo, "finished", 1, true)
	finishedRitual := addRitual(t, repo, finished.ID, 1, 0)
	svc := newTestChallengeService(repo)
	userID := uuid.New()

	list, err := svc.GetActiveChallenges(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = svc.StartChallenge(ctx, userID, fx.challenge.ID)
	require.NoError(t, err)

	svc.SetClock(func() time.Time { return testNow.Add(time.Hour) })
	_, err = svc.StartChallenge(ctx, userID, second.ID)
	require.NoError(t, err)
	_, err = svc.PauseChallenge(ctx, userID, second.ID)
	require.NoError(t, err)

	_, err = svc.StartChallenge(ctx, userID, finished.ID)
	require.NoError(t, err)
	res, err := svc.CompleteRitual(ctx, userID, finished.ID, finishedRitual.ID)
	require.NoError(t, err)
	require.True(t, res.ChallengeCompleted)

	_, err = svc.CompleteRitual(ctx, userID, fx.challenge.ID, fx.r1.ID)
	require.NoError(t, err)

	list, err = svc.GetActiveChallenges(ctx, userID)
	require.NoError(t, err)
	require.Len(t, list, 2, "completed enrollments are excluded")

	assert.Equal(t, second.ID, list[0].ChallengeID, "newest first")
	assert.Equal(t, challenge.StatusPaused, list[0].Status)
	assert.Nil(t, list[0].TodayRitual, "no rituals scheduled")
	assert.Empty(t, list[0].TodayRituals)

	assert.Equal(t, fx.challenge.ID, list[1].ChallengeID)
	require.NotNil(t, list[1].TodayRitual)
	assert.Equal(t, fx.r1.ID, list[1].TodayRitual.ID)
	assert.Len(t, list[1].TodayRituals, 2)
	assert.Equal(t, []uuid.UUID{fx.r1.ID}, list[1].CompletedRitualIDs)
}
