package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"wizardAPI/internal/logger"
	"wizardAPI/internal/types/challenge"
	"wizardAPI/repository"
)

var testNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type catalogFixture struct {
	challenge challenge.Challenge
	r1, r2    challenge.Ritual // day 1
	r3        challenge.Ritual // day 2
}

func text(s string) *string { return &s }

func addChallenge(t *testing.T, repo *repository.Memory, slug string, duration int, active bool) challenge.Challenge {
	t.Helper()
	c := challenge.Challenge{
		Slug:     slug,
		Title:    "Challenge " + slug,
		Duration: duration,
		Category: challenge.CategoryMindfulness,
		Goals:    []string{"breathe"},
		IsActive: active,
	}
	require.NoError(t, repo.UpsertChallenge(context.Background(), &c))
	return c
}

func addRitual(t *testing.T, repo *repository.Memory, challengeID uuid.UUID, day, order int) challenge.Ritual {
	t.Helper()
	r := challenge.Ritual{
		ChallengeID: challengeID,
		Key:         fmt.Sprintf("day%d-%d", day, order),
		DayNumber:   day,
		Title:       "Ritual",
		Type:        challenge.RitualText,
		Duration:    300,
		TextContent: text("Sit still."),
		IsActive:    true,
		SortOrder:   order,
	}
	require.NoError(t, repo.UpsertRitual(context.Background(), &r))
	return r
}

// newTwoDayCatalog builds a two day challenge with R1, R2 on day 1 and R3 on day 2.
func newTwoDayCatalog(t *testing.T, repo *repository.Memory) catalogFixture {
	t.Helper()
	c := addChallenge(t, repo, "two-days", 2, true)
	return catalogFixture{
		challenge: c,
		r1:        addRitual(t, repo, c.ID, 1, 0),
		r2:        addRitual(t, repo, c.ID, 1, 1),
		r3:        addRitual(t, repo, c.ID, 2, 0),
	}
}

func newTestChallengeService(repo repository.ChallengeRepository) *ChallengeService {
	svc := NewChallengeService(repo, logger.Nop())
	svc.SetClock(func() time.Time { return testNow })
	return svc
}
