package services

import (
	"time"

	"wizardAPI/internal/types/challenge"
)

// dayComplete reports whether the ledger covers every active ritual of a day.
// A day with no active rituals is trivially complete.
func dayComplete(completed, total int) bool {
	return completed >= total
}

// advanceEnrollment moves uc past its current day. When the next day would
// exceed duration the enrollment is completed and the cursor stays on the
// last day. It reports whether the cursor moved forward.
func advanceEnrollment(uc *challenge.UserChallenge, duration int, now time.Time) bool {
	prev := uc.CurrentDay
	next := prev + 1

	if next > duration {
		uc.CurrentDay = max(min(prev, duration), 1)
		uc.Status = challenge.StatusCompleted
		uc.CompletedAt = &now
	} else {
		uc.CurrentDay = next
	}
	uc.UpdatedAt = now

	return uc.CurrentDay > prev
}
