package challenge

import (
	"time"

	"github.com/google/uuid"
)

type Category string
type RitualType string
type Status string

const (
	CategoryConfidence     Category = "CONFIDENCE"
	CategoryHealing        Category = "HEALING"
	CategoryMorningRoutine Category = "MORNING_ROUTINE"
	CategoryMindfulness    Category = "MINDFULNESS"
	CategoryManifestation  Category = "MANIFESTATION"
	CategorySelfLove       Category = "SELF_LOVE"

	RitualText       RitualType = "TEXT"       // TextContent is populated
	RitualAudio      RitualType = "AUDIO"      // AudioURL is populated
	RitualMeditation RitualType = "MEDITATION" // MeditationTrackID is populated

	StatusActive    Status = "ACTIVE"
	StatusPaused    Status = "PAUSED"
	StatusCompleted Status = "COMPLETED"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryConfidence, CategoryHealing, CategoryMorningRoutine,
		CategoryMindfulness, CategoryManifestation, CategorySelfLove:
		return true
	}
	return false
}

func (t RitualType) Valid() bool {
	switch t {
	case RitualText, RitualAudio, RitualMeditation:
		return true
	}
	return false
}

type Challenge struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Slug        string    `json:"slug" db:"slug"`
	Title       string    `json:"title" db:"title"`
	Subtitle    string    `json:"subtitle" db:"subtitle"`
	Description string    `json:"description" db:"description"`
	Duration    int       `json:"duration" db:"duration"` // days
	Category    Category  `json:"category" db:"category"`
	Goals       []string  `json:"goals" db:"goals"`
	Icon        string    `json:"icon" db:"icon"`
	ColorTheme  string    `json:"colorTheme" db:"color_theme"`
	IsActive    bool      `json:"isActive" db:"is_active"`
	SortOrder   int       `json:"sortOrder" db:"sort_order"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

type Ritual struct {
	ID                uuid.UUID  `json:"id" db:"id"`
	ChallengeID       uuid.UUID  `json:"challengeId" db:"challenge_id"`
	Key               string     `json:"key" db:"catalog_key"` // stable per challenge across catalog edits
	DayNumber         int        `json:"dayNumber" db:"day_number"`
	Title             string     `json:"title" db:"title"`
	Description       string     `json:"description" db:"description"`
	Type              RitualType `json:"type" db:"type"`
	Duration          int        `json:"duration" db:"duration_seconds"` // seconds
	TextContent       *string    `json:"textContent,omitempty" db:"text_content"`
	AudioURL          *string    `json:"audioUrl,omitempty" db:"audio_url"`
	MeditationTrackID *uuid.UUID `json:"meditationTrackId,omitempty" db:"meditation_track_id"`
	IsActive          bool       `json:"isActive" db:"is_active"`
	SortOrder         int        `json:"sortOrder" db:"sort_order"`
	CreatedAt         time.Time  `json:"createdAt" db:"created_at"`
}

// UserChallenge is a user's enrollment in a challenge. At most one exists per
// (UserID, ChallengeID); absence means "not started".
type UserChallenge struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	UserID      uuid.UUID  `json:"userId" db:"user_id"`
	ChallengeID uuid.UUID  `json:"challengeId" db:"challenge_id"`
	Status      Status     `json:"status" db:"status"`
	CurrentDay  int        `json:"currentDay" db:"current_day"`
	StartedAt   time.Time  `json:"startedAt" db:"started_at"`
	PausedAt    *time.Time `json:"pausedAt" db:"paused_at"`
	CompletedAt *time.Time `json:"completedAt" db:"completed_at"`
	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time  `json:"updatedAt" db:"updated_at"`
}

// RitualCompletion is an append-only ledger row, unique per (UserChallengeID, RitualID).
type RitualCompletion struct {
	ID              uuid.UUID `json:"id" db:"id"`
	UserID          uuid.UUID `json:"userId" db:"user_id"`
	UserChallengeID uuid.UUID `json:"userChallengeId" db:"user_challenge_id"`
	RitualID        uuid.UUID `json:"ritualId" db:"ritual_id"`
	CompletedAt     time.Time `json:"completedAt" db:"completed_at"`
}
