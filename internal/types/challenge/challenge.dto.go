package challenge

import "github.com/google/uuid"

type Summary struct {
	Challenge
	RitualCount int `json:"ritualCount"`
}

type UserProgress struct {
	UserChallenge
	Completions []RitualCompletion `json:"completions"`
}

type Detail struct {
	Challenge    Challenge     `json:"challenge"`
	Rituals      []Ritual      `json:"rituals"`
	UserProgress *UserProgress `json:"userProgress"`
}

type ActiveChallenge struct {
	UserChallenge
	Challenge          Challenge   `json:"challenge"`
	TodayRitual        *Ritual     `json:"todayRitual"`
	TodayRituals       []Ritual    `json:"todayRituals"`
	CompletedRitualIDs []uuid.UUID `json:"completedRitualIds"`
}

type Enrollment struct {
	UserChallenge
	Challenge Challenge `json:"challenge"`
}

type Progress struct {
	UserChallenge
	Challenge          Challenge          `json:"challenge"`
	Rituals            []Ritual           `json:"rituals"`
	Completions        []RitualCompletion `json:"completions"`
	CompletedRitualIDs []uuid.UUID        `json:"completedRitualIds"`
}

type CompleteRitualResult struct {
	Completed          bool `json:"completed"`
	CurrentDay         int  `json:"currentDay"`
	DayAdvanced        bool `json:"dayAdvanced"`
	ChallengeCompleted bool `json:"challengeCompleted"`
}
