// Package seed loads the curated challenge catalog from YAML into the database.
package seed

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"wizardAPI/internal/types/challenge"
	"wizardAPI/repository"
)

//go:embed challenges.yaml
var defaultCatalog []byte

type Catalog struct {
	Challenges []ChallengeDef `yaml:"challenges" validate:"required,min=1,dive"`
}

type ChallengeDef struct {
	Slug        string      `yaml:"slug" validate:"required,max=100"`
	Title       string      `yaml:"title" validate:"required"`
	Subtitle    string      `yaml:"subtitle"`
	Description string      `yaml:"description"`
	Duration    int         `yaml:"duration" validate:"required,gt=0"`
	Category    string      `yaml:"category" validate:"required,oneof=CONFIDENCE HEALING MORNING_ROUTINE MINDFULNESS MANIFESTATION SELF_LOVE"`
	Goals       []string    `yaml:"goals"`
	Icon        string      `yaml:"icon"`
	ColorTheme  string      `yaml:"colorTheme"`
	SortOrder   int         `yaml:"sortOrder"`
	Rituals     []RitualDef `yaml:"rituals" validate:"dive"`
}

// RitualDef is one ritual of a challenge. Key identifies the ritual across
// re-seeds; when empty it is derived from the day and title, so retitling a
// ritual retires the old one together with its completions.
type RitualDef struct {
	Key               string `yaml:"key" validate:"omitempty,max=100"`
	Day               int    `yaml:"day" validate:"required,gt=0"`
	SortOrder         *int   `yaml:"sortOrder" validate:"omitempty,gte=0"`
	Title             string `yaml:"title" validate:"required"`
	Description       string `yaml:"description"`
	Type              string `yaml:"type" validate:"required,oneof=TEXT AUDIO MEDITATION"`
	DurationSeconds   int    `yaml:"durationSeconds" validate:"gte=0"`
	TextContent       string `yaml:"textContent"`
	AudioURL          string `yaml:"audioUrl" validate:"omitempty,url"`
	MeditationTrackID string `yaml:"meditationTrackId" validate:"omitempty,uuid"`
}

// Report summarizes what Apply changed.
type Report struct {
	Challenges            int
	Rituals               int
	RitualsDeactivated    int64
	ChallengesDeactivated int64
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks field rules plus the cross-field ones tags can't express:
// unique slugs, rituals within the challenge duration, a unique order per day
// and a payload matching the ritual type.
func (c *Catalog) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid catalog: %w", err)
	}

	var errs []error
	slugs := make(map[string]bool, len(c.Challenges))
	for _, ch := range c.Challenges {
		if slugs[ch.Slug] {
			errs = append(errs, fmt.Errorf("%s: duplicate slug", ch.Slug))
		}
		slugs[ch.Slug] = true

		type slot struct{ day, order int }
		taken := map[slot]bool{}
		keys := map[string]bool{}
		for i, r := range ch.rituals() {
			where := fmt.Sprintf("%s ritual %d", ch.Slug, i+1)
			if keys[r.Key] {
				errs = append(errs, fmt.Errorf("%s: key %q used twice", where, r.Key))
			}
			keys[r.Key] = true
			if r.DayNumber > ch.Duration {
				errs = append(errs, fmt.Errorf("%s: day %d exceeds duration %d", where, r.DayNumber, ch.Duration))
			}
			s := slot{r.DayNumber, r.SortOrder}
			if taken[s] {
				errs = append(errs, fmt.Errorf("%s: sortOrder %d used twice on day %d", where, r.SortOrder, r.DayNumber))
			}
			taken[s] = true
			if err := checkPayload(r); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", where, err))
			}
		}
	}

	return errors.Join(errs...)
}

func checkPayload(r challenge.Ritual) error {
	switch r.Type {
	case challenge.RitualText:
		if r.TextContent == nil {
			return errors.New("TEXT ritual needs textContent")
		}
	case challenge.RitualAudio:
		if r.AudioURL == nil {
			return errors.New("AUDIO ritual needs audioUrl")
		}
	case challenge.RitualMeditation:
		if r.MeditationTrackID == nil {
			return errors.New("MEDITATION ritual needs meditationTrackId")
		}
	}
	return nil
}

func (d ChallengeDef) challenge() challenge.Challenge {
	goals := d.Goals
	if goals == nil {
		goals = []string{}
	}
	return challenge.Challenge{
		Slug:        d.Slug,
		Title:       d.Title,
		Subtitle:    d.Subtitle,
		Description: d.Description,
		Duration:    d.Duration,
		Category:    challenge.Category(d.Category),
		Goals:       goals,
		Icon:        d.Icon,
		ColorTheme:  d.ColorTheme,
		IsActive:    true,
		SortOrder:   d.SortOrder,
	}
}

// rituals converts the definitions. Without an explicit sortOrder a ritual
// is ordered by its position among the rituals of the same day.
func (d ChallengeDef) rituals() []challenge.Ritual {
	perDay := map[int]int{}
	out := make([]challenge.Ritual, 0, len(d.Rituals))
	for _, def := range d.Rituals {
		order := perDay[def.Day]
		if def.SortOrder != nil {
			order = *def.SortOrder
		}
		perDay[def.Day]++

		r := challenge.Ritual{
			Key:         def.key(),
			DayNumber:   def.Day,
			Title:       def.Title,
			Description: def.Description,
			Type:        challenge.RitualType(def.Type),
			Duration:    def.DurationSeconds,
			IsActive:    true,
			SortOrder:   order,
		}
		if def.TextContent != "" {
			r.TextContent = &def.TextContent
		}
		if def.AudioURL != "" {
			r.AudioURL = &def.AudioURL
		}
		if def.MeditationTrackID != "" {
			if id, err := uuid.Parse(def.MeditationTrackID); err == nil {
				r.MeditationTrackID = &id
			}
		}
		out = append(out, r)
	}
	return out
}

func (d RitualDef) key() string {
	if d.Key != "" {
		return d.Key
	}
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(d.Title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return fmt.Sprintf("day%d-%s", d.Day, strings.TrimSuffix(b.String(), "-"))
}

// Apply upserts every challenge by slug and its rituals by key
// in one transaction. Rituals missing from the catalog are deactivated, never
// deleted, so completion history stays intact. With prune, challenges
// missing from the catalog are deactivated too.
func Apply(ctx context.Context, repo repository.CatalogRepository, c *Catalog, prune bool) (*Report, error) {
	report := &Report{}

	err := repo.WithinCatalogTx(ctx, func(tx repository.CatalogRepository) error {
		*report = Report{}
		slugs := make([]string, 0, len(c.Challenges))

		for _, def := range c.Challenges {
			ch := def.challenge()
			if err := tx.UpsertChallenge(ctx, &ch); err != nil {
				return fmt.Errorf("upsert challenge %s: %w", def.Slug, err)
			}
			slugs = append(slugs, ch.Slug)
			report.Challenges++

			keep := make([]uuid.UUID, 0, len(def.Rituals))
			for _, r := range def.rituals() {
				r.ChallengeID = ch.ID
				if err := tx.UpsertRitual(ctx, &r); err != nil {
					return fmt.Errorf("upsert ritual %s day %d: %w", def.Slug, r.DayNumber, err)
				}
				keep = append(keep, r.ID)
				report.Rituals++
			}

			n, err := tx.DeactivateRitualsExcept(ctx, ch.ID, keep)
			if err != nil {
				return fmt.Errorf("deactivate rituals of %s: %w", def.Slug, err)
			}
			report.RitualsDeactivated += n
		}

		if prune {
			n, err := tx.DeactivateChallengesExcept(ctx, slugs)
			if err != nil {
				return fmt.Errorf("deactivate challenges: %w", err)
			}
			report.ChallengesDeactivated = n
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return report, nil
}
