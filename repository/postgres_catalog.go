package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"wizardAPI/internal/types/challenge"
)

type PostgresCatalogRepository struct {
	db DBTX
}

func NewPostgresCatalogRepository(db DBTX) *PostgresCatalogRepository {
	return &PostgresCatalogRepository{db: db}
}

// UpsertChallenge inserts or updates by slug and fills c.ID and c.CreatedAt.
func (r *PostgresCatalogRepository) UpsertChallenge(ctx context.Context, c *challenge.Challenge) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}

	query := `
	INSERT INTO challenges (
		id, slug, title, subtitle, description, duration, category,
		goals, icon, color_theme, is_active, sort_order
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (slug) DO UPDATE SET
		title = EXCLUDED.title,
		subtitle = EXCLUDED.subtitle,
		description = EXCLUDED.description,
		duration = EXCLUDED.duration,
		category = EXCLUDED.category,
		goals = EXCLUDED.goals,
		icon = EXCLUDED.icon,
		color_theme = EXCLUDED.color_theme,
		is_active = EXCLUDED.is_active,
		sort_order = EXCLUDED.sort_order,
		updated_at = NOW()
	RETURNING id, created_at
	`

	err := r.db.QueryRow(ctx, query,
		c.ID,
		c.Slug,
		c.Title,
		c.Subtitle,
		c.Description,
		c.Duration,
		c.Category,
		c.Goals,
		c.Icon,
		c.ColorTheme,
		c.IsActive,
		c.SortOrder,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert challenge %q: %w", c.Slug, err)
	}
	return nil
}

// UpsertRitual keys rituals on (challenge_id, catalog_key). A ritual keeps its
// id, and so its completions, only while its key stays the same.
func (r *PostgresCatalogRepository) UpsertRitual(ctx context.Context, ritual *challenge.Ritual) error {
	if ritual.Key == "" {
		return fmt.Errorf("ritual %q has no catalog key", ritual.Title)
	}
	if ritual.ID == uuid.Nil {
		ritual.ID = uuid.New()
	}

	query := `
	INSERT INTO rituals (
		id, challenge_id, catalog_key, day_number, title, description, type, duration_seconds,
		text_content, audio_url, meditation_track_id, is_active, sort_order
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	ON CONFLICT (challenge_id, catalog_key) DO UPDATE SET
		day_number = EXCLUDED.day_number,
		sort_order = EXCLUDED.sort_order,
		title = EXCLUDED.title,
		description = EXCLUDED.description,
		type = EXCLUDED.type,
		duration_seconds = EXCLUDED.duration_seconds,
		text_content = EXCLUDED.text_content,
		audio_url = EXCLUDED.audio_url,
		meditation_track_id = EXCLUDED.meditation_track_id,
		is_active = EXCLUDED.is_active
	RETURNING id, created_at
	`

	err := r.db.QueryRow(ctx, query,
		ritual.ID,
		ritual.ChallengeID,
		ritual.Key,
		ritual.DayNumber,
		ritual.Title,
		ritual.Description,
		ritual.Type,
		ritual.Duration,
		ritual.TextContent,
		ritual.AudioURL,
		ritual.MeditationTrackID,
		ritual.IsActive,
		ritual.SortOrder,
	).Scan(&ritual.ID, &ritual.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert ritual %q: %w", ritual.Key, err)
	}
	return nil
}

func (r *PostgresCatalogRepository) DeactivateRitualsExcept(ctx context.Context, challengeID uuid.UUID, keep []uuid.UUID) (int64, error) {
	query := `
	UPDATE rituals
	SET is_active = FALSE
	WHERE challenge_id = $1 AND is_active AND NOT (id = ANY($2))
	`

	if keep == nil {
		keep = []uuid.UUID{}
	}

	tag, err := r.db.Exec(ctx, query, challengeID, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate rituals: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresCatalogRepository) DeactivateChallengesExcept(ctx context.Context, keepSlugs []string) (int64, error) {
	query := `
	UPDATE challenges
	SET is_active = FALSE, updated_at = NOW()
	WHERE is_active AND NOT (slug = ANY($1))
	`

	if keepSlugs == nil {
		keepSlugs = []string{}
	}

	tag, err := r.db.Exec(ctx, query, keepSlugs)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate challenges: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresCatalogRepository) WithinCatalogTx(ctx context.Context, fn func(repo CatalogRepository) error) error {
	return withTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(&PostgresCatalogRepository{db: tx})
	})
}
