package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"wizardAPI/internal/types/challenge"
)

type PostgresChallengeRepository struct {
	db DBTX
}

func NewPostgresChallengeRepository(db DBTX) *PostgresChallengeRepository {
	return &PostgresChallengeRepository{db: db}
}

const challengeColumns = `
	c.id, c.slug, c.title, c.subtitle, c.description, c.duration, c.category,
	c.goals, c.icon, c.color_theme, c.is_active, c.sort_order, c.created_at`

const ritualColumns = `
	r.id, r.challenge_id, r.catalog_key, r.day_number, r.title, r.description, r.type,
	r.duration_seconds, r.text_content, r.audio_url, r.meditation_track_id,
	r.is_active, r.sort_order, r.created_at`

const userChallengeColumns = `
	uc.id, uc.user_id, uc.challenge_id, uc.status, uc.current_day,
	uc.started_at, uc.paused_at, uc.completed_at, uc.created_at, uc.updated_at`

func scanChallenge(row rowScanner, c *challenge.Challenge, extra ...any) error {
	dest := []any{
		&c.ID, &c.Slug, &c.Title, &c.Subtitle, &c.Description, &c.Duration, &c.Category,
		&c.Goals, &c.Icon, &c.ColorTheme, &c.IsActive, &c.SortOrder, &c.CreatedAt,
	}
	return row.Scan(append(dest, extra...)...)
}

func scanRitual(row rowScanner, r *challenge.Ritual) error {
	return row.Scan(
		&r.ID, &r.ChallengeID, &r.Key, &r.DayNumber, &r.Title, &r.Description, &r.Type,
		&r.Duration, &r.TextContent, &r.AudioURL, &r.MeditationTrackID,
		&r.IsActive, &r.SortOrder, &r.CreatedAt,
	)
}

func scanUserChallenge(row rowScanner, uc *challenge.UserChallenge) error {
	return row.Scan(
		&uc.ID, &uc.UserID, &uc.ChallengeID, &uc.Status, &uc.CurrentDay,
		&uc.StartedAt, &uc.PausedAt, &uc.CompletedAt, &uc.CreatedAt, &uc.UpdatedAt,
	)
}

func (r *PostgresChallengeRepository) ListActiveChallenges(ctx context.Context) ([]challenge.Summary, error) {
	query := `
	SELECT ` + challengeColumns + `,
		(SELECT COUNT(*) FROM rituals r WHERE r.challenge_id = c.id AND r.is_active) AS ritual_count
	FROM challenges c
	WHERE c.is_active
	ORDER BY c.sort_order ASC, c.created_at ASC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list challenges: %w", err)
	}
	defer rows.Close()

	summaries := []challenge.Summary{}
	for rows.Next() {
		var s challenge.Summary
		if err := scanChallenge(rows, &s.Challenge, &s.RitualCount); err != nil {
			return nil, fmt.Errorf("failed to scan challenge: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return summaries, nil
}

func (r *PostgresChallengeRepository) getChallenge(ctx context.Context, challengeID uuid.UUID, activeOnly bool) (*challenge.Challenge, error) {
	query := `SELECT ` + challengeColumns + ` FROM challenges c WHERE c.id = $1`
	if activeOnly {
		query += ` AND c.is_active`
	}

	var c challenge.Challenge
	if err := scanChallenge(r.db.QueryRow(ctx, query, challengeID), &c); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get challenge: %w", err)
	}
	return &c, nil
}

func (r *PostgresChallengeRepository) GetChallenge(ctx context.Context, challengeID uuid.UUID) (*challenge.Challenge, error) {
	return r.getChallenge(ctx, challengeID, false)
}

func (r *PostgresChallengeRepository) GetActiveChallenge(ctx context.Context, challengeID uuid.UUID) (*challenge.Challenge, error) {
	return r.getChallenge(ctx, challengeID, true)
}

func (r *PostgresChallengeRepository) queryRituals(ctx context.Context, query string, args ...any) ([]challenge.Ritual, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list rituals: %w", err)
	}
	defer rows.Close()

	rituals := []challenge.Ritual{}
	for rows.Next() {
		var ritual challenge.Ritual
		if err := scanRitual(rows, &ritual); err != nil {
			return nil, fmt.Errorf("failed to scan ritual: %w", err)
		}
		rituals = append(rituals, ritual)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rituals, nil
}

func (r *PostgresChallengeRepository) ListActiveRituals(ctx context.Context, challengeID uuid.UUID) ([]challenge.Ritual, error) {
	query := `
	SELECT ` + ritualColumns + `
	FROM rituals r
	WHERE r.challenge_id = $1 AND r.is_active
	ORDER BY r.day_number ASC, r.sort_order ASC, r.created_at ASC
	`
	return r.queryRituals(ctx, query, challengeID)
}

func (r *PostgresChallengeRepository) ListActiveRitualsForDay(ctx context.Context, challengeID uuid.UUID, day int) ([]challenge.Ritual, error) {
	query := `
	SELECT ` + ritualColumns + `
	FROM rituals r
	WHERE r.challenge_id = $1 AND r.day_number = $2 AND r.is_active
	ORDER BY r.sort_order ASC, r.created_at ASC
	`
	return r.queryRituals(ctx, query, challengeID, day)
}

func (r *PostgresChallengeRepository) GetActiveRitual(ctx context.Context, challengeID, ritualID uuid.UUID) (*challenge.Ritual, error) {
	query := `
	SELECT ` + ritualColumns + `
	FROM rituals r
	WHERE r.id = $1 AND r.challenge_id = $2 AND r.is_active
	`

	var ritual challenge.Ritual
	if err := scanRitual(r.db.QueryRow(ctx, query, ritualID, challengeID), &ritual); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get ritual: %w", err)
	}
	return &ritual, nil
}

func (r *PostgresChallengeRepository) CountActiveRitualsForDay(ctx context.Context, challengeID uuid.UUID, day int) (int, error) {
	query := `
	SELECT COUNT(*)
	FROM rituals
	WHERE challenge_id = $1 AND day_number = $2 AND is_active
	`

	var total int
	if err := r.db.QueryRow(ctx, query, challengeID, day).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count rituals for day %d: %w", day, err)
	}
	return total, nil
}

func (r *PostgresChallengeRepository) getUserChallenge(ctx context.Context, userID, challengeID uuid.UUID, lock bool) (*challenge.UserChallenge, error) {
	query := `
	SELECT ` + userChallengeColumns + `
	FROM user_challenges uc
	WHERE uc.user_id = $1 AND uc.challenge_id = $2
	`
	if lock {
		query += ` FOR UPDATE`
	}

	var uc challenge.UserChallenge
	if err := scanUserChallenge(r.db.QueryRow(ctx, query, userID, challengeID), &uc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user challenge: %w", err)
	}
	return &uc, nil
}

func (r *PostgresChallengeRepository) GetUserChallenge(ctx context.Context, userID, challengeID uuid.UUID) (*challenge.UserChallenge, error) {
	return r.getUserChallenge(ctx, userID, challengeID, false)
}

func (r *PostgresChallengeRepository) LockUserChallenge(ctx context.Context, userID, challengeID uuid.UUID) (*challenge.UserChallenge, error) {
	return r.getUserChallenge(ctx, userID, challengeID, true)
}

func (r *PostgresChallengeRepository) ListUserChallenges(ctx context.Context, userID uuid.UUID, statuses []challenge.Status) ([]challenge.UserChallenge, error) {
	statusNames := make([]string, len(statuses))
	for i, s := range statuses {
		statusNames[i] = string(s)
	}

	query := `
	SELECT ` + userChallengeColumns + `
	FROM user_challenges uc
	WHERE uc.user_id = $1 AND uc.status = ANY($2)
	ORDER BY uc.started_at DESC
	`

	rows, err := r.db.Query(ctx, query, userID, statusNames)
	if err != nil {
		return nil, fmt.Errorf("failed to list user challenges: %w", err)
	}
	defer rows.Close()

	list := []challenge.UserChallenge{}
	for rows.Next() {
		var uc challenge.UserChallenge
		if err := scanUserChallenge(rows, &uc); err != nil {
			return nil, fmt.Errorf("failed to scan user challenge: %w", err)
		}
		list = append(list, uc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (r *PostgresChallengeRepository) CreateUserChallenge(ctx context.Context, uc *challenge.UserChallenge) error {
	query := `
	INSERT INTO user_challenges (
		id, user_id, challenge_id, status, current_day,
		started_at, paused_at, completed_at, created_at, updated_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.Exec(ctx, query,
		uc.ID,
		uc.UserID,
		uc.ChallengeID,
		uc.Status,
		uc.CurrentDay,
		uc.StartedAt,
		uc.PausedAt,
		uc.CompletedAt,
		uc.CreatedAt,
		uc.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create user challenge: %w", err)
	}
	return nil
}

func (r *PostgresChallengeRepository) UpdateUserChallenge(ctx context.Context, uc *challenge.UserChallenge) error {
	query := `
	UPDATE user_challenges
	SET status = $1, current_day = $2, paused_at = $3, completed_at = $4, updated_at = $5
	WHERE id = $6
	`

	tag, err := r.db.Exec(ctx, query,
		uc.Status,
		uc.CurrentDay,
		uc.PausedAt,
		uc.CompletedAt,
		uc.UpdatedAt,
		uc.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user challenge: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresChallengeRepository) ListCompletions(ctx context.Context, userChallengeID uuid.UUID) ([]challenge.RitualCompletion, error) {
	query := `
	SELECT id, user_id, user_challenge_id, ritual_id, completed_at
	FROM user_ritual_completions
	WHERE user_challenge_id = $1
	ORDER BY completed_at ASC
	`

	rows, err := r.db.Query(ctx, query, userChallengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list completions: %w", err)
	}
	defer rows.Close()

	completions := []challenge.RitualCompletion{}
	for rows.Next() {
		var c challenge.RitualCompletion
		if err := rows.Scan(&c.ID, &c.UserID, &c.UserChallengeID, &c.RitualID, &c.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan completion: %w", err)
		}
		completions = append(completions, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return completions, nil
}

func (r *PostgresChallengeRepository) InsertCompletion(ctx context.Context, c *challenge.RitualCompletion) error {
	query := `
	INSERT INTO user_ritual_completions (id, user_id, user_challenge_id, ritual_id, completed_at)
	VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.Exec(ctx, query, c.ID, c.UserID, c.UserChallengeID, c.RitualID, c.CompletedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert completion: %w", err)
	}
	return nil
}

func (r *PostgresChallengeRepository) CountCompletionsForDay(ctx context.Context, userChallengeID uuid.UUID, day int) (int, error) {
	query := `
	SELECT COUNT(*)
	FROM user_ritual_completions urc
	JOIN rituals r ON r.id = urc.ritual_id
	WHERE urc.user_challenge_id = $1 AND r.day_number = $2
	`

	var completed int
	if err := r.db.QueryRow(ctx, query, userChallengeID, day).Scan(&completed); err != nil {
		return 0, fmt.Errorf("failed to count completions for day %d: %w", day, err)
	}
	return completed, nil
}

func (r *PostgresChallengeRepository) WithinTx(ctx context.Context, fn func(repo ChallengeRepository) error) error {
	return withTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(&PostgresChallengeRepository{db: tx})
	})
}
