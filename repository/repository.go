package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"wizardAPI/internal/types/challenge"
	"wizardAPI/internal/types/notification"
	"wizardAPI/internal/types/user"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// ChallengeRepository covers the catalog reads, enrollments and the completion
// ledger. Methods called on the repository handed to WithinTx run in the same
// transaction.
type ChallengeRepository interface {
	ListActiveChallenges(ctx context.Context) ([]challenge.Summary, error)
	GetChallenge(ctx context.Context, challengeID uuid.UUID) (*challenge.Challenge, error)
	GetActiveChallenge(ctx context.Context, challengeID uuid.UUID) (*challenge.Challenge, error)
	ListActiveRituals(ctx context.Context, challengeID uuid.UUID) ([]challenge.Ritual, error)
	ListActiveRitualsForDay(ctx context.Context, challengeID uuid.UUID, day int) ([]challenge.Ritual, error)
	GetActiveRitual(ctx context.Context, challengeID, ritualID uuid.UUID) (*challenge.Ritual, error)
	CountActiveRitualsForDay(ctx context.Context, challengeID uuid.UUID, day int) (int, error)

	GetUserChallenge(ctx context.Context, userID, challengeID uuid.UUID) (*challenge.UserChallenge, error)
	// LockUserChallenge reads the enrollment and holds a row lock until the
	// surrounding transaction ends.
	LockUserChallenge(ctx context.Context, userID, challengeID uuid.UUID) (*challenge.UserChallenge, error)
	ListUserChallenges(ctx context.Context, userID uuid.UUID, statuses []challenge.Status) ([]challenge.UserChallenge, error)
	CreateUserChallenge(ctx context.Context, uc *challenge.UserChallenge) error
	UpdateUserChallenge(ctx context.Context, uc *challenge.UserChallenge) error

	ListCompletions(ctx context.Context, userChallengeID uuid.UUID) ([]challenge.RitualCompletion, error)
	InsertCompletion(ctx context.Context, c *challenge.RitualCompletion) error
	CountCompletionsForDay(ctx context.Context, userChallengeID uuid.UUID, day int) (int, error)

	WithinTx(ctx context.Context, fn func(repo ChallengeRepository) error) error
}

// CatalogRepository writes curated catalog data. Rituals are never hard
// deleted so completion history survives catalog edits.
type CatalogRepository interface {
	UpsertChallenge(ctx context.Context, c *challenge.Challenge) error
	UpsertRitual(ctx context.Context, r *challenge.Ritual) error
	DeactivateRitualsExcept(ctx context.Context, challengeID uuid.UUID, keep []uuid.UUID) (int64, error)
	DeactivateChallengesExcept(ctx context.Context, keepSlugs []string) (int64, error)

	WithinCatalogTx(ctx context.Context, fn func(repo CatalogRepository) error) error
}

type UserRepository interface {
	GetByAuthSubject(ctx context.Context, subject string) (*user.User, error)
	Upsert(ctx context.Context, req *user.UpsertUserRequest) (*user.User, error)
	DeleteByAuthSubject(ctx context.Context, subject string) error
}

type DeviceRepository interface {
	RegisterDevice(ctx context.Context, userID uuid.UUID, req *notification.RegisterDeviceRequest) (*notification.DeviceToken, error)
	ListDevices(ctx context.Context, userID uuid.UUID) ([]notification.DeviceToken, error)
	DeleteDevice(ctx context.Context, token string) error
}

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

type rowScanner interface {
	Scan(dest ...any) error
}

// withTx runs fn inside a transaction (a savepoint when db is already a tx).
func withTx(ctx context.Context, db DBTX, fn func(tx pgx.Tx) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
