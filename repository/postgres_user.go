package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"wizardAPI/internal/types/user"
)

type PostgresUserRepository struct {
	db DBTX
}

func NewPostgresUserRepository(db DBTX) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

const userColumns = `
	id, auth_subject, email, email_verified, username, first_name, last_name,
	image_url, created_at, updated_at`

func scanUser(row rowScanner, u *user.User) error {
	return row.Scan(
		&u.ID, &u.AuthSubject, &u.Email, &u.EmailVerified, &u.Username, &u.FirstName,
		&u.LastName, &u.ImageURL, &u.CreatedAt, &u.UpdatedAt,
	)
}

func (r *PostgresUserRepository) GetByAuthSubject(ctx context.Context, subject string) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE auth_subject = $1`

	var u user.User
	if err := scanUser(r.db.QueryRow(ctx, query, subject), &u); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

func (r *PostgresUserRepository) Upsert(ctx context.Context, req *user.UpsertUserRequest) (*user.User, error) {
	query := `
	INSERT INTO users (id, auth_subject, email, email_verified, username, first_name, last_name, image_url)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (auth_subject) DO UPDATE SET
		email = EXCLUDED.email,
		email_verified = EXCLUDED.email_verified,
		username = EXCLUDED.username,
		first_name = EXCLUDED.first_name,
		last_name = EXCLUDED.last_name,
		image_url = EXCLUDED.image_url,
		updated_at = NOW()
	RETURNING ` + userColumns

	var u user.User
	err := scanUser(r.db.QueryRow(ctx, query,
		uuid.New(),
		req.AuthSubject,
		req.Email,
		req.EmailVerified,
		req.Username,
		req.FirstName,
		req.LastName,
		req.ImageURL,
	), &u)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	return &u, nil
}

// DeleteByAuthSubject removes the user; enrollments, completions and devices
// go with it through ON DELETE CASCADE.
func (r *PostgresUserRepository) DeleteByAuthSubject(ctx context.Context, subject string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE auth_subject = $1`, subject)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
