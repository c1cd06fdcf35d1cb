package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"wizardAPI/internal/types/notification"
)

type PostgresDeviceRepository struct {
	db DBTX
}

func NewPostgresDeviceRepository(db DBTX) *PostgresDeviceRepository {
	return &PostgresDeviceRepository{db: db}
}

// RegisterDevice is idempotent on the token; a token that moved to another
// account is reassigned.
func (r *PostgresDeviceRepository) RegisterDevice(ctx context.Context, userID uuid.UUID, req *notification.RegisterDeviceRequest) (*notification.DeviceToken, error) {
	query := `
	INSERT INTO device_tokens (id, user_id, token, platform)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (token) DO UPDATE SET
		user_id = EXCLUDED.user_id,
		platform = EXCLUDED.platform,
		last_seen_at = NOW()
	RETURNING id, user_id, token, platform, created_at, last_seen_at
	`

	var d notification.DeviceToken
	err := r.db.QueryRow(ctx, query, uuid.New(), userID, req.Token, req.Platform).Scan(
		&d.ID, &d.UserID, &d.Token, &d.Platform, &d.CreatedAt, &d.LastSeenAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register device: %w", err)
	}
	return &d, nil
}

func (r *PostgresDeviceRepository) ListDevices(ctx context.Context, userID uuid.UUID) ([]notification.DeviceToken, error) {
	query := `
	SELECT id, user_id, token, platform, created_at, last_seen_at
	FROM device_tokens
	WHERE user_id = $1
	ORDER BY last_seen_at DESC
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	defer rows.Close()

	var devices []notification.DeviceToken
	for rows.Next() {
		var d notification.DeviceToken
		if err := rows.Scan(&d.ID, &d.UserID, &d.Token, &d.Platform, &d.CreatedAt, &d.LastSeenAt); err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

func (r *PostgresDeviceRepository) DeleteDevice(ctx context.Context, token string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM device_tokens WHERE token = $1`, token); err != nil {
		return fmt.Errorf("failed to delete device: %w", err)
	}
	return nil
}
