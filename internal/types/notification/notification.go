package notification

import (
	"time"

	"github.com/google/uuid"
)

type Platform string

const (
	PlatformAndroid Platform = "android"
	PlatformIOS     Platform = "ios"
)

type DeviceToken struct {
	ID         uuid.UUID `json:"id" db:"id"`
	UserID     uuid.UUID `json:"userId" db:"user_id"`
	Token      string    `json:"token" db:"token"`
	Platform   Platform  `json:"platform" db:"platform"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
	LastSeenAt time.Time `json:"lastSeenAt" db:"last_seen_at"`
}

type RegisterDeviceRequest struct {
	Token    string   `json:"token" validate:"required,max=4096"`
	Platform Platform `json:"platform" validate:"required,oneof=android ios"`
}

// Push is a single message fanned out to every device of UserID.
type Push struct {
	UserID uuid.UUID
	Title  string
	Body   string
	Data   map[string]any
}
