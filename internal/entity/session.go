package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RefreshSession tracks an issued refresh token by digest so it can be rotated or revoked.
type RefreshSession struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	OwnerID   uuid.UUID `gorm:"type:uuid;not null;index"`
	OwnerKind OwnerKind `gorm:"type:varchar(16);not null"`

	TokenHash string `gorm:"type:text;not null;index"`

	IPAddress *string `gorm:"type:varchar(45)"`
	UserAgent *string `gorm:"type:text"`

	ExpiresAt time.Time
	RevokedAt *time.Time

	CreatedAt time.Time
}

func (s *RefreshSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
