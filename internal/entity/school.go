package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const SchoolRole = "school"

// School is a registering examination center. It signs in with its own credentials.
type School struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name         string    `gorm:"type:varchar(255);not null"`
	CenterNumber string    `gorm:"type:varchar(32);uniqueIndex;not null"`

	EmailCiphertext string  `gorm:"type:text;not null"`
	EmailHash       string  `gorm:"type:varchar(64);uniqueIndex;not null"`
	PhoneCiphertext *string `gorm:"type:text"`
	PhoneHash       *string `gorm:"type:varchar(64);uniqueIndex"`

	PasswordHash *string `gorm:"type:text"`

	EmailVerified   bool `gorm:"default:false;not null"`
	EmailVerifiedAt *time.Time
	IsActive        bool `gorm:"default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (s *School) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func (s School) Principal() Principal {
	id := s.ID
	return Principal{
		ID:              s.ID,
		Kind:            OwnerSchool,
		Name:            s.Name,
		Role:            SchoolRole,
		SchoolID:        &id,
		CenterNumber:    s.CenterNumber,
		EmailCiphertext: s.EmailCiphertext,
		EmailHash:       s.EmailHash,
		PasswordHash:    s.PasswordHash,
		EmailVerified:   s.EmailVerified,
		EmailVerifiedAt: s.EmailVerifiedAt,
		IsActive:        s.IsActive,
	}
}
