package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AdminRole string

const (
	AdminRoleSuperAdmin AdminRole = "super_admin"
	AdminRoleAdmin      AdminRole = "admin"
)

type AdminUser struct {
	ID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name string    `gorm:"type:varchar(255)"`

	EmailCiphertext string  `gorm:"type:text;not null"`
	EmailHash       string  `gorm:"type:varchar(64);uniqueIndex;not null"`
	PhoneCiphertext *string `gorm:"type:text"`
	PhoneHash       *string `gorm:"type:varchar(64);uniqueIndex"`

	PasswordHash *string    `gorm:"type:text"`
	Role         AdminRole  `gorm:"type:varchar(32);default:'admin';not null"`
	SchoolID     *uuid.UUID `gorm:"type:uuid;index"`

	EmailVerified   bool `gorm:"default:false;not null"`
	EmailVerifiedAt *time.Time
	IsActive        bool `gorm:"default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (a *AdminUser) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

func (a AdminUser) Principal() Principal {
	return Principal{
		ID:              a.ID,
		Kind:            OwnerAdmin,
		Name:            a.Name,
		Role:            string(a.Role),
		SchoolID:        a.SchoolID,
		EmailCiphertext: a.EmailCiphertext,
		EmailHash:       a.EmailHash,
		PasswordHash:    a.PasswordHash,
		EmailVerified:   a.EmailVerified,
		EmailVerifiedAt: a.EmailVerifiedAt,
		IsActive:        a.IsActive,
	}
}
