package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type SecurityAction string

const (
	LoginSuccess         SecurityAction = "login_success"
	LoginFailed          SecurityAction = "login_failed"
	Logout               SecurityAction = "logout"
	VerificationIssued   SecurityAction = "verification_issued"
	EmailVerified        SecurityAction = "email_verified"
	VerificationFailed   SecurityAction = "verification_failed"
	TokenRevoked         SecurityAction = "token_revoked"
	PasswordResetRequest SecurityAction = "password_reset_requested"
	PasswordReset        SecurityAction = "password_reset"
)

// SecurityLog is an append-only audit entry. ActorID is the acting principal, or the
// configured system user when the action had no authenticated actor.
type SecurityLog struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	ActorID   *uuid.UUID `gorm:"type:uuid;index"`
	ActorKind *OwnerKind `gorm:"type:varchar(16)"`
	SubjectID *uuid.UUID `gorm:"type:uuid;index"`

	IPAddress *string        `gorm:"type:varchar(45)"`
	Action    SecurityAction `gorm:"type:varchar(48);not null"`

	Metadata datatypes.JSON

	CreatedAt time.Time
}

func (l *SecurityLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
