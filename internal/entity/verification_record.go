package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type VerificationType string

const (
	AdminEmailVerification  VerificationType = "ADMIN_EMAIL_VERIFICATION"
	SchoolEmailVerification VerificationType = "SCHOOL_EMAIL_VERIFICATION"
	AdminPasswordReset      VerificationType = "ADMIN_PASSWORD_RESET"
	SchoolPasswordReset     VerificationType = "SCHOOL_PASSWORD_RESET"
)

// EmailVerificationTypeFor returns the email verification record type for an owner kind.
func EmailVerificationTypeFor(kind OwnerKind) VerificationType {
	if kind == OwnerSchool {
		return SchoolEmailVerification
	}
	return AdminEmailVerification
}

func PasswordResetTypeFor(kind OwnerKind) VerificationType {
	if kind == OwnerSchool {
		return SchoolPasswordReset
	}
	return AdminPasswordReset
}

type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "PENDING"
	VerificationVerified VerificationStatus = "VERIFIED"
	VerificationRevoked  VerificationStatus = "REVOKED"
	// VerificationExpired is never written; it is derived by EffectiveStatus.
	VerificationExpired VerificationStatus = "EXPIRED"
)

// VerificationRecord is one issued one-time token. At most one PENDING row may exist
// per (OwnerID, Type); the partial unique index enforces it in the store.
type VerificationRecord struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	OwnerID   uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_verification_single_pending,where:status = 'PENDING'"`
	OwnerKind OwnerKind `gorm:"type:varchar(16);not null"`
	EmailHash string    `gorm:"type:varchar(64);not null;index"`

	Token  string             `gorm:"type:text;not null;index"`
	Type   VerificationType   `gorm:"type:varchar(48);not null;uniqueIndex:idx_verification_single_pending,where:status = 'PENDING'"`
	Status VerificationStatus `gorm:"type:varchar(16);not null;default:'PENDING';index"`

	Used          bool `gorm:"default:false;not null"`
	ExpiresAt     time.Time
	UsedAt        *time.Time
	FailureReason *string `gorm:"type:text"`

	IPAddress *string `gorm:"type:varchar(45)"`
	UserAgent *string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r *VerificationRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// EffectiveStatus reports EXPIRED for a PENDING record whose expiry has passed.
// Such rows stay PENDING in storage until superseded.
func (r VerificationRecord) EffectiveStatus(now time.Time) VerificationStatus {
	if r.Status == VerificationPending && !now.Before(r.ExpiresAt) {
		return VerificationExpired
	}
	return r.Status
}

func (r VerificationRecord) Owner() OwnerRef {
	return OwnerRef{ID: r.OwnerID, Kind: r.OwnerKind}
}
