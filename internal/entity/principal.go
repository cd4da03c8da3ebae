package entity

import (
	"time"

	"github.com/google/uuid"
)

type OwnerKind string

const (
	OwnerAdmin  OwnerKind = "admin"
	OwnerSchool OwnerKind = "school"
)

func (k OwnerKind) Valid() bool {
	return k == OwnerAdmin || k == OwnerSchool
}

// Principal is the kind-independent view of an AdminUser or School that the
// authentication core reads and updates.
type Principal struct {
	ID              uuid.UUID
	Kind            OwnerKind
	Name            string
	Role            string
	SchoolID        *uuid.UUID
	CenterNumber    string
	EmailCiphertext string
	EmailHash       string
	PasswordHash    *string
	EmailVerified   bool
	EmailVerifiedAt *time.Time
	IsActive        bool
}

// OwnerRef identifies the owner of a verification record or refresh session.
type OwnerRef struct {
	ID   uuid.UUID
	Kind OwnerKind
}

func (p Principal) Ref() OwnerRef {
	return OwnerRef{ID: p.ID, Kind: p.Kind}
}
