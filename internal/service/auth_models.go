package service

import (
	"time"

	"schoolportal/internal/entity"

	"github.com/google/uuid"
)

// RequestMeta carries the caller details recorded on issued records and audit rows.
type RequestMeta struct {
	IPAddress *string
	UserAgent *string
}

type VerifyEmailInput struct {
	Token    string
	AdminID  string
	SchoolID string
	RequestMeta
}

type VerifyEmailResult struct {
	Kind  entity.OwnerKind
	Email string
}

// VerificationStatusResult is empty apart from EmailVerified when no record was ever issued.
type VerificationStatusResult struct {
	EmailVerified bool
	Status        entity.VerificationStatus
	ExpiresAt     *time.Time
	UsedAt        *time.Time
	FailureReason *string
}

type ResendVerificationInput struct {
	Login string
	Type  string
	RequestMeta
}

type RevokeTokenInput struct {
	Token  string
	Reason string
	Actor  *entity.OwnerRef
	RequestMeta
}

type LoginInput struct {
	Login    string
	Password string
	Type     string
	RequestMeta
}

// LoginResult holds both issued tokens and the signed-in principal with its email decrypted.
type LoginResult struct {
	AuthToken        string
	AuthExpiresAt    time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	Principal        entity.Principal
	Email            string
}

type PasswordResetInput struct {
	Token    string
	Password string
	RequestMeta
}

type SessionPrincipal struct {
	ID           uuid.UUID
	Kind         entity.OwnerKind
	Name         string
	Email        string
	Role         string
	SchoolID     *uuid.UUID
	CenterNumber string
}
