package dto

import (
	"time"

	"schoolportal/internal/service"
)

type VerifyEmailRequest struct {
	Token    string `json:"token" query:"token" validate:"required"`
	AdminID  string `json:"adminId" query:"adminId" validate:"omitempty,uuid"`
	SchoolID string `json:"schoolId" query:"schoolId" validate:"omitempty,uuid"`
}

type VerifyEmailResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	AdminEmail string `json:"adminEmail,omitempty"`
}

type ResendVerificationRequest struct {
	Login string `json:"login" validate:"required"`
	Type  string `json:"type" validate:"required,oneof=school admin"`
}

type RevokeTokenRequest struct {
	Token  string `json:"token" validate:"required"`
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

type RevokeTokenResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Revoked int64  `json:"revoked"`
}

type VerificationStatusRequest struct {
	Type string `query:"type" validate:"required,oneof=school admin"`
	ID   string `query:"id" validate:"required,uuid"`
}

type VerificationStatusResponse struct {
	Success       bool       `json:"success"`
	EmailVerified bool       `json:"emailVerified"`
	Status        string     `json:"status,omitempty"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
	UsedAt        *time.Time `json:"usedAt,omitempty"`
	FailureReason *string    `json:"failureReason,omitempty"`
}

func VerificationStatusResponseFromResult(result *service.VerificationStatusResult) VerificationStatusResponse {
	return VerificationStatusResponse{
		Success:       true,
		EmailVerified: result.EmailVerified,
		Status:        string(result.Status),
		ExpiresAt:     result.ExpiresAt,
		UsedAt:        result.UsedAt,
		FailureReason: result.FailureReason,
	}
}
