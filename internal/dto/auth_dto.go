package dto

import (
	"schoolportal/internal/service"
)

type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type LoginRequest struct {
	Login    string `json:"login" validate:"required"`
	Password string `json:"password" validate:"required"`
	Type     string `json:"type" validate:"required,oneof=school admin"`
}

type ForgotPasswordRequest struct {
	Login string `json:"login" validate:"required"`
	Type  string `json:"type" validate:"required,oneof=school admin"`
}

type ResetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"omitempty"`
}

type PrincipalResponse struct {
	ID           string  `json:"id"`
	Type         string  `json:"type"`
	Name         string  `json:"name"`
	Email        string  `json:"email"`
	Role         string  `json:"role"`
	SchoolID     *string `json:"schoolId,omitempty"`
	CenterNumber string  `json:"centerNumber,omitempty"`
}

type LoginResponse struct {
	Success   bool              `json:"success"`
	Token     string            `json:"token"`
	ExpiresIn int64             `json:"expiresIn"`
	User      PrincipalResponse `json:"user"`
}

func PrincipalResponseFromSession(p *service.SessionPrincipal) PrincipalResponse {
	response := PrincipalResponse{
		ID:           p.ID.String(),
		Type:         string(p.Kind),
		Name:         p.Name,
		Email:        p.Email,
		Role:         p.Role,
		CenterNumber: p.CenterNumber,
	}
	if p.SchoolID != nil {
		schoolID := p.SchoolID.String()
		response.SchoolID = &schoolID
	}
	return response
}

func LoginResponseFromResult(result *service.LoginResult, expiresIn int64) LoginResponse {
	principal := result.Principal
	return LoginResponse{
		Success:   true,
		Token:     result.AuthToken,
		ExpiresIn: expiresIn,
		User: PrincipalResponseFromSession(&service.SessionPrincipal{
			ID:           principal.ID,
			Kind:         principal.Kind,
			Name:         principal.Name,
			Email:        result.Email,
			Role:         principal.Role,
			SchoolID:     principal.SchoolID,
			CenterNumber: principal.CenterNumber,
		}),
	}
}
