package handler

import (
	"errors"
	"net/http"

	"schoolportal/api/middleware"
	"schoolportal/internal/dto"
	"schoolportal/internal/entity"
	"schoolportal/internal/repository"
	"schoolportal/internal/service"
	"schoolportal/internal/utils"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type VerificationHandler struct {
	Service  *service.VerificationService
	Validate *validator.Validate
	Logger   logrus.FieldLogger
}

func NewVerificationHandler(svc *service.VerificationService, validate *validator.Validate, logger logrus.FieldLogger) *VerificationHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &VerificationHandler{Service: svc, Validate: validate, Logger: logger}
}

func (h *VerificationHandler) VerifyEmail(c echo.Context) error {
	var req dto.VerifyEmailRequest
	if c.Request().Method == http.MethodGet {
		req = dto.VerifyEmailRequest{
			Token:    c.QueryParam("token"),
			AdminID:  c.QueryParam("adminId"),
			SchoolID: c.QueryParam("schoolId"),
		}
	} else if err := decodeJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, invalidBodyMessage)
	}
	if req.Token == "" {
		return writeError(c, http.StatusBadRequest, "Verification token is required")
	}
	if err := validatePayload(h.Validate, req); err != nil {
		return writeError(c, http.StatusBadRequest, "Invalid verification request")
	}

	result, err := h.Service.VerifyEmail(c.Request().Context(), service.VerifyEmailInput{
		Token:       req.Token,
		AdminID:     req.AdminID,
		SchoolID:    req.SchoolID,
		RequestMeta: requestMeta(c),
	})
	if err != nil {
		return h.writeVerifyError(c, err)
	}

	response := dto.VerifyEmailResponse{Success: true, Message: "Email verified successfully"}
	if result.Kind == entity.OwnerAdmin {
		response.AdminEmail = result.Email
	}
	return c.JSON(http.StatusOK, response)
}

// writeVerifyError reports every redemption failure on this endpoint as a 400; only a
// missing owner is a 404.
func (h *VerificationHandler) writeVerifyError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, utils.ErrTokenExpired), errors.Is(err, repository.ErrRecordExpired):
		return writeError(c, http.StatusBadRequest, "Verification link has expired")
	case errors.Is(err, service.ErrAlreadyVerified), errors.Is(err, repository.ErrRecordAlreadyUsed):
		return writeError(c, http.StatusBadRequest, "Email is already verified")
	case utils.IsTokenError(err),
		errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, repository.ErrRecordNotFound):
		return writeError(c, http.StatusBadRequest, "Invalid verification link")
	}
	return writeServiceError(c, h.Logger, err)
}

func (h *VerificationHandler) ResendVerification(c echo.Context) error {
	var req dto.ResendVerificationRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, invalidBodyMessage)
	}
	if err := validatePayload(h.Validate, req); err != nil {
		return writeError(c, http.StatusBadRequest, "Login and a type of school or admin are required")
	}

	err := h.Service.ResendVerification(c.Request().Context(), service.ResendVerificationInput{
		Login:       req.Login,
		Type:        req.Type,
		RequestMeta: requestMeta(c),
	})
	if err != nil {
		return writeServiceError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, dto.MessageResponse{Success: true, Message: "Verification email sent"})
}

func (h *VerificationHandler) RevokeToken(c echo.Context) error {
	var req dto.RevokeTokenRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, invalidBodyMessage)
	}
	if err := validatePayload(h.Validate, req); err != nil {
		return writeError(c, http.StatusBadRequest, "Token is required")
	}

	actor, _ := middleware.OwnerFromContext(c)
	count, err := h.Service.RevokeToken(c.Request().Context(), service.RevokeTokenInput{
		Token:       req.Token,
		Reason:      req.Reason,
		Actor:       actor,
		RequestMeta: requestMeta(c),
	})
	if err != nil {
		return writeServiceError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, dto.RevokeTokenResponse{
		Success: true,
		Message: "Token revoked",
		Revoked: count,
	})
}

func (h *VerificationHandler) VerificationStatus(c echo.Context) error {
	req := dto.VerificationStatusRequest{
		Type: c.QueryParam("type"),
		ID:   c.QueryParam("id"),
	}
	if err := validatePayload(h.Validate, req); err != nil {
		return writeError(c, http.StatusBadRequest, "A type of school or admin and an owner id are required")
	}

	result, err := h.Service.VerificationStatus(c.Request().Context(), req.Type, req.ID)
	if err != nil {
		return writeServiceError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, dto.VerificationStatusResponseFromResult(result))
}
