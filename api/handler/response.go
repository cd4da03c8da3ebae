package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"schoolportal/internal/dto"
	"schoolportal/internal/repository"
	"schoolportal/internal/service"
	"schoolportal/internal/utils"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const invalidBodyMessage = "Invalid JSON body"

type errorMapping struct {
	target  error
	status  int
	message string
}

var serviceErrors = []errorMapping{
	{service.ErrInvalidInput, http.StatusBadRequest, "Invalid request"},
	{service.ErrInvalidType, http.StatusBadRequest, "Type must be school or admin"},
	{service.ErrAlreadyVerified, http.StatusBadRequest, "Email is already verified"},
	{service.ErrInvalidToken, http.StatusBadRequest, "Invalid or expired token"},
	{service.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid login or password"},
	{service.ErrEmailNotVerified, http.StatusForbidden, "Email address has not been verified"},
	{service.ErrOwnerNotFound, http.StatusNotFound, "Account not found"},
	{repository.ErrRecordNotFound, http.StatusNotFound, "No pending verification found for this token"},
	{repository.ErrRecordExpired, http.StatusBadRequest, "Token has expired"},
	{repository.ErrRecordAlreadyUsed, http.StatusBadRequest, "Token has already been used"},
	{utils.ErrTokenExpired, http.StatusBadRequest, "Token has expired"},
	{utils.ErrTokenTypeMismatch, http.StatusBadRequest, "Invalid token type"},
	{utils.ErrTokenInvalidSignature, http.StatusBadRequest, "Invalid token"},
	{utils.ErrTokenMalformed, http.StatusBadRequest, "Invalid token"},
	{utils.ErrInvalidClaims, http.StatusBadRequest, "Invalid token"},
}

func decodeJSON(c echo.Context, target any) error {
	decoder := json.NewDecoder(c.Request().Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func validatePayload(validate *validator.Validate, payload any) error {
	if validate == nil {
		return nil
	}
	return validate.Struct(payload)
}

func writeError(c echo.Context, status int, message string) error {
	return c.JSON(status, dto.MessageResponse{Success: false, Message: message})
}

// writeServiceError translates a service error into a status code and client message.
// Unknown errors become a 500 with a generic message; the cause is only logged.
func writeServiceError(c echo.Context, logger logrus.FieldLogger, err error) error {
	for _, mapping := range serviceErrors {
		if errors.Is(err, mapping.target) {
			return writeError(c, mapping.status, mapping.message)
		}
	}

	entry := logger.WithError(err).WithFields(logrus.Fields{
		"path":   c.Request().URL.Path,
		"method": c.Request().Method,
	})
	switch {
	case errors.Is(err, utils.ErrDecryptionFailed):
		entry.Error("stored field could not be decrypted")
	case errors.Is(err, service.ErrMailDelivery):
		entry.Error("email delivery failed")
		return writeError(c, http.StatusInternalServerError, "Failed to send email, please try again")
	case errors.Is(err, repository.ErrStoreUnavailable):
		entry.Error("store unavailable")
	default:
		entry.Error("unexpected error")
	}
	return writeError(c, http.StatusInternalServerError, "Internal server error")
}

func requestMeta(c echo.Context) service.RequestMeta {
	return service.RequestMeta{
		IPAddress: stringPtr(c.RealIP()),
		UserAgent: stringPtr(c.Request().UserAgent()),
	}
}

func stringPtr(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}
