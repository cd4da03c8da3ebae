package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"schoolportal/api/middleware"
	"schoolportal/internal/dto"
	"schoolportal/internal/repository"
	"schoolportal/internal/service"
	"schoolportal/internal/utils"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const forgotPasswordMessage = "If the account exists, a password reset link has been sent"

type AuthHandler struct {
	Service       *service.AuthService
	Validate      *validator.Validate
	Logger        logrus.FieldLogger
	CookieDomain  string
	SecureCookies bool
	SameSite      http.SameSite
	now           func() time.Time
}

func NewAuthHandler(svc *service.AuthService, validate *validator.Validate, logger logrus.FieldLogger) *AuthHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &AuthHandler{
		Service:       svc,
		Validate:      validate,
		Logger:        logger,
		SecureCookies: true,
		SameSite:      http.SameSiteLaxMode,
		now:           time.Now,
	}
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req dto.LoginRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, invalidBodyMessage)
	}
	if err := validatePayload(h.Validate, req); err != nil {
		return writeError(c, http.StatusBadRequest, "Login, password and a type of school or admin are required")
	}

	result, err := h.Service.Login(c.Request().Context(), service.LoginInput{
		Login:       req.Login,
		Password:    req.Password,
		Type:        req.Type,
		RequestMeta: requestMeta(c),
	})
	if err != nil {
		return writeServiceError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, h.startSession(c, result))
}

func (h *AuthHandler) Refresh(c echo.Context) error {
	refreshToken := h.readCookie(c, middleware.RefreshCookieName)
	if refreshToken == "" {
		var req dto.RefreshRequest
		if err := decodeJSON(c, &req); err != nil && !errors.Is(err, io.EOF) {
			return writeError(c, http.StatusBadRequest, invalidBodyMessage)
		}
		refreshToken = req.RefreshToken
	}
	if refreshToken == "" {
		return writeError(c, http.StatusUnauthorized, "Missing refresh token")
	}

	result, err := h.Service.Refresh(c.Request().Context(), refreshToken, requestMeta(c))
	if err != nil {
		if utils.IsTokenError(err) || errors.Is(err, service.ErrInvalidToken) {
			h.clearCookies(c)
			return writeError(c, http.StatusUnauthorized, "Session expired, please sign in again")
		}
		return writeServiceError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, h.startSession(c, result))
}

func (h *AuthHandler) Logout(c echo.Context) error {
	actor, _ := middleware.OwnerFromContext(c)
	refreshToken := h.readCookie(c, middleware.RefreshCookieName)
	if err := h.Service.Logout(c.Request().Context(), refreshToken, actor, requestMeta(c)); err != nil {
		return writeServiceError(c, h.Logger, err)
	}
	h.clearCookies(c)
	return c.JSON(http.StatusOK, dto.MessageResponse{Success: true, Message: "Logged out"})
}

// ForgotPassword answers 200 for every well-formed request so callers cannot tell
// whether an account exists. Delivery failures are logged only.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req dto.ForgotPasswordRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, invalidBodyMessage)
	}
	if err := validatePayload(h.Validate, req); err != nil {
		return writeError(c, http.StatusBadRequest, "Login and a type of school or admin are required")
	}

	err := h.Service.RequestPasswordReset(c.Request().Context(), req.Login, req.Type, requestMeta(c))
	switch {
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrInvalidType):
		return writeServiceError(c, h.Logger, err)
	case err != nil:
		h.Logger.WithError(err).WithField("type", req.Type).Error("password reset request failed")
	}
	return c.JSON(http.StatusOK, dto.MessageResponse{Success: true, Message: forgotPasswordMessage})
}

func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req dto.ResetPasswordRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, invalidBodyMessage)
	}
	if err := validatePayload(h.Validate, req); err != nil {
		return writeError(c, http.StatusBadRequest, "Token and a password of at least 8 characters are required")
	}

	err := h.Service.ResetPassword(c.Request().Context(), service.PasswordResetInput{
		Token:       req.Token,
		Password:    req.Password,
		RequestMeta: requestMeta(c),
	})
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, dto.MessageResponse{Success: true, Message: "Password has been reset"})
	case utils.IsTokenError(err),
		errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, repository.ErrRecordNotFound),
		errors.Is(err, repository.ErrRecordExpired),
		errors.Is(err, repository.ErrRecordAlreadyUsed):
		return writeError(c, http.StatusBadRequest, "Invalid or expired reset link")
	}
	return writeServiceError(c, h.Logger, err)
}

func (h *AuthHandler) Me(c echo.Context) error {
	token, ok := middleware.TokenFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, "Authentication required")
	}
	principal, err := h.Service.CurrentPrincipal(c.Request().Context(), token)
	if err != nil {
		return writeServiceError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"user":    dto.PrincipalResponseFromSession(principal),
	})
}

func (h *AuthHandler) startSession(c echo.Context, result *service.LoginResult) dto.LoginResponse {
	now := h.now()
	h.setCookie(c, middleware.AuthCookieName, result.AuthToken, "/", result.AuthExpiresAt.Sub(now))
	h.setCookie(c, middleware.RefreshCookieName, result.RefreshToken, "/api/auth", result.RefreshExpiresAt.Sub(now))
	return dto.LoginResponseFromResult(result, int64(result.AuthExpiresAt.Sub(now).Seconds()))
}

func (h *AuthHandler) setCookie(c echo.Context, name string, value string, path string, ttl time.Duration) {
	if ttl < 0 {
		ttl = 0
	}
	c.SetCookie(&http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   h.CookieDomain,
		MaxAge:   int(ttl.Seconds()),
		Expires:  h.now().Add(ttl),
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: h.SameSite,
	})
}

func (h *AuthHandler) clearCookies(c echo.Context) {
	for name, path := range map[string]string{
		middleware.AuthCookieName:    "/",
		middleware.RefreshCookieName: "/api/auth",
	} {
		c.SetCookie(&http.Cookie{
			Name:     name,
			Value:    "",
			Path:     path,
			Domain:   h.CookieDomain,
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   h.SecureCookies,
			SameSite: h.SameSite,
		})
	}
}

func (h *AuthHandler) readCookie(c echo.Context, name string) string {
	cookie, err := c.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}
