package routes

import (
	"net/http"
	"time"

	"schoolportal/api/handler"
	"schoolportal/api/middleware"
	"schoolportal/internal/entity"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

type Router struct {
	Echo         *echo.Echo
	Auth         *handler.AuthHandler
	Verification *handler.VerificationHandler
	Orchestrator *middleware.Orchestrator
	AuthRate     *middleware.RateLimiter
	LoginRate    *middleware.RateLimiter
}

func NewRouter(
	e *echo.Echo,
	authHandler *handler.AuthHandler,
	verificationHandler *handler.VerificationHandler,
	orchestrator *middleware.Orchestrator,
) *Router {
	return &Router{
		Echo:         e,
		Auth:         authHandler,
		Verification: verificationHandler,
		Orchestrator: orchestrator,
		AuthRate:     middleware.NewRateLimiter(rate.Limit(5), 10, 5*time.Minute),
		LoginRate:    middleware.NewRateLimiter(rate.Limit(2), 4, 10*time.Minute),
	}
}

// RegisterRoutes installs the orchestrator ahead of every route, then the routes.
func (r *Router) RegisterRoutes() {
	e := r.Echo
	e.Use(r.Orchestrator.Middleware())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	e.GET("/verify-email", r.Verification.VerifyEmail, r.AuthRate.Middleware())
	e.POST("/verify-email", r.Verification.VerifyEmail, r.AuthRate.Middleware())
	e.POST("/resend-verification", r.Verification.ResendVerification, r.LoginRate.Middleware())
	operatorOnly := middleware.RequireRole(string(entity.AdminRoleAdmin), string(entity.AdminRoleSuperAdmin))
	e.POST("/revoke-token", r.Verification.RevokeToken, operatorOnly)
	e.GET("/api/admin/verification-status", r.Verification.VerificationStatus, operatorOnly)

	e.POST("/api/auth/login", r.Auth.Login, r.LoginRate.Middleware())
	e.POST("/api/auth/refresh", r.Auth.Refresh, r.AuthRate.Middleware())
	e.POST("/api/auth/logout", r.Auth.Logout)
	e.POST("/api/auth/forgot-password", r.Auth.ForgotPassword, r.LoginRate.Middleware())
	e.POST("/api/auth/reset-password", r.Auth.ResetPassword, r.AuthRate.Middleware())

	e.GET("/api/me", r.Auth.Me)
}
