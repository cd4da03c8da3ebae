package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"schoolportal/api/handler"
	apiMiddleware "schoolportal/api/middleware"
	"schoolportal/api/routes"
	"schoolportal/config"
	"schoolportal/internal/repository"
	"schoolportal/internal/service"
	"schoolportal/internal/utils"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
)

const sessionCleanupInterval = time.Hour

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	logger := config.NewLogger(cfg.LogLevel, cfg.LogFormat)

	db, err := config.ConnectionDb(cfg)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to database")
	}
	if cfg.DBAutoMigrate {
		if err := repository.AutoMigrate(db); err != nil {
			logger.WithError(err).Fatal("failed to migrate database")
		}
	}

	clock := service.RealClock{}
	protector, err := utils.NewProtector([]byte(cfg.DataProtectionKey))
	if err != nil {
		logger.WithError(err).Fatal("failed to initialise data protection")
	}
	tokens, err := utils.NewTokenManager(utils.TokenConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		Now:      clock.Now,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to initialise token manager")
	}

	principalRepo := repository.NewPrincipalRepository(db)
	recordRepo := repository.NewVerificationRecordRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	securityRepo := repository.NewSecurityLogRepository(db)
	transactor := repository.NewTransactor(db)

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 10*time.Second)
	audit := service.NewAuditRecorder(securityRepo, logger)
	if err := audit.ResolveSystemUser(startupCtx, principalRepo, protector, cfg.SystemUserEmail); err != nil {
		logger.WithError(err).Warn("failed to resolve system user")
	}
	cancelStartup()

	mailer := newMailer(cfg, logger)
	authConfig := service.AuthConfig{
		AppBaseURL: cfg.AppBaseURL,
		VerifyPath: "/verify-email",
		ResetPath:  "/reset-password",
	}

	verificationService := service.NewVerificationService(
		principalRepo,
		recordRepo,
		transactor,
		tokens,
		protector,
		mailer,
		audit,
		clock,
		authConfig,
	)
	authService := service.NewAuthService(
		principalRepo,
		recordRepo,
		sessionRepo,
		transactor,
		tokens,
		protector,
		service.BcryptPasswordHasher{},
		mailer,
		audit,
		clock,
		authConfig,
	)

	validate := validator.New()
	authHandler := handler.NewAuthHandler(authService, validate, logger)
	authHandler.CookieDomain = cfg.CookieDomain
	authHandler.SecureCookies = cfg.CookieSecure
	verificationHandler := handler.NewVerificationHandler(verificationService, validate, logger)

	app := echo.New()
	app.HideBanner = true
	app.HidePort = true
	app.Use(echoMiddleware.Recover())
	app.Use(echoMiddleware.RequestLoggerWithConfig(echoMiddleware.RequestLoggerConfig{
		LogStatus:   true,
		LogMethod:   true,
		LogURI:      true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echoMiddleware.RequestLoggerValues) error {
			entry := logger.WithFields(logrus.Fields{
				"status": v.Status,
				"method": v.Method,
				"uri":    v.URI,
				"ip":     v.RemoteIP,
			})
			if v.Error != nil {
				entry.WithError(v.Error).Error("request")
				return nil
			}
			entry.Info("request")
			return nil
		},
	}))

	orchestrator := apiMiddleware.NewOrchestrator(apiMiddleware.DefaultRouteTable(), tokens, logger)
	router := routes.NewRouter(app, authHandler, verificationHandler, orchestrator)
	router.RegisterRoutes()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go cleanupSessions(ctx, sessionRepo, clock, logger)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("server started")
		if err := app.StartServer(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server stopped")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("graceful shutdown failed")
	}
	logger.Info("server stopped")
}

// newMailer prefers Resend, then SMTP, and otherwise logs mail instead of sending it.
func newMailer(cfg *config.AppConfig, logger logrus.FieldLogger) service.Mailer {
	if cfg.ResendAPIKey != "" {
		mailer, err := service.NewResendMailer(cfg.ResendAPIKey, cfg.MailFrom)
		if err != nil {
			logger.WithError(err).Fatal("failed to configure resend mailer")
		}
		logger.Info("mail transport: resend")
		return mailer
	}
	if cfg.SMTPHost != "" {
		mailer, err := service.NewSMTPMailer(service.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		})
		if err != nil {
			logger.WithError(err).Fatal("failed to configure smtp mailer")
		}
		logger.WithField("host", cfg.SMTPHost).Info("mail transport: smtp")
		return mailer
	}
	logger.Warn("no mail transport configured; emails will be logged")
	return service.LogMailer{Logger: logger}
}

func cleanupSessions(ctx context.Context, sessions repository.SessionRepository, clock service.Clock, logger logrus.FieldLogger) {
	ticker := time.NewTicker(sessionCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := sessions.CleanupExpired(ctx, clock.Now())
			if err != nil {
				logger.WithError(err).Warn("session cleanup failed")
				continue
			}
			if removed > 0 {
				logger.WithField("removed", removed).Info("expired sessions removed")
			}
		}
	}
}
