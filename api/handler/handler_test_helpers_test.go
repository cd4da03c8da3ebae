package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"schoolportal/api/middleware"
	"schoolportal/internal/entity"
	"schoolportal/internal/repository"
	"schoolportal/internal/service"
	"schoolportal/internal/utils"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type recordingMailer struct {
	mu    sync.Mutex
	links []string
}

func (m *recordingMailer) Send(ctx context.Context, to string, template string, vars map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links = append(m.links, vars["link"])
	return nil
}

func (m *recordingMailer) lastToken(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.links)
	parsed, err := url.Parse(m.links[len(m.links)-1])
	require.NoError(t, err)
	return parsed.Query().Get("token")
}

type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "plain:" + password, nil }
func (plainHasher) Verify(hash string, password string) bool {
	return hash == "plain:"+password
}

type handlerFixture struct {
	echo       *echo.Echo
	db         *gorm.DB
	tokens     *utils.TokenManager
	protector  *utils.Protector
	principals repository.PrincipalRepository
	mailer     *recordingMailer
	logHook    *test.Hook
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, repository.AutoMigrate(db))

	tokens, err := utils.NewTokenManager(utils.TokenConfig{
		Secret:   []byte("handler-test-secret"),
		Issuer:   "schoolportal",
		Audience: "schoolportal-web",
	})
	require.NoError(t, err)
	protector, err := utils.NewProtector([]byte("handler-test-protection"))
	require.NoError(t, err)
	log, hook := test.NewNullLogger()

	principals := repository.NewPrincipalRepository(db)
	records := repository.NewVerificationRecordRepository(db)
	sessions := repository.NewSessionRepository(db)
	tx := repository.NewTransactor(db)
	audit := service.NewAuditRecorder(repository.NewSecurityLogRepository(db), log)
	mailer := &recordingMailer{}
	config := service.AuthConfig{AppBaseURL: "https://portal.test", VerifyPath: "/verify-email", ResetPath: "/reset-password"}
	clock := service.RealClock{}

	verificationSvc := service.NewVerificationService(principals, records, tx, tokens, protector, mailer, audit, clock, config)
	authSvc := service.NewAuthService(principals, records, sessions, tx, tokens, protector, plainHasher{}, mailer, audit, clock, config)

	validate := validator.New()
	verification := NewVerificationHandler(verificationSvc, validate, log)
	auth := NewAuthHandler(authSvc, validate, log)
	auth.SecureCookies = false

	e := echo.New()
	e.Use(middleware.NewOrchestrator(middleware.DefaultRouteTable(), tokens, log).Middleware())
	e.GET("/verify-email", verification.VerifyEmail)
	e.POST("/verify-email", verification.VerifyEmail)
	e.POST("/resend-verification", verification.ResendVerification)
	e.POST("/revoke-token", verification.RevokeToken, middleware.RequireRole("admin", "super_admin"))
	e.GET("/api/admin/verification-status", verification.VerificationStatus, middleware.RequireRole("admin", "super_admin"))
	e.POST("/api/auth/login", auth.Login)
	e.POST("/api/auth/refresh", auth.Refresh)
	e.POST("/api/auth/logout", auth.Logout)
	e.POST("/api/auth/forgot-password", auth.ForgotPassword)
	e.POST("/api/auth/reset-password", auth.ResetPassword)
	e.GET("/api/me", auth.Me)

	return &handlerFixture{
		echo:       e,
		db:         db,
		tokens:     tokens,
		protector:  protector,
		principals: principals,
		mailer:     mailer,
		logHook:    hook,
	}
}

func (f *handlerFixture) do(t *testing.T, method string, target string, body string, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	req.Header.Set(echo.HeaderAccept, echo.MIMEApplicationJSON)
	for _, fn := range mutate {
		fn(req)
	}
	rec := httptest.NewRecorder()
	f.echo.ServeHTTP(rec, req)
	return rec
}

func bearer(token string) func(*http.Request) {
	return func(r *http.Request) {
		r.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
}

func (f *handlerFixture) createAdmin(t *testing.T, email string, role entity.AdminRole) *entity.AdminUser {
	t.Helper()
	protected, err := f.protector.Protect(email, utils.FieldEmail)
	require.NoError(t, err)
	hash := "plain:password123"
	admin := &entity.AdminUser{
		Name:            "Board Officer",
		EmailCiphertext: protected.Ciphertext,
		EmailHash:       protected.SearchHash,
		PasswordHash:    &hash,
		Role:            role,
		IsActive:        true,
	}
	require.NoError(t, f.principals.CreateAdmin(t.Context(), admin))
	return admin
}

func (f *handlerFixture) authTokenFor(t *testing.T, admin *entity.AdminUser, email string) string {
	t.Helper()
	token, err := f.tokens.Issue(utils.TokenAuth, utils.Claims{
		EntityID: admin.ID.String(),
		Email:    email,
		Role:     string(admin.Role),
	}, 0)
	require.NoError(t, err)
	return token
}
