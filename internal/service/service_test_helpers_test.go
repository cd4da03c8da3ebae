package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"schoolportal/internal/entity"
	"schoolportal/internal/repository"
	"schoolportal/internal/utils"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testNow = time.Date(2026, 5, 4, 8, 30, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sentMail struct {
	To       string
	Template string
	Vars     map[string]string
}

type captureMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *captureMailer) Send(ctx context.Context, to string, template string, vars map[string]string) error {
	if _, err := RenderEmail(template, vars); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{To: to, Template: template, Vars: vars})
	return nil
}

func (m *captureMailer) last(t *testing.T) sentMail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent, "no mail sent")
	return m.sent[len(m.sent)-1]
}

func (m *captureMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// cheapHasher keeps tests fast; bcrypt is covered by BcryptPasswordHasher's own test.
type cheapHasher struct{}

func (cheapHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }
func (cheapHasher) Verify(hash string, password string) bool {
	return hash == "hashed:"+password
}

type serviceFixture struct {
	db           *gorm.DB
	clock        *testClock
	mailer       *captureMailer
	tokens       *utils.TokenManager
	protector    *utils.Protector
	principals   repository.PrincipalRepository
	records      repository.VerificationRecordRepository
	sessions     repository.SessionRepository
	audit        *AuditRecorder
	logHook      *test.Hook
	verification *VerificationService
	auth         *AuthService
}

func newServiceFixture(t *testing.T) *serviceFixture {
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

	clock := &testClock{now: testNow}
	tokens, err := utils.NewTokenManager(utils.TokenConfig{
		Secret:   []byte("service-test-secret"),
		Issuer:   "schoolportal",
		Audience: "schoolportal-web",
		Now:      clock.Now,
	})
	require.NoError(t, err)
	protector, err := utils.NewProtector([]byte("service-test-protection-key"))
	require.NoError(t, err)

	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	f := &serviceFixture{
		db:         db,
		clock:      clock,
		mailer:     &captureMailer{},
		tokens:     tokens,
		protector:  protector,
		principals: repository.NewPrincipalRepository(db),
		records:    repository.NewVerificationRecordRepository(db),
		sessions:   repository.NewSessionRepository(db),
		logHook:    hook,
	}
	f.audit = NewAuditRecorder(repository.NewSecurityLogRepository(db), log)
	config := AuthConfig{
		AppBaseURL: "https://portal.example.org/",
		VerifyPath: "/verify-email",
		ResetPath:  "/reset-password",
	}
	tx := repository.NewTransactor(db)
	f.verification = NewVerificationService(f.principals, f.records, tx, tokens, protector, f.mailer, f.audit, clock, config)
	f.auth = NewAuthService(f.principals, f.records, f.sessions, tx, tokens, protector, cheapHasher{}, f.mailer, f.audit, clock, config)
	return f
}

func (f *serviceFixture) protect(t *testing.T, raw string, kind utils.FieldKind) utils.ProtectedField {
	t.Helper()
	field, err := f.protector.Protect(raw, kind)
	require.NoError(t, err)
	return field
}

func (f *serviceFixture) createSchool(t *testing.T, email string, phone string, password string) *entity.School {
	t.Helper()
	protectedEmail := f.protect(t, email, utils.FieldEmail)
	hash := "hashed:" + password
	school := &entity.School{
		Name:            "Riverside Secondary",
		CenterNumber:    "RS-" + protectedEmail.SearchHash[:8],
		EmailCiphertext: protectedEmail.Ciphertext,
		EmailHash:       protectedEmail.SearchHash,
		PasswordHash:    &hash,
		IsActive:        true,
	}
	if phone != "" {
		protectedPhone := f.protect(t, phone, utils.FieldPhone)
		school.PhoneCiphertext = &protectedPhone.Ciphertext
		school.PhoneHash = &protectedPhone.SearchHash
	}
	require.NoError(t, f.principals.CreateSchool(t.Context(), school))
	return school
}

func (f *serviceFixture) createAdmin(t *testing.T, email string, role entity.AdminRole, verified bool) *entity.AdminUser {
	t.Helper()
	protectedEmail := f.protect(t, email, utils.FieldEmail)
	hash := "hashed:admin-password"
	admin := &entity.AdminUser{
		Name:            "Exam Officer",
		EmailCiphertext: protectedEmail.Ciphertext,
		EmailHash:       protectedEmail.SearchHash,
		PasswordHash:    &hash,
		Role:            role,
		IsActive:        true,
	}
	require.NoError(t, f.principals.CreateAdmin(t.Context(), admin))
	if verified {
		require.NoError(t, f.principals.MarkEmailVerified(t.Context(), admin.Principal().Ref(), testNow))
	}
	return admin
}

func tokenFromLink(t *testing.T, link string) (string, url.Values) {
	t.Helper()
	parsed, err := url.Parse(link)
	require.NoError(t, err)
	query := parsed.Query()
	token := query.Get("token")
	require.NotEmpty(t, token)
	return token, query
}

var errSMTPDown = errors.New("smtp: connection refused")
