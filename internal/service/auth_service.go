package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"schoolportal/internal/entity"
	"schoolportal/internal/repository"
	"schoolportal/internal/utils"
)

const dummyPasswordHash = "$2a$10$CwTycUXWue0Thq9StjUM0uJ8yQbWc1x9uxw2sQ2sXUNx5x9xJ9F2S"

const minPasswordLength = 8

// AuthService signs principals in and out and runs the password reset flow.
type AuthService struct {
	principals repository.PrincipalRepository
	records    repository.VerificationRecordRepository
	sessions   repository.SessionRepository
	tx         repository.Transactor

	tokens       *utils.TokenManager
	protector    *utils.Protector
	passwordHash PasswordHasher
	audit        *AuditRecorder
	clock        Clock
	issuer       oneTimeIssuer
}

func NewAuthService(
	principals repository.PrincipalRepository,
	records repository.VerificationRecordRepository,
	sessions repository.SessionRepository,
	tx repository.Transactor,
	tokens *utils.TokenManager,
	protector *utils.Protector,
	passwordHash PasswordHasher,
	mailer Mailer,
	audit *AuditRecorder,
	clock Clock,
	config AuthConfig,
) *AuthService {
	return &AuthService{
		principals:   principals,
		records:      records,
		sessions:     sessions,
		tx:           tx,
		tokens:       tokens,
		protector:    protector,
		passwordHash: passwordHash,
		audit:        audit,
		clock:        clock,
		issuer: oneTimeIssuer{
			tokens:  tokens,
			records: records,
			mailer:  mailer,
			clock:   clock,
			config:  config,
		},
	}
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	kind, err := parseOwnerKind(input.Type)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Login) == "" || input.Password == "" {
		return nil, ErrInvalidInput
	}

	principal, err := findByLogin(ctx, s.principals, s.protector, kind, input.Login)
	if err != nil {
		return nil, err
	}
	if principal == nil || principal.PasswordHash == nil {
		_ = s.passwordHash.Verify(dummyPasswordHash, input.Password)
		s.audit.Record(ctx, AuditEvent{
			IPAddress: input.IPAddress,
			Action:    entity.LoginFailed,
			Metadata:  map[string]any{"kind": kind},
		})
		return nil, ErrInvalidCredentials
	}
	owner := principal.Ref()

	if !s.passwordHash.Verify(*principal.PasswordHash, input.Password) {
		s.audit.Record(ctx, AuditEvent{
			Subject:   &owner.ID,
			IPAddress: input.IPAddress,
			Action:    entity.LoginFailed,
			Metadata:  map[string]any{"kind": kind},
		})
		return nil, ErrInvalidCredentials
	}
	if !principal.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	result, err := s.createSessionAndTokens(ctx, principal, input.RequestMeta)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, AuditEvent{
		Actor:     &owner,
		Subject:   &owner.ID,
		IPAddress: input.IPAddress,
		Action:    entity.LoginSuccess,
	})
	return result, nil
}

// Refresh exchanges a live refresh token for a new token pair. The session row is
// rotated conditionally, so a refresh token can be exchanged at most once.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, meta RequestMeta) (*LoginResult, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, ErrInvalidInput
	}
	token, err := s.tokens.Verify(refreshToken, utils.TokenRefresh)
	if err != nil {
		return nil, err
	}

	oldHash := utils.HashToken(refreshToken)
	session, err := s.sessions.FindActiveByTokenHash(ctx, oldHash, s.now())
	if err != nil {
		return nil, err
	}
	if session == nil || session.OwnerID.String() != token.EntityID {
		return nil, ErrInvalidToken
	}

	principal, err := s.principals.FindByID(ctx, session.OwnerKind, session.OwnerID)
	if err != nil {
		return nil, err
	}
	if principal == nil {
		return nil, ErrInvalidToken
	}
	email, err := s.protector.Unprotect(principal.EmailCiphertext, utils.FieldEmail)
	if err != nil {
		return nil, err
	}

	result, err := s.issueTokens(principal, email)
	if err != nil {
		return nil, err
	}
	err = s.sessions.Rotate(ctx, session.ID, oldHash, utils.HashToken(result.RefreshToken), result.RefreshExpiresAt)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Logout revokes the session behind refreshToken. Unknown or expired tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, refreshToken string, actor *entity.OwnerRef, meta RequestMeta) error {
	if strings.TrimSpace(refreshToken) != "" {
		session, err := s.sessions.FindActiveByTokenHash(ctx, utils.HashToken(refreshToken), s.now())
		if err != nil {
			return err
		}
		if session != nil {
			if err := s.sessions.Revoke(ctx, session.ID, s.now()); err != nil {
				return err
			}
			if actor == nil {
				actor = &entity.OwnerRef{ID: session.OwnerID, Kind: session.OwnerKind}
			}
		}
	}

	event := AuditEvent{Actor: actor, IPAddress: meta.IPAddress, Action: entity.Logout}
	if actor != nil {
		event.Subject = &actor.ID
	}
	s.audit.Record(ctx, event)
	return nil
}

// RequestPasswordReset mails a reset link when login matches a verified owner. Unknown
// logins succeed silently.
func (s *AuthService) RequestPasswordReset(ctx context.Context, login string, ownerType string, meta RequestMeta) error {
	kind, err := parseOwnerKind(ownerType)
	if err != nil {
		return err
	}
	if strings.TrimSpace(login) == "" {
		return ErrInvalidInput
	}

	principal, err := findByLogin(ctx, s.principals, s.protector, kind, login)
	if err != nil {
		return err
	}
	if principal == nil || !principal.EmailVerified {
		return nil
	}
	email, err := s.protector.Unprotect(principal.EmailCiphertext, utils.FieldEmail)
	if err != nil {
		return err
	}

	record, err := s.issuer.issueAndSend(ctx, oneTimeRequest{
		principal:  principal,
		email:      email,
		tokenType:  utils.TokenPasswordReset,
		recordType: entity.PasswordResetTypeFor(kind),
		template:   TemplatePasswordReset,
		meta:       meta,
	})
	if err != nil {
		return err
	}

	s.audit.Record(ctx, AuditEvent{
		Subject:   &principal.ID,
		IPAddress: meta.IPAddress,
		Action:    entity.PasswordResetRequest,
		Metadata:  map[string]any{"record_id": record.ID},
	})
	return nil
}

// ResetPassword redeems a password reset token exactly once, stores the new password
// hash and revokes every refresh session of the owner in one transaction.
func (s *AuthService) ResetPassword(ctx context.Context, input PasswordResetInput) error {
	token := strings.TrimSpace(input.Token)
	if token == "" || len(input.Password) < minPasswordLength {
		return ErrInvalidInput
	}

	claims, err := s.tokens.Verify(token, utils.TokenPasswordReset)
	if err != nil {
		return err
	}
	kind := kindForRole(claims.Role)
	ownerID, err := parseEntityID(claims.EntityID)
	if err != nil {
		return err
	}

	principal, err := s.principals.FindByID(ctx, kind, ownerID)
	if err != nil {
		return err
	}
	if principal == nil {
		return ErrOwnerNotFound
	}
	if !matchesEmailHash(s.protector, claims.Email, principal) {
		return ErrInvalidToken
	}

	hash, err := s.passwordHash.Hash(input.Password)
	if err != nil {
		return err
	}

	owner := principal.Ref()
	now := s.now()
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.records.Redeem(ctx, owner, entity.PasswordResetTypeFor(kind), token, now); err != nil {
			return err
		}
		if err := s.principals.UpdatePasswordHash(ctx, owner, hash); err != nil {
			return err
		}
		return s.sessions.RevokeAllByOwner(ctx, owner, now)
	})
	if errors.Is(err, repository.ErrPrincipalNotFound) {
		return ErrOwnerNotFound
	}
	if err != nil {
		return err
	}

	s.audit.Record(ctx, AuditEvent{
		Actor:     &owner,
		Subject:   &owner.ID,
		IPAddress: input.IPAddress,
		Action:    entity.PasswordReset,
	})
	return nil
}

// CurrentPrincipal loads the owner of a verified auth token.
func (s *AuthService) CurrentPrincipal(ctx context.Context, token *utils.Token) (*SessionPrincipal, error) {
	if token == nil {
		return nil, ErrInvalidToken
	}
	id, err := parseEntityID(token.EntityID)
	if err != nil {
		return nil, err
	}
	principal, err := s.principals.FindByID(ctx, kindForRole(token.Role), id)
	if err != nil {
		return nil, err
	}
	if principal == nil {
		return nil, ErrOwnerNotFound
	}
	email, err := s.protector.Unprotect(principal.EmailCiphertext, utils.FieldEmail)
	if err != nil {
		return nil, err
	}
	return &SessionPrincipal{
		ID:           principal.ID,
		Kind:         principal.Kind,
		Name:         principal.Name,
		Email:        email,
		Role:         principal.Role,
		SchoolID:     principal.SchoolID,
		CenterNumber: principal.CenterNumber,
	}, nil
}

func (s *AuthService) createSessionAndTokens(ctx context.Context, principal *entity.Principal, meta RequestMeta) (*LoginResult, error) {
	email, err := s.protector.Unprotect(principal.EmailCiphertext, utils.FieldEmail)
	if err != nil {
		return nil, err
	}
	result, err := s.issueTokens(principal, email)
	if err != nil {
		return nil, err
	}

	session := &entity.RefreshSession{
		OwnerID:   principal.ID,
		OwnerKind: principal.Kind,
		TokenHash: utils.HashToken(result.RefreshToken),
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		ExpiresAt: result.RefreshExpiresAt,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *AuthService) issueTokens(principal *entity.Principal, email string) (*LoginResult, error) {
	now := s.now()
	authToken, err := s.tokens.Issue(utils.TokenAuth, principalClaims(principal, email), 0)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.tokens.Issue(utils.TokenRefresh, utils.Claims{
		EntityID: principal.ID.String(),
		Role:     principal.Role,
	}, 0)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		AuthToken:        authToken,
		AuthExpiresAt:    now.Add(utils.TTLFor(utils.TokenAuth)),
		RefreshToken:     refreshToken,
		RefreshExpiresAt: now.Add(utils.TTLFor(utils.TokenRefresh)),
		Principal:        *principal,
		Email:            email,
	}, nil
}

func (s *AuthService) now() time.Time {
	if s.clock == nil {
		return RealClock{}.Now()
	}
	return s.clock.Now()
}
