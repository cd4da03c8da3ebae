package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"schoolportal/internal/entity"
	"schoolportal/internal/repository"
	"schoolportal/internal/utils"

	"github.com/google/uuid"
)

const defaultRevokeReason = "revoked by operator"

// VerificationService redeems, reissues and revokes email verification tokens.
type VerificationService struct {
	principals repository.PrincipalRepository
	records    repository.VerificationRecordRepository
	tx         repository.Transactor
	tokens     *utils.TokenManager
	protector  *utils.Protector
	audit      *AuditRecorder
	clock      Clock
	issuer     oneTimeIssuer
}

func NewVerificationService(
	principals repository.PrincipalRepository,
	records repository.VerificationRecordRepository,
	tx repository.Transactor,
	tokens *utils.TokenManager,
	protector *utils.Protector,
	mailer Mailer,
	audit *AuditRecorder,
	clock Clock,
	config AuthConfig,
) *VerificationService {
	return &VerificationService{
		principals: principals,
		records:    records,
		tx:         tx,
		tokens:     tokens,
		protector:  protector,
		audit:      audit,
		clock:      clock,
		issuer: oneTimeIssuer{
			tokens:  tokens,
			records: records,
			mailer:  mailer,
			clock:   clock,
			config:  config,
		},
	}
}

// VerifyEmail redeems an email verification token. The token's subject must match any
// owner id supplied by the caller, the owner must exist and be unverified, and the email
// in the token must hash to the owner's stored email hash before the record is redeemed.
func (s *VerificationService) VerifyEmail(ctx context.Context, input VerifyEmailInput) (*VerifyEmailResult, error) {
	token := strings.TrimSpace(input.Token)
	if token == "" {
		return nil, ErrInvalidInput
	}

	claims, err := s.tokens.Verify(token, utils.TokenEmailVerification)
	if err != nil {
		s.recordFailure(ctx, nil, input.RequestMeta, err)
		return nil, err
	}
	kind := entity.OwnerKind(claims.VerifyType)
	if !kind.Valid() || !ownerIDMatches(input, kind, claims.EntityID) {
		s.recordFailure(ctx, nil, input.RequestMeta, ErrInvalidToken)
		return nil, ErrInvalidToken
	}
	ownerID, err := parseEntityID(claims.EntityID)
	if err != nil {
		return nil, err
	}

	principal, err := s.principals.FindByID(ctx, kind, ownerID)
	if err != nil {
		return nil, err
	}
	if principal == nil {
		return nil, ErrOwnerNotFound
	}
	owner := principal.Ref()
	if principal.EmailVerified {
		return nil, ErrAlreadyVerified
	}
	if !matchesEmailHash(s.protector, claims.Email, principal) {
		s.recordFailure(ctx, &owner, input.RequestMeta, ErrInvalidToken)
		return nil, ErrInvalidToken
	}
	email, err := s.protector.Unprotect(principal.EmailCiphertext, utils.FieldEmail)
	if err != nil {
		return nil, err
	}

	now := s.now()
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.records.Redeem(ctx, owner, entity.EmailVerificationTypeFor(kind), token, now); err != nil {
			return err
		}
		return s.principals.MarkEmailVerified(ctx, owner, now)
	})
	if errors.Is(err, repository.ErrPrincipalNotFound) {
		return nil, ErrOwnerNotFound
	}
	if err != nil {
		s.recordFailure(ctx, &owner, input.RequestMeta, err)
		return nil, err
	}

	s.audit.Record(ctx, AuditEvent{
		Subject:   &owner.ID,
		IPAddress: input.IPAddress,
		Action:    entity.EmailVerified,
		Metadata:  map[string]any{"kind": kind},
	})
	return &VerifyEmailResult{Kind: kind, Email: email}, nil
}

// ResendVerification supersedes any pending verification for the matching owner with a
// freshly issued token and mails it. Verified owners are reissued too; redeeming such a
// token reports ErrAlreadyVerified.
func (s *VerificationService) ResendVerification(ctx context.Context, input ResendVerificationInput) error {
	kind, err := parseOwnerKind(input.Type)
	if err != nil {
		return err
	}
	if strings.TrimSpace(input.Login) == "" {
		return ErrInvalidInput
	}

	principal, err := findByLogin(ctx, s.principals, s.protector, kind, input.Login)
	if err != nil {
		return err
	}
	if principal == nil {
		return ErrOwnerNotFound
	}
	return s.SendVerification(ctx, principal, input.RequestMeta)
}

// SendVerification issues and mails a verification token for an already loaded owner.
func (s *VerificationService) SendVerification(ctx context.Context, principal *entity.Principal, meta RequestMeta) error {
	email, err := s.protector.Unprotect(principal.EmailCiphertext, utils.FieldEmail)
	if err != nil {
		return err
	}
	record, err := s.issuer.issueAndSend(ctx, oneTimeRequest{
		principal:  principal,
		email:      email,
		tokenType:  utils.TokenEmailVerification,
		recordType: entity.EmailVerificationTypeFor(principal.Kind),
		template:   TemplateEmailVerification,
		meta:       meta,
	})
	if err != nil {
		return err
	}

	s.audit.Record(ctx, AuditEvent{
		Subject:   &principal.ID,
		IPAddress: meta.IPAddress,
		Action:    entity.VerificationIssued,
		Metadata: map[string]any{
			"record_id":  record.ID,
			"type":       record.Type,
			"expires_at": record.ExpiresAt,
		},
	})
	return nil
}

// RevokeToken moves the PENDING record carrying token to REVOKED and returns how many
// records changed. Nothing pending for the token is reported as repository.ErrRecordNotFound.
func (s *VerificationService) RevokeToken(ctx context.Context, input RevokeTokenInput) (int64, error) {
	token := strings.TrimSpace(input.Token)
	if token == "" {
		return 0, ErrInvalidInput
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		reason = defaultRevokeReason
	}

	count, err := s.records.Revoke(ctx, token, reason)
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, repository.ErrRecordNotFound
	}

	s.audit.Record(ctx, AuditEvent{
		Actor:     input.Actor,
		IPAddress: input.IPAddress,
		Action:    entity.TokenRevoked,
		Metadata:  map[string]any{"reason": reason, "revoked": count},
	})
	return count, nil
}

// VerificationStatus reports the latest verification record of an owner with its
// read-time status. An owner with no record yields a nil result.
func (s *VerificationService) VerificationStatus(ctx context.Context, ownerType string, ownerID string) (*VerificationStatusResult, error) {
	kind, err := parseOwnerKind(ownerType)
	if err != nil {
		return nil, err
	}
	id, err := uuid.Parse(strings.TrimSpace(ownerID))
	if err != nil {
		return nil, ErrInvalidInput
	}

	principal, err := s.principals.FindByID(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if principal == nil {
		return nil, ErrOwnerNotFound
	}
	record, err := s.records.FindLatest(ctx, principal.Ref(), entity.EmailVerificationTypeFor(kind))
	if err != nil {
		return nil, err
	}

	result := &VerificationStatusResult{EmailVerified: principal.EmailVerified}
	if record != nil {
		result.Status = record.EffectiveStatus(s.now())
		result.ExpiresAt = &record.ExpiresAt
		result.UsedAt = record.UsedAt
		result.FailureReason = record.FailureReason
	}
	return result, nil
}

func (s *VerificationService) recordFailure(ctx context.Context, subject *entity.OwnerRef, meta RequestMeta, cause error) {
	event := AuditEvent{
		IPAddress: meta.IPAddress,
		Action:    entity.VerificationFailed,
		Metadata:  map[string]any{"reason": cause.Error()},
	}
	if subject != nil {
		event.Subject = &subject.ID
	}
	s.audit.Record(ctx, event)
}

func (s *VerificationService) now() time.Time {
	if s.clock == nil {
		return RealClock{}.Now()
	}
	return s.clock.Now()
}

// ownerIDMatches rejects a request whose explicit adminId or schoolId disagrees with the
// token subject or names the other owner kind.
func ownerIDMatches(input VerifyEmailInput, kind entity.OwnerKind, entityID string) bool {
	adminID := strings.TrimSpace(input.AdminID)
	schoolID := strings.TrimSpace(input.SchoolID)
	if adminID != "" && (kind != entity.OwnerAdmin || !strings.EqualFold(adminID, entityID)) {
		return false
	}
	if schoolID != "" && (kind != entity.OwnerSchool || !strings.EqualFold(schoolID, entityID)) {
		return false
	}
	return true
}
