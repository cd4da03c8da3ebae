package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"schoolportal/internal/entity"
	"schoolportal/internal/repository"
	"schoolportal/internal/utils"

	"github.com/google/uuid"
)

type AuthConfig struct {
	AppBaseURL string
	VerifyPath string
	ResetPath  string
}

// oneTimeIssuer signs a one-time token, persists it as the owner's single PENDING record
// and mails the link.
type oneTimeIssuer struct {
	tokens  *utils.TokenManager
	records repository.VerificationRecordRepository
	mailer  Mailer
	clock   Clock
	config  AuthConfig
}

type oneTimeRequest struct {
	principal  *entity.Principal
	email      string
	tokenType  utils.TokenType
	recordType entity.VerificationType
	template   string
	meta       RequestMeta
}

func (i oneTimeIssuer) issueAndSend(ctx context.Context, req oneTimeRequest) (*entity.VerificationRecord, error) {
	claims := principalClaims(req.principal, req.email)
	if req.tokenType == utils.TokenEmailVerification {
		claims.VerifyType = string(req.principal.Kind)
	}
	token, err := i.tokens.Issue(req.tokenType, claims, 0)
	if err != nil {
		return nil, err
	}

	params := repository.IssueParams{
		Owner:     req.principal.Ref(),
		Type:      req.recordType,
		Token:     token,
		EmailHash: req.principal.EmailHash,
		TTL:       utils.TTLFor(req.tokenType),
		Now:       i.now(),
		IPAddress: req.meta.IPAddress,
		UserAgent: req.meta.UserAgent,
	}
	record, err := i.records.IssueFor(ctx, params)
	if errors.Is(err, repository.ErrRecordConflict) {
		// a concurrent issuance won the index; supersede it once
		record, err = i.records.IssueFor(ctx, params)
	}
	if err != nil {
		return nil, err
	}

	vars := map[string]string{
		"name": req.principal.Name,
		"link": i.link(req, token),
	}
	if err := i.mailer.Send(ctx, req.email, req.template, vars); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMailDelivery, err)
	}
	return record, nil
}

func (i oneTimeIssuer) link(req oneTimeRequest, token string) string {
	path := i.config.ResetPath
	query := url.Values{"token": {token}}
	if req.tokenType == utils.TokenEmailVerification {
		path = i.config.VerifyPath
		if req.principal.Kind == entity.OwnerSchool {
			query.Set("schoolId", req.principal.ID.String())
		} else {
			query.Set("adminId", req.principal.ID.String())
		}
	}
	return strings.TrimRight(i.config.AppBaseURL, "/") + path + "?" + query.Encode()
}

func (i oneTimeIssuer) now() time.Time {
	if i.clock == nil {
		return RealClock{}.Now()
	}
	return i.clock.Now()
}

func principalClaims(p *entity.Principal, email string) utils.Claims {
	claims := utils.Claims{
		EntityID:     p.ID.String(),
		Email:        email,
		Role:         p.Role,
		CenterNumber: p.CenterNumber,
	}
	if p.SchoolID != nil {
		claims.SchoolID = p.SchoolID.String()
	}
	return claims
}

func parseOwnerKind(value string) (entity.OwnerKind, error) {
	kind := entity.OwnerKind(strings.ToLower(strings.TrimSpace(value)))
	if !kind.Valid() {
		return "", ErrInvalidType
	}
	return kind, nil
}

// kindForRole recovers the owner kind from a token's role claim.
func kindForRole(role string) entity.OwnerKind {
	if role == entity.SchoolRole {
		return entity.OwnerSchool
	}
	return entity.OwnerAdmin
}

func parseEntityID(value string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return id, nil
}

// findByLogin matches a free-form login value against the email hash when it contains
// "@" and against the phone hash otherwise.
func findByLogin(
	ctx context.Context,
	principals repository.PrincipalRepository,
	protector *utils.Protector,
	kind entity.OwnerKind,
	login string,
) (*entity.Principal, error) {
	field := utils.FieldPhone
	if utils.LooksLikeEmail(login) {
		field = utils.FieldEmail
	}
	hash, err := protector.SearchHash(login, field)
	if errors.Is(err, utils.ErrInvalidInput) {
		return nil, ErrInvalidInput
	}
	if err != nil {
		return nil, err
	}
	if field == utils.FieldEmail {
		return principals.FindByEmailHash(ctx, kind, hash)
	}
	return principals.FindByPhoneHash(ctx, kind, hash)
}

// matchesEmailHash cross-checks the email carried by a token against the owner's stored hash.
func matchesEmailHash(protector *utils.Protector, email string, principal *entity.Principal) bool {
	hash, err := protector.SearchHash(email, utils.FieldEmail)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(hash), []byte(principal.EmailHash)) == 1
}
