package repository

import (
	"context"
	"errors"
	"time"

	"schoolportal/internal/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SessionRepository interface {
	Create(ctx context.Context, session *entity.RefreshSession) error
	FindActiveByTokenHash(ctx context.Context, hash string, now time.Time) (*entity.RefreshSession, error)
	Rotate(ctx context.Context, sessionID uuid.UUID, oldHash string, newHash string, expiresAt time.Time) error
	Revoke(ctx context.Context, sessionID uuid.UUID, now time.Time) error
	RevokeAllByOwner(ctx context.Context, owner entity.OwnerRef, now time.Time) error
	CleanupExpired(ctx context.Context, now time.Time) (int64, error)
}

type sessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(ctx context.Context, s *entity.RefreshSession) error {
	return storeError(conn(ctx, r.db).Create(s).Error)
}

func (r *sessionRepository) FindActiveByTokenHash(ctx context.Context, hash string, now time.Time) (*entity.RefreshSession, error) {
	var session entity.RefreshSession
	err := conn(ctx, r.db).
		Where("token_hash = ? AND revoked_at IS NULL AND expires_at > ?", hash, now).
		First(&session).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError(err)
	}
	return &session, nil
}

// Rotate swaps the token digest only if the session still holds oldHash, so a refresh
// token replayed concurrently rotates at most once.
func (r *sessionRepository) Rotate(ctx context.Context, sessionID uuid.UUID, oldHash string, newHash string, expiresAt time.Time) error {
	result := conn(ctx, r.db).
		Model(&entity.RefreshSession{}).
		Where("id = ? AND token_hash = ? AND revoked_at IS NULL", sessionID, oldHash).
		Updates(map[string]any{
			"token_hash": newHash,
			"expires_at": expiresAt,
		})
	if result.Error != nil {
		return storeError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *sessionRepository) Revoke(ctx context.Context, sessionID uuid.UUID, now time.Time) error {
	return storeError(conn(ctx, r.db).
		Model(&entity.RefreshSession{}).
		Where("id = ? AND revoked_at IS NULL", sessionID).
		Update("revoked_at", now).
		Error)
}

func (r *sessionRepository) RevokeAllByOwner(ctx context.Context, owner entity.OwnerRef, now time.Time) error {
	return storeError(conn(ctx, r.db).
		Model(&entity.RefreshSession{}).
		Where("owner_id = ? AND owner_kind = ? AND revoked_at IS NULL", owner.ID, owner.Kind).
		Update("revoked_at", now).
		Error)
}

func (r *sessionRepository) CleanupExpired(ctx context.Context, now time.Time) (int64, error) {
	result := conn(ctx, r.db).
		Where("expires_at < ?", now).
		Delete(&entity.RefreshSession{})
	if result.Error != nil {
		return 0, storeError(result.Error)
	}
	return result.RowsAffected, nil
}
