package repository

import (
	"context"
	"errors"
	"time"

	"schoolportal/internal/entity"

	"gorm.io/gorm"
)

type IssueParams struct {
	Owner     entity.OwnerRef
	Type      entity.VerificationType
	Token     string
	EmailHash string
	TTL       time.Duration
	Now       time.Time
	IPAddress *string
	UserAgent *string
}

// VerificationRecordRepository persists one-time tokens. The single-PENDING and
// exactly-once guarantees live in the SQL it issues, never in read-then-write logic.
type VerificationRecordRepository interface {
	IssueFor(ctx context.Context, params IssueParams) (*entity.VerificationRecord, error)
	Redeem(ctx context.Context, owner entity.OwnerRef, recordType entity.VerificationType, token string, now time.Time) error
	Revoke(ctx context.Context, token string, reason string) (int64, error)
	FindLatest(ctx context.Context, owner entity.OwnerRef, recordType entity.VerificationType) (*entity.VerificationRecord, error)
}

type verificationRecordRepository struct {
	db *gorm.DB
}

func NewVerificationRecordRepository(db *gorm.DB) VerificationRecordRepository {
	return &verificationRecordRepository{db: db}
}

// IssueFor deletes any PENDING record for the owner and type, then inserts a fresh
// PENDING record, in one transaction.
func (r *verificationRecordRepository) IssueFor(ctx context.Context, params IssueParams) (*entity.VerificationRecord, error) {
	if !params.Owner.Kind.Valid() {
		return nil, ErrInvalidOwnerKind
	}
	record := &entity.VerificationRecord{
		OwnerID:   params.Owner.ID,
		OwnerKind: params.Owner.Kind,
		EmailHash: params.EmailHash,
		Token:     params.Token,
		Type:      params.Type,
		Status:    entity.VerificationPending,
		ExpiresAt: params.Now.Add(params.TTL),
		IPAddress: params.IPAddress,
		UserAgent: params.UserAgent,
	}

	err := conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		err := tx.
			Where("owner_id = ? AND type = ? AND status = ?", params.Owner.ID, params.Type, entity.VerificationPending).
			Delete(&entity.VerificationRecord{}).
			Error
		if err != nil {
			return err
		}
		return tx.Create(record).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, ErrRecordConflict
	}
	if err != nil {
		return nil, storeError(err)
	}
	return record, nil
}

// Redeem moves the matching live PENDING record to VERIFIED with one conditional
// update. When nothing matched, the record is read back only to explain why.
func (r *verificationRecordRepository) Redeem(
	ctx context.Context,
	owner entity.OwnerRef,
	recordType entity.VerificationType,
	token string,
	now time.Time,
) error {
	db := conn(ctx, r.db)
	result := db.
		Model(&entity.VerificationRecord{}).
		Where(`
			owner_id = ? AND
			owner_kind = ? AND
			type = ? AND
			token = ? AND
			status = ? AND
			expires_at > ?
		`, owner.ID, owner.Kind, recordType, token, entity.VerificationPending, now).
		Updates(map[string]any{
			"status":     entity.VerificationVerified,
			"used":       true,
			"used_at":    now,
			"updated_at": now,
		})
	if result.Error != nil {
		return storeError(result.Error)
	}
	if result.RowsAffected == 1 {
		return nil
	}

	var record entity.VerificationRecord
	err := db.
		Where("owner_id = ? AND owner_kind = ? AND type = ? AND token = ?", owner.ID, owner.Kind, recordType, token).
		Order("created_at DESC").
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrRecordNotFound
	}
	if err != nil {
		return storeError(err)
	}

	switch record.EffectiveStatus(now) {
	case entity.VerificationVerified:
		return ErrRecordAlreadyUsed
	case entity.VerificationExpired:
		return ErrRecordExpired
	default:
		return ErrRecordNotFound
	}
}

// Revoke marks every PENDING record carrying token as REVOKED and reports how many
// rows changed.
func (r *verificationRecordRepository) Revoke(ctx context.Context, token string, reason string) (int64, error) {
	result := conn(ctx, r.db).
		Model(&entity.VerificationRecord{}).
		Where("token = ? AND status = ?", token, entity.VerificationPending).
		Updates(map[string]any{
			"status":         entity.VerificationRevoked,
			"failure_reason": reason,
		})
	if result.Error != nil {
		return 0, storeError(result.Error)
	}
	return result.RowsAffected, nil
}

func (r *verificationRecordRepository) FindLatest(
	ctx context.Context,
	owner entity.OwnerRef,
	recordType entity.VerificationType,
) (*entity.VerificationRecord, error) {
	var record entity.VerificationRecord
	err := conn(ctx, r.db).
		Where("owner_id = ? AND owner_kind = ? AND type = ?", owner.ID, owner.Kind, recordType).
		Order("created_at DESC").
		First(&record).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError(err)
	}
	return &record, nil
}
