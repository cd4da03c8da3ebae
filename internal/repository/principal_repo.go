package repository

import (
	"context"
	"errors"
	"time"

	"schoolportal/internal/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PrincipalRepository reads and updates admin users and schools through the fields the
// authentication core owns. Lookups by login go through search hashes only.
type PrincipalRepository interface {
	CreateAdmin(ctx context.Context, admin *entity.AdminUser) error
	CreateSchool(ctx context.Context, school *entity.School) error
	FindByID(ctx context.Context, kind entity.OwnerKind, id uuid.UUID) (*entity.Principal, error)
	FindByEmailHash(ctx context.Context, kind entity.OwnerKind, hash string) (*entity.Principal, error)
	FindByPhoneHash(ctx context.Context, kind entity.OwnerKind, hash string) (*entity.Principal, error)
	MarkEmailVerified(ctx context.Context, owner entity.OwnerRef, at time.Time) error
	UpdatePasswordHash(ctx context.Context, owner entity.OwnerRef, hash string) error
}

type principalRepository struct {
	db *gorm.DB
}

func NewPrincipalRepository(db *gorm.DB) PrincipalRepository {
	return &principalRepository{db: db}
}

func (r *principalRepository) CreateAdmin(ctx context.Context, admin *entity.AdminUser) error {
	return storeError(conn(ctx, r.db).Create(admin).Error)
}

func (r *principalRepository) CreateSchool(ctx context.Context, school *entity.School) error {
	return storeError(conn(ctx, r.db).Create(school).Error)
}

func (r *principalRepository) FindByID(ctx context.Context, kind entity.OwnerKind, id uuid.UUID) (*entity.Principal, error) {
	return r.find(ctx, kind, "id = ?", id)
}

func (r *principalRepository) FindByEmailHash(ctx context.Context, kind entity.OwnerKind, hash string) (*entity.Principal, error) {
	return r.find(ctx, kind, "email_hash = ?", hash)
}

func (r *principalRepository) FindByPhoneHash(ctx context.Context, kind entity.OwnerKind, hash string) (*entity.Principal, error) {
	return r.find(ctx, kind, "phone_hash = ?", hash)
}

func (r *principalRepository) MarkEmailVerified(ctx context.Context, owner entity.OwnerRef, at time.Time) error {
	return r.update(ctx, owner, map[string]any{
		"email_verified":    true,
		"email_verified_at": at,
	})
}

func (r *principalRepository) UpdatePasswordHash(ctx context.Context, owner entity.OwnerRef, hash string) error {
	return r.update(ctx, owner, map[string]any{"password_hash": hash})
}

func (r *principalRepository) find(ctx context.Context, kind entity.OwnerKind, query string, arg any) (*entity.Principal, error) {
	db := conn(ctx, r.db).Where(query, arg).Where("is_active = ?", true)

	switch kind {
	case entity.OwnerAdmin:
		var admin entity.AdminUser
		err := db.First(&admin).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, storeError(err)
		}
		principal := admin.Principal()
		return &principal, nil
	case entity.OwnerSchool:
		var school entity.School
		err := db.First(&school).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, storeError(err)
		}
		principal := school.Principal()
		return &principal, nil
	}
	return nil, ErrInvalidOwnerKind
}

func (r *principalRepository) update(ctx context.Context, owner entity.OwnerRef, values map[string]any) error {
	model, err := principalModel(owner.Kind)
	if err != nil {
		return err
	}
	result := conn(ctx, r.db).
		Model(model).
		Where("id = ?", owner.ID).
		Updates(values)
	if result.Error != nil {
		return storeError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrPrincipalNotFound
	}
	return nil
}

func principalModel(kind entity.OwnerKind) (any, error) {
	switch kind {
	case entity.OwnerAdmin:
		return &entity.AdminUser{}, nil
	case entity.OwnerSchool:
		return &entity.School{}, nil
	}
	return nil, ErrInvalidOwnerKind
}
