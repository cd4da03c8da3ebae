package repository

import (
	"schoolportal/internal/entity"

	"gorm.io/gorm"
)

// Models lists every table owned by the authentication core.
func Models() []any {
	return []any{
		&entity.AdminUser{},
		&entity.School{},
		&entity.VerificationRecord{},
		&entity.RefreshSession{},
		&entity.SecurityLog{},
	}
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
