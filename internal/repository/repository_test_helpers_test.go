package repository

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"schoolportal/internal/entity"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testNow = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func newRepositoryDBForTest(t *testing.T) *gorm.DB {
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

	require.NoError(t, AutoMigrate(db))
	return db
}

func seedSchoolForTest(t *testing.T, db *gorm.DB, centerNumber string) *entity.School {
	t.Helper()
	school := &entity.School{
		Name:            "Center " + centerNumber,
		CenterNumber:    centerNumber,
		EmailCiphertext: "ciphertext-" + centerNumber,
		EmailHash:       "email-hash-" + centerNumber,
		IsActive:        true,
	}
	require.NoError(t, NewPrincipalRepository(db).CreateSchool(t.Context(), school))
	return school
}

func seedAdminForTest(t *testing.T, db *gorm.DB, emailHash string) *entity.AdminUser {
	t.Helper()
	admin := &entity.AdminUser{
		Name:            "Admin " + emailHash,
		EmailCiphertext: "ciphertext-" + emailHash,
		EmailHash:       emailHash,
		Role:            entity.AdminRoleAdmin,
		IsActive:        true,
	}
	require.NoError(t, NewPrincipalRepository(db).CreateAdmin(t.Context(), admin))
	return admin
}
