package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"schoolportal/config"
	"schoolportal/internal/entity"
	"schoolportal/internal/repository"
	"schoolportal/internal/service"
	"schoolportal/internal/utils"

	"github.com/sirupsen/logrus"
)

// seed creates the system super-admin that unattributed audit events are recorded against.
func main() {
	name := flag.String("name", "System", "display name of the system user")
	phone := flag.String("phone", "", "contact phone (optional)")
	password := flag.String("password", os.Getenv("SYSTEM_USER_PASSWORD"), "initial password (optional)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	logger := config.NewLogger(cfg.LogLevel, cfg.LogFormat)
	email := strings.TrimSpace(cfg.SystemUserEmail)
	if email == "" {
		logger.Fatal("SYSTEM_USER_EMAIL is required")
	}

	db, err := config.ConnectionDb(cfg)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to database")
	}
	if err := repository.AutoMigrate(db); err != nil {
		logger.WithError(err).Fatal("failed to migrate database")
	}
	protector, err := utils.NewProtector([]byte(cfg.DataProtectionKey))
	if err != nil {
		logger.WithError(err).Fatal("failed to initialise data protection")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	principals := repository.NewPrincipalRepository(db)
	hash, err := protector.SearchHash(email, utils.FieldEmail)
	if err != nil {
		logger.WithError(err).Fatal("invalid system user email")
	}
	existing, err := principals.FindByEmailHash(ctx, entity.OwnerAdmin, hash)
	if err != nil {
		logger.WithError(err).Fatal("failed to look up system user")
	}
	if existing != nil {
		fmt.Printf("system user already exists: %s\n", existing.ID)
		return
	}

	protected, err := protector.Protect(email, utils.FieldEmail)
	if err != nil {
		logger.WithError(err).Fatal("failed to protect email")
	}
	now := time.Now().UTC()
	admin := &entity.AdminUser{
		Name:            *name,
		EmailCiphertext: protected.Ciphertext,
		EmailHash:       protected.SearchHash,
		Role:            entity.AdminRoleSuperAdmin,
		EmailVerified:   true,
		EmailVerifiedAt: &now,
		IsActive:        true,
	}
	if strings.TrimSpace(*phone) != "" {
		protectedPhone, err := protector.Protect(*phone, utils.FieldPhone)
		if err != nil {
			logger.WithError(err).Fatal("failed to protect phone")
		}
		admin.PhoneCiphertext = &protectedPhone.Ciphertext
		admin.PhoneHash = &protectedPhone.SearchHash
	}
	if *password != "" {
		hashed, err := service.BcryptPasswordHasher{}.Hash(*password)
		if err != nil {
			logger.WithError(err).Fatal("failed to hash password")
		}
		admin.PasswordHash = &hashed
	}
	if err := principals.CreateAdmin(ctx, admin); err != nil {
		logger.WithError(err).Fatal("failed to create system user")
	}
	fmt.Printf("✓ system user created: %s\n", admin.ID)
}
