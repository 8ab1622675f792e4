// Package mock builds a throwaway in-memory accounts database for
// tests and local development.
package mock

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	applog "darkhaven/internal/log"
	"darkhaven/models"
)

// New returns an in-memory sqlite database seeded with a community
// admin and a regular member. Each call gets its own database.
func New(ctx context.Context) (*gorm.DB, error) {
	applog.Debug(ctx, "initialising mock database")

	dsn := fmt.Sprintf("file:darkhaven-mock-%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		PrepareStmt:                              true,
		SkipDefaultTransaction:                   true,
		DisableForeignKeyConstraintWhenMigrating: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&models.Account{}); err != nil {
		return nil, err
	}

	if err := seed(ctx, db); err != nil {
		return nil, err
	}

	applog.Debug(ctx, "mock database ready")
	return db, nil
}

func seed(ctx context.Context, db *gorm.DB) error {
	applog.Debug(ctx, "seeding mock database")

	password, err := bcrypt.GenerateFromPassword([]byte("haven"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	accounts := []models.Account{
		{
			Username:     "warden",
			PasswordHash: string(password),
			Email:        "warden@darkhaven.example",
			IsAdmin:      true,
			Bio:          "Keeper of the haven.",
			Level:        10,
			Experience:   4200,
			OnlineStatus: models.StatusOnline,
		},
		{
			Username:     "drifter",
			PasswordHash: string(password),
			Email:        "drifter@darkhaven.example",
			Bio:          "Just passing through the void.",
			Level:        2,
			Experience:   150,
			OnlineStatus: models.StatusOffline,
		},
	}

	for i := range accounts {
		if err := db.WithContext(ctx).Create(&accounts[i]).Error; err != nil {
			return err
		}
	}

	return nil
}
