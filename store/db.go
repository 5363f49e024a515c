package store

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/aluiziolira/go-price-tracker/models"
)

const connectAttempts = 5

// Connect opens the Postgres database and migrates the schema. The
// database container may still be starting up when the tracker boots,
// so failed connections are retried with a growing pause.
func Connect(dsn string) (*gorm.DB, error) {
	var db *gorm.DB
	var err error

	for attempt := 1; attempt <= connectAttempts; attempt++ {
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err == nil {
			if sqlDB, poolErr := db.DB(); poolErr == nil {
				sqlDB.SetMaxOpenConns(25)
				sqlDB.SetMaxIdleConns(5)
				sqlDB.SetConnMaxLifetime(5 * time.Minute)
			}

			if err := db.AutoMigrate(&models.Product{}, &models.PriceHistory{}); err != nil {
				return nil, fmt.Errorf("migrate schema: %w", err)
			}
			return db, nil
		}

		slog.Warn("database connection failed, retrying",
			slog.Int("attempt", attempt),
			slog.Any("error", err),
		)
		time.Sleep(time.Duration(attempt) * 2 * time.Second)
	}

	return nil, fmt.Errorf("connect to postgres after %d attempts: %w", connectAttempts, err)
}
