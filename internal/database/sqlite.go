package database

import (
	"fmt"

	"github.com/credtrack/credtrack/backend/internal/activities"
	"github.com/credtrack/credtrack/backend/internal/certificates"
	"github.com/credtrack/credtrack/backend/internal/events"
	"github.com/credtrack/credtrack/backend/internal/ledger"
	"github.com/credtrack/credtrack/backend/internal/recommendations"
	"github.com/credtrack/credtrack/backend/internal/users"
	"github.com/credtrack/credtrack/backend/internal/verification"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OpenSQLite establishes a SQLite connection and performs schema migrations.
func OpenSQLite(path string, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&activities.Activity{},
		&certificates.Certificate{},
		&ledger.CreditBalance{},
		&verification.Verification{},
		&recommendations.Recommendation{},
		&recommendations.CuratedRecommendation{},
		&events.Event{},
		&users.Profile{},
		&migrationRecord{},
	)
	if err != nil {
		return nil, err
	}

	if err := applyMigrations(db, logger); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("path", path))
	}

	return db, nil
}
