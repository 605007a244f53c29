package database

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationBackfillCertificateProgress = "2026-08-12_backfill_certificate_progress"
	migrationLowercaseCuratedAuthority   = "2026-08-19_lowercase_curated_authority"
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationBackfillCertificateProgress, apply: backfillCertificateProgress},
		{name: migrationLowercaseCuratedAuthority, apply: lowercaseCuratedAuthority},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// backfillCertificateProgress recomputes the derived progress column for rows
// written before the ledger engine owned it.
func backfillCertificateProgress(db *gorm.DB) error {
	return db.Exec(
		"UPDATE certificates SET progress_percentage = ROUND(earned_cpes * 100.0 / required_cpes, 2) WHERE required_cpes > 0;",
	).Error
}

// lowercaseCuratedAuthority normalizes authority tags written before the
// community service started lowercasing them on submit.
func lowercaseCuratedAuthority(db *gorm.DB) error {
	return db.Exec(
		"UPDATE curated_recommendations SET target_authority = lower(target_authority);",
	).Error
}
