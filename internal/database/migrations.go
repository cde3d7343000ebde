package database

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/redline/internal/review"
	"github.com/MarcoPoloResearchLab/redline/internal/sessions"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationNormalizeSuggestionLabels = "2026-10-01_normalize_suggestion_labels"

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
		{name: migrationNormalizeSuggestionLabels, apply: normalizeSuggestionLabels},
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

// normalizeSuggestionLabels backfills rows written before state and category
// were required.
func normalizeSuggestionLabels(db *gorm.DB) error {
	if err := db.Model(&sessions.SuggestionRecord{}).
		Where("state = '' OR state IS NULL").
		Update("state", string(review.StatePending)).Error; err != nil {
		return err
	}
	return db.Model(&sessions.SuggestionRecord{}).
		Where("category = '' OR category IS NULL").
		Update("category", string(review.CategoryOther)).Error
}
