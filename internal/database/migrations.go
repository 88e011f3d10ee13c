package database

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/santa/internal/santa"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationClearOrphanParticipants = "2026-10-01_clear_orphan_participants"

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
		{name: migrationClearOrphanParticipants, apply: clearOrphanParticipants},
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

// clearOrphanParticipants removes enrollments left behind by guild records
// deleted outside a reset.
func clearOrphanParticipants(db *gorm.DB) error {
	guilds := db.Model(&santa.GuildEvent{}).Select("guild_id")
	return db.Where("guild_id NOT IN (?)", guilds).Delete(&santa.Participant{}).Error
}
