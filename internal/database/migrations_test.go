package database

import (
	"path/filepath"
	"testing"

	"github.com/MarcoPoloResearchLab/santa/internal/santa"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestApplyMigrationsClearsOrphanParticipants(testContext *testing.T) {
	tempDir := testContext.TempDir()
	databasePath := filepath.Join(tempDir, "migration.db")

	database, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}

	if err := database.AutoMigrate(&santa.GuildEvent{}, &santa.Participant{}, &migrationRecord{}); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}

	guild := santa.GuildEvent{GuildID: "guild-kept", RoundID: "round-1", State: santa.StateStarted, CreatedAtSeconds: 1, UpdatedAtSeconds: 1}
	if err := database.Create(&guild).Error; err != nil {
		testContext.Fatalf("failed to insert guild: %v", err)
	}
	participants := []santa.Participant{
		{GuildID: "guild-kept", RecipientID: "alice", JoinedAtSeconds: 1},
		{GuildID: "guild-gone", RecipientID: "bob", JoinedAtSeconds: 1},
	}
	if err := database.Create(&participants).Error; err != nil {
		testContext.Fatalf("failed to insert participants: %v", err)
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed to apply migrations: %v", err)
	}

	var remaining []santa.Participant
	if err := database.Order("guild_id ASC").Find(&remaining).Error; err != nil {
		testContext.Fatalf("failed to reload participants: %v", err)
	}
	if len(remaining) != 1 || remaining[0].GuildID != "guild-kept" {
		testContext.Fatalf("expected only the participant of an existing guild to remain, got %#v", remaining)
	}

	var record migrationRecord
	if err := database.Where("name = ?", migrationClearOrphanParticipants).Take(&record).Error; err != nil {
		testContext.Fatalf("expected migration record to be created: %v", err)
	}
	if record.AppliedAtSeconds == 0 {
		testContext.Fatalf("expected migration timestamp to be set")
	}

	orphan := santa.Participant{GuildID: "guild-gone", RecipientID: "carol", JoinedAtSeconds: 2}
	if err := database.Create(&orphan).Error; err != nil {
		testContext.Fatalf("failed to insert participant: %v", err)
	}
	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed to reapply migrations: %v", err)
	}
	var count int64
	if err := database.Model(&santa.Participant{}).Where("guild_id = ?", "guild-gone").Count(&count).Error; err != nil {
		testContext.Fatalf("failed to count participants: %v", err)
	}
	if count != 1 {
		testContext.Fatalf("expected applied migration to be skipped, got %d orphan rows", count)
	}
}

func TestOpenSQLiteMigratesSchema(testContext *testing.T) {
	databasePath := filepath.Join(testContext.TempDir(), "santa.db")
	database, err := Open(Options{Driver: DriverSQLite, Path: databasePath}, zap.NewNop())
	if err != nil {
		testContext.Fatalf("failed to open database: %v", err)
	}
	for _, model := range Models() {
		if !database.Migrator().HasTable(model) {
			testContext.Fatalf("expected table for %T", model)
		}
	}
}

func TestOpenRejectsUnknownDriver(testContext *testing.T) {
	if _, err := Open(Options{Driver: "mysql"}, nil); err == nil {
		testContext.Fatalf("expected unsupported driver error")
	}
	if _, err := Open(Options{Driver: DriverPostgres}, nil); err == nil {
		testContext.Fatalf("expected missing dsn error")
	}
	if _, err := Open(Options{Driver: DriverSQLite}, nil); err == nil {
		testContext.Fatalf("expected missing path error")
	}
}
