package db

import (
	"fmt"

	types "github.com/tenxcards/tenxcards-backend/internal/domain"
	"gorm.io/gorm"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		// Flashcards
		&types.Card{},
		&types.CardSet{},
		&types.CardToSet{},

		// Generation workflow
		&types.Generation{},
		&types.GeneratedCard{},

		// Jobs / worker
		&types.JobRun{},
	)
}

// EnsureIndexes creates the partial indexes AutoMigrate cannot express.
// The statements are valid for both Postgres and SQLite.
func EnsureIndexes(db *gorm.DB) error {
	stmts := []struct {
		name string
		sql  string
	}{
		{
			name: "idx_card_set_user_name_live",
			sql: `CREATE UNIQUE INDEX IF NOT EXISTS idx_card_set_user_name_live
				ON card_set(user_id, name) WHERE is_deleted = false;`,
		},
		{
			name: "idx_card_user_live_created",
			sql: `CREATE INDEX IF NOT EXISTS idx_card_user_live_created
				ON card(user_id, created_at) WHERE is_deleted = false;`,
		},
		{
			name: "idx_job_run_runnable",
			sql: `CREATE INDEX IF NOT EXISTS idx_job_run_runnable
				ON job_run(status, created_at);`,
		},
	}
	for _, s := range stmts {
		if err := db.Exec(s.sql).Error; err != nil {
			return fmt.Errorf("create %s: %w", s.name, err)
		}
	}
	return nil
}
