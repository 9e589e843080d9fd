package database

import (
	"fmt"

	"pericias-backend/models"

	"gorm.io/gorm"
)

// MigrateTenantSchema applies (idempotent) schema migrations for a single tenant schema.
// It pins search_path to the tenant and performs:
// - AutoMigrate (tables/columns)
// - Unique idempotency-key index on message jobs (the upsert backstop)
// - Lookup indexes for provider message ids and inbound history
// - Idempotency keys table + unique index
func MigrateTenantSchema(schema string) error {
	if schema == "" {
		return fmt.Errorf("schema name is empty")
	}

	return DB.Transaction(func(tx *gorm.DB) error {
		// Pin the tenant schema for this transaction
		if err := tx.Exec(`SET search_path = "` + schema + `", public`).Error; err != nil {
			return fmt.Errorf("set search_path failed: %w", err)
		}

		// --- AutoMigrate tables/columns/index tags (non-destructive) ---
		if err := tx.AutoMigrate(
			&models.Contact{},
			&models.MessageJob{},
			&models.MessageLog{},
			&models.IdempotencyKey{},
		); err != nil {
			return fmt.Errorf("tenant automigrate failed: %w", err)
		}

		// --- Composite / helpful indexes (idempotent) ---
		indexes := []string{
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_message_jobs_idempotency_key ON message_jobs (idempotency_key)`,
			`CREATE INDEX IF NOT EXISTS idx_message_jobs_open ON message_jobs (appointment_id, status)`,
			`CREATE INDEX IF NOT EXISTS idx_message_logs_provider_msg ON message_logs (provider_msg_id)`,
			`CREATE INDEX IF NOT EXISTS idx_message_logs_inbound ON message_logs (phone, direction, created_at)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_idempotency_keys_key ON idempotency_keys (key)`,
		}
		for _, stmt := range indexes {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("index migration failed on: %s - %w", stmt, err)
			}
		}

		// --- Basic CHECK constraints (idempotent) ---
		checks := []string{
			// Job status must be one of the known states
			`DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM pg_constraint
					WHERE conrelid = 'message_jobs'::regclass
					  AND conname  = 'chk_message_jobs_status'
				) THEN
					ALTER TABLE message_jobs
					ADD CONSTRAINT chk_message_jobs_status
					CHECK (status IN ('QUEUED','PROCESSING','RETRYING','SENT','FAILED','CANCELED'));
				END IF;
			END $$;`,
			// Attempts never negative
			`DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM pg_constraint
					WHERE conrelid = 'message_jobs'::regclass
					  AND conname  = 'chk_message_jobs_attempts_nonneg'
				) THEN
					ALTER TABLE message_jobs
					ADD CONSTRAINT chk_message_jobs_attempts_nonneg
					CHECK (attempts >= 0);
				END IF;
			END $$;`,
			// Message direction is one of the three kinds
			`DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM pg_constraint
					WHERE conrelid = 'message_logs'::regclass
					  AND conname  = 'chk_message_logs_direction'
				) THEN
					ALTER TABLE message_logs
					ADD CONSTRAINT chk_message_logs_direction
					CHECK (direction IN ('outbound','inbound','status'));
				END IF;
			END $$;`,
		}
		for _, stmt := range checks {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("check constraint migration failed: %w", err)
			}
		}

		return nil
	})
}
