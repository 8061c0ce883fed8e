package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
	"github.com/pterm/pterm"
)

func init() {
	goose.AddMigrationNoTxContext(upWebhookEventIndexes, downWebhookEventIndexes)
}

func upWebhookEventIndexes(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		// The ledger claim relies on this constraint, ON CONFLICT (event_id) needs it.
		`CREATE UNIQUE INDEX CONCURRENTLY IF NOT EXISTS idx_stripe_webhook_events_event_id
		   ON stripe_webhook_events(event_id);`,

		`CREATE INDEX CONCURRENTLY IF NOT EXISTS idx_stripe_webhook_events_type_received
		   ON stripe_webhook_events(event_type, received_at);`,
	}

	if err := execAll(ctx, db, "upWebhookEventIndexes", stmts); err != nil {
		return err
	}
	pterm.DefaultLogger.Info("webhook_event_indexes: all indexes ensured.")
	return nil
}

func downWebhookEventIndexes(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`DROP INDEX CONCURRENTLY IF EXISTS idx_stripe_webhook_events_type_received;`,
		`DROP INDEX CONCURRENTLY IF EXISTS idx_stripe_webhook_events_event_id;`,
	}

	if err := execAll(ctx, db, "downWebhookEventIndexes", stmts); err != nil {
		return err
	}
	pterm.DefaultLogger.Info("webhook_event_indexes: all indexes dropped.")
	return nil
}
