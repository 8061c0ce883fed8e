package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
	"github.com/pterm/pterm"
)

func init() {
	goose.AddMigrationNoTxContext(upBillingLookupIndexes, downBillingLookupIndexes)
}

func upBillingLookupIndexes(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		// Resolver fallbacks match correlation keys with metadata @> '{...}'
		`CREATE INDEX CONCURRENTLY IF NOT EXISTS idx_payment_requests_metadata
		   ON payment_requests USING gin (metadata jsonb_path_ops);`,

		// Sweep sources; terminal statuses are never scanned
		`CREATE INDEX CONCURRENTLY IF NOT EXISTS idx_subscriptions_trial_end
		   ON subscriptions(trial_end)
		   WHERE status = 'trialing';`,

		`CREATE INDEX CONCURRENTLY IF NOT EXISTS idx_subscriptions_period_end
		   ON subscriptions(status, current_period_end)
		   WHERE status IN ('active', 'past_due');`,

		// Customer fallback: the org's live subscription
		`CREATE INDEX CONCURRENTLY IF NOT EXISTS idx_subscriptions_org_live
		   ON subscriptions(org_id, created_at DESC)
		   WHERE status IN ('active', 'trialing', 'past_due');`,
	}

	if err := execAll(ctx, db, "upBillingLookupIndexes", stmts); err != nil {
		return err
	}
	pterm.DefaultLogger.Info("billing_lookup_indexes: all indexes ensured.")
	return nil
}

func downBillingLookupIndexes(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`DROP INDEX CONCURRENTLY IF EXISTS idx_subscriptions_org_live;`,
		`DROP INDEX CONCURRENTLY IF EXISTS idx_subscriptions_period_end;`,
		`DROP INDEX CONCURRENTLY IF EXISTS idx_subscriptions_trial_end;`,
		`DROP INDEX CONCURRENTLY IF EXISTS idx_payment_requests_metadata;`,
	}

	if err := execAll(ctx, db, "downBillingLookupIndexes", stmts); err != nil {
		return err
	}
	pterm.DefaultLogger.Info("billing_lookup_indexes: all indexes dropped.")
	return nil
}
