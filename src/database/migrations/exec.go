package migrations

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pterm/pterm"
)

// execAll runs each statement in order and stops at the first failure.
func execAll(ctx context.Context, db *sql.DB, name string, stmts []string) error {
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			pterm.DefaultLogger.Error(fmt.Sprintf("migration %s failed on: %s\nerr: %v", name, s, err))
			return err
		}
		pterm.DefaultLogger.Info("Executed: " + s)
	}
	return nil
}
