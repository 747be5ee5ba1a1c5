package store

import "context"

// ExecForTest runs raw SQL inside a transaction.
func ExecForTest(ctx context.Context, tx *Tx, query string) error {
	_, err := tx.tx.ExecContext(ctx, query)
	return err
}
