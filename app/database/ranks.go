package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// rankedTable describes rows that carry a dense 0-based position within a scope.
// Positions are only ever changed through these helpers so that every scope
// stays numbered 0..N-1.
type rankedTable struct {
	table string
	scope string
}

var (
	subscriptionRanks = rankedTable{table: "subscriptions", scope: "user_name"}
	linkRanks         = rankedTable{table: "subscription_links", scope: "subscription_id"}
)

// next returns the position a newly appended row must take.
func (r rankedTable) next(ctx context.Context, tx *sql.Tx, scopeValue any) (int, error) {
	var count int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = ?", r.table, r.scope)
	if err := tx.QueryRowContext(ctx, query, scopeValue).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", r.table, err)
	}
	return count, nil
}

// repack renumbers the scope 0..N-1 keeping the current relative order.
func (r rankedTable) repack(ctx context.Context, tx *sql.Tx, scopeValue any) error {
	query := fmt.Sprintf("SELECT id, position FROM %s WHERE %s = ? ORDER BY position, id", r.table, r.scope)
	rows, err := tx.QueryContext(ctx, query, scopeValue)
	if err != nil {
		return fmt.Errorf("failed to list %s positions: %w", r.table, err)
	}

	type entry struct {
		id       int64
		position int
	}
	var entries []entry
	for rows.Next() {
		var e entry
		if err := rows.Scan(&e.id, &e.position); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan %s position: %w", r.table, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("error iterating %s positions: %w", r.table, err)
	}
	rows.Close()

	update := fmt.Sprintf("UPDATE %s SET position = ? WHERE id = ?", r.table)
	for i, e := range entries {
		if e.position == i {
			continue
		}
		if _, err := tx.ExecContext(ctx, update, i, e.id); err != nil {
			return fmt.Errorf("failed to renumber %s: %w", r.table, err)
		}
	}

	return nil
}

// move takes the row at oldPosition to newPosition, shifting the rows in
// between by one. newPosition past the end is clamped to the last slot.
func (r rankedTable) move(ctx context.Context, tx *sql.Tx, scopeValue any, oldPosition, newPosition int) error {
	count, err := r.next(ctx, tx, scopeValue)
	if err != nil {
		return err
	}
	if oldPosition >= count {
		return ErrNotFound
	}
	if newPosition >= count {
		newPosition = count - 1
	}
	if oldPosition == newPosition {
		return nil
	}

	var id int64
	query := fmt.Sprintf("SELECT id FROM %s WHERE %s = ? AND position = ?", r.table, r.scope)
	err = tx.QueryRowContext(ctx, query, scopeValue, oldPosition).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get %s at position %d: %w", r.table, oldPosition, err)
	}

	var shift string
	var args []any
	if oldPosition > newPosition {
		shift = fmt.Sprintf("UPDATE %s SET position = position + 1 WHERE %s = ? AND position >= ? AND position <= ?", r.table, r.scope)
		args = []any{scopeValue, newPosition, oldPosition - 1}
	} else {
		shift = fmt.Sprintf("UPDATE %s SET position = position - 1 WHERE %s = ? AND position >= ? AND position <= ?", r.table, r.scope)
		args = []any{scopeValue, oldPosition + 1, newPosition}
	}
	if _, err := tx.ExecContext(ctx, shift, args...); err != nil {
		return fmt.Errorf("failed to shift %s positions: %w", r.table, err)
	}

	update := fmt.Sprintf("UPDATE %s SET position = ? WHERE id = ?", r.table)
	if _, err := tx.ExecContext(ctx, update, newPosition, id); err != nil {
		return fmt.Errorf("failed to move %s: %w", r.table, err)
	}

	return nil
}

// inTx runs fn in a transaction, rolling back on error.
func inTx(ctx context.Context, db *DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
