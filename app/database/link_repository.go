package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// querier is satisfied by both *DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// LinkStore handles source links and the subscription bindings that point at them.
// Source links are created lazily and never deleted.
type LinkStore struct {
	db *DB
}

func NewLinkStore(db *DB) *LinkStore {
	return &LinkStore{db: db}
}

// GetOrCreateSourceLink returns the source link for url, creating it if needed.
// The boolean reports whether a new row was inserted.
func (s *LinkStore) GetOrCreateSourceLink(ctx context.Context, url string) (*SourceLink, bool, error) {
	return getOrCreateSourceLink(ctx, s.db, url)
}

func getOrCreateSourceLink(ctx context.Context, q querier, url string) (*SourceLink, bool, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, false, fmt.Errorf("source link url is required")
	}

	res, err := q.ExecContext(ctx, `
		INSERT INTO source_links (url, created_at) VALUES (?, ?)
		ON CONFLICT (url) DO NOTHING
	`, url, formatTime(time.Now()))
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert source link: %w", err)
	}
	created, _ := res.RowsAffected()

	var link SourceLink
	var createdAt string
	err = q.QueryRowContext(ctx, `SELECT id, url, created_at FROM source_links WHERE url = ?`, url).
		Scan(&link.ID, &link.URL, &createdAt)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get source link: %w", err)
	}
	if link.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, false, err
	}

	return &link, created > 0, nil
}

const subscriptionLinkColumns = `sl.id, sl.subscription_id, sl.source_link_id, src.url, sl.reg_exp, sl.position`

func scanSubscriptionLink(row rowScanner) (*SubscriptionLink, error) {
	var link SubscriptionLink
	if err := row.Scan(&link.ID, &link.SubscriptionID, &link.SourceLinkID, &link.URL, &link.RegExp, &link.Position); err != nil {
		return nil, err
	}
	return &link, nil
}

func listSubscriptionLinks(ctx context.Context, q querier, subscriptionID int64) ([]SubscriptionLink, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+subscriptionLinkColumns+`
		FROM subscription_links sl
		JOIN source_links src ON src.id = sl.source_link_id
		WHERE sl.subscription_id = ?
		ORDER BY sl.position, sl.id`, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscription links: %w", err)
	}
	defer rows.Close()

	var links []SubscriptionLink
	for rows.Next() {
		link, err := scanSubscriptionLink(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription link: %w", err)
		}
		links = append(links, *link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subscription links: %w", err)
	}

	return links, nil
}

func insertSubscriptionLink(ctx context.Context, tx *sql.Tx, subscriptionID int64, url, regExp string) (int64, error) {
	src, _, err := getOrCreateSourceLink(ctx, tx, url)
	if err != nil {
		return 0, err
	}

	position, err := linkRanks.next(ctx, tx, subscriptionID)
	if err != nil {
		return 0, err
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO subscription_links (subscription_id, source_link_id, reg_exp, position)
		VALUES (?, ?, ?, ?)
	`, subscriptionID, src.ID, regExp, position)
	if err != nil {
		return 0, fmt.Errorf("failed to insert subscription link: %w", err)
	}

	return res.LastInsertId()
}

func (s *LinkStore) ListSubscriptionLinks(ctx context.Context, subscriptionID int64) ([]SubscriptionLink, error) {
	return listSubscriptionLinks(ctx, s.db, subscriptionID)
}

func (s *LinkStore) GetSubscriptionLink(ctx context.Context, subscriptionID int64, position int) (*SubscriptionLink, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+subscriptionLinkColumns+`
		FROM subscription_links sl
		JOIN source_links src ON src.id = sl.source_link_id
		WHERE sl.subscription_id = ? AND sl.position = ?`, subscriptionID, position)

	link, err := scanSubscriptionLink(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription link: %w", err)
	}
	return link, nil
}

// CreateSubscriptionLink appends a new binding to the end of the subscription's links.
func (s *LinkStore) CreateSubscriptionLink(ctx context.Context, subscriptionID int64, url, regExp string) (*SubscriptionLink, error) {
	var position int
	err := inTx(ctx, s.db, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM subscriptions WHERE id = ?`, subscriptionID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to check subscription: %w", err)
		}

		id, err := insertSubscriptionLink(ctx, tx, subscriptionID, url, regExp)
		if err != nil {
			return err
		}
		return tx.QueryRowContext(ctx, `SELECT position FROM subscription_links WHERE id = ?`, id).Scan(&position)
	})
	if err != nil {
		return nil, err
	}

	return s.GetSubscriptionLink(ctx, subscriptionID, position)
}

// UpdateSubscriptionLink repoints the binding at position to url and replaces its filter.
func (s *LinkStore) UpdateSubscriptionLink(ctx context.Context, subscriptionID int64, position int, url, regExp string) (*SubscriptionLink, error) {
	err := inTx(ctx, s.db, func(tx *sql.Tx) error {
		src, _, err := getOrCreateSourceLink(ctx, tx, url)
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE subscription_links
			SET source_link_id = ?, reg_exp = ?
			WHERE subscription_id = ? AND position = ?
		`, src.ID, regExp, subscriptionID, position)
		if err != nil {
			return fmt.Errorf("failed to update subscription link: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetSubscriptionLink(ctx, subscriptionID, position)
}

// DeleteSubscriptionLink removes the binding at position and renumbers the rest.
func (s *LinkStore) DeleteSubscriptionLink(ctx context.Context, subscriptionID int64, position int) error {
	return inTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM subscription_links WHERE subscription_id = ? AND position = ?
		`, subscriptionID, position)
		if err != nil {
			return fmt.Errorf("failed to delete subscription link: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return linkRanks.repack(ctx, tx, subscriptionID)
	})
}

// ReorderSubscriptionLinks moves the binding at oldPosition to newPosition.
func (s *LinkStore) ReorderSubscriptionLinks(ctx context.Context, subscriptionID int64, oldPosition, newPosition int) error {
	if oldPosition < 0 || newPosition < 0 {
		return fmt.Errorf("positions must not be negative")
	}
	return inTx(ctx, s.db, func(tx *sql.Tx) error {
		return linkRanks.move(ctx, tx, subscriptionID, oldPosition, newPosition)
	})
}

func (s *LinkStore) GetSourceLinkCount(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM source_links`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count source links: %w", err)
	}
	return count, nil
}
