package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SubscriptionStore handles database operations for subscriptions
type SubscriptionStore struct {
	db *DB
}

func NewSubscriptionStore(db *DB) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

const subscriptionColumns = `
	s.id, s.user_name, s.name, s.post_limit, s.position, s.fav_icon, s.created_at,
	(SELECT COUNT(*) FROM posts p WHERE p.subscription_id = s.id AND p.view = 0)`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (*Subscription, error) {
	var sub Subscription
	var createdAt string
	if err := row.Scan(&sub.ID, &sub.UserName, &sub.Name, &sub.PostLimit, &sub.Position,
		&sub.FavIcon, &createdAt, &sub.UnreadCount); err != nil {
		return nil, err
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	sub.CreatedAt = t
	return &sub, nil
}

// ListSubscriptions returns the user's subscriptions in display order with their links.
func (s *SubscriptionStore) ListSubscriptions(ctx context.Context, userName string) ([]Subscription, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+subscriptionColumns+`
		FROM subscriptions s
		WHERE s.user_name = ?
		ORDER BY s.position, s.id`, userName)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	var subs []Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, *sub)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating subscriptions: %w", err)
	}
	rows.Close()

	for i := range subs {
		links, err := listSubscriptionLinks(ctx, s.db, subs[i].ID)
		if err != nil {
			return nil, err
		}
		subs[i].Links = links
	}

	return subs, nil
}

// GetSubscription returns ErrNotFound when the subscription is missing or owned by another user.
func (s *SubscriptionStore) GetSubscription(ctx context.Context, userName string, id int64) (*Subscription, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+subscriptionColumns+`
		FROM subscriptions s
		WHERE s.id = ? AND s.user_name = ?`, id, userName)

	sub, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	links, err := listSubscriptionLinks(ctx, s.db, sub.ID)
	if err != nil {
		return nil, err
	}
	sub.Links = links

	return sub, nil
}

// CreateSubscription appends a subscription to the end of the user's list
// together with its first link.
func (s *SubscriptionStore) CreateSubscription(ctx context.Context, sub Subscription, linkURL, regExp string) (*Subscription, error) {
	linkURL = strings.TrimSpace(linkURL)
	if linkURL == "" {
		return nil, fmt.Errorf("link url is required")
	}
	if sub.PostLimit <= 0 {
		return nil, fmt.Errorf("post limit must be positive, got %d", sub.PostLimit)
	}

	var id int64
	err := inTx(ctx, s.db, func(tx *sql.Tx) error {
		position, err := subscriptionRanks.next(ctx, tx, sub.UserName)
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO subscriptions (user_name, name, post_limit, position, fav_icon, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, sub.UserName, sub.Name, sub.PostLimit, position, sub.FavIcon, formatTime(time.Now()))
		if err != nil {
			return fmt.Errorf("failed to insert subscription: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get subscription id: %w", err)
		}

		_, err = insertSubscriptionLink(ctx, tx, id, linkURL, regExp)
		return err
	})
	if err != nil {
		return nil, err
	}

	return s.GetSubscription(ctx, sub.UserName, id)
}

// UpdateSubscription changes name, post limit and icon. Position is changed
// only through ReorderSubscriptions.
func (s *SubscriptionStore) UpdateSubscription(ctx context.Context, sub Subscription) (*Subscription, error) {
	if sub.PostLimit <= 0 {
		return nil, fmt.Errorf("post limit must be positive, got %d", sub.PostLimit)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE subscriptions
		SET name = ?, post_limit = ?, fav_icon = ?
		WHERE id = ? AND user_name = ?
	`, sub.Name, sub.PostLimit, sub.FavIcon, sub.ID, sub.UserName)
	if err != nil {
		return nil, fmt.Errorf("failed to update subscription: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}

	return s.GetSubscription(ctx, sub.UserName, sub.ID)
}

// DeleteSubscription removes the subscription, its links and posts, then
// closes the gap in the user's positions.
func (s *SubscriptionStore) DeleteSubscription(ctx context.Context, userName string, id int64) error {
	return inTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM subscriptions WHERE id = ? AND user_name = ?`, id, userName)
		if err != nil {
			return fmt.Errorf("failed to delete subscription: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return subscriptionRanks.repack(ctx, tx, userName)
	})
}

func (s *SubscriptionStore) ReorderSubscriptions(ctx context.Context, userName string, oldPosition, newPosition int) error {
	if oldPosition < 0 || newPosition < 0 {
		return fmt.Errorf("positions must not be negative")
	}
	return inTx(ctx, s.db, func(tx *sql.Tx) error {
		return subscriptionRanks.move(ctx, tx, userName, oldPosition, newPosition)
	})
}

func (s *SubscriptionStore) GetSubscriptionCount(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM subscriptions`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count subscriptions: %w", err)
	}
	return count, nil
}
