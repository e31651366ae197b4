package database

import (
	"context"
	"database/sql"
	"fmt"
)

// SyncStore is the persistence side of a synchronization pass.
type SyncStore struct {
	db *DB
}

func NewSyncStore(db *DB) *SyncStore {
	return &SyncStore{db: db}
}

// ListBindings returns every subscription link with its source URL and the
// owning subscription's post limit, ordered by subscription then position.
func (s *SyncStore) ListBindings(ctx context.Context) ([]Binding, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sl.id, sl.subscription_id, s.post_limit, sl.source_link_id, src.url, sl.reg_exp, sl.position
		FROM subscription_links sl
		JOIN subscriptions s ON s.id = sl.subscription_id
		JOIN source_links src ON src.id = sl.source_link_id
		ORDER BY sl.subscription_id, sl.position, sl.id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list bindings: %w", err)
	}
	defer rows.Close()

	var bindings []Binding
	for rows.Next() {
		var b Binding
		if err := rows.Scan(&b.ID, &b.SubscriptionID, &b.PostLimit, &b.SourceLinkID, &b.URL, &b.RegExp, &b.Position); err != nil {
			return nil, fmt.Errorf("failed to scan binding: %w", err)
		}
		bindings = append(bindings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bindings: %w", err)
	}

	return bindings, nil
}

// ListUnboundSubscriptions returns the subscriptions that have no links left.
// Only ID and PostLimit are populated.
func (s *SyncStore) ListUnboundSubscriptions(ctx context.Context) ([]Subscription, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.post_limit
		FROM subscriptions s
		WHERE NOT EXISTS (SELECT 1 FROM subscription_links sl WHERE sl.subscription_id = s.id)
		ORDER BY s.id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list unbound subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []Subscription
	for rows.Next() {
		var sub Subscription
		if err := rows.Scan(&sub.ID, &sub.PostLimit); err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subscriptions: %w", err)
	}

	return subs, nil
}

// InSubscriptionTx runs fn against the subscription's posts in a single
// transaction. Any error from fn rolls the transaction back.
func (s *SyncStore) InSubscriptionTx(ctx context.Context, subscriptionID int64, fn func(PostTx) error) error {
	return inTx(ctx, s.db, func(tx *sql.Tx) error {
		return fn(&postTx{ctx: ctx, tx: tx, subscriptionID: subscriptionID})
	})
}

type postTx struct {
	ctx            context.Context
	tx             *sql.Tx
	subscriptionID int64
}

func (p *postTx) ListByAddDateDesc() ([]Post, error) {
	return queryPosts(p.ctx, p.tx, `SELECT `+postColumns+`
		FROM posts p WHERE p.subscription_id = ?
		ORDER BY p.add_date DESC, p.id DESC`, p.subscriptionID)
}

func (p *postTx) ListByPostDateAsc() ([]Post, error) {
	return queryPosts(p.ctx, p.tx, `SELECT `+postColumns+`
		FROM posts p WHERE p.subscription_id = ?
		ORDER BY p.post_date ASC, p.id ASC`, p.subscriptionID)
}

// FindMatching returns posts whose title or url equals the given ones.
func (p *postTx) FindMatching(title, url string) ([]Post, error) {
	return queryPosts(p.ctx, p.tx, `SELECT `+postColumns+`
		FROM posts p WHERE p.subscription_id = ? AND (p.title = ? OR p.url = ?)
		ORDER BY p.id`, p.subscriptionID, title, url)
}

func (p *postTx) CreatePost(post *Post) error {
	post.SubscriptionID = p.subscriptionID
	res, err := p.tx.ExecContext(p.ctx, `
		INSERT INTO posts (subscription_id, title, url, post_date, add_date, view, mentioned)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, p.subscriptionID, post.Title, post.URL, formatTime(post.PostDate), formatTime(post.AddDate), post.View, post.Mentioned)
	if err != nil {
		return fmt.Errorf("failed to insert post: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get post id: %w", err)
	}
	post.ID = id
	return nil
}

func (p *postTx) UpdatePost(post Post) error {
	res, err := p.tx.ExecContext(p.ctx, `
		UPDATE posts SET title = ?, url = ?, post_date = ?, add_date = ?
		WHERE id = ? AND subscription_id = ?
	`, post.Title, post.URL, formatTime(post.PostDate), formatTime(post.AddDate), post.ID, p.subscriptionID)
	if err != nil {
		return fmt.Errorf("failed to update post: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *postTx) DeletePost(id int64) error {
	_, err := p.tx.ExecContext(p.ctx, `DELETE FROM posts WHERE id = ? AND subscription_id = ?`, id, p.subscriptionID)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	return nil
}
