package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// PostStore handles post queries issued outside of a sync pass.
type PostStore struct {
	db *DB
}

func NewPostStore(db *DB) *PostStore {
	return &PostStore{db: db}
}

const postColumns = `p.id, p.subscription_id, p.title, p.url, p.post_date, p.add_date, p.view, p.mentioned`

func scanPost(row rowScanner) (*Post, error) {
	var post Post
	var postDate, addDate string
	if err := row.Scan(&post.ID, &post.SubscriptionID, &post.Title, &post.URL,
		&postDate, &addDate, &post.View, &post.Mentioned); err != nil {
		return nil, err
	}

	var err error
	if post.PostDate, err = parseTime(postDate); err != nil {
		return nil, err
	}
	if post.AddDate, err = parseTime(addDate); err != nil {
		return nil, err
	}
	return &post, nil
}

func queryPosts(ctx context.Context, q querier, query string, args ...any) ([]Post, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	defer rows.Close()

	var posts []Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, *post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating posts: %w", err)
	}

	return posts, nil
}

// ListPosts returns one page of the user's posts, newest first, and the total
// number of posts matching the filter.
func (s *PostStore) ListPosts(ctx context.Context, filter PostFilter) ([]Post, int, error) {
	where := []string{"s.user_name = ?"}
	args := []any{filter.UserName}

	if filter.SubscriptionID != nil {
		where = append(where, "p.subscription_id = ?")
		args = append(args, *filter.SubscriptionID)
	}
	if filter.View != nil {
		where = append(where, "p.view = ?")
		args = append(args, *filter.View)
	}
	if filter.Mentioned != nil {
		where = append(where, "p.mentioned = ?")
		args = append(args, *filter.Mentioned)
	}
	if filter.AddedSince != nil {
		where = append(where, "p.add_date >= ?")
		args = append(args, formatTime(*filter.AddedSince))
	}
	if filter.AddedUntil != nil {
		where = append(where, "p.add_date <= ?")
		args = append(args, formatTime(*filter.AddedUntil))
	}

	from := ` FROM posts p JOIN subscriptions s ON s.id = p.subscription_id WHERE ` + strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*)`+from, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count posts: %w", err)
	}

	query := `SELECT ` + postColumns + from + ` ORDER BY p.post_date DESC, p.id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	}

	posts, err := queryPosts(ctx, s.db, query, args...)
	if err != nil {
		return nil, 0, err
	}

	return posts, total, nil
}

func (s *PostStore) GetPost(ctx context.Context, userName string, id int64) (*Post, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+postColumns+`
		FROM posts p JOIN subscriptions s ON s.id = p.subscription_id
		WHERE p.id = ? AND s.user_name = ?`, id, userName)

	post, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return post, nil
}

// UpdatePostFlags sets the read and mentioned flags. Nil leaves a flag unchanged.
func (s *PostStore) UpdatePostFlags(ctx context.Context, userName string, id int64, view, mentioned *bool) (*Post, error) {
	post, err := s.GetPost(ctx, userName, id)
	if err != nil {
		return nil, err
	}
	if view != nil {
		post.View = *view
	}
	if mentioned != nil {
		post.Mentioned = *mentioned
	}

	_, err = s.db.ExecContext(ctx, `UPDATE posts SET view = ?, mentioned = ? WHERE id = ?`,
		post.View, post.Mentioned, post.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update post flags: %w", err)
	}

	return post, nil
}

// ListAllPosts returns up to limit of the subscription's posts, newest first.
func (s *PostStore) ListAllPosts(ctx context.Context, subscriptionID int64, limit int) ([]Post, error) {
	return queryPosts(ctx, s.db, `SELECT `+postColumns+`
		FROM posts p
		WHERE p.subscription_id = ?
		ORDER BY p.post_date DESC, p.id DESC
		LIMIT ?`, subscriptionID, limit)
}
