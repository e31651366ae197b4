package reconcile

import (
	"fmt"

	"github.com/lysyi3m/rss-feeds/app/database"
)

// Pruner trims a subscription down to its post limit. Only posts that are
// both read and absent from the current fetch are eligible, oldest first.
// Unread posts are never removed, so a subscription may stay over its limit.
type Pruner struct{}

func NewPruner() *Pruner {
	return &Pruner{}
}

func (p *Pruner) Run(tx database.PostTx, limit int, seen map[string]bool) (int, error) {
	posts, err := tx.ListByPostDateAsc()
	if err != nil {
		return 0, fmt.Errorf("failed to list posts for pruning: %w", err)
	}

	count := len(posts)
	deleted := 0
	for _, post := range posts {
		if count <= limit {
			break
		}
		if seen[post.URL] || !post.View {
			continue
		}

		if err := tx.DeletePost(post.ID); err != nil {
			return deleted, fmt.Errorf("failed to prune post %d: %w", post.ID, err)
		}
		count--
		deleted++
	}

	return deleted, nil
}
