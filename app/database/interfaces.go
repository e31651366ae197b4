package database

import (
	"context"
)

type SubscriptionRepository interface {
	ListSubscriptions(ctx context.Context, userName string) ([]Subscription, error)
	GetSubscription(ctx context.Context, userName string, id int64) (*Subscription, error)
	CreateSubscription(ctx context.Context, sub Subscription, linkURL, regExp string) (*Subscription, error)
	UpdateSubscription(ctx context.Context, sub Subscription) (*Subscription, error)
	DeleteSubscription(ctx context.Context, userName string, id int64) error
	ReorderSubscriptions(ctx context.Context, userName string, oldPosition, newPosition int) error
	GetSubscriptionCount(ctx context.Context) (int, error)
}

type LinkRepository interface {
	GetOrCreateSourceLink(ctx context.Context, url string) (*SourceLink, bool, error)
	ListSubscriptionLinks(ctx context.Context, subscriptionID int64) ([]SubscriptionLink, error)
	GetSubscriptionLink(ctx context.Context, subscriptionID int64, position int) (*SubscriptionLink, error)
	CreateSubscriptionLink(ctx context.Context, subscriptionID int64, url, regExp string) (*SubscriptionLink, error)
	UpdateSubscriptionLink(ctx context.Context, subscriptionID int64, position int, url, regExp string) (*SubscriptionLink, error)
	DeleteSubscriptionLink(ctx context.Context, subscriptionID int64, position int) error
	ReorderSubscriptionLinks(ctx context.Context, subscriptionID int64, oldPosition, newPosition int) error
	GetSourceLinkCount(ctx context.Context) (int, error)
}

type PostRepository interface {
	ListPosts(ctx context.Context, filter PostFilter) ([]Post, int, error)
	GetPost(ctx context.Context, userName string, id int64) (*Post, error)
	UpdatePostFlags(ctx context.Context, userName string, id int64, view, mentioned *bool) (*Post, error)
	ListAllPosts(ctx context.Context, subscriptionID int64, limit int) ([]Post, error)
}

// PostTx is the view of one subscription's posts inside a sync transaction.
// Every method is scoped to that subscription.
type PostTx interface {
	ListByAddDateDesc() ([]Post, error)
	ListByPostDateAsc() ([]Post, error)
	FindMatching(title, url string) ([]Post, error)
	CreatePost(post *Post) error
	UpdatePost(post Post) error
	DeletePost(id int64) error
}
