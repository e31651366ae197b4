package database

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// SourceLink is a physical feed URL shared by every subscription that points at it.
type SourceLink struct {
	ID        int64
	URL       string
	CreatedAt time.Time
}

// Subscription is a user's tracked feed with its retention limit and display position.
type Subscription struct {
	ID          int64
	UserName    string
	Name        string
	PostLimit   int
	Position    int
	FavIcon     string
	CreatedAt   time.Time
	UnreadCount int
	Links       []SubscriptionLink
}

// SubscriptionLink binds a subscription to a source link with an optional title filter.
type SubscriptionLink struct {
	ID             int64
	SubscriptionID int64
	SourceLinkID   int64
	URL            string
	RegExp         string
	Position       int
}

type Post struct {
	ID             int64
	SubscriptionID int64
	Title          string
	URL            string
	PostDate       time.Time
	AddDate        time.Time
	View           bool
	Mentioned      bool
}

// Binding is a subscription link joined with everything the sync engine needs
// to reconcile it.
type Binding struct {
	ID             int64
	SubscriptionID int64
	PostLimit      int
	SourceLinkID   int64
	URL            string
	RegExp         string
	Position       int
}

// PostFilter narrows post listings. Nil fields are not applied.
type PostFilter struct {
	UserName       string
	SubscriptionID *int64
	View           *bool
	Mentioned      *bool
	AddedSince     *time.Time
	AddedUntil     *time.Time
	Limit          int
	Offset         int
}
