package api

import (
	"context"
	"time"

	"github.com/lysyi3m/rss-feeds/app/database"
	"github.com/lysyi3m/rss-feeds/app/discover"
	"github.com/lysyi3m/rss-feeds/app/feed"
	"github.com/lysyi3m/rss-feeds/app/reconcile"
)

type GeneratorInterface interface {
	Run(sub database.Subscription, posts []database.Post) (string, error)
}

var _ GeneratorInterface = (*feed.Generator)(nil)

type Synchronizer interface {
	Synchronize(ctx context.Context) reconcile.Result
}

type FeedDiscoverer interface {
	ScanForFeeds(ctx context.Context, pageURL string) ([]string, error)
	ExtractFeedInfo(ctx context.Context, feedURL string) (*discover.FeedInfo, error)
}

var _ FeedDiscoverer = (*discover.Discoverer)(nil)

// HealthReporter is implemented by optional backends that report their own state.
type HealthReporter interface {
	Health(ctx context.Context) map[string]any
}

type Handler struct {
	subscriptionRepo database.SubscriptionRepository
	linkRepo         database.LinkRepository
	postRepo         database.PostRepository
	generator        GeneratorInterface
	engine           Synchronizer
	discoverer       FeedDiscoverer
	filterer         *feed.Filterer
	cache            HealthReporter
	defaultPostLimit int
}

// Request bodies

type subscriptionRequest struct {
	Name      *string `json:"name"`
	URL       string  `json:"url"`
	RegExp    string  `json:"regExp"`
	PostLimit *int    `json:"postLimit"`
	FavIcon   *string `json:"favIcon"`
}

type linkRequest struct {
	Link   string `json:"link" binding:"required"`
	RegExp string `json:"reg_exp"`
}

type reorderRequest struct {
	OldPosition *int `json:"oldPosition"`
	NewPosition *int `json:"newPosition"`
}

type postRequest struct {
	View      *bool `json:"view"`
	Mentioned *bool `json:"mentioned"`
}

// Response bodies

type linkResponse struct {
	Link     string `json:"link"`
	RegExp   string `json:"reg_exp"`
	Position int    `json:"position"`
}

type subscriptionResponse struct {
	ID        int64          `json:"id"`
	Name      string         `json:"name"`
	PostLimit int            `json:"postLimit"`
	Position  int            `json:"position"`
	FavIcon   string         `json:"favIcon"`
	Count     int            `json:"count"`
	Links     []linkResponse `json:"links"`
}

type postResponse struct {
	ID        int64     `json:"id"`
	Feed      int64     `json:"feed"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	PostDate  time.Time `json:"post_date"`
	AddDate   time.Time `json:"add_date"`
	View      bool      `json:"view"`
	Mentioned bool      `json:"mentioned"`
}

type pageResponse struct {
	Count    int            `json:"count"`
	Next     *string        `json:"next"`
	Previous *string        `json:"previous"`
	Results  []postResponse `json:"results"`
}

func newLinkResponse(l database.SubscriptionLink) linkResponse {
	return linkResponse{Link: l.URL, RegExp: l.RegExp, Position: l.Position}
}

func newSubscriptionResponse(s database.Subscription) subscriptionResponse {
	links := make([]linkResponse, 0, len(s.Links))
	for _, l := range s.Links {
		links = append(links, newLinkResponse(l))
	}
	return subscriptionResponse{
		ID:        s.ID,
		Name:      s.Name,
		PostLimit: s.PostLimit,
		Position:  s.Position,
		FavIcon:   s.FavIcon,
		Count:     s.UnreadCount,
		Links:     links,
	}
}

func newPostResponse(p database.Post) postResponse {
	return postResponse{
		ID:        p.ID,
		Feed:      p.SubscriptionID,
		Title:     p.Title,
		URL:       p.URL,
		PostDate:  p.PostDate,
		AddDate:   p.AddDate,
		View:      p.View,
		Mentioned: p.Mentioned,
	}
}
