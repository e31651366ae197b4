package tasks

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/rss-feeds/app/database"
	"github.com/lysyi3m/rss-feeds/app/feed"
)

// ImportSubscriptionsTask makes sure the subscription described by a seed
// file exists. Existing subscriptions only gain missing links; limits and
// filters edited through the API are left alone.
type ImportSubscriptionsTask struct {
	Task
	Seed             *feed.SeedConfig
	subscriptionRepo database.SubscriptionRepository
	linkRepo         database.LinkRepository
	defaultUser      string
	defaultPostLimit int
}

func NewImportSubscriptionsTask(seed *feed.SeedConfig, subscriptionRepo database.SubscriptionRepository,
	linkRepo database.LinkRepository, defaultUser string, defaultPostLimit int) *ImportSubscriptionsTask {
	return &ImportSubscriptionsTask{
		Task:             NewTask(TaskTypeImportSubscriptions, seed.Name),
		Seed:             seed,
		subscriptionRepo: subscriptionRepo,
		linkRepo:         linkRepo,
		defaultUser:      defaultUser,
		defaultPostLimit: defaultPostLimit,
	}
}

func (t *ImportSubscriptionsTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	links := t.Seed.Links()
	if len(links) == 0 {
		return fmt.Errorf("seed %s has no links", t.Seed.Name)
	}

	user := cmp.Or(t.Seed.User, t.defaultUser)

	sub, err := t.findSubscription(ctx, user)
	if err != nil {
		return err
	}

	created := false
	if sub == nil {
		sub, err = t.subscriptionRepo.CreateSubscription(ctx, database.Subscription{
			UserName:  user,
			Name:      t.Seed.Name,
			PostLimit: cmp.Or(t.Seed.PostLimit, t.defaultPostLimit),
			FavIcon:   t.Seed.FavIcon,
		}, links[0], t.Seed.RegExp)
		if err != nil {
			return fmt.Errorf("failed to create subscription: %w", err)
		}
		created = true
	}

	known := make(map[string]bool, len(sub.Links))
	for _, l := range sub.Links {
		known[l.URL] = true
	}

	added := 0
	for _, url := range links {
		if known[url] {
			continue
		}
		if _, err := t.linkRepo.CreateSubscriptionLink(ctx, sub.ID, url, t.Seed.RegExp); err != nil {
			return fmt.Errorf("failed to add subscription link: %w", err)
		}
		known[url] = true
		added++
	}

	slog.Info("Task completed",
		"type", "ImportSubscriptions",
		"subscription", t.Seed.Name,
		"user", user,
		"created", created,
		"links_added", added,
		"duration", t.GetDuration())

	return nil
}

func (t *ImportSubscriptionsTask) findSubscription(ctx context.Context, user string) (*database.Subscription, error) {
	subs, err := t.subscriptionRepo.ListSubscriptions(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	for i := range subs {
		if subs[i].Name == t.Seed.Name {
			return &subs[i], nil
		}
	}
	return nil, nil
}
