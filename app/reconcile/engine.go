package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lysyi3m/rss-feeds/app/database"
	"github.com/lysyi3m/rss-feeds/app/feed"
)

type Store interface {
	ListBindings(ctx context.Context) ([]database.Binding, error)
	ListUnboundSubscriptions(ctx context.Context) ([]database.Subscription, error)
	InSubscriptionTx(ctx context.Context, subscriptionID int64, fn func(database.PostTx) error) error
}

type Downloader interface {
	Fetch(ctx context.Context, sourceURL string, limit int) ([]feed.FetchedPost, error)
}

// Recorder receives pass and download observations. It may be nil.
type Recorder interface {
	ObserveFetch(ok bool, duration time.Duration)
	ObservePass(added, updated, deleted int, duration time.Duration)
}

type Result struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
}

func (r *Result) add(o Result) {
	r.Added += o.Added
	r.Updated += o.Updated
	r.Deleted += o.Deleted
}

// Engine runs synchronization passes: download every source link once,
// reconcile each subscription's posts against what was fetched and prune
// what is no longer needed.
type Engine struct {
	store      Store
	downloader Downloader
	clock      Clock
	workers    int
	recorder   Recorder
	filterer   *feed.Filterer
	pruner     *Pruner
	locks      *keyedMutex
}

func NewEngine(store Store, downloader Downloader, clock Clock, workers int, recorder Recorder) *Engine {
	if clock == nil {
		clock = SystemClock{}
	}
	if workers < 1 {
		workers = 1
	}
	return &Engine{
		store:      store,
		downloader: downloader,
		clock:      clock,
		workers:    workers,
		recorder:   recorder,
		filterer:   feed.NewFilterer(),
		pruner:     NewPruner(),
		locks:      newKeyedMutex(),
	}
}

// sourceFetch is the outcome of downloading one source link.
type sourceFetch struct {
	url    string
	limit  int
	posts  []feed.FetchedPost
	broken bool
}

// Synchronize runs one pass. Failures are logged and reflected in the
// counters only; the pass always completes. Cancelling ctx only cuts
// downloads short; store work always runs.
func (e *Engine) Synchronize(ctx context.Context) Result {
	start := time.Now()
	storeCtx := context.WithoutCancel(ctx)

	bindings, err := e.store.ListBindings(storeCtx)
	if err != nil {
		slog.Error("Failed to list subscription links", "error", err)
		return Result{}
	}

	// subscriptions without links still get pruned
	unbound, err := e.store.ListUnboundSubscriptions(storeCtx)
	if err != nil {
		slog.Error("Failed to list subscriptions without links", "error", err)
	}

	fetches := e.fetchAll(ctx, bindings)

	var result Result
	for _, group := range groupBySubscription(bindings) {
		r, err := e.syncSubscription(storeCtx, group[0].SubscriptionID, group[0].PostLimit, group, fetches)
		if err != nil {
			slog.Error("Subscription sync failed", "subscription", group[0].SubscriptionID, "error", err)
			continue
		}
		result.add(r)
	}
	for _, sub := range unbound {
		r, err := e.syncSubscription(storeCtx, sub.ID, sub.PostLimit, nil, fetches)
		if err != nil {
			slog.Error("Subscription sync failed", "subscription", sub.ID, "error", err)
			continue
		}
		result.add(r)
	}

	if e.recorder != nil {
		e.recorder.ObservePass(result.Added, result.Updated, result.Deleted, time.Since(start))
	}

	slog.Info("Sync completed",
		"links", len(fetches),
		"subscriptions", countSubscriptions(bindings)+len(unbound),
		"added", result.Added,
		"updated", result.Updated,
		"deleted", result.Deleted,
		"duration", time.Since(start))

	return result
}

// fetchAll downloads each distinct source link once, in parallel, with the
// largest post limit among the subscriptions bound to it.
func (e *Engine) fetchAll(ctx context.Context, bindings []database.Binding) map[int64]*sourceFetch {
	fetches := make(map[int64]*sourceFetch)
	for _, b := range bindings {
		f, ok := fetches[b.SourceLinkID]
		if !ok {
			f = &sourceFetch{url: b.URL}
			fetches[b.SourceLinkID] = f
		}
		f.limit = max(f.limit, b.PostLimit)
	}

	var g errgroup.Group
	g.SetLimit(e.workers)

	for _, f := range fetches {
		g.Go(func() error {
			e.fetch(ctx, f)
			return nil
		})
	}
	g.Wait()

	return fetches
}

func (e *Engine) fetch(ctx context.Context, f *sourceFetch) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Source link fetch panicked", "url", f.url, "panic", r)
			f.posts = nil
			f.broken = true
		}
		if e.recorder != nil {
			e.recorder.ObserveFetch(!f.broken, time.Since(start))
		}
	}()

	posts, err := e.downloader.Fetch(ctx, f.url, f.limit)
	if err != nil {
		slog.Warn("Source link is broken", "url", f.url, "error", err)
		f.broken = true
		return
	}

	slog.Debug("Source link fetched", "url", f.url, "posts", len(posts), "duration", time.Since(start))
	f.posts = posts
}

// syncSubscription reconciles and prunes one subscription atomically.
// bindings must all belong to the subscription, ordered by position; with
// none the subscription is only pruned.
func (e *Engine) syncSubscription(ctx context.Context, subscriptionID int64, limit int, bindings []database.Binding, fetches map[int64]*sourceFetch) (Result, error) {
	e.locks.Lock(subscriptionID)
	defer e.locks.Unlock(subscriptionID)

	var result Result
	err := e.store.InSubscriptionTx(ctx, subscriptionID, func(tx database.PostTx) error {
		result = Result{}
		now := e.clock.Now().UTC()

		broken := false
		seen := make(map[string]bool)

		for _, b := range bindings {
			f := fetches[b.SourceLinkID]
			if f == nil || f.broken {
				broken = true
				continue
			}
			for _, p := range f.posts {
				seen[p.URL] = true
			}

			r, err := e.reconcileBinding(tx, b, f.posts, now)
			if err != nil {
				return err
			}
			result.add(r)
		}

		if broken {
			slog.Debug("Pruning skipped for subscription with broken link", "subscription", subscriptionID)
			return nil
		}

		deleted, err := e.pruner.Run(tx, limit, seen)
		if err != nil {
			return err
		}
		result.Deleted += deleted
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	return result, nil
}

func (e *Engine) reconcileBinding(tx database.PostTx, b database.Binding, fetched []feed.FetchedPost, now time.Time) (Result, error) {
	var result Result

	existing, err := tx.ListByAddDateDesc()
	if err != nil {
		return result, fmt.Errorf("failed to list posts: %w", err)
	}
	oldest := oldestRelevantDate(existing, b.PostLimit)

	candidates := fetched
	if len(candidates) > b.PostLimit {
		candidates = candidates[:b.PostLimit]
	}

	candidates, err = e.filterer.Run(candidates, b.RegExp)
	if err != nil {
		slog.Warn("Subscription link skipped", "subscription", b.SubscriptionID, "link", b.URL, "error", err)
		return result, nil
	}

	for _, f := range candidates {
		matches, err := tx.FindMatching(f.Title, f.URL)
		if err != nil {
			return result, fmt.Errorf("failed to find matching posts: %w", err)
		}

		if len(matches) == 0 {
			if f.PostDate.Before(oldest) {
				continue
			}
			post := &database.Post{
				Title:    f.Title,
				URL:      f.URL,
				PostDate: f.PostDate,
				AddDate:  now,
			}
			if err := tx.CreatePost(post); err != nil {
				return result, err
			}
			result.Added++
			continue
		}

		post, ok := pickMatch(matches, f)
		if !ok {
			slog.Debug("Ambiguous match skipped", "subscription", b.SubscriptionID, "title", f.Title, "url", f.URL, "matches", len(matches))
			continue
		}

		if applyUpdate(&post, f, now) {
			if err := tx.UpdatePost(post); err != nil {
				return result, err
			}
			result.Updated++
		}
	}

	return result, nil
}

// oldestRelevantDate is the earliest publish date a new item may carry and
// still be added. posts must be ordered by add date, newest first.
func oldestRelevantDate(posts []database.Post, limit int) time.Time {
	if len(posts) == 0 {
		return time.Unix(0, 0).UTC()
	}

	window := 2 * limit
	if len(posts) <= window {
		return posts[len(posts)-1].AddDate
	}

	for _, p := range posts[window:] {
		if p.View {
			return p.AddDate
		}
	}
	return posts[window-1].AddDate
}

// pickMatch chooses the stored post an item refers to. A single match is
// taken as is; otherwise a unique url match wins over a unique title match.
func pickMatch(matches []database.Post, f feed.FetchedPost) (database.Post, bool) {
	if len(matches) == 1 {
		return matches[0], true
	}

	var byURL, byTitle []database.Post
	for _, m := range matches {
		if m.URL == f.URL {
			byURL = append(byURL, m)
		}
		if m.Title == f.Title {
			byTitle = append(byTitle, m)
		}
	}

	if len(byURL) == 1 {
		return byURL[0], true
	}
	if len(byURL) == 0 && len(byTitle) == 1 {
		return byTitle[0], true
	}
	return database.Post{}, false
}

// applyUpdate refreshes p from f and reports whether anything changed.
// add_date never moves backwards.
func applyUpdate(p *database.Post, f feed.FetchedPost, now time.Time) bool {
	changed := false

	// unread post republished with a newer date
	if p.AddDate.Before(f.PostDate) && !p.View {
		p.PostDate = f.PostDate
		if f.PostDate.After(now) {
			p.AddDate = f.PostDate
		} else {
			p.AddDate = now
		}
		p.Title = f.Title
		p.URL = f.URL
		changed = true
	}

	// retitled since we last recorded a change
	if p.Title != f.Title && f.PostDate.After(p.AddDate) {
		p.AddDate = now
		if f.PostDate.After(now) {
			p.AddDate = f.PostDate
		}
		p.PostDate = f.PostDate
		p.Title = f.Title
		changed = true
	}

	return changed
}

func groupBySubscription(bindings []database.Binding) [][]database.Binding {
	var groups [][]database.Binding
	index := make(map[int64]int)
	for _, b := range bindings {
		i, ok := index[b.SubscriptionID]
		if !ok {
			i = len(groups)
			index[b.SubscriptionID] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], b)
	}
	return groups
}

func countSubscriptions(bindings []database.Binding) int {
	ids := make(map[int64]struct{})
	for _, b := range bindings {
		ids[b.SubscriptionID] = struct{}{}
	}
	return len(ids)
}
