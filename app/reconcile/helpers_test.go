package reconcile

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/rss-feeds/app/database"
	"github.com/lysyi3m/rss-feeds/app/feed"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fakeDownloader struct {
	mu     sync.Mutex
	feeds  map[string][]feed.FetchedPost
	errs   map[string]error
	panics map[string]bool
	limits map[string]int
	calls  map[string]int
}

func newFakeDownloader() *fakeDownloader {
	return &fakeDownloader{
		feeds:  make(map[string][]feed.FetchedPost),
		errs:   make(map[string]error),
		panics: make(map[string]bool),
		limits: make(map[string]int),
		calls:  make(map[string]int),
	}
}

func (d *fakeDownloader) set(url string, posts ...feed.FetchedPost) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.feeds[url] = posts
	delete(d.errs, url)
}

func (d *fakeDownloader) fail(url string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errs[url] = &feed.FetchError{URL: url, Err: errors.New("connection refused")}
}

func (d *fakeDownloader) Fetch(ctx context.Context, url string, limit int) ([]feed.FetchedPost, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls[url]++
	d.limits[url] = limit
	if d.panics[url] {
		panic("parser exploded")
	}
	if err := d.errs[url]; err != nil {
		return nil, err
	}

	posts := d.feeds[url]
	if len(posts) > limit {
		posts = posts[:limit]
	}
	return posts, nil
}

type harness struct {
	db         *database.DB
	subs       *database.SubscriptionStore
	links      *database.LinkStore
	posts      *database.PostStore
	store      *database.SyncStore
	downloader *fakeDownloader
	clock      *fakeClock
	engine     *Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db, err := database.NewConnection(filepath.Join(t.TempDir(), "sync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, _, err = database.RunMigrations(db)
	require.NoError(t, err)

	h := &harness{
		db:         db,
		subs:       database.NewSubscriptionStore(db),
		links:      database.NewLinkStore(db),
		posts:      database.NewPostStore(db),
		store:      database.NewSyncStore(db),
		downloader: newFakeDownloader(),
		clock:      &fakeClock{},
	}
	h.engine = NewEngine(h.store, h.downloader, h.clock, 4, nil)
	return h
}

func (h *harness) subscribe(t *testing.T, name string, limit int, url, regExp string) *database.Subscription {
	t.Helper()
	sub, err := h.subs.CreateSubscription(context.Background(), database.Subscription{
		UserName:  "alice",
		Name:      name,
		PostLimit: limit,
	}, url, regExp)
	require.NoError(t, err)
	return sub
}

func (h *harness) stored(t *testing.T, subscriptionID int64) []database.Post {
	t.Helper()
	posts, err := h.posts.ListAllPosts(context.Background(), subscriptionID, 1000)
	require.NoError(t, err)
	return posts
}

func (h *harness) seed(t *testing.T, subscriptionID int64, posts ...database.Post) {
	t.Helper()
	err := h.store.InSubscriptionTx(context.Background(), subscriptionID, func(tx database.PostTx) error {
		for i := range posts {
			if err := tx.CreatePost(&posts[i]); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func (h *harness) markAllViewed(t *testing.T, subscriptionID int64) {
	t.Helper()
	view := true
	for _, p := range h.stored(t, subscriptionID) {
		_, err := h.posts.UpdatePostFlags(context.Background(), "alice", p.ID, &view, nil)
		require.NoError(t, err)
	}
}

func at(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func item(title, url, published string) feed.FetchedPost {
	return feed.FetchedPost{Title: title, URL: url, PostDate: at(published)}
}

func byTitle(posts []database.Post) map[string]database.Post {
	out := make(map[string]database.Post, len(posts))
	for _, p := range posts {
		out[p.Title] = p
	}
	return out
}
