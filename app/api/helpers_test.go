package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/rss-feeds/app/cfg"
	"github.com/lysyi3m/rss-feeds/app/database"
	"github.com/lysyi3m/rss-feeds/app/discover"
	"github.com/lysyi3m/rss-feeds/app/feed"
	"github.com/lysyi3m/rss-feeds/app/reconcile"
)

type fakeEngine struct {
	calls atomic.Int32
}

func (e *fakeEngine) Synchronize(ctx context.Context) reconcile.Result {
	e.calls.Add(1)
	return reconcile.Result{Added: 2, Updated: 1}
}

type fakeDiscoverer struct {
	scans    map[string][]string
	infos    map[string]*discover.FeedInfo
	errs     map[string]error
	lastScan string
}

func (d *fakeDiscoverer) ScanForFeeds(ctx context.Context, pageURL string) ([]string, error) {
	d.lastScan = pageURL
	if err := d.errs[pageURL]; err != nil {
		return nil, err
	}
	return d.scans[pageURL], nil
}

func (d *fakeDiscoverer) ExtractFeedInfo(ctx context.Context, feedURL string) (*discover.FeedInfo, error) {
	if err := d.errs[feedURL]; err != nil {
		return nil, err
	}
	if info, ok := d.infos[feedURL]; ok {
		return info, nil
	}
	return nil, discover.ErrNoFeed
}

type fakeCache struct{}

func (fakeCache) Health(ctx context.Context) map[string]any {
	return map[string]any{"status": "healthy", "type": "redis"}
}

type testEnv struct {
	router     *gin.Engine
	subs       *database.SubscriptionStore
	links      *database.LinkStore
	posts      *database.PostStore
	store      *database.SyncStore
	engine     *fakeEngine
	discoverer *fakeDiscoverer
}

func newTestEnv(t *testing.T, apiKey string) *testEnv {
	t.Helper()

	_, err := cfg.LoadArgs([]string{"--base-url=https://feeds.example.com"})
	require.NoError(t, err)

	db, err := database.NewConnection(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, _, err = database.RunMigrations(db)
	require.NoError(t, err)

	discoverer := &fakeDiscoverer{
		scans: make(map[string][]string),
		infos: make(map[string]*discover.FeedInfo),
		errs:  make(map[string]error),
	}
	env := &testEnv{
		subs:       database.NewSubscriptionStore(db),
		links:      database.NewLinkStore(db),
		posts:      database.NewPostStore(db),
		store:      database.NewSyncStore(db),
		engine:     &fakeEngine{},
		discoverer: discoverer,
	}

	handler := NewHandler(env.subs, env.links, env.posts, env.engine, env.discoverer, feed.NewFilterer(), fakeCache{}, 20)
	env.router = NewServer(handler, apiKey, "alice")
	return env
}

// do sends a request; headers are given as name, value pairs.
func (e *testEnv) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) createSubscription(t *testing.T, user, name, url string) *database.Subscription {
	t.Helper()
	sub, err := e.subs.CreateSubscription(context.Background(), database.Subscription{
		UserName: user, Name: name, PostLimit: 10,
	}, url, "")
	require.NoError(t, err)
	return sub
}

func (e *testEnv) seedPosts(t *testing.T, subscriptionID int64, posts ...database.Post) []database.Post {
	t.Helper()
	err := e.store.InSubscriptionTx(context.Background(), subscriptionID, func(tx database.PostTx) error {
		for i := range posts {
			if err := tx.CreatePost(&posts[i]); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	return posts
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func date(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func detailOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, w)["detail"]
}

