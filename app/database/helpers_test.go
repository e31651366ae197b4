package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewConnection(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, _, err = RunMigrations(db)
	require.NoError(t, err)

	return db
}

func createTestSubscription(t *testing.T, store *SubscriptionStore, user, name, url string) *Subscription {
	t.Helper()

	sub, err := store.CreateSubscription(context.Background(), Subscription{
		UserName:  user,
		Name:      name,
		PostLimit: 20,
	}, url, "")
	require.NoError(t, err)

	return sub
}

func date(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}
