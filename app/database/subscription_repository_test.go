package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func positionsOf(subs []Subscription) map[string]int {
	out := make(map[string]int, len(subs))
	for _, s := range subs {
		out[s.Name] = s.Position
	}
	return out
}

func TestSubscriptionStore_CreateAppendsAtEnd(t *testing.T) {
	db := newTestDB(t)
	store := NewSubscriptionStore(db)

	a := createTestSubscription(t, store, "alice", "a", "http://example.com/a.xml")
	b := createTestSubscription(t, store, "alice", "b", "http://example.com/b.xml")
	other := createTestSubscription(t, store, "bob", "c", "http://example.com/a.xml")

	assert.Equal(t, 0, a.Position)
	assert.Equal(t, 1, b.Position)
	assert.Equal(t, 0, other.Position, "positions are scoped per user")

	require.Len(t, a.Links, 1)
	assert.Equal(t, "http://example.com/a.xml", a.Links[0].URL)
	assert.Equal(t, 0, a.Links[0].Position)
	assert.Equal(t, a.Links[0].SourceLinkID, other.Links[0].SourceLinkID, "source links are shared by url")

	count, err := NewLinkStore(db).GetSourceLinkCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestSubscriptionStore_CreateRejectsInvalidInput(t *testing.T) {
	store := NewSubscriptionStore(newTestDB(t))
	ctx := context.Background()

	_, err := store.CreateSubscription(ctx, Subscription{UserName: "alice", Name: "x", PostLimit: 0}, "http://example.com", "")
	assert.Error(t, err)

	_, err = store.CreateSubscription(ctx, Subscription{UserName: "alice", Name: "x", PostLimit: 5}, "  ", "")
	assert.Error(t, err)

	subs, err := store.ListSubscriptions(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestSubscriptionStore_DeleteRepacksPositions(t *testing.T) {
	store := NewSubscriptionStore(newTestDB(t))
	ctx := context.Background()

	createTestSubscription(t, store, "alice", "a", "http://example.com/a.xml")
	b := createTestSubscription(t, store, "alice", "b", "http://example.com/b.xml")
	createTestSubscription(t, store, "alice", "c", "http://example.com/c.xml")
	createTestSubscription(t, store, "alice", "d", "http://example.com/d.xml")

	require.NoError(t, store.DeleteSubscription(ctx, "alice", b.ID))

	subs, err := store.ListSubscriptions(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 0, "c": 1, "d": 2}, positionsOf(subs))

	assert.ErrorIs(t, store.DeleteSubscription(ctx, "alice", b.ID), ErrNotFound)
}

func TestSubscriptionStore_DeleteIgnoresOtherUsers(t *testing.T) {
	store := NewSubscriptionStore(newTestDB(t))
	a := createTestSubscription(t, store, "alice", "a", "http://example.com/a.xml")

	err := store.DeleteSubscription(context.Background(), "bob", a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSubscriptionStore_Reorder(t *testing.T) {
	tests := []struct {
		name     string
		from, to int
		want     map[string]int
	}{
		{"move down", 0, 2, map[string]int{"b": 0, "c": 1, "a": 2, "d": 3}},
		{"move up", 3, 1, map[string]int{"a": 0, "d": 1, "b": 2, "c": 3}},
		{"same position", 1, 1, map[string]int{"a": 0, "b": 1, "c": 2, "d": 3}},
		{"clamped to end", 0, 10, map[string]int{"b": 0, "c": 1, "d": 2, "a": 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewSubscriptionStore(newTestDB(t))
			ctx := context.Background()
			for _, name := range []string{"a", "b", "c", "d"} {
				createTestSubscription(t, store, "alice", name, "http://example.com/"+name+".xml")
			}

			require.NoError(t, store.ReorderSubscriptions(ctx, "alice", tt.from, tt.to))

			subs, err := store.ListSubscriptions(ctx, "alice")
			require.NoError(t, err)
			assert.Equal(t, tt.want, positionsOf(subs))
		})
	}
}

func TestSubscriptionStore_ReorderUnknownPosition(t *testing.T) {
	store := NewSubscriptionStore(newTestDB(t))
	createTestSubscription(t, store, "alice", "a", "http://example.com/a.xml")

	err := store.ReorderSubscriptions(context.Background(), "alice", 3, 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSubscriptionStore_UpdateKeepsPosition(t *testing.T) {
	store := NewSubscriptionStore(newTestDB(t))
	ctx := context.Background()
	createTestSubscription(t, store, "alice", "a", "http://example.com/a.xml")
	b := createTestSubscription(t, store, "alice", "b", "http://example.com/b.xml")

	b.Name = "renamed"
	b.PostLimit = 7
	b.Position = 0
	updated, err := store.UpdateSubscription(ctx, *b)
	require.NoError(t, err)

	assert.Equal(t, "renamed", updated.Name)
	assert.Equal(t, 7, updated.PostLimit)
	assert.Equal(t, 1, updated.Position)

	b.UserName = "bob"
	_, err = store.UpdateSubscription(ctx, *b)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSubscriptionStore_UnreadCount(t *testing.T) {
	db := newTestDB(t)
	store := NewSubscriptionStore(db)
	ctx := context.Background()
	sub := createTestSubscription(t, store, "alice", "a", "http://example.com/a.xml")

	err := NewSyncStore(db).InSubscriptionTx(ctx, sub.ID, func(tx PostTx) error {
		for i, view := range []bool{false, true, false} {
			p := &Post{
				Title:    string(rune('a' + i)),
				URL:      "http://example.com/" + string(rune('a'+i)),
				PostDate: date("2024-01-01T00:00:00Z"),
				AddDate:  date("2024-01-01T00:00:00Z"),
				View:     view,
			}
			if err := tx.CreatePost(p); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	got, err := store.GetSubscription(ctx, "alice", sub.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.UnreadCount)
}
