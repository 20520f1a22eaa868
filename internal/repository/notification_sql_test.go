package repository

import (
	"context"
	"testing"
	"time"

	"bazaar-api/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationStore_UnreadOrderAndMarkRead(t *testing.T) {
	store := NewNotificationStore(openTestDB(t))
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	second := &model.Notification{Recipient: "bob", Message: "second", CreatedAt: base.Add(time.Minute)}
	first := &model.Notification{Recipient: "bob", Message: "first", CreatedAt: base}
	other := &model.Notification{Recipient: "carol", Message: "not yours", CreatedAt: base}
	for _, n := range []*model.Notification{second, first, other} {
		require.NoError(t, store.Append(ctx, n))
		require.NotEmpty(t, n.ID)
	}

	unread, err := store.Unread(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, unread, 2)
	assert.Equal(t, "first", unread[0].Message)
	assert.Equal(t, "second", unread[1].Message)

	count, err := store.CountUnread(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, store.MarkRead(ctx, "bob", []string{unread[0].ID, unread[1].ID, other.ID}))

	unread, err = store.Unread(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, unread)

	count, err = store.CountUnread(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "ids of another recipient are not touched")
}

func TestNotificationStore_DeleteOlderThan(t *testing.T) {
	store := NewNotificationStore(openTestDB(t))
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Append(ctx, &model.Notification{Recipient: "bob", Message: "old", CreatedAt: now.Add(-31 * 24 * time.Hour), Read: true}))
	require.NoError(t, store.Append(ctx, &model.Notification{Recipient: "bob", Message: "old unread", CreatedAt: now.Add(-40 * 24 * time.Hour)}))
	require.NoError(t, store.Append(ctx, &model.Notification{Recipient: "bob", Message: "fresh", CreatedAt: now.Add(-time.Hour)}))

	deleted, err := store.DeleteOlderThan(ctx, now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	unread, err := store.Unread(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, "fresh", unread[0].Message)
}

func TestNotificationStore_MarkReadRejectsBadID(t *testing.T) {
	store := NewNotificationStore(openTestDB(t))
	err := store.MarkRead(context.Background(), "bob", []string{"not-a-number"})
	assert.Error(t, err)
}
