package services_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askarthikey/cleverSM/internal/adapters/secondary/repository/memory"
	"github.com/askarthikey/cleverSM/internal/core/domain"
	"github.com/askarthikey/cleverSM/internal/core/ports"
	"github.com/askarthikey/cleverSM/internal/core/services"
)

// mapCounter imite le cache Redis, version comprise.
type mapCounter struct {
	mu       sync.Mutex
	values   map[string]int64
	versions map[string]int64
	hits     int
}

func newMapCounter() *mapCounter {
	return &mapCounter{values: map[string]int64{}, versions: map[string]int64{}}
}

func (c *mapCounter) Get(_ context.Context, userID string) (int64, int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[userID]
	if ok {
		c.hits++
	}
	return v, c.versions[userID], ok, nil
}

func (c *mapCounter) Set(_ context.Context, userID string, n, version int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.versions[userID] == version {
		c.values[userID] = n
	}
	return nil
}

func (c *mapCounter) Invalidate(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, userID)
	c.versions[userID]++
	return nil
}

// interleavedCount exécute onCount une fois, juste après le comptage du store.
type interleavedCount struct {
	ports.NotificationRepository
	onCount func()
}

func (r *interleavedCount) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	n, err := r.NotificationRepository.CountUnread(ctx, recipientID)
	if hook := r.onCount; hook != nil {
		r.onCount = nil
		hook()
	}
	return n, err
}

func newNotifications(t *testing.T) (*services.NotificationService, *memory.Store, *mapCounter) {
	t.Helper()
	store := memory.NewStore()
	counter := newMapCounter()
	return services.NewNotificationService(store.Notifications(), counter, nil), store, counter
}

func like(recipient, sender string) ports.InteractionCmd {
	return ports.InteractionCmd{
		RecipientID:    recipient,
		SenderID:       sender,
		SenderUsername: "alice",
		Type:           domain.NotificationLike,
		PostID:         domain.NewID(),
	}
}

func TestNotifyInteraction(t *testing.T) {
	svc, _, _ := newNotifications(t)
	ctx := context.Background()
	alice, bob := domain.NewID(), domain.NewID()

	n, err := svc.NotifyInteraction(ctx, like(bob, alice))
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, "alice liked your post", n.Message)
	assert.NotEmpty(t, n.Data.PostID)

	n, err = svc.NotifyInteraction(ctx, like(alice, alice))
	require.NoError(t, err)
	assert.Nil(t, n, "self interaction is silent")

	cmd := like(bob, alice)
	cmd.Type = domain.NotificationFollowRequest
	_, err = svc.NotifyInteraction(ctx, cmd)
	assert.ErrorIs(t, err, domain.ErrInvalidNotificationType)
}

func TestInbox_ListMarkDelete(t *testing.T) {
	svc, _, counter := newNotifications(t)
	ctx := context.Background()
	alice, bob := domain.NewID(), domain.NewID()

	var ids []string
	for range 3 {
		n, err := svc.NotifyInteraction(ctx, like(bob, alice))
		require.NoError(t, err)
		ids = append(ids, n.ID)
	}

	page, err := svc.List(ctx, bob, ports.Page{})
	require.NoError(t, err)
	assert.Len(t, page.Notifications, 3)
	assert.EqualValues(t, 3, page.Total)
	assert.EqualValues(t, 3, page.UnreadCount)

	// Servi depuis le cache au second appel.
	unread, err := svc.UnreadCount(ctx, bob)
	require.NoError(t, err)
	assert.EqualValues(t, 3, unread)
	assert.Equal(t, 1, counter.hits)

	require.NoError(t, svc.MarkAsRead(ctx, ids[0], bob))
	unread, err = svc.UnreadCount(ctx, bob)
	require.NoError(t, err)
	assert.EqualValues(t, 2, unread)

	assert.ErrorIs(t, svc.MarkAsRead(ctx, ids[1], alice), domain.ErrNotificationNotFound)

	marked, err := svc.MarkAllAsRead(ctx, bob)
	require.NoError(t, err)
	assert.EqualValues(t, 2, marked)

	require.NoError(t, svc.Delete(ctx, ids[2], bob))
	assert.ErrorIs(t, svc.Delete(ctx, ids[2], bob), domain.ErrNotificationNotFound)

	page, err = svc.List(ctx, bob, ports.Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)
	assert.Zero(t, page.UnreadCount)
}

func TestInbox_InvalidID(t *testing.T) {
	svc, _, _ := newNotifications(t)
	_, err := svc.List(context.Background(), "not-a-uuid", ports.Page{})
	assert.ErrorIs(t, err, domain.ErrInvalidID)
	assert.Equal(t, domain.KindBadRequest, domain.KindOf(err))
}

func TestUnreadCount_WriteDuringCountIsNotCached(t *testing.T) {
	store := memory.NewStore()
	repo := &interleavedCount{NotificationRepository: store.Notifications()}
	counter := newMapCounter()
	svc := services.NewNotificationService(repo, counter, nil)
	ctx := context.Background()
	alice, bob := domain.NewID(), domain.NewID()

	repo.onCount = func() {
		_, err := svc.NotifyInteraction(ctx, like(bob, alice))
		require.NoError(t, err)
	}
	unread, err := svc.UnreadCount(ctx, bob)
	require.NoError(t, err)
	assert.Zero(t, unread, "count taken before the write")

	unread, err = svc.UnreadCount(ctx, bob)
	require.NoError(t, err)
	assert.EqualValues(t, 1, unread)
	assert.Zero(t, counter.hits, "stale value never reached the cache")

	unread, err = svc.UnreadCount(ctx, bob)
	require.NoError(t, err)
	assert.EqualValues(t, 1, unread)
	assert.Equal(t, 1, counter.hits)
}
