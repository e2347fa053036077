// Package repotest contient la suite de tests commune à tous les stores (memory, mongodb, postgres).
package repotest

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askarthikey/cleverSM/internal/core/domain"
	"github.com/askarthikey/cleverSM/internal/core/ports"
)

type Stores struct {
	Users         ports.UserRepository
	Requests      ports.FollowRequestRepository
	Notifications ports.NotificationRepository
}

// Run exécute la suite. newStores doit renvoyer des stores vides à chaque appel.
func Run(t *testing.T, newStores func(t *testing.T) Stores) {
	t.Run("users", func(t *testing.T) { testUsers(t, newStores(t)) })
	t.Run("follow edges", func(t *testing.T) { testEdges(t, newStores(t)) })
	t.Run("follow requests", func(t *testing.T) { testRequests(t, newStores(t)) })
	t.Run("concurrent pending requests", func(t *testing.T) { testConcurrentRequests(t, newStores(t)) })
	t.Run("notifications", func(t *testing.T) { testNotifications(t, newStores(t)) })
}

func newUser(t *testing.T, repo ports.UserRepository, username, email, phone string) *domain.User {
	t.Helper()
	u, err := domain.NewUser(username, email, phone, "hash")
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), u))
	return u
}

func userIDs(users []*domain.User) []string {
	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	return ids
}

func testUsers(t *testing.T, s Stores) {
	ctx := context.Background()
	alice := newUser(t, s.Users, "alice", "alice@example.com", "+100")
	newUser(t, s.Users, "alicia", "", "")
	newUser(t, s.Users, "bob", "", "")

	got, err := s.Users.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "hash", got.PasswordHash)

	for _, id := range []string{"alice", "ALICE@example.com", "+100"} {
		got, err := s.Users.GetByIdentifier(ctx, id)
		require.NoError(t, err, id)
		assert.Equal(t, alice.ID, got.ID)
	}

	_, err = s.Users.GetByID(ctx, domain.NewID())
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	exists, err := s.Users.UsernameExists(ctx, "Alice")
	require.NoError(t, err)
	assert.True(t, exists)

	dup, err := domain.NewUser("alice", "", "", "hash")
	require.NoError(t, err)
	assert.ErrorIs(t, s.Users.Create(ctx, dup), domain.ErrUsernameTaken)

	dup, err = domain.NewUser("carol", "alice@example.com", "", "hash")
	require.NoError(t, err)
	assert.ErrorIs(t, s.Users.Create(ctx, dup), domain.ErrEmailTaken)

	// Deux utilisateurs sans email ne se gênent pas.
	newUser(t, s.Users, "dave", "", "")

	found, total, err := s.Users.Search(ctx, "ALI", alice.ID, ports.Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, found, 1)
	assert.Equal(t, "alicia", found[0].Username)

	rest, total, err := s.Users.ListExcluding(ctx, []string{alice.ID}, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, rest, 3)

	// Fenêtres successives : ordre stable, sans doublon ni trou.
	first, _, err := s.Users.ListExcluding(ctx, []string{alice.ID}, 0, 2)
	require.NoError(t, err)
	second, total, err := s.Users.ListExcluding(ctx, []string{alice.ID}, 2, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, first, 2)
	require.Len(t, second, 1)
	assert.ElementsMatch(t, userIDs(rest), append(userIDs(first), userIDs(second)...))

	beyond, total, err := s.Users.ListExcluding(ctx, []string{alice.ID}, 10, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Empty(t, beyond)

	require.NoError(t, s.Users.UpdatePassword(ctx, alice.ID, "new-hash"))
	got, err = s.Users.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", got.PasswordHash)
	assert.ErrorIs(t, s.Users.UpdatePassword(ctx, domain.NewID(), "x"), domain.ErrUserNotFound)
}

func testEdges(t *testing.T, s Stores) {
	ctx := context.Background()
	a := newUser(t, s.Users, "alice", "", "")
	b := newUser(t, s.Users, "bob", "", "")

	require.NoError(t, s.Users.AddFollowEdge(ctx, a.ID, b.ID))
	require.NoError(t, s.Users.AddFollowEdge(ctx, a.ID, b.ID), "idempotent")

	following, err := s.Users.IsFollowing(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, following)
	following, err = s.Users.IsFollowing(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.False(t, following)

	ga, err := s.Users.GetByID(ctx, a.ID)
	require.NoError(t, err)
	gb, err := s.Users.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, ga.Following)
	assert.Equal(t, []string{a.ID}, gb.Followers)

	users, err := s.Users.GetByIDs(ctx, []string{b.ID, domain.NewID(), a.ID})
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, b.ID, users[0].ID)
	assert.Equal(t, a.ID, users[1].ID)

	require.NoError(t, s.Users.RemoveFollowEdge(ctx, a.ID, b.ID))
	require.NoError(t, s.Users.RemoveFollowEdge(ctx, a.ID, b.ID), "idempotent")
	ga, err = s.Users.GetByID(ctx, a.ID)
	require.NoError(t, err)
	gb, err = s.Users.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, ga.Following)
	assert.Empty(t, gb.Followers)

	// Cible inconnue : ni l'un ni l'autre côté n'est écrit.
	assert.ErrorIs(t, s.Users.AddFollowEdge(ctx, a.ID, domain.NewID()), domain.ErrUserNotFound)
	ga, err = s.Users.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, ga.Following)
}

func testRequests(t *testing.T, s Stores) {
	ctx := context.Background()
	a, b := domain.NewID(), domain.NewID()

	req, err := domain.NewFollowRequest(a, "alice", b, "bob", "hi")
	require.NoError(t, err)
	require.NoError(t, s.Requests.Create(ctx, req))

	dup, err := domain.NewFollowRequest(a, "alice", b, "bob", "")
	require.NoError(t, err)
	assert.ErrorIs(t, s.Requests.Create(ctx, dup), domain.ErrFollowRequestExists)

	pending, err := s.Requests.FindPending(ctx, a, b)
	require.NoError(t, err)
	assert.Equal(t, req.ID, pending.ID)
	assert.Equal(t, "hi", pending.Message)

	incoming, total, err := s.Requests.ListPendingForRecipient(ctx, b, ports.Page{})
	require.NoError(t, err)
	require.Len(t, incoming, 1)
	assert.Equal(t, int64(1), total)
	outgoing, err := s.Requests.ListPendingBySender(ctx, a)
	require.NoError(t, err)
	require.Len(t, outgoing, 1)

	// Mauvais destinataire : garde refusée.
	_, err = s.Requests.Transition(ctx, req.ID, a, domain.FollowStatusAccepted)
	assert.ErrorIs(t, err, domain.ErrFollowRequestNotFound)

	accepted, err := s.Requests.Transition(ctx, req.ID, b, domain.FollowStatusAccepted)
	require.NoError(t, err)
	assert.Equal(t, domain.FollowStatusAccepted, accepted.Status)

	_, err = s.Requests.Transition(ctx, req.ID, b, domain.FollowStatusRejected)
	assert.ErrorIs(t, err, domain.ErrFollowRequestNotFound)

	// Compensation
	require.NoError(t, s.Requests.Restore(ctx, req.ID, domain.FollowStatusAccepted))
	got, err := s.Requests.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.FollowStatusPending, got.Status)

	cancelled, err := s.Requests.Cancel(ctx, a, b)
	require.NoError(t, err)
	assert.Equal(t, req.ID, cancelled.ID)
	assert.Equal(t, domain.FollowStatusCancelled, cancelled.Status)

	_, err = s.Requests.Cancel(ctx, a, b)
	assert.ErrorIs(t, err, domain.ErrFollowRequestNotFound)
	_, err = s.Requests.FindPending(ctx, a, b)
	assert.ErrorIs(t, err, domain.ErrFollowRequestNotFound)

	// Après un état terminal, une nouvelle demande est possible.
	again, err := domain.NewFollowRequest(a, "alice", b, "bob", "")
	require.NoError(t, err)
	require.NoError(t, s.Requests.Create(ctx, again))
}

func testConcurrentRequests(t *testing.T, s Stores) {
	ctx := context.Background()
	a, b := domain.NewID(), domain.NewID()

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, err := domain.NewFollowRequest(a, "alice", b, "bob", "")
			if err == nil {
				err = s.Requests.Create(ctx, req)
			}
			errs[i] = err
		}()
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrFollowRequestExists)
	}
	assert.Equal(t, 1, ok)
}

func testNotifications(t *testing.T, s Stores) {
	ctx := context.Background()
	alice, bob := domain.NewID(), domain.NewID()
	requestID := domain.NewID()

	followReq, err := domain.NewNotification(bob, alice, "alice", domain.NotificationFollowRequest,
		domain.FollowRequestMessage("alice"), domain.NotificationData{FollowRequestID: requestID})
	require.NoError(t, err)
	require.NoError(t, s.Notifications.Create(ctx, followReq))

	liked, err := domain.NewNotification(bob, alice, "alice", domain.NotificationLike,
		domain.InteractionMessage("alice", domain.NotificationLike), domain.NotificationData{PostID: "post-1"})
	require.NoError(t, err)
	require.NoError(t, s.Notifications.Create(ctx, liked))

	items, total, err := s.Notifications.ListForRecipient(ctx, bob, ports.Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, items, 2)

	unread, err := s.Notifications.CountUnread(ctx, bob)
	require.NoError(t, err)
	assert.EqualValues(t, 2, unread)

	assert.ErrorIs(t, s.Notifications.MarkRead(ctx, liked.ID, alice), domain.ErrNotificationNotFound)
	require.NoError(t, s.Notifications.MarkRead(ctx, liked.ID, bob))

	marked, err := s.Notifications.MarkAllRead(ctx, bob)
	require.NoError(t, err)
	assert.EqualValues(t, 1, marked)

	require.NoError(t, s.Notifications.DeleteByFollowRequest(ctx, bob, alice, requestID))
	assert.ErrorIs(t, s.Notifications.DeleteByFollowRequest(ctx, bob, alice, requestID), domain.ErrNotificationNotFound)

	require.NoError(t, s.Notifications.Delete(ctx, liked.ID, bob))
	items, total, err = s.Notifications.ListForRecipient(ctx, bob, ports.Page{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, items)
}
