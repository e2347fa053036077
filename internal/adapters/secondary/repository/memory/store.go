// Package memory fournit un store en mémoire (tests, STORE_DRIVER=memory).
// Un seul verrou couvre les trois collections : les écritures d'arêtes sont donc atomiques.
package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/askarthikey/cleverSM/internal/core/domain"
	"github.com/askarthikey/cleverSM/internal/core/ports"
)

type Store struct {
	mu            sync.RWMutex
	users         map[string]*domain.User
	requests      map[string]*domain.FollowRequest
	notifications map[string]*domain.Notification
}

func NewStore() *Store {
	return &Store{
		users:         make(map[string]*domain.User),
		requests:      make(map[string]*domain.FollowRequest),
		notifications: make(map[string]*domain.Notification),
	}
}

var (
	_ ports.UserRepository          = (*UserRepository)(nil)
	_ ports.FollowRequestRepository = (*FollowRequestRepository)(nil)
	_ ports.NotificationRepository  = (*NotificationRepository)(nil)
)

func (s *Store) Users() *UserRepository { return &UserRepository{s} }

func (s *Store) FollowRequests() *FollowRequestRepository { return &FollowRequestRepository{s} }

func (s *Store) Notifications() *NotificationRepository { return &NotificationRepository{s} }

func paginate[T any](items []T, page ports.Page) []T {
	page = page.Normalize()
	start := min(page.Offset(), len(items))
	end := min(start+page.Limit, len(items))
	return items[start:end]
}

// --- USERS ---

type UserRepository struct{ s *Store }

func (r *UserRepository) Create(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		switch {
		case strings.EqualFold(u.Username, user.Username):
			return domain.ErrUsernameTaken
		case user.Email != "" && u.Email == user.Email:
			return domain.ErrEmailTaken
		case user.Phone != "" && u.Phone == user.Phone:
			return domain.ErrPhoneTaken
		}
	}
	r.s.users[user.ID] = user.Clone()
	return nil
}

func (r *UserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return u.Clone(), nil
}

func (r *UserRepository) GetByIdentifier(_ context.Context, identifier string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if u.Username == identifier || (u.Email != "" && u.Email == strings.ToLower(identifier)) || (u.Phone != "" && u.Phone == identifier) {
			return u.Clone(), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

// GetByIDs ignore les IDs inconnus et conserve l'ordre demandé.
func (r *UserRepository) GetByIDs(_ context.Context, ids []string) ([]*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*domain.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := r.s.users[id]; ok {
			out = append(out, u.Clone())
		}
	}
	return out, nil
}

func (r *UserRepository) UsernameExists(_ context.Context, username string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if strings.EqualFold(u.Username, username) {
			return true, nil
		}
	}
	return false, nil
}

func (r *UserRepository) Search(_ context.Context, query, excludeID string, page ports.Page) ([]*domain.User, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	q := strings.ToLower(query)
	var matches []*domain.User
	for _, u := range r.sorted() {
		if u.ID != excludeID && strings.Contains(strings.ToLower(u.Username), q) {
			matches = append(matches, u)
		}
	}
	return clones(paginate(matches, page)), int64(len(matches)), nil
}

func (r *UserRepository) ListExcluding(_ context.Context, exclude []string, offset, limit int) ([]*domain.User, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*domain.User
	for _, u := range r.sorted() {
		if !slices.Contains(exclude, u.ID) {
			out = append(out, u)
		}
	}
	start := min(max(offset, 0), len(out))
	end := min(start+max(limit, 0), len(out))
	return clones(out[start:end]), int64(len(out)), nil
}

func (r *UserRepository) UpdatePassword(_ context.Context, id, hash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.UpdatePassword(hash)
	return nil
}

func (r *UserRepository) AddFollowEdge(_ context.Context, followerID, targetID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	follower, target, err := r.pair(followerID, targetID)
	if err != nil {
		return err
	}
	follower.Follow(targetID)
	target.AddFollower(followerID)
	return nil
}

func (r *UserRepository) RemoveFollowEdge(_ context.Context, followerID, targetID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	follower, target, err := r.pair(followerID, targetID)
	if err != nil {
		return err
	}
	follower.Unfollow(targetID)
	target.RemoveFollower(followerID)
	return nil
}

func (r *UserRepository) IsFollowing(_ context.Context, followerID, targetID string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[followerID]
	if !ok {
		return false, domain.ErrUserNotFound
	}
	return u.IsFollowing(targetID), nil
}

func (r *UserRepository) pair(followerID, targetID string) (*domain.User, *domain.User, error) {
	follower, ok := r.s.users[followerID]
	if !ok {
		return nil, nil, domain.ErrUserNotFound
	}
	target, ok := r.s.users[targetID]
	if !ok {
		return nil, nil, domain.ErrUserNotFound
	}
	return follower, target, nil
}

// sorted : ordre déterministe (username) pour la pagination.
func (r *UserRepository) sorted() []*domain.User {
	out := make([]*domain.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

func clones(users []*domain.User) []*domain.User {
	out := make([]*domain.User, len(users))
	for i, u := range users {
		out[i] = u.Clone()
	}
	return out
}

// --- FOLLOW REQUESTS ---

type FollowRequestRepository struct{ s *Store }

func (r *FollowRequestRepository) Create(_ context.Context, req *domain.FollowRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	// Équivalent de l'index unique partiel (senderId, recipientId) WHERE status = pending
	if r.findPending(req.SenderID, req.RecipientID) != nil {
		return domain.ErrFollowRequestExists
	}
	c := *req
	r.s.requests[req.ID] = &c
	return nil
}

func (r *FollowRequestRepository) GetByID(_ context.Context, id string) (*domain.FollowRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	req, ok := r.s.requests[id]
	if !ok {
		return nil, domain.ErrFollowRequestNotFound
	}
	c := *req
	return &c, nil
}

func (r *FollowRequestRepository) FindPending(_ context.Context, senderID, recipientID string) (*domain.FollowRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	req := r.findPending(senderID, recipientID)
	if req == nil {
		return nil, domain.ErrFollowRequestNotFound
	}
	c := *req
	return &c, nil
}

func (r *FollowRequestRepository) Transition(_ context.Context, id, recipientID string, to domain.FollowStatus) (*domain.FollowRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	req, ok := r.s.requests[id]
	if !ok || req.RecipientID != recipientID || !req.IsPending() {
		return nil, domain.ErrFollowRequestNotFound
	}
	if err := req.Transition(to); err != nil {
		return nil, err
	}
	c := *req
	return &c, nil
}

func (r *FollowRequestRepository) Cancel(_ context.Context, senderID, recipientID string) (*domain.FollowRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	req := r.findPending(senderID, recipientID)
	if req == nil {
		return nil, domain.ErrFollowRequestNotFound
	}
	if err := req.Transition(domain.FollowStatusCancelled); err != nil {
		return nil, err
	}
	c := *req
	return &c, nil
}

func (r *FollowRequestRepository) Restore(_ context.Context, id string, from domain.FollowStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	req, ok := r.s.requests[id]
	if !ok || req.Status != from {
		return domain.ErrFollowRequestNotFound
	}
	if r.findPending(req.SenderID, req.RecipientID) != nil {
		return domain.ErrFollowRequestExists
	}
	return req.Restore(from)
}

func (r *FollowRequestRepository) ListPendingForRecipient(_ context.Context, recipientID string, page ports.Page) ([]*domain.FollowRequest, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := r.filterPending(func(req *domain.FollowRequest) bool { return req.RecipientID == recipientID })
	return paginate(out, page), int64(len(out)), nil
}

func (r *FollowRequestRepository) ListPendingBySender(_ context.Context, senderID string) ([]*domain.FollowRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return r.filterPending(func(req *domain.FollowRequest) bool { return req.SenderID == senderID }), nil
}

func (r *FollowRequestRepository) findPending(senderID, recipientID string) *domain.FollowRequest {
	for _, req := range r.s.requests {
		if req.SenderID == senderID && req.RecipientID == recipientID && req.IsPending() {
			return req
		}
	}
	return nil
}

// filterPending : copies triées du plus récent au plus ancien.
func (r *FollowRequestRepository) filterPending(keep func(*domain.FollowRequest) bool) []*domain.FollowRequest {
	var out []*domain.FollowRequest
	for _, req := range r.s.requests {
		if req.IsPending() && keep(req) {
			c := *req
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// --- NOTIFICATIONS ---

type NotificationRepository struct{ s *Store }

func (r *NotificationRepository) Create(_ context.Context, n *domain.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c := *n
	r.s.notifications[n.ID] = &c
	return nil
}

func (r *NotificationRepository) ListForRecipient(_ context.Context, recipientID string, page ports.Page) ([]*domain.Notification, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*domain.Notification
	for _, n := range r.s.notifications {
		if n.RecipientID == recipientID {
			c := *n
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, page), int64(len(out)), nil
}

func (r *NotificationRepository) CountUnread(_ context.Context, recipientID string) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var n int64
	for _, item := range r.s.notifications {
		if item.RecipientID == recipientID && !item.IsRead {
			n++
		}
	}
	return n, nil
}

func (r *NotificationRepository) MarkRead(_ context.Context, id, recipientID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n, ok := r.s.notifications[id]
	if !ok || n.RecipientID != recipientID {
		return domain.ErrNotificationNotFound
	}
	n.MarkRead()
	return nil
}

func (r *NotificationRepository) MarkAllRead(_ context.Context, recipientID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var count int64
	for _, n := range r.s.notifications {
		if n.RecipientID == recipientID && !n.IsRead {
			n.MarkRead()
			count++
		}
	}
	return count, nil
}

func (r *NotificationRepository) Delete(_ context.Context, id, recipientID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n, ok := r.s.notifications[id]
	if !ok || n.RecipientID != recipientID {
		return domain.ErrNotificationNotFound
	}
	delete(r.s.notifications, id)
	return nil
}

func (r *NotificationRepository) DeleteByFollowRequest(_ context.Context, recipientID, senderID, followRequestID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for id, n := range r.s.notifications {
		if n.RecipientID == recipientID && n.SenderID == senderID &&
			n.Type == domain.NotificationFollowRequest && n.Data.FollowRequestID == followRequestID {
			delete(r.s.notifications, id)
			return nil
		}
	}
	return domain.ErrNotificationNotFound
}
