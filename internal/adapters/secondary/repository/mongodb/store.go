// Package mongodb est le store documentaire par défaut (users, followRequests, notifications).
package mongodb

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/askarthikey/cleverSM/internal/core/domain"
	"github.com/askarthikey/cleverSM/internal/core/ports"
)

const (
	usersCollection         = "users"
	followRequestCollection = "followRequests"
	notificationCollection  = "notifications"

	idxUsername      = "uniq_username"
	idxEmail         = "uniq_email"
	idxPhone         = "uniq_phone"
	idxPendingFollow = "uniq_pending_follow_request"
)

type Store struct {
	db *mongo.Database
}

func NewStore(db *mongo.Database) *Store {
	return &Store{db: db}
}

var (
	_ ports.UserRepository          = (*UserRepository)(nil)
	_ ports.FollowRequestRepository = (*FollowRequestRepository)(nil)
	_ ports.NotificationRepository  = (*NotificationRepository)(nil)
)

func (s *Store) Users() *UserRepository {
	coll := s.db.Collection(usersCollection)
	return &UserRepository{coll: coll, edges: coll}
}

func (s *Store) FollowRequests() *FollowRequestRepository {
	return &FollowRequestRepository{coll: s.db.Collection(followRequestCollection)}
}

func (s *Store) Notifications() *NotificationRepository {
	return &NotificationRepository{coll: s.db.Collection(notificationCollection)}
}

// EnsureIndexes crée les index (idempotent). L'index partiel sur les demandes pending
// est la garantie d'unicité des demandes concurrentes.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	specs := map[string][]mongo.IndexModel{
		usersCollection: {
			{
				Keys:    bson.D{{Key: "usernameLower", Value: 1}},
				Options: options.Index().SetName(idxUsername).SetUnique(true),
			},
			{
				Keys: bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetName(idxEmail).SetUnique(true).
					SetPartialFilterExpression(bson.M{"email": bson.M{"$exists": true}}),
			},
			{
				Keys: bson.D{{Key: "phone", Value: 1}},
				Options: options.Index().SetName(idxPhone).SetUnique(true).
					SetPartialFilterExpression(bson.M{"phone": bson.M{"$exists": true}}),
			},
		},
		followRequestCollection: {
			{
				Keys: bson.D{{Key: "senderId", Value: 1}, {Key: "recipientId", Value: 1}},
				Options: options.Index().SetName(idxPendingFollow).SetUnique(true).
					SetPartialFilterExpression(bson.M{"status": string(domain.FollowStatusPending)}),
			},
			{Keys: bson.D{{Key: "recipientId", Value: 1}, {Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		notificationCollection: {
			{Keys: bson.D{{Key: "recipientId", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "recipientId", Value: 1}, {Key: "isRead", Value: 1}}},
			{Keys: bson.D{{Key: "data.followRequestId", Value: 1}}},
		},
	}

	for coll, models := range specs {
		if _, err := s.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("mongo: create indexes on %s: %w", coll, err)
		}
	}
	slog.Info("✅ MongoDB indexes ensured", "database", s.db.Name())
	return nil
}

// duplicateKey traduit une violation d'index unique vers l'erreur du domaine correspondante.
func duplicateKey(err error) error {
	if !mongo.IsDuplicateKeyError(err) {
		return err
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, idxUsername):
		return domain.ErrUsernameTaken
	case strings.Contains(msg, idxEmail):
		return domain.ErrEmailTaken
	case strings.Contains(msg, idxPhone):
		return domain.ErrPhoneTaken
	case strings.Contains(msg, idxPendingFollow):
		return domain.ErrFollowRequestExists
	}
	return err
}

func findOptions(page ports.Page, sort bson.D) *options.FindOptions {
	page = page.Normalize()
	return options.Find().
		SetSort(sort).
		SetSkip(int64(page.Offset())).
		SetLimit(int64(page.Limit))
}
