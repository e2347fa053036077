package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/askarthikey/cleverSM/internal/core/domain"
	"github.com/askarthikey/cleverSM/internal/core/ports"
)

type notificationDoc struct {
	ID             string              `bson:"_id"`
	RecipientID    string              `bson:"recipientId"`
	SenderID       string              `bson:"senderId"`
	SenderUsername string              `bson:"senderUsername"`
	Type           string              `bson:"type"`
	Message        string              `bson:"message"`
	Data           notificationDataDoc `bson:"data"`
	IsRead         bool                `bson:"isRead"`
	CreatedAt      time.Time           `bson:"createdAt"`
	UpdatedAt      time.Time           `bson:"updatedAt"`
}

type notificationDataDoc struct {
	FollowRequestID string `bson:"followRequestId,omitempty"`
	PostID          string `bson:"postId,omitempty"`
	CommentID       string `bson:"commentId,omitempty"`
}

func (d *notificationDoc) toDomain() *domain.Notification {
	return &domain.Notification{
		ID:             d.ID,
		RecipientID:    d.RecipientID,
		SenderID:       d.SenderID,
		SenderUsername: d.SenderUsername,
		Type:           domain.NotificationType(d.Type),
		Message:        d.Message,
		Data: domain.NotificationData{
			FollowRequestID: d.Data.FollowRequestID,
			PostID:          d.Data.PostID,
			CommentID:       d.Data.CommentID,
		},
		IsRead:    d.IsRead,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

type NotificationRepository struct {
	coll *mongo.Collection
}

func (r *NotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	doc := notificationDoc{
		ID:             n.ID,
		RecipientID:    n.RecipientID,
		SenderID:       n.SenderID,
		SenderUsername: n.SenderUsername,
		Type:           string(n.Type),
		Message:        n.Message,
		Data: notificationDataDoc{
			FollowRequestID: n.Data.FollowRequestID,
			PostID:          n.Data.PostID,
			CommentID:       n.Data.CommentID,
		},
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("mongo: insert notification: %w", err)
	}
	return nil
}

func (r *NotificationRepository) ListForRecipient(ctx context.Context, recipientID string, page ports.Page) ([]*domain.Notification, int64, error) {
	filter := bson.M{"recipientId": recipientID}

	cur, err := r.coll.Find(ctx, filter, findOptions(page, bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, 0, fmt.Errorf("mongo: find notifications: %w", err)
	}
	var docs []notificationDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("mongo: decode notifications: %w", err)
	}

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("mongo: count notifications: %w", err)
	}

	out := make([]*domain.Notification, len(docs))
	for i := range docs {
		out[i] = docs[i].toDomain()
	}
	return out, total, nil
}

func (r *NotificationRepository) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{"recipientId": recipientID, "isRead": false})
	if err != nil {
		return 0, fmt.Errorf("mongo: count unread: %w", err)
	}
	return n, nil
}

func (r *NotificationRepository) MarkRead(ctx context.Context, id, recipientID string) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "recipientId": recipientID},
		bson.M{"$set": bson.M{"isRead": true, "updatedAt": time.Now().UTC()}})
	if err != nil {
		return fmt.Errorf("mongo: mark read: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotificationNotFound
	}
	return nil
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	res, err := r.coll.UpdateMany(ctx,
		bson.M{"recipientId": recipientID, "isRead": false},
		bson.M{"$set": bson.M{"isRead": true, "updatedAt": time.Now().UTC()}})
	if err != nil {
		return 0, fmt.Errorf("mongo: mark all read: %w", err)
	}
	return res.ModifiedCount, nil
}

func (r *NotificationRepository) Delete(ctx context.Context, id, recipientID string) error {
	return r.deleteOne(ctx, bson.M{"_id": id, "recipientId": recipientID})
}

func (r *NotificationRepository) DeleteByFollowRequest(ctx context.Context, recipientID, senderID, followRequestID string) error {
	return r.deleteOne(ctx, bson.M{
		"recipientId":          recipientID,
		"senderId":             senderID,
		"type":                 string(domain.NotificationFollowRequest),
		"data.followRequestId": followRequestID,
	})
}

func (r *NotificationRepository) deleteOne(ctx context.Context, filter bson.M) error {
	res, err := r.coll.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("mongo: delete notification: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotificationNotFound
	}
	return nil
}
