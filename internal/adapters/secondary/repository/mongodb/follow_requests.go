package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/askarthikey/cleverSM/internal/core/domain"
	"github.com/askarthikey/cleverSM/internal/core/ports"
)

type followRequestDoc struct {
	ID                string    `bson:"_id"`
	SenderID          string    `bson:"senderId"`
	SenderUsername    string    `bson:"senderUsername"`
	RecipientID       string    `bson:"recipientId"`
	RecipientUsername string    `bson:"recipientUsername"`
	Status            string    `bson:"status"`
	Message           string    `bson:"message,omitempty"`
	CreatedAt         time.Time `bson:"createdAt"`
	UpdatedAt         time.Time `bson:"updatedAt"`
}

func (d *followRequestDoc) toDomain() *domain.FollowRequest {
	return &domain.FollowRequest{
		ID:                d.ID,
		SenderID:          d.SenderID,
		SenderUsername:    d.SenderUsername,
		RecipientID:       d.RecipientID,
		RecipientUsername: d.RecipientUsername,
		Status:            domain.FollowStatus(d.Status),
		Message:           d.Message,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

type FollowRequestRepository struct {
	coll *mongo.Collection
}

func (r *FollowRequestRepository) Create(ctx context.Context, req *domain.FollowRequest) error {
	doc := followRequestDoc{
		ID:                req.ID,
		SenderID:          req.SenderID,
		SenderUsername:    req.SenderUsername,
		RecipientID:       req.RecipientID,
		RecipientUsername: req.RecipientUsername,
		Status:            string(req.Status),
		Message:           req.Message,
		CreatedAt:         req.CreatedAt,
		UpdatedAt:         req.UpdatedAt,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("mongo: insert follow request: %w", duplicateKey(err))
	}
	return nil
}

func (r *FollowRequestRepository) GetByID(ctx context.Context, id string) (*domain.FollowRequest, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *FollowRequestRepository) FindPending(ctx context.Context, senderID, recipientID string) (*domain.FollowRequest, error) {
	return r.findOne(ctx, bson.M{
		"senderId":    senderID,
		"recipientId": recipientID,
		"status":      string(domain.FollowStatusPending),
	})
}

func (r *FollowRequestRepository) findOne(ctx context.Context, filter bson.M) (*domain.FollowRequest, error) {
	var doc followRequestDoc
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrFollowRequestNotFound
		}
		return nil, fmt.Errorf("mongo: find follow request: %w", err)
	}
	return doc.toDomain(), nil
}

// Transition : mise à jour gardée et atomique (findOneAndUpdate sur status=pending).
func (r *FollowRequestRepository) Transition(ctx context.Context, id, recipientID string, to domain.FollowStatus) (*domain.FollowRequest, error) {
	if !to.IsTerminal() {
		return nil, domain.ErrInvalidTransition
	}
	return r.setStatus(ctx, bson.M{
		"_id":         id,
		"recipientId": recipientID,
		"status":      string(domain.FollowStatusPending),
	}, to)
}

func (r *FollowRequestRepository) Cancel(ctx context.Context, senderID, recipientID string) (*domain.FollowRequest, error) {
	return r.setStatus(ctx, bson.M{
		"senderId":    senderID,
		"recipientId": recipientID,
		"status":      string(domain.FollowStatusPending),
	}, domain.FollowStatusCancelled)
}

// Restore : compensation from -> pending. Échoue (Conflict) si une autre demande pending
// a été créée entre-temps pour la même paire.
func (r *FollowRequestRepository) Restore(ctx context.Context, id string, from domain.FollowStatus) error {
	_, err := r.setStatus(ctx, bson.M{"_id": id, "status": string(from)}, domain.FollowStatusPending)
	return err
}

func (r *FollowRequestRepository) setStatus(ctx context.Context, filter bson.M, to domain.FollowStatus) (*domain.FollowRequest, error) {
	update := bson.M{"$set": bson.M{"status": string(to), "updatedAt": time.Now().UTC()}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc followRequestDoc
	if err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrFollowRequestNotFound
		}
		return nil, fmt.Errorf("mongo: update follow request status: %w", duplicateKey(err))
	}
	return doc.toDomain(), nil
}

func (r *FollowRequestRepository) ListPendingForRecipient(ctx context.Context, recipientID string, page ports.Page) ([]*domain.FollowRequest, int64, error) {
	filter := bson.M{
		"recipientId": recipientID,
		"status":      string(domain.FollowStatusPending),
	}
	reqs, err := r.find(ctx, filter, findOptions(page, bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, 0, err
	}
	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("mongo: count follow requests: %w", err)
	}
	return reqs, total, nil
}

func (r *FollowRequestRepository) ListPendingBySender(ctx context.Context, senderID string) ([]*domain.FollowRequest, error) {
	return r.find(ctx, bson.M{
		"senderId": senderID,
		"status":   string(domain.FollowStatusPending),
	}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
}

func (r *FollowRequestRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*domain.FollowRequest, error) {
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: find follow requests: %w", err)
	}
	var docs []followRequestDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo: decode follow requests: %w", err)
	}
	out := make([]*domain.FollowRequest, len(docs))
	for i := range docs {
		out[i] = docs[i].toDomain()
	}
	return out, nil
}
