package mongodb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/askarthikey/cleverSM/internal/core/domain"
	"github.com/askarthikey/cleverSM/internal/core/ports"
)

// userDoc : DTO BSON. L'ID du domaine (UUID) sert de _id.
type userDoc struct {
	ID             string    `bson:"_id"`
	Username       string    `bson:"username"`
	UsernameLower  string    `bson:"usernameLower"`
	Email          string    `bson:"email,omitempty"`
	Phone          string    `bson:"phone,omitempty"`
	Password       string    `bson:"password"`
	ProfilePicture string    `bson:"profilePicture,omitempty"`
	Bio            string    `bson:"bio,omitempty"`
	Followers      []string  `bson:"followers"`
	Following      []string  `bson:"following"`
	IsVerified     bool      `bson:"isVerified"`
	CreatedAt      time.Time `bson:"createdAt"`
	UpdatedAt      time.Time `bson:"updatedAt"`
}

func fromUser(u *domain.User) userDoc {
	followers, following := u.Followers, u.Following
	if followers == nil {
		followers = []string{}
	}
	if following == nil {
		following = []string{}
	}
	return userDoc{
		ID:             u.ID,
		Username:       u.Username,
		UsernameLower:  strings.ToLower(u.Username),
		Email:          u.Email,
		Phone:          u.Phone,
		Password:       u.PasswordHash,
		ProfilePicture: u.ProfilePicture,
		Bio:            u.Bio,
		Followers:      followers,
		Following:      following,
		IsVerified:     u.IsVerified,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}

func (d *userDoc) toDomain() *domain.User {
	return &domain.User{
		ID:             d.ID,
		Username:       d.Username,
		Email:          d.Email,
		Phone:          d.Phone,
		PasswordHash:   d.Password,
		ProfilePicture: d.ProfilePicture,
		Bio:            d.Bio,
		Followers:      d.Followers,
		Following:      d.Following,
		IsVerified:     d.IsVerified,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

type UserRepository struct {
	coll  *mongo.Collection
	edges edgeCollection
}

// edgeCollection : sous-ensemble de *mongo.Collection utilisé par les écritures d'arêtes.
type edgeCollection interface {
	UpdateOne(ctx context.Context, filter, update any, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	CountDocuments(ctx context.Context, filter any, opts ...*options.CountOptions) (int64, error)
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	if _, err := r.coll.InsertOne(ctx, fromUser(user)); err != nil {
		return fmt.Errorf("mongo: insert user: %w", duplicateKey(err))
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *UserRepository) GetByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"$or": bson.A{
		bson.M{"usernameLower": strings.ToLower(identifier)},
		bson.M{"email": strings.ToLower(identifier)},
		bson.M{"phone": identifier},
	}})
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var doc userDoc
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("mongo: find user: %w", err)
	}
	return doc.toDomain(), nil
}

// GetByIDs conserve l'ordre des IDs demandés ($in ne le garantit pas).
func (r *UserRepository) GetByIDs(ctx context.Context, ids []string) ([]*domain.User, error) {
	if len(ids) == 0 {
		return []*domain.User{}, nil
	}
	users, err := r.find(ctx, bson.M{"_id": bson.M{"$in": ids}}, options.Find())
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*domain.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	out := make([]*domain.User, 0, len(users))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *UserRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{"usernameLower": strings.ToLower(username)}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("mongo: count username: %w", err)
	}
	return n > 0, nil
}

func (r *UserRepository) Search(ctx context.Context, query, excludeID string, page ports.Page) ([]*domain.User, int64, error) {
	filter := bson.M{
		"username": bson.M{"$regex": regexp.QuoteMeta(query), "$options": "i"},
		"_id":      bson.M{"$ne": excludeID},
	}
	users, err := r.find(ctx, filter, findOptions(page, bson.D{{Key: "usernameLower", Value: 1}}))
	if err != nil {
		return nil, 0, err
	}
	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("mongo: count search: %w", err)
	}
	return users, total, nil
}

func (r *UserRepository) ListExcluding(ctx context.Context, exclude []string, offset, limit int) ([]*domain.User, int64, error) {
	filter := bson.M{"_id": bson.M{"$nin": exclude}}
	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("mongo: count suggestions: %w", err)
	}
	if limit <= 0 || int64(offset) >= total {
		return []*domain.User{}, total, nil
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	users, err := r.find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *UserRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*domain.User, error) {
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: find users: %w", err)
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo: decode users: %w", err)
	}
	out := make([]*domain.User, len(docs))
	for i := range docs {
		out[i] = docs[i].toDomain()
	}
	return out, nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id, hash string) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"password": hash, "updatedAt": time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("mongo: update password: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// AddFollowEdge écrit les deux côtés sans transaction : si le second échoue,
// le premier est compensé, uniquement s'il a réellement ajouté l'arête.
func (r *UserRepository) AddFollowEdge(ctx context.Context, followerID, targetID string) error {
	res, err := r.edges.UpdateOne(ctx,
		bson.M{"_id": followerID, "following": bson.M{"$ne": targetID}},
		bson.M{
			"$addToSet": bson.M{"following": targetID},
			"$set":      bson.M{"updatedAt": time.Now().UTC()},
		})
	if err != nil {
		return fmt.Errorf("mongo: $addToSet following: %w", err)
	}
	added := res.ModifiedCount > 0
	if !added {
		if err := r.mustExist(ctx, followerID); err != nil {
			return err
		}
	}

	if _, err = r.edge(ctx, "$addToSet", targetID, "followers", followerID); err == nil {
		return nil
	}

	if added {
		if _, cerr := r.edge(ctx, "$pull", followerID, "following", targetID); cerr != nil {
			slog.ErrorContext(ctx, "❌ Follow edge compensation failed", "follower_id", followerID, "target_id", targetID, "error", cerr)
		}
	}
	return err
}

func (r *UserRepository) mustExist(ctx context.Context, id string) error {
	n, err := r.edges.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("mongo: count user: %w", err)
	}
	if n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// RemoveFollowEdge : symétrique d'AddFollowEdge. Si le second $pull échoue,
// le premier est compensé, uniquement s'il a réellement retiré l'arête.
func (r *UserRepository) RemoveFollowEdge(ctx context.Context, followerID, targetID string) error {
	res, err := r.edges.UpdateOne(ctx,
		bson.M{"_id": followerID, "following": targetID},
		bson.M{
			"$pull": bson.M{"following": targetID},
			"$set":  bson.M{"updatedAt": time.Now().UTC()},
		})
	if err != nil {
		return fmt.Errorf("mongo: $pull following: %w", err)
	}
	removed := res.ModifiedCount > 0
	if !removed {
		if err := r.mustExist(ctx, followerID); err != nil {
			return err
		}
	}

	if _, err = r.edge(ctx, "$pull", targetID, "followers", followerID); err == nil {
		return nil
	}

	if removed {
		if _, cerr := r.edge(ctx, "$addToSet", followerID, "following", targetID); cerr != nil {
			slog.ErrorContext(ctx, "❌ Unfollow edge compensation failed", "follower_id", followerID, "target_id", targetID, "error", cerr)
		}
	}
	return err
}

func (r *UserRepository) edge(ctx context.Context, op, userID, field, value string) (*mongo.UpdateResult, error) {
	res, err := r.edges.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{
		op:     bson.M{field: value},
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	})
	if err != nil {
		return nil, fmt.Errorf("mongo: %s %s: %w", op, field, err)
	}
	if res.MatchedCount == 0 {
		return nil, domain.ErrUserNotFound
	}
	return res, nil
}

func (r *UserRepository) IsFollowing(ctx context.Context, followerID, targetID string) (bool, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{"_id": followerID, "following": targetID}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("mongo: is following: %w", err)
	}
	return n > 0, nil
}
