package mongodb

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/askarthikey/cleverSM/internal/core/domain"
)

type updateCall struct {
	filter bson.M
	update bson.M
}

type updateReply struct {
	res *mongo.UpdateResult
	err error
}

// scriptedEdges rejoue une réponse par appel à UpdateOne.
type scriptedEdges struct {
	replies []updateReply
	calls   []updateCall
	users   int64
}

func (s *scriptedEdges) UpdateOne(_ context.Context, filter, update any, _ ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	s.calls = append(s.calls, updateCall{filter: filter.(bson.M), update: update.(bson.M)})
	if len(s.replies) == 0 {
		return &mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r.res, r.err
}

func (s *scriptedEdges) CountDocuments(context.Context, any, ...*options.CountOptions) (int64, error) {
	return s.users, nil
}

func modified(n int64) updateReply {
	return updateReply{res: &mongo.UpdateResult{MatchedCount: 1, ModifiedCount: n}}
}

var errWrite = errors.New("write concern timeout")

func operator(c updateCall) string {
	for op := range c.update {
		if op != "$set" {
			return op
		}
	}
	return ""
}

func TestRemoveFollowEdge_SecondWriteFailureRestoresFollowing(t *testing.T) {
	edges := &scriptedEdges{replies: []updateReply{modified(1), {err: errWrite}}, users: 1}
	repo := &UserRepository{edges: edges}
	alice, bob := domain.NewID(), domain.NewID()

	err := repo.RemoveFollowEdge(context.Background(), alice, bob)
	require.ErrorIs(t, err, errWrite)

	require.Len(t, edges.calls, 3)
	assert.Equal(t, bson.M{"_id": alice, "following": bob}, edges.calls[0].filter)
	assert.Equal(t, "$pull", operator(edges.calls[0]))
	assert.Equal(t, bson.M{"_id": bob}, edges.calls[1].filter)
	assert.Equal(t, "$pull", operator(edges.calls[1]))
	assert.Equal(t, bson.M{"_id": alice}, edges.calls[2].filter)
	assert.Equal(t, "$addToSet", operator(edges.calls[2]))
	assert.Equal(t, bson.M{"following": bob}, edges.calls[2].update["$addToSet"])
}

func TestRemoveFollowEdge_NothingRemovedIsNotCompensated(t *testing.T) {
	edges := &scriptedEdges{replies: []updateReply{{res: &mongo.UpdateResult{}}, {err: errWrite}}, users: 1}
	repo := &UserRepository{edges: edges}

	err := repo.RemoveFollowEdge(context.Background(), domain.NewID(), domain.NewID())
	require.ErrorIs(t, err, errWrite)
	assert.Len(t, edges.calls, 2)
}

func TestRemoveFollowEdge_UnknownFollower(t *testing.T) {
	edges := &scriptedEdges{replies: []updateReply{{res: &mongo.UpdateResult{}}}}
	repo := &UserRepository{edges: edges}

	err := repo.RemoveFollowEdge(context.Background(), domain.NewID(), domain.NewID())
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	assert.Len(t, edges.calls, 1)
}

func TestRemoveFollowEdge_BothSides(t *testing.T) {
	edges := &scriptedEdges{users: 1}
	repo := &UserRepository{edges: edges}

	require.NoError(t, repo.RemoveFollowEdge(context.Background(), domain.NewID(), domain.NewID()))
	assert.Len(t, edges.calls, 2)
}

func TestAddFollowEdge_SecondWriteFailureRemovesFollowing(t *testing.T) {
	edges := &scriptedEdges{replies: []updateReply{modified(1), {err: errWrite}}, users: 1}
	repo := &UserRepository{edges: edges}
	alice, bob := domain.NewID(), domain.NewID()

	err := repo.AddFollowEdge(context.Background(), alice, bob)
	require.ErrorIs(t, err, errWrite)

	require.Len(t, edges.calls, 3)
	assert.Equal(t, "$addToSet", operator(edges.calls[0]))
	assert.Equal(t, "$addToSet", operator(edges.calls[1]))
	assert.Equal(t, bson.M{"_id": alice}, edges.calls[2].filter)
	assert.Equal(t, "$pull", operator(edges.calls[2]))
}
