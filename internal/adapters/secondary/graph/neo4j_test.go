package graph

import (
	"context"
	"os"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askarthikey/cleverSM/internal/core/domain"
)

func newTestProjection(t *testing.T) *Neo4jProjection {
	t.Helper()
	uri := os.Getenv("NEO4J_TEST_URI")
	if uri == "" {
		t.Skip("NEO4J_TEST_URI not set")
	}
	driver, err := neo4j.NewDriverWithContext(uri,
		neo4j.BasicAuth(os.Getenv("NEO4J_TEST_USER"), os.Getenv("NEO4J_TEST_PASSWORD"), ""))
	require.NoError(t, err)
	t.Cleanup(func() { _ = driver.Close(context.Background()) })

	ctx := context.Background()
	require.NoError(t, driver.VerifyConnectivity(ctx))

	p := NewNeo4jProjection(driver, "")
	require.NoError(t, p.EnsureSchema(ctx))
	return p
}

func TestNeo4jProjection(t *testing.T) {
	p := newTestProjection(t)
	ctx := context.Background()

	alice, bob, carol, dave := domain.NewID(), domain.NewID(), domain.NewID(), domain.NewID()
	t.Cleanup(func() {
		_ = p.write(ctx, `MATCH (u:User) WHERE u.id IN $ids DETACH DELETE u`,
			map[string]any{"ids": []string{alice, bob, carol, dave}})
	})

	t.Run("relation status", func(t *testing.T) {
		require.NoError(t, p.CreateRelation(ctx, alice, bob))
		require.NoError(t, p.CreateRelation(ctx, alice, bob)) // idempotent

		status, err := p.GetRelationStatus(ctx, alice, bob)
		require.NoError(t, err)
		assert.True(t, status.IsFollowing)
		assert.False(t, status.IsFollowedBy)

		status, err = p.GetRelationStatus(ctx, alice, domain.NewID())
		require.NoError(t, err)
		assert.Equal(t, &domain.RelationStatus{}, status)
	})

	t.Run("friends of friends ranked by mutual count", func(t *testing.T) {
		require.NoError(t, p.CreateRelation(ctx, alice, carol))
		require.NoError(t, p.CreateRelation(ctx, bob, dave))
		require.NoError(t, p.CreateRelation(ctx, carol, dave))
		require.NoError(t, p.CreateRelation(ctx, bob, alice))

		ids, err := p.SuggestFriendsOfFriends(ctx, alice, 10)
		require.NoError(t, err)
		assert.Equal(t, []string{dave}, ids, "self and already-followed users are excluded")
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, p.DeleteRelation(ctx, alice, bob))
		status, err := p.GetRelationStatus(ctx, alice, bob)
		require.NoError(t, err)
		assert.False(t, status.IsFollowing)
		assert.True(t, status.IsFollowedBy)
	})
}
