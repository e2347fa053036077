package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/askarthikey/cleverSM/internal/core/domain"
	"github.com/askarthikey/cleverSM/internal/core/ports"
)

// Neo4jProjection : copie du graphe d'abonnements pour les requêtes de voisinage.
// Le store documentaire reste la source de vérité.
type Neo4jProjection struct {
	driver   neo4j.DriverWithContext
	database string
}

var _ ports.GraphProjection = (*Neo4jProjection)(nil)

func NewNeo4jProjection(driver neo4j.DriverWithContext, database string) *Neo4jProjection {
	return &Neo4jProjection{driver: driver, database: database}
}

func (p *Neo4jProjection) options(routing neo4j.ExecuteQueryConfigurationOption) []neo4j.ExecuteQueryConfigurationOption {
	opts := []neo4j.ExecuteQueryConfigurationOption{routing}
	if p.database != "" {
		opts = append(opts, neo4j.ExecuteQueryWithDatabase(p.database))
	}
	return opts
}

func (p *Neo4jProjection) write(ctx context.Context, query string, params map[string]any) error {
	_, err := neo4j.ExecuteQuery(ctx, p.driver, query, params,
		neo4j.EagerResultTransformer, p.options(neo4j.ExecuteQueryWithWritersRouting())...)
	return err
}

func (p *Neo4jProjection) read(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
	return neo4j.ExecuteQuery(ctx, p.driver, query, params,
		neo4j.EagerResultTransformer, p.options(neo4j.ExecuteQueryWithReadersRouting())...)
}

// EnsureSchema : contrainte d'unicité sur User.id (crée aussi l'index).
func (p *Neo4jProjection) EnsureSchema(ctx context.Context) error {
	return p.write(ctx, `CREATE CONSTRAINT user_id_unique IF NOT EXISTS FOR (u:User) REQUIRE u.id IS UNIQUE`, nil)
}

// CreateRelation est idempotent (MERGE).
func (p *Neo4jProjection) CreateRelation(ctx context.Context, actorID, targetID string) error {
	err := p.write(ctx, `
		MERGE (a:User {id: $actorId})
		MERGE (b:User {id: $targetId})
		MERGE (a)-[r:FOLLOWS]->(b)
		ON CREATE SET r.created_at = datetime()
	`, map[string]any{"actorId": actorID, "targetId": targetID})
	if err != nil {
		return fmt.Errorf("neo4j create relation: %w", err)
	}
	return nil
}

func (p *Neo4jProjection) DeleteRelation(ctx context.Context, actorID, targetID string) error {
	err := p.write(ctx, `
		MATCH (:User {id: $actorId})-[r:FOLLOWS]->(:User {id: $targetId})
		DELETE r
	`, map[string]any{"actorId": actorID, "targetId": targetID})
	if err != nil {
		return fmt.Errorf("neo4j delete relation: %w", err)
	}
	return nil
}

func (p *Neo4jProjection) GetRelationStatus(ctx context.Context, actorID, targetID string) (*domain.RelationStatus, error) {
	res, err := p.read(ctx, `
		MATCH (a:User {id: $actorId}), (b:User {id: $targetId})
		RETURN EXISTS { (a)-[:FOLLOWS]->(b) } AS following,
		       EXISTS { (b)-[:FOLLOWS]->(a) } AS followedBy
	`, map[string]any{"actorId": actorID, "targetId": targetID})
	if err != nil {
		return nil, fmt.Errorf("neo4j relation status: %w", err)
	}

	status := &domain.RelationStatus{}
	// Aucun noeud : false/false
	if len(res.Records) == 0 {
		return status, nil
	}
	rec := res.Records[0]
	if status.IsFollowing, _, err = neo4j.GetRecordValue[bool](rec, "following"); err != nil {
		return nil, err
	}
	if status.IsFollowedBy, _, err = neo4j.GetRecordValue[bool](rec, "followedBy"); err != nil {
		return nil, err
	}
	return status, nil
}

// SuggestFriendsOfFriends : comptes suivis par mes abonnements, que je ne suis pas encore,
// triés par nombre de relations communes.
func (p *Neo4jProjection) SuggestFriendsOfFriends(ctx context.Context, userID string, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	res, err := p.read(ctx, `
		MATCH (me:User {id: $userId})-[:FOLLOWS]->(:User)-[:FOLLOWS]->(s:User)
		WHERE s <> me AND NOT (me)-[:FOLLOWS]->(s)
		RETURN s.id AS id, count(*) AS mutual
		ORDER BY mutual DESC, id ASC
		LIMIT $limit
	`, map[string]any{"userId": userID, "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("neo4j suggestions: %w", err)
	}

	ids := make([]string, 0, len(res.Records))
	for _, rec := range res.Records {
		id, _, err := neo4j.GetRecordValue[string](rec, "id")
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
