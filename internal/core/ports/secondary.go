package ports

import (
	"context"
	"time"

	"github.com/askarthikey/cleverSM/internal/core/domain"
)

// Page : pagination simple page/limit (page commence à 1).
type Page struct {
	Page  int
	Limit int
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Normalize applique les valeurs par défaut et les bornes.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

func (p Page) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.Limit
}

// --- PERSISTANCE (Store) ---

// UserRepository : annuaire des utilisateurs et des deux côtés du graphe social.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// GetByIdentifier cherche par username, email ou téléphone.
	GetByIdentifier(ctx context.Context, identifier string) (*domain.User, error)
	GetByIDs(ctx context.Context, ids []string) ([]*domain.User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	Search(ctx context.Context, query, excludeID string, page Page) ([]*domain.User, int64, error)
	// ListExcluding liste les utilisateurs hors de la liste donnée (suggestions), dans un ordre
	// stable ; offset/limit bruts pour que l'appelant puisse décaler la fenêtre. Renvoie aussi le total.
	ListExcluding(ctx context.Context, exclude []string, offset, limit int) ([]*domain.User, int64, error)
	UpdatePassword(ctx context.Context, id, hash string) error

	// AddFollowEdge : insertion idempotente des deux côtés (tout ou rien).
	AddFollowEdge(ctx context.Context, followerID, targetID string) error
	RemoveFollowEdge(ctx context.Context, followerID, targetID string) error
	IsFollowing(ctx context.Context, followerID, targetID string) (bool, error)
}

// FollowRequestRepository : cycle de vie des demandes d'abonnement.
// Les transitions sont gardées (id + destinataire + statut pending) et atomiques.
type FollowRequestRepository interface {
	Create(ctx context.Context, req *domain.FollowRequest) error
	GetByID(ctx context.Context, id string) (*domain.FollowRequest, error)
	FindPending(ctx context.Context, senderID, recipientID string) (*domain.FollowRequest, error)
	Transition(ctx context.Context, id, recipientID string, to domain.FollowStatus) (*domain.FollowRequest, error)
	Cancel(ctx context.Context, senderID, recipientID string) (*domain.FollowRequest, error)
	Restore(ctx context.Context, id string, from domain.FollowStatus) error
	ListPendingForRecipient(ctx context.Context, recipientID string, page Page) ([]*domain.FollowRequest, int64, error)
	ListPendingBySender(ctx context.Context, senderID string) ([]*domain.FollowRequest, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	ListForRecipient(ctx context.Context, recipientID string, page Page) ([]*domain.Notification, int64, error)
	CountUnread(ctx context.Context, recipientID string) (int64, error)
	MarkRead(ctx context.Context, id, recipientID string) error
	MarkAllRead(ctx context.Context, recipientID string) (int64, error)
	Delete(ctx context.Context, id, recipientID string) error
	DeleteByFollowRequest(ctx context.Context, recipientID, senderID, followRequestID string) error
}

// --- MESSAGERIE (BROKER) ---

// EventPublisher notifie les autres services (feed, graph) des changements du graphe social.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, user *domain.User) error
	PublishFollowRequested(ctx context.Context, req *domain.FollowRequest) error
	PublishFollowResolved(ctx context.Context, req *domain.FollowRequest) error
	PublishFollowed(ctx context.Context, followerID, targetID string) error
	PublishUnfollowed(ctx context.Context, followerID, targetID string) error
}

// --- PROJECTIONS ---

// GraphProjection : copie du graphe dans Neo4j pour les requêtes de voisinage.
type GraphProjection interface {
	CreateRelation(ctx context.Context, actorID, targetID string) error
	DeleteRelation(ctx context.Context, actorID, targetID string) error
	GetRelationStatus(ctx context.Context, actorID, targetID string) (*domain.RelationStatus, error)
	// SuggestFriendsOfFriends renvoie des IDs triés par nombre d'amis communs.
	SuggestFriendsOfFriends(ctx context.Context, userID string, limit int) ([]string, error)
}

// UnreadCounter : cache du compteur de notifications non lues, versionné par utilisateur.
// Get renvoie la version courante même en cas d'absence ; Set n'écrit que si elle n'a pas
// changé depuis, et Invalidate l'incrémente. Un comptage concurrent d'une écriture n'est
// donc jamais mis en cache.
type UnreadCounter interface {
	Get(ctx context.Context, userID string) (count, version int64, ok bool, err error)
	Set(ctx context.Context, userID string, count, version int64) error
	Invalidate(ctx context.Context, userID string) error
}

// --- SÉCURITÉ (CRYPTO) ---

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

type TokenProvider interface {
	GenerateTokens(user *domain.User) (access string, refresh string, err error)
	ValidateAccess(token string) (*domain.Session, error)
	ValidateRefresh(token string) (userID string, err error)
	AccessTTL() time.Duration
}

// --- MÉTRIQUES ---

type Metrics interface {
	FollowRequestTransition(status domain.FollowStatus)
	NotificationCreated(typ domain.NotificationType)
	CompensationTriggered(operation string)
}
