package ports

import (
	"context"
	"time"

	"github.com/askarthikey/cleverSM/internal/core/domain"
)

// --- INPUTS (Command Pattern) ---

type RequestFollowCmd struct {
	SenderID          string
	SenderUsername    string
	RecipientID       string
	RecipientUsername string // optionnel, repli sur l'annuaire
	Message           string
}

type RegisterCmd struct {
	Username string
	Email    string
	Phone    string
	Password string
}

type LoginCmd struct {
	Identifier string // username, email ou téléphone
	Password   string
}

type InteractionCmd struct {
	RecipientID    string
	SenderID       string
	SenderUsername string
	Type           domain.NotificationType
	PostID         string
	CommentID      string
}

// --- OUTPUTS ---

type FollowResult struct {
	Success         bool   `json:"success"`
	Message         string `json:"message"`
	RequiresRequest bool   `json:"requiresRequest"`
	IsFollowing     bool   `json:"isFollowing"`
}

type AuthResponse struct {
	User         *domain.User
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

// UserView : un utilisateur vu par un viewer.
type UserView struct {
	User   *domain.User
	Status domain.RelationStatus
}

type UserPage struct {
	Users []UserView
	Total int64
	Page  Page
}

type RequestPage struct {
	Requests []*domain.FollowRequest
	Total    int64
	Page     Page
}

// TotalPages : nombre de pages pour un total donné.
func (p Page) TotalPages(total int64) int64 {
	n := p.Normalize()
	return (total + int64(n.Limit) - 1) / int64(n.Limit)
}

type NotificationPage struct {
	Notifications []*domain.Notification
	Total         int64
	UnreadCount   int64
	Page          Page
}

// --- PORTS PRIMAIRES (Driving) ---

// SocialGraphService : coordinateur des demandes d'abonnement et du graphe.
type SocialGraphService interface {
	RequestFollow(ctx context.Context, cmd RequestFollowCmd) (*domain.FollowRequest, error)
	AcceptRequest(ctx context.Context, requestID, recipientID string) (*domain.FollowRequest, error)
	RejectRequest(ctx context.Context, requestID, recipientID string) (*domain.FollowRequest, error)
	CancelRequest(ctx context.Context, senderID, recipientID string) error
	Follow(ctx context.Context, followerID, targetID string) (*FollowResult, error)
	Unfollow(ctx context.Context, followerID, targetID string) (*FollowResult, error)

	FollowStatus(ctx context.Context, viewerID, targetID string) (*domain.RelationStatus, error)
	// ListFollowers / ListFollowing : listes de userID, annotées du point de vue de viewerID.
	ListFollowers(ctx context.Context, viewerID, userID string, page Page) (*UserPage, error)
	ListFollowing(ctx context.Context, viewerID, userID string, page Page) (*UserPage, error)
	SearchUsers(ctx context.Context, viewerID, query string, page Page) (*UserPage, error)
	Suggestions(ctx context.Context, viewerID string, page Page) (*UserPage, error)
	ListIncomingRequests(ctx context.Context, userID string, page Page) (*RequestPage, error)
	ListOutgoingRequests(ctx context.Context, userID string) ([]*domain.FollowRequest, error)
}

type NotificationService interface {
	List(ctx context.Context, userID string, page Page) (*NotificationPage, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
	MarkAsRead(ctx context.Context, id, userID string) error
	MarkAllAsRead(ctx context.Context, userID string) (int64, error)
	Delete(ctx context.Context, id, userID string) error
	NotifyInteraction(ctx context.Context, cmd InteractionCmd) (*domain.Notification, error)
}

type IdentityService interface {
	Register(ctx context.Context, cmd RegisterCmd) (*AuthResponse, error)
	Login(ctx context.Context, cmd LoginCmd) (*AuthResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*AuthResponse, error)
	ValidateToken(ctx context.Context, token string) (*domain.Session, error)
	CheckUsername(ctx context.Context, username string) (bool, error)
	ChangePassword(ctx context.Context, userID, oldPass, newPass string) error
	GetUser(ctx context.Context, viewerID, userID string) (*UserView, error)
}
