package rest

import (
	"time"

	"github.com/askarthikey/cleverSM/internal/core/domain"
	"github.com/askarthikey/cleverSM/internal/core/ports"
)

// --- VUES JSON ---
// Le hash du mot de passe ne sort jamais de l'adapter.

type userJSON struct {
	ID                string    `json:"_id"`
	Username          string    `json:"username"`
	Email             string    `json:"email,omitempty"`
	Phone             string    `json:"phone,omitempty"`
	ProfilePicture    string    `json:"profilePicture,omitempty"`
	Bio               string    `json:"bio,omitempty"`
	Followers         []string  `json:"followers"`
	Following         []string  `json:"following"`
	IsVerified        bool      `json:"isVerified"`
	IsFollowing       *bool     `json:"isFollowing,omitempty"`
	FollowRequestSent *bool     `json:"followRequestSent,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

func toUserJSON(u *domain.User) userJSON {
	return userJSON{
		ID:             u.ID,
		Username:       u.Username,
		Email:          u.Email,
		Phone:          u.Phone,
		ProfilePicture: u.ProfilePicture,
		Bio:            u.Bio,
		Followers:      nonNil(u.Followers),
		Following:      nonNil(u.Following),
		IsVerified:     u.IsVerified,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}

func toUserViewJSON(v ports.UserView) userJSON {
	out := toUserJSON(v.User)
	out.IsFollowing = &v.Status.IsFollowing
	out.FollowRequestSent = &v.Status.FollowRequestSent
	return out
}

type userPageJSON struct {
	Users      []userJSON `json:"users"`
	Total      int64      `json:"total"`
	Page       int        `json:"page"`
	TotalPages int64      `json:"totalPages"`
}

func toUserPageJSON(p *ports.UserPage) userPageJSON {
	users := make([]userJSON, len(p.Users))
	for i, v := range p.Users {
		users[i] = toUserViewJSON(v)
	}
	return userPageJSON{Users: users, Total: p.Total, Page: p.Page.Page, TotalPages: p.Page.TotalPages(p.Total)}
}

type authJSON struct {
	User         userJSON `json:"user"`
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken"`
	ExpiresIn    int64    `json:"expiresIn"` // secondes
}

func toAuthJSON(res *ports.AuthResponse) authJSON {
	return authJSON{
		User:         toUserJSON(res.User),
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		ExpiresIn:    int64(res.ExpiresIn.Seconds()),
	}
}

type followRequestJSON struct {
	ID                string    `json:"_id"`
	SenderID          string    `json:"senderId"`
	SenderUsername    string    `json:"senderUsername"`
	RecipientID       string    `json:"recipientId"`
	RecipientUsername string    `json:"recipientUsername"`
	Status            string    `json:"status"`
	Message           string    `json:"message,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

func toFollowRequestJSON(r *domain.FollowRequest) followRequestJSON {
	return followRequestJSON{
		ID:                r.ID,
		SenderID:          r.SenderID,
		SenderUsername:    r.SenderUsername,
		RecipientID:       r.RecipientID,
		RecipientUsername: r.RecipientUsername,
		Status:            string(r.Status),
		Message:           r.Message,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

func toFollowRequestsJSON(reqs []*domain.FollowRequest) []followRequestJSON {
	out := make([]followRequestJSON, len(reqs))
	for i, r := range reqs {
		out[i] = toFollowRequestJSON(r)
	}
	return out
}

type requestPageJSON struct {
	Requests   []followRequestJSON `json:"requests"`
	Total      int64               `json:"total"`
	Page       int                 `json:"page"`
	TotalPages int64               `json:"totalPages"`
}

type notificationJSON struct {
	ID             string                  `json:"_id"`
	RecipientID    string                  `json:"recipientId"`
	SenderID       string                  `json:"senderId"`
	SenderUsername string                  `json:"senderUsername"`
	Type           domain.NotificationType `json:"type"`
	Message        string                  `json:"message"`
	Data           domain.NotificationData `json:"data"`
	IsRead         bool                    `json:"isRead"`
	CreatedAt      time.Time               `json:"createdAt"`
	UpdatedAt      time.Time               `json:"updatedAt"`
}

type notificationPageJSON struct {
	Notifications []notificationJSON `json:"notifications"`
	Total         int64              `json:"total"`
	UnreadCount   int64              `json:"unreadCount"`
	Page          int                `json:"page"`
	TotalPages    int64              `json:"totalPages"`
}

func toNotificationPageJSON(p *ports.NotificationPage) notificationPageJSON {
	items := make([]notificationJSON, len(p.Notifications))
	for i, n := range p.Notifications {
		items[i] = notificationJSON{
			ID:             n.ID,
			RecipientID:    n.RecipientID,
			SenderID:       n.SenderID,
			SenderUsername: n.SenderUsername,
			Type:           n.Type,
			Message:        n.Message,
			Data:           n.Data,
			IsRead:         n.IsRead,
			CreatedAt:      n.CreatedAt,
			UpdatedAt:      n.UpdatedAt,
		}
	}
	return notificationPageJSON{
		Notifications: items,
		Total:         p.Total,
		UnreadCount:   p.UnreadCount,
		Page:          p.Page.Page,
		TotalPages:    p.Page.TotalPages(p.Total),
	}
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
