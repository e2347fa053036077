package rest

import (
	"net/http"

	"github.com/askarthikey/cleverSM/internal/core/ports"
)

// Handler : adapter primaire REST, dépend uniquement des ports primaires.
type Handler struct {
	identity      ports.IdentityService
	social        ports.SocialGraphService
	notifications ports.NotificationService
}

func NewHandler(identity ports.IdentityService, social ports.SocialGraphService, notifications ports.NotificationService) *Handler {
	return &Handler{identity: identity, social: social, notifications: notifications}
}

// Routes enregistre toutes les routes sur un ServeMux (motifs "MÉTHODE /chemin/{param}").
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	auth := h.requireAuth

	// Auth
	mux.HandleFunc("POST /auth/register", h.register)
	mux.HandleFunc("POST /auth/login", h.login)
	mux.HandleFunc("POST /auth/refresh", h.refresh)
	mux.HandleFunc("GET /auth/check-username/{username}", h.checkUsername)
	mux.Handle("POST /auth/change-password", auth(h.changePassword))

	// Users
	mux.Handle("GET /users/profile", auth(h.profile))
	mux.Handle("GET /users/search", auth(h.searchUsers))
	mux.Handle("GET /users/suggestions", auth(h.suggestions))
	mux.Handle("GET /users/following", auth(h.following))
	mux.Handle("GET /users/followers", auth(h.followers))
	mux.Handle("GET /users/{id}", auth(h.getUser))
	mux.Handle("GET /users/{id}/follow-status", auth(h.followStatus))
	mux.Handle("POST /users/{id}/follow", auth(h.follow))
	mux.Handle("DELETE /users/{id}/follow", auth(h.unfollow))

	// Notifications
	mux.Handle("GET /notifications", auth(h.listNotifications))
	mux.Handle("GET /notifications/unread-count", auth(h.unreadCount))
	mux.Handle("POST /notifications/{id}/read", auth(h.markRead))
	mux.Handle("POST /notifications/read-all", auth(h.markAllRead))
	mux.Handle("DELETE /notifications/{id}", auth(h.deleteNotification))

	// Demandes d'abonnement (+ alias sans préfixe)
	for _, prefix := range []string{"/notifications", ""} {
		mux.Handle("POST "+prefix+"/follow-request", auth(h.requestFollow))
		mux.Handle("DELETE "+prefix+"/follow-request/{recipientId}", auth(h.cancelRequest))
		mux.Handle("GET "+prefix+"/follow-requests", auth(h.incomingRequests))
		mux.Handle("GET "+prefix+"/follow-requests/pending", auth(h.pendingRequests))
		mux.Handle("GET "+prefix+"/follow-requests/sent", auth(h.sentRequests))
		mux.Handle("POST "+prefix+"/follow-requests/{id}/accept", auth(h.acceptRequest))
		mux.Handle("POST "+prefix+"/follow-requests/{id}/reject", auth(h.rejectRequest))
	}

	return mux
}
