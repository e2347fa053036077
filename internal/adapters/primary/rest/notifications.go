package rest

import (
	"net/http"

	"github.com/askarthikey/cleverSM/internal/core/ports"
)

// --- BOÎTE DE RÉCEPTION ---

func (h *Handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	session := SessionFrom(r.Context())
	page, err := h.notifications.List(r.Context(), session.UserID, parsePage(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Notifications retrieved successfully", toNotificationPageJSON(page))
}

func (h *Handler) unreadCount(w http.ResponseWriter, r *http.Request) {
	session := SessionFrom(r.Context())
	n, err := h.notifications.UnreadCount(r.Context(), session.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Unread count retrieved successfully", map[string]int64{"count": n})
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	session := SessionFrom(r.Context())
	if err := h.notifications.MarkAsRead(r.Context(), r.PathValue("id"), session.UserID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Notification marked as read", nil)
}

func (h *Handler) markAllRead(w http.ResponseWriter, r *http.Request) {
	session := SessionFrom(r.Context())
	n, err := h.notifications.MarkAllAsRead(r.Context(), session.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "All notifications marked as read", map[string]int64{"updated": n})
}

func (h *Handler) deleteNotification(w http.ResponseWriter, r *http.Request) {
	session := SessionFrom(r.Context())
	if err := h.notifications.Delete(r.Context(), r.PathValue("id"), session.UserID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Notification deleted successfully", nil)
}

// --- DEMANDES D'ABONNEMENT ---

func (h *Handler) requestFollow(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RecipientID       string `json:"recipientId"`
		RecipientUsername string `json:"recipientUsername"`
		Message           string `json:"message"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	session := SessionFrom(r.Context())
	req, err := h.social.RequestFollow(r.Context(), ports.RequestFollowCmd{
		SenderID:          session.UserID,
		SenderUsername:    session.Username,
		RecipientID:       body.RecipientID,
		RecipientUsername: body.RecipientUsername,
		Message:           body.Message,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, "Follow request sent successfully", toFollowRequestJSON(req))
}

func (h *Handler) acceptRequest(w http.ResponseWriter, r *http.Request) {
	session := SessionFrom(r.Context())
	req, err := h.social.AcceptRequest(r.Context(), r.PathValue("id"), session.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Follow request accepted", toFollowRequestJSON(req))
}

func (h *Handler) rejectRequest(w http.ResponseWriter, r *http.Request) {
	session := SessionFrom(r.Context())
	req, err := h.social.RejectRequest(r.Context(), r.PathValue("id"), session.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Follow request rejected", toFollowRequestJSON(req))
}

func (h *Handler) cancelRequest(w http.ResponseWriter, r *http.Request) {
	session := SessionFrom(r.Context())
	if err := h.social.CancelRequest(r.Context(), session.UserID, r.PathValue("recipientId")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Follow request cancelled", nil)
}

func (h *Handler) incomingRequests(w http.ResponseWriter, r *http.Request) {
	page, err := h.listIncoming(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Follow requests retrieved successfully", page)
}

// pendingRequests : même source que incomingRequests, seule la liste est renvoyée.
func (h *Handler) pendingRequests(w http.ResponseWriter, r *http.Request) {
	page, err := h.listIncoming(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Pending follow requests retrieved successfully", page.Requests)
}

func (h *Handler) sentRequests(w http.ResponseWriter, r *http.Request) {
	session := SessionFrom(r.Context())
	reqs, err := h.social.ListOutgoingRequests(r.Context(), session.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Sent follow requests retrieved successfully", toFollowRequestsJSON(reqs))
}

func (h *Handler) listIncoming(r *http.Request) (*requestPageJSON, error) {
	session := SessionFrom(r.Context())
	page, err := h.social.ListIncomingRequests(r.Context(), session.UserID, parsePage(r))
	if err != nil {
		return nil, err
	}
	return &requestPageJSON{
		Requests:   toFollowRequestsJSON(page.Requests),
		Total:      page.Total,
		Page:       page.Page.Page,
		TotalPages: page.Page.TotalPages(page.Total),
	}, nil
}
