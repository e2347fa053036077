package rest

import (
	"net/http"
)

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	session := SessionFrom(r.Context())
	view, err := h.identity.GetUser(r.Context(), session.UserID, session.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Profile retrieved successfully", toUserJSON(view.User))
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	session := SessionFrom(r.Context())
	view, err := h.identity.GetUser(r.Context(), session.UserID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "User retrieved successfully", toUserViewJSON(*view))
}

func (h *Handler) searchUsers(w http.ResponseWriter, r *http.Request) {
	session := SessionFrom(r.Context())
	page, err := h.social.SearchUsers(r.Context(), session.UserID, r.URL.Query().Get("q"), parsePage(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Users retrieved successfully", toUserPageJSON(page))
}

func (h *Handler) suggestions(w http.ResponseWriter, r *http.Request) {
	session := SessionFrom(r.Context())
	page, err := h.social.Suggestions(r.Context(), session.UserID, parsePage(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Suggestions retrieved successfully", toUserPageJSON(page))
}

func (h *Handler) following(w http.ResponseWriter, r *http.Request) {
	session := SessionFrom(r.Context())
	page, err := h.social.ListFollowing(r.Context(), session.UserID, session.UserID, parsePage(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Following retrieved successfully", toUserPageJSON(page))
}

func (h *Handler) followers(w http.ResponseWriter, r *http.Request) {
	session := SessionFrom(r.Context())
	page, err := h.social.ListFollowers(r.Context(), session.UserID, session.UserID, parsePage(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Followers retrieved successfully", toUserPageJSON(page))
}

func (h *Handler) followStatus(w http.ResponseWriter, r *http.Request) {
	session := SessionFrom(r.Context())
	status, err := h.social.FollowStatus(r.Context(), session.UserID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Follow status retrieved successfully", status)
}

// follow ne crée jamais d'arête directement : la réponse indique qu'une demande est requise.
func (h *Handler) follow(w http.ResponseWriter, r *http.Request) {
	session := SessionFrom(r.Context())
	res, err := h.social.Follow(r.Context(), session.UserID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res.Message, res)
}

func (h *Handler) unfollow(w http.ResponseWriter, r *http.Request) {
	session := SessionFrom(r.Context())
	res, err := h.social.Unfollow(r.Context(), session.UserID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res.Message, res)
}
