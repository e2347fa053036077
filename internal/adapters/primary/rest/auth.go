package rest

import (
	"fmt"
	"net/http"

	"github.com/askarthikey/cleverSM/internal/core/domain"
	"github.com/askarthikey/cleverSM/internal/core/ports"
)

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Phone    string `json:"phone"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if body.Email == "" && body.Phone == "" {
		writeError(w, r, domain.ErrMissingContact)
		return
	}

	res, err := h.identity.Register(r.Context(), ports.RegisterCmd{
		Username: body.Username,
		Email:    body.Email,
		Phone:    body.Phone,
		Password: body.Password,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, "Registration successful", toAuthJSON(res))
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Identifier string `json:"identifier"`
		Password   string `json:"password"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if body.Identifier == "" || body.Password == "" {
		writeError(w, r, domain.ErrInvalidCredentials)
		return
	}

	res, err := h.identity.Login(r.Context(), ports.LoginCmd{Identifier: body.Identifier, Password: body.Password})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Login successful", toAuthJSON(res))
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if body.RefreshToken == "" {
		writeError(w, r, fmt.Errorf("%w: refresh token is required", errInvalidBody))
		return
	}

	res, err := h.identity.RefreshToken(r.Context(), body.RefreshToken)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Token refreshed successfully", toAuthJSON(res))
}

func (h *Handler) checkUsername(w http.ResponseWriter, r *http.Request) {
	available, err := h.identity.CheckUsername(r.Context(), r.PathValue("username"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	msg := "Username is taken"
	if available {
		msg = "Username is available"
	}
	writeJSON(w, http.StatusOK, msg, map[string]bool{"available": available})
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	session := SessionFrom(r.Context())
	if err := h.identity.ChangePassword(r.Context(), session.UserID, body.CurrentPassword, body.NewPassword); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Password changed successfully", map[string]bool{"success": true})
}
