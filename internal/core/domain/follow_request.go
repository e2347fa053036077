package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// MaxFollowMessageLength est exprimée en caractères (runes), pas en octets.
const MaxFollowMessageLength = 280

type FollowStatus string

const (
	FollowStatusPending   FollowStatus = "pending"
	FollowStatusAccepted  FollowStatus = "accepted"
	FollowStatusRejected  FollowStatus = "rejected"
	FollowStatusCancelled FollowStatus = "cancelled"
)

func (s FollowStatus) Valid() bool {
	switch s {
	case FollowStatusPending, FollowStatusAccepted, FollowStatusRejected, FollowStatusCancelled:
		return true
	}
	return false
}

// IsTerminal : aucun état terminal n'a de transition sortante.
func (s FollowStatus) IsTerminal() bool {
	return s == FollowStatusAccepted || s == FollowStatusRejected || s == FollowStatusCancelled
}

// FollowRequest représente une demande d'abonnement entre deux utilisateurs.
// Au plus une demande pending par couple ordonné (SenderID, RecipientID).
type FollowRequest struct {
	ID                string
	SenderID          string
	SenderUsername    string // dénormalisé à la création
	RecipientID       string
	RecipientUsername string
	Status            FollowStatus
	Message           string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func NewFollowRequest(senderID, senderUsername, recipientID, recipientUsername, message string) (*FollowRequest, error) {
	if err := ValidateIDs(senderID, recipientID); err != nil {
		return nil, err
	}
	if senderID == recipientID {
		return nil, ErrSelfFollow
	}

	message = strings.TrimSpace(message)
	message = truncateRunes(message, MaxFollowMessageLength)

	now := time.Now().UTC()
	return &FollowRequest{
		ID:                NewID(),
		SenderID:          senderID,
		SenderUsername:    senderUsername,
		RecipientID:       recipientID,
		RecipientUsername: recipientUsername,
		Status:            FollowStatusPending,
		Message:           message,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// Transition applique pending -> terminal. Toute autre transition est refusée.
func (r *FollowRequest) Transition(to FollowStatus) error {
	if r.Status != FollowStatusPending || !to.IsTerminal() {
		return ErrInvalidTransition
	}
	r.Status = to
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// Restore est la compensation d'une transition dont l'effet secondaire a échoué.
func (r *FollowRequest) Restore(from FollowStatus) error {
	if r.Status != from || !from.IsTerminal() {
		return ErrInvalidTransition
	}
	r.Status = FollowStatusPending
	r.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *FollowRequest) IsPending() bool {
	return r.Status == FollowStatusPending
}

// truncateRunes coupe sur une frontière de rune : le résultat reste de l'UTF-8 valide.
func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
