package domain

import (
	"fmt"
	"time"
)

type NotificationType string

const (
	NotificationFollowRequest  NotificationType = "follow_request"
	NotificationFollowAccepted NotificationType = "follow_accepted"
	NotificationFollowRejected NotificationType = "follow_rejected"
	NotificationLike           NotificationType = "like"
	NotificationComment        NotificationType = "comment"
	NotificationShare          NotificationType = "share"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationFollowRequest, NotificationFollowAccepted, NotificationFollowRejected,
		NotificationLike, NotificationComment, NotificationShare:
		return true
	}
	return false
}

// IsInteraction : types émis par le service d'interactions (posts).
func (t NotificationType) IsInteraction() bool {
	return t == NotificationLike || t == NotificationComment || t == NotificationShare
}

// NotificationData : référence non-propriétaire vers l'objet d'origine.
type NotificationData struct {
	FollowRequestID string `json:"followRequestId,omitempty"`
	PostID          string `json:"postId,omitempty"`
	CommentID       string `json:"commentId,omitempty"`
}

type Notification struct {
	ID             string
	RecipientID    string
	SenderID       string
	SenderUsername string
	Type           NotificationType
	Message        string
	Data           NotificationData
	IsRead         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func NewNotification(recipientID, senderID, senderUsername string, typ NotificationType, message string, data NotificationData) (*Notification, error) {
	if err := ValidateIDs(recipientID, senderID); err != nil {
		return nil, err
	}
	if !typ.Valid() {
		return nil, ErrInvalidNotificationType
	}

	now := time.Now().UTC()
	return &Notification{
		ID:             NewID(),
		RecipientID:    recipientID,
		SenderID:       senderID,
		SenderUsername: senderUsername,
		Type:           typ,
		Message:        message,
		Data:           data,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func (n *Notification) MarkRead() {
	if n.IsRead {
		return
	}
	n.IsRead = true
	n.UpdatedAt = time.Now().UTC()
}

// --- MESSAGES ---

func FollowRequestMessage(senderUsername string) string {
	return fmt.Sprintf("%s wants to follow you", senderUsername)
}

func FollowAcceptedMessage(recipientUsername string) string {
	return fmt.Sprintf("%s accepted your follow request", recipientUsername)
}

func FollowRejectedMessage(recipientUsername string) string {
	return fmt.Sprintf("%s declined your follow request", recipientUsername)
}

func InteractionMessage(senderUsername string, typ NotificationType) string {
	switch typ {
	case NotificationLike:
		return fmt.Sprintf("%s liked your post", senderUsername)
	case NotificationComment:
		return fmt.Sprintf("%s commented on your post", senderUsername)
	case NotificationShare:
		return fmt.Sprintf("%s shared your post", senderUsername)
	}
	return ""
}
