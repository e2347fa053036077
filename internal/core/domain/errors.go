package domain

import "errors"

// --- ERREURS DU DOMAINE ---
// Les adapters traduisent les erreurs techniques (driver, réseau) vers ces sentinelles.

// Requêtes invalides (400)
var (
	ErrInvalidID               = errors.New("invalid id")
	ErrSelfFollow              = errors.New("cannot follow yourself")
	ErrSelfUnfollow            = errors.New("cannot unfollow yourself")
	ErrInvalidUsername         = errors.New("username must be 3-20 characters long and contain only letters, numbers and underscores")
	ErrInvalidEmail            = errors.New("invalid email format")
	ErrInvalidPhone            = errors.New("invalid phone number")
	ErrMissingContact          = errors.New("either email or phone number is required")
	ErrWeakPassword            = errors.New("password must be at least 8 characters long")
	ErrInvalidNotificationType = errors.New("invalid notification type")
	ErrInvalidTransition       = errors.New("invalid follow request transition")
)

// Authentification (401)
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

// Ressources absentes (404)
var (
	ErrUserNotFound          = errors.New("user not found")
	ErrFollowRequestNotFound = errors.New("follow request not found")
	ErrNotificationNotFound  = errors.New("notification not found")
)

// Conflits d'état (409)
var (
	ErrFollowRequestExists = errors.New("follow request already sent")
	ErrAlreadyFollowing    = errors.New("already following this user")
	ErrUsernameTaken       = errors.New("username already exists")
	ErrEmailTaken          = errors.New("email already exists")
	ErrPhoneTaken          = errors.New("phone number already exists")
)

// Kind classe une erreur pour les adapters primaires (HTTP, gRPC).
type Kind int

const (
	KindInternal Kind = iota
	KindBadRequest
	KindUnauthorized
	KindNotFound
	KindConflict
)

var kinds = map[error]Kind{
	ErrInvalidID:               KindBadRequest,
	ErrSelfFollow:              KindBadRequest,
	ErrSelfUnfollow:            KindBadRequest,
	ErrInvalidUsername:         KindBadRequest,
	ErrInvalidEmail:            KindBadRequest,
	ErrInvalidPhone:            KindBadRequest,
	ErrMissingContact:          KindBadRequest,
	ErrWeakPassword:            KindBadRequest,
	ErrInvalidNotificationType: KindBadRequest,
	ErrInvalidTransition:       KindBadRequest,
	ErrInvalidCredentials:      KindUnauthorized,
	ErrInvalidToken:            KindUnauthorized,
	ErrUserNotFound:            KindNotFound,
	ErrFollowRequestNotFound:   KindNotFound,
	ErrNotificationNotFound:    KindNotFound,
	ErrFollowRequestExists:     KindConflict,
	ErrAlreadyFollowing:        KindConflict,
	ErrUsernameTaken:           KindConflict,
	ErrEmailTaken:              KindConflict,
	ErrPhoneTaken:              KindConflict,
}

// KindOf remonte la chaîne de wrapping jusqu'à la première sentinelle connue.
func KindOf(err error) Kind {
	for sentinel, kind := range kinds {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindInternal
}
