package domain

import (
	"net/mail"
	"regexp"
	"slices"
	"strings"
	"time"
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,20}$`)
	phonePattern    = regexp.MustCompile(`^\+?[\d\s\-()]+$`)
)

const MinPasswordLength = 8

// --- ENTITÉ ---

// User porte aussi les deux côtés du graphe social.
// Invariant : A ∈ B.Followers <=> B ∈ A.Following.
type User struct {
	ID             string
	Username       string
	Email          string // optionnel, unique si présent
	Phone          string // optionnel, unique si présent
	PasswordHash   string
	ProfilePicture string
	Bio            string
	Followers      []string
	Following      []string
	IsVerified     bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// --- FACTORY ---

// NewUser crée une instance valide (ID + validation des invariants).
func NewUser(username, email, phone, passwordHash string) (*User, error) {
	username = strings.TrimSpace(username)
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if email != "" {
		if err := validateEmail(email); err != nil {
			return nil, err
		}
	}

	phone = strings.TrimSpace(phone)
	if phone != "" && !phonePattern.MatchString(phone) {
		return nil, ErrInvalidPhone
	}

	now := time.Now().UTC()
	return &User{
		ID:           NewID(),
		Username:     username,
		Email:        email,
		Phone:        phone,
		PasswordHash: passwordHash,
		Followers:    []string{},
		Following:    []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// --- COMPORTEMENTS ---

func (u *User) IsFollowing(userID string) bool {
	return slices.Contains(u.Following, userID)
}

func (u *User) IsFollowedBy(userID string) bool {
	return slices.Contains(u.Followers, userID)
}

// Follow ajoute targetID à Following (sémantique $addToSet : pas de doublon, pas d'erreur).
func (u *User) Follow(targetID string) {
	u.Following = addToSet(u.Following, targetID)
	u.touch()
}

func (u *User) Unfollow(targetID string) {
	u.Following = pull(u.Following, targetID)
	u.touch()
}

func (u *User) AddFollower(followerID string) {
	u.Followers = addToSet(u.Followers, followerID)
	u.touch()
}

func (u *User) RemoveFollower(followerID string) {
	u.Followers = pull(u.Followers, followerID)
	u.touch()
}

// UpdatePassword change le hash et met à jour le timestamp
func (u *User) UpdatePassword(newHash string) {
	u.PasswordHash = newHash
	u.touch()
}

// Clone renvoie une copie profonde (les slices ne sont pas partagées).
func (u *User) Clone() *User {
	c := *u
	c.Followers = slices.Clone(u.Followers)
	c.Following = slices.Clone(u.Following)
	return &c
}

func (u *User) touch() {
	u.UpdatedAt = time.Now().UTC()
}

// --- VALIDATEURS ---

func ValidateUsername(username string) error {
	if !usernamePattern.MatchString(username) {
		return ErrInvalidUsername
	}
	return nil
}

func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrWeakPassword
	}
	return nil
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrInvalidEmail
	}
	return nil
}

func addToSet(set []string, id string) []string {
	if slices.Contains(set, id) {
		return set
	}
	return append(set, id)
}

func pull(set []string, id string) []string {
	return slices.DeleteFunc(set, func(v string) bool { return v == id })
}
