package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/askarthikey/cleverSM/internal/core/domain"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

var errWrongTokenType = errors.New("unexpected token type")

// SessionClaims : claims portés par les deux jetons. Username n'est présent que dans l'access token.
type SessionClaims struct {
	UserID    string `json:"userId"`
	Username  string `json:"username,omitempty"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// JWTProvider signe en HS256 avec le secret partagé JWT_SECRET.
type JWTProvider struct {
	secret        []byte
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	issuer        string
	now           func() time.Time
}

func NewJWTProvider(secret string, accessExpiry, refreshExpiry time.Duration, issuer string) (*JWTProvider, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	return &JWTProvider{
		secret:        []byte(secret),
		accessExpiry:  accessExpiry,
		refreshExpiry: refreshExpiry,
		issuer:        issuer,
		now:           time.Now,
	}, nil
}

func (j *JWTProvider) AccessTTL() time.Duration { return j.accessExpiry }

// GenerateTokens crée la paire Access + Refresh.
func (j *JWTProvider) GenerateTokens(user *domain.User) (string, string, error) {
	access, err := j.sign(SessionClaims{
		UserID:    user.ID,
		Username:  user.Username,
		TokenType: tokenTypeAccess,
	}, user.ID, j.accessExpiry)
	if err != nil {
		return "", "", fmt.Errorf("sign access token: %w", err)
	}

	refresh, err := j.sign(SessionClaims{
		UserID:    user.ID,
		TokenType: tokenTypeRefresh,
	}, user.ID, j.refreshExpiry)
	if err != nil {
		return "", "", fmt.Errorf("sign refresh token: %w", err)
	}

	return access, refresh, nil
}

func (j *JWTProvider) ValidateAccess(token string) (*domain.Session, error) {
	claims, err := j.parse(token, tokenTypeAccess)
	if err != nil {
		return nil, err
	}
	return &domain.Session{UserID: claims.UserID, Username: claims.Username}, nil
}

func (j *JWTProvider) ValidateRefresh(token string) (string, error) {
	claims, err := j.parse(token, tokenTypeRefresh)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

func (j *JWTProvider) sign(claims SessionClaims, subject string, ttl time.Duration) (string, error) {
	now := j.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		Issuer:    j.issuer,
		Subject:   subject,
		ID:        domain.NewID(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
}

func (j *JWTProvider) parse(tokenString, expectedType string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	// WithValidMethods refuse "none" et les algorithmes asymétriques.
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return j.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(j.issuer),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != expectedType {
		return nil, errWrongTokenType
	}
	if err := domain.ValidateID(claims.UserID); err != nil {
		return nil, err
	}
	return claims, nil
}
