package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/askarthikey/cleverSM/internal/core/domain"
	"github.com/askarthikey/cleverSM/internal/core/ports"
)

// IdentityService implémente ports.IdentityService (inscription, connexion, profils).
type IdentityService struct {
	repo          ports.UserRepository
	requests      ports.FollowRequestRepository
	hasher        ports.PasswordHasher
	tokenProvider ports.TokenProvider
	broker        ports.EventPublisher
}

func NewIdentityService(
	repo ports.UserRepository,
	requests ports.FollowRequestRepository,
	hasher ports.PasswordHasher,
	token ports.TokenProvider,
	broker ports.EventPublisher,
) *IdentityService {
	return &IdentityService{
		repo:          repo,
		requests:      requests,
		hasher:        hasher,
		tokenProvider: token,
		broker:        orNoopPublisher(broker),
	}
}

// --- AUTHENTIFICATION ---

func (s *IdentityService) Register(ctx context.Context, cmd ports.RegisterCmd) (*ports.AuthResponse, error) {
	// 1. Validation avant le hachage (coûteux)
	if err := domain.ValidatePassword(cmd.Password); err != nil {
		return nil, err
	}

	// 2. Fail Fast : unicité du username. Les index uniques du store restent la garantie finale.
	taken, err := s.repo.UsernameExists(ctx, cmd.Username)
	if err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if taken {
		return nil, domain.ErrUsernameTaken
	}

	hashedPassword, err := s.hasher.Hash(cmd.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing failed: %w", err)
	}

	// 3. Domaine
	user, err := domain.NewUser(cmd.Username, cmd.Email, cmd.Phone, hashedPassword)
	if err != nil {
		return nil, err
	}

	// 4. Persistance
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("repository create failed: %w", err)
	}

	if err := s.broker.PublishUserRegistered(ctx, user); err != nil {
		slog.WarnContext(ctx, "⚠️ Failed to publish user registered", "user_id", user.ID, "error", err)
	}

	return s.issue(user)
}

func (s *IdentityService) Login(ctx context.Context, cmd ports.LoginCmd) (*ports.AuthResponse, error) {
	user, err := s.repo.GetByIdentifier(ctx, cmd.Identifier)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	if err := s.hasher.Compare(user.PasswordHash, cmd.Password); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	return s.issue(user)
}

func (s *IdentityService) RefreshToken(ctx context.Context, refreshToken string) (*ports.AuthResponse, error) {
	userID, err := s.tokenProvider.ValidateRefresh(refreshToken)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidToken
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return s.issue(user)
}

func (s *IdentityService) ValidateToken(_ context.Context, token string) (*domain.Session, error) {
	session, err := s.tokenProvider.ValidateAccess(token)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}
	return session, nil
}

func (s *IdentityService) issue(user *domain.User) (*ports.AuthResponse, error) {
	accessToken, refreshToken, err := s.tokenProvider.GenerateTokens(user)
	if err != nil {
		return nil, fmt.Errorf("token generation failed: %w", err)
	}
	return &ports.AuthResponse{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    s.tokenProvider.AccessTTL(),
	}, nil
}

// --- GESTION UTILISATEUR ---

func (s *IdentityService) CheckUsername(ctx context.Context, username string) (bool, error) {
	if err := domain.ValidateUsername(username); err != nil {
		return false, err
	}
	taken, err := s.repo.UsernameExists(ctx, username)
	if err != nil {
		return false, fmt.Errorf("check username: %w", err)
	}
	return !taken, nil
}

func (s *IdentityService) ChangePassword(ctx context.Context, userID, oldPass, newPass string) error {
	if err := domain.ValidateID(userID); err != nil {
		return err
	}
	if err := domain.ValidatePassword(newPass); err != nil {
		return err
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if err := s.hasher.Compare(user.PasswordHash, oldPass); err != nil {
		return domain.ErrInvalidCredentials
	}

	hash, err := s.hasher.Hash(newPass)
	if err != nil {
		return fmt.Errorf("hashing failed: %w", err)
	}
	if err := s.repo.UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// GetUser renvoie le profil annoté du point de vue du viewer.
func (s *IdentityService) GetUser(ctx context.Context, viewerID, userID string) (*ports.UserView, error) {
	if err := domain.ValidateIDs(viewerID, userID); err != nil {
		return nil, err
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	view := &ports.UserView{User: user}
	if viewerID == userID {
		return view, nil
	}

	view.Status.IsFollowing = user.IsFollowedBy(viewerID)
	view.Status.IsFollowedBy = user.IsFollowing(viewerID)

	_, err = s.requests.FindPending(ctx, viewerID, userID)
	switch {
	case err == nil:
		view.Status.FollowRequestSent = true
	case !errors.Is(err, domain.ErrFollowRequestNotFound):
		return nil, fmt.Errorf("find pending request: %w", err)
	}
	return view, nil
}
