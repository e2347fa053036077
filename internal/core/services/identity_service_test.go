package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askarthikey/cleverSM/internal/adapters/secondary/repository/memory"
	"github.com/askarthikey/cleverSM/internal/adapters/secondary/security"
	"github.com/askarthikey/cleverSM/internal/core/domain"
	"github.com/askarthikey/cleverSM/internal/core/ports"
	"github.com/askarthikey/cleverSM/internal/core/services"
)

func newIdentity(t *testing.T) (*services.IdentityService, *memory.Store, *recordingPublisher) {
	t.Helper()
	store := memory.NewStore()
	tokens, err := security.NewJWTProvider("test-secret", 15*time.Minute, time.Hour, "cleversm-test")
	require.NoError(t, err)
	hasher := security.NewArgon2Hasher(&security.Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	events := &recordingPublisher{}
	return services.NewIdentityService(store.Users(), store.FollowRequests(), hasher, tokens, events), store, events
}

func register(t *testing.T, svc *services.IdentityService, username, email, phone string) *ports.AuthResponse {
	t.Helper()
	res, err := svc.Register(context.Background(), ports.RegisterCmd{Username: username, Email: email, Phone: phone, Password: "password123"})
	require.NoError(t, err)
	return res
}

func TestRegister_IssuesTokensAndPublishes(t *testing.T) {
	svc, _, events := newIdentity(t)

	res := register(t, svc, "alice", "Alice@Example.com", "+1 555 0100")

	assert.Equal(t, "alice", res.User.Username)
	assert.Equal(t, "alice@example.com", res.User.Email)
	assert.NotEqual(t, "password123", res.User.PasswordHash)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, 15*time.Minute, res.ExpiresIn)
	assert.Contains(t, events.events, "user.registered")

	session, err := svc.ValidateToken(context.Background(), res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, session.UserID)
}

func TestRegister_Validation(t *testing.T) {
	svc, _, _ := newIdentity(t)
	register(t, svc, "taken", "taken@example.com", "+100")

	tests := []struct {
		name    string
		cmd     ports.RegisterCmd
		wantErr error
	}{
		{"short username", ports.RegisterCmd{Username: "ab", Password: "password123"}, domain.ErrInvalidUsername},
		{"bad chars", ports.RegisterCmd{Username: "bad-name", Password: "password123"}, domain.ErrInvalidUsername},
		{"weak password", ports.RegisterCmd{Username: "someone", Password: "short"}, domain.ErrWeakPassword},
		{"bad email", ports.RegisterCmd{Username: "someone", Email: "nope", Password: "password123"}, domain.ErrInvalidEmail},
		{"bad phone", ports.RegisterCmd{Username: "someone", Phone: "abc", Password: "password123"}, domain.ErrInvalidPhone},
		{"username taken", ports.RegisterCmd{Username: "taken", Password: "password123"}, domain.ErrUsernameTaken},
		{"email taken", ports.RegisterCmd{Username: "other", Email: "taken@example.com", Password: "password123"}, domain.ErrEmailTaken},
		{"phone taken", ports.RegisterCmd{Username: "other", Phone: "+100", Password: "password123"}, domain.ErrPhoneTaken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.cmd)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLogin_ByAnyIdentifier(t *testing.T) {
	svc, _, _ := newIdentity(t)
	reg := register(t, svc, "alice", "alice@example.com", "+15550100")

	for _, identifier := range []string{"alice", "alice@example.com", "+15550100"} {
		res, err := svc.Login(context.Background(), ports.LoginCmd{Identifier: identifier, Password: "password123"})
		require.NoError(t, err, identifier)
		assert.Equal(t, reg.User.ID, res.User.ID)
	}

	_, err := svc.Login(context.Background(), ports.LoginCmd{Identifier: "alice", Password: "wrong-password"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), ports.LoginCmd{Identifier: "nobody", Password: "password123"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestRefreshToken(t *testing.T) {
	svc, _, _ := newIdentity(t)
	reg := register(t, svc, "alice", "", "")

	res, err := svc.RefreshToken(context.Background(), reg.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, res.User.ID)

	_, err = svc.RefreshToken(context.Background(), reg.AccessToken)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestCheckUsername(t *testing.T) {
	svc, _, _ := newIdentity(t)
	register(t, svc, "alice", "", "")

	available, err := svc.CheckUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.False(t, available)

	available, err = svc.CheckUsername(context.Background(), "bob_42")
	require.NoError(t, err)
	assert.True(t, available)
}

func TestChangePassword(t *testing.T) {
	svc, _, _ := newIdentity(t)
	ctx := context.Background()
	reg := register(t, svc, "alice", "", "")

	assert.ErrorIs(t, svc.ChangePassword(ctx, reg.User.ID, "wrong-password", "newpassword1"), domain.ErrInvalidCredentials)
	assert.ErrorIs(t, svc.ChangePassword(ctx, reg.User.ID, "password123", "short"), domain.ErrWeakPassword)
	require.NoError(t, svc.ChangePassword(ctx, reg.User.ID, "password123", "newpassword1"))

	_, err := svc.Login(ctx, ports.LoginCmd{Identifier: "alice", Password: "newpassword1"})
	assert.NoError(t, err)
}

func TestGetUser_AnnotatedForViewer(t *testing.T) {
	svc, store, _ := newIdentity(t)
	ctx := context.Background()
	alice := register(t, svc, "alice", "", "").User
	bob := register(t, svc, "bob", "", "").User

	req, err := domain.NewFollowRequest(alice.ID, "alice", bob.ID, "bob", "")
	require.NoError(t, err)
	require.NoError(t, store.FollowRequests().Create(ctx, req))

	view, err := svc.GetUser(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", view.User.Username)
	assert.True(t, view.Status.FollowRequestSent)
	assert.False(t, view.Status.IsFollowing)

	require.NoError(t, store.Users().AddFollowEdge(ctx, bob.ID, alice.ID))
	view, err = svc.GetUser(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, view.Status.IsFollowedBy)

	_, err = svc.GetUser(ctx, alice.ID, domain.NewID())
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}
