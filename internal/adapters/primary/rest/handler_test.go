package rest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
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

type response struct {
	StatusCode int             `json:"statusCode"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	Error      string          `json:"error"`
}

type testAPI struct {
	t      *testing.T
	router http.Handler
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	store := memory.NewStore()
	tokens, err := security.NewJWTProvider("test-secret", 15*time.Minute, time.Hour, "cleversm-test")
	require.NoError(t, err)
	hasher := security.NewArgon2Hasher(&security.Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})

	identity := services.NewIdentityService(store.Users(), store.FollowRequests(), hasher, tokens, nil)
	social := services.NewSocialGraphService(services.SocialGraphDeps{
		Users:         store.Users(),
		Requests:      store.FollowRequests(),
		Notifications: store.Notifications(),
	}, false)
	inbox := services.NewNotificationService(store.Notifications(), nil, nil)

	return &testAPI{t: t, router: NewHandler(identity, social, inbox).Routes()}
}

func (a *testAPI) do(method, path, token string, body any) (int, response) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	var out response
	require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	assert.Equal(a.t, rec.Code, out.StatusCode)
	return rec.Code, out
}

type account struct {
	ID    string
	Token string
}

func (a *testAPI) register(username string) account {
	a.t.Helper()
	code, res := a.do(http.MethodPost, "/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "password123",
	})
	require.Equal(a.t, http.StatusCreated, code, res.Message)

	var auth authJSON
	require.NoError(a.t, json.Unmarshal(res.Data, &auth))
	return account{ID: auth.User.ID, Token: auth.AccessToken}
}

func TestAuthRoutes(t *testing.T) {
	api := newTestAPI(t)
	alice := api.register("alice")

	code, res := api.do(http.MethodPost, "/auth/register", "", map[string]string{"username": "nocontact", "password": "password123"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, domain.ErrMissingContact.Error(), res.Message)

	code, _ = api.do(http.MethodPost, "/auth/register", "", map[string]string{"username": "alice", "email": "other@example.com", "password": "password123"})
	assert.Equal(t, http.StatusConflict, code)

	code, res = api.do(http.MethodPost, "/auth/login", "", map[string]string{"identifier": "alice@example.com", "password": "password123"})
	require.Equal(t, http.StatusOK, code)
	var auth authJSON
	require.NoError(t, json.Unmarshal(res.Data, &auth))
	assert.Equal(t, alice.ID, auth.User.ID)
	assert.Equal(t, int64(900), auth.ExpiresIn)

	code, _ = api.do(http.MethodPost, "/auth/login", "", map[string]string{"identifier": "alice", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = api.do(http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": auth.RefreshToken})
	assert.Equal(t, http.StatusOK, code)
	code, _ = api.do(http.MethodPost, "/auth/refresh", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, code)

	code, res = api.do(http.MethodGet, "/auth/check-username/alice", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Username is taken", res.Message)
	assert.JSONEq(t, `{"available":false}`, string(res.Data))

	code, _ = api.do(http.MethodPost, "/auth/change-password", alice.Token, map[string]string{"currentPassword": "password123", "newPassword": "newpassword456"})
	assert.Equal(t, http.StatusOK, code)
	code, _ = api.do(http.MethodPost, "/auth/login", "", map[string]string{"identifier": "alice", "password": "newpassword456"})
	assert.Equal(t, http.StatusOK, code)
}

func TestAuthMiddleware(t *testing.T) {
	api := newTestAPI(t)

	code, res := api.do(http.MethodGet, "/users/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Unauthorized", res.Error)

	code, _ = api.do(http.MethodGet, "/users/profile", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	alice := api.register("alice")
	code, res = api.do(http.MethodGet, "/users/profile", alice.Token, nil)
	require.Equal(t, http.StatusOK, code)
	var u map[string]any
	require.NoError(t, json.Unmarshal(res.Data, &u))
	assert.Equal(t, alice.ID, u["_id"])
	assert.NotContains(t, u, "passwordHash")
}

func TestFollowRequestLifecycle(t *testing.T) {
	api := newTestAPI(t)
	alice, bob := api.register("alice"), api.register("bob")

	// Le follow direct renvoie seulement l'indication de demande.
	code, res := api.do(http.MethodPost, "/users/"+bob.ID+"/follow", alice.Token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"success":true,"message":"Send follow request","requiresRequest":true,"isFollowing":false}`, string(res.Data))

	code, res = api.do(http.MethodPost, "/notifications/follow-request", alice.Token, map[string]string{"recipientId": bob.ID, "message": "hi"})
	require.Equal(t, http.StatusCreated, code, res.Message)
	var req followRequestJSON
	require.NoError(t, json.Unmarshal(res.Data, &req))
	assert.Equal(t, "pending", req.Status)
	assert.Equal(t, "alice", req.SenderUsername)

	code, _ = api.do(http.MethodPost, "/follow-request", alice.Token, map[string]string{"recipientId": bob.ID})
	assert.Equal(t, http.StatusConflict, code)

	code, res = api.do(http.MethodGet, "/notifications/follow-requests/pending", bob.Token, nil)
	require.Equal(t, http.StatusOK, code)
	var pending []followRequestJSON
	require.NoError(t, json.Unmarshal(res.Data, &pending))
	require.Len(t, pending, 1)

	code, res = api.do(http.MethodGet, "/notifications/follow-requests/sent", alice.Token, nil)
	require.Equal(t, http.StatusOK, code)
	var sent []followRequestJSON
	require.NoError(t, json.Unmarshal(res.Data, &sent))
	require.Len(t, sent, 1)

	code, res = api.do(http.MethodGet, "/notifications/unread-count", bob.Token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"count":1}`, string(res.Data))

	// Seul le destinataire peut accepter.
	code, _ = api.do(http.MethodPost, "/follow-requests/"+req.ID+"/accept", alice.Token, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, res = api.do(http.MethodPost, "/follow-requests/"+req.ID+"/accept", bob.Token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Follow request accepted", res.Message)

	code, res = api.do(http.MethodGet, "/users/"+bob.ID+"/follow-status", alice.Token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"isFollowing":true,"isFollowedBy":false,"followRequestSent":false}`, string(res.Data))

	code, res = api.do(http.MethodGet, "/users/followers", bob.Token, nil)
	require.Equal(t, http.StatusOK, code)
	var followers userPageJSON
	require.NoError(t, json.Unmarshal(res.Data, &followers))
	require.Len(t, followers.Users, 1)
	assert.Equal(t, alice.ID, followers.Users[0].ID)

	code, _ = api.do(http.MethodPost, "/notifications/follow-requests/"+req.ID+"/reject", bob.Token, nil)
	assert.Equal(t, http.StatusNotFound, code, "already resolved")

	code, res = api.do(http.MethodDelete, "/users/"+bob.ID+"/follow", alice.Token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Successfully unfollowed user", res.Message)
}

func TestCancelAndRejectRoutes(t *testing.T) {
	api := newTestAPI(t)
	alice, bob := api.register("alice"), api.register("bob")

	code, _ := api.do(http.MethodPost, "/follow-request", alice.Token, map[string]string{"recipientId": alice.ID})
	assert.Equal(t, http.StatusBadRequest, code, "self follow")

	code, _ = api.do(http.MethodPost, "/follow-request", alice.Token, map[string]string{"recipientId": bob.ID})
	require.Equal(t, http.StatusCreated, code)

	code, _ = api.do(http.MethodDelete, "/notifications/follow-request/"+bob.ID, alice.Token, nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = api.do(http.MethodDelete, "/follow-request/"+bob.ID, alice.Token, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, res := api.do(http.MethodGet, "/notifications", bob.Token, nil)
	require.Equal(t, http.StatusOK, code)
	var inbox notificationPageJSON
	require.NoError(t, json.Unmarshal(res.Data, &inbox))
	assert.Empty(t, inbox.Notifications, "cancel removes the notification")

	code, res = api.do(http.MethodPost, "/follow-request", alice.Token, map[string]string{"recipientId": bob.ID})
	require.Equal(t, http.StatusCreated, code)
	var req followRequestJSON
	require.NoError(t, json.Unmarshal(res.Data, &req))

	code, res = api.do(http.MethodPost, "/follow-requests/"+req.ID+"/reject", bob.Token, nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(res.Data, &req))
	assert.Equal(t, "rejected", req.Status)

	code, _ = api.do(http.MethodPost, "/follow-requests/not-a-uuid/accept", bob.Token, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestNotificationRoutes(t *testing.T) {
	api := newTestAPI(t)
	alice, bob := api.register("alice"), api.register("bob")

	for range 2 {
		code, _ := api.do(http.MethodPost, "/follow-request", alice.Token, map[string]string{"recipientId": bob.ID})
		require.Equal(t, http.StatusCreated, code)
		code, _ = api.do(http.MethodDelete, "/follow-request/"+bob.ID, alice.Token, nil)
		require.Equal(t, http.StatusOK, code)
	}
	code, _ := api.do(http.MethodPost, "/follow-request", alice.Token, map[string]string{"recipientId": bob.ID})
	require.Equal(t, http.StatusCreated, code)

	code, res := api.do(http.MethodGet, "/notifications?page=1&limit=500", bob.Token, nil)
	require.Equal(t, http.StatusOK, code)
	var inbox notificationPageJSON
	require.NoError(t, json.Unmarshal(res.Data, &inbox))
	require.Len(t, inbox.Notifications, 1)
	assert.Equal(t, int64(1), inbox.UnreadCount)
	n := inbox.Notifications[0]
	assert.Equal(t, domain.NotificationFollowRequest, n.Type)

	code, _ = api.do(http.MethodPost, "/notifications/"+n.ID+"/read", alice.Token, nil)
	assert.Equal(t, http.StatusNotFound, code, "not the recipient")
	code, _ = api.do(http.MethodPost, "/notifications/"+n.ID+"/read", bob.Token, nil)
	require.Equal(t, http.StatusOK, code)

	code, res = api.do(http.MethodPost, "/notifications/read-all", bob.Token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"updated":0}`, string(res.Data))

	code, _ = api.do(http.MethodDelete, "/notifications/"+n.ID, bob.Token, nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = api.do(http.MethodDelete, "/notifications/"+n.ID, bob.Token, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestUserListings(t *testing.T) {
	api := newTestAPI(t)
	alice := api.register("alice")
	api.register("alicia")
	bob := api.register("bob")

	code, res := api.do(http.MethodGet, "/users/search?q=ALI", alice.Token, nil)
	require.Equal(t, http.StatusOK, code)
	var page userPageJSON
	require.NoError(t, json.Unmarshal(res.Data, &page))
	require.Len(t, page.Users, 1, "viewer excluded")
	assert.Equal(t, "alicia", page.Users[0].Username)

	code, res = api.do(http.MethodGet, "/users/suggestions?limit=1", alice.Token, nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(res.Data, &page))
	assert.Len(t, page.Users, 1)
	assert.EqualValues(t, 2, page.Total)
	assert.EqualValues(t, 2, page.TotalPages)

	code, res = api.do(http.MethodGet, "/users/"+bob.ID, alice.Token, nil)
	require.Equal(t, http.StatusOK, code)
	var u userJSON
	require.NoError(t, json.Unmarshal(res.Data, &u))
	require.NotNil(t, u.IsFollowing)
	assert.False(t, *u.IsFollowing)

	code, _ = api.do(http.MethodGet, "/users/"+domain.NewID(), alice.Token, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestMapDomainError(t *testing.T) {
	tests := []struct {
		err     error
		status  int
		message string
	}{
		{fmt.Errorf("load user: %w", domain.ErrUserNotFound), http.StatusNotFound, "user not found"},
		{domain.ErrSelfFollow, http.StatusBadRequest, "cannot follow yourself"},
		{fmt.Errorf("a: %w", fmt.Errorf("b: %w", domain.ErrFollowRequestExists)), http.StatusConflict, "follow request already sent"},
		{domain.ErrInvalidToken, http.StatusUnauthorized, "invalid token"},
		{fmt.Errorf("%w: eof", errInvalidBody), http.StatusBadRequest, "invalid request body: eof"},
		{errors.New("connection refused to 10.0.0.3"), http.StatusInternalServerError, "internal server error"},
	}
	for _, tt := range tests {
		status, message := mapDomainError(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
		assert.Equal(t, tt.message, message)
	}
}

func TestParsePage(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/x?page=3&limit=1000", nil)
	assert.Equal(t, ports.Page{Page: 3, Limit: ports.MaxPageLimit}, parsePage(r))

	r = httptest.NewRequest(http.MethodGet, "/x?page=abc", nil)
	assert.Equal(t, ports.Page{Page: 1, Limit: ports.DefaultPageLimit}, parsePage(r))
}
