package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/peerlearn/peerlearn/internal/cache"
	"github.com/peerlearn/peerlearn/internal/config"
	"github.com/peerlearn/peerlearn/internal/domain"
	"github.com/peerlearn/peerlearn/internal/hub"
	"github.com/peerlearn/peerlearn/internal/idgen"
	"github.com/peerlearn/peerlearn/internal/repository"
	"github.com/peerlearn/peerlearn/internal/service"
	"github.com/peerlearn/peerlearn/pkg/database"
	"github.com/peerlearn/peerlearn/pkg/jwt"
	"github.com/peerlearn/peerlearn/pkg/middleware"
	"github.com/peerlearn/peerlearn/pkg/pubsub"
	"github.com/peerlearn/peerlearn/pkg/storage"
)

type testServer struct {
	router   *gin.Engine
	tokens   *jwt.Manager
	profiles *repository.GormProfileRepository
	hub      *hub.Hub
	bus      *pubsub.MemoryPubSub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.New(&database.Config{
		Driver:       "sqlite",
		FilePath:     fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		MaxOpenConns: 1,
		LogLevel:     "silent",
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db, domain.AllModels()...))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	tokens, err := jwt.NewManager("test-secret", 15*time.Minute, time.Hour, "peerlearn", nil)
	require.NoError(t, err)
	media, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: t.TempDir(), URLPrefix: "/media"})
	require.NoError(t, err)

	bus := pubsub.NewMemoryPubSub()
	t.Cleanup(func() { _ = bus.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	wsHub := hub.NewHub()
	go wsHub.Run(ctx)
	require.NoError(t, wsHub.Listen(ctx, bus))

	accounts := repository.NewMemoryAccountRepository()
	profiles := repository.NewGormProfileRepository(db)
	messages := repository.NewGormMessageRepository(db, idgen.NewULIDGenerator())
	directory := service.NewDirectoryService(profiles, cache.NewMemoryProfileCache("profile"), time.Minute)
	notifier := service.NewNotifier(bus, nil)

	chats := service.NewChatService(repository.NewGormChatRepository(db), messages, profiles, directory, notifier)
	groups := service.NewGroupService(repository.NewGormGroupRepository(db), messages, notifier)

	svcs := Services{
		Accounts:   service.NewAccountService(accounts, profiles, tokens, directory, media, service.AccountConfig{BcryptCost: bcrypt.MinCost}),
		Onboarding: service.NewOnboardingService(accounts, profiles, directory, nil),
		Directory:  directory,
		Chats:      chats,
		Groups:     groups,
		Uploads:    service.NewUploadService(media, idgen.NewULIDGenerator(), service.UploadConfig{}),
	}

	auth := middleware.NewAuthMiddleware(tokens)
	router := gin.New()
	NewHandler(svcs, auth, CookieConfig{}, service.DefaultUploadMaxBytes).RegisterRoutes(router)
	NewWSHandler(wsHub, chats, groups, auth, config.WebSocketConfig{
		PingInterval:   time.Minute,
		PongWait:       time.Minute,
		WriteWait:      10 * time.Second,
		MaxMessageSize: 16384,
	}).RegisterRoutes(router)

	return &testServer{router: router, tokens: tokens, profiles: profiles, hub: wsHub, bus: bus}
}

// newUser creates an onboarded profile and returns its id and an access token.
func (s *testServer) newUser(t *testing.T, username string) (string, string) {
	t.Helper()
	id := uuid.NewString()
	_, err := s.profiles.Upsert(context.Background(), id, username, nil)
	require.NoError(t, err)
	pair, err := s.tokens.GenerateTokenPair(id, username+"@example.com", username)
	require.NoError(t, err)
	return id, pair.AccessToken
}

// signupAndLogin registers an account that has not picked a username yet.
func (s *testServer) signupAndLogin(t *testing.T, email string) string {
	t.Helper()
	_, resp := s.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{"name": "Test User", "email": email, "password": "secret1"})
	require.True(t, resp.Success)
	_, resp = s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": email, "password": "secret1"})
	var auth domain.AuthResponse
	decodeData(t, resp, &auth)
	require.NotEmpty(t, auth.AccessToken)
	return auth.AccessToken
}

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return s.serve(t, req)
}

func (s *testServer) serve(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var resp apiResponse
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func decodeData(t *testing.T, resp apiResponse, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(resp.Data, v))
}

func TestSignupAndLogin(t *testing.T) {
	s := newTestServer(t)

	signup := map[string]string{"name": "Alice Doe", "email": "alice@example.com", "password": "secret1"}
	w, resp := s.do(t, http.MethodPost, "/api/auth/signup", "", signup)
	require.Equal(t, http.StatusCreated, w.Code)
	var created domain.SignupResponse
	decodeData(t, resp, &created)
	assert.Equal(t, "alice@example.com", created.Email)

	w, resp = s.do(t, http.MethodPost, "/api/auth/signup", "", signup)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Email already exists", resp.Error.Message)

	w, _ = s.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{"name": "Al", "email": "x@example.com", "password": "secret1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "alice@example.com", "password": "wrong1"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, resp = s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "alice@example.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, w.Code)
	var auth domain.AuthResponse
	decodeData(t, resp, &auth)
	require.NotEmpty(t, auth.AccessToken)

	w, resp = s.do(t, http.MethodGet, "/api/v1/accounts/me", auth.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var account domain.AccountResponse
	decodeData(t, resp, &account)
	assert.Equal(t, "Alice Doe", account.Name)

	w, _ = s.do(t, http.MethodPut, "/api/auth/signup", auth.AccessToken, map[string]string{"github": "alice"})
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(t, http.MethodDelete, "/api/auth/signup", auth.AccessToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// deletion revokes the token
	w, _ = s.do(t, http.MethodGet, "/api/v1/accounts/me", auth.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequiresAuth(t *testing.T) {
	s := newTestServer(t)

	w, resp := s.do(t, http.MethodGet, "/api/v1/chats", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, resp.Success)

	w, _ = s.do(t, http.MethodGet, "/api/v1/chats", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOnboardingFlow(t *testing.T) {
	s := newTestServer(t)

	token := s.signupAndLogin(t, "bob@example.com")

	w, resp := s.do(t, http.MethodGet, "/api/v1/onboarding/status", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status domain.OnboardingStatus
	decodeData(t, resp, &status)
	assert.False(t, status.IsOnboarded)
	assert.Empty(t, w.Result().Cookies())

	w, resp = s.do(t, http.MethodGet, "/api/v1/onboarding/username?username=bobby", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var availability domain.UsernameAvailability
	decodeData(t, resp, &availability)
	assert.True(t, availability.Available)

	w, _ = s.do(t, http.MethodPost, "/api/v1/onboarding", token, map[string]string{"username": "bo"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(t, http.MethodPost, "/api/v1/onboarding", token, map[string]string{"username": "bobby"})
	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "onboarding_complete", cookies[0].Name)
	assert.Equal(t, "true", cookies[0].Value)
	assert.Equal(t, "/", cookies[0].Path)
	assert.Equal(t, 365*24*60*60, cookies[0].MaxAge)

	w, resp = s.do(t, http.MethodGet, "/api/v1/onboarding/status", token, nil)
	decodeData(t, resp, &status)
	assert.True(t, status.IsOnboarded)
	assert.Len(t, w.Result().Cookies(), 1)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/onboarding/status", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.AddCookie(&http.Cookie{Name: "onboarding_complete", Value: "true"})
	_, resp = s.serve(t, req)
	decodeData(t, resp, &status)
	assert.True(t, status.IsOnboarded)

	other := s.signupAndLogin(t, "carol@example.com")
	w, _ = s.do(t, http.MethodPost, "/api/v1/onboarding", other, map[string]string{"username": "bobby"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w, resp = s.do(t, http.MethodGet, "/api/v1/users/search?q=bob", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var users []domain.UserSummary
	decodeData(t, resp, &users)
	require.Len(t, users, 1)
	assert.Equal(t, "bobby", *users[0].Username)

	w, resp = s.do(t, http.MethodGet, "/api/v1/users/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me domain.UserInfo
	decodeData(t, resp, &me)
	assert.Equal(t, "bobby", *me.Username)
}

func TestChatEndpoints(t *testing.T) {
	s := newTestServer(t)
	aliceID, alice := s.newUser(t, "alice")
	bobID, bob := s.newUser(t, "bob")
	_, carol := s.newUser(t, "carol")

	w, resp := s.do(t, http.MethodPost, "/api/v1/chats", alice, map[string]string{"user_id": aliceID})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Don't you have any friends?!", resp.Error.Message)

	w, _ = s.do(t, http.MethodPost, "/api/v1/chats", alice, map[string]string{"user_id": uuid.NewString()})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, resp = s.do(t, http.MethodPost, "/api/v1/chats", alice, map[string]string{"user_id": bobID})
	require.Equal(t, http.StatusCreated, w.Code)
	var created domain.CreateChatResponse
	decodeData(t, resp, &created)

	w, _ = s.do(t, http.MethodPost, "/api/v1/chats", bob, map[string]string{"user_id": aliceID})
	assert.Equal(t, http.StatusOK, w.Code)

	w, resp = s.do(t, http.MethodGet, "/api/v1/chats", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var chats []domain.ChatWithNames
	decodeData(t, resp, &chats)
	require.Len(t, chats, 1)
	assert.Equal(t, "alice", *chats[0].SenderUsername)
	assert.Equal(t, "bob", *chats[0].ReceiverUsername)

	base := "/api/v1/chats/" + created.ChatID
	w, _ = s.do(t, http.MethodGet, base, carol, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, resp = s.do(t, http.MethodPost, base+"/messages", alice, map[string]string{"content": "hello"})
	require.Equal(t, http.StatusCreated, w.Code)
	var msg domain.Message
	decodeData(t, resp, &msg)

	w, _ = s.do(t, http.MethodPost, base+"/messages", alice, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(t, http.MethodPost, base+"/messages", carol, map[string]string{"content": "hi"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, resp = s.do(t, http.MethodGet, base+"/messages?limit=10", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page domain.MessagePage
	decodeData(t, resp, &page)
	require.Len(t, page.Messages, 1)
	assert.False(t, page.HasMore)

	w, _ = s.do(t, http.MethodGet, base+"/messages?limit=abc", bob, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp = s.do(t, http.MethodPost, "/api/v1/messages/"+msg.ID+"/reactions", bob, map[string]string{"emoji": "😂"})
	require.Equal(t, http.StatusOK, w.Code)
	var reaction domain.ReactionResult
	decodeData(t, resp, &reaction)
	assert.True(t, reaction.Added)

	w, _ = s.do(t, http.MethodPost, "/api/v1/messages/"+msg.ID+"/reactions", bob, map[string]string{"emoji": "🍕"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(t, http.MethodDelete, "/api/v1/messages/"+msg.ID, bob, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.do(t, http.MethodDelete, "/api/v1/messages/"+msg.ID, alice, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGroupEndpoints(t *testing.T) {
	s := newTestServer(t)
	_, alice := s.newUser(t, "alice")
	_, bob := s.newUser(t, "bob")

	w, resp := s.do(t, http.MethodPost, "/api/v1/groups", alice, map[string]string{"name": "Secret", "type": "private"})
	require.Equal(t, http.StatusCreated, w.Code)
	var private domain.Group
	decodeData(t, resp, &private)

	w, resp = s.do(t, http.MethodPost, "/api/v1/groups", alice, map[string]string{"name": "Open"})
	require.Equal(t, http.StatusCreated, w.Code)
	var open domain.Group
	decodeData(t, resp, &open)
	assert.Equal(t, domain.GroupTypePublic, open.Type)

	w, _ = s.do(t, http.MethodPost, "/api/v1/groups", alice, map[string]string{"name": "Bad", "type": "hidden"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(t, http.MethodPost, "/api/v1/groups/"+private.ID+"/join", bob, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.do(t, http.MethodPost, "/api/v1/groups/"+open.ID+"/messages", bob, map[string]string{"content": "hi"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.do(t, http.MethodPost, "/api/v1/groups/"+open.ID+"/join", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, resp = s.do(t, http.MethodPost, "/api/v1/groups/"+open.ID+"/messages", bob, map[string]string{"content": "hi"})
	require.Equal(t, http.StatusCreated, w.Code)
	var msg domain.Message
	decodeData(t, resp, &msg)

	w, _ = s.do(t, http.MethodPost, "/api/v1/group-messages/"+msg.ID+"/reactions", alice, map[string]string{"emoji": "👍"})
	assert.Equal(t, http.StatusOK, w.Code)

	w, resp = s.do(t, http.MethodGet, "/api/v1/groups", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var groups []domain.Group
	decodeData(t, resp, &groups)
	require.Len(t, groups, 1)
	assert.Equal(t, open.ID, groups[0].ID)

	w, resp = s.do(t, http.MethodGet, "/api/v1/groups/"+open.ID+"/messages", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page domain.MessagePage
	decodeData(t, resp, &page)
	require.Len(t, page.Messages, 1)
	assert.Equal(t, msg.ID, page.Messages[0].ID)
}

func multipartRequest(t *testing.T, token, contentType string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="file"; filename="upload"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads/images", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestUploadImage(t *testing.T) {
	s := newTestServer(t)
	userID, token := s.newUser(t, "alice")

	var img bytes.Buffer
	require.NoError(t, png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 40, 30))))

	w, resp := s.serve(t, multipartRequest(t, token, "image/png", img.Bytes()))
	require.Equal(t, http.StatusCreated, w.Code)
	var result domain.UploadResult
	decodeData(t, resp, &result)
	assert.Contains(t, result.URL, "/media/attachments/"+userID+"/")
	assert.Equal(t, 40, result.Width)

	w, _ = s.serve(t, multipartRequest(t, token, "text/plain", []byte("hello")))
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)

	w, _ = s.serve(t, multipartRequest(t, token, "image/png", []byte("not a png")))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(t, http.MethodPost, "/api/v1/uploads/images", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		service.ErrSelfChat:          http.StatusBadRequest,
		domain.ErrUsernameBanned:     http.StatusBadRequest,
		service.ErrInvalidToken:      http.StatusUnauthorized,
		service.ErrNotGroupMember:    http.StatusForbidden,
		service.ErrGroupNotFound:     http.StatusNotFound,
		service.ErrUsernameTaken:     http.StatusConflict,
		service.ErrImageTooLarge:     http.StatusRequestEntityTooLarge,
		service.ErrUnsupportedMedia:  http.StatusUnsupportedMediaType,
		service.ErrAccountSyncFailed: http.StatusInternalServerError,
		fmt.Errorf("wrapped: %w", service.ErrChatNotFound): http.StatusNotFound,
	}
	for err, want := range cases {
		assert.Equal(t, want, statusFor(err), err.Error())
	}
}
