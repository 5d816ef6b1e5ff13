package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peerlearn/peerlearn/pkg/jwt"
)

func setupRouter(t *testing.T) (*gin.Engine, *jwt.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	manager, err := jwt.NewManager("secret", time.Minute, time.Hour, "peerlearn", nil)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/me", NewAuthMiddleware(manager).RequireAuth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id":  GetUserID(c),
			"email":    GetEmail(c),
			"username": GetUsername(c),
		})
	})
	return r, manager
}

func TestRequireAuth_BearerHeader(t *testing.T) {
	r, manager := setupRouter(t)
	pair, err := manager.GenerateTokenPair("u1", "a@b.co", "alice")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":"u1","email":"a@b.co","username":"alice"}`, w.Body.String())
}

func TestRequireAuth_Rejects(t *testing.T) {
	r, manager := setupRouter(t)
	pair, err := manager.GenerateTokenPair("u1", "", "")
	require.NoError(t, err)

	cases := map[string]func(*http.Request){
		"missing header":  func(*http.Request) {},
		"wrong scheme":    func(req *http.Request) { req.Header.Set("Authorization", "Token "+pair.AccessToken) },
		"garbage token":   func(req *http.Request) { req.Header.Set("Authorization", "Bearer nope") },
		"refresh as auth": func(req *http.Request) { req.Header.Set("Authorization", "Bearer "+pair.RefreshToken) },
	}

	for name, prepare := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			prepare(req)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), `"code":"UNAUTHORIZED"`)
		})
	}
}

func TestRequireAuth_QueryTokenOnlyForUpgrade(t *testing.T) {
	r, manager := setupRouter(t)
	pair, err := manager.GenerateTokenPair("u1", "", "")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me?access_token="+pair.AccessToken, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/me?access_token="+pair.AccessToken, nil)
	req.Header.Set("Upgrade", "websocket")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
