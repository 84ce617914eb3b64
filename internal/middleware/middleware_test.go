package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/studymate/internal/pkg/errcode"
	"github.com/xxxsen/studymate/internal/pkg/jwt"
)

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(mw...)
	engine.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextSubjectKey))
	})
	return engine
}

func codeOf(t *testing.T, body []byte) int {
	t.Helper()
	var out struct {
		Code int `json:"code"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	return out.Code
}

func TestJWTAuthRoles(t *testing.T) {
	secret := []byte("secret")
	engine := newEngine(JWTAuth(secret, jwt.RoleAdmin))

	cases := []struct {
		name   string
		header func() string
		code   int
	}{
		{"missing", func() string { return "" }, errcode.ErrUnauthorized},
		{"malformed", func() string { return "Token abc" }, errcode.ErrUnauthorized},
		{"bad token", func() string { return "Bearer abc" }, errcode.ErrUnauthorized},
		{"wrong role", func() string {
			tok, err := jwt.GenerateToken("viewer", "reader", secret, time.Hour)
			require.NoError(t, err)
			return "Bearer " + tok
		}, errcode.ErrForbidden},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		if h := tc.header(); h != "" {
			req.Header.Set("Authorization", h)
		}
		resp := httptest.NewRecorder()
		engine.ServeHTTP(resp, req)
		require.Equal(t, tc.code, codeOf(t, resp.Body.Bytes()), tc.name)
	}

	tok, err := jwt.GenerateToken("ops", jwt.RoleAdmin, secret, time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp := httptest.NewRecorder()
	engine.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "ops", resp.Body.String())
}

func TestRequestID(t *testing.T) {
	engine := newEngine(RequestID())

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	resp := httptest.NewRecorder()
	engine.ServeHTTP(resp, req)
	require.Equal(t, "abc-123", resp.Header().Get(HeaderRequestID))

	resp = httptest.NewRecorder()
	engine.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Len(t, resp.Header().Get(HeaderRequestID), 36)
}

func TestCORSAllowlist(t *testing.T) {
	engine := newEngine(CORS([]string{"https://study.example.com/"}))

	req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
	req.Header.Set("Origin", "https://study.example.com")
	resp := httptest.NewRecorder()
	engine.ServeHTTP(resp, req)
	require.Equal(t, http.StatusNoContent, resp.Code)
	require.Equal(t, "https://study.example.com", resp.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	resp = httptest.NewRecorder()
	engine.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Empty(t, resp.Header().Get("Access-Control-Allow-Origin"))

	open := newEngine(CORS(nil))
	resp = httptest.NewRecorder()
	open.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, "*", resp.Header().Get("Access-Control-Allow-Origin"))
}
