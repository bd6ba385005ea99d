package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"greentera/internal/models"
	"greentera/internal/testutil"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newEngine wires sessions and LoadUser and adds a helper route that signs
// the given user id in.
func newEngine(gdb *gorm.DB) *gin.Engine {
	r := gin.New()
	r.Use(sessions.Sessions("test_session", cookie.NewStore([]byte("test-secret"))))
	r.Use(RequestLogger())
	r.Use(LoadUser(gdb))
	r.GET("/login/:id", func(c *gin.Context) {
		s := sessions.Default(c)
		s.Set(SessionUserKey, c.Param("id"))
		_ = s.Save()
		c.Status(http.StatusNoContent)
	})
	return r
}

func login(t *testing.T, r *gin.Engine, id string) []*http.Cookie {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/login/"+id, nil))
	require.Equal(t, http.StatusNoContent, w.Code)
	return w.Result().Cookies()
}

func get(r *gin.Engine, path string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthGuards(t *testing.T) {
	gdb := testutil.NewDB(t)
	user := testutil.CreateUser(t, gdb, "user@example.com")
	admin := testutil.CreateUser(t, gdb, "admin@example.com", testutil.WithRole(models.RoleAdmin))

	r := newEngine(gdb)
	r.GET("/me", AuthRequired(), func(c *gin.Context) {
		c.String(http.StatusOK, CurrentUser(c).Email)
	})
	r.GET("/admin", AuthRequired(), AdminRequired(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := get(r, "/me", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"unauthorized","message":"login required"}`, w.Body.String())

	userCookies := login(t, r, user.ID)
	w = get(r, "/me", userCookies)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user@example.com", w.Body.String())

	w = get(r, "/admin", userCookies)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = get(r, "/admin", login(t, r, admin.ID))
	assert.Equal(t, http.StatusOK, w.Code)

	w = get(r, "/me", login(t, r, "deleted-user"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequestID(t *testing.T) {
	r := newEngine(testutil.NewDB(t))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := get(r, "/ping", nil)
	assert.Len(t, w.Header().Get(RequestIDHeader), 20)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestRateLimiterPerUser(t *testing.T) {
	gdb := testutil.NewDB(t)
	alice := testutil.CreateUser(t, gdb, "alice@example.com")
	bob := testutil.CreateUser(t, gdb, "bob@example.com")

	limiter := NewRateLimiter(1, 2)
	r := newEngine(gdb)
	r.GET("/scan", AuthRequired(), limiter.PerUser(), func(c *gin.Context) { c.Status(http.StatusOK) })

	aliceCookies := login(t, r, alice.ID)
	assert.Equal(t, http.StatusOK, get(r, "/scan", aliceCookies).Code)
	assert.Equal(t, http.StatusOK, get(r, "/scan", aliceCookies).Code)

	w := get(r, "/scan", aliceCookies)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "rate_limited")

	// buckets are per user
	assert.Equal(t, http.StatusOK, get(r, "/scan", login(t, r, bob.ID)).Code)
}
