package router

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"greentera/internal/config"
	"greentera/internal/models"
	"greentera/internal/testutil"
	"greentera/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() *config.Config {
	return &config.Config{
		Server:      config.ServerConfig{SessionSecret: "router-test-secret", GinMode: gin.TestMode},
		Leaderboard: config.LeaderboardConfig{CacheTTL: time.Minute},
		Scan:        config.ScanConfig{RequestsPerMinute: 1, Burst: 2, MaxImageBytes: 1 << 20, MaxDimension: 256},
	}
}

type client struct {
	t       *testing.T
	r       *gin.Engine
	cookies map[string]*http.Cookie
}

func newClient(t *testing.T, r *gin.Engine) *client {
	return &client{t: t, r: r, cookies: map[string]*http.Cookie{}}
}

func (c *client) do(method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	c.t.Helper()
	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, path, nil)
	} else {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		req = httptest.NewRequest(method, path, strings.NewReader(string(raw)))
		req.Header.Set("Content-Type", "application/json")
	}
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	c.r.ServeHTTP(w, req)
	for _, ck := range w.Result().Cookies() {
		c.cookies[ck.Name] = ck
	}

	var out map[string]any
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(c.t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w, out
}

func (c *client) login(email, password string) {
	c.t.Helper()
	w, _ := c.do(http.MethodPost, "/api/auth/login", gin.H{"email": email, "password": password})
	require.Equal(c.t, http.StatusOK, w.Code, w.Body.String())
}

func register(t *testing.T, c *client, name, email string) {
	t.Helper()
	w, body := c.do(http.MethodPost, "/api/auth/register", gin.H{
		"name": name, "email": email, "password": "rahasia1", "location": "Jakarta",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, true, body["success"])
}

func createAdmin(t *testing.T, gdb *gorm.DB) {
	t.Helper()
	hash, err := utils.HashPassword("admin123")
	require.NoError(t, err)
	admin := testutil.CreateUser(t, gdb, "admin@example.com", testutil.WithRole(models.RoleAdmin))
	require.NoError(t, gdb.Model(admin).Update("password", hash).Error)
}

func setup(t *testing.T) (*gorm.DB, *gin.Engine) {
	gdb := testutil.NewDB(t)
	return gdb, New(gdb, testConfig())
}

func TestAuthFlow(t *testing.T) {
	_, r := setup(t)
	c := newClient(t, r)

	w, _ := c.do(http.MethodGet, "/api/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	register(t, c, "Alice", "alice@example.com")

	w, body := c.do(http.MethodPost, "/api/auth/register", gin.H{
		"name": "Alice", "email": "ALICE@example.com", "password": "rahasia1", "location": "Jakarta",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "conflict", body["error"])

	w, _ = c.do(http.MethodPost, "/api/auth/login", gin.H{"email": "alice@example.com", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	c.login("alice@example.com", "rahasia1")
	w, body = c.do(http.MethodGet, "/api/auth/me", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice@example.com", body["user"].(map[string]any)["email"])
	assert.NotContains(t, w.Body.String(), "password")

	w, _ = c.do(http.MethodPost, "/api/auth/logout", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = c.do(http.MethodGet, "/api/dashboard", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDepositTreeAndVoucherFlow(t *testing.T) {
	_, r := setup(t)
	c := newClient(t, r)
	register(t, c, "Budi", "budi@example.com")
	c.login("budi@example.com", "rahasia1")

	w, body := c.do(http.MethodPost, "/api/waste/deposit", gin.H{"wasteType": "PLASTIC", "amount": 2.5})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	stats := body["newStats"].(map[string]any)
	assert.EqualValues(t, 25, stats["points"])
	assert.EqualValues(t, 50, stats["ecoXp"])
	assert.Equal(t, "BRONZE", stats["level"])
	assert.EqualValues(t, 1, stats["streak"])
	assert.Equal(t, "MANUAL", body["deposit"].(map[string]any)["scanMethod"])

	w, body = c.do(http.MethodPost, "/api/waste/deposit", gin.H{"wasteType": "GLASS", "amount": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "wasteType", body["field"])

	w, body = c.do(http.MethodPost, "/api/waste/deposit", gin.H{"wasteType": "METAL", "amount": 0.05})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "amount", body["field"])

	w, body = c.do(http.MethodGet, "/api/waste/history?limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["deposits"], 1)
	assert.Equal(t, map[string]any{"total": float64(1), "limit": float64(10), "offset": float64(0), "hasMore": false}, body["pagination"])

	w, body = c.do(http.MethodGet, "/api/eco-tree", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["canClaim"])

	w, body = c.do(http.MethodPost, "/api/eco-tree/claim", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "need 1000 eco XP, have 50", body["message"])

	w, body = c.do(http.MethodPost, "/api/voucher/redeem", gin.H{"voucherType": "PULSA_10K"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "rejected", body["error"])
	assert.Contains(t, body["message"], "need 100, have 25")

	w, body = c.do(http.MethodPost, "/api/voucher/redeem", gin.H{"voucherType": "DISCOUNT_10"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body = c.do(http.MethodPost, "/api/voucher/redeem", gin.H{"templateId": "missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, body = c.do(http.MethodGet, "/api/points/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["logs"], 1)

	w, body = c.do(http.MethodGet, "/api/leaderboard?period=alltime", nil)
	require.Equal(t, http.StatusOK, w.Code)
	entries := body["leaderboard"].([]any)
	require.Len(t, entries, 1)
	assert.Equal(t, "Budi", entries[0].(map[string]any)["name"])

	w, _ = c.do(http.MethodGet, "/api/leaderboard?period=yearly", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body = c.do(http.MethodGet, "/api/notifications", nil)
	require.Equal(t, http.StatusOK, w.Code)
	// welcome + points earned
	assert.EqualValues(t, 2, body["unreadCount"])
	w, _ = c.do(http.MethodPut, "/api/notifications", gin.H{"markAll": true})
	require.Equal(t, http.StatusOK, w.Code)
	_, body = c.do(http.MethodGet, "/api/notifications", nil)
	assert.EqualValues(t, 0, body["unreadCount"])
	w, _ = c.do(http.MethodPut, "/api/notifications", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRedeemTemplateAndRefund(t *testing.T) {
	gdb, r := setup(t)
	createAdmin(t, gdb)
	tpl := testutil.CreateTemplate(t, gdb, "Pulsa 5K", 40, 5000, 1)

	user := newClient(t, r)
	register(t, user, "Citra", "citra@example.com")
	user.login("citra@example.com", "rahasia1")
	_, _ = user.do(http.MethodPost, "/api/waste/deposit", gin.H{"wasteType": "METAL", "amount": 4})

	w, body := user.do(http.MethodPost, "/api/voucher/redeem", gin.H{"templateId": tpl.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 20, body["remainingPoints"])
	assert.EqualValues(t, 5000, body["nominal"])
	assert.Regexp(t, `^GT-[A-Z0-9]{8}$`, body["voucherCode"])
	assert.Equal(t, "Pulsa 5K", body["template"].(map[string]any)["name"])
	voucherID := body["id"].(string)

	w, body = user.do(http.MethodPost, "/api/voucher/redeem", gin.H{"templateId": tpl.ID})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = user.do(http.MethodDelete, "/api/admin/vouchers/"+voucherID, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	admin := newClient(t, r)
	admin.login("admin@example.com", "admin123")
	w, body = admin.do(http.MethodDelete, "/api/admin/vouchers?id="+voucherID, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 40, body["refundedPoints"])

	_, body = user.do(http.MethodGet, "/api/profile", nil)
	assert.EqualValues(t, 60, body["points"])
	assert.EqualValues(t, 1, body["rank"])

	w, _ = admin.do(http.MethodDelete, "/api/admin/vouchers/"+voucherID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminSurface(t *testing.T) {
	gdb, r := setup(t)
	createAdmin(t, gdb)
	admin := newClient(t, r)

	w, _ := admin.do(http.MethodGet, "/api/admin/stats", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	admin.login("admin@example.com", "admin123")

	w, body := admin.do(http.MethodGet, "/api/admin/settings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 10, body["pointsPerKg"].(map[string]any)["PLASTIC"])

	settings := gin.H{
		"pointsPerKg":     gin.H{"ORGANIC": 5, "PLASTIC": 20, "METAL": 15, "PAPER": 8},
		"levelThresholds": gin.H{"SILVER": 500, "GOLD": 1000},
		"ecoTreeConfig":   gin.H{"claimXpThreshold": 1000, "bonusPoints": 200},
		"voucherConfig":   gin.H{"expiryDays": 30},
	}
	w, _ = admin.do(http.MethodPut, "/api/admin/settings", settings)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	settings["levelThresholds"] = gin.H{"SILVER": 1000, "GOLD": 1000}
	w, body = admin.do(http.MethodPut, "/api/admin/settings", settings)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "levelThresholds", body["field"])

	user := newClient(t, r)
	register(t, user, "Dewi", "dewi@example.com")
	user.login("dewi@example.com", "rahasia1")
	_, body = user.do(http.MethodPost, "/api/waste/deposit", gin.H{"wasteType": "PLASTIC", "amount": 1})
	assert.EqualValues(t, 20, body["newStats"].(map[string]any)["points"])

	w, body = admin.do(http.MethodPost, "/api/admin/voucher-templates", gin.H{"name": "Token Listrik", "nominal": 20000, "pointsCost": 150})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w, _ = admin.do(http.MethodPost, "/api/admin/voucher-templates", gin.H{"name": "Token Listrik", "nominal": 20000, "pointsCost": 150})
	assert.Equal(t, http.StatusConflict, w.Code)

	_, body = user.do(http.MethodGet, "/api/vouchers/templates", nil)
	assert.Len(t, body["templates"], 1)

	w, body = admin.do(http.MethodGet, "/api/admin/users?search=dewi", nil)
	require.Equal(t, http.StatusOK, w.Code)
	users := body["users"].([]any)
	require.Len(t, users, 1)
	dewiID := users[0].(map[string]any)["id"].(string)

	w, body = admin.do(http.MethodPut, "/api/admin/users/"+dewiID, gin.H{"points": 600})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "SILVER", body["user"].(map[string]any)["level"])

	w, body = admin.do(http.MethodGet, "/api/admin/deposits?wasteType=PLASTIC", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["deposits"], 1)

	w, body = admin.do(http.MethodPost, "/api/admin/notifications", gin.H{"title": "Kerja bakti", "message": "Minggu pagi di taman <b>kota</b>"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 1, body["sent"])

	w, body = admin.do(http.MethodGet, "/api/admin/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, body["overview"].(map[string]any)["totalDeposits"])

	var adminID string
	require.NoError(t, gdb.Model(&models.User{}).Select("id").Where("email = ?", "admin@example.com").Scan(&adminID).Error)
	w, _ = admin.do(http.MethodDelete, "/api/admin/users/"+adminID, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = admin.do(http.MethodDelete, "/api/admin/users/"+dewiID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = user.do(http.MethodGet, "/api/profile", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestEducationRoutes(t *testing.T) {
	gdb, r := setup(t)
	createAdmin(t, gdb)
	admin := newClient(t, r)
	admin.login("admin@example.com", "admin123")

	w, body := admin.do(http.MethodPost, "/api/admin/articles", gin.H{
		"title": "Memilah Sampah", "content": "# Pilah\n\nPisahkan **organik**.", "category": "dasar",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	articleID := body["article"].(map[string]any)["id"].(string)

	w, body = admin.do(http.MethodPost, "/api/admin/quizzes", gin.H{
		"question": "Plastik termasuk sampah?", "options": []string{"Organik", "Anorganik"}, "correctAnswer": "Anorganik", "pointsReward": 15,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	quizID := body["quiz"].(map[string]any)["id"].(string)

	user := newClient(t, r)
	w, body = user.do(http.MethodGet, "/api/education/articles/"+articleID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, body["html"], "<strong>organik</strong>")

	w, _ = user.do(http.MethodGet, "/api/education/quiz", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	register(t, user, "Eka", "eka@example.com")
	user.login("eka@example.com", "rahasia1")

	w, body = user.do(http.MethodGet, "/api/education/quiz", nil)
	require.Equal(t, http.StatusOK, w.Code)
	quizzes := body["quizzes"].([]any)
	require.Len(t, quizzes, 1)
	assert.NotContains(t, quizzes[0].(map[string]any), "correctAnswer")

	w, body = user.do(http.MethodPost, "/api/education/quiz", gin.H{"quizId": quizID, "answer": "Anorganik"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, body["isCorrect"])
	assert.EqualValues(t, 15, body["pointsEarned"])

	w, _ = user.do(http.MethodPost, "/api/education/quiz", gin.H{"quizId": quizID, "answer": "Organik"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = user.do(http.MethodPost, "/api/education/quiz", gin.H{"quizId": "missing", "answer": "Organik"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestScanIsRateLimited(t *testing.T) {
	_, r := setup(t)
	c := newClient(t, r)
	register(t, c, "Fajar", "fajar@example.com")
	c.login("fajar@example.com", "rahasia1")

	img := base64.StdEncoding.EncodeToString([]byte("not really an image"))

	w, body := c.do(http.MethodPost, "/api/waste/scan", gin.H{"image": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "image", body["field"])

	w, body = c.do(http.MethodPost, "/api/waste/scan", gin.H{"image": "data:image/png;base64," + img})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "PLASTIC", body["wasteType"])
	assert.Equal(t, true, body["isMock"])

	w, _ = c.do(http.MethodPost, "/api/waste/scan", gin.H{"image": img})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
}

func TestMetricsAndHealth(t *testing.T) {
	_, r := setup(t)
	c := newClient(t, r)

	w, body := c.do(http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w, _ = c.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "greentera_http_request_duration_seconds")
	assert.Contains(t, w.Body.String(), fmt.Sprintf("route=%q", "/healthz"))
}
