package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/richardliu001/smm-panel/internal/auth"
	"github.com/richardliu001/smm-panel/internal/config"
	"github.com/richardliu001/smm-panel/internal/lock"
	"github.com/richardliu001/smm-panel/internal/provider"
	"github.com/richardliu001/smm-panel/internal/repo"
	"github.com/richardliu001/smm-panel/internal/service"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type nopPublisher struct{}

func (nopPublisher) WriteMessages(context.Context, ...kafka.Message) error { return nil }

// fakeSMM answers like the provider; links containing "fail" are refused.
func fakeSMM(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		switch r.URL.Path {
		case "/order":
			if link, _ := body["link"].(string); strings.Contains(link, "fail") {
				_, _ = w.Write([]byte(`{"error":"Incorrect service ID"}`))
				return
			}
			_, _ = w.Write([]byte(`{"order":23501}`))
		case "/balance":
			_, _ = w.Write([]byte(`{"balance":"100.84","currency":"USD"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func setupRouter(t *testing.T, rl config.RateLimitConfig) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(repo.Models()...))

	log := zap.NewNop().Sugar()
	r := repo.NewRepository(db, nil, nopPublisher{}, log)
	smm := provider.NewClient(fakeSMM(t).URL, "test-key", 2*time.Second, log)
	opts := service.Options{
		MinDeposit: decimal.NewFromInt(10),
		Support:    config.SupportConfig{WhatsApp: "+10000000000"},
		Catalog: []config.CatalogEntry{{
			ServiceID: "101", Name: "Instagram Followers", Platform: "instagram", Type: "followers",
			UnitPrice: config.Amount{Decimal: decimal.RequireFromString("0.05")}, Min: 100, Max: 10000,
		}},
		MaxFailedLogins: 5,
		Lockout:         time.Minute,
	}
	svc := service.NewPanelService(r, smm, lock.NewLocalLocker(), auth.NewTokenManager("router-secret", time.Hour), opts, log)
	require.NoError(t, svc.Bootstrap(context.Background(), service.BootstrapRequest{
		AdminEmail: "root@example.com", AdminPassword: "rootpassword",
	}))
	return NewRouter(svc, rl, log)
}

func httpDo(r *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		b, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func login(t *testing.T, r *gin.Engine, email, password string) string {
	t.Helper()
	w := httpDo(r, "POST", "/v1/auth/login", "", gin.H{"email": email, "password": password})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res struct {
		Token string `json:"token"`
	}
	decode(t, w, &res)
	return res.Token
}

func signup(t *testing.T, r *gin.Engine, email string) (id, token string) {
	t.Helper()
	w := httpDo(r, "POST", "/v1/auth/register", "", gin.H{
		"full_name": email, "email": email, "password": "password123",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var u struct {
		ID string `json:"id"`
	}
	decode(t, w, &u)
	return u.ID, login(t, r, email, "password123")
}

func balanceOf(t *testing.T, r *gin.Engine, token string) decimal.Decimal {
	t.Helper()
	w := httpDo(r, "GET", "/v1/me/balance", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var res struct {
		Balance decimal.Decimal `json:"balance"`
	}
	decode(t, w, &res)
	return res.Balance
}

func TestPanelFlow(t *testing.T) {
	r := setupRouter(t, config.RateLimitConfig{RPS: 1000, Burst: 1000})
	_, alice := signup(t, r, "alice@example.com")
	_, bob := signup(t, r, "bob@example.com")
	admin := login(t, r, "root@example.com", "rootpassword")

	// Deposit and approval.
	w := httpDo(r, "POST", "/v1/deposits", alice, gin.H{"amount": "100"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var dep struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	decode(t, w, &dep)
	assert.Equal(t, "pending", dep.Status)

	w = httpDo(r, "POST", "/v1/admin/deposits/"+dep.ID+"/approve", alice, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = httpDo(r, "POST", "/v1/admin/deposits/"+dep.ID+"/approve", admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = httpDo(r, "POST", "/v1/admin/deposits/"+dep.ID+"/approve", admin, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.True(t, balanceOf(t, r, alice).Equal(decimal.NewFromInt(100)))

	// Order.
	w = httpDo(r, "POST", "/v1/orders", alice, gin.H{"service_id": "101", "link": "https://instagram.com/alice", "quantity": 400})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var order struct {
		ID         string `json:"id"`
		Status     string `json:"status"`
		APIOrderID string `json:"api_order_id"`
	}
	decode(t, w, &order)
	assert.Equal(t, "processing", order.Status)
	assert.Equal(t, "23501", order.APIOrderID)
	assert.True(t, balanceOf(t, r, alice).Equal(decimal.NewFromInt(80)))

	w = httpDo(r, "GET", "/v1/orders/"+order.ID, bob, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Provider refusal leaves the balance alone.
	w = httpDo(r, "POST", "/v1/orders", alice, gin.H{"service_id": "101", "link": "https://instagram.com/fail", "quantity": 400})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "+10000000000")
	assert.True(t, balanceOf(t, r, alice).Equal(decimal.NewFromInt(80)))

	// Transfer.
	w = httpDo(r, "POST", "/v1/transfers", alice, gin.H{"recipient": "bob@example.com", "amount": "20"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, balanceOf(t, r, alice).Equal(decimal.NewFromInt(59)))
	assert.True(t, balanceOf(t, r, bob).Equal(decimal.NewFromInt(20)))

	w = httpDo(r, "POST", "/v1/transfers", alice, gin.H{"recipient": "alice@example.com", "amount": "5"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = httpDo(r, "POST", "/v1/transfers", alice, gin.H{"recipient": "carol@example.com", "amount": "5"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = httpDo(r, "POST", "/v1/transfers", bob, gin.H{"recipient": "alice@example.com", "amount": "20"})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)

	// Notifications.
	w = httpDo(r, "GET", "/v1/notifications/unread-count", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var cnt struct {
		Unread int `json:"unread"`
	}
	decode(t, w, &cnt)
	assert.Equal(t, 1, cnt.Unread)
	w = httpDo(r, "POST", "/v1/notifications/read-all", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Admin surface.
	w = httpDo(r, "GET", "/v1/admin/stats", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats struct {
		TotalClients int64 `json:"total_clients"`
		TotalOrders  int64 `json:"total_orders"`
	}
	decode(t, w, &stats)
	assert.EqualValues(t, 2, stats.TotalClients)
	assert.EqualValues(t, 1, stats.TotalOrders)

	w = httpDo(r, "GET", "/v1/admin/provider/balance", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "USD")

	w = httpDo(r, "GET", "/v1/admin/logs", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "approve_deposit")
}

func TestAdminUserManagement(t *testing.T) {
	r := setupRouter(t, config.RateLimitConfig{RPS: 1000, Burst: 1000})
	id, alice := signup(t, r, "alice@example.com")
	admin := login(t, r, "root@example.com", "rootpassword")

	w := httpDo(r, "POST", "/v1/admin/users/"+id+"/balance", admin, gin.H{"amount": "-1", "note": "typo"})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	w = httpDo(r, "POST", "/v1/admin/users/"+id+"/balance", admin, gin.H{"amount": "15.25"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, balanceOf(t, r, alice).Equal(decimal.RequireFromString("15.25")))

	w = httpDo(r, "GET", "/v1/me/transactions", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"direction":"credit"`)

	w = httpDo(r, "POST", "/v1/admin/users/"+id+"/suspend", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = httpDo(r, "GET", "/v1/me", alice, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = httpDo(r, "POST", "/v1/admin/users/"+id+"/activate", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = httpDo(r, "GET", "/v1/me", alice, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httpDo(r, "GET", "/v1/admin/users", alice, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = httpDo(r, "POST", "/v1/admin/users/not-a-uuid/suspend", admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthErrors(t *testing.T) {
	r := setupRouter(t, config.RateLimitConfig{RPS: 1000, Burst: 1000})
	signup(t, r, "alice@example.com")

	w := httpDo(r, "GET", "/v1/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = httpDo(r, "GET", "/v1/me", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = httpDo(r, "POST", "/v1/auth/login", "", gin.H{"email": "alice@example.com", "password": "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = httpDo(r, "POST", "/v1/auth/register", "", gin.H{"full_name": "A", "email": "alice@example.com", "password": "password123"})
	assert.Equal(t, http.StatusConflict, w.Code)
	w = httpDo(r, "POST", "/v1/auth/register", "", gin.H{"email": "x@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListLimitValidation(t *testing.T) {
	r := setupRouter(t, config.RateLimitConfig{RPS: 1000, Burst: 1000})
	_, alice := signup(t, r, "alice@example.com")

	for _, path := range []string{"/v1/orders", "/v1/transfers", "/v1/me/transactions", "/v1/notifications"} {
		w := httpDo(r, "GET", path+"?limit=abc", alice, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
		assert.Contains(t, w.Body.String(), "invalid limit", path)

		w = httpDo(r, "GET", path+"?limit=5", alice, nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestRateLimit(t *testing.T) {
	r := setupRouter(t, config.RateLimitConfig{RPS: 1, Burst: 1})
	w := httpDo(r, "GET", "/v1/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = httpDo(r, "GET", "/v1/healthz", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}
