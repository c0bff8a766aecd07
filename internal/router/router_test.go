package router

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"drinkpoint-api/internal/cache"
	"drinkpoint-api/internal/classifier"
	"drinkpoint-api/internal/handler"
	"drinkpoint-api/internal/metrics"
	"drinkpoint-api/internal/middleware"
	"drinkpoint-api/internal/repository"
	"drinkpoint-api/internal/rules"
	"drinkpoint-api/internal/service"
	"drinkpoint-api/internal/storage"
)

const jwtSecret = "router-test-secret"

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    *struct {
		Total int64 `json:"total"`
	} `json:"meta"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx := context.Background()

	store, err := repository.Open(ctx, repository.Options{Driver: "sqlite", DSN: ":memory:"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	mc := cache.NewMemoryCache()
	t.Cleanup(func() { mc.Close() })

	m := metrics.New()
	holder := rules.NewHolder(rules.NewDefaultEngine(nil))
	cls := classifier.Func(func(context.Context, classifier.ImageInput) ([]byte, error) {
		return []byte(`{"brandName":"Golden Hop","category":"draft_beer","volumeMl":350,"confidence":0.9,"isTargetBrand":true}`), nil
	})

	progress := service.NewProgress(store, holder, m, nil)
	captures := service.NewCaptureService(store, cls, storage.NewMemoryImageStore(""), holder, progress, nil, m, nil)
	tokens := service.NewTokenService(mc, "admin-key", time.Hour, nil)
	board := service.NewLeaderboardScheduler(store, mc, service.LeaderboardConfig{}, nil)
	profiles := service.NewProfileService(store, holder, board, nil)
	admin := service.NewAdminService(store, progress, nil, time.UTC, nil)

	r := New(Config{
		Handler:        handler.New("test", map[string]handler.Pinger{"database": store, "cache": mc}),
		CaptureHandler: handler.NewCaptureHandler(captures, 1024),
		ProfileHandler: handler.NewProfileHandler(profiles),
		AdminHandler:   handler.NewAdminHandler(admin, store, mc, "sqlite", "memory"),
		AuthHandler:    handler.NewAuthHandler(tokens),
		UserAuth:       middleware.NewUserAuth(middleware.UserAuthConfig{Secret: []byte(jwtSecret), Users: profiles}),
		AdminAuth:      middleware.NewAdminAuth(tokens),
		RateLimiter:    middleware.NewRateLimiter(100, 100),
		Metrics:        m,
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func userToken(t *testing.T, sub string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   sub,
		"email": sub + "@example.com",
		"name":  strings.ToUpper(sub),
		"exp":   time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(jwtSecret))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func do(t *testing.T, req *http.Request) (int, envelope) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var env envelope
	if resp.StatusCode != http.StatusNoContent {
		json.NewDecoder(resp.Body).Decode(&env)
	}
	return resp.StatusCode, env
}

func newJSON(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req
}

func photoRequest(t *testing.T, url string, image []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("image", "drink.jpg")
	part.Write(image)
	mw.Close()
	req, _ := http.NewRequest(http.MethodPost, url, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestPublicRoutes(t *testing.T) {
	srv := newServer(t)
	for _, path := range []string{"/api/status", "/api/v1/health", "/api/v1/ready"} {
		req, _ := http.NewRequest(http.MethodGet, srv.URL+path, nil)
		if code, env := do(t, req); code != http.StatusOK || !env.Success {
			t.Errorf("%s: status %d", path, code)
		}
	}

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics status %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/nope", nil)
	if code, env := do(t, req); code != http.StatusNotFound || env.Error == nil {
		t.Fatalf("unknown route: %d", code)
	}
}

func TestUserFlow(t *testing.T) {
	srv := newServer(t)
	token := "Bearer " + userToken(t, "alice")

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/me", nil)
	if code, _ := do(t, req); code != http.StatusUnauthorized {
		t.Fatalf("anonymous /me: %d", code)
	}

	req = photoRequest(t, srv.URL+"/api/v1/captures", []byte{0xff, 0xd8, 0xff, 0xe0, 0, 0x10, 'J', 'F', 'I', 'F'})
	req.Header.Set("Authorization", token)
	code, env := do(t, req)
	if code != http.StatusCreated {
		t.Fatalf("capture: %d", code)
	}
	var res service.CaptureResult
	json.Unmarshal(env.Data, &res)
	if res.Award.FinalPoints != 13 || len(res.NewBadges) != 1 {
		t.Fatalf("unexpected capture result %+v", res)
	}

	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/api/v1/me", nil)
	req.Header.Set("Authorization", token)
	code, env = do(t, req)
	var p service.Profile
	json.Unmarshal(env.Data, &p)
	if code != http.StatusOK || p.User.TotalPoints != 13 || p.User.DisplayName != "ALICE" {
		t.Fatalf("profile: %d %+v", code, p)
	}

	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/api/v1/me/consumptions?limit=5", nil)
	req.Header.Set("Authorization", token)
	code, env = do(t, req)
	if code != http.StatusOK || env.Meta == nil || env.Meta.Total != 1 {
		t.Fatalf("consumptions: %d %+v", code, env.Meta)
	}

	for _, path := range []string{"/api/v1/me/badges", "/api/v1/me/characters", "/api/v1/leaderboard", "/api/v1/venues", "/api/v1/products"} {
		req, _ = http.NewRequest(http.MethodGet, srv.URL+path, nil)
		req.Header.Set("Authorization", token)
		if code, _ := do(t, req); code != http.StatusOK {
			t.Errorf("%s: %d", path, code)
		}
	}
}

func TestCaptureTooLarge(t *testing.T) {
	srv := newServer(t)
	req := photoRequest(t, srv.URL+"/api/v1/captures", bytes.Repeat([]byte{0xff}, 4096))
	req.Header.Set("Authorization", "Bearer "+userToken(t, "bob"))
	if code, env := do(t, req); code != http.StatusRequestEntityTooLarge || env.Error.Code != "PAYLOAD_TOO_LARGE" {
		t.Fatalf("oversized capture: %d", code)
	}
}

func TestAdminFlow(t *testing.T) {
	srv := newServer(t)

	code, _ := do(t, newJSON(t, http.MethodPost, srv.URL+"/api/v1/admin/login", map[string]string{"key": "wrong"}))
	if code != http.StatusUnauthorized {
		t.Fatalf("bad login: %d", code)
	}
	code, env := do(t, newJSON(t, http.MethodPost, srv.URL+"/api/v1/admin/login", map[string]string{"key": "admin-key"}))
	if code != http.StatusOK {
		t.Fatalf("login: %d", code)
	}
	var login handler.TokenResponse
	json.Unmarshal(env.Data, &login)

	admin := func(req *http.Request) *http.Request {
		req.Header.Set(middleware.AdminTokenHeader, login.Token)
		return req
	}

	// Provision a user through the user API.
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+userToken(t, "carol"))
	do(t, req)

	code, env = do(t, admin(newJSON(t, http.MethodPost, srv.URL+"/api/v1/admin/venues", map[string]interface{}{"name": "Taproom", "active": true})))
	if code != http.StatusCreated {
		t.Fatalf("create venue: %d", code)
	}
	var venue struct{ ID string }
	json.Unmarshal(env.Data, &venue)

	code, _ = do(t, admin(newJSON(t, http.MethodPost, srv.URL+"/api/v1/admin/products", map[string]interface{}{
		"brand_name": "Golden Hop", "display_name": "Golden Hop Gin Soda", "category": "gin_soda", "volume_ml": 500, "is_target_brand": true, "active": true,
	})))
	if code != http.StatusCreated {
		t.Fatalf("create product: %d", code)
	}

	code, env = do(t, admin(newJSON(t, http.MethodPost, srv.URL+"/api/v1/admin/users/carol/points", map[string]interface{}{"points": 1000, "reason": "launch bonus"})))
	if code != http.StatusOK {
		t.Fatalf("adjust: %d", code)
	}
	var adj service.AdjustmentResult
	json.Unmarshal(env.Data, &adj)
	if adj.TotalPoints != 1000 {
		t.Fatalf("unexpected adjustment %+v", adj)
	}

	code, _ = do(t, admin(newJSON(t, http.MethodPost, srv.URL+"/api/v1/admin/users/carol/points", map[string]interface{}{"points": -5000, "reason": "oops"})))
	if code != http.StatusConflict {
		t.Fatalf("overdraft: %d", code)
	}

	code, _ = do(t, admin(newJSON(t, http.MethodPatch, srv.URL+"/api/v1/admin/users/carol", map[string]interface{}{"disabled": true})))
	if code != http.StatusOK {
		t.Fatalf("disable: %d", code)
	}
	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+userToken(t, "carol"))
	if code, _ := do(t, req); code != http.StatusForbidden {
		t.Fatalf("disabled user: %d", code)
	}

	for _, path := range []string{"/api/v1/admin/users", "/api/v1/admin/stats", "/api/v1/admin/analytics?days=3", "/api/v1/admin/venues/" + venue.ID} {
		req, _ := http.NewRequest(http.MethodGet, srv.URL+path, nil)
		if code, _ := do(t, admin(req)); code != http.StatusOK {
			t.Errorf("%s: %d", path, code)
		}
	}

	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/api/v1/admin/analytics?days=abc", nil)
	if code, _ := do(t, admin(req)); code != http.StatusBadRequest {
		t.Fatalf("bad days: %d", code)
	}

	req, _ = http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/admin/venues/"+venue.ID, nil)
	if code, _ := do(t, admin(req)); code != http.StatusNoContent {
		t.Fatalf("delete venue: %d", code)
	}

	code, _ = do(t, admin(newJSON(t, http.MethodPost, srv.URL+"/api/v1/admin/logout", nil)))
	if code != http.StatusOK {
		t.Fatalf("logout: %d", code)
	}
	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/api/v1/admin/users", nil)
	if code, _ := do(t, admin(req)); code != http.StatusUnauthorized {
		t.Fatalf("revoked token: %d", code)
	}
}

func TestLoginThrottleKeysOnClientAddress(t *testing.T) {
	mc := cache.NewMemoryCache()
	t.Cleanup(func() { mc.Close() })
	tokens := service.NewTokenService(mc, "admin-key", time.Hour, nil)

	attempt := func(h http.Handler, forwarded string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/login", strings.NewReader(`{"key":"wrong"}`))
		req.RemoteAddr = "198.51.100.4:40000"
		req.Header.Set("X-Forwarded-For", forwarded)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	direct := New(Config{AuthHandler: handler.NewAuthHandler(tokens), RateLimiter: middleware.NewRateLimiter(0.001, 1)})
	if code := attempt(direct, "10.0.0.1"); code != http.StatusUnauthorized {
		t.Fatalf("first attempt: %d", code)
	}
	if code := attempt(direct, "10.0.0.2"); code != http.StatusTooManyRequests {
		t.Fatalf("rotated X-Forwarded-For got a fresh bucket: %d", code)
	}

	proxied := New(Config{AuthHandler: handler.NewAuthHandler(tokens), RateLimiter: middleware.NewRateLimiter(0.001, 1), TrustProxy: true})
	if code := attempt(proxied, "10.0.0.1"); code != http.StatusUnauthorized {
		t.Fatalf("first proxied attempt: %d", code)
	}
	if code := attempt(proxied, "10.0.0.2"); code != http.StatusUnauthorized {
		t.Fatalf("distinct client behind trusted proxy: %d", code)
	}
	if code := attempt(proxied, "10.0.0.1"); code != http.StatusTooManyRequests {
		t.Fatalf("repeat client behind trusted proxy: %d", code)
	}
}
