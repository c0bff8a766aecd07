package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"drinkpoint-api/internal/cache"
	"drinkpoint-api/internal/metrics"
	"drinkpoint-api/internal/model"
	"drinkpoint-api/internal/service"
)

var secret = []byte("test-secret")

type fakeUsers struct {
	disabled map[string]bool
	err      error
	seen     []model.Identity
}

func (f *fakeUsers) EnsureUser(_ context.Context, id model.Identity) (*model.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.seen = append(f.seen, id)
	return &model.User{ID: id.UserID, Email: id.Email, Disabled: f.disabled[id.UserID]}, nil
}

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func okHandler(w http.ResponseWriter, r *http.Request) {
	if u := GetUser(r.Context()); u != nil {
		w.Write([]byte(u.ID))
	}
}

func TestUserAuth(t *testing.T) {
	users := &fakeUsers{disabled: map[string]bool{"banned": true}}
	h := NewUserAuth(UserAuthConfig{Secret: secret, Issuer: "idp", Users: users})(http.HandlerFunc(okHandler))
	exp := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage", "Bearer abc.def.ghi", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + sign(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{"sub": "u1", "iss": "idp", "exp": exp}), http.StatusUnauthorized},
		{"wrong issuer", "Bearer " + sign(t, jwt.SigningMethodHS256, secret, jwt.MapClaims{"sub": "u1", "iss": "evil", "exp": exp}), http.StatusUnauthorized},
		{"expired", "Bearer " + sign(t, jwt.SigningMethodHS256, secret, jwt.MapClaims{"sub": "u1", "iss": "idp", "exp": time.Now().Add(-time.Hour).Unix()}), http.StatusUnauthorized},
		{"no expiry", "Bearer " + sign(t, jwt.SigningMethodHS256, secret, jwt.MapClaims{"sub": "u1", "iss": "idp"}), http.StatusUnauthorized},
		{"wrong alg", "Bearer " + sign(t, jwt.SigningMethodHS512, secret, jwt.MapClaims{"sub": "u1", "iss": "idp", "exp": exp}), http.StatusUnauthorized},
		{"no subject", "Bearer " + sign(t, jwt.SigningMethodHS256, secret, jwt.MapClaims{"iss": "idp", "exp": exp}), http.StatusUnauthorized},
		{"disabled", "Bearer " + sign(t, jwt.SigningMethodHS256, secret, jwt.MapClaims{"sub": "banned", "iss": "idp", "exp": exp}), http.StatusForbidden},
		{"valid", "bearer " + sign(t, jwt.SigningMethodHS256, secret, jwt.MapClaims{"sub": "u1", "iss": "idp", "exp": exp, "email": "u1@example.com"}), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body.String())
			}
		})
	}

	last := users.seen[len(users.seen)-1]
	if last.UserID != "u1" || last.Email != "u1@example.com" {
		t.Fatalf("identity not passed through: %+v", last)
	}
}

func TestUserAuthProvisioningFailure(t *testing.T) {
	h := NewUserAuth(UserAuthConfig{Secret: secret, Users: &fakeUsers{err: errors.New("db down")}})(http.HandlerFunc(okHandler))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+sign(t, jwt.SigningMethodHS256, secret, jwt.MapClaims{"sub": "u1", "exp": time.Now().Add(time.Hour).Unix()}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError || strings.Contains(rec.Body.String(), "db down") {
		t.Fatalf("got %d %s", rec.Code, rec.Body.String())
	}
}

func TestAdminAuth(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	tokens := service.NewTokenService(mc, "key", time.Hour, nil)
	token, err := tokens.Login(context.Background(), "key", "")
	if err != nil {
		t.Fatal(err)
	}

	h := NewAdminAuth(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetAdminSession(r.Context()) == nil {
			t.Error("session missing from context")
		}
	}))

	for _, tc := range []struct {
		token  string
		status int
	}{
		{"", http.StatusUnauthorized},
		{"dpa_nope", http.StatusUnauthorized},
		{token, http.StatusOK},
	} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/users", nil)
		if tc.token != "" {
			req.Header.Set(AdminTokenHeader, tc.token)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tc.status {
			t.Errorf("token %q: status = %d, want %d", tc.token, rec.Code, tc.status)
		}
	}
}

func TestRateLimit(t *testing.T) {
	m := metrics.New()
	l := NewRateLimiter(1, 2)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	h := NewRateLimit(l, m)(http.HandlerFunc(okHandler))

	do := func(userID, ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/captures", nil)
		req.RemoteAddr = ip + ":1234"
		if userID != "" {
			req = req.WithContext(WithUser(req.Context(), &model.User{ID: userID}))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if do("u1", "10.0.0.1") != 200 || do("u1", "10.0.0.2") != 200 {
		t.Fatal("burst should be allowed")
	}
	if got := do("u1", "10.0.0.3"); got != http.StatusTooManyRequests {
		t.Fatalf("third request status = %d", got)
	}
	if do("u2", "10.0.0.1") != 200 {
		t.Fatal("limits must be per user")
	}
	if do("", "10.0.0.9") != 200 {
		t.Fatal("anonymous clients get their own bucket")
	}

	now = now.Add(time.Second)
	if do("u1", "10.0.0.1") != 200 {
		t.Fatal("bucket should refill")
	}
}

func TestNilRateLimiterAllows(t *testing.T) {
	if NewRateLimiter(0, 5) != nil {
		t.Fatal("zero rps should disable limiting")
	}
	var l *RateLimiter
	if !l.Allow("x") {
		t.Fatal("nil limiter must allow")
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	if got := ClientIP(req); got != "192.0.2.1" {
		t.Fatalf("got %q", got)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	if got := ClientIP(req); got != "192.0.2.1" {
		t.Fatalf("forwarded header must be ignored, got %q", got)
	}
}

func TestRateLimitIgnoresForwardedFor(t *testing.T) {
	l := NewRateLimiter(1, 1)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	h := NewRateLimit(l, nil)(http.HandlerFunc(okHandler))

	allowed := 0
	for i := 0; i < 20; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/login", nil)
		req.RemoteAddr = "198.51.100.4:40000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code == http.StatusOK {
			allowed++
		}
	}
	if allowed != 1 {
		t.Fatalf("allowed %d of 20 requests from one address", allowed)
	}
}

func TestRecovery(t *testing.T) {
	h := NewRecovery(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError || strings.Contains(rec.Body.String(), "boom") {
		t.Fatalf("got %d %s", rec.Code, rec.Body.String())
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" || rec.Header().Get("X-Request-ID") != seen {
		t.Fatalf("generated id not propagated: %q", seen)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "edge-7f3a:42")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "edge-7f3a:42" {
		t.Fatalf("incoming id not kept: %q", seen)
	}

	for _, bad := range []string{strings.Repeat("a", 129), "id with spaces", "x\" injected=\"1", "caf\u00e9"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", bad)
		h.ServeHTTP(httptest.NewRecorder(), req)
		if seen == bad || seen == "" {
			t.Errorf("malformed id %q was kept", bad)
		}
	}
}

func TestRequestLoggerAddsID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	var h http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h = RequestID(NewLogging(zap.New(core))(h))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one access log line, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["request_id"] != "req-1" || fields["status"] != int64(http.StatusTeapot) {
		t.Fatalf("unexpected fields %v", fields)
	}
	if entries[0].Level != zap.WarnLevel {
		t.Fatalf("4xx logged at %s", entries[0].Level)
	}
}

func TestMetricsUsesRoutePattern(t *testing.T) {
	m := metrics.New()
	r := chi.NewRouter()
	r.Use(NewMetrics(m))
	r.Get("/api/v1/admin/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/admin/users/42", nil))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	if !strings.Contains(body, `route="/api/v1/admin/users/{id}"`) || strings.Contains(body, "/users/42") {
		t.Fatalf("route label missing or raw path leaked:\n%s", body)
	}
	if !strings.Contains(body, `status="418"`) {
		t.Fatal("status label missing")
	}
}
