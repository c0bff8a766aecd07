package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"drinkpoint-api/internal/cache"
)

func TestTokenLifecycle(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	svc := NewTokenService(mc, "s3cret", time.Hour, nil)
	ctx := context.Background()

	if _, err := svc.Login(ctx, "wrong", "127.0.0.1"); !errors.Is(err, ErrInvalidLogin) {
		t.Fatalf("expected ErrInvalidLogin, got %v", err)
	}

	token, err := svc.Login(ctx, "s3cret", "127.0.0.1")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(token, TokenPrefix) {
		t.Fatalf("unexpected token %q", token)
	}

	session, err := svc.ValidateToken(ctx, token)
	if err != nil || session.RemoteIP != "127.0.0.1" || session.Subject != "admin" {
		t.Fatalf("got %+v %v", session, err)
	}

	for _, bad := range []string{"", TokenPrefix, "abc", TokenPrefix + "deadbeef"} {
		if _, err := svc.ValidateToken(ctx, bad); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("token %q: expected ErrInvalidToken, got %v", bad, err)
		}
	}

	if err := svc.RevokeToken(ctx, token); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ValidateToken(ctx, token); !errors.Is(err, ErrInvalidToken) {
		t.Fatal("revoked token still valid")
	}
}

func TestTokenExpiryAndRefresh(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	svc := NewTokenService(mc, "s3cret", time.Hour, nil)
	ctx := context.Background()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	token, _ := svc.Login(ctx, "s3cret", "")

	now = now.Add(50 * time.Minute)
	session, err := svc.RefreshToken(ctx, token)
	if err != nil {
		t.Fatal(err)
	}
	if !session.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("expiry not extended: %v", session.ExpiresAt)
	}

	now = now.Add(2 * time.Hour)
	if _, err := svc.ValidateToken(ctx, token); !errors.Is(err, ErrInvalidToken) {
		t.Fatal("expired token still valid")
	}
}

func TestLoginDisabledWithoutKey(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	svc := NewTokenService(mc, "", 0, nil)
	if _, err := svc.Login(context.Background(), "", ""); !errors.Is(err, ErrInvalidLogin) {
		t.Fatal("empty admin key must disable login")
	}
	if svc.TTL() != DefaultTokenTTL {
		t.Fatalf("ttl = %v", svc.TTL())
	}
}
