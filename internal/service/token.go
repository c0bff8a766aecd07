package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"drinkpoint-api/internal/cache"
	"drinkpoint-api/internal/model"
)

const (
	// TokenPrefix is the prefix for all admin session tokens
	TokenPrefix = "dpa_"

	// DefaultTokenTTL is the default session lifetime
	DefaultTokenTTL = 8 * time.Hour

	tokenKeyPrefix = "admin_session:"
)

var (
	// ErrInvalidLogin is returned when the admin login key does not match.
	ErrInvalidLogin = errors.New("invalid admin key")

	// ErrInvalidToken is returned for unknown, malformed or expired session tokens.
	ErrInvalidToken = errors.New("invalid or expired token")
)

// TokenService issues and validates opaque admin session tokens stored in the cache.
type TokenService struct {
	cache    cache.Cache
	loginKey string
	ttl      time.Duration
	log      *zap.Logger
	now      func() time.Time
}

// NewTokenService creates a token service. An empty loginKey disables admin login.
func NewTokenService(c cache.Cache, loginKey string, ttl time.Duration, log *zap.Logger) *TokenService {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &TokenService{
		cache:    c,
		loginKey: loginKey,
		ttl:      ttl,
		log:      log.Named("token"),
		now:      time.Now,
	}
}

// TTL returns the session lifetime.
func (s *TokenService) TTL() time.Duration { return s.ttl }

// Login exchanges the admin key for a session token.
func (s *TokenService) Login(ctx context.Context, key, remoteIP string) (string, error) {
	if s.loginKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(s.loginKey)) != 1 {
		s.log.Warn("admin login rejected", zap.String("remote_ip", remoteIP))
		return "", ErrInvalidLogin
	}
	return s.GenerateToken(ctx, model.AdminSession{Subject: "admin", RemoteIP: remoteIP})
}

// GenerateToken creates a new session token and stores it in the cache.
func (s *TokenService) GenerateToken(ctx context.Context, session model.AdminSession) (string, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	token := TokenPrefix + hex.EncodeToString(tokenBytes)

	session.CreatedAt = s.now().UTC()
	session.ExpiresAt = session.CreatedAt.Add(s.ttl)

	data, err := json.Marshal(session)
	if err != nil {
		return "", fmt.Errorf("failed to serialize session: %w", err)
	}
	if err := s.cache.Set(ctx, tokenKeyPrefix+token, data, s.ttl); err != nil {
		return "", fmt.Errorf("failed to store token: %w", err)
	}

	s.log.Info("admin session created",
		zap.String("subject", session.Subject),
		zap.String("remote_ip", session.RemoteIP),
		zap.Time("expires_at", session.ExpiresAt),
	)
	return token, nil
}

// ValidateToken checks if a token is valid and returns its session.
func (s *TokenService) ValidateToken(ctx context.Context, token string) (*model.AdminSession, error) {
	if !strings.HasPrefix(token, TokenPrefix) || len(token) == len(TokenPrefix) {
		return nil, ErrInvalidToken
	}

	data, err := s.cache.Get(ctx, tokenKeyPrefix+token)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	var session model.AdminSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to parse session: %w", err)
	}
	if s.now().After(session.ExpiresAt) {
		s.cache.Delete(ctx, tokenKeyPrefix+token)
		return nil, ErrInvalidToken
	}
	return &session, nil
}

// RevokeToken deletes a session.
func (s *TokenService) RevokeToken(ctx context.Context, token string) error {
	return s.cache.Delete(ctx, tokenKeyPrefix+token)
}

// RefreshToken extends the lifetime of an existing session.
func (s *TokenService) RefreshToken(ctx context.Context, token string) (*model.AdminSession, error) {
	session, err := s.ValidateToken(ctx, token)
	if err != nil {
		return nil, err
	}
	session.ExpiresAt = s.now().UTC().Add(s.ttl)

	data, err := json.Marshal(session)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, tokenKeyPrefix+token, data, s.ttl); err != nil {
		return nil, fmt.Errorf("failed to store token: %w", err)
	}
	return session, nil
}
