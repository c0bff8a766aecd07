package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"drinkpoint-api/internal/model"
	"drinkpoint-api/internal/service"
	"drinkpoint-api/pkg/apierror"
)

const (
	// UserKey is the context key for the authenticated user.
	UserKey contextKey = "user"
	// AdminSessionKey is the context key for the admin session.
	AdminSessionKey contextKey = "admin_session"
)

// AdminTokenHeader carries the admin session token.
const AdminTokenHeader = "X-Admin-Token"

// Provisioner resolves an identity to its account, creating it on first sight.
type Provisioner interface {
	EnsureUser(ctx context.Context, id model.Identity) (*model.User, error)
}

// UserAuthConfig holds configuration for the user auth middleware.
type UserAuthConfig struct {
	Secret   []byte
	Issuer   string
	Audience string
	Users    Provisioner
	Log      *zap.Logger
}

// identityClaims is the token payload issued by the identity provider.
type identityClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// NewUserAuth verifies the Bearer identity token and loads the caller's account.
// Disabled accounts are rejected with 403.
func NewUserAuth(cfg UserAuthConfig) func(http.Handler) http.Handler {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("auth")

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	parser := jwt.NewParser(opts...)
	keyFunc := func(*jwt.Token) (any, error) { return cfg.Secret, nil }

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				writeError(w, apierror.Unauthorized("Authentication required. Use an Authorization: Bearer token."))
				return
			}

			var claims identityClaims
			if _, err := parser.ParseWithClaims(raw, &claims, keyFunc); err != nil {
				log.Debug("identity token rejected", zap.Error(err))
				writeError(w, apierror.Unauthorized("Invalid or expired token"))
				return
			}
			if claims.Subject == "" {
				writeError(w, apierror.Unauthorized("Token has no subject"))
				return
			}

			user, err := cfg.Users.EnsureUser(r.Context(), model.Identity{
				UserID:      claims.Subject,
				Email:       claims.Email,
				DisplayName: claims.Name,
				Role:        claims.Role,
			})
			if err != nil {
				log.Error("user provisioning failed", zap.String("user_id", claims.Subject), zap.Error(err))
				writeError(w, apierror.InternalError("internal server error"))
				return
			}
			if user.Disabled {
				writeError(w, apierror.Forbidden("account is disabled"))
				return
			}

			ctx := context.WithValue(r.Context(), UserKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewAdminAuth requires a valid admin session token in X-Admin-Token.
func NewAdminAuth(tokens *service.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get(AdminTokenHeader)
			if token == "" {
				writeError(w, apierror.Unauthorized("Admin token required"))
				return
			}

			session, err := tokens.ValidateToken(r.Context(), token)
			if errors.Is(err, service.ErrInvalidToken) {
				writeError(w, apierror.Unauthorized("Invalid or expired token"))
				return
			}
			if err != nil {
				writeError(w, apierror.ServiceUnavailable("session store unavailable"))
				return
			}

			ctx := context.WithValue(r.Context(), AdminSessionKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	if len(auth) < 7 || !strings.EqualFold(auth[:7], "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(auth[7:])
	return token, token != ""
}

// writeError writes an API error response.
func writeError(w http.ResponseWriter, err *apierror.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	w.Write(err.ToJSON())
}

// GetUser retrieves the authenticated user from request context.
func GetUser(ctx context.Context) *model.User {
	if u, ok := ctx.Value(UserKey).(*model.User); ok {
		return u
	}
	return nil
}

// GetAdminSession retrieves the admin session from request context.
func GetAdminSession(ctx context.Context) *model.AdminSession {
	if s, ok := ctx.Value(AdminSessionKey).(*model.AdminSession); ok {
		return s
	}
	return nil
}

// WithUser returns a context carrying u. Used by tests and internal callers.
func WithUser(ctx context.Context, u *model.User) context.Context {
	return context.WithValue(ctx, UserKey, u)
}
