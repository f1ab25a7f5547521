// Package identity resolves who is calling: an authenticated customer from a
// bearer token, or a guest identified by the cart session header.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"storefront/internal/domain"
)

type contextKey string

const (
	BearerPrefix      = "bearer"
	CartSessionHeader = "X-Cart-Session"
	RoleAdmin         = "admin"

	principalContextKey contextKey = "principal"
	defaultClockSkew               = time.Minute
)

type Principal struct {
	UserID    string
	Role      string
	SessionID string
}

func (p Principal) Authenticated() bool {
	return p.UserID != ""
}

func (p Principal) IsAdmin() bool {
	return p.Authenticated() && p.Role == RoleAdmin
}

// OwnerID is the value stored as the order owner.
func (p Principal) OwnerID() string {
	if p.Authenticated() {
		return p.UserID
	}
	return domain.GuestOwner
}

// CartKey addresses the caller's cart document. It is empty for a guest
// without a cart session.
func (p Principal) CartKey() string {
	if p.Authenticated() {
		return "user:" + p.UserID
	}
	if p.SessionID != "" {
		return "guest:" + p.SessionID
	}
	return ""
}

type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type Middleware struct {
	secret    []byte
	issuer    string
	clockSkew time.Duration
	logger    *zap.Logger
}

func NewMiddleware(secret, issuer string, logger *zap.Logger) *Middleware {
	return &Middleware{
		secret:    []byte(secret),
		issuer:    issuer,
		clockSkew: defaultClockSkew,
		logger:    logger,
	}
}

// Handler attaches a Principal to every request. Requests without an
// Authorization header are guests; a header that does not validate is
// rejected with 401.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal := Principal{SessionID: strings.TrimSpace(r.Header.Get(CartSessionHeader))}

		if r.Header.Get("Authorization") != "" {
			claims, err := m.parse(r)
			if err != nil {
				m.logger.Debug("rejected bearer token", zap.Error(err))
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token")
				return
			}
			principal.UserID = claims.Subject
			principal.Role = claims.Role
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

// RequireAdmin guards operator routes.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := FromContext(r.Context())
		if !p.Authenticated() {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
			return
		}
		if !p.IsAdmin() {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) parse(r *http.Request) (*Claims, error) {
	if len(m.secret) == 0 {
		return nil, errors.New("token verification is not configured")
	}

	tokenString, err := extractBearerToken(r)
	if err != nil {
		return nil, err
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(m.clockSkew),
		jwt.WithExpirationRequired(),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return m.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("missing subject claim")
	}

	return claims, nil
}

func extractBearerToken(r *http.Request) (string, error) {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], BearerPrefix) || parts[1] == "" {
		return "", errors.New("invalid authorization format")
	}
	return parts[1], nil
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// FromContext returns the request principal; an anonymous guest when the
// middleware did not run.
func FromContext(ctx context.Context) Principal {
	p, _ := ctx.Value(principalContextKey).(Principal)
	return p
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   code,
		"message": message,
	})
}
