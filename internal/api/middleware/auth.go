package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/example/ec-backoffice/internal/auth"
	"go.uber.org/zap"
)

// respondError writes a JSON error response
func respondError(w http.ResponseWriter, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message, "code": code})
}

// ExtractToken extracts JWT token from cookie or Authorization header
func ExtractToken(r *http.Request) string {
	// Try cookie first (for browser)
	if cookie, err := r.Cookie("access_token"); err == nil {
		return cookie.Value
	}
	// Fall back to Authorization header (for API clients)
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

type contextKey string

const (
	MemberContextKey contextKey = "member"
)

// AuthMiddleware validates JWT tokens, rejects revoked sessions and adds the
// member's claims to the context.
func AuthMiddleware(jwtService *auth.JWTService, revocations auth.RevocationStore, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := ExtractToken(r)
			if tokenString == "" {
				respondError(w, "unauthorized", "UNAUTHORIZED", http.StatusUnauthorized)
				return
			}

			claims, err := jwtService.ValidateAccessToken(tokenString)
			if err != nil {
				respondError(w, "invalid token", "INVALID_TOKEN", http.StatusUnauthorized)
				return
			}

			revoked, err := revocations.IsRevoked(r.Context(), claims)
			if err != nil {
				logger.Error("session revocation check failed", zap.String("member_id", claims.MemberID), zap.Error(err))
				respondError(w, "session check unavailable", "SESSION_CHECK_FAILED", http.StatusServiceUnavailable)
				return
			}
			if revoked {
				respondError(w, auth.ErrRevokedToken.Message, auth.ErrRevokedToken.Code, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), MemberContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole checks if the member has one of the required roles
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetMemberFromContext(r.Context())
			if !ok {
				respondError(w, "unauthorized", "UNAUTHORIZED", http.StatusUnauthorized)
				return
			}

			for _, role := range roles {
				if claims.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			respondError(w, "forbidden", "FORBIDDEN", http.StatusForbidden)
		})
	}
}

// GetMemberFromContext retrieves member claims from the request context
func GetMemberFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(MemberContextKey).(*auth.Claims)
	return claims, ok
}

// GetMemberID is a helper to get just the member ID from context
func GetMemberID(ctx context.Context) string {
	claims, ok := GetMemberFromContext(ctx)
	if !ok {
		return ""
	}
	return claims.MemberID
}
