package api

import (
	"net/http"
	"time"

	"github.com/example/ec-backoffice/internal/api/middleware"
	"github.com/example/ec-backoffice/internal/auth"
	"github.com/example/ec-backoffice/internal/command"
	"github.com/example/ec-backoffice/internal/domain/member"
	"github.com/example/ec-backoffice/internal/query"
	"go.uber.org/zap"
)

const refreshCookiePath = "/auth/refresh"

// AuthHandlers handles authentication-related HTTP requests
type AuthHandlers struct {
	cmdHandler   *command.Handler
	queryHandler *query.Handler
	jwtService   *auth.JWTService
	revocations  auth.RevocationStore
	logger       *zap.Logger
}

// NewAuthHandlers creates a new AuthHandlers instance
func NewAuthHandlers(
	cmdHandler *command.Handler,
	queryHandler *query.Handler,
	jwtService *auth.JWTService,
	revocations auth.RevocationStore,
	logger *zap.Logger,
) *AuthHandlers {
	return &AuthHandlers{
		cmdHandler:   cmdHandler,
		queryHandler: queryHandler,
		jwtService:   jwtService,
		revocations:  revocations,
		logger:       logger,
	}
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse represents the authentication response
type AuthResponse struct {
	Member      MemberResponse `json:"member"`
	AccessToken string         `json:"access_token,omitempty"`
	ExpiresAt   time.Time      `json:"expires_at,omitempty"`
	Message     string         `json:"message,omitempty"`
}

// MemberResponse represents member data in responses
type MemberResponse struct {
	ID        string        `json:"id"`
	Email     string        `json:"email"`
	Name      string        `json:"name"`
	Role      string        `json:"role"`
	Status    member.Status `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}

func toMemberResponse(m *member.Member) MemberResponse {
	return MemberResponse{
		ID:        m.ID,
		Email:     m.Email,
		Name:      m.Name,
		Role:      m.Role,
		Status:    m.Status,
		CreatedAt: m.CreatedAt,
	}
}

// Register creates a customer account and signs it in
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var cmd command.RegisterMember
	if err := decodeJSON(r, &cmd); err != nil {
		respondError(w, h.logger, err)
		return
	}
	cmd.Role = member.RoleCustomer

	m, err := h.cmdHandler.RegisterMember(r.Context(), cmd)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	h.signIn(w, r, m, http.StatusCreated, "Registration successful")
}

// Login handles member login
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.logger, err)
		return
	}

	m, err := h.queryHandler.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	h.signIn(w, r, m, http.StatusOK, "Login successful")
}

// Refresh exchanges a valid refresh token for a new token pair and revokes
// the old refresh token.
func (h *AuthHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	refreshCookie, err := r.Cookie("refresh_token")
	if err != nil {
		respondJSONError(w, "no refresh token", "UNAUTHORIZED", http.StatusUnauthorized)
		return
	}

	claims, err := h.jwtService.ValidateRefreshToken(refreshCookie.Value)
	if err != nil {
		h.clearAuthCookies(w)
		respondError(w, h.logger, err)
		return
	}
	revoked, err := h.revocations.IsRevoked(r.Context(), claims)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	if revoked {
		h.clearAuthCookies(w)
		respondError(w, h.logger, auth.ErrRevokedToken)
		return
	}

	m, err := h.queryHandler.GetMember(r.Context(), claims.MemberID)
	if err != nil || !m.IsActive() {
		h.clearAuthCookies(w)
		respondError(w, h.logger, auth.ErrRevokedToken)
		return
	}

	if err := h.revocations.RevokeToken(r.Context(), claims.ID, claims.ExpiresAt.Time); err != nil {
		respondError(w, h.logger, err)
		return
	}
	h.signIn(w, r, m, http.StatusOK, "Token refreshed")
}

// Logout revokes the current access token
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetMemberFromContext(r.Context())
	if ok {
		if err := h.revocations.RevokeToken(r.Context(), claims.ID, claims.ExpiresAt.Time); err != nil {
			h.logger.Warn("revoke access token failed", zap.String("member_id", claims.MemberID), zap.Error(err))
		}
	}
	if c, err := r.Cookie("refresh_token"); err == nil {
		if refresh, err := h.jwtService.ValidateRefreshToken(c.Value); err == nil {
			_ = h.revocations.RevokeToken(r.Context(), refresh.ID, refresh.ExpiresAt.Time)
		}
	}

	h.clearAuthCookies(w)
	respondJSON(w, http.StatusOK, map[string]string{
		"message": "Logout successful",
	})
}

// Me returns the current authenticated member's information
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	m, err := h.queryHandler.GetMember(r.Context(), middleware.GetMemberID(r.Context()))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, toMemberResponse(m))
}

// Withdraw closes the caller's account after re-checking the password
func (h *AuthHandlers) Withdraw(w http.ResponseWriter, r *http.Request) {
	var cmd command.WithdrawMember
	if err := decodeJSON(r, &cmd); err != nil {
		respondError(w, h.logger, err)
		return
	}
	cmd.MemberID = middleware.GetMemberID(r.Context())

	if err := h.cmdHandler.WithdrawMember(r.Context(), cmd); err != nil {
		respondError(w, h.logger, err)
		return
	}
	h.clearAuthCookies(w)
	respondJSON(w, http.StatusOK, map[string]string{
		"message": "Membership withdrawn",
	})
}

// Helper methods

func (h *AuthHandlers) signIn(w http.ResponseWriter, r *http.Request, m *member.Member, status int, message string) {
	accessToken, accessExpiry, err := h.jwtService.GenerateAccessToken(m.ID, m.Email, m.Role)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	refreshToken, refreshExpiry, err := h.jwtService.GenerateRefreshToken(m.ID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "access_token",
		Value:    accessToken,
		Path:     "/",
		Expires:  accessExpiry,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     "refresh_token",
		Value:    refreshToken,
		Path:     refreshCookiePath,
		Expires:  refreshExpiry,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})

	respondJSON(w, status, AuthResponse{
		Member:      toMemberResponse(m),
		AccessToken: accessToken,
		ExpiresAt:   accessExpiry,
		Message:     message,
	})
}

func (h *AuthHandlers) clearAuthCookies(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     "access_token",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     "refresh_token",
		Value:    "",
		Path:     refreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
	})
}
