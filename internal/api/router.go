package api

import (
	"net/http"

	"github.com/example/ec-backoffice/internal/api/middleware"
	"github.com/example/ec-backoffice/internal/auth"
	"github.com/example/ec-backoffice/internal/domain/member"
	"go.uber.org/zap"
)

type RouterDeps struct {
	Handlers     *Handlers
	AuthHandlers *AuthHandlers
	JWTService   *auth.JWTService
	Revocations  auth.RevocationStore
	Logger       *zap.Logger

	// CredentialLimiter throttles register, login and refresh when set.
	CredentialLimiter *middleware.RateLimiter
}

func NewRouter(deps RouterDeps) http.Handler {
	mux := http.NewServeMux()
	h, ah := deps.Handlers, deps.AuthHandlers

	authenticate := middleware.AuthMiddleware(deps.JWTService, deps.Revocations, deps.Logger)
	signedIn := func(fn http.HandlerFunc) http.Handler { return authenticate(fn) }
	admin := func(fn http.HandlerFunc) http.Handler {
		return authenticate(middleware.RequireRole(member.RoleAdmin)(fn))
	}

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	throttled := func(fn http.HandlerFunc) http.Handler {
		if deps.CredentialLimiter == nil {
			return fn
		}
		return deps.CredentialLimiter.Limit(fn)
	}

	// Auth
	mux.Handle("POST /auth/register", throttled(ah.Register))
	mux.Handle("POST /auth/login", throttled(ah.Login))
	mux.Handle("POST /auth/refresh", throttled(ah.Refresh))
	mux.Handle("POST /auth/logout", signedIn(ah.Logout))
	mux.Handle("GET /members/me", signedIn(ah.Me))
	mux.Handle("POST /members/me/withdraw", signedIn(ah.Withdraw))

	// Orders
	mux.Handle("POST /orders", signedIn(h.PlaceOrder))
	mux.Handle("GET /orders/{id}", signedIn(h.GetOrder))
	mux.Handle("GET /orders/lookup", signedIn(h.GetOrderByNumber))
	mux.Handle("POST /orders/{id}/confirm", admin(h.ConfirmOrder()))
	mux.Handle("POST /orders/{id}/ship", admin(h.ShipOrder()))
	mux.Handle("POST /orders/{id}/deliver", admin(h.DeliverOrder()))
	mux.Handle("POST /orders/{id}/complete", admin(h.CompleteOrder()))
	mux.Handle("POST /orders/{id}/cancel", admin(h.CancelOrder()))

	// Claims
	mux.Handle("POST /orders/{id}/claims", signedIn(h.RequestClaim))
	mux.Handle("GET /orders/{id}/claims", signedIn(h.ListClaimsByOrder))
	mux.Handle("GET /orders/{id}/claimable", signedIn(h.GetClaimable))
	mux.Handle("GET /claims/{id}", signedIn(h.GetClaim))
	mux.Handle("GET /claims/{id}/settlement", signedIn(h.GetSettlement))
	mux.Handle("POST /claims/{id}/approve", admin(h.ApproveClaim))
	mux.Handle("POST /claims/{id}/reject", admin(h.RejectClaim))
	mux.Handle("POST /claims/{id}/complete", admin(h.CompleteClaim))
	mux.Handle("POST /claims/{id}/return/pickup", admin(h.ScheduleReturnPickup))
	mux.Handle("POST /claims/{id}/return/shipping", admin(h.RegisterReturnShipping()))
	mux.Handle("POST /claims/{id}/return/receive", admin(h.ConfirmReturnReceived))
	mux.Handle("POST /claims/{id}/exchange/shipping", admin(h.RegisterExchangeShipping()))
	mux.Handle("POST /claims/{id}/exchange/deliver", admin(h.ConfirmExchangeDelivered))

	return middleware.AccessLog(deps.Logger.Named("http"))(mux)
}
