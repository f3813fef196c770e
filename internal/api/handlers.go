package api

import (
	"context"
	"net/http"

	"github.com/example/ec-backoffice/internal/api/middleware"
	"github.com/example/ec-backoffice/internal/command"
	"github.com/example/ec-backoffice/internal/domain/claim"
	"github.com/example/ec-backoffice/internal/domain/member"
	"github.com/example/ec-backoffice/internal/domain/order"
	"github.com/example/ec-backoffice/internal/query"
	"go.uber.org/zap"
)

type Handlers struct {
	cmdHandler   *command.Handler
	queryHandler *query.Handler
	logger       *zap.Logger
}

func NewHandlers(cmdHandler *command.Handler, queryHandler *query.Handler, logger *zap.Logger) *Handlers {
	return &Handlers{
		cmdHandler:   cmdHandler,
		queryHandler: queryHandler,
		logger:       logger,
	}
}

func viewer(r *http.Request) query.Viewer {
	claims, ok := middleware.GetMemberFromContext(r.Context())
	if !ok {
		return query.Viewer{}
	}
	return query.Viewer{MemberID: claims.MemberID, Admin: claims.Role == member.RoleAdmin}
}

// Order Handlers

func (h *Handlers) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var cmd command.PlaceOrder
	if err := decodeJSON(r, &cmd); err != nil {
		respondError(w, h.logger, err)
		return
	}
	if v := viewer(r); !v.Admin || cmd.MemberID == "" {
		cmd.MemberID = v.MemberID
	}

	o, err := h.cmdHandler.PlaceOrder(r.Context(), cmd)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, o)
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.queryHandler.GetOrder(r.Context(), viewer(r), r.PathValue("id"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (h *Handlers) GetOrderByNumber(w http.ResponseWriter, r *http.Request) {
	o, err := h.queryHandler.GetOrderByNumber(r.Context(), viewer(r), r.URL.Query().Get("number"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

type orderTransition func(ctx context.Context, orderID string) (*order.Order, error)

func (h *Handlers) transitionOrder(apply orderTransition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		o, err := apply(r.Context(), r.PathValue("id"))
		if err != nil {
			respondError(w, h.logger, err)
			return
		}
		respondJSON(w, http.StatusOK, o)
	}
}

func (h *Handlers) ConfirmOrder() http.HandlerFunc {
	return h.transitionOrder(h.cmdHandler.ConfirmOrder)
}

func (h *Handlers) ShipOrder() http.HandlerFunc {
	return h.transitionOrder(h.cmdHandler.ShipOrder)
}

func (h *Handlers) DeliverOrder() http.HandlerFunc {
	return h.transitionOrder(h.cmdHandler.DeliverOrder)
}

func (h *Handlers) CompleteOrder() http.HandlerFunc {
	return h.transitionOrder(h.cmdHandler.CompleteOrder)
}

func (h *Handlers) CancelOrder() http.HandlerFunc {
	return h.transitionOrder(h.cmdHandler.CancelOrder)
}

// Claim Handlers

func (h *Handlers) RequestClaim(w http.ResponseWriter, r *http.Request) {
	var cmd command.RequestClaim
	if err := decodeJSON(r, &cmd); err != nil {
		respondError(w, h.logger, err)
		return
	}
	v := viewer(r)
	cmd.OrderID = r.PathValue("id")
	cmd.RequestedBy = v.MemberID
	cmd.OnBehalf = v.Admin

	c, err := h.cmdHandler.RequestClaim(r.Context(), cmd)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

func (h *Handlers) ListClaimsByOrder(w http.ResponseWriter, r *http.Request) {
	claims, err := h.queryHandler.ListClaimsByOrder(r.Context(), viewer(r), r.PathValue("id"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, claims)
}

func (h *Handlers) GetClaimable(w http.ResponseWriter, r *http.Request) {
	summary, err := h.queryHandler.ClaimableSummary(r.Context(), viewer(r), r.PathValue("id"), r.URL.Query().Get("item_id"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (h *Handlers) GetClaim(w http.ResponseWriter, r *http.Request) {
	detail, err := h.queryHandler.GetClaim(r.Context(), viewer(r), r.PathValue("id"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, detail)
}

func (h *Handlers) GetSettlement(w http.ResponseWriter, r *http.Request) {
	st, err := h.queryHandler.GetSettlement(r.Context(), viewer(r), r.PathValue("id"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, st)
}

func (h *Handlers) ApproveClaim(w http.ResponseWriter, r *http.Request) {
	c, err := h.cmdHandler.ApproveClaim(r.Context(), command.ApproveClaim{
		ClaimID: r.PathValue("id"),
		AdminID: middleware.GetMemberID(r.Context()),
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *Handlers) RejectClaim(w http.ResponseWriter, r *http.Request) {
	var cmd command.RejectClaim
	if err := decodeJSON(r, &cmd); err != nil {
		respondError(w, h.logger, err)
		return
	}
	cmd.ClaimID = r.PathValue("id")
	cmd.AdminID = middleware.GetMemberID(r.Context())

	c, err := h.cmdHandler.RejectClaim(r.Context(), cmd)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *Handlers) CompleteClaim(w http.ResponseWriter, r *http.Request) {
	c, err := h.cmdHandler.CompleteClaim(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// Return and Exchange Shipping Handlers

func (h *Handlers) ScheduleReturnPickup(w http.ResponseWriter, r *http.Request) {
	var cmd command.ScheduleReturnPickup
	if err := decodeJSON(r, &cmd); err != nil {
		respondError(w, h.logger, err)
		return
	}
	cmd.ClaimID = r.PathValue("id")

	c, err := h.cmdHandler.ScheduleReturnPickup(r.Context(), cmd)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

type registerShipping func(context.Context, command.RegisterShipping) (*claim.Claim, error)

func (h *Handlers) shippingHandler(register registerShipping) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var cmd command.RegisterShipping
		if err := decodeJSON(r, &cmd); err != nil {
			respondError(w, h.logger, err)
			return
		}
		cmd.ClaimID = r.PathValue("id")

		c, err := register(r.Context(), cmd)
		if err != nil {
			respondError(w, h.logger, err)
			return
		}
		respondJSON(w, http.StatusOK, c)
	}
}

func (h *Handlers) RegisterReturnShipping() http.HandlerFunc {
	return h.shippingHandler(h.cmdHandler.RegisterReturnShipping)
}

func (h *Handlers) RegisterExchangeShipping() http.HandlerFunc {
	return h.shippingHandler(h.cmdHandler.RegisterExchangeShipping)
}

func (h *Handlers) ConfirmReturnReceived(w http.ResponseWriter, r *http.Request) {
	var cmd command.ConfirmReturnReceived
	if err := decodeJSON(r, &cmd); err != nil {
		respondError(w, h.logger, err)
		return
	}
	cmd.ClaimID = r.PathValue("id")
	cmd.AdminID = middleware.GetMemberID(r.Context())

	c, err := h.cmdHandler.ConfirmReturnReceived(r.Context(), cmd)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *Handlers) ConfirmExchangeDelivered(w http.ResponseWriter, r *http.Request) {
	c, err := h.cmdHandler.ConfirmExchangeDelivered(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}
