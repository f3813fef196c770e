// Package notification emails members when their claims change status.
package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/example/ec-backoffice/internal/apperr"
	"github.com/example/ec-backoffice/internal/domain/claim"
	"github.com/example/ec-backoffice/internal/email"
	"github.com/example/ec-backoffice/internal/event"
	"github.com/example/ec-backoffice/internal/query"
	"go.uber.org/zap"
)

var backoffice = query.Viewer{Admin: true}

// Handler processes claim events for sending notifications
type Handler struct {
	sender  email.Sender
	queries *query.Handler
	logger  *zap.Logger
}

func NewHandler(sender email.Sender, queries *query.Handler, logger *zap.Logger) *Handler {
	return &Handler{sender: sender, queries: queries, logger: logger.Named("notifier")}
}

// HandleEvent has the kafka.MessageHandler signature. Events that are not
// claim status changes are skipped; lookups that find nothing are dropped.
// Mail failures are returned so the message is retried.
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var e event.Envelope
	if err := json.Unmarshal(value, &e); err != nil {
		h.logger.Warn("dropping undecodable message", zap.ByteString("key", key), zap.Error(err))
		return nil
	}
	if e.AggregateType != claim.AggregateType {
		return nil
	}

	status, rejectReason, ok := h.statusOf(e)
	if !ok {
		return nil
	}

	notice, to, err := h.buildNotice(ctx, e.AggregateID, status, rejectReason)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			h.logger.Warn("dropping notification", zap.String("event_id", e.ID), zap.Error(err))
			return nil
		}
		return err
	}
	if to == "" {
		return nil
	}

	msg := email.Message{To: to, Subject: email.ClaimSubject(notice), Body: email.BuildClaimNoticeBody(notice)}
	if err := h.sender.Send(ctx, msg); err != nil {
		return err
	}
	h.logger.Info("claim notice sent",
		zap.String("event_id", e.ID),
		zap.String("claim_number", notice.ClaimNumber),
		zap.String("status", status),
	)
	return nil
}

func (h *Handler) statusOf(e event.Envelope) (status, rejectReason string, ok bool) {
	switch e.EventType {
	case claim.EventClaimRequested:
		return string(claim.StatusRequested), "", true
	case claim.EventClaimApproved, claim.EventClaimRejected, claim.EventClaimCompleted:
		var changed claim.StatusChanged
		if err := e.Decode(&changed); err != nil {
			h.logger.Warn("dropping event with bad payload", zap.String("event_id", e.ID), zap.Error(err))
			return "", "", false
		}
		return string(changed.To), changed.RejectReason, true
	}
	return "", "", false
}

// buildNotice returns an empty recipient when the member has withdrawn.
func (h *Handler) buildNotice(ctx context.Context, claimID, status, rejectReason string) (email.ClaimNotice, string, error) {
	detail, err := h.queries.GetClaim(ctx, backoffice, claimID)
	if err != nil {
		return email.ClaimNotice{}, "", fmt.Errorf("load claim: %w", err)
	}
	o, err := h.queries.GetOrder(ctx, backoffice, detail.OrderID)
	if err != nil {
		return email.ClaimNotice{}, "", fmt.Errorf("load order: %w", err)
	}
	m, err := h.queries.GetMember(ctx, o.MemberID)
	if err != nil {
		return email.ClaimNotice{}, "", fmt.Errorf("load member: %w", err)
	}

	notice := email.ClaimNotice{
		MemberName:   m.Name,
		ClaimNumber:  detail.ClaimNumber,
		OrderNumber:  o.OrderNumber,
		ClaimType:    string(detail.Type),
		Status:       status,
		RefundAmount: detail.RefundAmount.Int64(),
		RejectReason: rejectReason,
	}
	if !m.IsActive() {
		h.logger.Debug("member withdrawn, skipping notice", zap.String("claim_id", claimID))
		return notice, "", nil
	}
	return notice, m.Email, nil
}
