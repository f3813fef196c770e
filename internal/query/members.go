package query

import (
	"context"
	"errors"

	"github.com/example/ec-backoffice/internal/auth"
	"github.com/example/ec-backoffice/internal/domain/member"
	"github.com/example/ec-backoffice/internal/infrastructure/store"
)

// Authenticate returns the active member owning email and password. Unknown
// emails, wrong passwords and withdrawn members are indistinguishable.
func (h *Handler) Authenticate(ctx context.Context, email, password string) (*member.Member, error) {
	var m *member.Member
	err := h.store.Run(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		m, err = tx.Members().FindByEmail(ctx, email)
		return err
	})
	if errors.Is(err, member.ErrMemberNotFound) {
		return nil, member.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !m.IsActive() || !auth.CheckPassword(password, m.PasswordHash) {
		return nil, member.ErrInvalidCredentials
	}
	return m, nil
}

func (h *Handler) GetMember(ctx context.Context, memberID string) (*member.Member, error) {
	var m *member.Member
	err := h.store.Run(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		m, err = tx.Members().LoadVersioned(ctx, memberID)
		return err
	})
	return m, err
}
