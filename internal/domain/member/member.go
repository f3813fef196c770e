package member

import (
	"strings"
	"time"

	"github.com/example/ec-backoffice/internal/apperr"
	"github.com/example/ec-backoffice/internal/auth"
	"github.com/google/uuid"
)

const AggregateType = "Member"

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusWithdrawn Status = "WITHDRAWN"
)

var (
	ErrMemberNotFound     = apperr.NotFound("MEMBER_NOT_FOUND", "member not found")
	ErrInvalidEmail       = apperr.Validation("INVALID_EMAIL", "email is required")
	ErrInvalidName        = apperr.Validation("INVALID_NAME", "name is required")
	ErrInvalidCredentials = apperr.Unauthorized("INVALID_CREDENTIALS", "invalid password")
	ErrAlreadyWithdrawn   = apperr.StatusConflict("ALREADY_WITHDRAWN", "member has already withdrawn")
)

type Member struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Name         string     `json:"name"`
	Role         string     `json:"role"`
	Status       Status     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	WithdrawnAt  *time.Time `json:"withdrawn_at,omitempty"`
	Version      int        `json:"version"`
}

// New registers a member with a bcrypt-hashed password.
func New(email, password, name, role string, now time.Time) (*Member, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, ErrInvalidEmail
	}
	if strings.TrimSpace(name) == "" {
		return nil, ErrInvalidName
	}
	if role == "" {
		role = RoleCustomer
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	return &Member{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Role:         role,
		Status:       StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (m *Member) IsActive() bool { return m.Status == StatusActive }

// Withdraw re-authenticates with password and returns the withdrawn member.
func (m *Member) Withdraw(password string, now time.Time) (*Member, error) {
	if !m.IsActive() {
		return nil, apperr.Wrapf(ErrAlreadyWithdrawn, "member %s has already withdrawn", m.ID)
	}
	if !auth.CheckPassword(password, m.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	out := *m
	out.Status = StatusWithdrawn
	out.WithdrawnAt = &now
	out.UpdatedAt = now
	return &out, nil
}

const EventMemberWithdrawn = "MemberWithdrawn"

type MemberWithdrawn struct {
	MemberID    string    `json:"member_id"`
	WithdrawnAt time.Time `json:"withdrawn_at"`
}
