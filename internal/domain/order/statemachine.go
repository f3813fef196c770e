package order

import (
	"fmt"

	"github.com/example/ec-backoffice/internal/apperr"
)

type Status string

const (
	StatusOrdered   Status = "ORDERED"
	StatusConfirmed Status = "CONFIRMED"
	StatusShipped   Status = "SHIPPED"
	StatusDelivered Status = "DELIVERED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// Statuses lists every order status in lifecycle order.
var Statuses = []Status{StatusOrdered, StatusConfirmed, StatusShipped, StatusDelivered, StatusCompleted, StatusCancelled}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no command can move the order any further.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Command is an order lifecycle command.
type Command string

const (
	CommandConfirm  Command = "confirm"
	CommandShip     Command = "ship"
	CommandDeliver  Command = "deliver"
	CommandComplete Command = "complete"
	CommandCancel   Command = "cancel"
)

// Commands lists every lifecycle command.
var Commands = []Command{CommandConfirm, CommandShip, CommandDeliver, CommandComplete, CommandCancel}

type edge struct {
	from Status
	cmd  Command
}

// transitions is the complete edge set; anything missing is a status conflict.
var transitions = map[edge]Status{
	{StatusOrdered, CommandConfirm}:    StatusConfirmed,
	{StatusConfirmed, CommandShip}:     StatusShipped,
	{StatusShipped, CommandDeliver}:    StatusDelivered,
	{StatusDelivered, CommandComplete}: StatusCompleted,
	{StatusOrdered, CommandCancel}:     StatusCancelled,
	{StatusConfirmed, CommandCancel}:   StatusCancelled,
}

// commandTargets names the status each command aims for, for error reporting.
var commandTargets = map[Command]Status{
	CommandConfirm:  StatusConfirmed,
	CommandShip:     StatusShipped,
	CommandDeliver:  StatusDelivered,
	CommandComplete: StatusCompleted,
	CommandCancel:   StatusCancelled,
}

// Target returns the status cmd moves an order into.
func (c Command) Target() Status { return commandTargets[c] }

func (c Command) Valid() bool {
	_, ok := commandTargets[c]
	return ok
}

// TransitionError is returned when a command has no edge from the current status.
type TransitionError struct {
	OrderID string
	From    Status
	Command Command
	Target  Status
	cause   error
}

func (e *TransitionError) Error() string {
	if e.OrderID == "" {
		return fmt.Sprintf("cannot %s order in status %s (target %s)", e.Command, e.From, e.Target)
	}
	return fmt.Sprintf("cannot %s order %s in status %s (target %s)", e.Command, e.OrderID, e.From, e.Target)
}

func (e *TransitionError) Unwrap() error { return e.cause }

// Transition is the order state machine: (current status, command) -> next status.
// It performs no I/O.
func Transition(current Status, cmd Command) (Status, error) {
	if !cmd.Valid() {
		return current, apperr.Wrapf(ErrUnknownCommand, "unknown order command %q", cmd)
	}
	if next, ok := transitions[edge{current, cmd}]; ok {
		return next, nil
	}

	var cause *apperr.Error
	switch current {
	case StatusCancelled:
		cause = ErrAlreadyCancelled
	case StatusCompleted:
		cause = ErrAlreadyCompleted
	default:
		cause = ErrInvalidTransition
	}
	return current, &TransitionError{
		From:    current,
		Command: cmd,
		Target:  cmd.Target(),
		cause:   cause,
	}
}

// CanApply reports whether cmd has an edge from current.
func CanApply(current Status, cmd Command) bool {
	_, ok := transitions[edge{current, cmd}]
	return ok
}
