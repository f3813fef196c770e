package order

import (
	"testing"

	"github.com/example/ec-backoffice/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================
// State Transition Matrix Tests
// ============================================

func TestTransition_Matrix(t *testing.T) {
	allowed := map[Status]map[Command]Status{
		StatusOrdered:   {CommandConfirm: StatusConfirmed, CommandCancel: StatusCancelled},
		StatusConfirmed: {CommandShip: StatusShipped, CommandCancel: StatusCancelled},
		StatusShipped:   {CommandDeliver: StatusDelivered},
		StatusDelivered: {CommandComplete: StatusCompleted},
		StatusCompleted: {},
		StatusCancelled: {},
	}

	for _, from := range Statuses {
		for _, cmd := range Commands {
			t.Run(string(from)+"/"+string(cmd), func(t *testing.T) {
				next, err := Transition(from, cmd)
				want, ok := allowed[from][cmd]
				if ok {
					require.NoError(t, err)
					assert.Equal(t, want, next)
					assert.True(t, CanApply(from, cmd))
					return
				}
				require.Error(t, err)
				assert.Equal(t, from, next)
				assert.Equal(t, apperr.KindStatusConflict, apperr.KindOf(err))
				assert.False(t, CanApply(from, cmd))
			})
		}
	}
}

func TestTransition_TerminalErrors(t *testing.T) {
	for _, cmd := range Commands {
		_, err := Transition(StatusCancelled, cmd)
		assert.ErrorIs(t, err, ErrAlreadyCancelled)

		_, err = Transition(StatusCompleted, cmd)
		assert.ErrorIs(t, err, ErrAlreadyCompleted)
	}
}

func TestTransition_UnknownCommand(t *testing.T) {
	_, err := Transition(StatusOrdered, Command("refund"))

	assert.ErrorIs(t, err, ErrUnknownCommand)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestStatus_Helpers(t *testing.T) {
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.False(t, StatusDelivered.IsTerminal())
	assert.True(t, StatusShipped.Valid())
	assert.False(t, Status("LOST").Valid())
	assert.Equal(t, EventOrderShipped, CommandShip.EventType())
	assert.Equal(t, StatusCancelled, CommandCancel.Target())
}
