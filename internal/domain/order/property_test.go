package order

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var happyPath = []Command{CommandConfirm, CommandShip, CommandDeliver, CommandComplete}

func genCommand() gopter.Gen {
	return gen.IntRange(0, len(Commands)-1).Map(func(i int) Command { return Commands[i] })
}

func freshOrder() *Order {
	o, _ := New(NewOrderParams{
		MemberID: "member-1",
		Items:    []ItemInput{{ProductID: "p", Quantity: 1, UnitPrice: 1000}},
	}, testNow)
	return o
}

// TestOrderCommandSequences checks that arbitrary command sequences keep the
// aggregate consistent and only table edges ever succeed.
func TestOrderCommandSequences(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("timestamps stay consistent with status", prop.ForAll(
		func(cmds []Command) bool {
			o := freshOrder()
			for i, cmd := range cmds {
				next, err := o.Apply(cmd, testNow.Add(time.Duration(i)*time.Minute))
				if err != nil {
					continue
				}
				o = next
				if o.CheckInvariants() != nil {
					return false
				}
			}
			return o.CheckInvariants() == nil
		},
		gen.SliceOf(genCommand()),
	))

	properties.Property("a command succeeds iff the table has an edge", prop.ForAll(
		func(cmds []Command) bool {
			o := freshOrder()
			for _, cmd := range cmds {
				before := o.Status
				next, err := o.Apply(cmd, testNow)
				if (err == nil) != CanApply(before, cmd) {
					return false
				}
				if err == nil {
					o = next
				}
			}
			return true
		},
		gen.SliceOf(genCommand()),
	))

	properties.Property("rejected commands stay rejected on retry", prop.ForAll(
		func(prefix []Command, cmd Command) bool {
			o := freshOrder()
			for _, c := range prefix {
				if next, err := o.Apply(c, testNow); err == nil {
					o = next
				}
			}
			_, first := o.Apply(cmd, testNow)
			if first == nil {
				return true
			}
			for i := 0; i < 3; i++ {
				if _, err := o.Apply(cmd, testNow); err == nil {
					return false
				}
			}
			return true
		},
		gen.SliceOf(genCommand()),
		genCommand(),
	))

	properties.Property("completed orders followed the forward path", prop.ForAll(
		func(cmds []Command) bool {
			o := freshOrder()
			var applied []Command
			for _, cmd := range cmds {
				if next, err := o.Apply(cmd, testNow); err == nil {
					o = next
					applied = append(applied, cmd)
				}
			}
			if o.Status != StatusCompleted {
				return true
			}
			if len(applied) != len(happyPath) {
				return false
			}
			for i := range happyPath {
				if applied[i] != happyPath[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(12, genCommand()),
	))

	properties.TestingRun(t)
}
