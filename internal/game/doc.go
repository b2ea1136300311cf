// Package game implements a Texas Hold'em table: seating, the betting state
// machine, side pots, showdown and settlement.
//
// A Table is driven by three calls:
//
//	t, _ := game.NewTable("t1", game.Cash, game.Blinds{Small: 5, Big: 10})
//	t.Sit("alice", 1000)
//	t.Sit("bob", 1000)
//	t.StartHand()
//	snap, settlement, err := t.Act(t.Acting(), game.Call, 0)
//
// Every intent either fails with a *ValidationError and leaves the table
// untouched, or is applied in full. When a hand ends the returned
// *Settlement carries the pots, payouts and rake; seat deltas and rake
// always sum to zero.
//
// The package performs no I/O and holds no locks. Callers serialize access
// to each Table.
package game
