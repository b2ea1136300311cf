// Package phh exports settled hands in the Poker Hand History format, one
// TOML section per hand.
package phh

import "time"

// HandHistory is a single hand in PHH form. Players are listed in position
// order starting from the small blind.
type HandHistory struct {
	Variant           string   `toml:"variant"`
	Table             string   `toml:"table,omitempty"`
	SeatCount         int      `toml:"seat_count,omitempty"`
	Seats             []int    `toml:"seats,omitempty"`
	Antes             []int64  `toml:"antes"`
	BlindsOrStraddles []int64  `toml:"blinds_or_straddles"`
	MinBet            int64    `toml:"min_bet"`
	StartingStacks    []int64  `toml:"starting_stacks"`
	FinishingStacks   []int64  `toml:"finishing_stacks"`
	Winnings          []int64  `toml:"winnings"`
	Actions           []string `toml:"actions"`
	Players           []string `toml:"players"`
	HandID            string   `toml:"hand"`
	Time              string   `toml:"time,omitempty"`
	TimeZone          string   `toml:"time_zone,omitempty"`
	Day               int      `toml:"day,omitempty"`
	Month             int      `toml:"month,omitempty"`
	Year              int      `toml:"year,omitempty"`

	Timestamp time.Time `toml:"-"`
}

// NoLimitHoldem is the PHH variant code for no-limit Texas hold'em
const NoLimitHoldem = "NT"
