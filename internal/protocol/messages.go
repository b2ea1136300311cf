// Package protocol defines the JSON messages exchanged over the websocket
// transport. Every message travels in an Envelope whose Data holds one of
// the payload types below.
package protocol

import (
	"github.com/lox/cardroom/internal/game"
)

// Type identifies a message
type Type string

const (
	// Client -> server
	TypeCreateTable Type = "create_table"
	TypeSit         Type = "sit"
	TypeAction      Type = "action"
	TypeLeave       Type = "leave"
	TypeAway        Type = "away"
	TypeState       Type = "state" // Also the reply

	// Server -> client
	TypeTableCreated Type = "table_created"
	TypeSeated       Type = "seated"
	TypeLeft         Type = "left"
	TypeTableState   Type = "table_state"
	TypeHandSettled  Type = "hand_settled"
	TypeError        Type = "error"
)

// Client -> server messages

// CreateTable opens a new table
type CreateTable struct {
	ID         string  `json:"id,omitempty"`
	Kind       string  `json:"kind"` // cash or tournament
	SmallBlind int64   `json:"small_blind"`
	BigBlind   int64   `json:"big_blind"`
	MaxSeats   int     `json:"max_seats,omitempty"`
	BuyIn      float64 `json:"buy_in,omitempty"`
}

// Sit takes the first free seat at a table
type Sit struct {
	TableID  string `json:"table_id"`
	Identity string `json:"identity"`
	Chips    int64  `json:"chips"`
	CPU      bool   `json:"cpu,omitempty"`
	Strategy string `json:"strategy,omitempty"`
}

// Action is a betting decision for a seat this connection owns
type Action struct {
	TableID string `json:"table_id"`
	Seat    int    `json:"seat"`
	Action  string `json:"action"`           // fold, check, call, raise, allin
	Amount  int64  `json:"amount,omitempty"` // Total bet for raises
}

// Leave gives up a seat
type Leave struct {
	TableID string `json:"table_id"`
	Seat    int    `json:"seat"`
}

// Away marks a seat away or back
type Away struct {
	TableID string `json:"table_id"`
	Seat    int    `json:"seat"`
	Away    bool   `json:"away"`
}

// StateRequest asks for a table's state
type StateRequest struct {
	TableID string `json:"table_id"`
}

// Server -> client messages

type TableCreated struct {
	TableID string `json:"table_id"`
}

type Seated struct {
	TableID string `json:"table_id"`
	Seat    int    `json:"seat"`
}

type Left struct {
	TableID string `json:"table_id"`
	Seat    int    `json:"seat"`
}

// TableState is a snapshot as seen by the receiving connection
type TableState struct {
	State game.Snapshot `json:"state"`
}

// HandSettled is broadcast to a table's connections once per hand
type HandSettled struct {
	Settlement game.Settlement `json:"settlement"`
}

// Error is sent only to the connection whose request failed
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
