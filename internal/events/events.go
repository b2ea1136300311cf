// Package events publishes settled hands and table state to NATS so that
// services outside the cardroom process can follow the tables.
package events

import (
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/lox/cardroom/internal/game"
	natsgo "github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultPrefix is the subject prefix when none is configured
const DefaultPrefix = "cardroom"

// Publisher receives every settlement and state change
type Publisher interface {
	PublishSettlement(s *game.Settlement) error
	PublishState(snap game.Snapshot) error
}

// Conn is the part of a NATS connection the publisher needs
type Conn interface {
	Publish(subject string, data []byte) error
}

var _ Conn = (*natsgo.Conn)(nil)

// NATS publishes JSON messages on
//
//	<prefix>.hands.<table>   settlements
//	<prefix>.state.<table>   spectator snapshots
type NATS struct {
	conn   Conn
	prefix string
	logger zerolog.Logger
}

var _ Publisher = (*NATS)(nil)

func NewNATS(conn Conn, prefix string, logger zerolog.Logger) *NATS {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &NATS{
		conn:   conn,
		prefix: strings.TrimSuffix(prefix, "."),
		logger: logger.With().Str("component", "events").Logger(),
	}
}

// Connect dials url and returns a publisher that owns the connection
func Connect(url, prefix string, logger zerolog.Logger) (*NATS, *natsgo.Conn, error) {
	nc, err := natsgo.Connect(url, natsgo.Name("cardroom"))
	if err != nil {
		return nil, nil, fmt.Errorf("connect to nats %s: %w", url, err)
	}
	return NewNATS(nc, prefix, logger), nc, nil
}

// HandsSubject is the subject a table's settlements are published on. Use
// "*" as the table to match every table.
func HandsSubject(prefix, tableID string) string {
	return subject(prefix, "hands", tableID)
}

// StateSubject is the subject a table's snapshots are published on
func StateSubject(prefix, tableID string) string {
	return subject(prefix, "state", tableID)
}

func subject(prefix, kind, tableID string) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	// Subject tokens cannot contain dots or spaces
	tableID = strings.NewReplacer(".", "_", " ", "_").Replace(tableID)
	return strings.TrimSuffix(prefix, ".") + "." + kind + "." + tableID
}

func (n *NATS) PublishSettlement(s *game.Settlement) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	subj := HandsSubject(n.prefix, s.TableID)
	n.logger.Debug().Str("subject", subj).Str("hand_id", s.HandID).Msg("publishing settlement")
	return n.conn.Publish(subj, data)
}

// PublishState publishes the spectator view, which never carries hidden
// hole cards
func (n *NATS) PublishState(snap game.Snapshot) error {
	data, err := json.Marshal(snap.For(game.Spectator))
	if err != nil {
		return err
	}
	return n.conn.Publish(StateSubject(n.prefix, snap.TableID), data)
}

// SubscribeSettlements calls fn for every settlement published under prefix
// until the subscription is drained
func SubscribeSettlements(nc *natsgo.Conn, prefix string, fn func(game.Settlement)) (*natsgo.Subscription, error) {
	return nc.Subscribe(HandsSubject(prefix, "*"), func(msg *natsgo.Msg) {
		s, err := DecodeSettlement(msg.Data)
		if err != nil {
			return
		}
		fn(s)
	})
}

// DecodeSettlement parses a published settlement
func DecodeSettlement(data []byte) (game.Settlement, error) {
	var s game.Settlement
	if err := json.Unmarshal(data, &s); err != nil {
		return game.Settlement{}, fmt.Errorf("decode settlement: %w", err)
	}
	return s, nil
}
