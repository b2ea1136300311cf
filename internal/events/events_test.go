package events

import (
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/lox/cardroom/internal/deck"
	"github.com/lox/cardroom/internal/game"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	subject string
	data    []byte
}

type fakeConn struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, published{subject, append([]byte(nil), data...)})
	return nil
}

func TestSubjects(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "cardroom.hands.t1", HandsSubject("", "t1"))
	assert.Equal(t, "room.hands.*", HandsSubject("room.", "*"))
	assert.Equal(t, "cardroom.state.high_stakes_2", StateSubject("cardroom", "high stakes.2"))
}

func TestPublishSettlement(t *testing.T) {
	t.Parallel()

	conn := &fakeConn{}
	p := NewNATS(conn, "", zerolog.Nop())
	s := &game.Settlement{
		TableID:  "t1",
		HandID:   "hand_7",
		Board:    deck.MustParseCards("2c7d9h"),
		PotTotal: 30,
		Rake:     1,
	}
	require.NoError(t, p.PublishSettlement(s))
	require.Len(t, conn.msgs, 1)
	assert.Equal(t, "cardroom.hands.t1", conn.msgs[0].subject)

	got, err := DecodeSettlement(conn.msgs[0].data)
	require.NoError(t, err)
	assert.Equal(t, "hand_7", got.HandID)
	assert.Equal(t, s.Board, got.Board)
	assert.Equal(t, int64(1), got.Rake)
}

func TestPublishStateHidesHoleCards(t *testing.T) {
	t.Parallel()

	conn := &fakeConn{}
	p := NewNATS(conn, "room", zerolog.Nop())
	snap := game.Snapshot{
		TableID: "t1",
		Phase:   game.Flop,
		Seats: []game.SeatView{
			{ID: 0, Identity: "alice", HoleCards: deck.MustParseCards("AsAd")},
			{ID: 1, Identity: "bob", HoleCards: deck.MustParseCards("KsKd"), Shown: true},
		},
	}
	require.NoError(t, p.PublishState(snap))
	require.Len(t, conn.msgs, 1)
	assert.Equal(t, "room.state.t1", conn.msgs[0].subject)

	var got game.Snapshot
	require.NoError(t, json.Unmarshal(conn.msgs[0].data, &got))
	assert.Empty(t, got.Seats[0].HoleCards)
	assert.Equal(t, deck.MustParseCards("KsKd"), got.Seats[1].HoleCards)
	assert.NotEmpty(t, snap.Seats[0].HoleCards, "the caller's snapshot is untouched")
}

func TestPublishErrorsAreReturned(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	p := NewNATS(&fakeConn{err: boom}, "", zerolog.Nop())
	assert.ErrorIs(t, p.PublishSettlement(&game.Settlement{TableID: "t1"}), boom)
}

func TestDecodeSettlementRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := DecodeSettlement([]byte("{"))
	assert.Error(t, err)
}

func TestRoundTripThroughNATS(t *testing.T) {
	url := os.Getenv("CARDROOM_TEST_NATS_URL")
	if url == "" {
		t.Skip("CARDROOM_TEST_NATS_URL not set")
	}

	p, nc, err := Connect(url, "cardroom-test", zerolog.Nop())
	require.NoError(t, err)
	defer nc.Close()

	got := make(chan game.Settlement, 1)
	sub, err := SubscribeSettlements(nc, "cardroom-test", func(s game.Settlement) { got <- s })
	require.NoError(t, err)
	defer func() { _ = sub.Unsubscribe() }()
	require.NoError(t, nc.Flush())

	require.NoError(t, p.PublishSettlement(&game.Settlement{TableID: "t1", HandID: "hand_1"}))
	select {
	case s := <-got:
		assert.Equal(t, "hand_1", s.HandID)
	case <-time.After(5 * time.Second):
		t.Fatal("settlement not received")
	}
}
