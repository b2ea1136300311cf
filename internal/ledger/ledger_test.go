package ledger

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/lox/cardroom/internal/game"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// Monday 4 March 2024, 10:15 UTC
var base = time.Date(2024, time.March, 4, 10, 15, 0, 0, time.UTC)

func rec(table, hand string, at time.Time, pot, rake int64, contributors ...Contributor) Record {
	return Record{TableID: table, HandID: hand, Timestamp: at, PotSize: pot, Rake: rake, Contributors: contributors}
}

func paid(identity string, committed, rakePaid int64) Contributor {
	return Contributor{Identity: identity, Committed: committed, RakePaid: rakePaid}
}

func sampleLedger(t *testing.T) *Ledger {
	t.Helper()
	l := New()
	for _, r := range []Record{
		rec("t1", "h1", base, 100, 5, paid("alice", 50, 3), paid("bob", 50, 2)),
		rec("t1", "h2", base.Add(30*time.Minute), 200, 10, paid("alice", 100, 5), paid("carol", 100, 5)),
		rec("t1", "h3", base.Add(2*time.Hour), 40, 2, paid("bob", 20, 1), paid("carol", 20, 1)),
		rec("t2", "h1", base.Add(24*time.Hour), 1000, 20, paid("dave", 500, 10), paid("alice", 500, 10)),
		rec("t2", "h2", base.Add(7*24*time.Hour), 60, 3, paid("dave", 30, 2), paid("erin", 30, 1)),
	} {
		require.NoError(t, l.Append(r))
	}
	return l
}

func TestAppendRejectsBadRecords(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rec  Record
		err  error
	}{
		{"missing table", rec("", "h1", base, 10, 0, paid("a", 10, 0)), ErrIncompleteRecord},
		{"missing hand", rec("t", "", base, 10, 0, paid("a", 10, 0)), ErrIncompleteRecord},
		{"missing timestamp", rec("t", "h1", time.Time{}, 10, 0, paid("a", 10, 0)), ErrIncompleteRecord},
		{"rake above pot", rec("t", "h1", base, 10, 11, paid("a", 10, 11)), ErrIncompleteRecord},
		{"negative pot", rec("t", "h1", base, -1, 0, paid("a", 10, 0)), ErrIncompleteRecord},
		{"no contributors", rec("t", "h1", base, 10, 0), ErrIncompleteRecord},
		{"rake not apportioned", rec("t", "h1", base, 10, 2, paid("a", 5, 1), paid("b", 5, 0)), ErrIncompleteRecord},
		{"anonymous contributor", rec("t", "h1", base, 10, 0, paid("", 10, 0)), ErrIncompleteRecord},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			l := New()
			assert.ErrorIs(t, l.Append(tt.rec), tt.err)
			assert.Zero(t, l.Len())
		})
	}
}

func TestAppendRejectsDuplicateHands(t *testing.T) {
	t.Parallel()

	l := New()
	r := rec("t1", "h1", base, 10, 0, paid("a", 10, 0))
	require.NoError(t, l.Append(r))
	assert.ErrorIs(t, l.Append(r), ErrDuplicateHand)

	// The same hand ID on another table is a different hand
	r.TableID = "t2"
	require.NoError(t, l.Append(r))
	assert.Equal(t, 2, l.Len())
}

func TestRecordsAreCopies(t *testing.T) {
	t.Parallel()

	l := New()
	contributors := []Contributor{paid("a", 10, 1)}
	require.NoError(t, l.Append(rec("t1", "h1", base, 10, 1, contributors...)))
	contributors[0].RakePaid = 99

	got := l.Records(Filter{})
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].Contributors[0].RakePaid)

	got[0].Contributors[0].Identity = "mallory"
	assert.Equal(t, "a", l.Records(Filter{})[0].Contributors[0].Identity)
}

func TestTotals(t *testing.T) {
	t.Parallel()

	l := sampleLedger(t)
	assert.Equal(t, Totals{Hands: 5, Pot: 1400, Rake: 40}, l.Totals(Filter{}))
	assert.Equal(t, Totals{Hands: 3, Pot: 340, Rake: 17}, l.Totals(Filter{TableID: "t1"}))
	assert.Equal(t, Totals{Hands: 2, Pot: 300, Rake: 15},
		l.Totals(Filter{TableID: "t1", From: base, To: base.Add(time.Hour)}))
	assert.Equal(t, Totals{}, l.Totals(Filter{TableID: "nope"}))
}

func TestRollup(t *testing.T) {
	t.Parallel()

	l := sampleLedger(t)
	day := func(d int) time.Time { return time.Date(2024, time.March, d, 0, 0, 0, 0, time.UTC) }

	tests := []struct {
		name   string
		table  string
		bucket Bucket
		want   []BucketSum
	}{
		{"hourly", "t1", Hour, []BucketSum{
			{Start: base.Truncate(time.Hour), Totals: Totals{Hands: 2, Pot: 300, Rake: 15}},
			{Start: base.Truncate(time.Hour).Add(2 * time.Hour), Totals: Totals{Hands: 1, Pot: 40, Rake: 2}},
		}},
		{"daily", "", Day, []BucketSum{
			{Start: day(4), Totals: Totals{Hands: 3, Pot: 340, Rake: 17}},
			{Start: day(5), Totals: Totals{Hands: 1, Pot: 1000, Rake: 20}},
			{Start: day(11), Totals: Totals{Hands: 1, Pot: 60, Rake: 3}},
		}},
		{"weekly", "", Week, []BucketSum{
			{Start: day(4), Totals: Totals{Hands: 4, Pot: 1340, Rake: 37}},
			{Start: day(11), Totals: Totals{Hands: 1, Pot: 60, Rake: 3}},
		}},
		{"monthly", "t2", Month, []BucketSum{
			{Start: day(1), Totals: Totals{Hands: 2, Pot: 1060, Rake: 23}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, l.Rollup(tt.table, tt.bucket, time.Time{}, time.Time{}))
		})
	}
}

func TestBucketStart(t *testing.T) {
	t.Parallel()

	sunday := time.Date(2024, time.March, 10, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC), Week.Start(sunday))
	assert.Equal(t, time.Date(2024, time.March, 11, 0, 0, 0, 0, time.UTC), Week.Start(sunday.Add(time.Minute)))

	// Buckets are computed in UTC whatever the input zone
	est := time.FixedZone("EST", -5*3600)
	late := time.Date(2024, time.March, 31, 22, 0, 0, 0, est)
	assert.Equal(t, time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC), Month.Start(late))
}

func TestParseBucket(t *testing.T) {
	t.Parallel()

	for _, b := range []Bucket{Hour, Day, Week, Month} {
		got, err := ParseBucket(strings.ToUpper(b.String()))
		require.NoError(t, err)
		assert.Equal(t, b, got)
	}
	_, err := ParseBucket("fortnight")
	assert.Error(t, err)
}

func TestTopTables(t *testing.T) {
	t.Parallel()

	l := sampleLedger(t)
	top := l.TopTables(1, time.Time{}, time.Time{})
	require.Len(t, top, 1)
	assert.Equal(t, TableRake{TableID: "t2", Totals: Totals{Hands: 2, Pot: 1060, Rake: 23}}, top[0])

	all := l.TopTables(0, time.Time{}, base.Add(24*time.Hour))
	require.Len(t, all, 1, "t2 has no hands before the range ends")
	assert.Equal(t, "t1", all[0].TableID)
}

func TestTopPlayers(t *testing.T) {
	t.Parallel()

	l := sampleLedger(t)
	assert.Equal(t, []PlayerRake{
		{Identity: "alice", Hands: 3, RakePaid: 18},
		{Identity: "dave", Hands: 2, RakePaid: 12},
	}, l.TopPlayers(2, time.Time{}, time.Time{}))

	assert.Equal(t, []PlayerRake{
		{Identity: "alice", Hands: 2, RakePaid: 8},
		{Identity: "carol", Hands: 2, RakePaid: 6},
		{Identity: "bob", Hands: 2, RakePaid: 3},
	}, l.TopPlayers(0, base, base.Add(24*time.Hour)))
}

func TestEfficiency(t *testing.T) {
	t.Parallel()

	l := sampleLedger(t)
	e := l.Efficiency("t1", time.Time{}, time.Time{})
	assert.Equal(t, 3, e.Hands)
	assert.Equal(t, int64(17), e.Rake)
	assert.Equal(t, 2, e.ActiveHours)
	assert.Equal(t, 3, e.UniquePlayers)
	assert.InDelta(t, 17.0/3, e.PerHand, 1e-9)
	assert.InDelta(t, 8.5, e.PerActiveHour, 1e-9)
	assert.InDelta(t, 17.0/3, e.PerPlayer, 1e-9)

	assert.Equal(t, Efficiency{TableID: "idle"}, l.Efficiency("idle", time.Time{}, time.Time{}))
}

func TestRecordFromSettlement(t *testing.T) {
	t.Parallel()

	s := &game.Settlement{
		TableID:   "t1",
		HandID:    "hand_1",
		Timestamp: base,
		PotTotal:  200,
		Rake:      10,
		Seats: []game.SeatResult{
			{Seat: 0, Identity: "alice", Committed: 300, Refunded: 200, RakePaid: 5},
			{Seat: 1, Identity: "bob", Committed: 100, RakePaid: 5},
			{Seat: 2, Identity: "carol"},
		},
	}
	r := RecordFromSettlement(s)
	assert.Equal(t, rec("t1", "hand_1", base, 200, 10, paid("alice", 100, 5), paid("bob", 100, 5)), r)
	require.NoError(t, r.Validate())
}

func TestConcurrentAppendAndRead(t *testing.T) {
	t.Parallel()

	l := New()
	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			for j := 0; j < 50; j++ {
				r := rec(fmt.Sprintf("t%d", i), fmt.Sprintf("h%d", j), base.Add(time.Duration(j)*time.Minute), 10, 1, paid("p", 10, 1))
				if err := l.Append(r); err != nil {
					return err
				}
				_ = l.Totals(Filter{})
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, Totals{Hands: 400, Pot: 4000, Rake: 400}, l.Totals(Filter{}))
}

func TestCollector(t *testing.T) {
	t.Parallel()

	l := sampleLedger(t)
	c := NewCollector(l)
	assert.Equal(t, 6, testutil.CollectAndCount(c))

	expected := `
# HELP cardroom_rake_chips_total Rake collected by the house in chips
# TYPE cardroom_rake_chips_total counter
cardroom_rake_chips_total{table_id="t1"} 17
cardroom_rake_chips_total{table_id="t2"} 23
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected), "cardroom_rake_chips_total"))
}
