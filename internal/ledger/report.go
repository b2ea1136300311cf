package ledger

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Totals sums a set of records
type Totals struct {
	Hands int   `json:"hands"`
	Pot   int64 `json:"pot"`
	Rake  int64 `json:"rake"`
}

func (t *Totals) add(r Record) {
	t.Hands++
	t.Pot += r.PotSize
	t.Rake += r.Rake
}

// Totals sums every record matching f
func (l *Ledger) Totals(f Filter) Totals {
	var t Totals
	l.scan(f, t.add)
	return t
}

// Bucket is a rollup period
type Bucket int

const (
	Hour Bucket = iota
	Day
	Week
	Month
)

func (b Bucket) String() string {
	switch b {
	case Hour:
		return "hour"
	case Day:
		return "day"
	case Week:
		return "week"
	case Month:
		return "month"
	}
	return fmt.Sprintf("bucket(%d)", int(b))
}

// ParseBucket parses hour, day, week or month
func ParseBucket(s string) (Bucket, error) {
	for b := Hour; b <= Month; b++ {
		if strings.EqualFold(s, b.String()) {
			return b, nil
		}
	}
	return 0, fmt.Errorf("unknown bucket %q", s)
}

// Start returns the start of the bucket containing t, in UTC. Weeks start
// on Monday.
func (b Bucket) Start(t time.Time) time.Time {
	t = t.UTC()
	switch b {
	case Hour:
		return t.Truncate(time.Hour)
	case Day:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case Week:
		offset := (int(t.Weekday()) + 6) % 7
		return time.Date(t.Year(), t.Month(), t.Day()-offset, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
}

// BucketSum is the totals for one period
type BucketSum struct {
	Start time.Time `json:"start"`
	Totals
}

// Rollup sums a table's records per period, oldest first. An empty tableID
// rolls up every table. Periods without hands are omitted.
func (l *Ledger) Rollup(tableID string, b Bucket, from, to time.Time) []BucketSum {
	sums := make(map[time.Time]*Totals)
	l.scan(Filter{TableID: tableID, From: from, To: to}, func(r Record) {
		start := b.Start(r.Timestamp)
		t, ok := sums[start]
		if !ok {
			t = &Totals{}
			sums[start] = t
		}
		t.add(r)
	})

	out := make([]BucketSum, 0, len(sums))
	for start, t := range sums {
		out = append(out, BucketSum{Start: start, Totals: *t})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// TableRake is a table's revenue over a range
type TableRake struct {
	TableID string `json:"table_id"`
	Totals
}

// TopTables returns the n tables that collected the most rake, ties broken
// by table ID. n <= 0 returns every table.
func (l *Ledger) TopTables(n int, from, to time.Time) []TableRake {
	byTable := make(map[string]*Totals)
	l.scan(Filter{From: from, To: to}, func(r Record) {
		t, ok := byTable[r.TableID]
		if !ok {
			t = &Totals{}
			byTable[r.TableID] = t
		}
		t.add(r)
	})

	out := make([]TableRake, 0, len(byTable))
	for id, t := range byTable {
		out = append(out, TableRake{TableID: id, Totals: *t})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rake != out[j].Rake {
			return out[i].Rake > out[j].Rake
		}
		return out[i].TableID < out[j].TableID
	})
	return limit(out, n)
}

// PlayerRake is a player's rake paid over a range
type PlayerRake struct {
	Identity string `json:"identity"`
	Hands    int    `json:"hands"`
	RakePaid int64  `json:"rake_paid"`
}

// TopPlayers returns the n players who paid the most rake, ties broken by
// identity. n <= 0 returns every player.
func (l *Ledger) TopPlayers(n int, from, to time.Time) []PlayerRake {
	byPlayer := make(map[string]*PlayerRake)
	l.scan(Filter{From: from, To: to}, func(r Record) {
		for _, c := range r.Contributors {
			p, ok := byPlayer[c.Identity]
			if !ok {
				p = &PlayerRake{Identity: c.Identity}
				byPlayer[c.Identity] = p
			}
			p.Hands++
			p.RakePaid += c.RakePaid
		}
	})

	out := make([]PlayerRake, 0, len(byPlayer))
	for _, p := range byPlayer {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RakePaid != out[j].RakePaid {
			return out[i].RakePaid > out[j].RakePaid
		}
		return out[i].Identity < out[j].Identity
	})
	return limit(out, n)
}

// Efficiency measures how much rake a table earns
type Efficiency struct {
	TableID       string  `json:"table_id"`
	Hands         int     `json:"hands"`
	Rake          int64   `json:"rake"`
	ActiveHours   int     `json:"active_hours"` // Distinct clock hours with at least one hand
	UniquePlayers int     `json:"unique_players"`
	PerHand       float64 `json:"rake_per_hand"`
	PerActiveHour float64 `json:"rake_per_active_hour"`
	PerPlayer     float64 `json:"rake_per_player"`
}

// Efficiency computes rake per hand, per active hour and per unique player
// for one table. Ratios are zero when their denominator is.
func (l *Ledger) Efficiency(tableID string, from, to time.Time) Efficiency {
	e := Efficiency{TableID: tableID}
	hours := make(map[time.Time]struct{})
	players := make(map[string]struct{})
	l.scan(Filter{TableID: tableID, From: from, To: to}, func(r Record) {
		e.Hands++
		e.Rake += r.Rake
		hours[Hour.Start(r.Timestamp)] = struct{}{}
		for _, c := range r.Contributors {
			players[c.Identity] = struct{}{}
		}
	})
	e.ActiveHours = len(hours)
	e.UniquePlayers = len(players)
	e.PerHand = ratio(e.Rake, e.Hands)
	e.PerActiveHour = ratio(e.Rake, e.ActiveHours)
	e.PerPlayer = ratio(e.Rake, e.UniquePlayers)
	return e
}

func ratio(n int64, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

func limit[T any](s []T, n int) []T {
	if n > 0 && len(s) > n {
		return s[:n]
	}
	return s
}
