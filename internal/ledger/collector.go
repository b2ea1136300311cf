package ledger

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector exports per-table ledger totals to Prometheus. Values are read
// from the log at scrape time.
type Collector struct {
	ledger *Ledger
	hands  *prometheus.Desc
	pot    *prometheus.Desc
	rake   *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector returns a collector over l
func NewCollector(l *Ledger) *Collector {
	labels := []string{"table_id"}
	return &Collector{
		ledger: l,
		hands: prometheus.NewDesc("cardroom_hands_settled_total",
			"Hands settled and recorded in the revenue ledger", labels, nil),
		pot: prometheus.NewDesc("cardroom_pot_chips_total",
			"Chips contested in recorded hands", labels, nil),
		rake: prometheus.NewDesc("cardroom_rake_chips_total",
			"Rake collected by the house in chips", labels, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.hands
	ch <- c.pot
	ch <- c.rake
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, t := range c.ledger.TopTables(0, time.Time{}, time.Time{}) {
		ch <- prometheus.MustNewConstMetric(c.hands, prometheus.CounterValue, float64(t.Hands), t.TableID)
		ch <- prometheus.MustNewConstMetric(c.pot, prometheus.CounterValue, float64(t.Pot), t.TableID)
		ch <- prometheus.MustNewConstMetric(c.rake, prometheus.CounterValue, float64(t.Rake), t.TableID)
	}
}
