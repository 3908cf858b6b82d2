package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the ledger counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	GrantCounter        *prometheus.CounterVec
	GrantBlockedCounter *prometheus.CounterVec
	WLBanCounter        *prometheus.CounterVec
	InvalidatedCounter  *prometheus.CounterVec
	PlayerBanCounter    *prometheus.CounterVec
	DonationCounter     *prometheus.CounterVec
	LinkCounter         *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. Collectors that are already registered
// are ignored so repeated construction in tests does not fail.
func New(reg prometheus.Registerer) *Metrics {
	collector := &Metrics{
		GrantCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "central_whitelist_grants_total", Help: "Total whitelist grants issued"},
			[]string{"server_type"}),

		GrantBlockedCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "central_whitelist_grants_blocked_total", Help: "Grant attempts rejected by an active whitelist ban"},
			[]string{"server_type"}),

		WLBanCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "central_whitelist_bans_total", Help: "Total whitelist bans issued"},
			[]string{"server_type"}),

		InvalidatedCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "central_whitelist_grants_invalidated_total", Help: "Grants invalidated by whitelist bans"},
			[]string{"server_type"}),

		PlayerBanCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "central_player_ban_events_total", Help: "Player ban history events"},
			[]string{"action"}),

		DonationCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "central_donations_total", Help: "Donations recorded"},
			[]string{"tier"}),

		LinkCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "central_links_total", Help: "Identity link attempts"},
			[]string{"result"}),
	}

	for _, metric := range []prometheus.Collector{
		collector.GrantCounter,
		collector.GrantBlockedCounter,
		collector.WLBanCounter,
		collector.InvalidatedCounter,
		collector.PlayerBanCounter,
		collector.DonationCounter,
		collector.LinkCounter,
	} {
		_ = reg.Register(metric)
	}

	return collector
}

func (m *Metrics) GrantIssued(serverType string) {
	if m == nil {
		return
	}

	m.GrantCounter.With(prometheus.Labels{"server_type": serverType}).Inc()
}

func (m *Metrics) GrantBlocked(serverType string) {
	if m == nil {
		return
	}

	m.GrantBlockedCounter.With(prometheus.Labels{"server_type": serverType}).Inc()
}

func (m *Metrics) WhitelistBanIssued(serverType string, invalidated int64) {
	if m == nil {
		return
	}

	m.WLBanCounter.With(prometheus.Labels{"server_type": serverType}).Inc()
	m.InvalidatedCounter.With(prometheus.Labels{"server_type": serverType}).Add(float64(invalidated))
}

func (m *Metrics) PlayerBanEvent(action string) {
	if m == nil {
		return
	}

	m.PlayerBanCounter.With(prometheus.Labels{"action": action}).Inc()
}

func (m *Metrics) DonationRecorded(tier string) {
	if m == nil {
		return
	}

	m.DonationCounter.With(prometheus.Labels{"tier": tier}).Inc()
}

func (m *Metrics) LinkResult(result string) {
	if m == nil {
		return
	}

	m.LinkCounter.With(prometheus.Labels{"result": result}).Inc()
}
