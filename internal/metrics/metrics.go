// Package metrics exposes Prometheus instruments for reward accounting.
//
// A nil *Metrics is valid and records nothing, so components can take an
// optional metrics handle without guarding every call.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Failure reasons used as the "reason" label.
const (
	ReasonPoolExhausted = "pool_exhausted"
	ReasonRemote        = "remote"
	ReasonEmptyCredit   = "empty_credit"
)

// Metrics holds the reward counters and the pool gauge.
type Metrics struct {
	grantsTotal     *prometheus.CounterVec
	creditedTotal   *prometheus.CounterVec
	rejectionsTotal *prometheus.CounterVec
	failuresTotal   *prometheus.CounterVec
	replaysTotal    *prometheus.CounterVec
	poolRemaining   prometheus.Gauge
}

// New registers the instruments on reg. Registering twice on the same
// registry panics, so callers create one Metrics per registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		grantsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "jara_reward_grants_total",
			Help: "grants applied, by action kind and currency",
		}, []string{"kind", "currency"}),
		creditedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "jara_reward_credited_total",
			Help: "amount credited, by currency",
		}, []string{"currency"}),
		rejectionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "jara_reward_rejections_total",
			Help: "policy rejections, by action kind",
		}, []string{"kind"}),
		failuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "jara_reward_remote_failures_total",
			Help: "failed remote grants, by currency and reason",
		}, []string{"currency", "reason"}),
		replaysTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "jara_reward_replays_total",
			Help: "grants answered from an existing idempotency key",
		}, []string{"currency"}),
		poolRemaining: factory.NewGauge(prometheus.GaugeOpts{
			Name: "jara_coin_pool_remaining",
			Help: "last observed remaining Coin supply",
		}),
	}
}

// GrantApplied records a credited grant.
func (m *Metrics) GrantApplied(kind, currency string, amount int) {
	if m == nil {
		return
	}
	m.grantsTotal.WithLabelValues(kind, currency).Inc()
	m.creditedTotal.WithLabelValues(currency).Add(float64(amount))
}

// GrantReplayed records a grant the server had already applied.
func (m *Metrics) GrantReplayed(currency string) {
	if m == nil {
		return
	}
	m.replaysTotal.WithLabelValues(currency).Inc()
}

// Rejected records a policy rejection.
func (m *Metrics) Rejected(kind string) {
	if m == nil {
		return
	}
	m.rejectionsTotal.WithLabelValues(kind).Inc()
}

// RemoteFailure records a failed remote grant.
func (m *Metrics) RemoteFailure(currency, reason string) {
	if m == nil {
		return
	}
	m.failuresTotal.WithLabelValues(currency, reason).Inc()
}

// PoolRemaining sets the pool gauge.
func (m *Metrics) PoolRemaining(n int64) {
	if m == nil {
		return
	}
	m.poolRemaining.Set(float64(n))
}
