// Package metrics exposes session engine activity as prometheus metrics.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Sardor8866/festery/internal/session"
)

const namespace = "festery"

// Collector observes the session engine and records its lifecycle.
type Collector struct {
	started  *prometheus.CounterVec
	settled  *prometheus.CounterVec
	active   *prometheus.GaugeVec
	retries  *prometheus.CounterVec
	credited *prometheus.HistogramVec
}

var (
	_ session.Observer      = (*Collector)(nil)
	_ session.RetryObserver = (*Collector)(nil)
)

// New creates a collector and registers it with reg.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		started: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "started_total",
			Help:      "Sessions whose stake was accepted.",
		}, []string{"game"}),
		settled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "settled_total",
			Help:      "Sessions that reached a terminal outcome.",
		}, []string{"game", "outcome"}),
		active: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "active",
			Help:      "Sessions started and not yet settled.",
		}, []string{"game"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "credit_retries_total",
			Help:      "Failed settlement credit attempts that were retried.",
		}, []string{"game"}),
		credited: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "credited_minor_units",
			Help:      "Amount credited at settlement, in minor units.",
			Buckets:   prometheus.ExponentialBuckets(10, 4, 10),
		}, []string{"game", "outcome"}),
	}

	for _, col := range []prometheus.Collector{c.started, c.settled, c.active, c.retries, c.credited} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// SessionStarted implements session.Observer.
func (c *Collector) SessionStarted(_ context.Context, v session.View) {
	c.started.WithLabelValues(v.Game).Inc()
	c.active.WithLabelValues(v.Game).Inc()
}

// SessionSettled implements session.Observer. Sessions finished by crash
// recovery were never counted as active by this process.
func (c *Collector) SessionSettled(_ context.Context, v session.View, o session.Outcome) {
	outcome := string(o.Kind)
	c.settled.WithLabelValues(v.Game, outcome).Inc()
	c.credited.WithLabelValues(v.Game, outcome).Observe(float64(o.Credited))
	if !v.Recovered {
		c.active.WithLabelValues(v.Game).Dec()
	}
}

// CreditRetried implements session.RetryObserver.
func (c *Collector) CreditRetried(game string) {
	c.retries.WithLabelValues(game).Inc()
}
