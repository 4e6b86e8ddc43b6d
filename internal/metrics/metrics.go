package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SettlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "meditation",
		Name:      "settlements_total",
		Help:      "Settled payment confirmations by outcome.",
	}, []string{"outcome"})

	PreCheckoutTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "meditation",
		Name:      "precheckout_total",
		Help:      "Pre-checkout answers by decision.",
	}, []string{"decision"})

	AccessChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "meditation",
		Name:      "access_checks_total",
		Help:      "Entitlement decisions by result.",
	}, []string{"result"})
)
