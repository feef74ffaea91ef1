package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var impactCalculations = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "promotion",
		Subsystem: "engine",
		Name:      "impact_calculations_total",
		Help:      "Promotion impact calculations by result.",
	},
	[]string{"result"},
)
