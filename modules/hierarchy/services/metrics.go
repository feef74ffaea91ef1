package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var hierarchyMutations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "hierarchy",
	Subsystem: "service",
	Name:      "operations_total",
	Help:      "Total number of hierarchy operations broken down by operation and result.",
}, []string{"op", "result"})
