// Package metrics declares the Prometheus collectors shared by the simulation and the
// server binaries.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Replication metrics
var (
	RPCsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameRPCsSent,
			Help: HelpTextRPCsSent,
		},
		[]string{LabelComponent, LabelMethod},
	)

	RPCsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameRPCsReceived,
			Help: HelpTextRPCsReceived,
		},
		[]string{LabelComponent, LabelMethod},
	)

	RPCsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameRPCsRejected,
			Help: HelpTextRPCsRejected,
		},
		[]string{LabelMethod, LabelReason},
	)

	PropertyUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNamePropertyUpdates,
			Help: HelpTextPropertyUpdates,
		},
		[]string{LabelComponent, LabelProperty},
	)

	Connections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: MetricNameConnections,
			Help: HelpTextConnections,
		},
		[]string{LabelNetMode},
	)

	TickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    MetricNameTickDuration,
			Help:    HelpTextTickDuration,
			Buckets: TickLatencyBuckets,
		},
	)
)

// Gameplay metrics
var (
	EquipTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameEquipTransitions,
			Help: HelpTextEquipTransitions,
		},
		[]string{LabelStatus},
	)

	EquippablesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: MetricNameEquippablesDropped,
			Help: HelpTextEquippablesDropped,
		},
	)

	MontageCorrections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameMontageCorrections,
			Help: HelpTextMontageCorrections,
		},
		[]string{LabelKind},
	)
)
