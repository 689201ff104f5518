package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConsumerProcessed counts messages whose handler completed.
	ConsumerProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bus_consumer_processed_total",
			Help: "Messages processed per topic and service.",
		},
		[]string{"service", "topic"},
	)

	// ConsumerDropped counts messages whose handler returned an error.
	// Messages are acked on receipt, so these are gone for good.
	ConsumerDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bus_consumer_dropped_total",
			Help: "Messages dropped after a handler error, per topic and service.",
		},
		[]string{"service", "topic"},
	)

	// ConsumerDecodeFailed counts undecodable payloads.
	ConsumerDecodeFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bus_consumer_decode_failed_total",
			Help: "Messages whose payload failed to decode, per topic and service.",
		},
		[]string{"service", "topic"},
	)

	// ConsumerReconnects counts receive-loop restarts.
	ConsumerReconnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bus_consumer_reconnects_total",
			Help: "Receive loop restarts per topic and service.",
		},
		[]string{"service", "topic"},
	)
)
