// Package metrics exposes Prometheus counters for the RTMP connection
// engine: accepted/closed connections, chunks read, and messages dispatched
// by type. Counters are package-level and safe for concurrent increment, so
// the connection engine can call them directly without a context object.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ConnectionsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rtmp_ingest",
		Name:      "connections_accepted_total",
		Help:      "Total number of accepted TCP connections that completed the RTMP handshake.",
	})

	ConnectionsClosed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rtmp_ingest",
		Name:      "connections_closed_total",
		Help:      "Total number of connections that have been closed.",
	})

	HandshakeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rtmp_ingest",
		Name:      "handshake_failures_total",
		Help:      "Total number of handshake attempts that failed validation.",
	})

	ChunksRead = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rtmp_ingest",
		Name:      "chunks_read_total",
		Help:      "Total number of chunk headers successfully parsed off the wire.",
	})

	MessagesDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rtmp_ingest",
		Name:      "messages_dispatched_total",
		Help:      "Total number of reassembled messages routed by type id.",
	}, []string{"type_id"})

	StreamsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "rtmp_ingest",
		Name:      "streams_active",
		Help:      "Current number of streams with a registered publisher.",
	})
)

// MessageTypeLabel converts an RTMP message type id into the string label
// used by the MessagesDispatched vector.
func MessageTypeLabel(typeID uint8) string {
	return strconv.Itoa(int(typeID))
}
