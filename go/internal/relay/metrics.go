package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var connectionsGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "muyu_relay_connections",
	Help: "Number of live websocket connections registered with the relay",
})

var clicksReceivedCounter = promauto.NewCounter(prometheus.CounterOpts{
	Name: "muyu_relay_clicks_received_total",
	Help: "The total number of taps accepted by the relay",
})

var batchesReceivedCounter = promauto.NewCounter(prometheus.CounterOpts{
	Name: "muyu_relay_batches_received_total",
	Help: "The total number of clicks frames accepted by the relay",
})

var broadcastSendsCounter = promauto.NewCounter(prometheus.CounterOpts{
	Name: "muyu_relay_broadcast_sends_total",
	Help: "The total number of frames queued to receivers during fan-out",
})

var evictionsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "muyu_relay_evictions_total",
	Help: "Connections removed from the registry, by reason",
}, []string{"reason"})

var rejectedMessagesCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "muyu_relay_rejected_messages_total",
	Help: "Inbound frames discarded without closing the connection",
}, []string{"reason"})

var sinkDroppedCounter = promauto.NewCounter(prometheus.CounterOpts{
	Name: "muyu_relay_sink_dropped_total",
	Help: "Accepted batches not handed to the hit sink because its queue was full",
})
