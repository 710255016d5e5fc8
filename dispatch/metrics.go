package dispatch

import "github.com/prometheus/client_golang/prometheus"

// Metrics collects the Prometheus counters and gauges a Loop updates as it
// runs. NewMetrics constructs the collectors and registers them.
type Metrics struct {
	ConnectionsByState *prometheus.GaugeVec
	SegmentsAccepted   prometheus.Counter
	SegmentsRejected   prometheus.Counter
	ResetsSent         prometheus.Counter
	BytesRelayed       prometheus.Counter
}

// NewMetrics constructs a Metrics with every collector registered against
// reg. No histograms or timers are exposed: this core has no
// retransmission/backoff machinery whose latency would be worth measuring.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConnectionsByState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "rstcp",
			Name:      "connections",
			Help:      "Number of tracked connections by TCP state.",
		}, []string{"state"}),
		SegmentsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rstcp",
			Name:      "segments_accepted_total",
			Help:      "Segments routed to a tracked connection, whether or not they passed the acceptability test.",
		}),
		SegmentsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rstcp",
			Name:      "segments_rejected_total",
			Help:      "Datagrams dropped for failing IPv4 or TCP header validation; acceptability failures are not counted.",
		}),
		ResetsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rstcp",
			Name:      "resets_sent_total",
			Help:      "RST segments emitted.",
		}),
		BytesRelayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rstcp",
			Name:      "bytes_relayed_total",
			Help:      "Payload bytes of inbound segments routed to a tracked connection.",
		}),
	}
	reg.MustRegister(m.ConnectionsByState, m.SegmentsAccepted, m.SegmentsRejected, m.ResetsSent, m.BytesRelayed)
	return m
}
