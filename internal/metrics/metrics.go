package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics stores Prometheus collectors used across the service.
type Metrics struct {
	SessionsStarted  prometheus.Counter
	SessionsEnded    *prometheus.CounterVec
	MeteringTicks    prometheus.Counter
	AmountDeducted   prometheus.Counter
	WalletExhausted  prometheus.Counter
	MessagesAppended *prometheus.CounterVec
	AIRequests       *prometheus.CounterVec
	AILatency        *prometheus.HistogramVec
}

var (
	regOnce         sync.Once
	metricsInstance *Metrics
)

// Registry builds and registers the metrics singleton with optional namespace.
func Registry(namespace string) *Metrics {
	regOnce.Do(func() {
		metricsInstance = &Metrics{
			SessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_started_total",
				Help:      "Total live chat sessions started.",
			}),
			SessionsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_ended_total",
				Help:      "Total live chat sessions ended, by reason.",
			}, []string{"reason"}),
			MeteringTicks: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "metering_ticks_total",
				Help:      "Total wallet metering ticks processed.",
			}),
			AmountDeducted: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "wallet_deducted_rupees_total",
				Help:      "Total amount deducted from the wallet.",
			}),
			WalletExhausted: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "wallet_exhausted_total",
				Help:      "Times the wallet balance reached zero during metering.",
			}),
			MessagesAppended: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_appended_total",
				Help:      "Messages appended to the session log, by origin.",
			}, []string{"origin"}),
			AIRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ai_requests_total",
				Help:      "Total AI proxy requests by kind and outcome.",
			}, []string{"kind", "status"}),
			AILatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ai_request_duration_seconds",
				Help:      "Latency distribution for AI proxy calls.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"kind", "status"}),
		}

		prometheus.MustRegister(
			metricsInstance.SessionsStarted,
			metricsInstance.SessionsEnded,
			metricsInstance.MeteringTicks,
			metricsInstance.AmountDeducted,
			metricsInstance.WalletExhausted,
			metricsInstance.MessagesAppended,
			metricsInstance.AIRequests,
			metricsInstance.AILatency,
		)
	})
	return metricsInstance
}
