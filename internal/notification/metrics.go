package notification

import "github.com/prometheus/client_golang/prometheus"

var (
	enqueuedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gamification_service",
		Subsystem: "notifications",
		Name:      "enqueued_total",
		Help:      "Notifications accepted into the dispatch queue.",
	})

	droppedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gamification_service",
		Subsystem: "notifications",
		Name:      "dropped_total",
		Help:      "Notifications dropped because the queue was full or the dispatcher had stopped.",
	})

	deliveredCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gamification_service",
		Subsystem: "notifications",
		Name:      "delivered_total",
		Help:      "Notifications delivered, labeled by sink.",
	}, []string{"sink"})

	failedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gamification_service",
		Subsystem: "notifications",
		Name:      "failed_total",
		Help:      "Notifications that exhausted their delivery attempts, labeled by sink.",
	}, []string{"sink"})

	retryCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gamification_service",
		Subsystem: "notifications",
		Name:      "retries_total",
		Help:      "Delivery attempts retried after a failure, labeled by sink.",
	}, []string{"sink"})

	queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gamification_service",
		Subsystem: "notifications",
		Name:      "queue_depth",
		Help:      "Notifications waiting in the dispatch queue.",
	})
)

func init() {
	prometheus.MustRegister(enqueuedCounter, droppedCounter, deliveredCounter, failedCounter, retryCounter, queueDepth)
}
