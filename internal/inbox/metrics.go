package inbox

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics are the inbox counters exported at /metrics.
//
//   - folio_inbox_messages_appended_total{sender}
//   - folio_inbox_conversations_created_total{status}
//   - folio_inbox_spam_flagged_total
//   - folio_inbox_classifier_failures_total
//   - folio_inbox_persist_failures_total{mode}
//   - folio_inbox_snapshots_applied_total
//   - folio_inbox_conversations
type Metrics struct {
	MessagesAppended     *prometheus.CounterVec
	ConversationsCreated *prometheus.CounterVec
	SpamFlagged          prometheus.Counter
	ClassifierFailures   prometheus.Counter
	PersistFailures      *prometheus.CounterVec
	SnapshotsApplied     prometheus.Counter
	Conversations        prometheus.Gauge
}

// NewMetrics registers the inbox metrics once per process.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			MessagesAppended: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "folio_inbox_messages_appended_total",
				Help: "Messages appended to conversations",
			}, []string{"sender"}),
			ConversationsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "folio_inbox_conversations_created_total",
				Help: "Conversations created, by initial status",
			}, []string{"status"}),
			SpamFlagged: promauto.NewCounter(prometheus.CounterOpts{
				Name: "folio_inbox_spam_flagged_total",
				Help: "Visitor messages flagged as spam",
			}),
			ClassifierFailures: promauto.NewCounter(prometheus.CounterOpts{
				Name: "folio_inbox_classifier_failures_total",
				Help: "Spam checks that failed and were treated as not spam",
			}),
			PersistFailures: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "folio_inbox_persist_failures_total",
				Help: "Conversation writes that failed, by repository mode",
			}, []string{"mode"}),
			SnapshotsApplied: promauto.NewCounter(prometheus.CounterOpts{
				Name: "folio_inbox_snapshots_applied_total",
				Help: "Replicated snapshots that replaced the in-memory collection",
			}),
			Conversations: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "folio_inbox_conversations",
				Help: "Conversations currently held in memory",
			}),
		}
	})
	return globalMetrics
}
