package metrics

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/quorvia/erpcore/internal/domain"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Ledger metrics
	EntriesPosted   prometheus.Counter
	EntriesReversed prometheus.Counter
	PeriodsClosed   prometheus.Counter

	// Approval metrics
	RequestsDecided *prometheus.CounterVec

	// Automation metrics
	ExecutionsFinished *prometheus.CounterVec
	JobsFired          prometheus.Counter

	// Costing metrics
	StockMovements  *prometheus.CounterVec
	CostAdjustments prometheus.Counter

	// Credit metrics
	HoldsPlaced   prometheus.Counter
	HoldsReleased prometheus.Counter
	CreditAlerts  prometheus.Counter

	// Outbox metrics
	OutboxPublished     prometheus.Counter
	OutboxPublishErrors prometheus.Counter
}

// New creates and registers all Prometheus metrics
func New() *Metrics {
	return &Metrics{
		// Ledger metrics
		EntriesPosted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "erpcore_journal_entries_posted_total",
			Help: "Total number of journal entries posted",
		}),
		EntriesReversed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "erpcore_journal_entries_reversed_total",
			Help: "Total number of journal entries reversed",
		}),
		PeriodsClosed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "erpcore_periods_closed_total",
			Help: "Total number of accounting periods closed",
		}),

		// Approval metrics
		RequestsDecided: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "erpcore_approval_requests_decided_total",
				Help: "Total approval requests reaching a terminal status",
			},
			[]string{"status"},
		),

		// Automation metrics
		ExecutionsFinished: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "erpcore_executions_finished_total",
				Help: "Total workflow executions finished by status",
			},
			[]string{"status"},
		),
		JobsFired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "erpcore_scheduled_jobs_fired_total",
			Help: "Total scheduled job firings",
		}),

		// Costing metrics
		StockMovements: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "erpcore_stock_movements_total",
				Help: "Total stock movements by direction",
			},
			[]string{"direction"},
		),
		CostAdjustments: promauto.NewCounter(prometheus.CounterOpts{
			Name: "erpcore_cost_adjustments_posted_total",
			Help: "Total cost adjustments posted",
		}),

		// Credit metrics
		HoldsPlaced: promauto.NewCounter(prometheus.CounterOpts{
			Name: "erpcore_credit_holds_placed_total",
			Help: "Total credit holds placed",
		}),
		HoldsReleased: promauto.NewCounter(prometheus.CounterOpts{
			Name: "erpcore_credit_holds_released_total",
			Help: "Total credit holds released",
		}),
		CreditAlerts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "erpcore_credit_alerts_raised_total",
			Help: "Total credit alerts raised",
		}),

		// Outbox metrics
		OutboxPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "erpcore_outbox_events_published_total",
			Help: "Total outbox events published to the bus",
		}),
		OutboxPublishErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "erpcore_outbox_publish_errors_total",
			Help: "Total outbox publish failures",
		}),
	}
}

// EventSource is the subscription surface of the in-process bus.
type EventSource interface {
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
}

// watchedTopics are the bus topics that carry engine activity.
var watchedTopics = []string{
	domain.EventEntryPosted,
	domain.EventEntryReversed,
	domain.EventPeriodClosed,
	domain.EventRequestApproved,
	domain.EventRequestRejected,
	domain.EventRequestCancelled,
	domain.EventRequestEscalated,
	domain.EventInventoryReceipt,
	domain.EventInventoryIssue,
	domain.EventCostAdjusted,
	domain.EventHoldPlaced,
	domain.EventHoldReleased,
	domain.EventCreditAlertRaised,
	domain.EventExecutionCompleted,
	domain.EventExecutionFailed,
}

// WatchBus subscribes to every engine topic and counts events as they
// cross the bus. It returns once all subscriptions are set up; counting
// continues until the context is cancelled or the bus closes.
func (m *Metrics) WatchBus(ctx context.Context, src EventSource) error {
	for _, topic := range watchedTopics {
		msgs, err := src.Subscribe(ctx, topic)
		if err != nil {
			return err
		}
		go func(topic string, msgs <-chan *message.Message) {
			for msg := range msgs {
				m.ObserveEvent(topic)
				msg.Ack()
			}
		}(topic, msgs)
	}
	return nil
}

// ObserveEvent increments the counter backing the given topic.
func (m *Metrics) ObserveEvent(topic string) {
	switch topic {
	case domain.EventEntryPosted:
		m.EntriesPosted.Inc()
	case domain.EventEntryReversed:
		m.EntriesReversed.Inc()
	case domain.EventPeriodClosed:
		m.PeriodsClosed.Inc()
	case domain.EventRequestApproved:
		m.RequestsDecided.WithLabelValues("approved").Inc()
	case domain.EventRequestRejected:
		m.RequestsDecided.WithLabelValues("rejected").Inc()
	case domain.EventRequestCancelled:
		m.RequestsDecided.WithLabelValues("cancelled").Inc()
	case domain.EventRequestEscalated:
		m.RequestsDecided.WithLabelValues("escalated").Inc()
	case domain.EventInventoryReceipt:
		m.StockMovements.WithLabelValues("receipt").Inc()
	case domain.EventInventoryIssue:
		m.StockMovements.WithLabelValues("issue").Inc()
	case domain.EventCostAdjusted:
		m.CostAdjustments.Inc()
	case domain.EventHoldPlaced:
		m.HoldsPlaced.Inc()
	case domain.EventHoldReleased:
		m.HoldsReleased.Inc()
	case domain.EventCreditAlertRaised:
		m.CreditAlerts.Inc()
	case domain.EventExecutionCompleted:
		m.ExecutionsFinished.WithLabelValues("completed").Inc()
	case domain.EventExecutionFailed:
		m.ExecutionsFinished.WithLabelValues("failed").Inc()
	}
}
