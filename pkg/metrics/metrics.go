package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsCreated counts customer-initiated chat sessions.
	SessionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hotpot_chat_sessions_created_total",
			Help: "Total number of chat sessions created",
		},
	)

	// SessionTransitions counts state changes by target state (assigned|ended).
	SessionTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hotpot_chat_session_transitions_total",
			Help: "Total number of chat session state transitions",
		},
		[]string{"state"},
	)

	// JoinConflicts counts manager join attempts that lost the assignment race.
	JoinConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hotpot_chat_join_conflicts_total",
			Help: "Total number of rejected join attempts on an already assigned or ended session",
		},
	)

	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hotpot_chat_messages_sent_total",
			Help: "Total number of chat messages persisted",
		},
	)

	MessagesRead = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hotpot_chat_messages_read_total",
			Help: "Total number of chat messages marked read",
		},
	)

	// PushDispatches counts outbound realtime events by event name and result (delivered|offline|dropped).
	PushDispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hotpot_chat_push_dispatches_total",
			Help: "Total number of realtime push dispatch attempts",
		},
		[]string{"event", "result"},
	)

	// BrokerPublishes counts mirrored events by result (ok|error).
	BrokerPublishes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hotpot_chat_broker_publishes_total",
			Help: "Total number of chat events mirrored to the message broker",
		},
		[]string{"result"},
	)

	// LiveConnections tracks open websocket connections.
	LiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hotpot_chat_live_connections",
			Help: "Number of open realtime connections",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hotpot_chat_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)
