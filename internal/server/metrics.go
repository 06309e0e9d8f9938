package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	chatTurns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studyflow_chat_turns_total",
			Help: "Total chat turns by message category and routed model",
		},
		[]string{"category", "model"},
	)
	chatFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "studyflow_chat_failures_total",
			Help: "Chat turns whose completion call failed",
		},
	)
	documentUploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studyflow_document_uploads_total",
			Help: "Document uploads by outcome",
		},
		[]string{"status"},
	)
	topicFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "studyflow_topic_fallbacks_total",
			Help: "Document classifications that fell back to the general default",
		},
	)
	janitorDeletes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "studyflow_janitor_sessions_deleted_total",
			Help: "Sessions removed by the retention janitor",
		},
	)
)
