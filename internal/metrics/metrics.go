// Package metrics exposes Prometheus instrumentation for the agent:
// tool dispatches, planner rounds and escalations.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ToolCallsTotal counts tool dispatches by tool name and outcome
	// ("ok", "error", "unknown").
	ToolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_tool_calls_total",
		Help: "Total tool invocations dispatched by the orchestration loop",
	}, []string{"tool", "status"})

	// ToolCallDuration observes tool handler latency per tool.
	ToolCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agent_tool_call_duration_seconds",
		Help:    "Duration of tool handler executions",
		Buckets: prometheus.DefBuckets,
	}, []string{"tool"})

	// QuestionsTotal counts questions by outcome ("answered",
	// "rejected_ambiguous_date", "failed").
	QuestionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_questions_total",
		Help: "Total questions processed by the agent",
	}, []string{"outcome"})

	// PlannerRounds observes how many planner rounds each question took.
	PlannerRounds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "agent_planner_rounds",
		Help:    "Planner rounds per question resolution",
		Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10},
	})

	// EscalationsTotal counts missing-capability escalations by
	// delivery outcome ("delivered", "failed").
	EscalationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_escalations_total",
		Help: "Missing-capability escalations sent to the developer channel",
	}, []string{"status"})
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
