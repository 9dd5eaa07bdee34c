// Package tools implements the fixed catalogue of capabilities the
// planner can invoke: data retrieval, quantitative analysis and the
// missing-capability escalation. Each tool converts every failure into
// a readable result; nothing here raises to the orchestration loop.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vmaraujo/b3analyst/internal/analytics"
	"github.com/vmaraujo/b3analyst/internal/db"
	"github.com/vmaraujo/b3analyst/internal/metrics"
)

// ResultKind tags the shape of a tool result so the orchestration loop
// and the transport layer can dispatch on it without duck typing.
type ResultKind string

const (
	KindText           ResultKind = "text"
	KindError          ResultKind = "error"
	KindVolatilityCone ResultKind = "volatility_cone"
	KindRanking        ResultKind = "ranking"
	KindMarketSummary  ResultKind = "market_summary"
)

// Result is the outcome of one tool invocation: either plain text, a
// readable error, or a structured chart payload.
type Result struct {
	Kind    ResultKind
	Text    string
	Payload interface{}
}

// Structured reports whether the result carries a chart payload.
func (r Result) Structured() bool {
	return r.Kind == KindVolatilityCone || r.Kind == KindRanking || r.Kind == KindMarketSummary
}

// Observation renders the result as the text fed back to the planner.
func (r Result) Observation() string {
	if !r.Structured() {
		return r.Text
	}
	data, err := json.Marshal(r.Payload)
	if err != nil {
		return fmt.Sprintf("erro ao serializar resultado: %v", err)
	}
	return string(data)
}

func textResult(s string) Result {
	return Result{Kind: KindText, Text: s}
}

func errorResult(format string, args ...interface{}) Result {
	return Result{Kind: KindError, Text: fmt.Sprintf(format, args...)}
}

// Descriptor describes one callable tool. The Description is part of
// the functional contract: it is the only domain knowledge the planner
// has, so it states parameter formats and disambiguation rules inline.
type Descriptor struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
	Handler     func(ctx context.Context, args json.RawMessage) Result
}

// Notifier delivers a missing-capability escalation to an external
// channel.
type Notifier interface {
	Notify(ctx context.Context, requiredAnalysis string) error
}

// Service carries the collaborators the tools need.
type Service struct {
	store    db.HistoryStore
	notifier Notifier
	now      func() time.Time
}

// NewService wires the tool implementations to their collaborators.
func NewService(store db.HistoryStore, notifier Notifier) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		now:      time.Now,
	}
}

// Registry is the immutable, ordered set of tools active for the
// process.
type Registry struct {
	order  []string
	byName map[string]Descriptor
}

// NewRegistry builds the fixed tool catalogue.
func NewRegistry(svc *Service) *Registry {
	r := &Registry{byName: make(map[string]Descriptor)}

	for _, d := range []Descriptor{
		svc.stockDataTool(),
		svc.volatilityConeTool(),
		svc.marketSummaryTool(),
		svc.topStocksTool(),
		svc.currentDatetimeTool(),
		svc.listTickersTool(),
		svc.assetAnalyticsTool(),
		svc.compareAssetsTool(),
		svc.notifyMissingToolTool(),
	} {
		r.order = append(r.order, d.Name)
		r.byName[d.Name] = d
	}

	log.Info().Int("tools", len(r.order)).Msg("Tool registry initialized")
	return r
}

// List returns the descriptors in registration order.
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// Dispatch invokes a tool by name. Unknown names produce an error
// result, never a hard failure.
func (r *Registry) Dispatch(ctx context.Context, name string, args json.RawMessage) Result {
	d, ok := r.byName[name]
	if !ok {
		log.Warn().Str("tool", name).Msg("Planner requested unknown tool")
		metrics.ToolCallsTotal.WithLabelValues(name, "unknown").Inc()
		return errorResult("Ferramenta desconhecida: %s.", name)
	}

	start := time.Now()
	result := d.Handler(ctx, args)
	duration := time.Since(start)

	status := "ok"
	if result.Kind == KindError {
		status = "error"
	}
	metrics.ToolCallsTotal.WithLabelValues(name, status).Inc()
	metrics.ToolCallDuration.WithLabelValues(name).Observe(duration.Seconds())

	log.Info().
		Str("tool", name).
		Str("kind", string(result.Kind)).
		Dur("duration", duration).
		Msg("Tool dispatched")

	return result
}

func coneResult(v *analytics.VolatilityConeResult) Result {
	return Result{Kind: KindVolatilityCone, Payload: v}
}

func rankingResult(v *analytics.RankingResult) Result {
	return Result{Kind: KindRanking, Payload: v}
}

func summaryResult(v *analytics.MarketSummaryResult) Result {
	return Result{Kind: KindMarketSummary, Payload: v}
}
