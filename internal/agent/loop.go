package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vmaraujo/b3analyst/internal/metrics"
	"github.com/vmaraujo/b3analyst/internal/session"
	"github.com/vmaraujo/b3analyst/internal/tools"
)

// DefaultMaxRounds bounds planner iterations per question.
const DefaultMaxRounds = 10

// ErrAmbiguousDate marks a question rejected by the date pre-filter.
var ErrAmbiguousDate = errors.New("question contains a date without an explicit year")

var timeNow = time.Now

// Answer is the outcome of one resolved question. Chart is non-nil
// when a structured tool fired during the resolution; the transport
// layer returns it as chart data alongside or instead of the text.
type Answer struct {
	Text      string
	ChartKind tools.ResultKind
	Chart     interface{}
	Rounds    int
}

// Agent runs the bounded plan-act loop over the tool registry and
// persists resolved turns in the session store.
type Agent struct {
	planner   Planner
	registry  *tools.Registry
	sessions  *session.Store
	toolSpecs []ToolSpec
	maxRounds int
	clock     func() string
}

// New assembles the agent.
func New(planner Planner, registry *tools.Registry, sessions *session.Store, maxRounds int) *Agent {
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	return &Agent{
		planner:   planner,
		registry:  registry,
		sessions:  sessions,
		toolSpecs: SpecsFromRegistry(registry),
		maxRounds: maxRounds,
		clock:     func() string { return tools.CurrentDatetimeSP(timeNow()) },
	}
}

// Ask resolves one natural-language question for a session. The
// ambiguous-date pre-filter short-circuits before the planner runs and
// commits nothing to the session.
func (a *Agent) Ask(ctx context.Context, sessionID, question string) (*Answer, error) {
	if HasAmbiguousDate(question) {
		log.Info().Str("session_id", sessionID).Msg("Question rejected by ambiguous-date pre-filter")
		metrics.QuestionsTotal.WithLabelValues("rejected_ambiguous_date").Inc()
		return &Answer{Text: ClarificationMessage}, ErrAmbiguousDate
	}

	messages := a.buildMessages(sessionID, question)

	var (
		chart     interface{}
		chartKind tools.ResultKind
		seenCalls = make(map[string]int)
	)

	for round := 1; round <= a.maxRounds; round++ {
		reply, err := a.planner.Plan(ctx, messages, a.toolSpecs)
		if err != nil {
			metrics.QuestionsTotal.WithLabelValues("failed").Inc()
			return nil, fmt.Errorf("planner round %d: %w", round, err)
		}

		if len(reply.ToolCalls) == 0 {
			a.sessions.Append(sessionID, question, reply.Content)
			metrics.QuestionsTotal.WithLabelValues("answered").Inc()
			metrics.PlannerRounds.Observe(float64(round))

			log.Info().
				Str("session_id", sessionID).
				Int("rounds", round).
				Bool("has_chart", chart != nil).
				Msg("Question answered")

			return &Answer{Text: reply.Content, ChartKind: chartKind, Chart: chart, Rounds: round}, nil
		}

		messages = append(messages, *reply)

		for _, call := range reply.ToolCalls {
			signature := call.Function.Name + "|" + call.Function.Arguments
			seenCalls[signature]++
			// Repeats are discouraged by instruction only; the
			// planner may still issue them, so they run normally.
			if seenCalls[signature] > 1 {
				log.Warn().
					Str("tool", call.Function.Name).
					Int("occurrences", seenCalls[signature]).
					Msg("Planner repeated an identical tool call")
			}

			result := a.registry.Dispatch(ctx, call.Function.Name, json.RawMessage(call.Function.Arguments))
			if result.Structured() {
				chart = result.Payload
				chartKind = result.Kind
			}

			messages = append(messages, Message{
				Role:       "tool",
				ToolCallID: call.ID,
				Name:       call.Function.Name,
				Content:    result.Observation(),
			})
		}
	}

	metrics.QuestionsTotal.WithLabelValues("failed").Inc()
	return nil, fmt.Errorf("planner did not converge within %d rounds", a.maxRounds)
}

// buildMessages assembles system prompt, prior session turns and the
// new question.
func (a *Agent) buildMessages(sessionID, question string) []Message {
	history := a.sessions.History(sessionID)

	messages := make([]Message, 0, len(history)+2)
	messages = append(messages, Message{Role: "system", Content: SystemPrompt(a.clock())})
	for _, turn := range history {
		messages = append(messages, Message{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, Message{Role: "user", Content: question})
	return messages
}
