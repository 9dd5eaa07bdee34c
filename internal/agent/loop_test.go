package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmaraujo/b3analyst/internal/market"
	"github.com/vmaraujo/b3analyst/internal/session"
	"github.com/vmaraujo/b3analyst/internal/tools"
)

// scriptedPlanner replays a fixed sequence of planner replies and
// records the message transcripts it was given.
type scriptedPlanner struct {
	replies     []Message
	err         error
	transcripts [][]Message
}

func (p *scriptedPlanner) Plan(_ context.Context, messages []Message, _ []ToolSpec) (*Message, error) {
	p.transcripts = append(p.transcripts, append([]Message(nil), messages...))
	if p.err != nil {
		return nil, p.err
	}
	round := len(p.transcripts)
	if round > len(p.replies) {
		last := p.replies[len(p.replies)-1]
		return &last, nil
	}
	reply := p.replies[round-1]
	return &reply, nil
}

type loopStore struct {
	series map[string][]market.Bar
}

func (s *loopStore) QueryRange(_ context.Context, tickerSymbol, _, _ string, _ int) ([]market.Bar, bool, error) {
	return s.series[tickerSymbol], false, nil
}

func (s *loopStore) QueryPoint(_ context.Context, _, _ string) (*market.Bar, error) {
	return nil, nil
}

func (s *loopStore) QueryMarket(_ context.Context, _ string) ([]market.Bar, string, error) {
	return nil, "", nil
}

func (s *loopStore) QueryRangeAll(_ context.Context, _, _ string) ([]market.Bar, error) {
	return nil, nil
}

func (s *loopStore) ListTickers(_ context.Context) ([]string, error) {
	tickers := make([]string, 0, len(s.series))
	for t := range s.series {
		tickers = append(tickers, t)
	}
	return tickers, nil
}

func (s *loopStore) LatestDate(_ context.Context) (string, error) { return "", nil }

func newLoopAgent(planner Planner, store *loopStore) (*Agent, *session.Store) {
	registry := tools.NewRegistry(tools.NewService(store, nil))
	sessions := session.NewStore()
	return New(planner, registry, sessions, 0), sessions
}

func toolCallMessage(id, name, arguments string) Message {
	return Message{
		Role: "assistant",
		ToolCalls: []ToolCall{{
			ID:   id,
			Type: "function",
			Function: FunctionCall{
				Name:      name,
				Arguments: arguments,
			},
		}},
	}
}

func TestAskDirectAnswer(t *testing.T) {
	planner := &scriptedPlanner{replies: []Message{
		{Role: "assistant", Content: "A B3 é a bolsa de valores brasileira."},
	}}
	agent, sessions := newLoopAgent(planner, &loopStore{})

	answer, err := agent.Ask(context.Background(), "s1", "O que é a B3?")
	require.NoError(t, err)

	assert.Equal(t, "A B3 é a bolsa de valores brasileira.", answer.Text)
	assert.Equal(t, 1, answer.Rounds)
	assert.Nil(t, answer.Chart)

	history := sessions.History("s1")
	require.Len(t, history, 2)
	assert.Equal(t, session.RoleUser, history[0].Role)
	assert.Equal(t, "O que é a B3?", history[0].Content)
	assert.Equal(t, session.RoleAssistant, history[1].Role)
}

func TestAskToolRoundTrip(t *testing.T) {
	planner := &scriptedPlanner{replies: []Message{
		toolCallMessage("call_1", "list_available_tickers", "{}"),
		{Role: "assistant", Content: "Tenho dados de PETR4.SA."},
	}}
	store := &loopStore{series: map[string][]market.Bar{"PETR4.SA": nil}}
	agent, _ := newLoopAgent(planner, store)

	answer, err := agent.Ask(context.Background(), "s1", "Quais ações você conhece?")
	require.NoError(t, err)
	assert.Equal(t, 2, answer.Rounds)

	// Second round must carry the assistant tool-call message and the
	// tool observation.
	require.Len(t, planner.transcripts, 2)
	second := planner.transcripts[1]
	last := second[len(second)-1]
	assert.Equal(t, "tool", last.Role)
	assert.Equal(t, "call_1", last.ToolCallID)
	assert.Contains(t, last.Content, "PETR4.SA")
}

func TestAskAmbiguousDateShortCircuits(t *testing.T) {
	planner := &scriptedPlanner{replies: []Message{
		{Role: "assistant", Content: "não devia chegar aqui"},
	}}
	agent, sessions := newLoopAgent(planner, &loopStore{})

	answer, err := agent.Ask(context.Background(), "s1", "Qual o preço em 18/09?")
	require.ErrorIs(t, err, ErrAmbiguousDate)
	assert.Equal(t, ClarificationMessage, answer.Text)

	assert.Empty(t, planner.transcripts, "planner must not run")
	assert.Zero(t, sessions.Len("s1"), "nothing committed to the session")
}

func TestAskFullYearDatePasses(t *testing.T) {
	planner := &scriptedPlanner{replies: []Message{
		{Role: "assistant", Content: "resposta"},
	}}
	agent, _ := newLoopAgent(planner, &loopStore{})

	_, err := agent.Ask(context.Background(), "s1", "Qual o preço em 18/09/2024?")
	require.NoError(t, err)
	assert.Len(t, planner.transcripts, 1)
}

func TestAskChartPayloadPropagates(t *testing.T) {
	planner := &scriptedPlanner{replies: []Message{
		toolCallMessage("call_1", "get_volatility_cone", `{"ticker":"PETR4.SA","days_to_predict":5}`),
		{Role: "assistant", Content: "Segue a projeção de volatilidade."},
	}}
	store := &loopStore{series: map[string][]market.Bar{
		"PETR4.SA": conicBars("PETR4.SA", 60),
	}}
	agent, _ := newLoopAgent(planner, store)

	answer, err := agent.Ask(context.Background(), "s1", "Projete a volatilidade da PETR4.SA")
	require.NoError(t, err)

	assert.Equal(t, tools.KindVolatilityCone, answer.ChartKind)
	require.NotNil(t, answer.Chart)
}

func TestAskPlannerFailure(t *testing.T) {
	planner := &scriptedPlanner{err: errors.New("gateway timeout")}
	agent, sessions := newLoopAgent(planner, &loopStore{})

	_, err := agent.Ask(context.Background(), "s1", "pergunta qualquer")
	require.Error(t, err)
	assert.Zero(t, sessions.Len("s1"))
}

func TestAskNonConvergence(t *testing.T) {
	// The planner keeps asking for tools forever.
	planner := &scriptedPlanner{replies: []Message{
		toolCallMessage("call_1", "get_current_datetime", "{}"),
	}}
	agent, sessions := newLoopAgent(planner, &loopStore{})

	_, err := agent.Ask(context.Background(), "s1", "pergunta qualquer")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not converge")
	assert.Zero(t, sessions.Len("s1"))
}

func TestAskPriorHistoryIncluded(t *testing.T) {
	planner := &scriptedPlanner{replies: []Message{
		{Role: "assistant", Content: "resposta 2"},
	}}
	agent, sessions := newLoopAgent(planner, &loopStore{})
	sessions.Append("s1", "pergunta 1", "resposta 1")

	_, err := agent.Ask(context.Background(), "s1", "pergunta 2")
	require.NoError(t, err)

	transcript := planner.transcripts[0]
	require.Len(t, transcript, 4) // system + prior pair + new question
	assert.Equal(t, "system", transcript[0].Role)
	assert.Equal(t, "pergunta 1", transcript[1].Content)
	assert.Equal(t, "resposta 1", transcript[2].Content)
	assert.Equal(t, "pergunta 2", transcript[3].Content)
}

func conicBars(tickerSymbol string, n int) []market.Bar {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]market.Bar, n)
	for i := range bars {
		c := 30 + 0.1*float64(i)
		bars[i] = market.Bar{
			Ticker: tickerSymbol,
			Date:   start.AddDate(0, 0, i),
			Open:   c, High: c * 1.01, Low: c * 0.99, Close: c,
			Volume: 1_000_000,
		}
	}
	return bars
}
