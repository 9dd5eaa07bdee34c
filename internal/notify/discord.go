// Package notify delivers missing-capability escalations to a Discord
// webhook, behind a circuit breaker so a dead webhook degrades into
// fast soft failures instead of hanging every escalation.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// ErrNotify marks an escalation that could not be delivered.
var ErrNotify = errors.New("escalation delivery failed")

// Circuit breaker settings for the webhook.
const (
	webhookMinRequests  = 3
	webhookFailureRatio = 0.6
	webhookOpenTimeout  = 60 * time.Second
	webhookTimeout      = 10 * time.Second
)

const embedColorRed = 15158332

// DiscordNotifier posts escalation embeds to a Discord webhook.
type DiscordNotifier struct {
	webhookURL string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

// NewDiscordNotifier creates a notifier for one webhook URL.
func NewDiscordNotifier(webhookURL string) (*DiscordNotifier, error) {
	if webhookURL == "" {
		return nil, fmt.Errorf("webhook URL is required")
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "discord-webhook",
		Timeout: webhookOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < webhookMinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= webhookFailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Webhook circuit breaker state changed")
		},
	})

	return &DiscordNotifier{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: webhookTimeout},
		breaker:    breaker,
	}, nil
}

type embedField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type embedFooter struct {
	Text string `json:"text"`
}

type embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Color       int          `json:"color"`
	Fields      []embedField `json:"fields"`
	Footer      embedFooter  `json:"footer"`
}

type webhookMessage struct {
	Embeds []embed `json:"embeds"`
}

// Notify posts the missing-capability embed. Failures are reported to
// the caller but carry no retry; the tool layer turns them into a soft
// user-facing message.
func (n *DiscordNotifier) Notify(ctx context.Context, requiredAnalysis string) error {
	message := webhookMessage{
		Embeds: []embed{{
			Title:       "🚨 Nova Ferramenta Necessária!",
			Description: "O agente de IA identificou a necessidade de uma nova capacidade para responder a uma consulta de usuário.",
			Color:       embedColorRed,
			Fields: []embedField{{
				Name:  "Análise Solicitada",
				Value: fmt.Sprintf("```%s```", requiredAnalysis),
			}},
			Footer: embedFooter{
				Text: "Por favor, considere desenvolver uma nova ferramenta para atender a esta demanda.",
			},
		}},
	}

	_, err := n.breaker.Execute(func() (interface{}, error) {
		return nil, n.post(ctx, message)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotify, err)
	}

	log.Info().Msg("Escalation delivered to Discord")
	return nil
}

func (n *DiscordNotifier) post(ctx context.Context, message webhookMessage) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(payload))
	}
	return nil
}
