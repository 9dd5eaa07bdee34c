// The mcp-server binary exposes the analysis tool catalogue over a
// JSON-RPC stdio transport so external agent hosts can call the same
// tools the built-in planner uses.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vmaraujo/b3analyst/internal/config"
	"github.com/vmaraujo/b3analyst/internal/db"
	"github.com/vmaraujo/b3analyst/internal/notify"
	"github.com/vmaraujo/b3analyst/internal/tools"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	// stdout is reserved for the protocol
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log.Info().Msg("b3analyst tool server starting")

	ctx := context.Background()
	database, err := db.New(ctx, cfg.Database.GetDSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close()

	var notifier tools.Notifier
	if cfg.Notifier.DiscordWebhookURL != "" {
		if notifier, err = notify.NewDiscordNotifier(cfg.Notifier.DiscordWebhookURL); err != nil {
			log.Fatal().Err(err).Msg("Failed to create escalation notifier")
		}
	}

	registry := tools.NewRegistry(tools.NewService(db.NewHistoryStore(database.Pool()), notifier))

	server := &ToolServer{registry: registry}
	if err := server.Run(ctx, os.Stdin, os.Stdout); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

// ToolServer handles the JSON-RPC protocol over stdio.
type ToolServer struct {
	registry *tools.Registry
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"params"`
}

type rpcResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int         `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *rpcError   `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Run serves requests until the client disconnects.
func (s *ToolServer) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	log.Info().Msg("Tool server ready, listening on stdio")

	decoder := json.NewDecoder(in)
	encoder := json.NewEncoder(out)

	for {
		var request rpcRequest
		if err := decoder.Decode(&request); err != nil {
			if errors.Is(err, io.EOF) {
				log.Info().Msg("Client disconnected")
				return nil
			}
			log.Error().Err(err).Msg("Failed to decode request")
			continue
		}

		log.Debug().
			Str("method", request.Method).
			Str("tool", request.Params.Name).
			Msg("Received request")

		response := s.handleRequest(ctx, &request)

		if err := encoder.Encode(response); err != nil {
			log.Error().Err(err).Msg("Failed to encode response")
			return err
		}
	}
}

func (s *ToolServer) handleRequest(ctx context.Context, req *rpcRequest) *rpcResponse {
	response := &rpcResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
	}

	switch req.Method {
	case "tools/list":
		response.Result = s.listTools()

	case "tools/call":
		result := s.registry.Dispatch(ctx, req.Params.Name, req.Params.Arguments)
		if result.Kind == tools.KindError {
			response.Error = &rpcError{Code: -32000, Message: result.Text}
			break
		}
		response.Result = map[string]interface{}{
			"kind":    string(result.Kind),
			"content": result.Observation(),
		}

	default:
		response.Error = &rpcError{
			Code:    -32601,
			Message: fmt.Sprintf("Method not found: %s", req.Method),
		}
	}

	return response
}

func (s *ToolServer) listTools() interface{} {
	descriptors := s.registry.List()
	list := make([]map[string]interface{}, len(descriptors))
	for i, d := range descriptors {
		list[i] = map[string]interface{}{
			"name":        d.Name,
			"description": d.Description,
			"inputSchema": d.Parameters,
		}
	}
	return map[string]interface{}{"tools": list}
}
