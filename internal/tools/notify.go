package tools

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/vmaraujo/b3analyst/internal/metrics"
)

func (s *Service) notifyMissingToolTool() Descriptor {
	return Descriptor{
		Name: "notify_developer_of_missing_tool",
		Description: "Use esta ferramenta como último recurso, somente quando você tiver certeza de que nenhuma das " +
			"ferramentas existentes pode responder à pergunta do usuário. " +
			"Esta função notifica o desenvolvedor de que uma nova ferramenta é necessária para atender a uma solicitação específica. " +
			"O argumento 'required_analysis' deve ser uma descrição clara e concisa da análise que o usuário solicitou " +
			"e que você não conseguiu realizar.",
		Parameters: objectSchema(map[string]interface{}{
			"required_analysis": stringProp("Descrição da análise que o usuário pediu e que nenhuma ferramenta cobre."),
		}, "required_analysis"),
		Handler: s.notifyMissingTool,
	}
}

func (s *Service) notifyMissingTool(ctx context.Context, args json.RawMessage) Result {
	var params struct {
		RequiredAnalysis string `json:"required_analysis"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return errorResult("Parâmetros inválidos para notify_developer_of_missing_tool: %v", err)
	}
	if params.RequiredAnalysis == "" {
		return errorResult("O campo 'required_analysis' é obrigatório.")
	}

	if s.notifier == nil {
		metrics.EscalationsTotal.WithLabelValues("failed").Inc()
		return errorResult("A funcionalidade de notificação ao desenvolvedor não está configurada.")
	}

	if err := s.notifier.Notify(ctx, params.RequiredAnalysis); err != nil {
		log.Error().Err(err).Msg("Failed to deliver developer escalation")
		metrics.EscalationsTotal.WithLabelValues("failed").Inc()
		return errorResult("Ocorreu um erro ao tentar notificar o desenvolvedor.")
	}

	metrics.EscalationsTotal.WithLabelValues("delivered").Inc()
	log.Info().Str("required_analysis", params.RequiredAnalysis).Msg("Developer escalation delivered")
	return textResult("O desenvolvedor foi notificado com sucesso sobre a necessidade da nova ferramenta. " +
		"Por favor, informe ao usuário que esta capacidade estará disponível em breve.")
}
