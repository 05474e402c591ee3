package discord

import (
	"context"
	"fmt"

	"imaginebot/internal/application"
	discordInfra "imaginebot/internal/infrastructure/discord"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// ResponseHandler は、キューを経由しない即時応答を送信するハンドラーです
type ResponseHandler struct {
	session discordInfra.InteractionSession
	logger  *zap.Logger
}

// NewResponseHandler は新しいResponseHandlerインスタンスを作成します
func NewResponseHandler(session discordInfra.InteractionSession, logger *zap.Logger) *ResponseHandler {
	return &ResponseHandler{
		session: session,
		logger:  logger,
	}
}

// RespondMessage は、インタラクションにテキストで即座に応答します
// 文字数制限を超える場合は切り詰めます
func (h *ResponseHandler) RespondMessage(ctx context.Context, interaction *discordgo.Interaction, content string, ephemeral bool) error {
	if len([]rune(content)) > application.MessageLimit {
		h.logger.Warn("応答が文字数制限を超えたため切り詰めます",
			zap.Int("length", len([]rune(content))))
		content = application.TruncateMessage(content)
	}

	response := &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			AllowedMentions: &discordgo.MessageAllowedMentions{
				Parse: []discordgo.AllowedMentionType{},
			},
		},
	}
	if ephemeral {
		response.Data.Flags = discordgo.MessageFlagsEphemeral
	}

	if err := h.session.InteractionRespond(interaction, response, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("インタラクションへの応答に失敗: %w", err)
	}
	return nil
}
