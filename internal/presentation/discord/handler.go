package discord

import (
	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// DiscordHandler は、Discordのイベントハンドラです
type DiscordHandler struct {
	session             *discordgo.Session
	slashCommandHandler *SlashCommandHandler
	logger              *zap.Logger
}

// NewDiscordHandler は新しいDiscordHandlerインスタンスを作成します
func NewDiscordHandler(
	session *discordgo.Session,
	slashCommandHandler *SlashCommandHandler,
	logger *zap.Logger,
) *DiscordHandler {
	return &DiscordHandler{
		session:             session,
		slashCommandHandler: slashCommandHandler,
		logger:              logger,
	}
}

// SetupHandlers は、Discordのイベントハンドラを設定します
func (h *DiscordHandler) SetupHandlers() {
	h.session.AddHandler(h.onReady)

	if h.slashCommandHandler != nil {
		h.session.AddHandler(h.slashCommandHandler.handleInteractionCreate)
	}
}

// onReady は、ゲートウェイへの接続完了を記録します
func (h *DiscordHandler) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	if r.User == nil {
		h.logger.Info("Discordに接続しました")
		return
	}
	h.logger.Info("Discordに接続しました",
		zap.String("username", r.User.Username),
		zap.String("user_id", r.User.ID),
		zap.Int("guilds", len(r.Guilds)))
}
