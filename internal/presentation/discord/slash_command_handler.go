package discord

import (
	"context"
	"fmt"
	"sync"
	"time"

	"imaginebot/internal/application"
	"imaginebot/internal/domain"
	discordInfra "imaginebot/internal/infrastructure/discord"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// スラッシュコマンド名
const (
	CommandImagine = "imagine"
	CommandHelp    = "help"

	promptOptionName = "prompt"
)

// インタラクションには3秒以内に最初の応答を返す必要がある
const acknowledgeTimeout = 3 * time.Second

// CommandSession は、スラッシュコマンドの登録と応答に使う discordgo.Session のメソッドです
type CommandSession interface {
	discordInfra.InteractionSession
	ApplicationCommandCreate(appID string, guildID string, cmd *discordgo.ApplicationCommand, options ...discordgo.RequestOption) (*discordgo.ApplicationCommand, error)
	ApplicationCommandDelete(appID, guildID, cmdID string, options ...discordgo.RequestOption) error
}

// Imaginer は、/imagine リクエストを処理するサービスです
type Imaginer interface {
	Handle(ctx context.Context, cmd application.ImagineCommand, responder application.Responder) *domain.RequestLifecycle
}

// SlashCommandHandler は、Discordのスラッシュコマンドを処理するハンドラーです
type SlashCommandHandler struct {
	session         CommandSession
	imagineService  Imaginer
	responseHandler *ResponseHandler
	guildID         string
	logger          *zap.Logger

	mu         sync.Mutex
	appID      string
	registered []*discordgo.ApplicationCommand
}

// NewSlashCommandHandler は新しいSlashCommandHandlerインスタンスを作成します
// guildID が空の場合、コマンドはグローバルに登録されます
func NewSlashCommandHandler(
	session CommandSession,
	imagineService Imaginer,
	guildID string,
	logger *zap.Logger,
) *SlashCommandHandler {
	return &SlashCommandHandler{
		session:         session,
		imagineService:  imagineService,
		responseHandler: NewResponseHandler(session, logger),
		guildID:         guildID,
		logger:          logger,
	}
}

// Commands は、登録するスラッシュコマンドの定義を返します
func Commands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        CommandImagine,
			Description: "Generate images from a prompt",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        promptOptionName,
					Description: "Prompt with optional --ar, --cfg, --step and --no parameters",
					Required:    true,
				},
			},
		},
		{
			Name:        CommandHelp,
			Description: "Show how to use /imagine",
		},
	}
}

// SetupSlashCommands は、スラッシュコマンドを登録します
// 途中で失敗した場合も、登録済みのコマンドは RemoveSlashCommands で削除できます
func (h *SlashCommandHandler) SetupSlashCommands(appID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.appID = appID
	for _, command := range Commands() {
		created, err := h.session.ApplicationCommandCreate(appID, h.guildID, command)
		if err != nil {
			return fmt.Errorf("スラッシュコマンド %s の登録に失敗: %w", command.Name, err)
		}
		h.registered = append(h.registered, created)
		h.logger.Info("スラッシュコマンドを登録しました",
			zap.String("command", command.Name),
			zap.String("command_id", created.ID),
			zap.String("guild_id", h.guildID))
	}
	return nil
}

// RemoveSlashCommands は、SetupSlashCommands で登録したコマンドを削除します
func (h *SlashCommandHandler) RemoveSlashCommands() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var firstErr error
	for _, command := range h.registered {
		if err := h.session.ApplicationCommandDelete(h.appID, h.guildID, command.ID); err != nil {
			h.logger.Warn("スラッシュコマンドの削除に失敗しました",
				zap.String("command", command.Name),
				zap.Error(err))
			if firstErr == nil {
				firstErr = fmt.Errorf("スラッシュコマンド %s の削除に失敗: %w", command.Name, err)
			}
			continue
		}
		h.logger.Info("スラッシュコマンドを削除しました", zap.String("command", command.Name))
	}
	h.registered = nil
	return firstErr
}

// handleInteractionCreate は、インタラクション作成イベントを処理します
func (h *SlashCommandHandler) handleInteractionCreate(_ *discordgo.Session, i *discordgo.InteractionCreate) {
	h.HandleInteraction(i.Interaction)
}

// HandleInteraction は、アプリケーションコマンドのインタラクションをコマンドごとに振り分けます
func (h *SlashCommandHandler) HandleInteraction(interaction *discordgo.Interaction) {
	if interaction == nil || interaction.Type != discordgo.InteractionApplicationCommand {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), acknowledgeTimeout)
	defer cancel()

	data := interaction.ApplicationCommandData()
	switch data.Name {
	case CommandImagine:
		h.handleImagineCommand(ctx, interaction, data)
	case CommandHelp:
		h.handleHelpCommand(ctx, interaction)
	default:
		h.logger.Warn("未知のスラッシュコマンド", zap.String("command", data.Name))
	}
}

// handleImagineCommand は、/imagine コマンドを処理します
func (h *SlashCommandHandler) handleImagineCommand(ctx context.Context, interaction *discordgo.Interaction, data discordgo.ApplicationCommandInteractionData) {
	user := interactionUser(interaction)
	cmd := application.ImagineCommand{
		RequestID: uuid.NewString(),
		Prompt:    promptOption(data),
	}
	if user != nil {
		cmd.UserID = user.ID
		cmd.UserMention = user.Mention()
	}

	h.logger.Debug("/imagine を振り分けます",
		zap.String("request_id", cmd.RequestID),
		zap.String("interaction_id", interaction.ID),
		zap.String("guild_id", interaction.GuildID),
		zap.String("channel_id", interaction.ChannelID))

	responder := discordInfra.NewInteractionResponder(h.session, interaction, cmd.UserID)
	h.imagineService.Handle(ctx, cmd, responder)
}

// handleHelpCommand は、/help コマンドを処理します
func (h *SlashCommandHandler) handleHelpCommand(ctx context.Context, interaction *discordgo.Interaction) {
	if err := h.responseHandler.RespondMessage(ctx, interaction, domain.HelpText(), false); err != nil {
		h.logger.Error("ヘルプの送信に失敗しました", zap.Error(err))
	}
}

// interactionUser は、コマンドを実行したユーザーを返します
// サーバー内では Member.User、DM では User に設定されます
func interactionUser(interaction *discordgo.Interaction) *discordgo.User {
	if interaction.Member != nil && interaction.Member.User != nil {
		return interaction.Member.User
	}
	return interaction.User
}

func promptOption(data discordgo.ApplicationCommandInteractionData) string {
	for _, option := range data.Options {
		if option.Name == promptOptionName && option.Type == discordgo.ApplicationCommandOptionString {
			return option.StringValue()
		}
	}
	return ""
}
