package discord

import (
	"context"
	"fmt"
	"os"

	"imaginebot/internal/application"

	"github.com/bwmarrin/discordgo"
)

// InteractionSession は、インタラクションへの応答に使う discordgo.Session のメソッドです
type InteractionSession interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	FollowupMessageCreate(interaction *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// InteractionResponder は、1つのスラッシュコマンドのインタラクションに応答します
type InteractionResponder struct {
	session     InteractionSession
	interaction *discordgo.Interaction
	userID      string
}

var _ application.Responder = (*InteractionResponder)(nil)

// NewInteractionResponder は新しいInteractionResponderインスタンスを作成します
// userID は、成功時のキャプションでメンションを許可するユーザーです
func NewInteractionResponder(session InteractionSession, interaction *discordgo.Interaction, userID string) *InteractionResponder {
	return &InteractionResponder{
		session:     session,
		interaction: interaction,
		userID:      userID,
	}
}

// Defer は、「考え中」の応答を返して結果を後から送れるようにします
func (r *InteractionResponder) Defer(ctx context.Context) error {
	err := r.session.InteractionRespond(r.interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("インタラクションの遅延応答に失敗: %w", err)
	}
	return nil
}

// Reject は、遅延応答をせずに即座にメッセージを返します
func (r *InteractionResponder) Reject(ctx context.Context, content string) error {
	err := r.session.InteractionRespond(r.interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: application.TruncateMessage(content),
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("インタラクションへの応答に失敗: %w", err)
	}
	return nil
}

// Succeed は、画像を添付したフォローアップメッセージを送信します
func (r *InteractionResponder) Succeed(ctx context.Context, content string, images []application.StoredImage) error {
	files, closeFiles, err := openFiles(images)
	if err != nil {
		return err
	}
	defer closeFiles()

	params := &discordgo.WebhookParams{
		Content:         application.TruncateMessage(content),
		Files:           files,
		AllowedMentions: r.allowedMentions(),
	}
	if _, err := r.session.FollowupMessageCreate(r.interaction, false, params, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("フォローアップメッセージの送信に失敗: %w", err)
	}
	return nil
}

// Fail は、テキストのみのフォローアップメッセージを送信します
func (r *InteractionResponder) Fail(ctx context.Context, content string) error {
	params := &discordgo.WebhookParams{
		Content:         application.TruncateMessage(content),
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	}
	if _, err := r.session.FollowupMessageCreate(r.interaction, false, params, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("フォローアップメッセージの送信に失敗: %w", err)
	}
	return nil
}

func (r *InteractionResponder) allowedMentions() *discordgo.MessageAllowedMentions {
	if r.userID == "" {
		return &discordgo.MessageAllowedMentions{}
	}
	return &discordgo.MessageAllowedMentions{Users: []string{r.userID}}
}

// openFiles は、保存済みの画像を添付ファイルとして開きます
func openFiles(images []application.StoredImage) ([]*discordgo.File, func(), error) {
	files := make([]*discordgo.File, 0, len(images))
	opened := make([]*os.File, 0, len(images))
	closeAll := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}

	for _, img := range images {
		f, err := os.Open(img.Path)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("添付ファイルを開けません (%s): %w", img.Name, err)
		}
		opened = append(opened, f)
		files = append(files, &discordgo.File{
			Name:        img.Name,
			ContentType: img.ContentType,
			Reader:      f,
		})
	}
	return files, closeAll, nil
}
