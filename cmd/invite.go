package main

import (
	"fmt"
	"io"
	"net/url"
	"strconv"

	"imaginebot/configs"

	"github.com/bwmarrin/discordgo"
	"github.com/spf13/cobra"
)

// Botに必要な権限
// View Channel (1024) + Send Messages (2048) + Attach Files (32768)
const defaultInvitePermissions = discordgo.PermissionViewChannel |
	discordgo.PermissionSendMessages |
	discordgo.PermissionAttachFiles

var invitePermissions int64

var inviteCmd = &cobra.Command{
	Use:   "invite-url",
	Short: "Botをサーバーに招待するURLを表示します",
	Args:  cobra.NoArgs,
	RunE:  runInvite,
}

func init() {
	inviteCmd.Flags().Int64Var(&invitePermissions, "permissions", defaultInvitePermissions, "招待URLに含める権限のビットフラグ")
}

func runInvite(cmd *cobra.Command, _ []string) error {
	cfg, err := configs.LoadDiscordConfig()
	if err != nil {
		return fmt.Errorf("設定の読み込みに失敗: %w", err)
	}

	clientID := cfg.ApplicationID
	username := ""
	if clientID == "" {
		if cfg.Token() == "" {
			return fmt.Errorf("DISCORD_APPLICATION_ID または DISCORD_BOT_TOKEN を設定してください")
		}

		session, err := discordgo.New("Bot " + cfg.Token())
		if err != nil {
			return fmt.Errorf("Discordセッションの作成に失敗: %w", err)
		}

		user, err := session.User("@me")
		if err != nil {
			return fmt.Errorf("Bot情報の取得に失敗: %w", err)
		}
		clientID = user.ID
		username = user.Username
	}

	printInvite(cmd.OutOrStdout(), clientID, username, invitePermissions)
	return nil
}

// InviteURL は、スラッシュコマンドの登録権限を含む招待URLを返します
func InviteURL(clientID string, permissions int64) string {
	query := url.Values{}
	query.Set("client_id", clientID)
	query.Set("permissions", strconv.FormatInt(permissions, 10))
	query.Set("scope", "bot applications.commands")
	return "https://discord.com/api/oauth2/authorize?" + query.Encode()
}

func printInvite(w io.Writer, clientID, username string, permissions int64) {
	fmt.Fprintf(w, "🤖 Bot情報:\n")
	if username != "" {
		fmt.Fprintf(w, "   名前: %s\n", username)
	}
	fmt.Fprintf(w, "   Client ID: %s\n\n", clientID)

	fmt.Fprintf(w, "🔗 Bot招待URL:\n")
	fmt.Fprintf(w, "   %s\n\n", InviteURL(clientID, permissions))

	fmt.Fprintf(w, "📋 権限: %d\n", permissions)
	if permissions == defaultInvitePermissions {
		fmt.Fprintf(w, "   - View Channel (1024)\n")
		fmt.Fprintf(w, "   - Send Messages (2048)\n")
		fmt.Fprintf(w, "   - Attach Files (32768)\n")
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "🎯 Botの使い方:\n")
	fmt.Fprintf(w, "   /imagine prompt: a cat in space --ar 16:9\n")
	fmt.Fprintf(w, "   /help でパラメータの一覧を表示します\n")
}
