package discord

import (
	"context"
	"errors"
	"sync"
	"testing"

	"imaginebot/internal/application"
	"imaginebot/internal/domain"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSession struct {
	mu        sync.Mutex
	responses []*discordgo.InteractionResponse
	created   []string
	deleted   []string
	guildIDs  []string
	createErr error
	deleteErr error
}

func (s *fakeSession) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, resp)
	return nil
}

func (s *fakeSession) FollowupMessageCreate(_ *discordgo.Interaction, _ bool, _ *discordgo.WebhookParams, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	return &discordgo.Message{}, nil
}

func (s *fakeSession) ApplicationCommandCreate(_ string, guildID string, cmd *discordgo.ApplicationCommand, _ ...discordgo.RequestOption) (*discordgo.ApplicationCommand, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil && len(s.created) > 0 {
		return nil, s.createErr
	}
	s.created = append(s.created, cmd.Name)
	s.guildIDs = append(s.guildIDs, guildID)
	created := *cmd
	created.ID = "id-" + cmd.Name
	return &created, nil
}

func (s *fakeSession) ApplicationCommandDelete(_, _, cmdID string, _ ...discordgo.RequestOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deleted = append(s.deleted, cmdID)
	return nil
}

func (s *fakeSession) Responses() []*discordgo.InteractionResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*discordgo.InteractionResponse(nil), s.responses...)
}

// fakeImaginer は、受け取ったコマンドを記録して応答を予約だけします
type fakeImaginer struct {
	commands []application.ImagineCommand
}

func (f *fakeImaginer) Handle(ctx context.Context, cmd application.ImagineCommand, responder application.Responder) *domain.RequestLifecycle {
	f.commands = append(f.commands, cmd)
	lifecycle := domain.NewRequestLifecycle(cmd.RequestID)
	if err := responder.Defer(ctx); err == nil {
		_ = lifecycle.Transition(domain.RequestStateDeferred)
	}
	return lifecycle
}

func commandInteraction(name string, options ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.Interaction {
	return &discordgo.Interaction{
		ID:        "interaction-1",
		Type:      discordgo.InteractionApplicationCommand,
		GuildID:   "guild-1",
		ChannelID: "channel-1",
		Data: discordgo.ApplicationCommandInteractionData{
			Name:    name,
			Options: options,
		},
	}
}

func promptValue(prompt string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name:  promptOptionName,
		Type:  discordgo.ApplicationCommandOptionString,
		Value: prompt,
	}
}

func newTestHandler(session *fakeSession, imaginer Imaginer, guildID string) *SlashCommandHandler {
	return NewSlashCommandHandler(session, imaginer, guildID, zap.NewNop())
}

func TestCommands(t *testing.T) {
	commands := Commands()
	require.Len(t, commands, 2)

	assert.Equal(t, CommandImagine, commands[0].Name)
	require.Len(t, commands[0].Options, 1)
	assert.Equal(t, promptOptionName, commands[0].Options[0].Name)
	assert.True(t, commands[0].Options[0].Required)
	assert.Equal(t, discordgo.ApplicationCommandOptionString, commands[0].Options[0].Type)

	assert.Equal(t, CommandHelp, commands[1].Name)
	assert.Empty(t, commands[1].Options)
}

func TestSlashCommandHandler_ImagineRoutesToService(t *testing.T) {
	session := &fakeSession{}
	imaginer := &fakeImaginer{}
	handler := newTestHandler(session, imaginer, "")

	interaction := commandInteraction(CommandImagine, promptValue("a cat --ar 16:9"))
	interaction.Member = &discordgo.Member{User: &discordgo.User{ID: "42", Username: "alice"}}

	handler.HandleInteraction(interaction)

	require.Len(t, imaginer.commands, 1)
	cmd := imaginer.commands[0]
	assert.Equal(t, "a cat --ar 16:9", cmd.Prompt)
	assert.Equal(t, "42", cmd.UserID)
	assert.Equal(t, "<@42>", cmd.UserMention)
	assert.NotEmpty(t, cmd.RequestID)

	responses := session.Responses()
	require.Len(t, responses, 1)
	assert.Equal(t, discordgo.InteractionResponseDeferredChannelMessageWithSource, responses[0].Type)
}

func TestSlashCommandHandler_ImagineInDirectMessage(t *testing.T) {
	session := &fakeSession{}
	imaginer := &fakeImaginer{}
	handler := newTestHandler(session, imaginer, "")

	interaction := commandInteraction(CommandImagine, promptValue("a dog"))
	interaction.User = &discordgo.User{ID: "7"}

	handler.HandleInteraction(interaction)

	require.Len(t, imaginer.commands, 1)
	assert.Equal(t, "7", imaginer.commands[0].UserID)
	assert.Equal(t, "<@7>", imaginer.commands[0].UserMention)
}

func TestSlashCommandHandler_RequestIDsAreUnique(t *testing.T) {
	session := &fakeSession{}
	imaginer := &fakeImaginer{}
	handler := newTestHandler(session, imaginer, "")

	handler.HandleInteraction(commandInteraction(CommandImagine, promptValue("one")))
	handler.HandleInteraction(commandInteraction(CommandImagine, promptValue("two")))

	require.Len(t, imaginer.commands, 2)
	assert.NotEqual(t, imaginer.commands[0].RequestID, imaginer.commands[1].RequestID)
}

func TestSlashCommandHandler_Help(t *testing.T) {
	session := &fakeSession{}
	imaginer := &fakeImaginer{}
	handler := newTestHandler(session, imaginer, "")

	handler.HandleInteraction(commandInteraction(CommandHelp))

	assert.Empty(t, imaginer.commands, "/help はキューを経由しません")
	responses := session.Responses()
	require.Len(t, responses, 1)
	assert.Equal(t, discordgo.InteractionResponseChannelMessageWithSource, responses[0].Type)
	assert.Equal(t, domain.HelpText(), responses[0].Data.Content)
	assert.Zero(t, responses[0].Data.Flags&discordgo.MessageFlagsEphemeral)
}

func TestSlashCommandHandler_IgnoresOtherInteractions(t *testing.T) {
	session := &fakeSession{}
	imaginer := &fakeImaginer{}
	handler := newTestHandler(session, imaginer, "")

	handler.HandleInteraction(commandInteraction("unknown"))
	handler.HandleInteraction(&discordgo.Interaction{Type: discordgo.InteractionPing})
	handler.HandleInteraction(nil)

	assert.Empty(t, imaginer.commands)
	assert.Empty(t, session.Responses())
}

func TestSlashCommandHandler_SetupAndRemove(t *testing.T) {
	session := &fakeSession{}
	handler := newTestHandler(session, &fakeImaginer{}, "guild-1")

	require.NoError(t, handler.SetupSlashCommands("app-1"))
	assert.Equal(t, []string{CommandImagine, CommandHelp}, session.created)
	assert.Equal(t, []string{"guild-1", "guild-1"}, session.guildIDs)

	require.NoError(t, handler.RemoveSlashCommands())
	assert.Equal(t, []string{"id-imagine", "id-help"}, session.deleted)

	// 2回目は何もしない
	require.NoError(t, handler.RemoveSlashCommands())
	assert.Len(t, session.deleted, 2)
}

func TestSlashCommandHandler_SetupPartialFailure(t *testing.T) {
	session := &fakeSession{createErr: errors.New("missing access")}
	handler := newTestHandler(session, &fakeImaginer{}, "")

	err := handler.SetupSlashCommands("app-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), CommandHelp)

	// 登録できた分は削除できる
	require.NoError(t, handler.RemoveSlashCommands())
	assert.Equal(t, []string{"id-imagine"}, session.deleted)
}

func TestSlashCommandHandler_RemoveReportsFailure(t *testing.T) {
	session := &fakeSession{}
	handler := newTestHandler(session, &fakeImaginer{}, "")
	require.NoError(t, handler.SetupSlashCommands("app-1"))

	session.deleteErr = errors.New("unknown application command")
	assert.Error(t, handler.RemoveSlashCommands())
}

func TestResponseHandler_RespondMessage(t *testing.T) {
	session := &fakeSession{}
	handler := NewResponseHandler(session, zap.NewNop())

	long := make([]rune, application.MessageLimit+10)
	for i := range long {
		long[i] = 'あ'
	}
	require.NoError(t, handler.RespondMessage(context.Background(), &discordgo.Interaction{}, string(long), true))

	responses := session.Responses()
	require.Len(t, responses, 1)
	assert.Len(t, []rune(responses[0].Data.Content), application.MessageLimit)
	assert.Equal(t, discordgo.MessageFlagsEphemeral, responses[0].Data.Flags)
	require.NotNil(t, responses[0].Data.AllowedMentions)
	assert.Empty(t, responses[0].Data.AllowedMentions.Parse)
}

func TestNewDiscordHandler(t *testing.T) {
	session := &discordgo.Session{}
	slash := newTestHandler(&fakeSession{}, &fakeImaginer{}, "")

	handler := NewDiscordHandler(session, slash, zap.NewNop())

	assert.Same(t, session, handler.session)
	assert.Same(t, slash, handler.slashCommandHandler)
}
