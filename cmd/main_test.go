package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"imaginebot/internal/application"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestInviteURL(t *testing.T) {
	raw := InviteURL("123456", defaultInvitePermissions)

	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "discord.com", parsed.Host)
	assert.Equal(t, "/api/oauth2/authorize", parsed.Path)

	query := parsed.Query()
	assert.Equal(t, "123456", query.Get("client_id"))
	assert.Equal(t, "35840", query.Get("permissions"))
	assert.Equal(t, "bot applications.commands", query.Get("scope"))
}

func TestPrintInvite(t *testing.T) {
	var buf bytes.Buffer
	printInvite(&buf, "123456", "imaginebot", defaultInvitePermissions)

	out := buf.String()
	assert.Contains(t, out, "imaginebot")
	assert.Contains(t, out, InviteURL("123456", defaultInvitePermissions))
	assert.Contains(t, out, "Attach Files (32768)")
}

func TestRootCommand_Subcommands(t *testing.T) {
	names := map[string]bool{}
	for _, sub := range rootCmd.Commands() {
		names[sub.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["invite-url"])
}

// runSupervise は、supervise を別の goroutine で実行して結果を待ちます
func runSupervise(t *testing.T, ctx context.Context, metricsAddr string, start func() error, stop func()) error {
	t.Helper()

	queue := application.NewGenerationQueue(1, zap.NewNop(), nil)
	done := make(chan error, 1)
	go func() {
		done <- supervise(ctx, queue, metricsAddr, http.NotFoundHandler(), zap.NewNop(), start, stop)
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("supervise が終了しませんでした")
		return nil
	}
}

func TestSupervise_StartFailureWithMetrics(t *testing.T) {
	defer goleak.VerifyNone(t)

	startErr := errors.New("Discordへの接続に失敗: 401 Unauthorized")
	stopped := false

	err := runSupervise(t, context.Background(), "127.0.0.1:0",
		func() error { return startErr },
		func() { stopped = true },
	)

	assert.ErrorIs(t, err, startErr, "起動エラーがそのまま返されます")
	assert.True(t, stopped)
}

func TestSupervise_StopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := false

	err := runSupervise(t, ctx, "127.0.0.1:0",
		func() error {
			cancel()
			return nil
		},
		func() { stopped = true },
	)

	assert.NoError(t, err)
	assert.True(t, stopped)
}

func TestSupervise_MetricsListenFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	err := runSupervise(t, context.Background(), "256.0.0.1:bad",
		func() error { return nil },
		func() {},
	)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "メトリクスサーバーの起動に失敗")
}
