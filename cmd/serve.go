package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"imaginebot/configs"
	"imaginebot/internal/application"
	"imaginebot/internal/infrastructure/config"
	"imaginebot/internal/infrastructure/gemini"
	"imaginebot/internal/infrastructure/logging"
	"imaginebot/internal/infrastructure/metrics"
	"imaginebot/internal/infrastructure/sdapi"
	"imaginebot/internal/infrastructure/storage"
	discordPres "imaginebot/internal/presentation/discord"

	"github.com/bwmarrin/discordgo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Discord に接続してスラッシュコマンドの受け付けを開始します",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := configs.LoadConfig()
	if err != nil {
		return fmt.Errorf("設定の読み込みに失敗: %w", err)
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("ロガーの作成に失敗: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("imaginebot を起動中...",
		zap.String("backend", cfg.Engine.Backend),
		zap.Int("queue_depth", cfg.Queue.Depth),
		zap.Duration("engine_timeout", cfg.Engine.Timeout))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// エンジンはプロセス全体で1つだけ作成し、終了時に解放する
	engine, err := newEngine(ctx, cfg.Engine, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Warn("画像生成エンジンの解放に失敗しました", zap.Error(err))
		}
	}()

	store, err := storage.NewTempImageStore(cfg.Storage.OutputDir, logger)
	if err != nil {
		return fmt.Errorf("一時保存先の作成に失敗: %w", err)
	}

	promMetrics := metrics.NewPrometheus()
	queue := application.NewGenerationQueue(cfg.Queue.Depth, logger, promMetrics)
	orchestrator := application.NewGenerationOrchestrator(
		engine,
		cfg.Engine.Timeout,
		logger,
		application.WithOrchestratorMetrics(promMetrics),
	)
	imagineService := application.NewImagineService(orchestrator, queue, store, logger, promMetrics)

	session, err := discordgo.New("Bot " + cfg.Discord.Token())
	if err != nil {
		return fmt.Errorf("Discordセッションの作成に失敗: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds

	slashCommandHandler := discordPres.NewSlashCommandHandler(session, imagineService, cfg.Discord.GuildID, logger)
	handler := discordPres.NewDiscordHandler(session, slashCommandHandler, logger)
	handler.SetupHandlers()

	err = supervise(ctx, queue, cfg.Metrics.Addr, promMetrics.Handler(), logger,
		func() error {
			return connect(session, slashCommandHandler, cfg.Discord, logger)
		},
		func() {
			shutdown(session, slashCommandHandler, queue, cfg, logger)
		},
	)
	if err != nil {
		return err
	}

	logger.Info("Botが正常に停止しました")
	return nil
}

// supervise は、生成ワーカーとメトリクスサーバーを動かしながら start を実行します
// ctx の終了、start の失敗、メトリクスサーバーの失敗のいずれかで stop を呼び、すべての終了を待ちます
func supervise(
	ctx context.Context,
	queue *application.GenerationQueue,
	metricsAddr string,
	metricsHandler http.Handler,
	logger *zap.Logger,
	start func() error,
	stop func(),
) error {
	// ワーカーはシグナルとは独立したコンテキストで動かし、終了時に実行中のジョブを待つ
	workerCtx, cancelWorker := context.WithCancel(context.Background())
	defer cancelWorker()

	// start が失敗した場合もメトリクスサーバーを止められるよう、シグナルとは別に取り消せるようにする
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return queue.Run(workerCtx)
	})
	if metricsAddr != "" {
		g.Go(func() error {
			return serveMetrics(gctx, metricsAddr, metricsHandler, logger)
		})
	}

	runErr := start()
	if runErr == nil {
		logger.Info("Botが準備完了しました。/imagine と /help を受け付けます")
		<-gctx.Done()
		logger.Info("終了シグナルを受信しました。Botを停止中...")
	}

	stop()
	cancelWorker()
	cancelRun()

	if err := g.Wait(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// newEngine は、設定されたバックエンドの画像生成エンジンを作成します
func newEngine(ctx context.Context, cfg config.EngineConfig, logger *zap.Logger) (application.ImageEngine, error) {
	switch cfg.Backend {
	case config.EngineBackendImagen:
		client, err := gemini.NewImagenClient(ctx, cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("Imagenクライアントの作成に失敗: %w", err)
		}
		return client, nil
	case config.EngineBackendSDAPI:
		return sdapi.NewClient(cfg, logger), nil
	default:
		return nil, fmt.Errorf("未知の画像生成バックエンド: %s", cfg.Backend)
	}
}

// connect は、Discordに接続してスラッシュコマンドを登録します
func connect(session *discordgo.Session, slashCommandHandler *discordPres.SlashCommandHandler, cfg config.DiscordConfig, logger *zap.Logger) error {
	if err := session.Open(); err != nil {
		return fmt.Errorf("Discordへの接続に失敗: %w", err)
	}

	appID := cfg.ApplicationID
	if appID == "" {
		user, err := session.User("@me")
		if err != nil {
			return fmt.Errorf("Botユーザー情報の取得に失敗: %w", err)
		}
		appID = user.ID
		logger.Info("Bot情報を取得しました",
			zap.String("username", user.Username),
			zap.String("user_id", user.ID))
	}

	if err := slashCommandHandler.SetupSlashCommands(appID); err != nil {
		return fmt.Errorf("スラッシュコマンドの設定に失敗: %w", err)
	}
	return nil
}

// shutdown は、受け付けを止めてから実行中のジョブを待ちます
func shutdown(
	session *discordgo.Session,
	slashCommandHandler *discordPres.SlashCommandHandler,
	queue *application.GenerationQueue,
	cfg *configs.Config,
	logger *zap.Logger,
) {
	// ゲートウェイを閉じても、実行中のジョブの応答は REST で送信できる
	if err := session.Close(); err != nil {
		logger.Warn("Discordセッションのクローズに失敗しました", zap.Error(err))
	}

	if cfg.Discord.RemoveCommands || cfg.Discord.GuildID != "" {
		if err := slashCommandHandler.RemoveSlashCommands(); err != nil {
			logger.Warn("スラッシュコマンドの削除に失敗しました", zap.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Queue.ShutdownTimeout)
	defer cancel()
	if err := queue.Shutdown(ctx); err != nil {
		logger.Warn("実行中のジョブの完了を待てませんでした", zap.Error(err))
	}
}

// serveMetrics は、ctx が終了するまで Prometheus のメトリクスを公開します
func serveMetrics(ctx context.Context, addr string, handler http.Handler, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("メトリクスを公開します", zap.String("addr", addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("メトリクスサーバーの起動に失敗: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("メトリクスサーバーの停止に失敗しました", zap.Error(err))
		}
		return nil
	}
}
