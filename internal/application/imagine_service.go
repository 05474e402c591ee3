package application

import (
	"context"
	"errors"

	"imaginebot/internal/domain"

	"go.uber.org/zap"
)

// ImagineCommand は、/imagine コマンド1回分の入力です
type ImagineCommand struct {
	RequestID   string
	Prompt      string
	UserID      string
	UserMention string
}

// ImagineService は、/imagine リクエストの受付から応答までを制御するアプリケーションサービスです
type ImagineService struct {
	generator Generator
	queue     *GenerationQueue
	store     ImageStore
	logger    *zap.Logger
	metrics   Metrics
}

// NewImagineService は新しいImagineServiceインスタンスを作成します
func NewImagineService(
	generator Generator,
	queue *GenerationQueue,
	store ImageStore,
	logger *zap.Logger,
	metrics Metrics,
) *ImagineService {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &ImagineService{
		generator: generator,
		queue:     queue,
		store:     store,
		logger:    logger,
		metrics:   metrics,
	}
}

// Handle は、リクエストを受け付けて応答を予約し、生成ジョブをキューに投入します
// 生成はワーカーで非同期に行われ、完了は戻り値の Done で確認できます
func (s *ImagineService) Handle(ctx context.Context, cmd ImagineCommand, responder Responder) *domain.RequestLifecycle {
	lifecycle := domain.NewRequestLifecycle(cmd.RequestID)
	logger := s.logger.With(
		zap.String("request_id", cmd.RequestID),
		zap.String("user_id", cmd.UserID))

	logger.Info("/imagine を受信しました", zap.String("prompt", cmd.Prompt))

	ticket, err := s.queue.Reserve()
	if err != nil {
		s.reject(ctx, lifecycle, logger, responder, err)
		return lifecycle
	}

	// 解析より先に応答を予約する
	if err := responder.Defer(ctx); err != nil {
		ticket.Release()
		logger.Error("応答の予約に失敗しました", zap.Error(err))
		s.metrics.ObserveRequest(OutcomeResponseError)
		s.transition(lifecycle, logger, domain.RequestStateCompletedFailure)
		return lifecycle
	}
	s.transition(lifecycle, logger, domain.RequestStateDeferred)

	outcome := domain.ParsePrompt(cmd.Prompt)
	if outcome.HasErrors() {
		ticket.Release()
		logger.Info("ディレクティブの解析に失敗しました", zap.Strings("errors", outcome.Errors))
		s.fail(ctx, lifecycle, logger, responder, FormatDirectiveErrors(outcome.Errors), OutcomeInvalidDirective)
		return lifecycle
	}

	logger.Debug("ディレクティブを解析しました",
		zap.String("clean_prompt", outcome.CleanPrompt),
		zap.Any("params", outcome.Params))

	request := domain.NewGenerationRequest(outcome.CleanPrompt, outcome.Params)
	job := Job{
		ID: cmd.RequestID,
		Execute: func(jobCtx context.Context) {
			s.generate(jobCtx, lifecycle, logger, responder, cmd, request)
		},
		Abort: func(err error) {
			if lifecycle.State().IsTerminal() {
				logger.Warn("応答済みのジョブで異常が発生しました", zap.Error(err))
				return
			}
			logger.Warn("ジョブが実行されませんでした", zap.Error(err))
			s.fail(context.Background(), lifecycle, logger, responder, abortMessage(err), OutcomeAborted)
		},
	}

	if err := ticket.Submit(job); err != nil {
		logger.Warn("ジョブの投入に失敗しました", zap.Error(err))
		s.fail(ctx, lifecycle, logger, responder, abortMessage(err), OutcomeAborted)
	}

	return lifecycle
}

// generate は、ワーカー上で画像を生成して結果を送信します
func (s *ImagineService) generate(
	ctx context.Context,
	lifecycle *domain.RequestLifecycle,
	logger *zap.Logger,
	responder Responder,
	cmd ImagineCommand,
	request domain.GenerationRequest,
) {
	result, err := s.generator.Generate(ctx, request)
	if err != nil {
		var engineErr *domain.EngineError
		if errors.As(err, &engineErr) {
			logger.Error("画像生成エンジンが失敗しました",
				zap.Int("index", engineErr.Index),
				zap.Uint32("seed", engineErr.Seed),
				zap.Error(engineErr.Err))
		} else {
			logger.Error("画像生成に失敗しました", zap.Error(err))
		}
		s.fail(ctx, lifecycle, logger, responder, FormatEngineFailure(err), OutcomeEngineError)
		return
	}

	logger.Info("画像を生成しました", zap.Any("seeds", result.Seeds()))

	stored, err := s.store.Save(ctx, cmd.RequestID, result.Images)
	if err != nil {
		logger.Error("画像の一時保存に失敗しました", zap.Error(err))
		s.fail(ctx, lifecycle, logger, responder, FormatEngineFailure(err), OutcomeEngineError)
		return
	}

	caption := FormatCaption(cmd.Prompt, cmd.UserMention)
	sendErr := responder.Succeed(ctx, caption, stored)

	// 終了状態に遷移する前に一時ファイルを片付ける
	if err := s.store.Remove(stored); err != nil {
		logger.Warn("一時ファイルの削除に失敗しました", zap.Error(err))
	}

	if sendErr != nil {
		// 「考え中」のまま残さないよう、テキストで1回だけ失敗を通知する
		logger.Error("結果の送信に失敗しました", zap.Error(sendErr))
		s.fail(ctx, lifecycle, logger, responder, FormatDeliveryFailure(sendErr), OutcomeDeliveryError)
		return
	}

	s.metrics.ObserveRequest(OutcomeSuccess)
	s.transition(lifecycle, logger, domain.RequestStateCompletedSuccess)
}

// reject は、作業を受け付けられなかったリクエストに即座に応答します
func (s *ImagineService) reject(ctx context.Context, lifecycle *domain.RequestLifecycle, logger *zap.Logger, responder Responder, cause error) {
	logger.Warn("リクエストを受け付けられませんでした", zap.Error(cause))

	content := BusyMessage
	if errors.Is(cause, domain.ErrQueueClosed) {
		content = ShutdownMessage
	}
	if err := responder.Reject(ctx, content); err != nil {
		logger.Error("拒否メッセージの送信に失敗しました", zap.Error(err))
	}

	s.metrics.ObserveRequest(OutcomeRejected)
	s.transition(lifecycle, logger, domain.RequestStateCompletedFailure)
}

// fail は、予約済みの応答に失敗メッセージを送信して終了します
func (s *ImagineService) fail(ctx context.Context, lifecycle *domain.RequestLifecycle, logger *zap.Logger, responder Responder, content, outcome string) {
	if err := responder.Fail(ctx, content); err != nil {
		logger.Error("失敗メッセージの送信に失敗しました", zap.Error(err))
		outcome = OutcomeResponseError
	}
	// 完了の通知より先に記録する
	s.metrics.ObserveRequest(outcome)
	s.transition(lifecycle, logger, domain.RequestStateCompletedFailure)
}

func (s *ImagineService) transition(lifecycle *domain.RequestLifecycle, logger *zap.Logger, next domain.RequestState) {
	from := lifecycle.State()
	if err := lifecycle.Transition(next); err != nil {
		logger.Error("状態遷移に失敗しました", zap.Error(err))
		return
	}
	logger.Info("状態が遷移しました",
		zap.Stringer("from", from),
		zap.Stringer("to", next))
}

func abortMessage(err error) string {
	if errors.Is(err, domain.ErrQueueClosed) {
		return ShutdownMessage
	}
	return FormatEngineFailure(err)
}
