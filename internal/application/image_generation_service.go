package application

import (
	"context"
	cryptorand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"time"

	"imaginebot/internal/domain"

	"go.uber.org/zap"
)

// Generator は、生成要求から画像列を作成する処理のインターフェースです
type Generator interface {
	Generate(ctx context.Context, request domain.GenerationRequest) (*domain.GenerationResult, error)
}

// GenerationOrchestrator は、画像生成エンジンへの呼び出しを1リクエストごとに逐次実行するサービスです
type GenerationOrchestrator struct {
	engine  ImageEngine
	timeout time.Duration
	newRand func() *rand.Rand
	logger  *zap.Logger
	metrics Metrics
}

// OrchestratorOption は、GenerationOrchestrator の任意設定です
type OrchestratorOption func(*GenerationOrchestrator)

// WithRandSource は、リクエストごとの乱数生成器の作成関数を差し替えます
func WithRandSource(newRand func() *rand.Rand) OrchestratorOption {
	return func(o *GenerationOrchestrator) {
		o.newRand = newRand
	}
}

// WithOrchestratorMetrics は、エンジン呼び出しの計測先を設定します
func WithOrchestratorMetrics(metrics Metrics) OrchestratorOption {
	return func(o *GenerationOrchestrator) {
		o.metrics = metrics
	}
}

// NewGenerationOrchestrator は新しいGenerationOrchestratorインスタンスを作成します
// timeout は、エンジン1回の呼び出しに許す時間です
func NewGenerationOrchestrator(engine ImageEngine, timeout time.Duration, logger *zap.Logger, opts ...OrchestratorOption) *GenerationOrchestrator {
	o := &GenerationOrchestrator{
		engine:  engine,
		timeout: timeout,
		newRand: newRequestRand,
		logger:  logger,
		metrics: NopMetrics{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Generate は、要求された枚数の画像をそれぞれ新しいシードで逐次生成します
// どれか1回でも失敗した場合は *domain.EngineError を返し、途中までの結果は返しません
func (o *GenerationOrchestrator) Generate(ctx context.Context, request domain.GenerationRequest) (*domain.GenerationResult, error) {
	count := request.Count
	if count <= 0 {
		count = domain.ImagesPerRequest
	}

	// 乱数生成器はリクエストごとに作成し、他のリクエストと共有しない
	rng := o.newRand()
	images := make([]domain.GeneratedImage, 0, count)

	for i := 0; i < count; i++ {
		genCtx := domain.NewGenerationContext(rng.Uint32())

		data, err := o.callEngine(ctx, NewEngineRequest(request, genCtx))
		if err != nil {
			o.logger.Error("画像生成に失敗",
				zap.Int("index", i),
				zap.Uint32("seed", genCtx.Seed),
				zap.Error(err))
			return nil, &domain.EngineError{Index: i, Seed: genCtx.Seed, Err: err}
		}

		o.logger.Info("画像を生成しました",
			zap.Int("index", i),
			zap.Uint32("seed", genCtx.Seed),
			zap.Int("size_bytes", len(data)))

		images = append(images, domain.GeneratedImage{
			Data:     data,
			Seed:     genCtx.Seed,
			MimeType: "image/png",
		})
	}

	return &domain.GenerationResult{Images: images}, nil
}

// callEngine は、タイムアウト付きでエンジンを1回呼び出します
func (o *GenerationOrchestrator) callEngine(ctx context.Context, request EngineRequest) ([]byte, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	start := time.Now()
	data, err := o.engine.GenerateImage(ctx, request)
	if err == nil && len(data) == 0 {
		err = domain.ErrEmptyImage
	}
	o.metrics.ObserveEngineCall(o.engine.Name(), time.Since(start), err)

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("エンジンの呼び出しがタイムアウトしました (%v): %w", o.timeout, err)
		}
		return nil, err
	}
	return data, nil
}

// newRequestRand は、暗号論的乱数でシードしたリクエスト専用の乱数生成器を作成します
func newRequestRand() *rand.Rand {
	var seed [32]byte
	if _, err := cryptorand.Read(seed[:]); err != nil {
		binary.LittleEndian.PutUint64(seed[:], uint64(time.Now().UnixNano()))
	}
	return rand.New(rand.NewChaCha8(seed))
}
