package gemini

import (
	"context"
	"fmt"
	"math"

	"imaginebot/internal/application"
	"imaginebot/internal/infrastructure/config"
	"imaginebot/internal/infrastructure/imageutil"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// imageGenerator は、genai.Models のうち画像生成に使用する部分です
type imageGenerator interface {
	GenerateImages(ctx context.Context, model string, prompt string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error)
}

// ImagenClient は、Vertex AI の Imagen モデルで画像を生成するエンジンです
type ImagenClient struct {
	models    imageGenerator
	modelName string
	logger    *zap.Logger
}

var _ application.ImageEngine = (*ImagenClient)(nil)

// NewImagenClient は新しいImagenClientインスタンスを作成します
// シードとネガティブプロンプトは Gemini API では使えないため、Vertex AI バックエンドを使用します
func NewImagenClient(ctx context.Context, cfg config.EngineConfig, logger *zap.Logger) (*ImagenClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend:  genai.BackendVertexAI,
		Project:  cfg.Project,
		Location: cfg.Location,
	})
	if err != nil {
		return nil, fmt.Errorf("Imagenクライアントの作成に失敗: %w", err)
	}

	return newImagenClient(client.Models, cfg.ModelName, logger), nil
}

func newImagenClient(models imageGenerator, modelName string, logger *zap.Logger) *ImagenClient {
	return &ImagenClient{
		models:    models,
		modelName: modelName,
		logger:    logger.With(zap.String("engine", config.EngineBackendImagen), zap.String("model", modelName)),
	}
}

// Name はバックエンド名を返します
func (c *ImagenClient) Name() string {
	return config.EngineBackendImagen
}

// GenerateImage は、Imagen で1枚の画像を生成してPNGデータを返します
func (c *ImagenClient) GenerateImage(ctx context.Context, request application.EngineRequest) ([]byte, error) {
	genConfig := c.createGenerateImagesConfig(request)

	c.logger.Debug("Imagen に画像生成をリクエストします",
		zap.String("aspect_ratio", genConfig.AspectRatio),
		zap.Int32("seed", *genConfig.Seed))

	resp, err := c.models.GenerateImages(ctx, c.modelName, request.Prompt, genConfig)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("Imagen へのリクエストがタイムアウトしました: %w", err)
		}
		return nil, fmt.Errorf("Imagen からの応答取得に失敗: %w", err)
	}

	if resp == nil || len(resp.GeneratedImages) == 0 {
		return nil, fmt.Errorf("Imagen から画像が返されませんでした")
	}

	generated := resp.GeneratedImages[0]
	if generated.RAIFilteredReason != "" {
		return nil, fmt.Errorf("安全フィルターにより画像生成がブロックされました: %s", generated.RAIFilteredReason)
	}
	if generated.Image == nil || len(generated.Image.ImageBytes) == 0 {
		return nil, fmt.Errorf("Imagen の応答に画像データが含まれていません")
	}

	return imageutil.EnsurePNG(generated.Image.ImageBytes)
}

// Close は、リソースを解放します。genai.Client に解放すべきリソースはありません
func (c *ImagenClient) Close() error {
	return nil
}

// createGenerateImagesConfig は、エンジン呼び出しパラメータから Imagen の生成設定を作成します
func (c *ImagenClient) createGenerateImagesConfig(request application.EngineRequest) *genai.GenerateImagesConfig {
	guidance := float32(request.GuidanceScale)
	seed := SeedToInt32(request.Context.Seed)

	return &genai.GenerateImagesConfig{
		NegativePrompt: request.NegativePrompt,
		NumberOfImages: 1,
		AspectRatio:    NearestAspectRatio(request.Width, request.Height),
		GuidanceScale:  &guidance,
		Seed:           &seed,
		OutputMIMEType: "image/png",
		// シードを指定する場合は透かしを無効にする必要がある
		HTTPOptions: &genai.HTTPOptions{
			ExtraBody: map[string]any{
				"parameters": map[string]any{"addWatermark": false},
			},
		},
	}
}

// imagenAspectRatios は、Imagen が受け付けるアスペクト比です
var imagenAspectRatios = []struct {
	label string
	ratio float64
}{
	{"1:1", 1.0},
	{"3:4", 3.0 / 4.0},
	{"4:3", 4.0 / 3.0},
	{"9:16", 9.0 / 16.0},
	{"16:9", 16.0 / 9.0},
}

// NearestAspectRatio は、幅と高さに最も近い Imagen のアスペクト比を返します
func NearestAspectRatio(width, height int) string {
	if width <= 0 || height <= 0 {
		return "1:1"
	}

	target := math.Log(float64(width) / float64(height))
	best := imagenAspectRatios[0].label
	bestDiff := math.Inf(1)
	for _, ar := range imagenAspectRatios {
		diff := math.Abs(math.Log(ar.ratio) - target)
		if diff < bestDiff {
			best, bestDiff = ar.label, diff
		}
	}
	return best
}

// SeedToInt32 は、32bitの符号なしシードを Imagen が受け付ける 1 以上 MaxInt32 以下の値に写します
func SeedToInt32(seed uint32) int32 {
	return int32(seed%math.MaxInt32) + 1
}
