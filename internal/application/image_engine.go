package application

import (
	"context"

	"imaginebot/internal/domain"
)

// ImageEngine は、外部の画像生成エンジンとの通信を行うクライアントのインターフェースです
// エンジンは単一のアクセラレータを占有するため、同時に複数の呼び出しを行ってはいけません
type ImageEngine interface {
	// GenerateImage は、1枚の画像を生成してPNGデータを返します
	GenerateImage(ctx context.Context, request EngineRequest) ([]byte, error)

	// Name は、ログやメトリクスに使うバックエンド名を返します
	Name() string

	// Close は、エンジンのリソースを解放します
	Close() error
}

// EngineRequest は、エンジン1回分の呼び出しパラメータです
type EngineRequest struct {
	Prompt         string                   `json:"prompt"`
	NegativePrompt string                   `json:"negative_prompt"`
	Width          int                      `json:"width"`
	Height         int                      `json:"height"`
	Steps          int                      `json:"steps"`
	GuidanceScale  float64                  `json:"guidance_scale"`
	Context        domain.GenerationContext `json:"context"`
}

// NewEngineRequest は、生成要求と生成コンテキストからエンジン呼び出しパラメータを作成します
func NewEngineRequest(request domain.GenerationRequest, genCtx domain.GenerationContext) EngineRequest {
	return EngineRequest{
		Prompt:         request.CleanPrompt,
		NegativePrompt: request.Params.NegativePrompt,
		Width:          request.Params.Width,
		Height:         request.Params.Height,
		Steps:          request.Params.InferenceSteps,
		GuidanceScale:  request.Params.GuidanceScale,
		Context:        genCtx,
	}
}
