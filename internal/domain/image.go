package domain

const (
	DefaultWidth          = 896
	DefaultHeight         = 1152
	DefaultGuidanceScale  = 7.5
	DefaultInferenceSteps = 28
	DefaultNegativePrompt = "nsfw, lowres, bad anatomy, bad hands, text, error, missing fingers, extra digit, fewer digits, cropped, worst quality, low quality, normal quality, jpeg artifacts, signature, watermark, username, blurry, artist name"

	// ImagesPerRequest は、1リクエストあたりに生成する画像の枚数です
	ImagesPerRequest = 2
)

// GenerationParameters は、画像生成エンジンに渡すパラメータです
// 幅と高さは常にアスペクト比テーブルのいずれか、またはデフォルト値になります
type GenerationParameters struct {
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	GuidanceScale  float64 `json:"guidance_scale"`
	InferenceSteps int     `json:"inference_steps"`
	NegativePrompt string  `json:"negative_prompt"`
}

// DefaultGenerationParameters は、デフォルトの生成パラメータを返します
func DefaultGenerationParameters() GenerationParameters {
	return GenerationParameters{
		Width:          DefaultWidth,
		Height:         DefaultHeight,
		GuidanceScale:  DefaultGuidanceScale,
		InferenceSteps: DefaultInferenceSteps,
		NegativePrompt: DefaultNegativePrompt,
	}
}

// GenerationRequest は、1回の /imagine で生成する画像の要求です
type GenerationRequest struct {
	CleanPrompt string
	Params      GenerationParameters
	Count       int
}

// NewGenerationRequest は、ImagesPerRequest 枚の生成要求を作成します
func NewGenerationRequest(cleanPrompt string, params GenerationParameters) GenerationRequest {
	return GenerationRequest{
		CleanPrompt: cleanPrompt,
		Params:      params,
		Count:       ImagesPerRequest,
	}
}

// GenerationContext は、シードから決定的に導出される生成コンテキストです
// 同じシードと同じパラメータからは同じ画像が再現されます
type GenerationContext struct {
	Seed uint32
}

// NewGenerationContext は、シードから生成コンテキストを作成します
func NewGenerationContext(seed uint32) GenerationContext {
	return GenerationContext{Seed: seed}
}

// GeneratedImage は、生成された1枚の画像です
type GeneratedImage struct {
	Data     []byte
	Seed     uint32
	MimeType string
}

// GenerationResult は、生成順に並んだ画像の列です
type GenerationResult struct {
	Images []GeneratedImage
}

// Seeds は、各画像の生成に使用したシードを返します
func (r *GenerationResult) Seeds() []uint32 {
	seeds := make([]uint32, len(r.Images))
	for i, img := range r.Images {
		seeds[i] = img.Seed
	}
	return seeds
}
