package sdapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"imaginebot/internal/application"
	"imaginebot/internal/infrastructure/config"
	"imaginebot/internal/infrastructure/imageutil"

	"go.uber.org/zap"
)

const txt2imgPath = "/sdapi/v1/txt2img"

// Txt2ImgRequest は、txt2img API のリクエストボディです
type Txt2ImgRequest struct {
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negative_prompt"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	Steps          int     `json:"steps"`
	CfgScale       float64 `json:"cfg_scale"`
	Seed           int64   `json:"seed"`
	BatchSize      int     `json:"batch_size"`
	NIter          int     `json:"n_iter"`
	SamplerName    string  `json:"sampler_name,omitempty"`
}

// Txt2ImgResult は、txt2img API のレスポンスです
type Txt2ImgResult struct {
	Images []string `json:"images"`
	Info   string   `json:"info"`
}

// Client は、AUTOMATIC1111 互換の Stable Diffusion API を呼び出す画像生成エンジンです
type Client struct {
	baseURL     string
	samplerName string
	httpClient  *http.Client
	logger      *zap.Logger
}

var _ application.ImageEngine = (*Client)(nil)

// NewClient は新しいClientインスタンスを作成します
// タイムアウトは呼び出し側のコンテキストで制御します
func NewClient(cfg config.EngineConfig, logger *zap.Logger) *Client {
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		samplerName: cfg.SamplerName,
		httpClient:  &http.Client{},
		logger:      logger.With(zap.String("engine", config.EngineBackendSDAPI)),
	}
}

// Name はバックエンド名を返します
func (c *Client) Name() string {
	return config.EngineBackendSDAPI
}

// GenerateImage は、txt2img API で1枚の画像を生成してPNGデータを返します
func (c *Client) GenerateImage(ctx context.Context, request application.EngineRequest) ([]byte, error) {
	payload := Txt2ImgRequest{
		Prompt:         request.Prompt,
		NegativePrompt: request.NegativePrompt,
		Width:          request.Width,
		Height:         request.Height,
		Steps:          request.Steps,
		CfgScale:       request.GuidanceScale,
		Seed:           int64(request.Context.Seed),
		BatchSize:      1,
		NIter:          1,
		SamplerName:    c.samplerName,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("リクエストのエンコードに失敗: %w", err)
	}

	endpointURL := c.baseURL + txt2imgPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("リクエストの作成に失敗: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("txt2img API にリクエストを送信します",
		zap.String("url", endpointURL),
		zap.Uint32("seed", request.Context.Seed),
		zap.Int("width", request.Width),
		zap.Int("height", request.Height))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("txt2img API の呼び出しに失敗: %w", err)
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("txt2img API がステータス %d を返しました: %s", resp.StatusCode, truncateBody(respBody))
	}
	if readErr != nil {
		return nil, fmt.Errorf("レスポンスの読み込みに失敗: %w", readErr)
	}

	var result Txt2ImgResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("レスポンスのデコードに失敗: %w", err)
	}
	if len(result.Images) == 0 {
		return nil, fmt.Errorf("txt2img API が画像を返しませんでした")
	}

	data, err := decodeImage(result.Images[0])
	if err != nil {
		return nil, err
	}
	return imageutil.EnsurePNG(data)
}

// Close は、アイドル状態の接続を閉じます
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// decodeImage は、base64 文字列（data URL 形式も可）を画像データに変換します
func decodeImage(encoded string) ([]byte, error) {
	if i := strings.Index(encoded, ","); strings.HasPrefix(encoded, "data:") && i >= 0 {
		encoded = encoded[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("画像データのデコードに失敗: %w", err)
	}
	return data, nil
}

func truncateBody(body []byte) string {
	const limit = 512
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
