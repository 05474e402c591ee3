package application

import (
	"context"

	"imaginebot/internal/domain"
)

// Responder は、1つの /imagine リクエストに対する応答の送信先です
// Defer は最大1回、その後に Succeed か Fail のどちらかが1回だけ呼ばれます
type Responder interface {
	// Defer は、結果を後で送ることをプラットフォームに通知します
	Defer(ctx context.Context) error
	// Reject は、Defer を行わずに即座に応答します（キュー満杯など）
	Reject(ctx context.Context, content string) error
	// Succeed は、生成された画像を添付して結果を送信します
	Succeed(ctx context.Context, content string, images []StoredImage) error
	// Fail は、テキストのみの失敗メッセージを送信します
	Fail(ctx context.Context, content string) error
}

// StoredImage は、送信のために一時保存された画像ファイルです
type StoredImage struct {
	Name        string
	Path        string
	ContentType string
}

// ImageStore は、送信前の画像を一時的に保存する場所です
type ImageStore interface {
	Save(ctx context.Context, requestID string, images []domain.GeneratedImage) ([]StoredImage, error)
	Remove(images []StoredImage) error
}
