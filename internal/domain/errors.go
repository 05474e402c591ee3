package domain

import (
	"errors"
	"fmt"
)

// ドメイン固有のエラー型を定義
var (
	// ErrQueueFull は、生成キューが満杯で要求を受け付けられない場合のエラーです
	ErrQueueFull = errors.New("生成キューが満杯です")

	// ErrQueueClosed は、停止処理中のキューに要求が投入された場合のエラーです
	ErrQueueClosed = errors.New("生成キューは停止しています")

	// ErrInvalidStateTransition は、許可されていない状態遷移の場合のエラーです
	ErrInvalidStateTransition = errors.New("無効な状態遷移です")

	// ErrEmptyImage は、生成エンジンが空の画像データを返した場合のエラーです
	ErrEmptyImage = errors.New("生成エンジンが空の画像を返しました")
)

// EngineError は、画像生成エンジンの呼び出しに失敗した場合のエラーです
type EngineError struct {
	// Index は、失敗した呼び出しの順番（0始まり）です
	Index int
	Seed  uint32
	Err   error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("画像生成エンジンの呼び出しに失敗 (%d枚目, seed=%d): %v", e.Index+1, e.Seed, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}
