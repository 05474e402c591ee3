package application

import "time"

// リクエストの結果ラベル
const (
	OutcomeSuccess          = "success"
	OutcomeInvalidDirective = "invalid_directive"
	OutcomeEngineError      = "engine_error"
	OutcomeRejected         = "rejected"
	OutcomeAborted          = "aborted"
	OutcomeDeliveryError    = "delivery_error" // 画像の送信に失敗し、失敗メッセージは届いた
	OutcomeResponseError    = "response_error" // ユーザーに何も届けられなかった
)

// Metrics は、生成処理の計測値を記録するインターフェースです
type Metrics interface {
	ObserveRequest(outcome string)
	ObserveEngineCall(backend string, duration time.Duration, err error)
	SetQueueDepth(depth int)
}

// NopMetrics は、何も記録しない Metrics です
type NopMetrics struct{}

func (NopMetrics) ObserveRequest(string)                          {}
func (NopMetrics) ObserveEngineCall(string, time.Duration, error) {}
func (NopMetrics) SetQueueDepth(int)                              {}
