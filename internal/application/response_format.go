package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// MessageLimit は、1メッセージに含められる最大文字数です
const MessageLimit = 2000

const (
	// BusyMessage は、キューが満杯のときに即座に返すメッセージです
	BusyMessage = "The generator is busy right now. Please try again in a moment."

	// ShutdownMessage は、停止処理で中断されたリクエストへのメッセージです
	ShutdownMessage = "The bot is shutting down and your request was cancelled. Please try again later."

	truncationSuffix = "…"
)

// FormatDirectiveErrors は、ディレクティブの解析エラーを1つのメッセージにまとめます
func FormatDirectiveErrors(errs []string) string {
	return TruncateMessage("Error: " + strings.Join(errs, "\n"))
}

// FormatCaption は、成功時のキャプションを作成します
// 元のプロンプト（ディレクティブを含む）をコードブロックで囲み、依頼者へのメンションを続けます
func FormatCaption(originalPrompt, mention string) string {
	suffix := "```\n" + mention
	prefix := "```"

	// メンションが欠けないように、長すぎる場合はプロンプト側を切り詰める
	budget := MessageLimit - runeLen(prefix) - runeLen(suffix)
	prompt := originalPrompt
	if runeLen(prompt) > budget {
		prompt = truncateRunes(prompt, budget-runeLen(truncationSuffix)) + truncationSuffix
	}

	return prefix + prompt + suffix
}

// FormatEngineFailure は、生成エンジンの失敗をユーザー向けのメッセージにします
func FormatEngineFailure(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "Error: image generation timed out. Please try again with fewer steps or later."
	}
	return TruncateMessage(fmt.Sprintf("Error: image generation failed: %v", err))
}

// FormatDeliveryFailure は、生成済みの画像を送信できなかったときのメッセージです
func FormatDeliveryFailure(err error) string {
	return TruncateMessage(fmt.Sprintf("Error: failed to deliver images: %v", err))
}

// TruncateMessage は、メッセージを文字数制限に収まるように切り詰めます
func TruncateMessage(content string) string {
	if runeLen(content) <= MessageLimit {
		return content
	}
	return truncateRunes(content, MessageLimit-runeLen(truncationSuffix)) + truncationSuffix
}

func runeLen(s string) int {
	return len([]rune(s))
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
