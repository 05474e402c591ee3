package config

import "time"

// 画像生成エンジンのバックエンド名
const (
	EngineBackendSDAPI  = "sdapi"
	EngineBackendImagen = "imagen"
)

// DiscordConfig は、Discord関連の設定を定義します
type DiscordConfig struct {
	BotToken string `env:"DISCORD_BOT_TOKEN"`
	// LegacyBotToken は、旧来の ANI_TOKEN で指定されたトークンです
	LegacyBotToken string `env:"ANI_TOKEN"`
	ApplicationID  string `env:"DISCORD_APPLICATION_ID"`

	// GuildID が空の場合はグローバルコマンドとして登録します
	GuildID string `env:"DISCORD_GUILD_ID"`
	// RemoveCommands が true の場合、終了時に登録したコマンドを削除します
	RemoveCommands bool `env:"DISCORD_REMOVE_COMMANDS" env-default:"false"`
}

// Token は、使用するBotトークンを返します
func (c DiscordConfig) Token() string {
	if c.BotToken != "" {
		return c.BotToken
	}
	return c.LegacyBotToken
}

// EngineConfig は、画像生成エンジン関連の設定を定義します
type EngineConfig struct {
	Backend string        `env:"ENGINE_BACKEND" env-default:"sdapi"`
	Timeout time.Duration `env:"ENGINE_TIMEOUT" env-default:"3m"` // 1回の呼び出しあたり

	// sdapi (AUTOMATIC1111 互換の txt2img API)
	BaseURL     string `env:"SD_API_BASE_URL" env-default:"http://127.0.0.1:7860"`
	SamplerName string `env:"SD_SAMPLER_NAME" env-default:"Euler a"`

	// imagen (Vertex AI)
	ModelName string `env:"IMAGEN_MODEL_NAME" env-default:"imagen-3.0-generate-002"`
	Project   string `env:"IMAGEN_PROJECT"`
	Location  string `env:"IMAGEN_LOCATION" env-default:"us-central1"`
}

// QueueConfig は、生成キューの設定を定義します
type QueueConfig struct {
	Depth int `env:"QUEUE_DEPTH" env-default:"8"` // 実行中の1件を除く待機数

	// ShutdownTimeout は、終了時に実行中のジョブを待つ上限です
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"7m"`
}

// StorageConfig は、送信前の画像を一時保存する場所の設定です
type StorageConfig struct {
	OutputDir string `env:"OUTPUT_DIR"` // 空の場合は OS の一時ディレクトリ
}

// LogConfig は、ログ出力の設定を定義します
type LogConfig struct {
	Level       string `env:"LOG_LEVEL" env-default:"info"`
	Encoding    string `env:"LOG_ENCODING" env-default:"json"`
	Development bool   `env:"LOG_DEVELOPMENT" env-default:"false"`
}

// MetricsConfig は、Prometheus メトリクスの公開設定です
type MetricsConfig struct {
	Addr string `env:"METRICS_ADDR"` // 空の場合は公開しない
}
