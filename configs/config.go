package configs

import (
	"fmt"
	"strings"

	"imaginebot/internal/infrastructure/config"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config は、アプリケーション全体の設定を定義します
type Config struct {
	Discord config.DiscordConfig
	Engine  config.EngineConfig
	Queue   config.QueueConfig
	Storage config.StorageConfig
	Log     config.LogConfig
	Metrics config.MetricsConfig
}

// LoadConfig は、.env ファイルと環境変数から設定を読み込みます
func LoadConfig() (*Config, error) {
	cfg, err := readConfig()
	if err != nil {
		return nil, err
	}

	// 必須設定の検証
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadDiscordConfig は、Discord関連の設定だけを読み込みます
// エンジンの設定を必要としないサブコマンドで使用します
func LoadDiscordConfig() (*config.DiscordConfig, error) {
	cfg, err := readConfig()
	if err != nil {
		return nil, err
	}
	return &cfg.Discord, nil
}

func readConfig() (*Config, error) {
	// .envファイルを読み込み（ファイルが存在しない場合は無視）
	if err := godotenv.Load(); err != nil {
		// .envファイルが存在しない場合は警告のみ出力（エラーにはしない）
		fmt.Printf("警告: .envファイルの読み込みに失敗しました: %v\n", err)
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("環境変数の読み込みに失敗: %w", err)
	}
	return &cfg, nil
}

// Validate は、設定の妥当性を検証します
func (c *Config) Validate() error {
	if c.Discord.Token() == "" {
		return fmt.Errorf("DISCORD_BOT_TOKEN が設定されていません")
	}

	switch c.Engine.Backend {
	case config.EngineBackendSDAPI:
		if c.Engine.BaseURL == "" {
			return fmt.Errorf("SD_API_BASE_URL が設定されていません")
		}
		if !strings.HasPrefix(c.Engine.BaseURL, "http://") && !strings.HasPrefix(c.Engine.BaseURL, "https://") {
			return fmt.Errorf("SD_API_BASE_URL は http:// または https:// で始まる必要があります")
		}
	case config.EngineBackendImagen:
		if c.Engine.Project == "" {
			return fmt.Errorf("IMAGEN_PROJECT が設定されていません")
		}
		if c.Engine.Location == "" {
			return fmt.Errorf("IMAGEN_LOCATION が設定されていません")
		}
		if c.Engine.ModelName == "" {
			return fmt.Errorf("IMAGEN_MODEL_NAME が設定されていません")
		}
	default:
		return fmt.Errorf("ENGINE_BACKEND は %s または %s である必要があります", config.EngineBackendSDAPI, config.EngineBackendImagen)
	}

	if c.Engine.Timeout <= 0 {
		return fmt.Errorf("ENGINE_TIMEOUT は正の値である必要があります")
	}

	if c.Queue.Depth < 0 {
		return fmt.Errorf("QUEUE_DEPTH は0以上の整数である必要があります")
	}

	if c.Queue.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT は正の値である必要があります")
	}

	return nil
}
