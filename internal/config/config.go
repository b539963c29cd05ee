package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config はアプリケーション全体の設定を保持する構造体
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Capture CaptureConfig `mapstructure:"capture"`
}

// ServerConfig はHTTPサーバーの設定
type ServerConfig struct {
	Host string `mapstructure:"host"` // リッスンするホスト
	Port int    `mapstructure:"port"` // リッスンするポート番号

	// タイムアウト設定
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`  // 読み込みタイムアウト
	WriteTimeout time.Duration `mapstructure:"write_timeout"` // 書き込みタイムアウト
}

// CaptureConfig はカメラセッションの設定
type CaptureConfig struct {
	Facing     string `mapstructure:"facing"`      // 希望するカメラの向き (back/front)
	ProbeMacro bool   `mapstructure:"probe_macro"` // 起動時に接写デバイスの探索を行うか

	// ストリーム取得時のヒント
	Width  int `mapstructure:"width"`  // 解像度（幅）
	Height int `mapstructure:"height"` // 解像度（高さ）
	FPS    int `mapstructure:"fps"`    // フレームレート

	JPEGQuality int `mapstructure:"jpeg_quality"` // フレームグラブ時のJPEG品質 (1-100)
}

// Load は設定を読み込む
// デフォルト値を基点に、設定ファイル（utsushi.yaml）と
// 環境変数（UTSUSHI_プレフィックス）で上書きする
func Load() (*Config, error) {
	v := viper.New()

	// デフォルト値
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 0) // プレビュー配信用にタイムアウト無効化
	v.SetDefault("capture.facing", "back")
	v.SetDefault("capture.probe_macro", false)
	v.SetDefault("capture.width", 1920)
	v.SetDefault("capture.height", 1080)
	v.SetDefault("capture.fps", 30)
	v.SetDefault("capture.jpeg_quality", 95)

	// 環境変数による上書き（例: UTSUSHI_SERVER_PORT=9090）
	v.SetEnvPrefix("UTSUSHI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 設定ファイルは任意。見つからない場合はデフォルトで動く
	v.SetConfigName("utsushi")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/utsushi")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("設定の展開に失敗: %w", err)
	}

	// 設定の検証
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}

	return &cfg, nil
}

// Validate は設定の妥当性を検証する
func (c *Config) Validate() error {
	// サーバー設定の検証
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("無効なポート番号: %d", c.Server.Port)
	}

	// カメラ設定の検証
	if c.Capture.Facing != "back" && c.Capture.Facing != "front" {
		return fmt.Errorf("無効なカメラの向き: %s", c.Capture.Facing)
	}
	if c.Capture.Width <= 0 || c.Capture.Width > 7680 {
		return fmt.Errorf("無効な幅: %d", c.Capture.Width)
	}
	if c.Capture.Height <= 0 || c.Capture.Height > 4320 {
		return fmt.Errorf("無効な高さ: %d", c.Capture.Height)
	}
	if c.Capture.FPS <= 0 || c.Capture.FPS > 120 {
		return fmt.Errorf("無効なFPS値: %d", c.Capture.FPS)
	}
	if c.Capture.JPEGQuality < 1 || c.Capture.JPEGQuality > 100 {
		return fmt.Errorf("無効なJPEG品質: %d", c.Capture.JPEGQuality)
	}

	return nil
}

// ServerAddress はサーバーのリッスンアドレスを返す
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
