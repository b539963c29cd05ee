package config

import (
	"testing"
	"time"
)

// TestConfigLoad は設定の読み込みをテストする
func TestConfigLoad(t *testing.T) {
	// 設定を読み込む
	cfg, err := Load()
	if err != nil {
		t.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	// 基本的な設定値を検証
	if cfg == nil {
		t.Fatal("設定がnilです")
	}

	// サーバー設定の検証
	if cfg.Server.Host == "" {
		t.Error("サーバーホストが設定されていません")
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		t.Errorf("無効なポート番号: %d", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout <= 0 {
		t.Error("読み込みタイムアウトが設定されていません")
	}
	// WriteTimeout は 0（無効）でも正常
	if cfg.Server.WriteTimeout < 0 {
		t.Error("書き込みタイムアウトが負の値です")
	}

	// カメラ設定のデフォルト値の検証
	if cfg.Capture.Facing != "back" {
		t.Errorf("デフォルトの向きが不正です: %s", cfg.Capture.Facing)
	}
	if cfg.Capture.Width <= 0 {
		t.Error("デフォルト幅が設定されていません")
	}
	if cfg.Capture.Height <= 0 {
		t.Error("デフォルト高さが設定されていません")
	}
	if cfg.Capture.FPS <= 0 {
		t.Error("デフォルトFPSが設定されていません")
	}
	if cfg.Capture.JPEGQuality < 1 || cfg.Capture.JPEGQuality > 100 {
		t.Errorf("無効なJPEG品質: %d", cfg.Capture.JPEGQuality)
	}
}

// TestConfigValidation は設定の検証をテストする
func TestConfigValidation(t *testing.T) {
	validCapture := CaptureConfig{
		Facing:      "back",
		Width:       1920,
		Height:      1080,
		FPS:         30,
		JPEGQuality: 95,
	}

	testCases := []struct {
		name      string
		config    *Config
		expectErr bool
	}{
		{
			name: "正常な設定",
			config: &Config{
				Server:  ServerConfig{Host: "localhost", Port: 8080},
				Capture: validCapture,
			},
			expectErr: false,
		},
		{
			name: "無効なポート番号",
			config: &Config{
				Server:  ServerConfig{Host: "localhost", Port: 99999},
				Capture: validCapture,
			},
			expectErr: true,
		},
		{
			name: "無効なカメラの向き",
			config: &Config{
				Server: ServerConfig{Host: "localhost", Port: 8080},
				Capture: CaptureConfig{
					Facing:      "sideways",
					Width:       1920,
					Height:      1080,
					FPS:         30,
					JPEGQuality: 95,
				},
			},
			expectErr: true,
		},
		{
			name: "無効な解像度",
			config: &Config{
				Server: ServerConfig{Host: "localhost", Port: 8080},
				Capture: CaptureConfig{
					Facing:      "back",
					Width:       0,
					Height:      1080,
					FPS:         30,
					JPEGQuality: 95,
				},
			},
			expectErr: true,
		},
		{
			name: "無効なJPEG品質",
			config: &Config{
				Server: ServerConfig{Host: "localhost", Port: 8080},
				Capture: CaptureConfig{
					Facing:      "back",
					Width:       1920,
					Height:      1080,
					FPS:         30,
					JPEGQuality: 0,
				},
			},
			expectErr: true,
		},
		{
			name: "無効なFPS",
			config: &Config{
				Server: ServerConfig{Host: "localhost", Port: 8080},
				Capture: CaptureConfig{
					Facing:      "back",
					Width:       1920,
					Height:      1080,
					FPS:         -1,
					JPEGQuality: 95,
				},
			},
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.config.Validate()
			if tc.expectErr && err == nil {
				t.Error("エラーが期待されましたが、エラーが発生しませんでした")
			}
			if !tc.expectErr && err != nil {
				t.Errorf("予期しないエラーが発生しました: %v", err)
			}
		})
	}
}

// TestServerAddress はサーバーアドレスの生成をテストする
func TestServerAddress(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{
			Host: "192.168.1.100",
			Port: 9090,
		},
	}

	expected := "192.168.1.100:9090"
	actual := cfg.ServerAddress()

	if actual != expected {
		t.Errorf("サーバーアドレスが一致しません: got %s, want %s", actual, expected)
	}
}

// TestEnvironmentVariables は環境変数の処理をテストする
// 注意: このテストは環境変数を変更するため、parallelは使わない
func TestEnvironmentVariables(t *testing.T) {
	t.Setenv("UTSUSHI_SERVER_HOST", "test.example.com")
	t.Setenv("UTSUSHI_SERVER_PORT", "9999")
	t.Setenv("UTSUSHI_CAPTURE_PROBE_MACRO", "true")
	t.Setenv("UTSUSHI_SERVER_READ_TIMEOUT", "30s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	if cfg.Server.Host != "test.example.com" {
		t.Errorf("環境変数のホストが反映されていません: got %s, want test.example.com", cfg.Server.Host)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("環境変数のポートが反映されていません: got %d, want 9999", cfg.Server.Port)
	}
	if !cfg.Capture.ProbeMacro {
		t.Error("環境変数の接写探索フラグが反映されていません")
	}
	if cfg.Server.ReadTimeout != 30*time.Second {
		t.Errorf("環境変数のタイムアウトが反映されていません: got %v", cfg.Server.ReadTimeout)
	}
}
