package main

import (
	"context"
	"log"

	"utsushi/internal/capture"
	"utsushi/internal/config"
	"utsushi/internal/logging"
	"utsushi/internal/server"
)

func main() {
	// 設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	// ロガーを作成
	logger, err := logging.New(false)
	if err != nil {
		log.Fatalf("ロガーの作成に失敗しました: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	// キャプチャコントローラーを作成
	platform := capture.NewV4L2Platform(logger.Named("v4l2"))
	controller := capture.NewController(platform, logger.Named("capture"), capture.Options{
		Width:       cfg.Capture.Width,
		Height:      cfg.Capture.Height,
		FPS:         cfg.Capture.FPS,
		JPEGQuality: cfg.Capture.JPEGQuality,
	})

	// サーバーを作成
	srv := server.New(cfg, logger.Named("server"), controller)

	// コンテキストを作成
	ctx := context.Background()

	// サーバーを起動
	if err := srv.Start(ctx); err != nil {
		logger.Fatalw("サーバーの起動に失敗しました", "error", err)
	}
}
