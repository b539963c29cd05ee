// Package main はUtsushiサーバーコマンドの実装です
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"utsushi/internal/capture"
	"utsushi/internal/config"
	"utsushi/internal/logging"
	"utsushi/internal/server"
)

func main() {
	// コマンドラインオプション
	var (
		host    = flag.String("host", "", "サーバーのホスト (デフォルト: 0.0.0.0)")
		port    = flag.Int("port", 0, "サーバーのポート (デフォルト: 8080)")
		probe   = flag.Bool("probe-macro", false, "起動時に接写デバイスの探索を行う")
		verbose = flag.Bool("verbose", false, "デバッグログを出力")
		help    = flag.Bool("help", false, "ヘルプを表示")
	)

	flag.Parse()

	// ヘルプ表示
	if *help {
		fmt.Println("Utsushi")
		fmt.Println()
		fmt.Println("使用方法:")
		fmt.Println("  server [オプション]")
		fmt.Println()
		fmt.Println("オプション:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	// 設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	// コマンドラインオプションで設定を上書き
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *probe {
		cfg.Capture.ProbeMacro = true
	}

	// ロガーを作成
	logger, err := logging.New(*verbose)
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
	logger.Infow("Utsushi サーバーを起動します", "address", cfg.ServerAddress())
	if err := srv.Start(ctx); err != nil {
		logger.Fatalw("サーバーの起動に失敗しました", "error", err)
	}
}
