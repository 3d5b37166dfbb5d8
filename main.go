package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/jason-iskcon/ISKCON-Broadcast/internal/broadcast"
	"github.com/jason-iskcon/ISKCON-Broadcast/internal/camera"
	"github.com/jason-iskcon/ISKCON-Broadcast/internal/compose"
	"github.com/jason-iskcon/ISKCON-Broadcast/internal/config"
	"github.com/jason-iskcon/ISKCON-Broadcast/internal/schedule"
	"github.com/jason-iskcon/ISKCON-Broadcast/internal/server"
)

func main() {
	// コマンドラインフラグ
	configPath := flag.String("config", "mode_config.yaml", "カメラ・レイアウト設定ファイルのパス")
	schedulePath := flag.String("schedule", "orchestration.yaml", "スケジュール文書のパス")
	debugTime := flag.String("debug-time", "", "スケジュールを指定時刻 (HH:MM) から再生する")
	host := flag.String("host", "", "リッスンするホスト (設定ファイルを上書き)")
	port := flag.Int("port", 0, "リッスンするポート番号 (設定ファイルを上書き)")
	flag.Parse()

	logger := log.New(os.Stderr, "", log.LstdFlags)

	// 設定を読み込む
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("設定の読み込みに失敗しました: %v", err)
	}
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	// スケジュール文書を読み込む
	doc, err := schedule.Load(*schedulePath)
	if err != nil {
		logger.Fatalf("スケジュールの読み込みに失敗しました: %v", err)
	}

	// スケジュールが参照するモードとカメラの整合性を検証する
	if err := cfg.ValidateSchedule(doc); err != nil {
		logger.Fatalf("スケジュールの検証に失敗しました: %v", err)
	}

	// 時計を選択する（デバッグ時刻が指定されていれば差し替える）
	clock := broadcast.RealClock()
	if *debugTime != "" {
		t, err := schedule.ParseClockTime(*debugTime)
		if err != nil {
			logger.Fatalf("デバッグ時刻の解析に失敗しました: %v", err)
		}
		logger.Printf("デバッグ時刻 %s からスケジュールを再生します", t)
		clock = broadcast.NewDebugClock(t)
	}

	// カメラを作成する
	registry := camera.DefaultRegistry(logger)
	cams, err := registry.CreateAll(cfg.Cameras, logger)
	if err != nil {
		logger.Fatalf("カメラの作成に失敗しました: %v", err)
	}

	// コンポジターを作成する
	background, err := cfg.LoadBackground()
	if err != nil {
		logger.Fatalf("背景画像の読み込みに失敗しました: %v", err)
	}
	compositor := compose.NewCompositor(background, cfg.Canvas.Width, cfg.Canvas.Height, logger)

	// エンジンを組み立てる
	engine := broadcast.NewEngine(broadcast.Options{
		Cameras:    cams,
		Compositor: compositor,
		Scheduler:  schedule.NewScheduler(doc, logger),
		Modes:      cfg.Modes,
		Clock:      clock,
		Interval:   cfg.CycleInterval,
		Logger:     logger,
	})

	ctx := context.Background()

	if err := engine.Start(ctx); err != nil {
		logger.Fatalf("エンジンの起動に失敗しました: %v", err)
	}

	// サーバーを起動する（シグナル受信まで待機する）
	srv := server.New(cfg, engine, logger)
	if err := srv.Start(ctx); err != nil {
		logger.Printf("サーバーの起動に失敗しました: %v", err)
	}

	// エンジンとカメラを停止する
	if err := engine.Stop(ctx); err != nil {
		logger.Printf("エンジンの停止に失敗しました: %v", err)
		fmt.Fprintln(os.Stderr, "シャットダウンが完了しませんでした")
		os.Exit(1)
	}
}
