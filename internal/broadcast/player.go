package broadcast

import (
	"context"
	"log"
	"time"
)

// Player は素材再生を担う外部コラボレーターの契約
//
// 実装は呼び出しをブロックしてはならない。再生の完了待ちは
// 実装側の責務で、エンジンは指示を渡すだけで制御サイクルを続行する。
type Player interface {
	// PlayVideo は動画素材を指定時間キャンバスへ再生する
	PlayVideo(ctx context.Context, file string, duration time.Duration)

	// PlayAudio は音声素材を指定時間再生する
	PlayAudio(ctx context.Context, file string, duration time.Duration)
}

// LogPlayer は再生指示をログに残すだけのPlayer実装
// 実際の再生系が接続されていない構成で使う
type LogPlayer struct {
	logger *log.Logger
}

// NewLogPlayer は新しいLogPlayerを作成する
func NewLogPlayer(logger *log.Logger) *LogPlayer {
	if logger == nil {
		logger = log.Default()
	}
	return &LogPlayer{logger: logger}
}

// PlayVideo は動画再生の指示をログに残す
func (p *LogPlayer) PlayVideo(_ context.Context, file string, duration time.Duration) {
	p.logger.Printf("プレイヤー: 動画を再生します: %s (%v)", file, duration)
}

// PlayAudio は音声再生の指示をログに残す
func (p *LogPlayer) PlayAudio(_ context.Context, file string, duration time.Duration) {
	p.logger.Printf("プレイヤー: 音声を再生します: %s (%v)", file, duration)
}
