package camera

import (
	"context"
	"errors"
	"image"
	"time"
)

// Status はカメラの動作状態を表す
type Status string

const (
	StatusInactive Status = "inactive" // カメラは停止中
	StatusActive   Status = "active"   // カメラは動作中
	StatusError    Status = "error"    // カメラでエラーが発生
)

// パッケージ共通のエラー
var (
	// ErrNoFrame はまだ1枚もフレームが取得されていないことを表す
	ErrNoFrame = errors.New("フレームがまだ取得されていません")
	// ErrNotAuthenticated は認証トークンがない状態でのPTZ送信を表す
	ErrNotAuthenticated = errors.New("カメラが認証されていません")
	// ErrUnknownCameraType は未登録のカメラタイプを表す
	ErrUnknownCameraType = errors.New("不明なカメラタイプ")
	// ErrCommandRejected は不正なPTZコマンドを表す
	ErrCommandRejected = errors.New("PTZコマンドが拒否されました")
)

// Frame はキャプチャループが取得した1枚の画像
type Frame struct {
	Image     image.Image // デコード済み画像
	Timestamp time.Time   // 取得時刻
	Sequence  uint64      // 取得順の連番
}

// PTZOp はPTZコマンドのサブ操作を表す
type PTZOp string

const (
	PTZLeft      PTZOp = "Left"
	PTZRight     PTZOp = "Right"
	PTZUp        PTZOp = "Up"
	PTZDown      PTZOp = "Down"
	PTZLeftUp    PTZOp = "LeftUp"
	PTZLeftDown  PTZOp = "LeftDown"
	PTZRightUp   PTZOp = "RightUp"
	PTZRightDown PTZOp = "RightDown"
	PTZZoomInc   PTZOp = "ZoomInc"
	PTZZoomDec   PTZOp = "ZoomDec"
	PTZToPos     PTZOp = "ToPos"
	PTZStop      PTZOp = "Stop"
)

// DefaultPTZSpeed は移動系コマンドのデフォルト速度
const DefaultPTZSpeed = 32

// moveOps は速度を持つ移動系サブ操作の集合
var moveOps = map[PTZOp]bool{
	PTZLeft:      true,
	PTZRight:     true,
	PTZUp:        true,
	PTZDown:      true,
	PTZLeftUp:    true,
	PTZLeftDown:  true,
	PTZRightUp:   true,
	PTZRightDown: true,
	PTZZoomInc:   true,
	PTZZoomDec:   true,
}

// IsMoveOp はopが速度付き移動操作かどうかを返す
func IsMoveOp(op PTZOp) bool {
	return moveOps[op]
}

// IsValidOp はopが定義済みのサブ操作かどうかを返す
func IsValidOp(op PTZOp) bool {
	return moveOps[op] || op == PTZToPos || op == PTZStop
}

// PTZCommand はPTZコマンド1件を表す
type PTZCommand struct {
	Op       PTZOp // サブ操作
	Channel  int   // チャンネル番号 (通常0)
	Speed    int   // 移動速度 (0の場合はDefaultPTZSpeed)
	PresetID int   // ToPos用のプリセット番号
}

// Info はカメラの情報と状態のスナップショット
type Info struct {
	ID        int    `json:"id"`        // カメラID
	Type      string `json:"type"`      // カメラタイプ
	Running   bool   `json:"running"`   // キャプチャループが動作中か
	Connected bool   `json:"connected"` // デバイスと接続できているか
}

// Camera は全てのカメラ実装が満たす契約
//
// GetFrame は最新フレームを返すだけで、新しいフレームを待ってブロック
// することはない。コンポジターは古いフレームのまま合成を続行する。
type Camera interface {
	// ID はカメラの一意識別子を返す
	ID() int

	// Type は登録されたカメラタイプ名を返す
	Type() string

	// Start はキャプチャループを開始する（冪等）
	Start(ctx context.Context) error

	// Stop はキャプチャループを停止しリソースを解放する（冪等）
	Stop(ctx context.Context) error

	// GetFrame は最新のフレームを返す
	// まだ1枚も取得されていない場合は ErrNoFrame を返す
	GetFrame() (*Frame, error)

	// SendPTZCommand はPTZコマンドを送信する
	// 一過性のネットワーク障害はログに残して吸収し、呼び出し元には
	// ローカル検証エラー（不正なop、未認証）のみ返す
	SendPTZCommand(ctx context.Context, cmd PTZCommand) error

	// Info は現在の情報と状態を返す
	Info() Info
}

// Config はカメラ1台分の設定
// カメラタイプ毎に使用するフィールドは異なる
type Config struct {
	ID   int    `yaml:"id"`   // カメラID
	Type string `yaml:"type"` // カメラタイプ (ip_camera, mock など)

	// IPカメラ用
	Host      string      `yaml:"host"`       // デバイスのホスト (例: 192.168.1.10)
	StreamURL string      `yaml:"stream_url"` // MJPEGストリームのURL
	Username  string      `yaml:"username"`   // ログインユーザー名
	Password  string      `yaml:"password"`   // ログインパスワード
	PTZSpeed  int         `yaml:"ptz_speed"`  // PTZ速度 (0の場合はデフォルト)
	Login     LoginConfig `yaml:"login"`      // ログインリトライ設定

	// モックカメラ用
	Source   string `yaml:"source"`    // フレーム生成方法 (pattern, solid, file)
	FilePath string `yaml:"file_path"` // source=file の画像パス
	Width    int    `yaml:"width"`     // 生成フレームの幅
	Height   int    `yaml:"height"`    // 生成フレームの高さ
	FPS      int    `yaml:"fps"`       // フレームレート
}

// LoginConfig はIPカメラのログインリトライ設定
type LoginConfig struct {
	Retries int           `yaml:"retries"` // リトライ回数
	Timeout time.Duration `yaml:"timeout"` // 1回あたりのタイムアウト
	Delay   time.Duration `yaml:"delay"`   // リトライ間隔
}

// DefaultLoginConfig はログイン設定のデフォルト値を返す
func DefaultLoginConfig() LoginConfig {
	return LoginConfig{
		Retries: 3,
		Timeout: 10 * time.Second,
		Delay:   5 * time.Second,
	}
}
