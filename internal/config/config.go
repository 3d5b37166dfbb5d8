package config

import (
	"errors"
	"fmt"
	"image"
	"os"
	"time"

	"github.com/jason-iskcon/ISKCON-Broadcast/internal/camera"
	"github.com/jason-iskcon/ISKCON-Broadcast/internal/compose"
	"github.com/jason-iskcon/ISKCON-Broadcast/internal/schedule"

	"gopkg.in/yaml.v3"

	// 背景画像のデコード用
	_ "image/jpeg"
	_ "image/png"
)

// ErrUnknownMode はスケジュールが存在しないモードを参照していることを表す
var ErrUnknownMode = errors.New("不明なレイアウトモード")

// キャンバスのデフォルト寸法（HD）
const (
	DefaultCanvasWidth  = 1920
	DefaultCanvasHeight = 1080
)

// Config はアプリケーション全体の設定を保持する構造体
type Config struct {
	Server          ServerConfig             `yaml:"server"`
	Canvas          CanvasConfig             `yaml:"canvas"`
	BackgroundImage string                   `yaml:"background_image"` // 背景画像のパス（空なら黒背景）
	Cameras         []camera.Config          `yaml:"cameras"`
	Modes           map[string]*compose.Mode `yaml:"modes"`

	// 制御サイクルの間隔
	CycleInterval time.Duration `yaml:"cycle_interval"`
}

// ServerConfig はHTTPサーバーの設定
type ServerConfig struct {
	Host string `yaml:"host"` // リッスンするホスト
	Port int    `yaml:"port"` // リッスンするポート番号

	// タイムアウト設定
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // 読み込みタイムアウト
	WriteTimeout time.Duration `yaml:"write_timeout"` // 書き込みタイムアウト
}

// CanvasConfig は出力キャンバスの設定
// 寸法は実行中は固定
type CanvasConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Load は設定をYAMLファイルから読み込む
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
	}
	return Parse(data)
}

// Parse は設定をYAMLから解析して検証する
func Parse(data []byte) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvAsIntOrDefault("PORT", 8080),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 0, // ストリーミング用にタイムアウト無効化
		},
		Canvas: CanvasConfig{
			Width:  DefaultCanvasWidth,
			Height: DefaultCanvasHeight,
		},
		CycleInterval: 100 * time.Millisecond,
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("設定の解析に失敗: %w", err)
	}

	// モード名を設定のキーから埋める
	for name, mode := range cfg.Modes {
		mode.Name = name
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}

	return cfg, nil
}

// Validate は設定の妥当性を検証する
// 構成エラーはここで検出し、実行中に表面化させない
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("無効なポート番号: %d", c.Server.Port)
	}
	if c.Canvas.Width <= 0 || c.Canvas.Height <= 0 {
		return fmt.Errorf("無効なキャンバス寸法: %dx%d", c.Canvas.Width, c.Canvas.Height)
	}
	if c.CycleInterval <= 0 {
		return fmt.Errorf("制御サイクル間隔が不正です: %v", c.CycleInterval)
	}

	// カメラIDの重複チェック
	cameraIDs := make(map[int]bool, len(c.Cameras))
	for _, cam := range c.Cameras {
		if cameraIDs[cam.ID] {
			return fmt.Errorf("カメラIDが重複しています: %d", cam.ID)
		}
		cameraIDs[cam.ID] = true
	}

	// 各モードのスケール範囲とレイアウトを検証する
	for name, mode := range c.Modes {
		for _, scale := range modeScales(mode) {
			if scale < 0 || scale > 100 {
				return fmt.Errorf("モード %s のスケール %d が範囲外です (0-100)", name, scale)
			}
		}
		if err := mode.Validate(c.Canvas.Width, c.Canvas.Height, cameraIDs); err != nil {
			return err
		}
	}

	return nil
}

// modeScales はモードが使用するスケール値をタイプに応じて返す
func modeScales(m *compose.Mode) []int {
	switch m.Type {
	case compose.ModeFullScreen:
		return []int{m.Scale}
	case compose.ModeDualView:
		return []int{m.ScaleTopLeft, m.ScaleBottomRight}
	case compose.ModeLeftColumnRightMain:
		return []int{m.ScaleLeft, m.ScaleRight}
	default:
		return nil
	}
}

// ValidateSchedule はスケジュール文書の参照整合性を検証する
// 未定義モードや存在しないカメラへの参照は起動時の致命エラー
func (c *Config) ValidateSchedule(doc *schedule.Document) error {
	for _, name := range doc.ModeNames() {
		if _, exists := c.Modes[name]; !exists {
			return fmt.Errorf("%w: スケジュールがモード %s を参照しています", ErrUnknownMode, name)
		}
	}

	cameraIDs := make(map[int]bool, len(c.Cameras))
	for _, cam := range c.Cameras {
		cameraIDs[cam.ID] = true
	}
	for _, id := range doc.CameraIDs() {
		if !cameraIDs[id] {
			return fmt.Errorf("スケジュールが存在しないカメラ %d を参照しています", id)
		}
	}

	return nil
}

// LoadBackground は背景画像を読み込む
// パスが未設定の場合は (nil, nil) を返し、黒背景が使われる
func (c *Config) LoadBackground() (image.Image, error) {
	if c.BackgroundImage == "" {
		return nil, nil
	}

	f, err := os.Open(c.BackgroundImage)
	if err != nil {
		return nil, fmt.Errorf("背景画像のオープンに失敗: %w", err)
	}
	defer func() { _ = f.Close() }()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("背景画像のデコードに失敗: %w", err)
	}
	return img, nil
}

// ServerAddress はサーバーのリッスンアドレスを返す
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// getEnvOrDefault は環境変数を取得し、設定されていない場合はデフォルト値を返す
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault は環境変数を整数として取得し、設定されていない場合はデフォルト値を返す
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intVal int
		if _, err := fmt.Sscanf(value, "%d", &intVal); err == nil {
			return intVal
		}
	}
	return defaultValue
}
