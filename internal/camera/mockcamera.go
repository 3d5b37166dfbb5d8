package camera

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"log"
	"os"
	"sync"
	"time"

	// file ソースのデコード用
	_ "image/jpeg"
	_ "image/png"
)

// TypeMock はモックカメラのレジストリ登録名
const TypeMock = "mock"

// モックカメラのデフォルト設定
const (
	mockDefaultWidth  = 640
	mockDefaultHeight = 480
	mockDefaultFPS    = 15
)

// mockPalette はカメラID毎の基本色
// 合成テストでスロットの取り違えを検出できるよう、IDで色が決まる
var mockPalette = []color.RGBA{
	{R: 200, G: 40, B: 40, A: 255},  // 赤
	{R: 40, G: 160, B: 40, A: 255},  // 緑
	{R: 40, G: 80, B: 200, A: 255},  // 青
	{R: 200, G: 160, B: 40, A: 255}, // 黄
}

// MockCamera は物理デバイスなしで動作するカメラ実装
//
// 合成フレーム（pattern/solid）またはファイル画像（file）を
// キャプチャループと同じ形でスロットに供給する。
// PTZコマンドは検証とログのみ行い、最後のコマンドを記録する。
type MockCamera struct {
	id     int
	cfg    Config
	logger *log.Logger

	width  int
	height int
	fps    int

	// file ソース用の固定画像
	still image.Image

	// 状態管理
	mu      sync.RWMutex
	status  Status
	lastCmd *PTZCommand

	slot FrameSlot

	// 制御用
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewMockCamera は設定からMockCameraを作成する
func NewMockCamera(cfg Config, logger *log.Logger) (Camera, error) {
	if logger == nil {
		logger = log.Default()
	}

	width := cfg.Width
	if width <= 0 {
		width = mockDefaultWidth
	}
	height := cfg.Height
	if height <= 0 {
		height = mockDefaultHeight
	}
	fps := cfg.FPS
	if fps <= 0 {
		fps = mockDefaultFPS
	}

	m := &MockCamera{
		id:     cfg.ID,
		cfg:    cfg,
		logger: logger,
		width:  width,
		height: height,
		fps:    fps,
		status: StatusInactive,
		stopCh: make(chan struct{}),
	}

	switch cfg.Source {
	case "", "pattern", "solid":
		// 合成フレーム
	case "file":
		still, err := loadStill(cfg.FilePath)
		if err != nil {
			return nil, err
		}
		m.still = still
	default:
		return nil, fmt.Errorf("不明なモックソース: %s", cfg.Source)
	}

	return m, nil
}

// loadStill はfileソース用の画像を読み込む
func loadStill(path string) (image.Image, error) {
	if path == "" {
		return nil, fmt.Errorf("fileソースには画像パスが必要です")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("画像ファイルのオープンに失敗: %w", err)
	}
	defer func() { _ = f.Close() }()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("画像のデコードに失敗: %w", err)
	}
	return img, nil
}

// ID はカメラIDを返す
func (m *MockCamera) ID() int { return m.id }

// Type はカメラタイプ名を返す
func (m *MockCamera) Type() string { return TypeMock }

// Start はフレーム生成ループを開始する
func (m *MockCamera) Start(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status == StatusActive {
		return nil // 既に開始済み
	}

	m.wg.Add(1)
	go m.generateLoop()

	m.status = StatusActive
	return nil
}

// Stop はフレーム生成ループを停止する
func (m *MockCamera) Stop(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status == StatusInactive {
		return nil // 既に停止済み
	}

	close(m.stopCh)
	m.wg.Wait()

	m.stopCh = make(chan struct{})
	m.status = StatusInactive
	return nil
}

// GetFrame は最新のフレームを返す
func (m *MockCamera) GetFrame() (*Frame, error) {
	frame, ok := m.slot.Load()
	if !ok {
		return nil, ErrNoFrame
	}
	return frame, nil
}

// SendPTZCommand はコマンドを検証して記録する（デバイス送信は行わない）
func (m *MockCamera) SendPTZCommand(_ context.Context, cmd PTZCommand) error {
	if !IsValidOp(cmd.Op) {
		m.logger.Printf("カメラ %d: 不明なPTZサブ操作: %s", m.id, cmd.Op)
		return fmt.Errorf("%w: 不明なサブ操作 %s", ErrCommandRejected, cmd.Op)
	}

	m.mu.Lock()
	m.lastCmd = &cmd
	m.mu.Unlock()

	m.logger.Printf("カメラ %d: PTZコマンドを受け付けました: %s", m.id, cmd.Op)
	return nil
}

// LastPTZCommand は最後に受け付けたPTZコマンドを返す（テスト用）
func (m *MockCamera) LastPTZCommand() (PTZCommand, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.lastCmd == nil {
		return PTZCommand{}, false
	}
	return *m.lastCmd, true
}

// Info は現在の情報と状態を返す
func (m *MockCamera) Info() Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Info{
		ID:        m.id,
		Type:      TypeMock,
		Running:   m.status == StatusActive,
		Connected: true, // モックは常に接続済み扱い
	}
}

// generateLoop はFPS間隔でフレームを生成してスロットに格納する
func (m *MockCamera) generateLoop() {
	defer m.wg.Done()

	interval := time.Second / time.Duration(m.fps)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var seq uint64
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.slot.Store(&Frame{
				Image:     m.generateFrame(seq),
				Timestamp: time.Now(),
			})
			seq++
		}
	}
}

// generateFrame は1枚の合成フレームを作成する
func (m *MockCamera) generateFrame(seq uint64) image.Image {
	if m.still != nil {
		return m.still
	}

	// Goの%は符号を保存するため、負のIDでも添字が負にならないよう補正する
	idx := m.id % len(mockPalette)
	if idx < 0 {
		idx += len(mockPalette)
	}
	base := mockPalette[idx]
	img := image.NewRGBA(image.Rect(0, 0, m.width, m.height))

	switch m.cfg.Source {
	case "solid":
		fillRect(img, img.Bounds(), base)
	default:
		// pattern: 基本色に横方向のグラデーションをかけ、
		// フレーム連番で動く縦帯を重ねる
		for y := 0; y < m.height; y++ {
			for x := 0; x < m.width; x++ {
				shade := uint8(x * 255 / m.width)
				img.SetRGBA(x, y, color.RGBA{
					R: mixChannel(base.R, shade),
					G: mixChannel(base.G, shade),
					B: mixChannel(base.B, shade),
					A: 255,
				})
			}
		}
		bandX := int(seq) * 4 % m.width
		band := image.Rect(bandX, 0, minInt(bandX+20, m.width), m.height)
		fillRect(img, band, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	}

	return img
}

// fillRect は矩形を単色で塗りつぶす
func fillRect(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

// mixChannel は基本色と濃淡を1:1で混合する
func mixChannel(base, shade uint8) uint8 {
	return uint8((int(base) + int(shade)) / 2)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
