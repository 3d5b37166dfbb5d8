package compose

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log"

	"github.com/jason-iskcon/ISKCON-Broadcast/internal/camera"

	"gopkg.in/yaml.v3"
)

// レイアウト検証のエラー
var (
	// ErrLayoutBounds は配置領域がキャンバス境界を超えていることを表す
	ErrLayoutBounds = errors.New("配置領域がキャンバス境界を超えています")
	// ErrUnknownModeType は未定義のレイアウトタイプを表す
	ErrUnknownModeType = errors.New("不明なレイアウトタイプ")
	// ErrUnknownCameraRef はレイアウトが参照するカメラが存在しないことを表す
	ErrUnknownCameraRef = errors.New("レイアウトが参照するカメラが存在しません")
)

// ModeType はレイアウトポリシーの種別
type ModeType string

const (
	ModeFullScreen          ModeType = "full_screen"            // 1カメラのフルスクリーン表示
	ModeDualView            ModeType = "dual_view"              // 2カメラの並置表示
	ModeLeftColumnRightMain ModeType = "left_column_right_main" // 左2段 + 右メインの3カメラ表示
)

// Point はキャンバス上のピクセル座標
// YAMLでは [x, y] のシーケンスとして表現される
type Point struct {
	X int
	Y int
}

// UnmarshalYAML は [x, y] 形式を読み取る
func (p *Point) UnmarshalYAML(node *yaml.Node) error {
	var coords []int
	if err := node.Decode(&coords); err != nil {
		return fmt.Errorf("座標の解析に失敗: %w", err)
	}
	if len(coords) != 2 {
		return fmt.Errorf("座標は [x, y] の2要素が必要です: %v", coords)
	}
	p.X = coords[0]
	p.Y = coords[1]
	return nil
}

// Mode は名前付きレイアウト仕様
// タイプ毎に使用するフィールドは異なり、読み込み後は不変として扱う
type Mode struct {
	Name string   `yaml:"-"`    // モード名（設定のキーから設定される）
	Type ModeType `yaml:"type"` // レイアウトタイプ

	// full_screen 用
	Camera int   `yaml:"camera"` // 表示するカメラID
	Pos    Point `yaml:"pos"`    // 配置位置
	Scale  int   `yaml:"scale"`  // キャンバスに対する百分率 (0-100)

	// dual_view 用
	CamTopLeft       int   `yaml:"cam_top_left"`
	PosTopLeft       Point `yaml:"pos_top_left"`
	ScaleTopLeft     int   `yaml:"scale_top_left"`
	CamBottomRight   int   `yaml:"cam_bottom_right"`
	PosBottomRight   Point `yaml:"pos_bottom_right"`
	ScaleBottomRight int   `yaml:"scale_bottom_right"`

	// left_column_right_main 用
	CamLeftTop    int   `yaml:"cam_left_top"`
	CamLeftBottom int   `yaml:"cam_left_bottom"`
	CamRight      int   `yaml:"cam_right"`
	PosLeftTop    Point `yaml:"pos_left_top"`
	PosLeftBottom Point `yaml:"pos_left_bottom"`
	PosRight      Point `yaml:"pos_right"`
	ScaleLeft     int   `yaml:"scale_left"`
	ScaleRight    int   `yaml:"scale_right"`
}

// sizing はスロットへのフレームの合わせ方
type sizing int

const (
	sizingCrop       sizing = iota // CropAndResize
	sizingFullscreen               // FullscreenDisplay
)

// slot はレイアウト内の1配置領域
// 合成はslotsが返す順序で行われ、後から描いた領域が重なりで勝つ
type slot struct {
	cameraID int
	pos      Point
	width    int
	height   int
	sizing   sizing
}

// rect はスロットの配置領域を返す
func (s slot) rect() image.Rectangle {
	return image.Rect(s.pos.X, s.pos.Y, s.pos.X+s.width, s.pos.Y+s.height)
}

// slots はレイアウトの配置領域を合成順で返す
func (m *Mode) slots(canvasW, canvasH int) ([]slot, error) {
	switch m.Type {
	case ModeFullScreen:
		targetW := canvasW * m.Scale / 100
		targetH := canvasH * m.Scale / 100
		w, h := FullscreenSize(targetW, targetH)
		return []slot{
			{cameraID: m.Camera, pos: m.Pos, width: w, height: h, sizing: sizingFullscreen},
		}, nil

	case ModeDualView:
		// 左上カメラを先に描くため、重なりは右下カメラが勝つ
		return []slot{
			{
				cameraID: m.CamTopLeft,
				pos:      m.PosTopLeft,
				width:    canvasW * m.ScaleTopLeft / 100,
				height:   canvasH * m.ScaleTopLeft / 100,
				sizing:   sizingCrop,
			},
			{
				cameraID: m.CamBottomRight,
				pos:      m.PosBottomRight,
				width:    canvasW * m.ScaleBottomRight / 100,
				height:   canvasH * m.ScaleBottomRight / 100,
				sizing:   sizingCrop,
			},
		}, nil

	case ModeLeftColumnRightMain:
		// 右メイン→左上→左下の順で描く
		leftW := canvasW * m.ScaleLeft / 100
		leftH := canvasH * m.ScaleLeft / 100
		return []slot{
			{
				cameraID: m.CamRight,
				pos:      m.PosRight,
				width:    canvasW * m.ScaleRight / 100,
				height:   canvasH, // 右カメラは全高
				sizing:   sizingCrop,
			},
			{cameraID: m.CamLeftTop, pos: m.PosLeftTop, width: leftW, height: leftH, sizing: sizingCrop},
			{cameraID: m.CamLeftBottom, pos: m.PosLeftBottom, width: leftW, height: leftH, sizing: sizingCrop},
		}, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownModeType, m.Type)
	}
}

// Validate はレイアウトが起動時の構成として妥当かを検証する
// 配置領域の境界超過と存在しないカメラ参照は構成エラーであり、
// 実行時に回復できる条件ではない
func (m *Mode) Validate(canvasW, canvasH int, cameraIDs map[int]bool) error {
	slots, err := m.slots(canvasW, canvasH)
	if err != nil {
		return err
	}

	canvas := image.Rect(0, 0, canvasW, canvasH)
	for _, s := range slots {
		if !cameraIDs[s.cameraID] {
			return fmt.Errorf("%w: モード %s がカメラ %d を参照", ErrUnknownCameraRef, m.Name, s.cameraID)
		}
		if !s.rect().In(canvas) {
			return fmt.Errorf("%w: モード %s のカメラ %d の領域 %v がキャンバス %dx%d の外",
				ErrLayoutBounds, m.Name, s.cameraID, s.rect(), canvasW, canvasH)
		}
	}
	return nil
}

// Compositor はカメラフレームをキャンバスへ合成する
//
// キャンバスは毎サイクル背景画像から再構築する（ステートレス再計算）。
// 前サイクルの残像がカメラ切り替え時に残ることを防ぐため。
type Compositor struct {
	background *image.RGBA
	width      int
	height     int
	logger     *log.Logger
}

// NewCompositor は新しいCompositorを作成する
// backgroundがnilの場合は黒背景を使う。寸法が異なる場合はキャンバスに合わせる
func NewCompositor(background image.Image, width, height int, logger *log.Logger) *Compositor {
	if logger == nil {
		logger = log.Default()
	}

	bg := image.NewRGBA(image.Rect(0, 0, width, height))
	if background != nil {
		b := background.Bounds()
		if b.Dx() == width && b.Dy() == height {
			draw.Draw(bg, bg.Bounds(), background, b.Min, draw.Src)
		} else {
			bg = ResizeToFit(background, width, height)
		}
	} else {
		draw.Draw(bg, bg.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	}

	return &Compositor{
		background: bg,
		width:      width,
		height:     height,
		logger:     logger,
	}
}

// Size はキャンバス寸法を返す
func (c *Compositor) Size() (int, int) {
	return c.width, c.height
}

// RenderBackground は背景のみのキャンバスを返す（Idle状態用）
func (c *Compositor) RenderBackground() *image.RGBA {
	canvas := image.NewRGBA(image.Rect(0, 0, c.width, c.height))
	draw.Draw(canvas, canvas.Bounds(), c.background, image.Point{}, draw.Src)
	return canvas
}

// Render は指定モードでカメラフレームを合成したキャンバスを返す
//
// フレームが未取得のカメラはスロットの描画をスキップし、
// 背景がそのまま見える（欠落スロットの統一ポリシー）。
func (c *Compositor) Render(mode *Mode, cams map[int]camera.Camera) *image.RGBA {
	canvas := c.RenderBackground()
	if mode == nil {
		return canvas
	}

	slots, err := mode.slots(c.width, c.height)
	if err != nil {
		// 起動時検証を通っていればここには来ない
		c.logger.Printf("コンポジター: モード %s の配置計算に失敗: %v", mode.Name, err)
		return canvas
	}

	for _, s := range slots {
		cam, ok := cams[s.cameraID]
		if !ok {
			c.logger.Printf("コンポジター: カメラ %d が存在しないためスロットをスキップ", s.cameraID)
			continue
		}

		frame, err := cam.GetFrame()
		if err != nil {
			// フレーム未取得は背景を見せたまま続行する
			c.logger.Printf("コンポジター: カメラ %d のフレームがないためスロットをスキップ: %v", s.cameraID, err)
			continue
		}

		var resized *image.RGBA
		switch s.sizing {
		case sizingFullscreen:
			resized = FullscreenDisplay(frame.Image, s.width, s.height)
		default:
			resized = CropAndResize(frame.Image, s.width, s.height)
		}

		r := resized.Bounds()
		dstRect := image.Rect(s.pos.X, s.pos.Y, s.pos.X+r.Dx(), s.pos.Y+r.Dy())
		draw.Draw(canvas, dstRect, resized, image.Point{}, draw.Src)
	}

	return canvas
}
