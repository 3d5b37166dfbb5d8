package compose

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"log"
	"math/rand"
	"testing"

	"github.com/jason-iskcon/ISKCON-Broadcast/internal/camera"
)

// stubCamera は固定フレームを返すテスト用カメラ
type stubCamera struct {
	id    int
	frame *camera.Frame
}

func (s *stubCamera) ID() int                                                     { return s.id }
func (s *stubCamera) Type() string                                                { return "stub" }
func (s *stubCamera) Start(_ context.Context) error                               { return nil }
func (s *stubCamera) Stop(_ context.Context) error                                { return nil }
func (s *stubCamera) SendPTZCommand(_ context.Context, _ camera.PTZCommand) error { return nil }
func (s *stubCamera) Info() camera.Info {
	return camera.Info{ID: s.id, Type: "stub", Running: true, Connected: true}
}

func (s *stubCamera) GetFrame() (*camera.Frame, error) {
	if s.frame == nil {
		return nil, camera.ErrNoFrame
	}
	return s.frame, nil
}

// newStubCamera は単色フレームを持つテスト用カメラを作成する
func newStubCamera(id int, c color.RGBA) *stubCamera {
	return &stubCamera{
		id:    id,
		frame: &camera.Frame{Image: solidImage(320, 240, c)},
	}
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// TestModeValidate はレイアウト検証をテストする
func TestModeValidate(t *testing.T) {
	cameraIDs := map[int]bool{1: true, 2: true, 3: true}

	testCases := []struct {
		name    string
		mode    Mode
		wantErr error
	}{
		{
			name: "正常なフルスクリーン",
			mode: Mode{Name: "full", Type: ModeFullScreen, Camera: 1, Scale: 100},
		},
		{
			name:    "存在しないカメラへの参照",
			mode:    Mode{Name: "ghost", Type: ModeFullScreen, Camera: 9, Scale: 100},
			wantErr: ErrUnknownCameraRef,
		},
		{
			name: "キャンバス境界の超過",
			mode: Mode{
				Name: "overflow", Type: ModeFullScreen,
				Camera: 1, Pos: Point{X: 1000, Y: 0}, Scale: 100,
			},
			wantErr: ErrLayoutBounds,
		},
		{
			name:    "不明なレイアウトタイプ",
			mode:    Mode{Name: "bad", Type: "grid_view"},
			wantErr: ErrUnknownModeType,
		},
		{
			name: "正常なデュアルビュー",
			mode: Mode{
				Name: "dual", Type: ModeDualView,
				CamTopLeft: 1, ScaleTopLeft: 50,
				CamBottomRight: 2, PosBottomRight: Point{X: 960, Y: 540}, ScaleBottomRight: 50,
			},
		},
		{
			name: "正常な左列右メイン",
			mode: Mode{
				Name: "column", Type: ModeLeftColumnRightMain,
				CamRight: 2, PosRight: Point{X: 480, Y: 0}, ScaleRight: 75,
				CamLeftTop: 1, CamLeftBottom: 3,
				PosLeftBottom: Point{X: 0, Y: 270}, ScaleLeft: 25,
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.mode.Validate(1920, 1080, cameraIDs)
			if tc.wantErr == nil {
				if err != nil {
					t.Errorf("検証に失敗しました: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("想定したエラーが返されませんでした: %v", err)
			}
		})
	}
}

// TestModeValidateRandomSpecs はランダムに生成した正当なレイアウトの
// 全スロットがキャンバス境界内に収まることをテストする
func TestModeValidateRandomSpecs(t *testing.T) {
	const canvasW, canvasH = 1920, 1080
	cameraIDs := map[int]bool{1: true, 2: true}
	canvas := image.Rect(0, 0, canvasW, canvasH)
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 100; i++ {
		// スロットがキャンバスに収まるスケールと位置を選ぶ
		scaleTL := rng.Intn(60) + 10
		scaleBR := rng.Intn(60) + 10
		mode := Mode{
			Name: "random", Type: ModeDualView,
			CamTopLeft:   1,
			ScaleTopLeft: scaleTL,
			PosTopLeft: Point{
				X: rng.Intn(canvasW - canvasW*scaleTL/100 + 1),
				Y: rng.Intn(canvasH - canvasH*scaleTL/100 + 1),
			},
			CamBottomRight:   2,
			ScaleBottomRight: scaleBR,
			PosBottomRight: Point{
				X: rng.Intn(canvasW - canvasW*scaleBR/100 + 1),
				Y: rng.Intn(canvasH - canvasH*scaleBR/100 + 1),
			},
		}

		if err := mode.Validate(canvasW, canvasH, cameraIDs); err != nil {
			t.Fatalf("正当なレイアウトが拒否されました: %+v: %v", mode, err)
		}

		slots, err := mode.slots(canvasW, canvasH)
		if err != nil {
			t.Fatalf("配置計算に失敗: %v", err)
		}
		for _, s := range slots {
			if !s.rect().In(canvas) {
				t.Fatalf("スロット領域がキャンバスの外です: %v", s.rect())
			}
		}
	}
}

// TestCompositorBackgroundOnly はモードなし（Idle）の合成をテストする
func TestCompositorBackgroundOnly(t *testing.T) {
	bg := solidImage(1920, 1080, color.RGBA{R: 30, G: 30, B: 30, A: 255})
	comp := NewCompositor(bg, 1920, 1080, quietLogger())

	canvas := comp.Render(nil, nil)
	b := canvas.Bounds()
	if b.Dx() != 1920 || b.Dy() != 1080 {
		t.Fatalf("キャンバス寸法が一致しません: %dx%d", b.Dx(), b.Dy())
	}
	if got := canvas.RGBAAt(960, 540); got.R != 30 {
		t.Errorf("背景色が一致しません: %v", got)
	}
}

// TestCompositorNilBackground は背景なしの黒キャンバスをテストする
func TestCompositorNilBackground(t *testing.T) {
	comp := NewCompositor(nil, 640, 360, quietLogger())

	canvas := comp.Render(nil, nil)
	if got := canvas.RGBAAt(320, 180); got.R != 0 || got.G != 0 || got.B != 0 || got.A != 255 {
		t.Errorf("黒背景ではありません: %v", got)
	}
}

// TestCompositorDualView はデュアルビューの配置をテストする
func TestCompositorDualView(t *testing.T) {
	comp := NewCompositor(nil, 1920, 1080, quietLogger())

	red := color.RGBA{R: 255, A: 255}
	blue := color.RGBA{B: 255, A: 255}
	cams := map[int]camera.Camera{
		1: newStubCamera(1, red),
		2: newStubCamera(2, blue),
	}

	mode := &Mode{
		Name: "dual", Type: ModeDualView,
		CamTopLeft: 1, PosTopLeft: Point{X: 0, Y: 0}, ScaleTopLeft: 50,
		CamBottomRight: 2, PosBottomRight: Point{X: 960, Y: 540}, ScaleBottomRight: 50,
	}

	canvas := comp.Render(mode, cams)

	// 左上スロットはカメラ1（赤）
	if got := canvas.RGBAAt(480, 270); got.R != 255 || got.B != 0 {
		t.Errorf("左上スロットが赤ではありません: %v", got)
	}
	// 右下スロットはカメラ2（青）
	if got := canvas.RGBAAt(1440, 810); got.B != 255 || got.R != 0 {
		t.Errorf("右下スロットが青ではありません: %v", got)
	}
	// スロット外は背景（黒）のまま
	if got := canvas.RGBAAt(1440, 270); got.R != 0 || got.B != 0 {
		t.Errorf("スロット外が背景色ではありません: %v", got)
	}
}

// TestCompositorMissingFrameSkipsSlot はフレーム未取得スロットの扱いをテストする
func TestCompositorMissingFrameSkipsSlot(t *testing.T) {
	bg := solidImage(1920, 1080, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	comp := NewCompositor(bg, 1920, 1080, quietLogger())

	cams := map[int]camera.Camera{
		1: newStubCamera(1, color.RGBA{R: 255, A: 255}),
		2: &stubCamera{id: 2}, // フレームなし
	}

	mode := &Mode{
		Name: "dual", Type: ModeDualView,
		CamTopLeft: 1, PosTopLeft: Point{X: 0, Y: 0}, ScaleTopLeft: 50,
		CamBottomRight: 2, PosBottomRight: Point{X: 960, Y: 540}, ScaleBottomRight: 50,
	}

	canvas := comp.Render(mode, cams)

	// カメラ1のスロットは描画される
	if got := canvas.RGBAAt(480, 270); got.R != 255 {
		t.Errorf("カメラ1のスロットが描画されていません: %v", got)
	}
	// カメラ2のスロットは背景が見える
	if got := canvas.RGBAAt(1440, 810); got.R != 10 || got.G != 20 || got.B != 30 {
		t.Errorf("フレーム未取得スロットに背景が見えません: %v", got)
	}
}

// TestCompositorLeftColumnRightMain は3カメラレイアウトの描画順をテストする
func TestCompositorLeftColumnRightMain(t *testing.T) {
	comp := NewCompositor(nil, 1920, 1080, quietLogger())

	cams := map[int]camera.Camera{
		1: newStubCamera(1, color.RGBA{R: 255, A: 255}),
		2: newStubCamera(2, color.RGBA{G: 255, A: 255}),
		3: newStubCamera(3, color.RGBA{B: 255, A: 255}),
	}

	mode := &Mode{
		Name: "column", Type: ModeLeftColumnRightMain,
		CamRight: 2, PosRight: Point{X: 480, Y: 0}, ScaleRight: 75,
		CamLeftTop: 1, PosLeftTop: Point{X: 0, Y: 0},
		CamLeftBottom: 3, PosLeftBottom: Point{X: 0, Y: 270}, ScaleLeft: 25,
	}

	canvas := comp.Render(mode, cams)

	// 右メインはカメラ2（緑）
	if got := canvas.RGBAAt(1200, 540); got.G != 255 {
		t.Errorf("右メインスロットが緑ではありません: %v", got)
	}
	// 左上はカメラ1（赤）
	if got := canvas.RGBAAt(240, 135); got.R != 255 {
		t.Errorf("左上スロットが赤ではありません: %v", got)
	}
	// 左下はカメラ3（青）
	if got := canvas.RGBAAt(240, 405); got.B != 255 {
		t.Errorf("左下スロットが青ではありません: %v", got)
	}
}

// TestCompositorBackgroundResize は寸法の異なる背景の取り込みをテストする
func TestCompositorBackgroundResize(t *testing.T) {
	bg := solidImage(640, 360, color.RGBA{R: 70, G: 80, B: 90, A: 255})
	comp := NewCompositor(bg, 1920, 1080, quietLogger())

	w, h := comp.Size()
	if w != 1920 || h != 1080 {
		t.Fatalf("キャンバス寸法が一致しません: %dx%d", w, h)
	}
	canvas := comp.RenderBackground()
	if got := canvas.RGBAAt(1900, 1000); got.R != 70 {
		t.Errorf("リサイズされた背景色が一致しません: %v", got)
	}
}

// TestCompositorFullscreen はフルスクリーンレイアウトの描画をテストする
func TestCompositorFullscreen(t *testing.T) {
	comp := NewCompositor(nil, 1920, 1080, quietLogger())

	cams := map[int]camera.Camera{
		1: newStubCamera(1, color.RGBA{R: 200, G: 100, B: 50, A: 255}),
	}
	mode := &Mode{Name: "full", Type: ModeFullScreen, Camera: 1, Scale: 100}

	canvas := comp.Render(mode, cams)

	// 1920*3/4=1440 > 1080 なのでキャンバス全面が埋まる
	for _, p := range []image.Point{{X: 0, Y: 0}, {X: 960, Y: 540}, {X: 1919, Y: 1079}} {
		if got := canvas.RGBAAt(p.X, p.Y); got.R != 200 {
			t.Errorf("画素 %v がカメラ映像で埋まっていません: %v", p, got)
		}
	}
}
