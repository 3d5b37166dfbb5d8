package config

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jason-iskcon/ISKCON-Broadcast/internal/schedule"
)

// validConfigYAML はテスト用の正常な設定
const validConfigYAML = `
server:
  host: 127.0.0.1
  port: 9000

canvas:
  width: 1920
  height: 1080

cycle_interval: 50ms

cameras:
  - id: 1
    type: ip_camera
    host: 192.168.1.10
    stream_url: http://192.168.1.10:8080/video
    username: admin
    password: secret
  - id: 2
    type: mock
    source: solid

modes:
  altar_full:
    type: full_screen
    camera: 1
    pos: [0, 0]
    scale: 100
  dual:
    type: dual_view
    cam_top_left: 1
    pos_top_left: [0, 0]
    scale_top_left: 50
    cam_bottom_right: 2
    pos_bottom_right: [960, 540]
    scale_bottom_right: 50
`

// TestConfigParse は設定の解析をテストする
func TestConfigParse(t *testing.T) {
	cfg, err := Parse([]byte(validConfigYAML))
	if err != nil {
		t.Fatalf("設定の解析に失敗: %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("サーバー設定が一致しません: %+v", cfg.Server)
	}
	if cfg.ServerAddress() != "127.0.0.1:9000" {
		t.Errorf("サーバーアドレスが一致しません: %s", cfg.ServerAddress())
	}
	if cfg.Canvas.Width != 1920 || cfg.Canvas.Height != 1080 {
		t.Errorf("キャンバス設定が一致しません: %+v", cfg.Canvas)
	}
	if cfg.CycleInterval != 50*time.Millisecond {
		t.Errorf("制御サイクル間隔が一致しません: %v", cfg.CycleInterval)
	}
	if len(cfg.Cameras) != 2 {
		t.Fatalf("カメラ数が2ではありません: %d", len(cfg.Cameras))
	}
	if cfg.Cameras[0].Host != "192.168.1.10" {
		t.Errorf("カメラ設定が一致しません: %+v", cfg.Cameras[0])
	}

	// モード名はマップのキーから埋められる
	if mode, ok := cfg.Modes["dual"]; !ok || mode.Name != "dual" {
		t.Errorf("モード名が設定されていません: %+v", cfg.Modes)
	}
	if cfg.Modes["dual"].PosBottomRight.X != 960 {
		t.Errorf("座標の解析結果が一致しません: %+v", cfg.Modes["dual"].PosBottomRight)
	}
}

// TestConfigDefaults は未指定項目のデフォルト値をテストする
func TestConfigDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`cameras: []`))
	if err != nil {
		t.Fatalf("設定の解析に失敗: %v", err)
	}

	if cfg.Canvas.Width != DefaultCanvasWidth || cfg.Canvas.Height != DefaultCanvasHeight {
		t.Errorf("キャンバスのデフォルト値が一致しません: %+v", cfg.Canvas)
	}
	if cfg.CycleInterval != 100*time.Millisecond {
		t.Errorf("制御サイクル間隔のデフォルト値が一致しません: %v", cfg.CycleInterval)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("ポートのデフォルト値が一致しません: %d", cfg.Server.Port)
	}
}

// TestConfigValidation は設定の検証をテストする
func TestConfigValidation(t *testing.T) {
	testCases := []struct {
		name    string
		yaml    string
		wantMsg string
	}{
		{
			name:    "無効なポート番号",
			yaml:    "server:\n  port: 70000\n",
			wantMsg: "無効なポート番号",
		},
		{
			name:    "無効なキャンバス寸法",
			yaml:    "canvas:\n  width: -1\n  height: 1080\n",
			wantMsg: "無効なキャンバス寸法",
		},
		{
			name: "カメラIDの重複",
			yaml: `
cameras:
  - id: 1
    type: mock
  - id: 1
    type: mock
`,
			wantMsg: "重複",
		},
		{
			name: "範囲外のスケール",
			yaml: `
cameras:
  - id: 1
    type: mock
modes:
  big:
    type: full_screen
    camera: 1
    scale: 150
`,
			wantMsg: "範囲外",
		},
		{
			name: "存在しないカメラを参照するモード",
			yaml: `
cameras:
  - id: 1
    type: mock
modes:
  ghost:
    type: full_screen
    camera: 5
    scale: 100
`,
			wantMsg: "カメラ",
		},
		{
			name: "キャンバス境界を超えるレイアウト",
			yaml: `
cameras:
  - id: 1
    type: mock
modes:
  overflow:
    type: full_screen
    camera: 1
    pos: [1000, 0]
    scale: 100
`,
			wantMsg: "境界",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			if err == nil {
				t.Fatal("検証エラーが返されませんでした")
			}
			if !strings.Contains(err.Error(), tc.wantMsg) {
				t.Errorf("エラーメッセージが想定と異なります: %v", err)
			}
		})
	}
}

// TestValidateSchedule はスケジュールとの参照整合性をテストする
func TestValidateSchedule(t *testing.T) {
	cfg, err := Parse([]byte(validConfigYAML))
	if err != nil {
		t.Fatalf("設定の解析に失敗: %v", err)
	}

	// 正常: 定義済みモードと存在するカメラを参照
	doc, err := schedule.Parse([]byte(`
programmes:
  - name: Morning
    start_time: "07:00"
    end_time: "08:00"
    events:
      - name: Aarti
        start_time: "07:00"
        end_time: "08:00"
        actions:
          - action: video_mode
            mode: altar_full
            duration: 60
          - action: camera_move
            camera: 1
            type: Left
            duration: 3
`))
	if err != nil {
		t.Fatalf("スケジュールの解析に失敗: %v", err)
	}
	if err := cfg.ValidateSchedule(doc); err != nil {
		t.Errorf("正常なスケジュールが拒否されました: %v", err)
	}

	// 未定義モードへの参照
	doc, err = schedule.Parse([]byte(`
programmes:
  - name: Morning
    start_time: "07:00"
    end_time: "08:00"
    events:
      - name: Aarti
        start_time: "07:00"
        end_time: "08:00"
        actions:
          - action: video_mode
            mode: nonexistent
            duration: 60
`))
	if err != nil {
		t.Fatalf("スケジュールの解析に失敗: %v", err)
	}
	if err := cfg.ValidateSchedule(doc); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("未定義モードの参照がErrUnknownModeになりません: %v", err)
	}

	// 存在しないカメラへの参照
	doc, err = schedule.Parse([]byte(`
programmes:
  - name: Morning
    start_time: "07:00"
    end_time: "08:00"
    events:
      - name: Aarti
        start_time: "07:00"
        end_time: "08:00"
        actions:
          - action: camera_move
            camera: 42
            type: Left
            duration: 3
`))
	if err != nil {
		t.Fatalf("スケジュールの解析に失敗: %v", err)
	}
	if err := cfg.ValidateSchedule(doc); err == nil {
		t.Error("存在しないカメラへの参照が検出されませんでした")
	}
}
