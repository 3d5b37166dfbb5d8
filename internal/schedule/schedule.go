package schedule

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ClockTime は "HH:MM" 形式の時刻（日付を持たない壁時計時刻）
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClockTime は "HH:MM" 形式の文字列を解析する
func ParseClockTime(s string) (ClockTime, error) {
	var t ClockTime
	if _, err := fmt.Sscanf(s, "%d:%d", &t.Hour, &t.Minute); err != nil {
		return ClockTime{}, fmt.Errorf("時刻 %q の解析に失敗 (HH:MM 形式が必要): %w", s, err)
	}
	if t.Hour < 0 || t.Hour > 23 || t.Minute < 0 || t.Minute > 59 {
		return ClockTime{}, fmt.Errorf("時刻 %q が範囲外です", s)
	}
	return t, nil
}

// UnmarshalYAML は "HH:MM" 形式を読み取る
func (t *ClockTime) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseClockTime(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// String は "HH:MM" 形式で返す
func (t ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Seconds は0時からの経過秒数を返す
func (t ClockTime) Seconds() int {
	return t.Hour*3600 + t.Minute*60
}

// secondsOfDay は時刻の0時からの経過秒数を返す
func secondsOfDay(now time.Time) int {
	return now.Hour()*3600 + now.Minute()*60 + now.Second()
}

// window は [start, end) の時刻窓
type window struct {
	start ClockTime
	end   ClockTime
}

// contains はnowが窓に含まれるかを返す
func (w window) contains(now time.Time) bool {
	s := secondsOfDay(now)
	return w.start.Seconds() <= s && s < w.end.Seconds()
}

// ActionKind はアクションの種別
type ActionKind string

const (
	ActionPlayVideo  ActionKind = "play_video"  // 動画素材の再生（外部コラボレーター）
	ActionPlayAudio  ActionKind = "play_audio"  // 音声素材の再生（外部コラボレーター）
	ActionVideoMode  ActionKind = "video_mode"  // レイアウトモードの切り替え
	ActionCameraMove ActionKind = "camera_move" // カメラの移動
)

// Action はイベント内の1アクション
// Duration はアクションが発火してからの目安の実行秒数であり、絶対時刻ではない
type Action struct {
	Action   ActionKind `yaml:"action"`
	Duration float64    `yaml:"duration"` // 秒

	// play_video / play_audio 用
	File string `yaml:"file"`

	// video_mode 用
	Mode string `yaml:"mode"`

	// camera_move 用
	Type   string `yaml:"type"`   // PTZサブ操作名 (Left, ToPos など)
	Marker int    `yaml:"marker"` // ToPos用のプリセット番号
	Camera int    `yaml:"camera"` // 対象カメラID
}

// DurationTime はDurationをtime.Durationで返す
func (a Action) DurationTime() time.Duration {
	return time.Duration(a.Duration * float64(time.Second))
}

// Event は番組内の1イベント
type Event struct {
	Name      string    `yaml:"name"`
	StartTime ClockTime `yaml:"start_time"`
	EndTime   ClockTime `yaml:"end_time"`
	Actions   []Action  `yaml:"actions"`
}

// Programme は1番組
type Programme struct {
	Name      string    `yaml:"name"`
	StartTime ClockTime `yaml:"start_time"`
	EndTime   ClockTime `yaml:"end_time"`
	Events    []Event   `yaml:"events"`
}

// Document は番組→イベント→アクションの3階層スケジュール
// 起動時に1度読み込み、以降は読み取り専用として扱う
type Document struct {
	Programmes []Programme `yaml:"programmes"`
}

// Load はスケジュール文書をファイルから読み込む
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("スケジュール文書の読み込みに失敗: %w", err)
	}
	return Parse(data)
}

// Parse はスケジュール文書をYAMLから解析して検証する
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("スケジュール文書の解析に失敗: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate は文書の構造を検証する
// 構成エラーはメインサイクル開始前に検出しなければならない
func (d *Document) Validate() error {
	for _, p := range d.Programmes {
		if p.Name == "" {
			return fmt.Errorf("名前のない番組があります")
		}
		if p.StartTime.Seconds() >= p.EndTime.Seconds() {
			return fmt.Errorf("番組 %s の時刻窓が不正です: %s-%s", p.Name, p.StartTime, p.EndTime)
		}
		for _, e := range p.Events {
			if e.StartTime.Seconds() >= e.EndTime.Seconds() {
				return fmt.Errorf("イベント %s の時刻窓が不正です: %s-%s", e.Name, e.StartTime, e.EndTime)
			}
			if e.StartTime.Seconds() < p.StartTime.Seconds() || e.EndTime.Seconds() > p.EndTime.Seconds() {
				return fmt.Errorf("イベント %s の時刻窓が番組 %s の窓の外です", e.Name, p.Name)
			}
			for i, a := range e.Actions {
				switch a.Action {
				case ActionPlayVideo, ActionPlayAudio, ActionVideoMode, ActionCameraMove:
				default:
					return fmt.Errorf("イベント %s のアクション %d が不明な種別です: %s", e.Name, i, a.Action)
				}
				if a.Duration < 0 {
					return fmt.Errorf("イベント %s のアクション %d のdurationが負です", e.Name, i)
				}
			}
		}
	}
	return nil
}

// ModeNames は文書内でvideo_modeアクションが参照する全モード名を返す
// 起動時の存在チェックに使う
func (d *Document) ModeNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, p := range d.Programmes {
		for _, e := range p.Events {
			for _, a := range e.Actions {
				if a.Action == ActionVideoMode && !seen[a.Mode] {
					seen[a.Mode] = true
					names = append(names, a.Mode)
				}
			}
		}
	}
	return names
}

// CameraIDs は文書内でcamera_moveアクションが参照する全カメラIDを返す
func (d *Document) CameraIDs() []int {
	seen := make(map[int]bool)
	var ids []int
	for _, p := range d.Programmes {
		for _, e := range p.Events {
			for _, a := range e.Actions {
				if a.Action == ActionCameraMove && !seen[a.Camera] {
					seen[a.Camera] = true
					ids = append(ids, a.Camera)
				}
			}
		}
	}
	return ids
}
