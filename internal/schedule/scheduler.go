package schedule

import (
	"log"
	"time"
)

// CameraMove はカメラ移動の指示
type CameraMove struct {
	Camera   int           // 対象カメラID
	Move     string        // PTZサブ操作名 (Left, ToPos など)
	Marker   int           // ToPos用のプリセット番号
	Duration time.Duration // 移動を保持する時間（この後Stopを送る）
}

// Playback は外部プレイヤーへの再生指示
type Playback struct {
	Kind     ActionKind    // play_video または play_audio
	File     string        // 素材ファイル
	Duration time.Duration // 再生時間
}

// Commands は1制御サイクル分の外部への指示
//
// Modeはコンポジターがステートレスであるため毎サイクル主張される。
// MovesとPlaybacksはアクション発火時に1度だけ現れるワンショット。
type Commands struct {
	Idle      bool         // どの番組の窓にも入っていない
	Programme string       // アクティブな番組名
	Event     string       // アクティブなイベント名
	Mode      string       // 現在のレイアウトモード名（未設定なら空）
	Moves     []CameraMove // このサイクルで発火したカメラ移動
	Playbacks []Playback   // このサイクルで発火した再生指示
}

// Scheduler はスケジュール文書を現在時刻に対して解釈する
//
// 文書は読み取り専用で、Schedulerは文書内の位置（番組・イベント・
// アクション番号とアクション内経過時間）だけを可変状態として持つ。
// Tickは制御サイクル毎に1回、単一のゴルーチンから呼ばれる。
type Scheduler struct {
	doc    *Document
	logger *log.Logger

	// カーソル状態
	progIdx     int // -1 = 番組なし
	eventIdx    int // -1 = イベントなし
	actionIdx   int
	elapsed     time.Duration
	lastTick    time.Time
	currentMode string
}

// NewScheduler は新しいSchedulerを作成する
func NewScheduler(doc *Document, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{
		doc:      doc,
		logger:   logger,
		progIdx:  -1,
		eventIdx: -1,
	}
}

// CurrentMode は現在主張しているモード名を返す
func (s *Scheduler) CurrentMode() string {
	return s.currentMode
}

// Tick は現在時刻に対するアクティブなアクション集合を解決し、
// 適用すべき指示を返す
func (s *Scheduler) Tick(now time.Time) Commands {
	cmds := Commands{}

	// (1) 現在時刻を含む番組を選択する
	progIdx := s.findProgramme(now)
	if progIdx == -1 {
		if s.progIdx != -1 {
			s.logger.Printf("スケジューラー: 全番組の窓を出ました。Idle状態に移行します")
		}
		s.resetCursor()
		s.lastTick = now
		cmds.Idle = true
		return cmds
	}
	programme := &s.doc.Programmes[progIdx]
	cmds.Programme = programme.Name

	// (2) 番組内で現在時刻を含むイベントを選択する
	eventIdx := s.findEvent(programme, now)
	if eventIdx == -1 {
		// イベント間の隙間では直前のモードを保持する
		if s.eventIdx != -1 {
			s.logger.Printf("スケジューラー: 番組 %s 内でイベントの窓を出ました", programme.Name)
		}
		s.progIdx = progIdx
		s.eventIdx = -1
		s.lastTick = now
		cmds.Mode = s.currentMode
		return cmds
	}
	event := &programme.Events[eventIdx]
	cmds.Event = event.Name

	// (3) カーソルを進める
	if progIdx != s.progIdx || eventIdx != s.eventIdx {
		// 新しいイベントに入った: 先頭アクションから開始
		s.logger.Printf("スケジューラー: イベント %s を開始します (番組 %s)", event.Name, programme.Name)
		s.progIdx = progIdx
		s.eventIdx = eventIdx
		s.actionIdx = 0
		s.elapsed = 0
		if len(event.Actions) > 0 {
			s.triggerAction(&event.Actions[0], &cmds)
		}
	} else if !s.lastTick.IsZero() {
		s.elapsed += now.Sub(s.lastTick)
	}

	// durationを超えたアクションを送り、超過分を持ち越す
	for s.actionIdx < len(event.Actions) && s.elapsed >= event.Actions[s.actionIdx].DurationTime() {
		s.elapsed -= event.Actions[s.actionIdx].DurationTime()
		s.actionIdx++
		if s.actionIdx < len(event.Actions) {
			s.triggerAction(&event.Actions[s.actionIdx], &cmds)
		}
	}

	s.lastTick = now
	cmds.Mode = s.currentMode
	return cmds
}

// triggerAction はアクションへの進入時の効果を1度だけ発火する
// モードはカーソル状態に取り込まれ、以降の全サイクルで主張される
func (s *Scheduler) triggerAction(a *Action, cmds *Commands) {
	switch a.Action {
	case ActionVideoMode:
		s.logger.Printf("スケジューラー: レイアウトモードを %s に切り替えます", a.Mode)
		s.currentMode = a.Mode

	case ActionCameraMove:
		s.logger.Printf("スケジューラー: カメラ %d を移動します: %s", a.Camera, a.Type)
		cmds.Moves = append(cmds.Moves, CameraMove{
			Camera:   a.Camera,
			Move:     a.Type,
			Marker:   a.Marker,
			Duration: a.DurationTime(),
		})

	case ActionPlayVideo, ActionPlayAudio:
		s.logger.Printf("スケジューラー: 再生を開始します: %s (%s)", a.File, a.Action)
		cmds.Playbacks = append(cmds.Playbacks, Playback{
			Kind:     a.Action,
			File:     a.File,
			Duration: a.DurationTime(),
		})
	}
}

// findProgramme は現在時刻を窓に含む番組の番号を返す
func (s *Scheduler) findProgramme(now time.Time) int {
	for i := range s.doc.Programmes {
		p := &s.doc.Programmes[i]
		if (window{p.StartTime, p.EndTime}).contains(now) {
			return i
		}
	}
	return -1
}

// findEvent は番組内で現在時刻を窓に含むイベントの番号を返す
func (s *Scheduler) findEvent(p *Programme, now time.Time) int {
	for i := range p.Events {
		e := &p.Events[i]
		if (window{e.StartTime, e.EndTime}).contains(now) {
			return i
		}
	}
	return -1
}

// resetCursor はカーソル状態を初期化する
func (s *Scheduler) resetCursor() {
	s.progIdx = -1
	s.eventIdx = -1
	s.actionIdx = 0
	s.elapsed = 0
	s.currentMode = ""
}
