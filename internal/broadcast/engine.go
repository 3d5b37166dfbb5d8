package broadcast

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"log"
	"sync"
	"time"

	"github.com/jason-iskcon/ISKCON-Broadcast/internal/camera"
	"github.com/jason-iskcon/ISKCON-Broadcast/internal/compose"
	"github.com/jason-iskcon/ISKCON-Broadcast/internal/schedule"

	"github.com/google/uuid"
)

// デフォルト設定
const (
	defaultCycleInterval = 100 * time.Millisecond
	defaultJPEGQuality   = 80
	moveQueueSize        = 16
)

// Options はEngineの構築パラメータ
type Options struct {
	Cameras    map[int]camera.Camera
	Compositor *compose.Compositor
	Scheduler  *schedule.Scheduler
	Modes      map[string]*compose.Mode
	Player     Player        // nilの場合はLogPlayer
	Clock      Clock         // nilの場合は実時計
	Interval   time.Duration // 制御サイクルの間隔
	Logger     *log.Logger
}

// Status はエンジンの現在状態のスナップショット
type Status struct {
	RunID     string `json:"run_id"`    // この実行の識別子
	Running   bool   `json:"running"`   // 制御サイクルが動作中か
	Idle      bool   `json:"idle"`      // 全番組の窓の外か
	Programme string `json:"programme"` // アクティブな番組名
	Event     string `json:"event"`     // アクティブなイベント名
	Mode      string `json:"mode"`      // 現在のレイアウトモード名
	Cameras   int    `json:"cameras"`   // 管理しているカメラ台数
	CanvasW   int    `json:"canvas_w"`  // キャンバス幅
	CanvasH   int    `json:"canvas_h"`  // キャンバス高さ
	FrameSeq  uint64 `json:"frame_seq"` // 合成フレームの連番
}

// Engine は放送リグ全体の制御サイクルを駆動する
//
// 1サイクル毎にスケジューラーへ現在時刻を渡し、返された指示を
// カメラ（PTZ）・コンポジター（レイアウト）・プレイヤー（再生）へ
// 適用して、合成済みキャンバスを公開する。
// カメラ移動はデバイスのHTTP遅延が合成サイクルを止めないよう、
// 専用ゴルーチンのキューで逐次処理する。
type Engine struct {
	cams     map[int]camera.Camera
	comp     *compose.Compositor
	sched    *schedule.Scheduler
	modes    map[string]*compose.Mode
	player   Player
	clock    Clock
	interval time.Duration
	logger   *log.Logger
	runID    string

	// 合成結果の最新スロット
	outMu   sync.RWMutex
	outJPEG []byte
	outSeq  uint64

	// 最後のサイクルで解決した指示（ステータス表示用）
	lastMu   sync.RWMutex
	lastCmds schedule.Commands

	// カメラ移動キュー
	moveCh chan schedule.CameraMove

	// 制御用
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewEngine は新しいEngineを作成する
func NewEngine(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	player := opts.Player
	if player == nil {
		player = NewLogPlayer(logger)
	}
	clock := opts.Clock
	if clock == nil {
		clock = RealClock()
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = defaultCycleInterval
	}

	return &Engine{
		cams:     opts.Cameras,
		comp:     opts.Compositor,
		sched:    opts.Scheduler,
		modes:    opts.Modes,
		player:   player,
		clock:    clock,
		interval: interval,
		logger:   logger,
		runID:    uuid.New().String(),
		moveCh:   make(chan schedule.CameraMove, moveQueueSize),
		stopCh:   make(chan struct{}),
	}
}

// RunID はこの実行の識別子を返す
func (e *Engine) RunID() string { return e.runID }

// Start は全カメラと制御サイクルを開始する
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return nil // 既に開始済み
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	// 全カメラのキャプチャを開始
	for id, cam := range e.cams {
		if err := cam.Start(runCtx); err != nil {
			cancel()
			return fmt.Errorf("カメラ %d の開始に失敗: %w", id, err)
		}
	}

	// カメラ移動ディスパッチャー
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.moveDispatcher(runCtx)
	}()

	// 制御サイクル
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.runLoop(runCtx)
	}()

	e.running = true
	e.logger.Printf("エンジンを開始しました (run=%s, カメラ %d 台, サイクル %v)",
		e.runID, len(e.cams), e.interval)
	return nil
}

// Stop は制御サイクルと全カメラを停止する
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return nil // 既に停止済み
	}

	close(e.stopCh)
	e.cancel()
	e.wg.Wait()

	// 全カメラを停止
	var stopErrors []error
	for id, cam := range e.cams {
		if err := cam.Stop(ctx); err != nil {
			stopErrors = append(stopErrors, fmt.Errorf("カメラ %d の停止に失敗: %w", id, err))
		}
	}

	e.stopCh = make(chan struct{})
	e.running = false

	if len(stopErrors) > 0 {
		return fmt.Errorf("一部のカメラ停止に失敗: %v", stopErrors)
	}
	e.logger.Printf("エンジンを停止しました (run=%s)", e.runID)
	return nil
}

// runLoop は制御サイクルを駆動する
// カメラのキャプチャループを待つことはなく、最新フレームをそのまま使う
func (e *Engine) runLoop(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.cycle(ctx)
		}
	}
}

// cycle は1制御サイクル分の処理を行う
func (e *Engine) cycle(ctx context.Context) {
	now := e.clock.Now()
	cmds := e.sched.Tick(now)

	// カメラ移動をキューへ渡す（ディスパッチャーが逐次処理する）
	for _, move := range cmds.Moves {
		select {
		case e.moveCh <- move:
		default:
			e.logger.Printf("エンジン: 移動キューが満杯のためカメラ %d の移動 %s を破棄", move.Camera, move.Move)
		}
	}

	// 再生指示を外部プレイヤーへ渡す
	for _, pb := range cmds.Playbacks {
		switch pb.Kind {
		case schedule.ActionPlayVideo:
			e.player.PlayVideo(ctx, pb.File, pb.Duration)
		case schedule.ActionPlayAudio:
			e.player.PlayAudio(ctx, pb.File, pb.Duration)
		}
	}

	// レイアウトは毎サイクル主張される
	var mode *compose.Mode
	if !cmds.Idle && cmds.Mode != "" {
		mode = e.modes[cmds.Mode]
	}

	canvas := e.comp.Render(mode, e.cams)
	e.publish(canvas)

	e.lastMu.Lock()
	e.lastCmds = cmds
	e.lastMu.Unlock()
}

// publish は合成済みキャンバスをJPEGにエンコードして公開する
func (e *Engine) publish(canvas *image.RGBA) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: defaultJPEGQuality}); err != nil {
		e.logger.Printf("エンジン: キャンバスのエンコードに失敗: %v", err)
		return
	}

	e.outMu.Lock()
	e.outJPEG = buf.Bytes()
	e.outSeq++
	e.outMu.Unlock()
}

// LatestCanvas は最新の合成済みJPEGとその連番を返す
// まだ1枚も合成されていない場合は (nil, 0) を返す
func (e *Engine) LatestCanvas() ([]byte, uint64) {
	e.outMu.RLock()
	defer e.outMu.RUnlock()
	return e.outJPEG, e.outSeq
}

// Cameras は管理しているカメラのマップを返す
func (e *Engine) Cameras() map[int]camera.Camera {
	return e.cams
}

// Snapshot は現在状態のスナップショットを返す
func (e *Engine) Snapshot() Status {
	e.lastMu.RLock()
	cmds := e.lastCmds
	e.lastMu.RUnlock()

	e.mu.Lock()
	running := e.running
	e.mu.Unlock()

	w, h := e.comp.Size()
	_, seq := e.LatestCanvas()

	return Status{
		RunID:     e.runID,
		Running:   running,
		Idle:      cmds.Idle,
		Programme: cmds.Programme,
		Event:     cmds.Event,
		Mode:      cmds.Mode,
		Cameras:   len(e.cams),
		CanvasW:   w,
		CanvasH:   h,
		FrameSeq:  seq,
	}
}

// moveDispatcher はカメラ移動を到着順に1件ずつ処理する
// 移動コマンドを送り、durationの間保持したあとStopを送る
func (e *Engine) moveDispatcher(ctx context.Context) {
	for {
		select {
		case <-e.stopCh:
			return
		case <-ctx.Done():
			return
		case move := <-e.moveCh:
			e.executeMove(ctx, move)
		}
	}
}

// executeMove は1件のカメラ移動を実行する
func (e *Engine) executeMove(ctx context.Context, move schedule.CameraMove) {
	cam, ok := e.cams[move.Camera]
	if !ok {
		// 起動時検証を通っていればここには来ない
		e.logger.Printf("エンジン: 存在しないカメラ %d への移動を破棄", move.Camera)
		return
	}

	cmd := camera.PTZCommand{
		Op:       camera.PTZOp(move.Move),
		PresetID: move.Marker,
	}
	if err := cam.SendPTZCommand(ctx, cmd); err != nil {
		e.logger.Printf("エンジン: カメラ %d の移動 %s が拒否されました: %v", move.Camera, move.Move, err)
		return
	}

	if cmd.Op == camera.PTZStop {
		return
	}

	// durationの間移動を保持する（停止指示が来たら即座に打ち切る）
	select {
	case <-time.After(move.Duration):
	case <-e.stopCh:
	case <-ctx.Done():
	}

	if err := cam.SendPTZCommand(ctx, camera.PTZCommand{Op: camera.PTZStop}); err != nil {
		e.logger.Printf("エンジン: カメラ %d の停止コマンドが拒否されました: %v", move.Camera, err)
	}
}
