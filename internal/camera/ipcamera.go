package camera

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"image/jpeg"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"
)

// TypeIPCamera はIPカメラのレジストリ登録名
const TypeIPCamera = "ip_camera"

// AuthState は制御プレーンの認証状態を表す
type AuthState string

const (
	AuthUnauthenticated AuthState = "unauthenticated" // 未認証
	AuthAuthenticating  AuthState = "authenticating"  // 認証中
	AuthAuthenticated   AuthState = "authenticated"   // 認証済み
	AuthFailed          AuthState = "failed"          // リトライ回数を使い切った
)

// reconnectDelay はストリーム切断後の再接続待ち時間
const reconnectDelay = time.Second

// IPCamera は実デバイスを制御するカメラ実装
//
// 認証セッション（トークンログインとリトライ）、MJPEGストリームからの
// キャプチャループ、PTZコマンドのエンコードと送信を担う。
// キャプチャループは制御サイクルとは独立した専用ゴルーチンで動作し、
// 最新フレームのスロットだけを更新し続ける。
type IPCamera struct {
	id       int
	cfg      Config
	baseURL  string
	ptzSpeed int
	logger   *log.Logger

	// デバイスとの通信用
	// session はログインとPTZ送信で共有するセッション（Cookie保持）
	session *http.Client

	// 状態管理
	mu        sync.RWMutex
	token     string
	authState AuthState
	status    Status

	// 最新フレーム（キャプチャループのみが書き込む）
	slot FrameSlot

	// 制御用
	stopCh chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewIPCamera は設定からIPCameraを作成する
func NewIPCamera(cfg Config, logger *log.Logger) (Camera, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("IPカメラの作成にはホストが必要です")
	}
	if cfg.StreamURL == "" {
		return nil, fmt.Errorf("IPカメラの作成にはストリームURLが必要です")
	}
	if logger == nil {
		logger = log.Default()
	}

	login := cfg.Login
	if login.Retries <= 0 {
		login = DefaultLoginConfig()
	}
	cfg.Login = login

	speed := cfg.PTZSpeed
	if speed <= 0 {
		speed = DefaultPTZSpeed
	}

	// デバイスは自己署名証明書を使うため証明書検証は行わない
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("Cookieジャーの作成に失敗: %w", err)
	}
	session := &http.Client{
		Jar: jar,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}

	return &IPCamera{
		id:        cfg.ID,
		cfg:       cfg,
		baseURL:   fmt.Sprintf("https://%s/api.cgi", cfg.Host),
		ptzSpeed:  speed,
		logger:    logger,
		session:   session,
		authState: AuthUnauthenticated,
		status:    StatusInactive,
		stopCh:    make(chan struct{}),
	}, nil
}

// ID はカメラIDを返す
func (c *IPCamera) ID() int { return c.id }

// Type はカメラタイプ名を返す
func (c *IPCamera) Type() string { return TypeIPCamera }

// Start は認証とキャプチャループを開始する
// 認証はバックグラウンドで行い、他カメラの起動をブロックしない
func (c *IPCamera) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status == StatusActive {
		return nil // 既に開始済み
	}

	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	// 認証ゴルーチン
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.authenticate(loopCtx)
	}()

	// キャプチャループ
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.captureLoop(loopCtx)
	}()

	c.status = StatusActive
	return nil
}

// Stop はキャプチャループを停止しストリームを解放する
// キャプチャループ実行中のメインコンテキストからの呼び出しに対して安全
//
// 認証ゴルーチンは状態遷移のためにc.muを取るので、ロックを持ったまま
// 待ち合わせるとデッドロックする。待ち合わせは必ずロックの外で行う
// （各ゴルーチンはctxのキャンセルで必ず抜ける）。
func (c *IPCamera) Stop(_ context.Context) error {
	c.mu.Lock()
	if c.status == StatusInactive {
		c.mu.Unlock()
		return nil // 既に停止済み
	}
	stopCh := c.stopCh
	cancel := c.cancel
	// 再開可能にするため新しいstopChを作成
	c.stopCh = make(chan struct{})
	c.status = StatusInactive
	c.mu.Unlock()

	close(stopCh)
	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
	return nil
}

// GetFrame は最新のフレームを返す
func (c *IPCamera) GetFrame() (*Frame, error) {
	frame, ok := c.slot.Load()
	if !ok {
		return nil, ErrNoFrame
	}
	return frame, nil
}

// Info は現在の情報と状態を返す
func (c *IPCamera) Info() Info {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Info{
		ID:        c.id,
		Type:      TypeIPCamera,
		Running:   c.status == StatusActive,
		Connected: c.authState == AuthAuthenticated,
	}
}

// AuthState は現在の認証状態を返す
func (c *IPCamera) AuthState() AuthState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authState
}

// ログイン関連

// loginResponse はLoginコマンドのレスポンスボディ
type loginResponse []struct {
	Cmd   string `json:"cmd"`
	Code  int    `json:"code"`
	Value struct {
		Token struct {
			LeaseTime int    `json:"leaseTime"`
			Name      string `json:"name"`
		} `json:"Token"`
	} `json:"value"`
}

// authenticate はトークン取得をリトライ付きで実行する
// リトライを使い切った場合は AuthFailed に遷移し、カメラは縮退動作を続ける
// （フレーム取得は継続、PTZコマンドは拒否）
func (c *IPCamera) authenticate(ctx context.Context) {
	c.setAuthState(AuthAuthenticating)

	login := c.cfg.Login
	for attempt := 1; attempt <= login.Retries; attempt++ {
		token, err := c.requestToken(ctx, login.Timeout)
		if err == nil {
			c.mu.Lock()
			c.token = token
			c.authState = AuthAuthenticated
			c.mu.Unlock()
			c.logger.Printf("カメラ %d: トークンを取得しました (試行 %d 回目)", c.id, attempt)
			return
		}

		c.logger.Printf("カメラ %d: ログイン試行 %d 回目が失敗: %v", c.id, attempt, err)

		if attempt < login.Retries {
			select {
			case <-time.After(login.Delay):
			case <-ctx.Done():
				return
			case <-c.stopCh:
				return
			}
		}
	}

	c.setAuthState(AuthFailed)
	c.logger.Printf("カメラ %d: %d 回の試行後もトークンを取得できませんでした", c.id, login.Retries)
}

// requestToken はLoginコマンドを1回送信してトークンを取り出す
func (c *IPCamera) requestToken(ctx context.Context, timeout time.Duration) (string, error) {
	payload := []map[string]any{{
		"cmd": "Login",
		"param": map[string]any{
			"User": map[string]any{
				"Version":  "0",
				"userName": c.cfg.Username,
				"password": c.cfg.Password,
			},
		},
	}}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("ログインペイロードの作成に失敗: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"?cmd=Login", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("ログインリクエストの作成に失敗: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.session.Do(req)
	if err != nil {
		return "", fmt.Errorf("ログインリクエストの送信に失敗: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ログインが HTTP %d で失敗", resp.StatusCode)
	}

	var parsed loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("ログインレスポンスの解析に失敗: %w", err)
	}
	if len(parsed) == 0 || parsed[0].Value.Token.Name == "" {
		return "", fmt.Errorf("ログインレスポンスにトークンがありません")
	}

	return parsed[0].Value.Token.Name, nil
}

func (c *IPCamera) setAuthState(state AuthState) {
	c.mu.Lock()
	c.authState = state
	c.mu.Unlock()
}

// PTZコマンド送信

// ptzParam はPtzCtrlコマンドのパラメータ
type ptzParam struct {
	Channel int    `json:"channel"`
	Op      string `json:"op"`
	Speed   *int   `json:"speed,omitempty"`
	ID      *int   `json:"id,omitempty"`
}

// SendPTZCommand はPTZコマンドをエンコードして送信する
//
// 未定義のサブ操作はネットワークに出さずローカルで拒否する。
// 2xx以外のレスポンスはログに残すだけでリトライしない
// （移動コマンドは冪等ではないため盲目的な再送は危険）。
func (c *IPCamera) SendPTZCommand(ctx context.Context, cmd PTZCommand) error {
	if !IsValidOp(cmd.Op) {
		c.logger.Printf("カメラ %d: 不明なPTZサブ操作: %s", c.id, cmd.Op)
		return fmt.Errorf("%w: 不明なサブ操作 %s", ErrCommandRejected, cmd.Op)
	}

	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()

	if token == "" {
		c.logger.Printf("カメラ %d: トークンがないためPTZコマンド %s をスキップします", c.id, cmd.Op)
		return ErrNotAuthenticated
	}

	speed := cmd.Speed
	if speed <= 0 {
		speed = c.ptzSpeed
	}

	param := ptzParam{Channel: cmd.Channel, Op: string(cmd.Op)}
	switch {
	case IsMoveOp(cmd.Op):
		param.Speed = &speed
	case cmd.Op == PTZToPos:
		preset := cmd.PresetID
		param.ID = &preset
		param.Speed = &speed
	case cmd.Op == PTZStop:
		// Stopは速度を持たない
	}

	payload := []map[string]any{{"cmd": "PtzCtrl", "param": param}}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("PTZペイロードの作成に失敗: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	url := fmt.Sprintf("%s?cmd=PtzCtrl&token=%s", c.baseURL, token)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("PTZリクエストの作成に失敗: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.session.Do(req)
	if err != nil {
		// 一過性のネットワーク障害は吸収する
		c.logger.Printf("カメラ %d: PTZコマンド %s の送信に失敗: %v", c.id, cmd.Op, err)
		return nil
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Printf("カメラ %d: PTZコマンド %s が HTTP %d で失敗", c.id, cmd.Op, resp.StatusCode)
		return nil
	}

	return nil
}

// キャプチャループ

// captureLoop はMJPEGストリームからフレームを読み続ける
// 1フレームの読み取り失敗ではループを終了せず、切断時は再接続する
func (c *IPCamera) captureLoop(ctx context.Context) {
	for {
		select {
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		if err := c.readStream(ctx); err != nil {
			c.logger.Printf("カメラ %d: ストリームが切断されました: %v", c.id, err)
		}

		// 再接続まで少し待つ
		select {
		case <-time.After(reconnectDelay):
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// readStream はストリームに接続してJPEGフレームを切り出し続ける
// ストリームが終了またはエラーになった時点で戻る
func (c *IPCamera) readStream(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.StreamURL, nil)
	if err != nil {
		return fmt.Errorf("ストリームリクエストの作成に失敗: %w", err)
	}

	resp, err := c.session.Do(req)
	if err != nil {
		return fmt.Errorf("ストリームへの接続に失敗: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ストリームが HTTP %d を返しました", resp.StatusCode)
	}

	buffer := make([]byte, 64*1024)
	frameBuffer := bytes.Buffer{}

	for {
		select {
		case <-c.stopCh:
			return nil
		case <-ctx.Done():
			return nil
		default:
		}

		n, err := resp.Body.Read(buffer)
		if n > 0 {
			frameBuffer.Write(buffer[:n])
			c.extractFrames(&frameBuffer)
		}
		if err != nil {
			if err == io.EOF {
				return fmt.Errorf("ストリームが終了しました")
			}
			return fmt.Errorf("フレーム読み取りエラー: %w", err)
		}
	}
}

// extractFrames はバッファからJPEGマーカーでフレームを切り出してスロットに格納する
func (c *IPCamera) extractFrames(frameBuffer *bytes.Buffer) {
	data := frameBuffer.Bytes()
	for {
		// JPEGの開始マーカー（FF D8）を探す
		startIdx := bytes.Index(data, []byte{0xFF, 0xD8})
		if startIdx == -1 {
			// マーカーのないデータを溜め込まない。チャンク境界で分割された
			// マーカーの可能性がある末尾の 0xFF だけ残して捨てる
			trailing := len(data) > 0 && data[len(data)-1] == 0xFF
			frameBuffer.Reset()
			if trailing {
				frameBuffer.WriteByte(0xFF)
			}
			return
		}

		// JPEGの終了マーカー（FF D9）を探す
		endIdx := bytes.Index(data[startIdx+2:], []byte{0xFF, 0xD9})
		if endIdx == -1 {
			// 完全なフレームがまだない
			if startIdx > 0 {
				rest := data[startIdx:]
				frameBuffer.Reset()
				frameBuffer.Write(rest)
			}
			return
		}

		// 完全なJPEGフレームを抽出
		endIdx += startIdx + 2 + 2 // マーカーのサイズを含める
		raw := data[startIdx:endIdx]

		img, err := jpeg.Decode(bytes.NewReader(raw))
		if err != nil {
			// 壊れたフレームは捨ててループを継続する
			c.logger.Printf("カメラ %d: JPEGフレームのデコードに失敗: %v", c.id, err)
		} else {
			c.slot.Store(&Frame{Image: img, Timestamp: time.Now()})
		}

		// 処理済みデータを削除
		remaining := data[endIdx:]
		frameBuffer.Reset()
		if len(remaining) == 0 {
			return
		}
		frameBuffer.Write(remaining)
		data = frameBuffer.Bytes()
	}
}
