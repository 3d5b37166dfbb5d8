package server

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/jason-iskcon/ISKCON-Broadcast/internal/broadcast"
	"github.com/jason-iskcon/ISKCON-Broadcast/internal/camera"

	"github.com/gin-gonic/gin"
)

// healthResponse はヘルスチェックのレスポンス
type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// statusResponse はシステム状態のレスポンス
type statusResponse struct {
	Broadcast broadcast.Status `json:"broadcast"`
	Server    serverInfo       `json:"server"`
	Timestamp time.Time        `json:"timestamp"`
}

// serverInfo はサーバーの接続情報
type serverInfo struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// camerasResponse はカメラ一覧のレスポンス
type camerasResponse struct {
	Cameras []camera.Info `json:"cameras"`
}

// ptzRequest は手動PTZ操作のリクエストボディ
type ptzRequest struct {
	Camera int    `json:"camera" binding:"required"` // 対象カメラID
	Op     string `json:"op" binding:"required"`     // サブ操作名 (Left, ToPos, Stop など)
	Speed  int    `json:"speed"`                     // 移動速度 (省略時はカメラのデフォルト)
	Preset int    `json:"preset"`                    // ToPos用のプリセット番号
}

// errorResponse はエラーのレスポンス
type errorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// handleHealth はヘルスチェックエンドポイント
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, healthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
	})
}

// handleStatus はシステム状態取得エンドポイント
func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, statusResponse{
		Broadcast: s.engine.Snapshot(),
		Server: serverInfo{
			Host: s.config.Server.Host,
			Port: s.config.Server.Port,
		},
		Timestamp: time.Now(),
	})
}

// handleCameras はカメラ一覧取得エンドポイント
func (s *Server) handleCameras(c *gin.Context) {
	cams := s.engine.Cameras()
	infos := make([]camera.Info, 0, len(cams))
	for _, cam := range cams {
		infos = append(infos, cam.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })

	c.JSON(http.StatusOK, camerasResponse{Cameras: infos})
}

// handlePTZ は手動PTZ操作エンドポイント
// スケジューラーを経由せずにカメラへ直接コマンドを送る
func (s *Server) handlePTZ(c *gin.Context) {
	var req ptzRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{
			Error:     "invalid_request",
			Message:   fmt.Sprintf("リクエストの解析に失敗: %v", err),
			Timestamp: time.Now(),
		})
		return
	}

	cam, found := s.engine.Cameras()[req.Camera]
	if !found {
		c.JSON(http.StatusNotFound, errorResponse{
			Error:     "camera_not_found",
			Message:   "指定されたカメラが見つかりません",
			Timestamp: time.Now(),
		})
		return
	}

	cmd := camera.PTZCommand{
		Op:       camera.PTZOp(req.Op),
		Speed:    req.Speed,
		PresetID: req.Preset,
	}
	if err := cam.SendPTZCommand(c.Request.Context(), cmd); err != nil {
		c.JSON(http.StatusUnprocessableEntity, errorResponse{
			Error:     "command_rejected",
			Message:   err.Error(),
			Timestamp: time.Now(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": "ok"})
}

// handleStream は合成キャンバスのMJPEGプレビューを配信する
func (s *Server) handleStream(c *gin.Context) {
	// レスポンスヘッダーを設定
	c.Header("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("Access-Control-Allow-Origin", "*")

	// レスポンスライターを取得
	writer := c.Writer
	flusher, ok := writer.(http.Flusher)
	if !ok {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	// クライアント切断を検知するためのコンテキスト
	clientGone := c.Request.Context().Done()

	// 新しい合成フレームが公開されたときだけ書き込む
	ticker := time.NewTicker(s.config.CycleInterval)
	defer ticker.Stop()

	var lastSeq uint64

	// ストリーミングループ
	for {
		select {
		case <-clientGone:
			// クライアントが切断された
			return

		case <-ticker.C:
			frame, seq := s.engine.LatestCanvas()
			if frame == nil || seq == lastSeq {
				continue
			}
			lastSeq = seq

			// MJPEGフレームを書き込み
			if _, err := writer.Write([]byte("--frame\r\n")); err != nil {
				return
			}
			if _, err := writer.Write([]byte("Content-Type: image/jpeg\r\n\r\n")); err != nil {
				return
			}
			if _, err := writer.Write(frame); err != nil {
				return
			}
			if _, err := writer.Write([]byte("\r\n")); err != nil {
				return
			}

			// バッファをフラッシュ
			flusher.Flush()
		}
	}
}

// handleRoot はルートパスのハンドラ
func (s *Server) handleRoot(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, `<!DOCTYPE html>
<html lang="ja">
<head>
    <meta charset="UTF-8">
    <title>ISKCON Broadcast - 無人放送システム</title>
</head>
<body>
    <h1>ISKCON Broadcast 無人放送システム</h1>
    <p>サーバーが正常に起動しています。</p>
    <p>ステータス: <a href="/api/status">/api/status</a></p>
    <p>カメラ一覧: <a href="/api/cameras">/api/cameras</a></p>
    <p>プレビュー: <a href="/stream">/stream</a></p>
    <p>ヘルスチェック: <a href="/health">/health</a></p>
</body>
</html>`)
}
