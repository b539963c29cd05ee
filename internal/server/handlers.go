package server

import (
	"errors"
	"net/http"
	"time"

	"utsushi/internal/capture"
	"utsushi/internal/config"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler はキャプチャAPIのHTTPハンドラ群
type Handler struct {
	config     *config.Config
	logger     *zap.SugaredLogger
	controller *capture.Controller
}

// HealthResponse はヘルスチェックのレスポンス
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusResponse はシステム状態のレスポンス
type StatusResponse struct {
	Status    capture.Status `json:"status"`
	Server    ServerInfo     `json:"server"`
	Timestamp time.Time      `json:"timestamp"`
}

// ServerInfo はサーバー情報
type ServerInfo struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// SessionResponse はセッション開始のレスポンス
type SessionResponse struct {
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
}

// TorchResponse はトーチ切り替えのレスポンス
type TorchResponse struct {
	TorchOn   bool      `json:"torch_on"`
	Timestamp time.Time `json:"timestamp"`
}

// PhotoResponse は撮影のレスポンス
type PhotoResponse struct {
	Ref       string    `json:"ref"`
	Size      int       `json:"size"`
	MIME      string    `json:"mime"`
	TakenAt   time.Time `json:"taken_at"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorResponse はエラーレスポンス
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// StartRequest はセッション開始のリクエストボディ（省略可）
type StartRequest struct {
	Facing string `json:"facing"` // back/front。省略時は設定値を使う
}

// RegisterRoutes はHTTPルートを設定する
func (h *Handler) RegisterRoutes(engine *gin.Engine) {
	engine.GET("/health", h.HealthCheck)

	api := engine.Group("/api")
	{
		api.GET("/status", h.GetStatus)
		api.POST("/session/start", h.StartSession)
		api.POST("/session/stop", h.StopSession)
		api.POST("/session/torch", h.ToggleTorch)
		api.POST("/session/photo", h.CapturePhoto)
		api.GET("/photos/latest", h.GetLatestPhoto)
		api.GET("/preview", h.GetPreview)
	}
}

// HealthCheck はヘルスチェックエンドポイントの実装
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
	})
}

// GetStatus はシステム状態取得エンドポイントの実装
func (h *Handler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, StatusResponse{
		Status: h.controller.Status(),
		Server: ServerInfo{
			Host: h.config.Server.Host,
			Port: h.config.Server.Port,
		},
		Timestamp: time.Now(),
	})
}

// StartSession はカメラセッション開始エンドポイントの実装
func (h *Handler) StartSession(c *gin.Context) {
	facing := capture.Facing(h.config.Capture.Facing)

	// ボディは省略可能。指定があれば向きを上書きする
	var req StartRequest
	if err := c.ShouldBindJSON(&req); err == nil && req.Facing != "" {
		if req.Facing != string(capture.FacingBack) && req.Facing != string(capture.FacingFront) {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:     "invalid_facing",
				Message:   "カメラの向きはback/frontのいずれかで指定してください",
				Timestamp: time.Now(),
			})
			return
		}
		facing = capture.Facing(req.Facing)
	}

	hint := capture.HintDefault
	if h.config.Capture.ProbeMacro {
		hint = capture.HintProbeMacro
	}

	session, err := h.controller.Start(c.Request.Context(), facing, hint)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SessionResponse{
		SessionID: session.ID,
		Timestamp: time.Now(),
	})
}

// StopSession はカメラセッション停止エンドポイントの実装
// 停止済みでもエラーにはならない（冪等）
func (h *Handler) StopSession(c *gin.Context) {
	h.controller.Stop()
	c.Status(http.StatusNoContent)
}

// ToggleTorch はトーチ切り替えエンドポイントの実装
func (h *Handler) ToggleTorch(c *gin.Context) {
	on, err := h.controller.ToggleTorch(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, TorchResponse{
		TorchOn:   on,
		Timestamp: time.Now(),
	})
}

// CapturePhoto は静止画撮影エンドポイントの実装
func (h *Handler) CapturePhoto(c *gin.Context) {
	photo, err := h.controller.CapturePhoto(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, PhotoResponse{
		Ref:       photo.Ref,
		Size:      len(photo.Data),
		MIME:      photo.MIME,
		TakenAt:   photo.TakenAt,
		Timestamp: time.Now(),
	})
}

// GetLatestPhoto は直近の撮影画像を配信するエンドポイントの実装
func (h *Handler) GetLatestPhoto(c *gin.Context) {
	photo := h.controller.LatestPhoto()
	if photo == nil || len(photo.Data) == 0 {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:     "photo_not_found",
			Message:   "撮影済みの画像がありません",
			Timestamp: time.Now(),
		})
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, photo.MIME, photo.Data)
}

// GetPreview はMJPEGプレビューストリーミングエンドポイントの実装
func (h *Handler) GetPreview(c *gin.Context) {
	frames := h.controller.Frames()
	if frames == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:     "session_not_active",
			Message:   "セッションが開始されていません",
			Timestamp: time.Now(),
		})
		return
	}

	// レスポンスヘッダーを設定
	c.Header("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	writer := c.Writer
	flusher, ok := writer.(http.Flusher)
	if !ok {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	// クライアント切断を検知するためのコンテキスト
	clientGone := c.Request.Context().Done()

	// ストリーミングループ
	for {
		select {
		case <-clientGone:
			// クライアントが切断された
			return

		case frame, ok := <-frames:
			if !ok {
				// チャンネルがクローズされた（セッション停止）
				return
			}

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

			flusher.Flush()
		}
	}
}

// respondError はエラー種別をHTTPステータスに対応付けて返す
func (h *Handler) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := "internal_error"

	switch {
	case errors.Is(err, capture.ErrCameraUnavailable):
		status = http.StatusServiceUnavailable
		code = "camera_unavailable"
	case errors.Is(err, capture.ErrUnsupportedCapability):
		status = http.StatusNotImplemented
		code = "unsupported_capability"
	case errors.Is(err, capture.ErrCaptureFailed):
		status = http.StatusInternalServerError
		code = "capture_failed"
	}

	h.logger.Warnw("リクエストの処理に失敗", "code", code, "error", err)

	c.JSON(status, ErrorResponse{
		Error:     code,
		Message:   err.Error(),
		Timestamp: time.Now(),
	})
}
