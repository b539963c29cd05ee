package capture

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options はControllerの動作設定
type Options struct {
	Width       int // 取得時の解像度ヒント（幅）
	Height      int // 取得時の解像度ヒント（高さ）
	FPS         int // 取得時のフレームレートヒント
	JPEGQuality int // フレームグラブ時のJPEG品質 (1-100)
}

// DefaultOptions は既定の動作設定を返す
func DefaultOptions() Options {
	return Options{
		Width:       1920,
		Height:      1080,
		FPS:         30,
		JPEGQuality: 95,
	}
}

// Controller はカメラセッションの排他的な所有者
// 1インスタンスにつき同時に存在するセッションは最大1つで、
// 新しいセッションの開始前に前のセッションのトラックを完全に解放する
type Controller struct {
	platform Platform
	logger   *zap.SugaredLogger
	opts     Options

	// muはトラックへの能力変更（トーチ・フォーカス・撮影）を直列化する
	mu             sync.Mutex
	session        *Session
	torchSupported bool
	torchOn        bool
	lastErr        error
	lastPhoto      *Photo
}

// NewController は新しいControllerを作成する
func NewController(platform Platform, logger *zap.SugaredLogger, opts Options) *Controller {
	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = DefaultOptions().JPEGQuality
	}
	return &Controller{
		platform: platform,
		logger:   logger,
		opts:     opts,
	}
}

// Start はカメラセッションを開始する
// hintが接写探索を指示する場合はSelectMacroDeviceで候補を選び、
// 見つかればデバイス完全一致の条件に、見つからなければ向きのみの条件にする。
// 成功時はトラックがライブでプレビューに束縛済み。失敗時はリソースを保持しない
func (c *Controller) Start(ctx context.Context, facing Facing, hint PlatformHint) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// 前のセッションが残っていれば先に完全解放する
	c.stopLocked()

	constraints := Constraints{
		Facing:          facing,
		Width:           c.opts.Width,
		Height:          c.opts.Height,
		FPS:             c.opts.FPS,
		ContinuousFocus: true,
	}

	if hint == HintProbeMacro {
		devices, err := c.platform.EnumerateDevices(ctx)
		if err != nil {
			// 列挙の失敗は非致命。向きのみの条件で続行する
			c.logger.Warnw("デバイスの列挙に失敗", "error", err)
		} else if id := SelectMacroDevice(ctx, c.logger, c.platform, devices); id != "" {
			constraints.DeviceID = id
		}
	}

	stream, err := c.platform.Acquire(ctx, constraints)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrCameraUnavailable, err)
		c.lastErr = err
		return nil, err
	}

	// 取得中にビューが破棄された場合、完了したストリームも必ず停止する
	if ctx.Err() != nil {
		stream.Stop()
		c.lastErr = ctx.Err()
		return nil, ctx.Err()
	}

	track := stream.Track()
	caps := track.Capabilities()
	c.torchSupported = caps.Torch
	c.torchOn = false

	// 連続フォーカスはベストエフォートで有効化する。失敗してもログのみ
	if caps.ContinuousFocus {
		on := true
		if err := track.Apply(ctx, Controls{ContinuousFocus: &on}); err != nil {
			c.logger.Warnw("連続フォーカスの有効化に失敗", "error", err)
		}
	}

	session := &Session{
		ID:     uuid.New().String(),
		stream: stream,
		track:  track,
	}
	c.session = session
	c.lastErr = nil

	c.logger.Infow("セッションを開始",
		"session", session.ID,
		"facing", facing,
		"device", constraints.DeviceID,
		"torch", caps.Torch,
	)

	return session, nil
}

// ToggleTorch はトーチを切り替えて新しい状態を返す
// トラックがトーチ対応を報告していない場合、および適用が拒否された場合は
// ErrUnsupportedCapabilityを返し、状態を変更しない（部分的な切り替えはない）
func (c *Controller) ToggleTorch(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil || !c.torchSupported {
		return c.torchOn, ErrUnsupportedCapability
	}

	next := !c.torchOn
	if err := c.session.track.Apply(ctx, Controls{Torch: &next}); err != nil {
		return c.torchOn, fmt.Errorf("%w: %w", ErrUnsupportedCapability, err)
	}

	c.torchOn = next
	c.logger.Infow("トーチを切り替え", "session", c.session.ID, "on", next)
	return next, nil
}

// CapturePhoto は静止画を撮影する
// 多段戦略を順に試し、最初に成功したものを採用する：
//  a. 単写フォーカス起動（失敗しても継続）＋ネイティブ静止画キャプチャ
//  b. ライブフレームのグラブ＋オフスクリーンでのJPEGエンコード
//
// 全経路が失敗した場合のみErrCaptureFailedを返す。
// 成功時は前回のPhotoを置き換え、そのリソースを解放する
func (c *Controller) CapturePhoto(ctx context.Context) (*Photo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		err := fmt.Errorf("%w: セッションがありません", ErrCameraUnavailable)
		c.lastErr = err
		return nil, err
	}
	track := c.session.track

	// 戦略a: 単写フォーカス＋ネイティブ静止画
	// フォーカス起動の失敗はこの段を中断せず、キャプチャ本体に進む
	if err := track.TriggerFocus(ctx); err != nil {
		c.logger.Debugw("単写フォーカスの起動に失敗（継続）", "error", err)
	}

	data, photoErr := track.TakePhoto(ctx)
	if photoErr == nil && len(data) > 0 {
		return c.storePhotoLocked(data), nil
	}
	c.logger.Warnw("ネイティブ静止画キャプチャに失敗。フレームグラブに切り替え", "error", photoErr)

	// 戦略b: ライブフレームのグラブ＋JPEGエンコード
	img, err := track.GrabFrame(ctx)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrCaptureFailed, err)
		c.lastErr = err
		return nil, err
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: c.opts.JPEGQuality}); err != nil {
		err = fmt.Errorf("%w: JPEGエンコードに失敗: %w", ErrCaptureFailed, err)
		c.lastErr = err
		return nil, err
	}

	return c.storePhotoLocked(buf.Bytes()), nil
}

// storePhotoLocked は撮影結果を保存し、前回のPhotoを解放する（ロック済み前提）
// 呼び出し側へは値コピーを返す。保持中のPhotoは次の撮影やセッション停止で
// Releaseされるため、ロック外から読まれる共有ポインタを作らない
func (c *Controller) storePhotoLocked(data []byte) *Photo {
	c.lastPhoto.Release()

	photo := &Photo{
		Ref:     uuid.New().String(),
		Data:    data,
		MIME:    "image/jpeg",
		TakenAt: time.Now(),
	}
	c.lastPhoto = photo
	c.lastErr = nil

	c.logger.Infow("静止画を撮影", "session", c.session.ID, "ref", photo.Ref, "size", len(data))
	return photo.clone()
}

// Stop はセッションの全トラックを解放する
// 停止済み・セッションなしの場合は何もしない（冪等）
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

// stopLocked は実際の解放処理を行う（ロック済み前提）
func (c *Controller) stopLocked() {
	if c.session == nil {
		return
	}

	c.session.stream.Stop()
	c.logger.Infow("セッションを停止", "session", c.session.ID)

	c.session = nil
	c.torchSupported = false
	c.torchOn = false
	c.lastPhoto.Release()
	c.lastPhoto = nil
}

// Status は現在の状態のスナップショットを返す
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := Status{
		State:          StateIdle,
		TorchSupported: c.torchSupported,
		TorchOn:        c.torchOn,
	}
	if c.session != nil {
		status.State = StateActive
	}
	if c.lastErr != nil {
		status.LastError = c.lastErr.Error()
		if c.session == nil {
			status.State = StateError
		}
	}
	if c.lastPhoto != nil {
		status.LastPhotoRef = c.lastPhoto.Ref
	}
	return status
}

// LatestPhoto は直近の撮影画像を返す。無ければnil
// 返すのは値コピーで、以後の撮影やセッション停止の影響を受けない
func (c *Controller) LatestPhoto() *Photo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastPhoto.clone()
}

// Frames は動作中セッションのプレビューフレームチャンネルを返す
// セッションが無ければnil
func (c *Controller) Frames() <-chan []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	return c.session.Frames()
}
