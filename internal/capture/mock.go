package capture

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"
)

// MockPlatform はテスト用のPlatform実装
// 取得と解放の回数を数えており、リーク検証に使える
type MockPlatform struct {
	mu sync.Mutex

	devices       []DeviceDescriptor
	focusByDevice map[string]float64 // デバイス毎の最短撮影距離（負値は未報告）
	errByDevice   map[string]error   // デバイス毎の取得エラー

	enumerateErr error
	acquireErr   error

	// テスト制御用のトラック設定
	torchSupported  bool
	continuousFocus bool
	applyErr        error
	triggerErr      error
	photoErr        error
	photoData       []byte
	grabErr         error

	acquires    int
	releases    int
	constraints []Constraints // Acquireに渡された条件の記録
}

// NewMockPlatform は新しいMockPlatformを作成する
func NewMockPlatform(devices []DeviceDescriptor) *MockPlatform {
	return &MockPlatform{
		devices:       devices,
		focusByDevice: make(map[string]float64),
		errByDevice:   make(map[string]error),
		photoData:     []byte("mock-jpeg-data"),
	}
}

// EnumerateDevices はモックデバイス一覧を返す
func (m *MockPlatform) EnumerateDevices(_ context.Context) ([]DeviceDescriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.enumerateErr != nil {
		return nil, m.enumerateErr
	}

	// コピーを返す
	devices := make([]DeviceDescriptor, len(m.devices))
	copy(devices, m.devices)
	return devices, nil
}

// Acquire はモックストリームを取得する
func (m *MockPlatform) Acquire(_ context.Context, constraints Constraints) (Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.constraints = append(m.constraints, constraints)

	if m.acquireErr != nil {
		return nil, m.acquireErr
	}
	if err, exists := m.errByDevice[constraints.DeviceID]; exists {
		return nil, err
	}

	caps := TrackCapabilities{
		MinFocusDistance: -1,
		Torch:            m.torchSupported,
		ContinuousFocus:  m.continuousFocus,
	}
	if distance, exists := m.focusByDevice[constraints.DeviceID]; exists {
		caps.MinFocusDistance = distance
	}

	m.acquires++

	track := &MockTrack{platform: m, caps: caps}
	return &MockStream{platform: m, track: track}, nil
}

// AcquireCount はAcquireが成功した回数を返す
func (m *MockPlatform) AcquireCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acquires
}

// ReleaseCount はストリームが解放された回数を返す
func (m *MockPlatform) ReleaseCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.releases
}

// Constraints はAcquireに渡された条件の記録を返す
func (m *MockPlatform) Constraints() []Constraints {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]Constraints, len(m.constraints))
	copy(result, m.constraints)
	return result
}

// SetFocusDistance はテスト用にデバイスの最短撮影距離を設定する
func (m *MockPlatform) SetFocusDistance(deviceID string, distance float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.focusByDevice[deviceID] = distance
}

// SetDeviceError はテスト用にデバイス単位の取得エラーを設定する
func (m *MockPlatform) SetDeviceError(deviceID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errByDevice[deviceID] = err
}

// SetEnumerateError はテスト用に列挙エラーを設定する
func (m *MockPlatform) SetEnumerateError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enumerateErr = err
}

// SetAcquireError はテスト用に全取得を失敗させるエラーを設定する
func (m *MockPlatform) SetAcquireError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acquireErr = err
}

// SetTorchSupported はテスト用にトーチ対応を設定する
func (m *MockPlatform) SetTorchSupported(supported bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.torchSupported = supported
}

// SetContinuousFocus はテスト用に連続フォーカス対応を設定する
func (m *MockPlatform) SetContinuousFocus(supported bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.continuousFocus = supported
}

// SetApplyError はテスト用に制御適用エラーを設定する
func (m *MockPlatform) SetApplyError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyErr = err
}

// SetTriggerError はテスト用に単写フォーカスエラーを設定する
func (m *MockPlatform) SetTriggerError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.triggerErr = err
}

// SetPhotoError はテスト用にネイティブ静止画キャプチャエラーを設定する
func (m *MockPlatform) SetPhotoError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.photoErr = err
}

// SetGrabError はテスト用にフレームグラブエラーを設定する
func (m *MockPlatform) SetGrabError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grabErr = err
}

// MockStream はテスト用のStream実装
type MockStream struct {
	platform *MockPlatform
	track    *MockTrack
	stopOnce sync.Once
}

// Track はモックトラックを返す
func (s *MockStream) Track() Track {
	return s.track
}

// Stop はストリームを解放して解放回数を記録する。冪等
func (s *MockStream) Stop() {
	s.stopOnce.Do(func() {
		s.track.Stop()
		s.platform.mu.Lock()
		s.platform.releases++
		s.platform.mu.Unlock()
	})
}

// MockTrack はテスト用のTrack実装
type MockTrack struct {
	platform *MockPlatform
	caps     TrackCapabilities

	mu      sync.Mutex
	torchOn bool
	stopped bool
	frameCh chan []byte
}

// Capabilities は設定済みの能力を返す
func (t *MockTrack) Capabilities() TrackCapabilities {
	return t.caps
}

// Apply は制御変更を記録する
func (t *MockTrack) Apply(_ context.Context, controls Controls) error {
	t.platform.mu.Lock()
	applyErr := t.platform.applyErr
	t.platform.mu.Unlock()

	if applyErr != nil {
		return applyErr
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if controls.Torch != nil {
		t.torchOn = *controls.Torch
	}
	return nil
}

// TorchOn はテスト検証用に適用済みのトーチ状態を返す
func (t *MockTrack) TorchOn() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.torchOn
}

// TriggerFocus は単写フォーカスの起動を模擬する
func (t *MockTrack) TriggerFocus(_ context.Context) error {
	t.platform.mu.Lock()
	defer t.platform.mu.Unlock()
	return t.platform.triggerErr
}

// TakePhoto は設定済みのペイロードまたはエラーを返す
func (t *MockTrack) TakePhoto(_ context.Context) ([]byte, error) {
	t.platform.mu.Lock()
	defer t.platform.mu.Unlock()

	if t.platform.photoErr != nil {
		return nil, t.platform.photoErr
	}
	return t.platform.photoData, nil
}

// GrabFrame はテスト用の単色フレームを返す
func (t *MockTrack) GrabFrame(_ context.Context) (image.Image, error) {
	t.platform.mu.Lock()
	grabErr := t.platform.grabErr
	t.platform.mu.Unlock()

	if grabErr != nil {
		return nil, grabErr
	}

	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: 0x33, G: 0x66, B: 0x99, A: 0xFF})
		}
	}
	return img, nil
}

// Frames はテスト用のフレームチャンネルを返す
func (t *MockTrack) Frames() <-chan []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.frameCh == nil {
		t.frameCh = make(chan []byte, 1)
	}
	return t.frameCh
}

// PushFrame はテスト用にプレビューフレームを注入する
func (t *MockTrack) PushFrame(frame []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.frameCh == nil {
		t.frameCh = make(chan []byte, 1)
	}
	select {
	case t.frameCh <- frame:
		return nil
	default:
		return fmt.Errorf("フレームバッファが一杯です")
	}
}

// Stop はトラックを解放する。冪等
func (t *MockTrack) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.stopped = true
	if t.frameCh != nil {
		close(t.frameCh)
	}
}

// Stopped はテスト検証用に解放済みかを返す
func (t *MockTrack) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}
