package capture

import (
	"context"
	"image"
	"time"
)

// Facing はカメラの向きを表す
type Facing string

const (
	FacingBack  Facing = "back"  // 背面カメラ
	FacingFront Facing = "front" // 前面カメラ
)

// PlatformHint は起動時のプラットフォーム分類を表す
// 接写デバイスの探索はコストが高いため、必要なプラットフォームでのみ行う
type PlatformHint string

const (
	HintDefault    PlatformHint = "default"     // 既定のカメラをそのまま使う
	HintProbeMacro PlatformHint = "probe_macro" // デバイス列挙して接写カメラを探す
)

// DeviceKind はデバイスの種別を表す
type DeviceKind string

const (
	KindVideoInput DeviceKind = "videoinput" // ビデオ入力デバイス
)

// Constraints はストリーム取得1回分の要求条件を表す
// 取得試行ごとに作られ、以後変更されない
type Constraints struct {
	Facing   Facing // 希望するカメラの向き
	DeviceID string // デバイスの完全一致指定（空なら未指定）

	// 解像度・フレームレートのヒント（0は未指定）
	// プラットフォームのカメラ選択を標準センサーに寄せるために使う
	Width  int
	Height int
	FPS    int

	// 連続フォーカスのヒント
	ContinuousFocus bool
}

// DeviceDescriptor は列挙されたデバイスの読み取り専用スナップショット
// 選定処理の間だけ使われ、終了後は破棄される
type DeviceDescriptor struct {
	ID    string     // デバイスの一意識別子（例: /dev/video0）
	Label string     // デバイスの表示名
	Kind  DeviceKind // デバイス種別
}

// TrackCapabilities はトラックが報告する能力のスナップショット
type TrackCapabilities struct {
	// MinFocusDistance はデバイスが報告する最短撮影距離の指標
	// 値が大きいほど接写に強い。負値は未報告を表す
	MinFocusDistance float64
	Torch            bool // トーチ（ライト）対応
	ContinuousFocus  bool // 連続フォーカス対応
}

// Controls はトラックに適用する制御変更を表す
// nilのフィールドは変更しない
type Controls struct {
	Torch           *bool // トーチのオン/オフ
	ContinuousFocus *bool // 連続フォーカスのオン/オフ
}

// Platform はプラットフォームのキャプチャAPIへの注入点
// 本番はV4L2実装、テストはMockPlatformを使う
type Platform interface {
	// EnumerateDevices は利用可能なビデオ入力デバイスを列挙する
	EnumerateDevices(ctx context.Context) ([]DeviceDescriptor, error)

	// Acquire は条件に合うライブストリームを取得する
	Acquire(ctx context.Context, constraints Constraints) (Stream, error)
}

// Stream は取得済みのライブストリームを表す
type Stream interface {
	// Track はストリーム唯一のビデオトラックを返す
	Track() Track

	// Stop は保持する全トラックを解放する。冪等
	Stop()
}

// Track はストリーム内の単一ビデオトラックを表す
type Track interface {
	// Capabilities は取得時に調べた能力を返す
	Capabilities() TrackCapabilities

	// Apply は制御変更をデバイスに適用する
	Apply(ctx context.Context, controls Controls) error

	// TriggerFocus は単写フォーカスを起動する（ベストエフォート）
	TriggerFocus(ctx context.Context) error

	// TakePhoto はデバイスネイティブ解像度のJPEGを1枚撮影する
	TakePhoto(ctx context.Context) ([]byte, error)

	// GrabFrame はライブプレビューから1フレームを取り出す
	GrabFrame(ctx context.Context) (image.Image, error)

	// Frames はプレビュー用のJPEGフレームチャンネルを返す
	Frames() <-chan []byte

	// Stop はトラックを解放する。冪等
	Stop()
}

// Session はアクティブなカメラセッションを表す
// Controllerが排他的に所有し、共有されない
type Session struct {
	ID     string // セッションの一意識別子
	stream Stream
	track  Track
}

// Frames はプレビュー用のフレームチャンネルを返す
func (s *Session) Frames() <-chan []byte {
	return s.track.Frames()
}

// SessionState はセッションの状態を表す
type SessionState string

const (
	StateIdle   SessionState = "idle"   // セッションなし
	StateActive SessionState = "active" // セッション動作中
	StateError  SessionState = "error"  // 直近の操作でエラーが発生
)

// Photo は撮影された静止画を表す
// 新しい撮影で置き換えられるか、セッション終了時に解放される
type Photo struct {
	Ref     string    // 撮影画像の一意参照（UUID）
	Data    []byte    // 画像のバイナリペイロード
	MIME    string    // MIMEタイプ（image/jpeg）
	TakenAt time.Time // 撮影時刻
}

// Release は保持するリソースを解放する
func (p *Photo) Release() {
	if p == nil {
		return
	}
	p.Data = nil
}

// clone は呼び出し側へ渡す値コピーを返す
// 保持中のPhotoは後からReleaseで書き換えられるため、共有ポインタは渡さない
func (p *Photo) clone() *Photo {
	if p == nil {
		return nil
	}
	snapshot := *p
	return &snapshot
}

// Status は上位層へ公開する読み取り専用のスナップショット
type Status struct {
	State          SessionState `json:"state"`            // セッション状態
	TorchSupported bool         `json:"torch_supported"`  // トーチ対応か
	TorchOn        bool         `json:"torch_on"`         // トーチが点灯中か
	LastError      string       `json:"last_error"`       // 直近のエラー（空なら無し）
	LastPhotoRef   string       `json:"last_photo_ref"`   // 直近の撮影画像の参照
}
