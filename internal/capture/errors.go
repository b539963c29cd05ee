package capture

import "errors"

// エラー種別
// 能力適用の失敗（トーチ・フォーカス）や選定中のデバイス単位の失敗は
// 非致命としてログのみに留め、これらのエラーには昇格させない
var (
	// ErrCameraUnavailable はストリーム取得が一切できないことを表す
	// （権限拒否・該当デバイスなし・ハードウェア使用中）
	ErrCameraUnavailable = errors.New("カメラを利用できません")

	// ErrUnsupportedCapability は要求した機能にデバイスが非対応であることを表す
	ErrUnsupportedCapability = errors.New("この機能には対応していません")

	// ErrCaptureFailed は全ての撮影経路が失敗したことを表す
	ErrCaptureFailed = errors.New("撮影に失敗しました")
)
