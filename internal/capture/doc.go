// Package capture はカメラセッションの制御を担う
//
// # 責務
// - カメラストリームのライフサイクル管理（開始・停止）
// - トーチ（ライト）の切り替えと静止画の撮影
// - 撮影経路の多段フォールバック（ネイティブ静止画→フレームグラブ）
// - 接写（マクロ）対応デバイスのヒューリスティックな選定
//
// # 使い分け
// このパッケージは以下の場合に使用する：
// - 身分証などの接写撮影用にカメラを1台制御したい
// - プラットフォームのキャプチャAPIを差し替え可能にしてテストしたい
// - 撮影失敗時に段階的なフォールバックを行いたい
//
// # 仕様
// - Controller: セッションの排他的な所有者。1インスタンスにつき同時に1セッションのみ
// - SelectMacroDevice: 各デバイスを短時間開いて最短撮影距離を比較する線形走査
// - Platform: プラットフォームAPIの注入点。V4L2実装とテスト用モックを同梱
// - 能力の適用失敗（トーチ・フォーカス）は非致命でログ出力のみ
//
// # 前提要件
//   - v4l-utils: デバイス名・コントロールの取得に使用
//     Ubuntu/Debian: sudo apt install v4l-utils
//   - ffmpeg: 静止画キャプチャとプレビュー配信に使用
//     Ubuntu/Debian: sudo apt install ffmpeg
//   - videoグループへの参加: デバイスアクセス権限
//     sudo usermod -a -G video $USER
package capture
