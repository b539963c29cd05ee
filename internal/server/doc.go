// Package server は、HTTPサーバーとキャプチャAPIの公開を管理します。
//
// このパッケージは、HTTPサーバーの起動、ルーティング、
// カメラセッション操作のエンドポイント公開を担当します。
//
// 責務:
//   - HTTPサーバーの起動と管理
//   - セッション開始・停止・トーチ切り替え・撮影のAPI公開
//   - 直近の撮影画像の配信
//   - MJPEGプレビューストリームの配信
//   - グレースフルシャットダウン
//
// 仕様:
//   - ルーティングはgin-gonic/ginを使用
//   - セッションのライフサイクルはcaptureパッケージのControllerが所有
//   - シグナル受信時はセッションを解放してからサーバーを停止
package server
