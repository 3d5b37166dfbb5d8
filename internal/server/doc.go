// Package server は、HTTPサーバーと外部向けAPIを管理します。
//
// 責務:
//   - HTTPサーバーの起動と管理
//   - システム状態・カメラ一覧の提供
//   - 手動PTZ操作の受け付け
//   - 合成キャンバスのMJPEGプレビュー配信
//
// 仕様:
//   - ルーティングにはgin-gonic/ginを使用
//   - グレースフルシャットダウンに対応
//   - プレビューは最新の合成フレームのみを配信（遅延クライアントは
//     フレームを取りこぼす）
package server
