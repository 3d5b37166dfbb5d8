// Package camera PTZカメラの抽象化と制御プレーンを担う
//
// # 責務
// - カメラ契約（フレーム取得・PTZコマンド送信）の定義
// - IPカメラの認証セッション管理（トークンログインとリトライ）
// - MJPEGストリームからの常駐キャプチャループ
// - モックカメラによる合成・ファイル由来フレームの供給
// - タイプ名→作成関数のレジストリによる実行時選択
//
// # 仕様
//   - 最新フレームは単一スロット（FrameSlot）に保持し、書き込みは
//     そのカメラのキャプチャループのみ、読み取りは任意のコンテキストから行える
//   - GetFrame は新しいフレームを待たない。未取得なら ErrNoFrame を返す
//   - ログイン失敗はリトライ後に縮退動作へ移行し、プロセスを止めない
//   - PTZコマンドの一過性の失敗はログに残して吸収する
package camera
