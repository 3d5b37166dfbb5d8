// Package broadcast 放送リグ全体の制御サイクルを担う
//
// # 責務
// - 全カメラのライフサイクル管理（開始・停止）
// - 制御サイクルの駆動（時刻→スケジュール解決→合成→公開）
// - カメラ移動の逐次ディスパッチ（デバイス遅延のサイクルからの分離）
// - 再生指示の外部プレイヤーへの引き渡し
//
// # 仕様
// - 合成サイクルはカメラのキャプチャを待たず、最新フレームをそのまま使う
// - 合成済みキャンバスはJPEGとして最新1枚のみ保持する
// - 時計はClockインターフェースで差し替え可能（デバッグ時刻からの再生用）
package broadcast
