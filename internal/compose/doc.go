// Package compose フレームの幾何変換とキャンバス合成を担う
//
// # 責務
//   - リサイズ・クロップの純粋なプリミティブ（ResizeToFit / CropAndResize /
//     FullscreenDisplay）
//   - 名前付きレイアウトポリシー（full_screen / dual_view /
//     left_column_right_main）によるキャンバス合成
//   - 起動時のレイアウト検証（境界超過・カメラ参照）
//
// # 仕様
// - キャンバスは毎サイクル背景から再構築する（残像防止のステートレス再計算）
// - フレームが未取得のスロットは描画をスキップし背景を見せる
// - 各レイアウトの描画順は固定で、後から描いた領域が重なりで勝つ
package compose
