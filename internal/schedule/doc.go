// Package schedule 壁時計駆動のオーケストレーションを担う
//
// # 責務
// - 番組→イベント→アクションの3階層スケジュール文書の読み込みと検証
// - 現在時刻（実時計またはデバッグ時刻）に対するアクティブ位置の解決
// - 制御サイクル毎のレイアウト切り替え・カメラ移動・再生指示の発行
//
// # 仕様
//   - 文書は起動時に1度読み込み、以降は読み取り専用
//   - Schedulerが持つ可変状態は文書内のカーソル位置のみ
//   - アクションのdurationは発火時点からの目安の実行時間で、超過分は
//     次のアクションへ持ち越される
//   - レイアウトモードはコンポジターがステートレスであるため毎サイクル主張される
//   - 全番組の窓の外ではIdle状態（背景のみの表示）になる
package schedule
