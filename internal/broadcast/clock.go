package broadcast

import (
	"time"

	"github.com/jason-iskcon/ISKCON-Broadcast/internal/schedule"
)

// Clock は現在時刻の供給源
// スケジュールの決定論的なテストと再生のため、実時計を差し替えられる
type Clock interface {
	Now() time.Time
}

// realClock は実際の壁時計
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// RealClock は実際の壁時計を返す
func RealClock() Clock { return realClock{} }

// debugClock は指定の時刻から実時間と同じ速度で進む時計
// スケジュールを任意の時刻から再生するために使う
type debugClock struct {
	base    time.Time
	started time.Time
}

// NewDebugClock は今日の指定時刻から進む時計を作成する
func NewDebugClock(t schedule.ClockTime) Clock {
	now := time.Now()
	base := time.Date(now.Year(), now.Month(), now.Day(), t.Hour, t.Minute, 0, 0, now.Location())
	return &debugClock{base: base, started: now}
}

func (c *debugClock) Now() time.Time {
	return c.base.Add(time.Since(c.started))
}
