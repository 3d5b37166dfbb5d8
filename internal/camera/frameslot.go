package camera

import (
	"sync/atomic"
)

// FrameSlot は最新フレーム1枚を保持する共有セル
//
// 書き込みはそのカメラのキャプチャループのみ、読み取りはコンポジター等の
// 複数コンテキストから行われる。書き込みはポインタの交換で行うため、
// 読み取り側が書き込み途中のフレームを観測することはない。
// 格納後のFrameは不変として扱うこと。
type FrameSlot struct {
	ptr atomic.Pointer[Frame]
	seq atomic.Uint64
}

// Store は新しいフレームを格納する
// 連番はスロット側で採番される
func (s *FrameSlot) Store(f *Frame) {
	if f == nil {
		return
	}
	f.Sequence = s.seq.Add(1)
	s.ptr.Store(f)
}

// Load は最新フレームを返す
// まだ1枚も格納されていない場合は (nil, false) を返す
func (s *FrameSlot) Load() (*Frame, bool) {
	f := s.ptr.Load()
	if f == nil {
		return nil, false
	}
	return f, true
}

// Sequence はこれまでに格納されたフレーム数を返す
func (s *FrameSlot) Sequence() uint64 {
	return s.seq.Load()
}
