package camera

import (
	"image"
	"testing"
	"time"
)

// TestFrameSlotEmpty は未格納のスロットからの読み取りをテストする
func TestFrameSlotEmpty(t *testing.T) {
	var slot FrameSlot

	frame, ok := slot.Load()
	if ok {
		t.Error("未格納のスロットから読み取れてしまいました")
	}
	if frame != nil {
		t.Errorf("未格納のスロットがフレームを返しました: %v", frame)
	}
	if slot.Sequence() != 0 {
		t.Errorf("未格納のスロットの連番が0ではありません: %d", slot.Sequence())
	}
}

// TestFrameSlotStoreLoad は格納と読み取りをテストする
func TestFrameSlotStoreLoad(t *testing.T) {
	var slot FrameSlot

	first := &Frame{Image: image.NewRGBA(image.Rect(0, 0, 4, 4)), Timestamp: time.Now()}
	second := &Frame{Image: image.NewRGBA(image.Rect(0, 0, 8, 8)), Timestamp: time.Now()}

	slot.Store(first)
	if first.Sequence != 1 {
		t.Errorf("1枚目の連番が1ではありません: %d", first.Sequence)
	}

	slot.Store(second)
	if second.Sequence != 2 {
		t.Errorf("2枚目の連番が2ではありません: %d", second.Sequence)
	}

	// 常に最新のフレームだけが読める
	frame, ok := slot.Load()
	if !ok {
		t.Fatal("格納済みのスロットから読み取れません")
	}
	if frame != second {
		t.Error("最新ではないフレームが返されました")
	}
	if slot.Sequence() != 2 {
		t.Errorf("スロットの連番が2ではありません: %d", slot.Sequence())
	}
}

// TestFrameSlotNilStore はnil格納が無視されることをテストする
func TestFrameSlotNilStore(t *testing.T) {
	var slot FrameSlot

	slot.Store(nil)
	if _, ok := slot.Load(); ok {
		t.Error("nil格納後にフレームが読み取れてしまいました")
	}
}
