package compose

import (
	"image"
	"math"
)

// aspectRatioHeightFactor は16:9ソースを4:3領域へ写すときの高さ係数
const aspectRatioHeightFactor = 3.0 / 4.0

// ResizeToFit はアスペクト比を無視して (w, h) ぴったりにリサイズする
// スロット寸法への正確な配置に使う
func ResizeToFit(src image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	srcBounds := src.Bounds()
	srcW := srcBounds.Dx()
	srcH := srcBounds.Dy()

	// ニアレストネイバー法でリサイズ
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			srcX := x * srcW / w
			srcY := y * srcH / h
			dst.Set(x, y, src.At(srcBounds.Min.X+srcX, srcBounds.Min.Y+srcY))
		}
	}
	return dst
}

// CropAndResize はアスペクト比を保ったまま (w, h) を完全に覆うよう拡大縮小し、
// はみ出した軸を中央でクロップする。出力寸法は常に (w, h) になる。
func CropAndResize(src image.Image, w, h int) *image.RGBA {
	srcBounds := src.Bounds()
	srcW := srcBounds.Dx()
	srcH := srcBounds.Dy()

	// 幅比・高さ比の大きい方で拡大縮小するとレターボックスが出ない
	scale := math.Max(float64(w)/float64(srcW), float64(h)/float64(srcH))
	scaledW := int(math.Round(float64(srcW) * scale))
	scaledH := int(math.Round(float64(srcH) * scale))
	if scaledW < w {
		scaledW = w
	}
	if scaledH < h {
		scaledH = h
	}

	// はみ出しを中央でクロップ
	cropX := (scaledW - w) / 2
	cropY := (scaledH - h) / 2

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			srcX := (x + cropX) * srcW / scaledW
			srcY := (y + cropY) * srcH / scaledH
			if srcX >= srcW {
				srcX = srcW - 1
			}
			if srcY >= srcH {
				srcY = srcH - 1
			}
			dst.Set(x, y, src.At(srcBounds.Min.X+srcX, srcBounds.Min.Y+srcY))
		}
	}
	return dst
}

// FullscreenDisplay はフルスクリーン表示用の4:3中央クロップ変種
//
// 目標幅に合わせて4:3の高さでリサイズし、目標高さを超えた分を
// 上下中央でクロップする。16:9ソースを4:3領域へ写す際の補正。
// 出力寸法は (w, min(h, w*3/4)) になる。
func FullscreenDisplay(src image.Image, w, h int) *image.RGBA {
	resizedH := int(float64(w) * aspectRatioHeightFactor)

	resized := ResizeToFit(src, w, resizedH)
	if resizedH <= h {
		return resized
	}

	// 上下の超過分を中央でクロップ
	cropTop := (resizedH - h) / 2
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dst.Set(x, y, resized.At(x, cropTop+y))
		}
	}
	return dst
}

// FullscreenSize はFullscreenDisplayの出力寸法を返す
// 起動時のレイアウト検証で配置領域の計算に使う
func FullscreenSize(w, h int) (int, int) {
	resizedH := int(float64(w) * aspectRatioHeightFactor)
	if resizedH < h {
		return w, resizedH
	}
	return w, h
}
