// Package idcard は参加者IDカードのQRエンコードと描画を提供する。
package idcard

import (
	"fmt"
	"image"
	"image/color"

	qrcode "github.com/skip2/go-qrcode"
)

// Encoder はQRコード画像の生成を抽象化する。
// ペイロードは参加者ID文字列そのもので、URLやJSONには包まない。
type Encoder interface {
	Encode(text string, size int) (image.Image, error)
}

// qrEncoder はskip2/go-qrcodeによるEncoderの実装。
// 最高の誤り訂正レベルで、カードの枠と同じ深緑の二色で生成する。
type qrEncoder struct {
	foreground color.Color
}

// NewQREncoder はEncoderの新しいインスタンスを生成する。
func NewQREncoder() *qrEncoder {
	return &qrEncoder{
		foreground: color.RGBA{R: 0x1b, G: 0x5e, B: 0x4e, A: 0xff},
	}
}

// Encode は指定テキストのQRコード画像を生成する。
func (e *qrEncoder) Encode(text string, size int) (image.Image, error) {
	q, err := qrcode.New(text, qrcode.Highest)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR code: %w", err)
	}
	q.ForegroundColor = e.foreground
	q.BackgroundColor = color.White
	return q.Image(size), nil
}

// compile-time interface check
var _ Encoder = (*qrEncoder)(nil)
