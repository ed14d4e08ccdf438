package idcard

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"log/slog"
	"net/http"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/narendra-goswami/bindshub/internal/model"
)

// カードの寸法と配置。
const (
	cardWidth  = 400
	cardHeight = 550
	qrSize     = 150
	logoSize   = 60
)

// Branding はカードに描画されるイベント表記を保持する。
type Branding struct {
	Title   string
	Dates   string
	Venue   string
	LogoURL string
}

// Composer は参加者1人分のIDカードPNGを合成する。
// ロゴの取得・デコードに失敗してもカードはロゴなしで完成させる。
type Composer struct {
	encoder  Encoder
	branding Branding
	client   *http.Client
	logger   *slog.Logger

	regularFace font.Face
	boldFace    font.Face
	titleFace   font.Face
	nameFace    font.Face
}

// NewComposer はComposerを生成する。
// clientはロゴ取得に使う外向きHTTPクライアント（SSRFガード済みを想定）。
func NewComposer(encoder Encoder, branding Branding, client *http.Client, logger *slog.Logger) (*Composer, error) {
	regular, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse regular font: %w", err)
	}
	bold, err := truetype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bold font: %w", err)
	}

	return &Composer{
		encoder:     encoder,
		branding:    branding,
		client:      client,
		logger:      logger,
		regularFace: truetype.NewFace(regular, &truetype.Options{Size: 14}),
		boldFace:    truetype.NewFace(bold, &truetype.Options{Size: 16}),
		titleFace:   truetype.NewFace(bold, &truetype.Options{Size: 17}),
		nameFace:    truetype.NewFace(bold, &truetype.Options{Size: 20}),
	}, nil
}

// Compose は参加者のIDカードをPNGとして合成する。
func (c *Composer) Compose(ctx context.Context, p *model.Participant) ([]byte, error) {
	dc := gg.NewContext(cardWidth, cardHeight)

	// 背景: 上から下への淡い緑→白のグラデーション
	grad := gg.NewLinearGradient(0, 0, 0, cardHeight)
	grad.AddColorStop(0, color.RGBA{R: 0xe8, G: 0xf4, B: 0xf1, A: 0xff})
	grad.AddColorStop(1, color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff})
	dc.SetFillStyle(grad)
	dc.DrawRectangle(0, 0, cardWidth, cardHeight)
	dc.Fill()

	// 枠線
	dc.SetHexColor("#1b5e4e")
	dc.SetLineWidth(3)
	dc.DrawRectangle(15, 15, cardWidth-30, cardHeight-30)
	dc.Stroke()

	// ロゴ（取得失敗はログのみ）
	if logo := c.fetchLogo(ctx); logo != nil {
		dc.DrawImage(logo, 30, 30)
	}

	// イベントタイトル
	dc.SetHexColor("#1b5e4e")
	dc.SetFontFace(c.titleFace)
	dc.DrawStringWrapped(c.branding.Title, cardWidth/2, 120, 0.5, 0.5, cardWidth-60, 1.3, gg.AlignCenter)

	// QRコード
	qr, err := c.encoder.Encode(p.ID, qrSize)
	if err != nil {
		return nil, fmt.Errorf("failed to render QR code: %w", err)
	}
	dc.DrawImage(qr, (cardWidth-qrSize)/2, 150)

	// 参加者情報
	dc.SetHexColor("#1b5e4e")
	dc.SetFontFace(c.nameFace)
	dc.DrawStringAnchored(p.Name, cardWidth/2, 330, 0.5, 0.5)
	dc.SetHexColor("#555555")
	dc.SetFontFace(c.regularFace)
	dc.DrawStringAnchored("Participant", cardWidth/2, 355, 0.5, 0.5)
	dc.SetHexColor("#1b5e4e")
	dc.SetFontFace(c.boldFace)
	dc.DrawStringAnchored(p.ID, cardWidth/2, 380, 0.5, 0.5)

	// フッター
	dc.SetHexColor("#555555")
	dc.SetFontFace(c.regularFace)
	dc.DrawStringAnchored(c.branding.Dates, cardWidth/2, 480, 0.5, 0.5)
	dc.DrawStringAnchored(c.branding.Venue, cardWidth/2, 500, 0.5, 0.5)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		return nil, fmt.Errorf("failed to encode card PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// FileName はダウンロード用ファイル名を返す（例: Asha Verma-ID-BINDS-01.png）。
func FileName(p *model.Participant) string {
	return fmt.Sprintf("%s-ID-%s.png", p.Name, p.ID)
}

// fetchLogo はロゴ画像を取得して60x60に縮小する。
// URL未設定・取得失敗・デコード失敗のいずれもnilを返し、カード生成は続行される。
func (c *Composer) fetchLogo(ctx context.Context) image.Image {
	if c.branding.LogoURL == "" || c.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.branding.LogoURL, nil)
	if err != nil {
		c.logger.Warn("logo request failed, rendering card without logo", "error", err)
		return nil
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("logo fetch failed, rendering card without logo", "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("logo fetch failed, rendering card without logo", "status", resp.StatusCode)
		return nil
	}

	src, _, err := image.Decode(resp.Body)
	if err != nil {
		c.logger.Warn("logo decode failed, rendering card without logo", "error", err)
		return nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, logoSize, logoSize))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return dst
}
