package handler

import (
	"context"
	"fmt"
	"image/png"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/narendra-goswami/bindshub/internal/idcard"
	"github.com/narendra-goswami/bindshub/internal/model"
)

// CardComposerInterface はIDカード合成を抽象化する。
type CardComposerInterface interface {
	// Compose は参加者のIDカードをPNGとして合成する。
	Compose(ctx context.Context, p *model.Participant) ([]byte, error)
}

// CardRenderRecorder はカード生成のメトリクス記録を抽象化する。
type CardRenderRecorder interface {
	RecordCardRendered()
}

// カードプレビューで返す素のQRコードの一辺。
const previewQRSize = 150

// CardHandler はIDカード生成のHTTPハンドラー。
type CardHandler struct {
	registry RegistryServiceInterface
	composer CardComposerInterface
	encoder  idcard.Encoder
	metrics  CardRenderRecorder
}

// NewCardHandler はCardHandlerを生成する。metricsはnilでもよい。
func NewCardHandler(registry RegistryServiceInterface, composer CardComposerInterface, encoder idcard.Encoder, metrics CardRenderRecorder) *CardHandler {
	return &CardHandler{
		registry: registry,
		composer: composer,
		encoder:  encoder,
		metrics:  metrics,
	}
}

// Download は参加者のIDカードPNGをダウンロードレスポンスとして返す。
// GET /api/participants/{id}/card
func (h *CardHandler) Download(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, err := h.registry.Find(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if p == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewParticipantNotFoundError(id))
		return
	}

	data, err := h.composer.Compose(r.Context(), p)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordCardRendered()
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", idcard.FileName(p)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// Preview は参加者IDの素のQRコードPNGをインライン表示用に返す。
// カード全体の合成は行わない。
// GET /api/participants/{id}/card/preview
func (h *CardHandler) Preview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, err := h.registry.Find(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if p == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewParticipantNotFoundError(id))
		return
	}

	img, err := h.encoder.Encode(p.ID, previewQRSize)
	if err != nil {
		handleServiceError(w, fmt.Errorf("failed to render QR code: %w", err))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	png.Encode(w, img)
}
