package handler

import (
	"context"
	"net/http"

	"github.com/narendra-goswami/bindshub/internal/appscript"
)

// SyncServiceInterface は同期ハンドラーが必要とするサービスインターフェース。
type SyncServiceInterface interface {
	// SyncParticipants は全参加者をWebhookへ送信する。
	SyncParticipants(ctx context.Context) (*appscript.SyncReport, error)
	// SyncAttendance は全出欠記録をWebhookへ送信する。
	SyncAttendance(ctx context.Context) (*appscript.SyncReport, error)
}

// SyncHandler はスプレッドシート同期のHTTPハンドラー。
type SyncHandler struct {
	service SyncServiceInterface
}

// NewSyncHandler はSyncHandlerを生成する。
func NewSyncHandler(service SyncServiceInterface) *SyncHandler {
	return &SyncHandler{service: service}
}

// SyncParticipants は参加者全件の手動同期を処理する。
// POST /api/sync/participants
func (h *SyncHandler) SyncParticipants(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.SyncParticipants(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// SyncAttendance は出欠記録全件の手動同期を処理する。
// POST /api/sync/attendance
func (h *SyncHandler) SyncAttendance(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.SyncAttendance(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
