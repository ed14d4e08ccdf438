package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/narendra-goswami/bindshub/internal/model"
)

// BackupServiceInterface はバックアップハンドラーが必要とするサービスインターフェース。
type BackupServiceInterface interface {
	// ExportJSON は状態全体をバックアップJSONとして書き出す。
	ExportJSON(ctx context.Context) ([]byte, string, error)
	// ExportCSV は出欠シートをCSVとして書き出す。
	ExportCSV(ctx context.Context) ([]byte, string, error)
	// StageImport はバックアップJSONを検証してステージングする。
	StageImport(ctx context.Context, raw []byte) (string, int, error)
	// ConfirmImport はステージング済みデータで状態全体を置き換える。
	ConfirmImport(ctx context.Context, token string) (int, error)
	// ClearAll は状態を空の初期形に置き換える。
	ClearAll(ctx context.Context) error
}

// インポートリクエストボディの上限。バックアップJSONは高々数百人分。
const maxImportBodySize = 10 << 20 // 10MB

// BackupHandler はエクスポート・インポート・全消去のHTTPハンドラー。
type BackupHandler struct {
	service BackupServiceInterface
}

// NewBackupHandler はBackupHandlerを生成する。
func NewBackupHandler(service BackupServiceInterface) *BackupHandler {
	return &BackupHandler{service: service}
}

// stageImportResponse はインポートステージングの結果レスポンス。
type stageImportResponse struct {
	Token            string `json:"token"`
	ParticipantCount int    `json:"participant_count"`
}

// confirmImportResponse はインポート確定の結果レスポンス。
type confirmImportResponse struct {
	ParticipantCount int `json:"participant_count"`
}

// ExportJSON はバックアップJSONをダウンロードレスポンスとして返す。
// GET /api/backup/export
func (h *BackupHandler) ExportJSON(w http.ResponseWriter, r *http.Request) {
	data, filename, err := h.service.ExportJSON(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// ExportCSV は出欠シートCSVをダウンロードレスポンスとして返す。
// GET /api/backup/export.csv
func (h *BackupHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	data, filename, err := h.service.ExportCSV(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// StageImport はバックアップJSONを受け取りステージングする。状態はまだ変わらない。
// POST /api/backup/import
func (h *BackupHandler) StageImport(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxImportBodySize))
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの読み取りに失敗しました。",
			Category: "validation",
			Action:   "バックアップファイルを再度アップロードしてください。",
		})
		return
	}

	token, count, err := h.service.StageImport(r.Context(), raw)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stageImportResponse{
		Token:            token,
		ParticipantCount: count,
	})
}

// ConfirmImport はステージング済みインポートを確定し、状態全体を置き換える。
// POST /api/backup/import/{token}/confirm
func (h *BackupHandler) ConfirmImport(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.ConfirmImport(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, confirmImportResponse{ParticipantCount: count})
}

// ClearAll は全データを消去する。破壊的操作のため confirm=true が必須。
// POST /api/backup/clear?confirm=true
func (h *BackupHandler) ClearAll(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirm") != "true" {
		apiErr := model.NewConfirmationRequiredError("全データの消去")
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	if err := h.service.ClearAll(r.Context()); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
