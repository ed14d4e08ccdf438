package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/narendra-goswami/bindshub/internal/model"
)

// AttendanceServiceInterface は出欠ハンドラーが必要とするサービスインターフェース。
type AttendanceServiceInterface interface {
	// Mark は参加者の指定セッションへの出欠を記録する。
	Mark(ctx context.Context, participantID, session string) (model.MarkResult, *model.Participant, error)
	// TotalsFor は参加者の出席セッション数を返す。
	TotalsFor(ctx context.Context, participantID string) (int, error)
	// Sheet は全参加者×固定6セッションの出欠グリッドを構築する。
	Sheet(ctx context.Context) (*model.Sheet, error)
	// Stats はホーム画面向けの集計値を返す。
	Stats(ctx context.Context) (*model.Stats, error)
}

// AttendanceHandler は出欠記録のHTTPハンドラー。
type AttendanceHandler struct {
	service AttendanceServiceInterface
}

// NewAttendanceHandler はAttendanceHandlerを生成する。
func NewAttendanceHandler(service AttendanceServiceInterface) *AttendanceHandler {
	return &AttendanceHandler{service: service}
}

// markRequest は出欠マークリクエストのボディ。
type markRequest struct {
	ParticipantID string `json:"participant_id"`
	Session       string `json:"session"`
}

// markResponse は出欠マークの結果レスポンス。
// マーク済みの場合も200で返し、resultで区別する。
type markResponse struct {
	Result        model.MarkResult     `json:"result"`
	Participant   *participantResponse `json:"participant,omitempty"`
	Session       string               `json:"session"`
	TotalSessions int                  `json:"total_sessions"`
}

// sheetRowResponse は出欠シート1行分のレスポンス。
type sheetRowResponse struct {
	ParticipantID string `json:"participant_id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	Institute     string `json:"institute"`
	Attended      []bool `json:"attended"`
	Total         int    `json:"total"`
}

// sheetResponse は出欠シート全体のレスポンス。
type sheetResponse struct {
	Sessions      []string           `json:"sessions"`
	Rows          []sheetRowResponse `json:"rows"`
	SessionTotals []int              `json:"session_totals"`
}

// Mark は出欠マークを処理する。
// POST /api/attendance/mark
func (h *AttendanceHandler) Mark(w http.ResponseWriter, r *http.Request) {
	var req markRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	result, p, err := h.service.Mark(r.Context(), req.ParticipantID, req.Session)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	total, err := h.service.TotalsFor(r.Context(), req.ParticipantID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := markResponse{
		Result:        result,
		Session:       req.Session,
		TotalSessions: total,
	}
	if p != nil {
		pr := toParticipantResponse(p)
		resp.Participant = &pr
	}
	writeJSON(w, http.StatusOK, resp)
}

// Sheet は出欠シートを返す。
// GET /api/attendance/sheet
func (h *AttendanceHandler) Sheet(w http.ResponseWriter, r *http.Request) {
	sheet, err := h.service.Sheet(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := sheetResponse{
		Sessions:      sheet.Sessions,
		Rows:          make([]sheetRowResponse, len(sheet.Rows)),
		SessionTotals: sheet.SessionTotals,
	}
	for i, row := range sheet.Rows {
		resp.Rows[i] = sheetRowResponse{
			ParticipantID: row.ParticipantID,
			Name:          row.Name,
			Email:         row.Email,
			Institute:     row.Institute,
			Attended:      row.Attended,
			Total:         row.Total,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Sessions は固定6セッションの一覧を定義順で返す。
// GET /api/attendance/sessions
func (h *AttendanceHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"sessions": model.Sessions})
}

// Stats は集計値を返す。
// GET /api/attendance/stats
func (h *AttendanceHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
