package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/narendra-goswami/bindshub/internal/model"
)

// RegistryServiceInterface は参加者ハンドラーが必要とするサービスインターフェース。
type RegistryServiceInterface interface {
	// Register は参加者を新規登録する。
	Register(ctx context.Context, name, email, institute string) (*model.Participant, error)
	// Find はIDで参加者を検索する。見つからない場合は(nil, nil)を返す。
	Find(ctx context.Context, id string) (*model.Participant, error)
	// Search は氏名またはIDの部分一致検索を行う。
	Search(ctx context.Context, query string) ([]model.Participant, error)
	// Delete は参加者と対応する出欠エントリを削除する。
	Delete(ctx context.Context, id string) error
}

// ParticipantHandler は参加者管理のHTTPハンドラー。
type ParticipantHandler struct {
	service RegistryServiceInterface
}

// NewParticipantHandler はParticipantHandlerを生成する。
func NewParticipantHandler(service RegistryServiceInterface) *ParticipantHandler {
	return &ParticipantHandler{service: service}
}

// registerParticipantRequest は参加者登録リクエストのボディ。
type registerParticipantRequest struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Institute string `json:"institute"`
}

// participantResponse は参加者情報のAPIレスポンス。
// フィールド名はバックアップJSONと同じキーを使う。
type participantResponse struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Email            string `json:"email"`
	Institute        string `json:"institute"`
	RegistrationDate string `json:"registrationDate"`
}

// Register は参加者登録を処理する。
// POST /api/participants
func (h *ParticipantHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerParticipantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	p, err := h.service.Register(r.Context(), req.Name, req.Email, req.Institute)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toParticipantResponse(p))
}

// Search は参加者の検索を処理する。クエリ未指定なら全件を登録順で返す。
// GET /api/participants?q=...
func (h *ParticipantHandler) Search(w http.ResponseWriter, r *http.Request) {
	participants, err := h.service.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]participantResponse, len(participants))
	for i := range participants {
		results[i] = toParticipantResponse(&participants[i])
	}
	writeJSON(w, http.StatusOK, results)
}

// Get は参加者詳細を取得する。
// GET /api/participants/{id}
func (h *ParticipantHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, err := h.service.Find(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if p == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewParticipantNotFoundError(id))
		return
	}

	writeJSON(w, http.StatusOK, toParticipantResponse(p))
}

// Delete は参加者を削除する。破壊的操作のため confirm=true が必須。
// DELETE /api/participants/{id}?confirm=true
func (h *ParticipantHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirm") != "true" {
		apiErr := model.NewConfirmationRequiredError("参加者の削除")
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// toParticipantResponse はmodel.ParticipantからAPIレスポンスに変換する。
func toParticipantResponse(p *model.Participant) participantResponse {
	return participantResponse{
		ID:               p.ID,
		Name:             p.Name,
		Email:            p.Email,
		Institute:        p.Institute,
		RegistrationDate: p.RegistrationDate,
	}
}
