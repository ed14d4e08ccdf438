package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/narendra-goswami/bindshub/internal/model"
)

// --- モック定義 ---

// mockBackupService はBackupServiceInterfaceのモック実装。
type mockBackupService struct {
	exportJSONFn    func(ctx context.Context) ([]byte, string, error)
	exportCSVFn     func(ctx context.Context) ([]byte, string, error)
	stageImportFn   func(ctx context.Context, raw []byte) (string, int, error)
	confirmImportFn func(ctx context.Context, token string) (int, error)
	clearAllFn      func(ctx context.Context) error
}

func (m *mockBackupService) ExportJSON(ctx context.Context) ([]byte, string, error) {
	if m.exportJSONFn != nil {
		return m.exportJSONFn(ctx)
	}
	return []byte("{}"), "BINDS_Backup_2026-01-29.json", nil
}

func (m *mockBackupService) ExportCSV(ctx context.Context) ([]byte, string, error) {
	if m.exportCSVFn != nil {
		return m.exportCSVFn(ctx)
	}
	return []byte("Participant ID,Name\n"), "BINDS_Attendance_2026-01-29.csv", nil
}

func (m *mockBackupService) StageImport(ctx context.Context, raw []byte) (string, int, error) {
	if m.stageImportFn != nil {
		return m.stageImportFn(ctx, raw)
	}
	return "token-1", 0, nil
}

func (m *mockBackupService) ConfirmImport(ctx context.Context, token string) (int, error) {
	if m.confirmImportFn != nil {
		return m.confirmImportFn(ctx, token)
	}
	return 0, nil
}

func (m *mockBackupService) ClearAll(ctx context.Context) error {
	if m.clearAllFn != nil {
		return m.clearAllFn(ctx)
	}
	return nil
}

// newBackupRouter はBackupHandlerだけをマウントしたchi.Routerを返す。
func newBackupRouter(svc BackupServiceInterface) http.Handler {
	r := chi.NewRouter()
	h := NewBackupHandler(svc)
	r.Route("/api/backup", func(r chi.Router) {
		r.Get("/export", h.ExportJSON)
		r.Get("/export.csv", h.ExportCSV)
		r.Post("/import", h.StageImport)
		r.Post("/import/{token}/confirm", h.ConfirmImport)
		r.Post("/clear", h.ClearAll)
	})
	return r
}

// --- GET /api/backup/export テスト ---

func TestBackupHandler_ExportJSON_ReturnsDownload(t *testing.T) {
	router := newBackupRouter(&mockBackupService{})

	req := httptest.NewRequest(http.MethodGet, "/api/backup/export", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}

	disposition := resp.Header.Get("Content-Disposition")
	want := `attachment; filename="BINDS_Backup_2026-01-29.json"`
	if disposition != want {
		t.Errorf("Content-Disposition = %q, want %q", disposition, want)
	}
}

// --- GET /api/backup/export.csv テスト ---

func TestBackupHandler_ExportCSV_ReturnsDownload(t *testing.T) {
	router := newBackupRouter(&mockBackupService{})

	req := httptest.NewRequest(http.MethodGet, "/api/backup/export.csv", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Content-Type = %q, want %q", ct, "text/csv")
	}
	if !strings.HasPrefix(w.Body.String(), "Participant ID,") {
		t.Errorf("body = %q, want CSV starting with header", w.Body.String())
	}
}

// --- POST /api/backup/import テスト ---

func TestBackupHandler_StageImport_ReturnsTokenAndCount(t *testing.T) {
	var receivedBody []byte
	svc := &mockBackupService{
		stageImportFn: func(ctx context.Context, raw []byte) (string, int, error) {
			receivedBody = raw
			return "token-abc", 12, nil
		},
	}
	router := newBackupRouter(svc)

	body := `{"participants":[],"attendance":{}}`
	req := httptest.NewRequest(http.MethodPost, "/api/backup/import", strings.NewReader(body))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if string(receivedBody) != body {
		t.Errorf("service received %q, want %q", receivedBody, body)
	}

	var got stageImportResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.Token != "token-abc" {
		t.Errorf("token = %q, want %q", got.Token, "token-abc")
	}
	if got.ParticipantCount != 12 {
		t.Errorf("participant_count = %d, want 12", got.ParticipantCount)
	}
}

func TestBackupHandler_StageImport_FormatError_Returns422(t *testing.T) {
	svc := &mockBackupService{
		stageImportFn: func(ctx context.Context, raw []byte) (string, int, error) {
			return "", 0, model.NewImportFormatError("participants と attendance の両方が必要です")
		},
	}
	router := newBackupRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/backup/import", strings.NewReader(`{"foo":1}`))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusUnprocessableEntity)
	}

	var got apiErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if got.Code != model.ErrCodeImportFormat {
		t.Errorf("code = %q, want %q", got.Code, model.ErrCodeImportFormat)
	}
}

// --- POST /api/backup/import/{token}/confirm テスト ---

func TestBackupHandler_ConfirmImport_Success(t *testing.T) {
	confirmedToken := ""
	svc := &mockBackupService{
		confirmImportFn: func(ctx context.Context, token string) (int, error) {
			confirmedToken = token
			return 7, nil
		},
	}
	router := newBackupRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/backup/import/token-abc/confirm", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if confirmedToken != "token-abc" {
		t.Errorf("token = %q, want %q", confirmedToken, "token-abc")
	}

	var got confirmImportResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.ParticipantCount != 7 {
		t.Errorf("participant_count = %d, want 7", got.ParticipantCount)
	}
}

func TestBackupHandler_ConfirmImport_UnknownToken_Returns404(t *testing.T) {
	svc := &mockBackupService{
		confirmImportFn: func(ctx context.Context, token string) (int, error) {
			return 0, model.NewImportNotFoundError(token)
		},
	}
	router := newBackupRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/backup/import/expired-token/confirm", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNotFound)
	}
}

// --- POST /api/backup/clear テスト ---

func TestBackupHandler_ClearAll_WithoutConfirm_Returns428(t *testing.T) {
	clearCalled := false
	svc := &mockBackupService{
		clearAllFn: func(ctx context.Context) error {
			clearCalled = true
			return nil
		},
	}
	router := newBackupRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/backup/clear", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusPreconditionRequired {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusPreconditionRequired)
	}
	if clearCalled {
		t.Error("ClearAll should not be called without confirm=true")
	}
}

func TestBackupHandler_ClearAll_WithConfirm_Succeeds(t *testing.T) {
	clearCalled := false
	svc := &mockBackupService{
		clearAllFn: func(ctx context.Context) error {
			clearCalled = true
			return nil
		},
	}
	router := newBackupRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/backup/clear?confirm=true", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNoContent)
	}
	if !clearCalled {
		t.Error("expected ClearAll to be called")
	}
}
