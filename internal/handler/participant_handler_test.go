package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/narendra-goswami/bindshub/internal/model"
)

// --- モック定義 ---

// mockRegistryService はRegistryServiceInterfaceのモック実装。
type mockRegistryService struct {
	registerFn func(ctx context.Context, name, email, institute string) (*model.Participant, error)
	findFn     func(ctx context.Context, id string) (*model.Participant, error)
	searchFn   func(ctx context.Context, query string) ([]model.Participant, error)
	deleteFn   func(ctx context.Context, id string) error
}

func (m *mockRegistryService) Register(ctx context.Context, name, email, institute string) (*model.Participant, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, name, email, institute)
	}
	return nil, nil
}

func (m *mockRegistryService) Find(ctx context.Context, id string) (*model.Participant, error) {
	if m.findFn != nil {
		return m.findFn(ctx, id)
	}
	return nil, nil
}

func (m *mockRegistryService) Search(ctx context.Context, query string) ([]model.Participant, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, query)
	}
	return nil, nil
}

func (m *mockRegistryService) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

// newParticipantRouter はParticipantHandlerだけをマウントしたchi.Routerを返す。
func newParticipantRouter(svc RegistryServiceInterface) http.Handler {
	r := chi.NewRouter()
	h := NewParticipantHandler(svc)
	r.Route("/api/participants", func(r chi.Router) {
		r.Post("/", h.Register)
		r.Get("/", h.Search)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Delete("/", h.Delete)
		})
	})
	return r
}

// --- POST /api/participants テスト ---

func TestParticipantHandler_Register_Success(t *testing.T) {
	svc := &mockRegistryService{
		registerFn: func(ctx context.Context, name, email, institute string) (*model.Participant, error) {
			if name != "Anita Desai" {
				t.Errorf("name = %q, want %q", name, "Anita Desai")
			}
			return &model.Participant{
				ID:               "BINDS-01",
				Name:             name,
				Email:            email,
				Institute:        institute,
				RegistrationDate: "29/01/2026",
			}, nil
		},
	}

	router := newParticipantRouter(svc)

	body := `{"name":"Anita Desai","email":"anita@example.edu","institute":"IISc"}`
	req := httptest.NewRequest(http.MethodPost, "/api/participants", strings.NewReader(body))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	var got participantResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.ID != "BINDS-01" {
		t.Errorf("id = %q, want %q", got.ID, "BINDS-01")
	}
	if got.RegistrationDate != "29/01/2026" {
		t.Errorf("registrationDate = %q, want %q", got.RegistrationDate, "29/01/2026")
	}
}

func TestParticipantHandler_Register_InvalidJSON_ReturnsBadRequest(t *testing.T) {
	router := newParticipantRouter(&mockRegistryService{})

	req := httptest.NewRequest(http.MethodPost, "/api/participants", strings.NewReader("{not json"))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestParticipantHandler_Register_ValidationError_ReturnsBadRequest(t *testing.T) {
	svc := &mockRegistryService{
		registerFn: func(ctx context.Context, name, email, institute string) (*model.Participant, error) {
			return nil, model.NewValidationError("氏名・メールアドレス・所属はすべて必須です")
		},
	}
	router := newParticipantRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/participants", strings.NewReader(`{"name":""}`))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	var body apiErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if body.Code != model.ErrCodeValidation {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeValidation)
	}
}

func TestParticipantHandler_Register_PersistenceFailure_Returns500(t *testing.T) {
	svc := &mockRegistryService{
		registerFn: func(ctx context.Context, name, email, institute string) (*model.Participant, error) {
			return nil, model.NewPersistenceFailedError("disk full")
		},
	}
	router := newParticipantRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/participants", strings.NewReader(`{"name":"A","email":"a@b.c","institute":"X"}`))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusInternalServerError)
	}
}

// --- GET /api/participants テスト ---

func TestParticipantHandler_Search_PassesQuery(t *testing.T) {
	svc := &mockRegistryService{
		searchFn: func(ctx context.Context, query string) ([]model.Participant, error) {
			if query != "anita" {
				t.Errorf("query = %q, want %q", query, "anita")
			}
			return []model.Participant{{ID: "BINDS-01", Name: "Anita Desai"}}, nil
		},
	}
	router := newParticipantRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/participants?q=anita", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var got []participantResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(got) != 1 || got[0].ID != "BINDS-01" {
		t.Errorf("results = %+v, want one BINDS-01", got)
	}
}

func TestParticipantHandler_Search_EmptyResult_ReturnsEmptyArray(t *testing.T) {
	svc := &mockRegistryService{
		searchFn: func(ctx context.Context, query string) ([]model.Participant, error) {
			return []model.Participant{}, nil
		},
	}
	router := newParticipantRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/participants", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	// nullではなく[]で返ること
	body := strings.TrimSpace(w.Body.String())
	if body != "[]" {
		t.Errorf("body = %q, want %q", body, "[]")
	}
}

// --- GET /api/participants/{id} テスト ---

func TestParticipantHandler_Get_NotFound(t *testing.T) {
	router := newParticipantRouter(&mockRegistryService{})

	req := httptest.NewRequest(http.MethodGet, "/api/participants/BINDS-99", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}

	var body apiErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if body.Code != model.ErrCodeParticipantNotFound {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeParticipantNotFound)
	}
}

// --- DELETE /api/participants/{id} テスト ---

func TestParticipantHandler_Delete_WithoutConfirm_Returns428(t *testing.T) {
	deleteCalled := false
	svc := &mockRegistryService{
		deleteFn: func(ctx context.Context, id string) error {
			deleteCalled = true
			return nil
		},
	}
	router := newParticipantRouter(svc)

	req := httptest.NewRequest(http.MethodDelete, "/api/participants/BINDS-01", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusPreconditionRequired {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusPreconditionRequired)
	}
	if deleteCalled {
		t.Error("Delete should not be called without confirm=true")
	}
}

func TestParticipantHandler_Delete_WithConfirm_Succeeds(t *testing.T) {
	deletedID := ""
	svc := &mockRegistryService{
		deleteFn: func(ctx context.Context, id string) error {
			deletedID = id
			return nil
		},
	}
	router := newParticipantRouter(svc)

	req := httptest.NewRequest(http.MethodDelete, "/api/participants/BINDS-01?confirm=true", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNoContent)
	}
	if deletedID != "BINDS-01" {
		t.Errorf("deleted ID = %q, want %q", deletedID, "BINDS-01")
	}
}

func TestParticipantHandler_Delete_InternalError_Returns500(t *testing.T) {
	svc := &mockRegistryService{
		deleteFn: func(ctx context.Context, id string) error {
			return errors.New("transaction failed")
		},
	}
	router := newParticipantRouter(svc)

	req := httptest.NewRequest(http.MethodDelete, "/api/participants/BINDS-01?confirm=true", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusInternalServerError)
	}
}
