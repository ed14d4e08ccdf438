package registry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/narendra-goswami/bindshub/internal/model"
	"github.com/narendra-goswami/bindshub/internal/security"
	"github.com/narendra-goswami/bindshub/internal/workshop"
)

// --- モック ---

type mockSnapshotRepo struct {
	loadFn func(ctx context.Context, key string) ([]byte, bool, error)
	saveFn func(ctx context.Context, key string, data []byte) error
}

func (m *mockSnapshotRepo) Load(ctx context.Context, key string) ([]byte, bool, error) {
	if m.loadFn != nil {
		return m.loadFn(ctx, key)
	}
	return nil, false, nil
}

func (m *mockSnapshotRepo) Save(ctx context.Context, key string, data []byte) error {
	if m.saveFn != nil {
		return m.saveFn(ctx, key, data)
	}
	return nil
}

func newTestState() *workshop.State {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return workshop.New(&mockSnapshotRepo{}, logger, nil)
}

func newTestService(state *workshop.State) *Service {
	return NewService(state, security.NewInputSanitizer(), nil)
}

// --- テスト ---

// TestService_Register_SequentialIDs は最初の3人にBINDS-01〜03が順に採番されることを検証する。
func TestService_Register_SequentialIDs(t *testing.T) {
	state := newTestState()
	svc := newTestService(state)
	ctx := context.Background()

	want := []string{"BINDS-01", "BINDS-02", "BINDS-03"}
	for i, id := range want {
		p, err := svc.Register(ctx, "Participant", "p@example.com", "Institute")
		if err != nil {
			t.Fatalf("Register #%d returned error: %v", i+1, err)
		}
		if p.ID != id {
			t.Errorf("participant #%d ID = %s, want %s", i+1, p.ID, id)
		}
	}

	snap := state.Snapshot()
	if len(snap.Participants) != 3 {
		t.Errorf("participants = %d, want 3", len(snap.Participants))
	}
	for _, id := range want {
		sessions, ok := snap.Attendance[id]
		if !ok {
			t.Errorf("attendance entry missing for %s", id)
		}
		if len(sessions) != 0 {
			t.Errorf("attendance for %s = %v, want empty", id, sessions)
		}
	}
}

// TestService_Register_Validation は不正入力が何も変更しないことを検証する。
func TestService_Register_Validation(t *testing.T) {
	tests := []struct {
		name      string
		pname     string
		email     string
		institute string
	}{
		{"empty name", "", "a@example.com", "Inst"},
		{"empty email", "Asha", "", "Inst"},
		{"empty institute", "Asha", "a@example.com", ""},
		{"whitespace only name", "   ", "a@example.com", "Inst"},
		{"email without at", "Asha", "a.example.com", "Inst"},
		{"email without tld", "Asha", "a@example", "Inst"},
		{"email with space", "Asha", "a b@example.com", "Inst"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := newTestState()
			svc := newTestService(state)

			_, err := svc.Register(context.Background(), tt.pname, tt.email, tt.institute)
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			var apiErr *model.APIError
			if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeValidation {
				t.Errorf("error = %v, want %s", err, model.ErrCodeValidation)
			}
			if got := len(state.Snapshot().Participants); got != 0 {
				t.Errorf("participants after failed register = %d, want 0", got)
			}
		})
	}
}

// TestService_Register_StripsHTML は入力からHTMLタグが除去されることを検証する。
func TestService_Register_StripsHTML(t *testing.T) {
	svc := newTestService(newTestState())

	p, err := svc.Register(context.Background(),
		"<script>alert(1)</script>Asha", "asha@example.com", "<b>APU</b>")
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if p.Name != "Asha" {
		t.Errorf("Name = %q, want %q", p.Name, "Asha")
	}
	if p.Institute != "APU" {
		t.Errorf("Institute = %q, want %q", p.Institute, "APU")
	}
}

// TestService_Register_NoReissueAfterDelete は削除後の再登録で
// 既存IDが再発行されないことを検証する。
func TestService_Register_NoReissueAfterDelete(t *testing.T) {
	state := newTestState()
	svc := newTestService(state)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := svc.Register(ctx, "P", "p@example.com", "Inst"); err != nil {
			t.Fatalf("Register returned error: %v", err)
		}
	}
	if err := svc.Delete(ctx, "BINDS-02"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}

	p, err := svc.Register(ctx, "Q", "q@example.com", "Inst")
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if p.ID != "BINDS-03" {
		t.Errorf("ID after delete = %s, want BINDS-03", p.ID)
	}
}

// TestService_Register_SaveFailureLeavesStateUnchanged は永続化失敗時に
// メモリ状態が変化しないことを検証する。
func TestService_Register_SaveFailureLeavesStateUnchanged(t *testing.T) {
	repo := &mockSnapshotRepo{
		saveFn: func(ctx context.Context, key string, data []byte) error {
			return errors.New("connection refused")
		},
	}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	state := workshop.New(repo, logger, nil)
	svc := newTestService(state)

	_, err := svc.Register(context.Background(), "Asha", "asha@example.com", "APU")
	if err == nil {
		t.Fatal("expected persistence error, got nil")
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodePersistenceFailed {
		t.Errorf("error = %v, want %s", err, model.ErrCodePersistenceFailed)
	}
	if got := len(state.Snapshot().Participants); got != 0 {
		t.Errorf("participants after failed save = %d, want 0", got)
	}
}

// TestService_Find は存在するIDと存在しないIDの両方を検証する。
func TestService_Find(t *testing.T) {
	state := newTestState()
	svc := newTestService(state)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "Asha", "asha@example.com", "APU"); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	p, err := svc.Find(ctx, "BINDS-01")
	if err != nil {
		t.Fatalf("Find returned error: %v", err)
	}
	if p == nil || p.Name != "Asha" {
		t.Errorf("Find(BINDS-01) = %v, want Asha", p)
	}

	p, err = svc.Find(ctx, "BINDS-99")
	if err != nil {
		t.Fatalf("Find returned error: %v", err)
	}
	if p != nil {
		t.Errorf("Find(BINDS-99) = %v, want nil", p)
	}
}

// TestService_Search は部分一致・大文字小文字無視・空クエリの挙動を検証する。
func TestService_Search(t *testing.T) {
	state := newTestState()
	svc := newTestService(state)
	ctx := context.Background()

	names := []string{"Asha Verma", "Ravi Kumar", "Meena Pillai"}
	for _, n := range names {
		if _, err := svc.Register(ctx, n, "p@example.com", "Inst"); err != nil {
			t.Fatalf("Register returned error: %v", err)
		}
	}

	tests := []struct {
		query string
		want  int
	}{
		{"", 3},
		{"  ", 3},
		{"asha", 1},
		{"ASHA", 1},
		{"binds-02", 1},
		{"BINDS", 3},
		{"xyz", 0},
	}
	for _, tt := range tests {
		got, err := svc.Search(ctx, tt.query)
		if err != nil {
			t.Fatalf("Search(%q) returned error: %v", tt.query, err)
		}
		if len(got) != tt.want {
			t.Errorf("Search(%q) = %d results, want %d", tt.query, len(got), tt.want)
		}
	}
}

// TestService_Delete_Cascade は削除が出欠エントリも取り除くことを検証する。
func TestService_Delete_Cascade(t *testing.T) {
	state := newTestState()
	svc := newTestService(state)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "Asha", "asha@example.com", "APU"); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	if err := svc.Delete(ctx, "BINDS-01"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}

	snap := state.Snapshot()
	if len(snap.Participants) != 0 {
		t.Errorf("participants after delete = %d, want 0", len(snap.Participants))
	}
	if _, ok := snap.Attendance["BINDS-01"]; ok {
		t.Error("attendance entry survived delete")
	}
}

// TestService_Delete_UnknownID は存在しないIDの削除がエラーにならず、
// それでも永続化が走ることを検証する。
func TestService_Delete_UnknownID(t *testing.T) {
	saveCalled := false
	repo := &mockSnapshotRepo{
		saveFn: func(ctx context.Context, key string, data []byte) error {
			saveCalled = true
			return nil
		},
	}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	state := workshop.New(repo, logger, nil)
	svc := newTestService(state)

	if err := svc.Delete(context.Background(), "BINDS-42"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if !saveCalled {
		t.Error("expected save to be called even for unknown ID")
	}
}
