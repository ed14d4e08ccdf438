// Package backup はワークショップ状態のエクスポート・インポート・全消去を提供する。
package backup

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/narendra-goswami/bindshub/internal/model"
	"github.com/narendra-goswami/bindshub/internal/workshop"
)

// SheetProvider は出欠シートの取得を抽象化する。
// CSVエクスポートは画面表示と同じシートを消費するため、両者の数値は
// 定義上一致する。
type SheetProvider interface {
	Sheet(ctx context.Context) (*model.Sheet, error)
}

// Service はバックアップ操作のサービス層。
// インポートは2段階で、ステージングされたデータはトークンで確定するまで
// 状態に触れない。確定されなかったステージングはTTLで自然消滅する。
type Service struct {
	state        *workshop.State
	sheets       SheetProvider
	staging      *gocache.Cache
	workshopName string
	logger       *slog.Logger
	now          func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(state *workshop.State, sheets SheetProvider, stagingTTL time.Duration, workshopName string, logger *slog.Logger) *Service {
	return &Service{
		state:        state,
		sheets:       sheets,
		staging:      gocache.New(stagingTTL, stagingTTL),
		workshopName: workshopName,
		logger:       logger,
		now:          time.Now,
	}
}

// ExportJSON は状態全体をバックアップJSONとして書き出す。
// 戻り値はデータとダウンロードファイル名。
func (s *Service) ExportJSON(ctx context.Context) ([]byte, string, error) {
	snap := s.state.Snapshot()

	b := model.Backup{
		ExportDate:   s.now().Format("02/01/2006, 15:04:05"),
		WorkshopName: s.workshopName,
		Participants: snap.Participants,
		Attendance:   snap.Attendance,
	}
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return nil, "", fmt.Errorf("バックアップの構築に失敗しました: %w", err)
	}

	filename := fmt.Sprintf("BINDS_Backup_%s.json", s.now().Format("2006-01-02"))
	return data, filename, nil
}

// ExportCSV は出欠シートをCSVとして書き出す。
func (s *Service) ExportCSV(ctx context.Context) ([]byte, string, error) {
	sheet, err := s.sheets.Sheet(ctx)
	if err != nil {
		return nil, "", err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"Participant ID", "Name", "Email", "Institute"}
	header = append(header, sheet.Sessions...)
	header = append(header, "Total Sessions")
	if err := w.Write(header); err != nil {
		return nil, "", fmt.Errorf("CSVヘッダの書き出しに失敗しました: %w", err)
	}

	for _, row := range sheet.Rows {
		record := []string{row.ParticipantID, row.Name, row.Email, row.Institute}
		for _, attended := range row.Attended {
			if attended {
				record = append(record, "1")
			} else {
				record = append(record, "0")
			}
		}
		record = append(record, fmt.Sprintf("%d", row.Total))
		if err := w.Write(record); err != nil {
			return nil, "", fmt.Errorf("CSV行の書き出しに失敗しました: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, "", fmt.Errorf("CSVの書き出しに失敗しました: %w", err)
	}

	filename := fmt.Sprintf("BINDS_Attendance_%s.csv", s.now().Format("2006-01-02"))
	return buf.Bytes(), filename, nil
}

// StageImport はバックアップJSONを検証してステージングする。
// 状態はまだ変更されない。戻り値は確定用トークンと取り込み予定の参加者数。
// participants と attendance の両キーを持たないデータは拒否される。
func (s *Service) StageImport(ctx context.Context, raw []byte) (string, int, error) {
	var incoming struct {
		Participants *[]model.Participant `json:"participants"`
		Attendance   *map[string][]string `json:"attendance"`
	}
	if err := json.Unmarshal(raw, &incoming); err != nil {
		return "", 0, model.NewImportFormatError(err.Error())
	}
	if incoming.Participants == nil || incoming.Attendance == nil {
		return "", 0, model.NewImportFormatError("participants と attendance の両方が必要です")
	}

	snap := &model.Snapshot{
		Participants: *incoming.Participants,
		Attendance:   *incoming.Attendance,
	}
	snap.Normalize()

	token := uuid.NewString()
	s.staging.SetDefault(token, snap)

	s.logger.Info("import staged",
		slog.String("token", token),
		slog.Int("participants", len(snap.Participants)),
	)
	return token, len(snap.Participants), nil
}

// ConfirmImport はステージング済みデータで状態全体を置き換える。
// マージは行わない。トークンが見つからない（期限切れ含む）場合は
// ImportNotFoundを返す。戻り値は取り込んだ参加者数。
func (s *Service) ConfirmImport(ctx context.Context, token string) (int, error) {
	v, found := s.staging.Get(token)
	if !found {
		return 0, model.NewImportNotFoundError(token)
	}
	snap := v.(*model.Snapshot)

	if err := s.state.Replace(ctx, snap); err != nil {
		return 0, err
	}
	s.staging.Delete(token)

	s.logger.Info("import confirmed",
		slog.String("token", token),
		slog.Int("participants", len(snap.Participants)),
	)
	return len(snap.Participants), nil
}

// ClearAll は状態を空の初期形に置き換えて永続化する。
func (s *Service) ClearAll(ctx context.Context) error {
	if err := s.state.Replace(ctx, model.NewSnapshot()); err != nil {
		return err
	}
	s.logger.Info("all workshop data cleared")
	return nil
}
