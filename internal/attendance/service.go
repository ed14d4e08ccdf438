// Package attendance は出欠記録のドメインロジックを提供する。
package attendance

import (
	"context"
	"errors"
	"log/slog"

	"github.com/narendra-goswami/bindshub/internal/model"
	"github.com/narendra-goswami/bindshub/internal/workshop"
)

// errAlreadyMarked はマーク済みのため変更・永続化を行わずに
// 更新を打ち切るための内部センチネル。
var errAlreadyMarked = errors.New("already marked")

// Recorder は出欠マークのメトリクス記録を抽象化する。
type Recorder interface {
	RecordMark()
	RecordDuplicateMark()
}

// Service は出欠記録のサービス層。
// マーク操作の冪等性と、シート・統計の導出を提供する。
type Service struct {
	state   *workshop.State
	metrics Recorder
}

// NewService はServiceの新しいインスタンスを生成する。metricsはnilでもよい。
func NewService(state *workshop.State, metrics Recorder) *Service {
	return &Service{state: state, metrics: metrics}
}

// Mark は参加者の指定セッションへの出欠を記録する。
// ガードは宣言順に評価される: セッション未選択、未定義セッション、
// 参加者未検出、マーク済み。マーク済みの場合は変更も永続化も行わない。
// 成功・マーク済みの場合は対象参加者も返す。
func (s *Service) Mark(ctx context.Context, participantID, session string) (model.MarkResult, *model.Participant, error) {
	if session == "" {
		return model.MarkResultNoSessionSelected, nil, model.NewNoSessionSelectedError()
	}
	if !model.IsValidSession(session) {
		return model.MarkResultNoSessionSelected, nil, model.NewInvalidSessionError(session)
	}

	var result model.MarkResult
	var marked *model.Participant
	err := s.state.Update(ctx, func(snap *model.Snapshot) error {
		p := snap.FindParticipant(participantID)
		if p == nil {
			result = model.MarkResultParticipantNotFound
			return model.NewParticipantNotFoundError(participantID)
		}
		marked = p

		for _, recorded := range snap.Attendance[participantID] {
			if recorded == session {
				result = model.MarkResultAlreadyMarked
				return errAlreadyMarked
			}
		}

		snap.Attendance[participantID] = append(snap.Attendance[participantID], session)
		result = model.MarkResultMarked
		return nil
	})
	if err != nil && !errors.Is(err, errAlreadyMarked) {
		if result == model.MarkResultParticipantNotFound {
			return result, nil, err
		}
		return "", nil, err
	}

	switch result {
	case model.MarkResultMarked:
		if s.metrics != nil {
			s.metrics.RecordMark()
		}
		slog.Info("attendance marked",
			slog.String("participant_id", participantID),
			slog.String("session", session),
		)
	case model.MarkResultAlreadyMarked:
		if s.metrics != nil {
			s.metrics.RecordDuplicateMark()
		}
	}

	return result, marked, nil
}

// TotalsFor は参加者の出席セッション数を返す。
// キャッシュせず、常に現在の状態から数える。
func (s *Service) TotalsFor(ctx context.Context, participantID string) (int, error) {
	snap := s.state.Snapshot()
	if snap.FindParticipant(participantID) == nil {
		return 0, model.NewParticipantNotFoundError(participantID)
	}
	return len(snap.Attendance[participantID]), nil
}

// Sheet は全参加者×固定6セッションの出欠グリッドを構築する。
// CSVエクスポートも同じグリッドを消費する。
func (s *Service) Sheet(ctx context.Context) (*model.Sheet, error) {
	snap := s.state.Snapshot()

	sheet := &model.Sheet{
		Sessions:      model.Sessions,
		Rows:          make([]model.SheetRow, 0, len(snap.Participants)),
		SessionTotals: make([]int, len(model.Sessions)),
	}

	for _, p := range snap.Participants {
		attended := make([]bool, len(model.Sessions))
		total := 0
		for i, session := range model.Sessions {
			for _, recorded := range snap.Attendance[p.ID] {
				if recorded == session {
					attended[i] = true
					total++
					sheet.SessionTotals[i]++
					break
				}
			}
		}
		sheet.Rows = append(sheet.Rows, model.SheetRow{
			ParticipantID: p.ID,
			Name:          p.Name,
			Email:         p.Email,
			Institute:     p.Institute,
			Attended:      attended,
			Total:         total,
		})
	}

	return sheet, nil
}

// Stats はホーム画面向けの集計値を返す。
func (s *Service) Stats(ctx context.Context) (*model.Stats, error) {
	snap := s.state.Snapshot()

	stats := &model.Stats{
		TotalParticipants: len(snap.Participants),
		SessionCounts:     map[string]int{},
	}
	for _, session := range model.Sessions {
		stats.SessionCounts[session] = 0
	}

	for _, p := range snap.Participants {
		sessions := snap.Attendance[p.ID]
		if len(sessions) > 0 {
			stats.CheckedIn++
		}
		for _, session := range sessions {
			if model.IsValidSession(session) {
				stats.SessionCounts[session]++
			}
		}
	}

	return stats, nil
}
