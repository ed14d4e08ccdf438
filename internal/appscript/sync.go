package appscript

import (
	"context"
	"log/slog"
	"time"

	"github.com/narendra-goswami/bindshub/internal/model"
	"github.com/narendra-goswami/bindshub/internal/workshop"
)

// RecordPusher はWebhookへの1件送信を抽象化する。
// テスト時にモックに差し替え可能。
type RecordPusher interface {
	Enabled() bool
	AddParticipant(ctx context.Context, p *model.Participant) error
	AddAttendance(ctx context.Context, participantID, name, session string) error
}

// Recorder は同期結果のメトリクス記録を抽象化する。
type Recorder interface {
	RecordSyncSuccess()
	RecordSyncFailure()
}

// SyncReport は同期1回分の結果集計。
// SyncedはWebhookがsuccessを返した件数のみを数える。
type SyncReport struct {
	Total  int `json:"total"`
	Synced int `json:"synced"`
}

// Syncer は全参加者・全出欠記録をWebhookへ1件ずつ送信する。
// 呼び出しの間に固定インターバルを置く（初回の前には待たない）。
// 失敗した件の再送は行わない。
type Syncer struct {
	state    *workshop.State
	pusher   RecordPusher
	interval time.Duration
	logger   *slog.Logger
	metrics  Recorder
}

// NewSyncer はSyncerの新しいインスタンスを生成する。metricsはnilでもよい。
func NewSyncer(state *workshop.State, pusher RecordPusher, interval time.Duration, logger *slog.Logger, metrics Recorder) *Syncer {
	return &Syncer{
		state:    state,
		pusher:   pusher,
		interval: interval,
		logger:   logger,
		metrics:  metrics,
	}
}

// SyncParticipants は全参加者をWebhookへ送信する。
func (s *Syncer) SyncParticipants(ctx context.Context) (*SyncReport, error) {
	if !s.pusher.Enabled() {
		return nil, model.NewSyncDisabledError()
	}

	snap := s.state.Snapshot()
	report := &SyncReport{Total: len(snap.Participants)}

	for i := range snap.Participants {
		if err := s.pace(ctx, i); err != nil {
			return report, err
		}
		p := snap.Participants[i]
		if err := s.pusher.AddParticipant(ctx, &p); err != nil {
			s.recordFailure()
			s.logger.Warn("参加者の同期に失敗しました",
				slog.String("participant_id", p.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		s.recordSuccess()
		report.Synced++
	}

	s.logger.Info("参加者の同期が完了しました",
		slog.Int("total", report.Total),
		slog.Int("synced", report.Synced),
	)
	return report, nil
}

// SyncAttendance は全出欠記録をWebhookへ送信する。
// 参加者の登録順に、各参加者の記録済みセッションを順に送る。
func (s *Syncer) SyncAttendance(ctx context.Context) (*SyncReport, error) {
	if !s.pusher.Enabled() {
		return nil, model.NewSyncDisabledError()
	}

	snap := s.state.Snapshot()
	report := &SyncReport{}

	calls := 0
	for _, p := range snap.Participants {
		for _, session := range snap.Attendance[p.ID] {
			report.Total++
			if err := s.pace(ctx, calls); err != nil {
				return report, err
			}
			calls++
			if err := s.pusher.AddAttendance(ctx, p.ID, p.Name, session); err != nil {
				s.recordFailure()
				s.logger.Warn("出欠記録の同期に失敗しました",
					slog.String("participant_id", p.ID),
					slog.String("session", session),
					slog.String("error", err.Error()),
				)
				continue
			}
			s.recordSuccess()
			report.Synced++
		}
	}

	s.logger.Info("出欠記録の同期が完了しました",
		slog.Int("total", report.Total),
		slog.Int("synced", report.Synced),
	)
	return report, nil
}

// pace は2件目以降の呼び出し前にインターバルを置く。
func (s *Syncer) pace(ctx context.Context, callIndex int) error {
	if callIndex == 0 || s.interval <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.interval):
		return nil
	}
}

func (s *Syncer) recordSuccess() {
	if s.metrics != nil {
		s.metrics.RecordSyncSuccess()
	}
}

func (s *Syncer) recordFailure() {
	if s.metrics != nil {
		s.metrics.RecordSyncFailure()
	}
}
