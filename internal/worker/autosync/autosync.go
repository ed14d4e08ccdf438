// Package autosync はWebhookへの定期的な全件再同期ジョブを提供する。
// スプレッドシート側のスクリプトはレコード単位で冪等であることを前提に、
// 毎サイクル参加者と出欠記録の全件を送り直す。
package autosync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/narendra-goswami/bindshub/internal/appscript"
)

// Syncer は全件同期の実行を抽象化する。テスト時にモックに差し替え可能。
type Syncer interface {
	SyncParticipants(ctx context.Context) (*appscript.SyncReport, error)
	SyncAttendance(ctx context.Context) (*appscript.SyncReport, error)
}

// Job は自動同期の定期実行ジョブ。
// 連続エラー時はバックオフを適用してWebhook側への負荷を抑える。
type Job struct {
	syncer            Syncer
	interval          time.Duration
	logger            *slog.Logger
	consecutiveErrors int
	backoffUntil      time.Time
}

// NewJob はJobの新しいインスタンスを生成する。
func NewJob(syncer Syncer, interval time.Duration, logger *slog.Logger) *Job {
	return &Job{
		syncer:   syncer,
		interval: interval,
		logger:   logger,
	}
}

// Start はジョブをティッカーで定期実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *Job) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Info("自動同期ジョブを開始しました",
		slog.Duration("interval", j.interval),
	)

	// 起動直後に1回実行
	if err := j.RunOnce(ctx); err != nil {
		j.logger.Error("自動同期サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("自動同期ジョブを停止しました")
			return
		case <-ticker.C:
			if err := j.RunOnce(ctx); err != nil {
				j.logger.Error("自動同期サイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は1回の同期サイクルを実行する。
// 参加者、出欠記録の順に全件を送信する。
func (j *Job) RunOnce(ctx context.Context) error {
	start := time.Now()

	// バックオフ中の場合はスキップ
	if !j.backoffUntil.IsZero() && time.Now().Before(j.backoffUntil) {
		j.logger.Info("自動同期はバックオフ中のためスキップします",
			slog.Time("backoff_until", j.backoffUntil),
		)
		return nil
	}

	pReport, pErr := j.syncer.SyncParticipants(ctx)
	if pErr != nil {
		return j.recordError(fmt.Errorf("参加者の同期に失敗しました: %w", pErr))
	}

	aReport, aErr := j.syncer.SyncAttendance(ctx)
	if aErr != nil {
		return j.recordError(fmt.Errorf("出欠記録の同期に失敗しました: %w", aErr))
	}

	j.consecutiveErrors = 0
	j.backoffUntil = time.Time{}

	duration := time.Since(start)
	j.logger.Info("自動同期サイクルが完了しました",
		slog.Int("participants_synced", pReport.Synced),
		slog.Int("participants_total", pReport.Total),
		slog.Int("attendance_synced", aReport.Synced),
		slog.Int("attendance_total", aReport.Total),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)
	return nil
}

// recordError は連続エラーを数え、しきい値に応じてバックオフを設定する。
func (j *Job) recordError(err error) error {
	j.consecutiveErrors++
	backoff := calculateErrorBackoff(j.consecutiveErrors)
	if backoff > 0 {
		j.backoffUntil = time.Now().Add(backoff)
		j.logger.Warn("連続エラーによりバックオフを適用します",
			slog.Int("consecutive_errors", j.consecutiveErrors),
			slog.Duration("backoff_duration", backoff),
		)
	}
	return err
}

// calculateErrorBackoff は連続エラー回数に基づくバックオフ時間を計算する。
// 3回連続: 30分、5回連続: 1時間、10回連続: 6時間。
func calculateErrorBackoff(consecutiveErrors int) time.Duration {
	switch {
	case consecutiveErrors >= 10:
		return 6 * time.Hour
	case consecutiveErrors >= 5:
		return 1 * time.Hour
	case consecutiveErrors >= 3:
		return 30 * time.Minute
	default:
		return 0
	}
}
