// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層とハンドラー層から利用する。
type MetricsCollector interface {
	RecordRegistration()
	RecordDeletion()
	RecordMark()
	RecordDuplicateMark()
	RecordSyncSuccess()
	RecordSyncFailure()
	RecordSnapshotSaveFailure()
	RecordCardRendered()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	registrations    prometheus.Counter
	deletions        prometheus.Counter
	marks            prometheus.Counter
	duplicateMarks   prometheus.Counter
	syncSuccess      prometheus.Counter
	syncFailure      prometheus.Counter
	snapshotSaveFail prometheus.Counter
	cardsRendered    prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bindshub_registrations_total",
			Help: "参加者登録の合計数",
		}),
		deletions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bindshub_deletions_total",
			Help: "参加者削除の合計数",
		}),
		marks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bindshub_attendance_marks_total",
			Help: "出欠マーク成功の合計数",
		}),
		duplicateMarks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bindshub_attendance_duplicate_marks_total",
			Help: "マーク済みセッションへの再マーク試行の合計数",
		}),
		syncSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bindshub_sync_success_total",
			Help: "Webhook同期成功の合計数（レコード単位）",
		}),
		syncFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bindshub_sync_failure_total",
			Help: "Webhook同期失敗の合計数（レコード単位）",
		}),
		snapshotSaveFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bindshub_snapshot_save_failures_total",
			Help: "スナップショット保存失敗の合計数",
		}),
		cardsRendered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bindshub_cards_rendered_total",
			Help: "生成されたIDカードの合計数",
		}),
	}

	reg.MustRegister(
		c.registrations,
		c.deletions,
		c.marks,
		c.duplicateMarks,
		c.syncSuccess,
		c.syncFailure,
		c.snapshotSaveFail,
		c.cardsRendered,
	)

	return c
}

// RecordRegistration は参加者登録を記録する。
func (c *Collector) RecordRegistration() {
	c.registrations.Inc()
}

// RecordDeletion は参加者削除を記録する。
func (c *Collector) RecordDeletion() {
	c.deletions.Inc()
}

// RecordMark は出欠マーク成功を記録する。
func (c *Collector) RecordMark() {
	c.marks.Inc()
}

// RecordDuplicateMark はマーク済みセッションへの再マーク試行を記録する。
func (c *Collector) RecordDuplicateMark() {
	c.duplicateMarks.Inc()
}

// RecordSyncSuccess はWebhook同期成功を記録する。
func (c *Collector) RecordSyncSuccess() {
	c.syncSuccess.Inc()
}

// RecordSyncFailure はWebhook同期失敗を記録する。
func (c *Collector) RecordSyncFailure() {
	c.syncFailure.Inc()
}

// RecordSnapshotSaveFailure はスナップショット保存失敗を記録する。
func (c *Collector) RecordSnapshotSaveFailure() {
	c.snapshotSaveFail.Inc()
}

// RecordCardRendered はIDカード生成を記録する。
func (c *Collector) RecordCardRendered() {
	c.cardsRendered.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
