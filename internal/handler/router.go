package handler

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/narendra-goswami/bindshub/internal/idcard"
	"github.com/narendra-goswami/bindshub/internal/metrics"
	"github.com/narendra-goswami/bindshub/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	CORSAllowedOrigin string
	APIToken          string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// 参加者・IDカード
	RegistryService RegistryServiceInterface
	CardComposer    CardComposerInterface
	QREncoder       idcard.Encoder
	CardMetrics     CardRenderRecorder

	// 出欠
	AttendanceService AttendanceServiceInterface

	// バックアップ
	BackupService BackupServiceInterface

	// 同期
	SyncService SyncServiceInterface

	// ヘルスチェック・メトリクス
	DB       *sql.DB
	Gatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → SecurityHeaders → Logging → Recovery → Auth → RateLimit(General)
//
// /health と /metrics は認証・レート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// CORS ミドルウェアを最上位に適用（全ルートに効く）
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}
	r.Use(middleware.NewRecoveryMiddleware())

	participantHandler := NewParticipantHandler(deps.RegistryService)
	cardHandler := NewCardHandler(deps.RegistryService, deps.CardComposer, deps.QREncoder, deps.CardMetrics)
	attendanceHandler := NewAttendanceHandler(deps.AttendanceService)
	backupHandler := NewBackupHandler(deps.BackupService)
	syncHandler := NewSyncHandler(deps.SyncService)

	// --- 認証不要のルート ---

	r.Get("/health", newHealthHandler(deps.DB))
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.APIToken))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 参加者管理
		r.Route("/api/participants", func(r chi.Router) {
			// POST /api/participants - 参加者登録（登録専用レート制限を追加）
			r.With(deps.RateLimiter.RegistrationMiddleware()).Post("/", participantHandler.Register)
			r.Get("/", participantHandler.Search)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", participantHandler.Get)
				r.Delete("/", participantHandler.Delete)

				// IDカード
				r.Get("/card", cardHandler.Download)
				r.Get("/card/preview", cardHandler.Preview)
			})
		})

		// 出欠管理
		r.Route("/api/attendance", func(r chi.Router) {
			r.Post("/mark", attendanceHandler.Mark)
			r.Get("/sheet", attendanceHandler.Sheet)
			r.Get("/sessions", attendanceHandler.Sessions)
			r.Get("/stats", attendanceHandler.Stats)
		})

		// バックアップ
		r.Route("/api/backup", func(r chi.Router) {
			r.Get("/export", backupHandler.ExportJSON)
			r.Get("/export.csv", backupHandler.ExportCSV)
			r.Post("/import", backupHandler.StageImport)
			r.Post("/import/{token}/confirm", backupHandler.ConfirmImport)
			r.Post("/clear", backupHandler.ClearAll)
		})

		// スプレッドシート同期
		r.Route("/api/sync", func(r chi.Router) {
			r.Post("/participants", syncHandler.SyncParticipants)
			r.Post("/attendance", syncHandler.SyncAttendance)
		})
	})

	return r
}

// newHealthHandler はDB疎通を確認するヘルスチェックハンドラーを返す。
// DBがnilの場合は疎通確認を省略してokを返す。
func newHealthHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
