package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/narendra-goswami/bindshub/internal/appscript"
	"github.com/narendra-goswami/bindshub/internal/attendance"
	"github.com/narendra-goswami/bindshub/internal/backup"
	"github.com/narendra-goswami/bindshub/internal/config"
	"github.com/narendra-goswami/bindshub/internal/database"
	"github.com/narendra-goswami/bindshub/internal/handler"
	"github.com/narendra-goswami/bindshub/internal/idcard"
	"github.com/narendra-goswami/bindshub/internal/logger"
	"github.com/narendra-goswami/bindshub/internal/metrics"
	"github.com/narendra-goswami/bindshub/internal/middleware"
	"github.com/narendra-goswami/bindshub/internal/registry"
	"github.com/narendra-goswami/bindshub/internal/repository"
	"github.com/narendra-goswami/bindshub/internal/scan"
	"github.com/narendra-goswami/bindshub/internal/security"
	"github.com/narendra-goswami/bindshub/internal/workshop"
	"github.com/narendra-goswami/bindshub/internal/worker/autosync"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.Bool("sync_enabled", cfg.SyncEnabled()),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandScan:
		return runScan(cfg, args[1:])
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリとメトリクスの初期化
	snapshotRepo := repository.NewPostgresSnapshotRepo(db)
	promRegistry := prometheus.NewRegistry()
	collector := metrics.NewCollector(promRegistry)

	// 3. ワークショップ状態のロード
	state := workshop.New(snapshotRepo, slog.Default(), collector)
	if err := state.Load(context.Background()); err != nil {
		return fmt.Errorf("failed to load workshop state: %w", err)
	}

	// 4. セキュリティサービスの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewInputSanitizer()

	// 5. ドメインサービスの初期化
	registryService := registry.NewService(state, sanitizer, collector)
	attendanceService := attendance.NewService(state, collector)
	backupService := backup.NewService(state, attendanceService, cfg.ImportStagingTTL, cfg.WorkshopName, slog.Default())

	// 6. IDカード生成の初期化
	encoder := idcard.NewQREncoder()
	composer, err := idcard.NewComposer(
		encoder,
		idcard.Branding{
			Title:   cfg.EventTitle,
			Dates:   cfg.EventDates,
			Venue:   cfg.EventVenue,
			LogoURL: cfg.LogoURL,
		},
		ssrfGuard.NewSafeClient(cfg.LogoFetchTimeout),
		slog.Default(),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize card composer: %w", err)
	}

	// 7. スプレッドシート同期の初期化
	pusher := appscript.NewClient(
		ssrfGuard.NewSafeClient(10*time.Second),
		slog.Default(),
		cfg.WebhookURL,
	)
	syncer := appscript.NewSyncer(state, pusher, cfg.SyncAPIInterval, slog.Default(), collector)

	// 8. ルーターの構築
	// configのレート上限はreq/min単位なのでreq/secに変換する
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GeneralRate:       rate.Limit(float64(cfg.RateLimitGeneral) / 60.0),
		GeneralBurst:      cfg.RateLimitGeneral,
		RegistrationRate:  rate.Limit(float64(cfg.RateLimitRegistration) / 60.0),
		RegistrationBurst: cfg.RateLimitRegistration,
		CleanupInterval:   5 * time.Minute,
	})
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		APIToken:          cfg.APIToken,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),

		RegistryService: registryService,
		CardComposer:    composer,
		QREncoder:       encoder,
		CardMetrics:     collector,

		AttendanceService: attendanceService,
		BackupService:     backupService,
		SyncService:       syncer,

		DB:       db,
		Gatherer: promRegistry,
	})

	// 9. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、自動同期ジョブを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	if !cfg.SyncEnabled() {
		return fmt.Errorf("worker requires WEBHOOK_URL to be set")
	}

	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. ワークショップ状態のロード
	snapshotRepo := repository.NewPostgresSnapshotRepo(db)
	state := workshop.New(snapshotRepo, slog.Default(), nil)
	if err := state.Load(context.Background()); err != nil {
		return fmt.Errorf("failed to load workshop state: %w", err)
	}

	// 3. 同期ジョブの初期化
	ssrfGuard := security.NewSSRFGuard()
	pusher := appscript.NewClient(
		ssrfGuard.NewSafeClient(10*time.Second),
		slog.Default(),
		cfg.WebhookURL,
	)
	syncer := appscript.NewSyncer(state, pusher, cfg.SyncAPIInterval, slog.Default(), nil)
	job := autosync.NewJob(syncer, cfg.AutoSyncInterval, slog.Default())

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("auto_sync_interval", cfg.AutoSyncInterval),
	)

	// 自動同期ジョブをメインgoroutineで実行（ブロッキング）
	job.Start(ctx)

	slog.Info("worker stopped gracefully")
	return nil
}

// runScan はスキャンモードで起動する。
// 標準入力をスキャナー入力として扱い、1行ごとに参加者IDとして
// 指定セッションへの出欠を記録する。EOFまたはシグナルで終了する。
func runScan(cfg *config.Config, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("scan requires a session argument (e.g. Day1-Morning)")
	}
	session := args[0]

	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// 2. ワークショップ状態のロード
	snapshotRepo := repository.NewPostgresSnapshotRepo(db)
	state := workshop.New(snapshotRepo, slog.Default(), nil)
	if err := state.Load(context.Background()); err != nil {
		return fmt.Errorf("failed to load workshop state: %w", err)
	}

	attendanceService := attendance.NewService(state, nil)

	// 3. スキャンコントローラの構築
	outcomes := make(chan scan.Outcome, 1)
	stream := scan.NewReaderStream(os.Stdin)
	controller := scan.NewController(stream, attendanceService, func(o scan.Outcome) {
		outcomes <- o
	}, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	slog.Info("scan mode started", slog.String("session", session))

	// 1回のStartで1件処理されるため、待機へ戻るたびに再開する
	for {
		if err := controller.Start(ctx, session); err != nil {
			return err
		}

		select {
		case <-stop:
			controller.Stop()
			slog.Info("scan mode stopped")
			return nil
		case <-stream.Done():
			controller.Stop()
			slog.Info("scanner input closed, exiting scan mode")
			return nil
		case o := <-outcomes:
			logOutcome(o)
		}

		waitForIdle(controller)
	}
}

// logOutcome はスキャン1件分の結果をログに出力する。
func logOutcome(o scan.Outcome) {
	if o.Err != nil {
		slog.Error("出欠の記録に失敗しました", slog.String("error", o.Err.Error()))
		return
	}
	attrs := []any{
		slog.String("result", string(o.Result)),
		slog.String("session", o.Session),
	}
	if o.Participant != nil {
		attrs = append(attrs,
			slog.String("participant_id", o.Participant.ID),
			slog.String("name", o.Participant.Name),
		)
	}
	slog.Info("スキャン結果", attrs...)
}

// waitForIdle はコントローラが待機状態へ戻るのを待つ。
// 結果通知の直後、コントローラは非同期に待機へ遷移する。
func waitForIdle(c *scan.Controller) {
	for c.State() != scan.StateIdle {
		time.Sleep(5 * time.Millisecond)
	}
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
