// Package app はblogclientの組み立てとエントリーポイントを提供する。
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/blogclient/internal/blogapi"
	"github.com/hitoshi/blogclient/internal/config"
	"github.com/hitoshi/blogclient/internal/credential"
	"github.com/hitoshi/blogclient/internal/database"
	"github.com/hitoshi/blogclient/internal/detail"
	"github.com/hitoshi/blogclient/internal/event"
	"github.com/hitoshi/blogclient/internal/follow"
	"github.com/hitoshi/blogclient/internal/gateway"
	"github.com/hitoshi/blogclient/internal/like"
	"github.com/hitoshi/blogclient/internal/logger"
	"github.com/hitoshi/blogclient/internal/metrics"
	"github.com/hitoshi/blogclient/internal/optimistic"
	"github.com/hitoshi/blogclient/internal/preview"
	"github.com/hitoshi/blogclient/internal/repository"
	"github.com/hitoshi/blogclient/internal/session"
)

// shutdownTimeout はCookie保存などの終了処理に使う待ち時間。
const shutdownTimeout = 5 * time.Second

// Init はアプリケーションの初期化を行う。
// .envがあれば読み込み、環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, *slog.Logger, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	log := logger.SetupDefault(w, slog.LevelInfo)

	// 2. .envの読み込み。既に設定済みの環境変数は上書きしない
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn(".envの読み込みに失敗しました", slog.String("error", err.Error()))
	}

	// 3. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 4. 設定のログレベルでセットアップし直す
	log = logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))
	return cfg, log, nil
}

// App は1プロセス分の依存関係を保持する。
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	db          *sql.DB
	credentials *credential.Store
	registry    *prometheus.Registry

	bus        *event.Bus
	gateway    *gateway.Client
	api        *blogapi.API
	session    *session.Store
	controller *optimistic.Controller
	likes      *like.Service
	follows    *follow.Service
	detail     *detail.Loader
	reader     *detail.Reader
	excerpter  preview.Excerpter
}

// New は資格情報ストアを開き、全依存関係をワイヤリングする。
// SQLiteの場合はマイグレーションも適用する。PostgreSQLはmigrateコマンドで事前に適用しておく。
// 保存済みのセッションCookieはゲートウェイに読み込むが、セッションの復元はRestoreで行う。
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	driver, err := database.ParseDriver(cfg.CredentialStoreDriver)
	if err != nil {
		return nil, err
	}
	if driver == database.DriverSQLite {
		if err := database.RunMigrations(driver, cfg.CredentialStoreDSN); err != nil {
			return nil, err
		}
	}

	db, err := database.Open(driver, cfg.CredentialStoreDSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to credential store: %w", err)
	}

	a := &App{
		cfg:         cfg,
		logger:      log,
		db:          db,
		credentials: credential.NewStore(repository.NewSQLKVRepo(db, driver), log),
		registry:    prometheus.NewRegistry(),
		bus:         event.NewBus(),
		excerpter:   preview.NewExcerpter(0),
	}
	collector := metrics.NewCollector(a.registry)

	a.gateway, err = gateway.New(gateway.Options{
		BaseURL:     cfg.APIURL(),
		Timeout:     cfg.HTTPTimeout,
		Rate:        cfg.RequestRate,
		Burst:       cfg.RequestBurst,
		Credentials: a.credentials,
		Bus:         a.bus,
		Metrics:     collector,
		Logger:      log,
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	cookies, err := a.credentials.LoadCookies(ctx)
	if err != nil {
		log.Warn("保存済みCookieの読み込みに失敗しました", slog.String("error", err.Error()))
	}
	a.gateway.SetCookies(cookies)

	a.api = blogapi.New(a.gateway)
	a.session = session.NewStore(session.Options{
		Backend:        a.api,
		Credentials:    a.credentials,
		Bus:            a.bus,
		RestoreTimeout: cfg.RestoreTimeout,
		Metrics:        collector,
		Logger:         log,
	})
	a.controller = optimistic.NewController(collector)
	a.likes = like.NewService(a.api, a.controller, a.session, log)
	a.follows = follow.NewService(follow.Options{
		Backend:          a.api,
		Resolver:         follow.NewResolver(a.api, collector, log),
		Controller:       a.controller,
		Session:          a.session,
		PageSize:         cfg.FollowPageSize,
		ProbeConcurrency: cfg.FollowProbeConcurrency,
		OnChange: func(targetID int64, following bool) {
			log.Debug("フォロー状態が変わりました",
				slog.Int64("target_id", targetID),
				slog.Bool("following", following),
			)
		},
		Logger: log,
	})
	// CLIは1画面として表示中の記事を持つ。サーバーはリクエストごとに独立して取得する
	a.detail = detail.NewLoader(a.api, a.likes, log)
	a.reader = detail.NewReader(a.api, a.likes, log)

	return a, nil
}

// Restore は保存済みのログイン情報からセッションを復元する。
// 通信失敗やタイムアウトではAnonymousのまま続行できるため、警告のみ記録する。
func (a *App) Restore(ctx context.Context) {
	if err := a.session.Restore(ctx); err != nil {
		a.logger.Warn("セッションの復元に失敗しました", slog.String("error", err.Error()))
	}
}

// Close はセッションCookieを保存し、資源を解放する。
// Cookieを保存するのはログイン中の場合のみ。ログアウトや401ではレコードと一緒に
// 削除済みなので、それ以外の状態（復元の通信失敗など）では保存済みの値に触れない。
func (a *App) Close() error {
	if a.session.Current().IsAuthenticated() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.credentials.SaveCookies(ctx, a.gateway.Cookies()); err != nil {
			a.logger.Warn("Cookieの保存に失敗しました", slog.String("error", err.Error()))
		}
	}

	a.follows.Close()
	a.likes.Close()
	a.session.Close()
	return a.db.Close()
}
