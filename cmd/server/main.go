package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	_ "github.com/lib/pq"

	"github.com/example/uniride/internal/config"
	"github.com/example/uniride/internal/dispatch"
	httpapi "github.com/example/uniride/internal/http"
	"github.com/example/uniride/internal/identity"
	"github.com/example/uniride/internal/ingest"
	"github.com/example/uniride/internal/kvstore"
	"github.com/example/uniride/internal/leaderboard"
	"github.com/example/uniride/internal/logging"
	"github.com/example/uniride/internal/ratings"
	"github.com/example/uniride/internal/rides"
	"github.com/example/uniride/internal/storage"
)

func main() {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		logging.NewLogger("info").Error("config load failed", "error", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// KV: Redis when configured, in-memory otherwise so the binary runs
	// without any backing services.
	var kv kvstore.KV
	if cfg.RedisAddr != "" {
		rkv := kvstore.NewRedisKV(cfg.RedisAddr, cfg.RedisPassword)
		if err := rkv.Ping(ctx); err != nil {
			logger.Error("redis unreachable", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		defer rkv.Close()
		kv = rkv
	} else {
		logger.Warn("REDIS_ADDR not set, using in-memory store")
		kv = kvstore.NewMemoryKV()
	}

	var provider identity.Provider
	if cfg.FirebaseProjectID != "" {
		provider, err = identity.NewFirebaseProvider(ctx, cfg.FirebaseProjectID, cfg.FirebaseCredentialsFile)
		if err != nil {
			logger.Error("identity provider init failed", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("FIREBASE_PROJECT_ID not set, using HS256 dev tokens")
		provider = identity.NewJWTProvider(cfg.JWTSecret)
	}

	var producer *ingest.KafkaProducer
	if len(cfg.KafkaBrokers) > 0 {
		producer = ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
	}

	var archive storage.RatingArchive
	if cfg.PGDSN != "" {
		if cfg.RunMigrations {
			runMigrations(cfg.PGDSN, logger)
		}
		pg, err := storage.NewPostgresArchive(cfg.PGDSN)
		if err != nil {
			logger.Error("rating archive unavailable", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		archive = pg
	}

	wsreg := dispatch.NewWSRegistry()
	notifiers := []dispatch.Notifier{wsreg}
	if cfg.FCMEndpoint != "" {
		notifiers = append(notifiers, dispatch.NewFCMNotifier(cfg.FCMEndpoint, cfg.FCMKey))
	}
	notify := dispatch.NewFanout(notifiers...)

	rideSvc := rides.NewService(kv, eventsOrNil(producer), notify, logger)
	rideSvc.DailyLimit = cfg.DailyRequestLimit
	ratingSvc := ratings.NewService(kv, archive, eventsOrNil(producer), logger)
	boardSvc := leaderboard.NewService(kv, cfg.LeaderboardSize, cfg.SnapshotTTL)

	api := httpapi.NewServer(httpapi.Deps{
		KV:                 kv,
		Identity:           provider,
		Rides:              rideSvc,
		Ratings:            ratingSvc,
		Leaderboard:        boardSvc,
		WSReg:              wsreg,
		AllowedEmailDomain: cfg.AllowedEmailDomain,
		Logger:             logger,
	})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		logger.Info("uniride api listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

// eventsOrNil keeps a typed-nil *KafkaProducer from sneaking into the
// Publisher interfaces.
func eventsOrNil(p *ingest.KafkaProducer) rides.Publisher {
	if p == nil {
		return nil
	}
	return p
}

func runMigrations(dsn string, logger interface{ Error(string, ...any) }) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		logger.Error("migration db open error", "error", err)
		return
	}
	defer db.Close()
	b, err := os.ReadFile(filepath.Join("migrations", "001_create_ratings.sql"))
	if err != nil {
		logger.Error("migration read error", "error", err)
		return
	}
	if _, err := db.Exec(string(b)); err != nil {
		logger.Error("migration exec error", "error", err)
	}
}
