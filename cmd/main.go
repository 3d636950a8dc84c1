package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"fee-ledger/internal/clients"
	"fee-ledger/internal/config"
	"fee-ledger/internal/repository"
	"fee-ledger/internal/service"
	"fee-ledger/internal/transport/auth"
	"fee-ledger/internal/transport/rest"
	"fee-ledger/internal/transport/websocket"
	"fee-ledger/pkg/database/postgres"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using system env or defaults")
	}

	// top-level context which we can cancel on shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cfg := config.Load()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("data dir init error: %v", err)
	}

	var db *sql.DB
	var records service.FeeRecordRepository
	switch cfg.RecordStore {
	case "postgres":
		db = mustInitPostgres(cfg.Postgres)
		pgRecords := repository.NewPostgresFeeRecordRepository(db)
		if err := pgRecords.Migrate(ctx); err != nil {
			log.Fatalf("postgres migrate error: %v", err)
		}
		records = pgRecords
	case "csv":
		records = repository.NewFeeRecordRepository(filepath.Join(cfg.DataDir, "fee_records.csv"))
	default:
		log.Fatalf("unknown RECORD_STORE %q", cfg.RecordStore)
	}

	var sessionRepo service.SessionRepository = repository.NewMemorySessionRepository()
	var exportStatuses service.ExportStatusRepository = repository.NewMemoryExportStatusRepository()
	var redisClient *clients.RedisClient
	if cfg.Redis.Enabled {
		redisClient = mustInitRedis(cfg.Redis)
		sessionRepo = repository.NewRedisSessionRepository(redisClient)
		exportStatuses = repository.NewRedisExportStatusRepository(redisClient)
	}

	// Local storage is always set up so /files can serve what it holds.
	storageClient, err := clients.NewLocalStorage(cfg.ExportDir, cfg.FilesPublicPrefix, cfg.ExternalURL)
	if err != nil {
		log.Fatalf("storage init error: %v", err)
	}
	var exportStorage service.ExportStorage = storageClient
	cleanup := func(ctx context.Context) (int, error) {
		return storageClient.CleanupOlderThan(cfg.ExportRetention)
	}
	if cfg.ExportStorage == "s3" {
		s3Client := mustInitS3(ctx, cfg.S3)
		exportStorage = s3Client
		cleanup = func(ctx context.Context) (int, error) {
			return s3Client.CleanupOlderThan(ctx, cfg.ExportRetention)
		}
	}

	wsHub := websocket.NewHub()
	go wsHub.Run(ctx)
	wsClient := clients.NewWebSocketClient(wsHub)

	accountSvc := service.NewAccountService(repository.NewAccountRepository(filepath.Join(cfg.DataDir, "users.json")))
	sessionSvc := service.NewSessionService(accountSvc, sessionRepo, cfg.SessionTTL)
	statusSvc := service.NewStatusService(records)
	scheduleSvc := service.NewScheduleService(repository.NewFeeScheduleRepository(filepath.Join(cfg.DataDir, "student_fees.json")))
	entrySvc := service.NewEntryService(records, statusSvc, scheduleSvc, wsClient)
	reportSvc := service.NewReportService(records)
	exportSvc := service.NewExportService(reportSvc, exportStatuses, exportStorage, wsClient)

	handler := rest.NewHandler(rest.Services{
		Accounts:  accountSvc,
		Sessions:  sessionSvc,
		Status:    statusSvc,
		Schedules: scheduleSvc,
		Entries:   entrySvc,
		Reports:   reportSvc,
		Exports:   exportSvc,
		Files:     storageClient,
		Hub:       wsHub,
	}, cfg.AllowAdminSignup)
	router := handler.InitRouterWithAuth(auth.SessionMiddleware(sessionSvc))

	scheduler := startCleanup(cfg.CleanupSchedule, cleanup, sessionSvc)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      withCORS(router),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Run HTTP server in goroutine so we can listen for shutdown signals
	srvErr := make(chan error, 1)
	go func() {
		log.Printf("HTTP server listening on :%s (records=%s, exports=%s, redis=%t)\n",
			cfg.Port, cfg.RecordStore, cfg.ExportStorage, cfg.Redis.Enabled)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			srvErr <- err
			return
		}
		srvErr <- nil
	}()

	// Listen for OS shutdown signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-srvErr:
		if err != nil {
			log.Fatalf("HTTP server error: %v", err)
		}
	case sig := <-stop:
		log.Printf("Shutdown signal received: %v", sig)

		// Give server up to 10 seconds to finish ongoing requests
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server Shutdown error: %v", err)
		}

		<-scheduler.Stop().Done()
		exportSvc.Wait()

		// Cancel top-level context so background services (websocket hub) stop
		cancel()

		if db != nil {
			postgres.Close(db)
		}
		if redisClient != nil {
			redisClient.Close()
		}

		log.Println("Shutdown complete")
	}
}

func mustInitPostgres(cfg config.PostgresConfig) *sql.DB {
	db, err := postgres.NewPostgresConnection(postgres.ConnectionInfo{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.User,
		DBName:   cfg.DBName,
		SSLMode:  cfg.SSLMode,
		Password: cfg.Password,
	})
	if err != nil {
		log.Fatalf("postgres init error: %v", err)
	}
	return db
}

func mustInitRedis(cfg config.RedisConfig) *clients.RedisClient {
	client, err := clients.NewRedisClient(clients.RedisConfig{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		MaxRetries:  cfg.MaxRetries,
		DialTimeout: time.Duration(cfg.DialTimeout) * time.Second,
		Timeout:     time.Duration(cfg.Timeout) * time.Second,
		Prefix:      cfg.Prefix,
	})
	if err != nil {
		log.Fatalf("redis init error: %v", err)
	}
	return client
}

func mustInitS3(ctx context.Context, cfg config.S3Config) *clients.S3Client {
	client, err := clients.NewS3Client(ctx, clients.S3Config{
		Endpoint:        cfg.Endpoint,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
		Bucket:          cfg.Bucket,
		UseSSL:          cfg.UseSSL,
		Region:          cfg.Region,
		Prefix:          cfg.Prefix,
		URLExpiry:       cfg.URLExpiry,
	})
	if err != nil {
		log.Fatalf("s3 init error: %v", err)
	}
	return client
}

// startCleanup schedules removal of old export files and expired sessions.
func startCleanup(schedule string, cleanupExports func(context.Context) (int, error), sessions *service.SessionService) *cron.Cron {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))

	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 4*time.Minute)
		defer cancel()

		if n, err := cleanupExports(ctx); err != nil {
			log.Printf("[EXPORT] cleanup error: %v", err)
		} else if n > 0 {
			log.Printf("[EXPORT] cleanup removed %d files", n)
		}

		if n, err := sessions.PruneExpired(ctx); err != nil {
			log.Printf("[AUTH] session prune error: %v", err)
		} else if n > 0 {
			log.Printf("[AUTH] pruned %d expired sessions", n)
		}
	})
	if err != nil {
		log.Fatalf("cleanup schedule %q: %v", schedule, err)
	}

	log.Printf("cleanup started schedule=%q", schedule)
	c.Start()
	return c
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")

			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
