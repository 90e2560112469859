package entrypoint

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vrwarp/versicle/internal/bridge"
	"github.com/vrwarp/versicle/internal/coalescer"
	"github.com/vrwarp/versicle/internal/config"
	"github.com/vrwarp/versicle/internal/crdt"
	"github.com/vrwarp/versicle/internal/database"
	"github.com/vrwarp/versicle/internal/database/blobs"
	"github.com/vrwarp/versicle/internal/database/legacy"
	"github.com/vrwarp/versicle/internal/database/manifests"
	"github.com/vrwarp/versicle/internal/database/settings"
	"github.com/vrwarp/versicle/internal/database/updatelog"
	"github.com/vrwarp/versicle/internal/entities"
	"github.com/vrwarp/versicle/internal/extraction"
	http_controllers "github.com/vrwarp/versicle/internal/http"
	"github.com/vrwarp/versicle/internal/migration"
	"github.com/vrwarp/versicle/internal/scheduler"
	"github.com/vrwarp/versicle/internal/services"
	"github.com/vrwarp/versicle/internal/tasks"
)

// App wires the store, the replicated document and the services on top of
// them. Both the server and the CLI commands build one.
type App struct {
	Config   *config.Config
	DB       *database.Database
	DeviceID string

	Settings  *settings.Repository
	Updates   *updatelog.Repository
	Manifests *manifests.Repository
	Blobs     *blobs.Repository
	Legacy    *legacy.Repository

	Document  *crdt.Document
	Extractor extraction.Extractor
	Library   *services.LibraryService
	Ingest    *services.IngestService
	Migration *migration.Service
}

// NewApp opens the store, loads or mints the device identity and loads the
// replicated document into memory.
func NewApp(cfg *config.Config) (*App, error) {
	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	settingsRepo := settings.NewRepository(db.DB)

	deviceID, ok, err := settingsRepo.Get(entities.SettingKeyDeviceID)
	if err != nil {
		db.Close()
		return nil, err
	}
	if !ok {
		deviceID = uuid.NewString()
		if err := settingsRepo.Set(entities.SettingKeyDeviceID, deviceID); err != nil {
			db.Close()
			return nil, err
		}
		log.WithField("device", deviceID).Info("minted device identity")
	}

	updatesRepo := updatelog.NewRepository(db.DB)
	doc := crdt.NewDocument(deviceID, updatesRepo)
	if err := doc.Load(); err != nil {
		db.Close()
		return nil, err
	}

	manifestRepo := manifests.NewRepository(db.DB)
	blobRepo := blobs.NewRepository(db.DB)
	legacyRepo := legacy.NewRepository(db.DB)
	extractor := extraction.NewPlainTextExtractor()

	nowMs := func() int64 { return time.Now().UnixMilli() }
	library := services.NewLibraryService(db, manifestRepo, blobRepo, doc, nowMs)
	ingest := services.NewIngestService(db, manifestRepo, blobRepo, doc, extractor, nowMs)
	migrationService := migration.NewService(settingsRepo, legacyRepo, blobRepo, manifestRepo, doc, extractor)

	return &App{
		Config:    cfg,
		DB:        db,
		DeviceID:  deviceID,
		Settings:  settingsRepo,
		Updates:   updatesRepo,
		Manifests: manifestRepo,
		Blobs:     blobRepo,
		Legacy:    legacyRepo,
		Document:  doc,
		Extractor: extractor,
		Library:   library,
		Ingest:    ingest,
		Migration: migrationService,
	}, nil
}

func (a *App) Close() error {
	return a.DB.Close()
}

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

// Serve runs the HTTP server until SIGINT or SIGTERM, then shuts down
// within the configured timeout. onShutdown runs after the listener has
// drained so in-flight requests still see live services.
func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		log.WithField("addr", srv.Addr).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("listen failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.WithField("timeout", timeout).Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("server shutdown")
	}

	if onShutdown != nil {
		onShutdown(ctx)
	}

	log.Info("server exited")
}

// Run builds the full application and serves it.
func Run(cfg *config.Config, version string) {
	log.WithField("version", version).Info("starting versicle")

	app, err := NewApp(cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to open store")
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.WithError(err).Error("closing store")
		}
	}()

	if err := app.Library.RegisterDevice(app.DeviceID, cfg.Device.DisplayName); err != nil {
		log.WithError(err).Fatal("failed to register device")
	}

	summary, err := app.Migration.Run(context.Background())
	if err != nil {
		log.WithError(err).Fatal("migration failed")
	}
	if summary.Scanned > 0 {
		log.WithFields(log.Fields{
			"scanned":  summary.Scanned,
			"migrated": summary.Migrated,
			"skipped":  summary.Skipped,
			"failed":   summary.Failed,
		}).Info("migration completed")
	}

	co := coalescer.New(cfg.Coalescer.Window, coalescer.RealClock{}, app.Library.FlushProgress)

	br := bridge.New(app.Document, bridge.SinkFunc(func(rows []bridge.LibraryRow) {
		log.WithField("books", len(rows)).Debug("library view published")
	}))
	br.Start()

	var taskClient *tasks.Client
	var taskCtxCancel context.CancelFunc
	if cfg.Tasks.Enabled {
		taskClient, err = tasks.NewClient(cfg.Database.Path, tasks.FromAppConfig(cfg.Tasks))
		if err != nil {
			log.WithError(err).Fatal("failed to initialize task queue")
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				log.WithError(err).Error("closing task client")
			}
		}()

		taskClient.Register(tasks.NewReprocessBookQueue(app.DB, app.Extractor))

		var taskCtx context.Context
		taskCtx, taskCtxCancel = context.WithCancel(context.Background())
		go taskClient.Start(taskCtx)
	}

	sched := scheduler.New(app.Document, app.Updates, app.Settings, *cfg)
	if err := sched.Start(context.Background()); err != nil {
		log.WithError(err).Fatal("failed to start scheduler")
	}

	routerCfg := http_controllers.RouterConfig{
		Database:  app.DB,
		Library:   app.Library,
		Ingest:    app.Ingest,
		Bridge:    br,
		Coalescer: co,
		Document:  app.Document,
		Version:   version,
	}
	if taskClient != nil {
		routerCfg.Enqueuer = taskClient
	}
	router := http_controllers.NewRouter(routerCfg)

	Serve(router, cfg, func(ctx context.Context) {
		sched.Stop()

		if taskClient != nil {
			if !taskClient.Stop(ctx) {
				log.Warn("task queue did not stop cleanly")
			}
			if taskCtxCancel != nil {
				taskCtxCancel()
			}
		}

		// Flush whatever the coalescer still buffers, then compact the
		// log so the next start replays as little as possible.
		if err := co.Close(); err != nil {
			log.WithError(err).Error("final progress flush")
		}
		if err := sched.RunCheckpoint(); err != nil {
			log.WithError(err).Error("final checkpoint")
		}
	})
}
