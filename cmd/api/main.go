package main

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/signals"
	"github.com/tessellahq/tessella/pkg/blob"
	"github.com/tessellahq/tessella/pkg/config"
	"github.com/tessellahq/tessella/pkg/database"
	"github.com/tessellahq/tessella/pkg/migrations"
	"github.com/tessellahq/tessella/pkg/server"
	"github.com/tessellahq/tessella/pkg/version"
)

func main() {
	ctx := context.Background()
	log := logger.New()

	log.Info("starting tessella", logger.Data{"version": version.Version})

	cfg, err := config.New()
	if err != nil {
		log.Err(err).Fatal("config error")
	}

	db, err := database.New(cfg)
	if err != nil {
		log.Err(err).Fatal("database error")
	}

	group, err := migrations.BringUpToDate(ctx, db)
	if err != nil {
		log.Err(err).Fatal("migrations error")
	}
	if group.ID == 0 {
		log.Info("no new migrations to run")
	} else {
		log.Info("migrated to new group", logger.Data{"group_id": group.ID, "migration_names": group.Migrations.String()})
	}

	store, err := newBlobStore(ctx, cfg)
	if err != nil {
		log.Err(err).Fatal("blob store error")
	}
	log.Info("blob store initialized", logger.Data{"driver": cfg.BlobDriver, "base_url": store.BaseURL()})

	srv, err := server.New(cfg, db, store)
	if err != nil {
		log.Err(err).Fatal("server error")
	}

	graceful := signals.Setup()

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort)
		lc := net.ListenConfig{}
		listener, err := lc.Listen(ctx, "tcp", addr)
		if err != nil {
			log.Err(err).Fatal("failed to bind port")
		}

		log.Info("server started", logger.Data{"port": listener.Addr().(*net.TCPAddr).Port})

		err = srv.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Err(err).Fatal("server stopped")
		}
		log.Info("server stopped")
	}()

	<-graceful
	log.Info("starting graceful shutdown")

	err = srv.Shutdown(ctx)
	if err != nil {
		log.Err(err).Error("server shutdown error")
	}
	log.Info("server shutdown")

	err = db.Close()
	if err != nil {
		log.Err(err).Error("database close error")
	}
	log.Info("database closed")
}

func newBlobStore(ctx context.Context, cfg *config.Config) (blob.Store, error) {
	switch cfg.BlobDriver {
	case config.BlobDriverGCS:
		return blob.NewGCSStore(ctx, cfg.GCSBucket, cfg.BlobBaseURL)
	case config.BlobDriverLocal:
		baseURL := cfg.BlobBaseURL
		if baseURL == "" {
			baseURL = cfg.PublicURL + "/blob"
		}
		return blob.NewLocalStore(cfg.BlobLocalDir, baseURL)
	default:
		return nil, errors.Errorf("unknown blob driver: %s", cfg.BlobDriver)
	}
}
