package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/echo/v4/health"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	"github.com/robinjoseph08/golib/echo/v4/middleware/recovery"
	"github.com/tessellahq/tessella/pkg/annotations"
	"github.com/tessellahq/tessella/pkg/binder"
	"github.com/tessellahq/tessella/pkg/blob"
	"github.com/tessellahq/tessella/pkg/config"
	"github.com/tessellahq/tessella/pkg/errcodes"
	"github.com/tessellahq/tessella/pkg/images"
	"github.com/tessellahq/tessella/pkg/manifests"
	"github.com/tessellahq/tessella/pkg/stories"
	"github.com/uptrace/bun"
)

func New(cfg *config.Config, db *bun.DB, store blob.Store) (*http.Server, error) {
	e := echo.New()

	b, err := binder.New()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	e.Binder = b

	e.Use(logger.Middleware())
	e.Use(recovery.Middleware())
	e.Use(middleware.CORS())

	health.RegisterRoutes(e)

	storiesGroup := e.Group("/api/stories")
	stories.RegisterRoutesWithGroup(storiesGroup, db)

	annotationsGroup := e.Group("/api/annotations")
	annotations.RegisterRoutesWithGroups(storiesGroup, annotationsGroup, db)

	imagesGroup := e.Group("/api/images")
	images.RegisterRoutesWithGroup(imagesGroup, db, store, cfg.TileSize, cfg.MaxUploadSizeMB)

	manifestGroup := e.Group("/api/manifest")
	manifests.RegisterRoutesWithGroup(manifestGroup, db, cfg.PublicURL)

	// With the local blob driver the server doubles as the tile host.
	if local, ok := store.(*blob.LocalStore); ok {
		e.Static("/blob", local.Root())
	}

	echo.NotFoundHandler = notFoundHandler
	e.HTTPErrorHandler = errcodes.NewHandler().Handle

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort),
		Handler:           e,
		ReadHeaderTimeout: 3 * time.Second,
	}

	return srv, nil
}

func notFoundHandler(c echo.Context) error {
	c.SetPath("/:path")
	return errcodes.NotFound("Page")
}
