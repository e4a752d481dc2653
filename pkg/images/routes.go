package images

import (
	"fmt"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/tessellahq/tessella/pkg/blob"
	"github.com/uptrace/bun"
)

// RegisterRoutesWithGroup registers image source routes on a pre-configured
// group. Uploads are capped at maxUploadSizeMB.
func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB, store blob.Store, tileSize, maxUploadSizeMB int) {
	imagesService := NewService(db, store, tileSize)

	h := &handler{
		imagesService: imagesService,
	}

	g.POST("", h.upload, middleware.BodyLimit(fmt.Sprintf("%dM", maxUploadSizeMB)))
	g.POST("/external", h.registerExternal)
	g.GET("", h.list)
	g.GET("/:id", h.retrieve)
	g.DELETE("/:id", h.delete)
}
