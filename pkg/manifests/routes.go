package manifests

import (
	"github.com/labstack/echo/v4"
	"github.com/tessellahq/tessella/pkg/stories"
	"github.com/uptrace/bun"
)

// RegisterRoutesWithGroup registers the manifest endpoint on a
// pre-configured group. publicURL is the externally visible server origin
// used for manifest and canvas identifiers.
func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB, publicURL string) {
	storiesService := stories.NewService(db)

	h := &handler{
		storiesService: storiesService,
		publicURL:      publicURL,
	}

	g.GET("/:id", h.retrieve)
}
