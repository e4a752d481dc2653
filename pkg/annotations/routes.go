package annotations

import (
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

// RegisterRoutesWithGroups registers annotation routes. Collection operations
// hang off the owning story; item operations use the annotation's own ID.
func RegisterRoutesWithGroups(stories, annotations *echo.Group, db *bun.DB) {
	annotationsService := NewService(db)

	h := &handler{
		annotationsService: annotationsService,
	}

	stories.GET("/:storyID/annotations", h.list)
	stories.POST("/:storyID/annotations", h.create)
	stories.PATCH("/:storyID/annotations/reorder", h.reorder)

	annotations.GET("/:id", h.retrieve)
	annotations.PATCH("/:id", h.update)
	annotations.DELETE("/:id", h.delete)

	annotations.POST("/:id/images", h.addImage)
	annotations.PUT("/:id/images", h.replaceImages)
	annotations.DELETE("/:id/images/:imageID", h.removeImage)
}
