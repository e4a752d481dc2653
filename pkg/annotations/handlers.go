package annotations

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type handler struct {
	annotationsService *Service
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	annotations, err := h.annotationsService.ListAnnotations(ctx, ListAnnotationsOptions{
		StoryID: c.Param("storyID"),
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, echo.Map{
		"annotations": annotations,
	}))
}

func (h *handler) create(c echo.Context) error {
	ctx := c.Request().Context()

	params := CreateAnnotationPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	annotation, err := h.annotationsService.CreateAnnotation(ctx, CreateAnnotationOptions{
		StoryID:        c.Param("storyID"),
		Text:           params.Text,
		X:              *params.X,
		Y:              *params.Y,
		Width:          *params.Width,
		Height:         *params.Height,
		ViewportX:      params.ViewportX,
		ViewportY:      params.ViewportY,
		ViewportWidth:  params.ViewportWidth,
		ViewportHeight: params.ViewportHeight,
		ImageURLs:      params.ImageURLs,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusCreated, annotation))
}

func (h *handler) reorder(c echo.Context) error {
	ctx := c.Request().Context()

	params := ReorderAnnotationsPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	err := h.annotationsService.ReorderAnnotations(ctx, ReorderAnnotationsOptions{
		StoryID:       c.Param("storyID"),
		AnnotationIDs: params.AnnotationIDs,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	annotation, err := h.annotationsService.RetrieveAnnotation(ctx, RetrieveAnnotationOptions{ID: &id})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, annotation))
}

func (h *handler) update(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	params := UpdateAnnotationPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	annotation, err := h.annotationsService.RetrieveAnnotation(ctx, RetrieveAnnotationOptions{ID: &id})
	if err != nil {
		return errors.WithStack(err)
	}

	opts := UpdateAnnotationOptions{Columns: []string{}}

	if params.Text != nil && *params.Text != annotation.Text {
		annotation.Text = *params.Text
		opts.Columns = append(opts.Columns, "text")
	}
	if params.X != nil && *params.X != annotation.X {
		annotation.X = *params.X
		opts.Columns = append(opts.Columns, "x")
	}
	if params.Y != nil && *params.Y != annotation.Y {
		annotation.Y = *params.Y
		opts.Columns = append(opts.Columns, "y")
	}
	if params.Width != nil && *params.Width != annotation.Width {
		annotation.Width = *params.Width
		opts.Columns = append(opts.Columns, "width")
	}
	if params.Height != nil && *params.Height != annotation.Height {
		annotation.Height = *params.Height
		opts.Columns = append(opts.Columns, "height")
	}
	if params.ViewportX != nil {
		annotation.ViewportX = params.ViewportX
		opts.Columns = append(opts.Columns, "viewport_x")
	}
	if params.ViewportY != nil {
		annotation.ViewportY = params.ViewportY
		opts.Columns = append(opts.Columns, "viewport_y")
	}
	if params.ViewportWidth != nil {
		annotation.ViewportWidth = params.ViewportWidth
		opts.Columns = append(opts.Columns, "viewport_width")
	}
	if params.ViewportHeight != nil {
		annotation.ViewportHeight = params.ViewportHeight
		opts.Columns = append(opts.Columns, "viewport_height")
	}

	err = h.annotationsService.UpdateAnnotation(ctx, annotation, opts)
	if err != nil {
		return errors.WithStack(err)
	}

	annotation, err = h.annotationsService.RetrieveAnnotation(ctx, RetrieveAnnotationOptions{ID: &id})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, annotation))
}

func (h *handler) delete(c echo.Context) error {
	ctx := c.Request().Context()

	err := h.annotationsService.DeleteAnnotation(ctx, c.Param("id"))
	if err != nil {
		return errors.WithStack(err)
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *handler) addImage(c echo.Context) error {
	ctx := c.Request().Context()

	params := AddImagePayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	img, err := h.annotationsService.AddImage(ctx, c.Param("id"), params.ImageURL)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusCreated, img))
}

func (h *handler) replaceImages(c echo.Context) error {
	ctx := c.Request().Context()

	params := ReplaceImagesPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	images, err := h.annotationsService.ReplaceImages(ctx, c.Param("id"), params.ImageURLs)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, echo.Map{
		"images": images,
	}))
}

func (h *handler) removeImage(c echo.Context) error {
	ctx := c.Request().Context()

	err := h.annotationsService.RemoveImage(ctx, c.Param("id"), c.Param("imageID"))
	if err != nil {
		return errors.WithStack(err)
	}

	return c.NoContent(http.StatusNoContent)
}
