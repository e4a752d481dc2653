package images

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/tessellahq/tessella/pkg/errcodes"
)

type handler struct {
	imagesService *Service
}

func (h *handler) upload(c echo.Context) error {
	ctx := c.Request().Context()

	fileHeader, err := c.FormFile("image")
	if err != nil {
		return errcodes.ValidationError(`A multipart file field named "image" is required.`)
	}

	f, err := fileHeader.Open()
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return errors.WithStack(err)
	}

	src, err := h.imagesService.IngestImage(ctx, IngestImageOptions{
		Data:         data,
		OriginalName: fileHeader.Filename,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusCreated, src))
}

func (h *handler) registerExternal(c echo.Context) error {
	ctx := c.Request().Context()

	params := RegisterExternalPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	src, err := h.imagesService.RegisterExternal(ctx, params.InfoJSONURL)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusCreated, src))
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	sources, err := h.imagesService.ListSources(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, echo.Map{
		"image_sources": sources,
	}))
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	src, err := h.imagesService.RetrieveSource(ctx, RetrieveSourceOptions{ID: &id})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, src))
}

func (h *handler) delete(c echo.Context) error {
	ctx := c.Request().Context()

	err := h.imagesService.DeleteSource(ctx, c.Param("id"))
	if err != nil {
		return errors.WithStack(err)
	}

	return c.NoContent(http.StatusNoContent)
}
