package manifests

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/tessellahq/tessella/pkg/errcodes"
	"github.com/tessellahq/tessella/pkg/iiif"
	"github.com/tessellahq/tessella/pkg/stories"
)

type handler struct {
	storiesService *stories.Service
	publicURL      string
}

// retrieve serves a IIIF Presentation API v3 manifest for a story. Viewers
// are third-party clients, so the response carries a permissive CORS header
// and, unlike the rest of the API, a flat {"error": ...} body on miss.
func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	c.Response().Header().Set("Access-Control-Allow-Origin", "*")

	story, err := h.storiesService.RetrieveStory(ctx, stories.RetrieveStoryOptions{
		ID:                 &id,
		IncludeAnnotations: true,
	})
	if err != nil {
		cerr := &errcodes.Error{}
		if errors.As(err, &cerr) && cerr.HTTPCode == http.StatusNotFound {
			return errors.WithStack(c.JSON(http.StatusNotFound, echo.Map{"error": "Story not found"}))
		}
		return errors.WithStack(err)
	}

	manifest := iiif.BuildManifest(story, h.publicURL)

	data, err := json.Marshal(manifest)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.Blob(http.StatusOK, iiif.ManifestContentType, data))
}
