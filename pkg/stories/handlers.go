package stories

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/tessellahq/tessella/pkg/models"
)

type handler struct {
	storiesService *Service
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListStoriesQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	stories, total, err := h.storiesService.ListStories(ctx, ListStoriesOptions{
		Deleted: params.Deleted,
		Limit:   &params.Limit,
		Offset:  &params.Offset,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, echo.Map{
		"stories": stories,
		"total":   total,
	}))
}

func (h *handler) create(c echo.Context) error {
	ctx := c.Request().Context()

	params := CreateStoryPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	story, err := h.storiesService.CreateStory(ctx, CreateStoryOptions{
		Title:         params.Title,
		Author:        params.Author,
		Description:   params.Description,
		Attribution:   params.Attribution,
		ImageURL:      params.ImageURL,
		ImageWidth:    params.ImageWidth,
		ImageHeight:   params.ImageHeight,
		ImageSourceID: params.ImageSourceID,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusCreated, story))
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	story, err := h.storiesService.RetrieveStory(ctx, RetrieveStoryOptions{
		ID:                 &id,
		IncludeAnnotations: true,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, story))
}

func (h *handler) update(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	params := UpdateStoryPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	story, err := h.storiesService.RetrieveStory(ctx, RetrieveStoryOptions{ID: &id})
	if err != nil {
		return errors.WithStack(err)
	}

	opts := UpdateStoryOptions{Columns: []string{}}

	if params.Title != nil {
		if title := strings.TrimSpace(*params.Title); title != story.Title {
			story.Title = title
			opts.Columns = append(opts.Columns, "title")
		}
	}
	if params.Author != nil {
		story.Author = params.Author
		opts.Columns = append(opts.Columns, "author")
	}
	if params.Description != nil {
		story.Description = params.Description
		opts.Columns = append(opts.Columns, "description")
	}
	if params.Attribution != nil {
		story.Attribution = params.Attribution
		opts.Columns = append(opts.Columns, "attribution")
	}
	if params.ImageURL != nil {
		if url := models.TrimInfoJSONSuffix(strings.TrimSpace(*params.ImageURL)); url != story.ImageURL {
			story.ImageURL = url
			opts.Columns = append(opts.Columns, "image_url")
		}
	}
	if params.ImageWidth != nil && *params.ImageWidth != story.ImageWidth {
		story.ImageWidth = *params.ImageWidth
		opts.Columns = append(opts.Columns, "image_width")
	}
	if params.ImageHeight != nil && *params.ImageHeight != story.ImageHeight {
		story.ImageHeight = *params.ImageHeight
		opts.Columns = append(opts.Columns, "image_height")
	}

	err = h.storiesService.UpdateStory(ctx, story, opts)
	if err != nil {
		return errors.WithStack(err)
	}

	story, err = h.storiesService.RetrieveStory(ctx, RetrieveStoryOptions{ID: &id})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, story))
}

func (h *handler) delete(c echo.Context) error {
	ctx := c.Request().Context()

	err := h.storiesService.DeleteStory(ctx, c.Param("id"))
	if err != nil {
		return errors.WithStack(err)
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *handler) restore(c echo.Context) error {
	ctx := c.Request().Context()

	story, err := h.storiesService.RestoreStory(ctx, c.Param("id"))
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, story))
}
