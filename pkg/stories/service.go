package stories

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/tessellahq/tessella/pkg/errcodes"
	"github.com/tessellahq/tessella/pkg/models"
	"github.com/uptrace/bun"
)

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

type CreateStoryOptions struct {
	Title         string
	Author        *string
	Description   *string
	Attribution   *string
	ImageURL      string
	ImageWidth    int
	ImageHeight   int
	ImageSourceID *string
}

// CreateStory creates a story bound to its source image. When an image
// source ID is given, the image URL and dimensions come from that source;
// otherwise the caller supplies them directly and the URL is normalized by
// stripping any /info.json suffix.
func (svc *Service) CreateStory(ctx context.Context, opts CreateStoryOptions) (*models.Story, error) {
	now := time.Now()

	story := &models.Story{
		ID:          uuid.NewString(),
		CreatedAt:   now,
		UpdatedAt:   now,
		Title:       strings.TrimSpace(opts.Title),
		Author:      opts.Author,
		Description: opts.Description,
		Attribution: opts.Attribution,
	}

	if opts.ImageSourceID != nil {
		src := &models.ImageSource{}
		err := svc.db.
			NewSelect().
			Model(src).
			Where("img.id = ?", *opts.ImageSourceID).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Image source")
		} else if err != nil {
			return nil, errors.WithStack(err)
		}

		linked, err := svc.db.
			NewSelect().
			Model((*models.Story)(nil)).
			Where("st.image_source_id = ?", src.ID).
			WhereAllWithDeleted().
			Exists(ctx)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		if linked {
			return nil, errcodes.Conflict("Image source is already linked to a story.")
		}

		story.ImageURL = src.ServiceURL()
		story.ImageWidth = src.Width
		story.ImageHeight = src.Height
		story.ImageSourceID = &src.ID
	} else {
		story.ImageURL = models.TrimInfoJSONSuffix(strings.TrimSpace(opts.ImageURL))
		story.ImageWidth = opts.ImageWidth
		story.ImageHeight = opts.ImageHeight
	}

	_, err := svc.db.
		NewInsert().
		Model(story).
		Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return story, nil
}

type RetrieveStoryOptions struct {
	ID *string
	// IncludeAnnotations loads the full aggregate: annotations in ordinal
	// order, each with its images in ordinal order, plus the image source.
	IncludeAnnotations bool
	IncludeDeleted     bool
}

func (svc *Service) RetrieveStory(ctx context.Context, opts RetrieveStoryOptions) (*models.Story, error) {
	story := &models.Story{}

	q := svc.db.
		NewSelect().
		Model(story)

	if opts.IncludeAnnotations {
		q = q.
			Relation("ImageSource").
			Relation("Annotations", func(q *bun.SelectQuery) *bun.SelectQuery {
				return q.Order("ordinal ASC")
			}).
			Relation("Annotations.Images", func(q *bun.SelectQuery) *bun.SelectQuery {
				return q.Order("ordinal ASC")
			})
	}
	if opts.IncludeDeleted {
		q = q.WhereAllWithDeleted()
	}
	if opts.ID != nil {
		q = q.Where("st.id = ?", *opts.ID)
	}

	err := q.Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errcodes.NotFound("Story")
	} else if err != nil {
		return nil, errors.WithStack(err)
	}

	return story, nil
}

type ListStoriesOptions struct {
	// Deleted lists soft-deleted stories instead of live ones.
	Deleted bool
	Limit   *int
	Offset  *int
}

// ListStories returns stories newest-activity first, each with its
// annotation count. Soft-deleted stories are excluded unless Deleted is set,
// in which case only they are returned.
func (svc *Service) ListStories(ctx context.Context, opts ListStoriesOptions) ([]*models.Story, int, error) {
	stories := []*models.Story{}

	q := svc.db.
		NewSelect().
		Model(&stories).
		ColumnExpr("st.*").
		ColumnExpr("(SELECT COUNT(*) FROM annotations AS a WHERE a.story_id = st.id) AS annotation_count").
		Order("st.updated_at DESC")

	if opts.Deleted {
		q = q.WhereAllWithDeleted().Where("st.deleted_at IS NOT NULL")
	}

	if opts.Limit != nil {
		q = q.Limit(*opts.Limit)
	}
	if opts.Offset != nil {
		q = q.Offset(*opts.Offset)
	}

	total, err := q.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	return stories, total, nil
}

type UpdateStoryOptions struct {
	Columns []string
}

func (svc *Service) UpdateStory(ctx context.Context, story *models.Story, opts UpdateStoryOptions) error {
	if len(opts.Columns) == 0 {
		return nil
	}

	story.UpdatedAt = time.Now()
	columns := append(opts.Columns, "updated_at")

	_, err := svc.db.
		NewUpdate().
		Model(story).
		Column(columns...).
		WherePK().
		Exec(ctx)
	return errors.WithStack(err)
}

// DeleteStory soft deletes a story. Its annotations stay in place so a
// restore brings the whole aggregate back.
func (svc *Service) DeleteStory(ctx context.Context, id string) error {
	res, err := svc.db.
		NewDelete().
		Model((*models.Story)(nil)).
		Where("st.id = ?", id).
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return errors.WithStack(err)
	}
	if rows == 0 {
		return errcodes.NotFound("Story")
	}

	return nil
}

// RestoreStory clears a soft delete.
func (svc *Service) RestoreStory(ctx context.Context, id string) (*models.Story, error) {
	res, err := svc.db.
		NewUpdate().
		Model((*models.Story)(nil)).
		Set("deleted_at = NULL").
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		WhereAllWithDeleted().
		Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if rows == 0 {
		return nil, errcodes.NotFound("Story")
	}

	return svc.RetrieveStory(ctx, RetrieveStoryOptions{ID: &id})
}
