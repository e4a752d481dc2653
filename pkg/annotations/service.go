package annotations

import (
	"context"
	"database/sql"
	"math"
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

// validateRect enforces the geometry contract shared by annotation targets
// and viewports: finite values, non-negative origin, positive extent.
func validateRect(prefix string, x, y, width, height float64) error {
	for _, v := range []float64{x, y, width, height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errcodes.ValidationError("Rectangle values must be finite numbers.")
		}
	}
	if x < 0 {
		return errcodes.ValidationError(prefix + "x must not be negative.")
	}
	if y < 0 {
		return errcodes.ValidationError(prefix + "y must not be negative.")
	}
	if width <= 0 {
		return errcodes.ValidationError(prefix + "width must be greater than zero.")
	}
	if height <= 0 {
		return errcodes.ValidationError(prefix + "height must be greater than zero.")
	}
	return nil
}

// validateViewport checks the all-or-none viewport quad.
func validateViewport(x, y, width, height *float64) error {
	set := 0
	for _, v := range []*float64{x, y, width, height} {
		if v != nil {
			set++
		}
	}
	if set == 0 {
		return nil
	}
	if set != 4 {
		return errcodes.ValidationError("Viewport requires viewport_x, viewport_y, viewport_width, and viewport_height together.")
	}
	return validateRect("viewport_", *x, *y, *width, *height)
}

func touchStory(ctx context.Context, tx bun.Tx, storyID string, now time.Time) error {
	_, err := tx.NewUpdate().
		Model((*models.Story)(nil)).
		Set("updated_at = ?", now).
		Where("id = ?", storyID).
		Exec(ctx)
	return errors.WithStack(err)
}

// densifyOrdinals renumbers a story's annotations 0..n-1 in their current
// order, closing any gap left by a delete.
func densifyOrdinals(ctx context.Context, tx bun.Tx, storyID string) error {
	remaining := []*models.Annotation{}
	err := tx.NewSelect().
		Model(&remaining).
		Column("id", "ordinal").
		Where("story_id = ?", storyID).
		Order("ordinal ASC").
		Scan(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	for i, annotation := range remaining {
		if annotation.Ordinal == i {
			continue
		}
		_, err = tx.NewUpdate().
			Model((*models.Annotation)(nil)).
			Set("ordinal = ?", i).
			Where("id = ?", annotation.ID).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
	}

	return nil
}

// densifyImageOrdinals does the same for one annotation's image set.
func densifyImageOrdinals(ctx context.Context, tx bun.Tx, annotationID string) error {
	remaining := []*models.AnnotationImage{}
	err := tx.NewSelect().
		Model(&remaining).
		Column("id", "ordinal").
		Where("annotation_id = ?", annotationID).
		Order("ordinal ASC").
		Scan(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	for i, img := range remaining {
		if img.Ordinal == i {
			continue
		}
		_, err = tx.NewUpdate().
			Model((*models.AnnotationImage)(nil)).
			Set("ordinal = ?", i).
			Where("id = ?", img.ID).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
	}

	return nil
}

type CreateAnnotationOptions struct {
	StoryID        string
	Text           string
	X              float64
	Y              float64
	Width          float64
	Height         float64
	ViewportX      *float64
	ViewportY      *float64
	ViewportWidth  *float64
	ViewportHeight *float64
	// ImageURLs seeds the image set in the given order.
	ImageURLs []string
}

// CreateAnnotation appends an annotation at the end of the story's sequence.
func (svc *Service) CreateAnnotation(ctx context.Context, opts CreateAnnotationOptions) (*models.Annotation, error) {
	if err := validateRect("", opts.X, opts.Y, opts.Width, opts.Height); err != nil {
		return nil, err
	}
	if err := validateViewport(opts.ViewportX, opts.ViewportY, opts.ViewportWidth, opts.ViewportHeight); err != nil {
		return nil, err
	}

	var annotation *models.Annotation

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().
			Model((*models.Story)(nil)).
			Where("st.id = ?", opts.StoryID).
			Exists(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if !exists {
			return errcodes.NotFound("Story")
		}

		var maxOrdinal int
		err = tx.NewSelect().
			Model((*models.Annotation)(nil)).
			ColumnExpr("COALESCE(MAX(ordinal), -1)").
			Where("story_id = ?", opts.StoryID).
			Scan(ctx, &maxOrdinal)
		if err != nil {
			return errors.WithStack(err)
		}

		now := time.Now()
		annotation = &models.Annotation{
			ID:             uuid.NewString(),
			CreatedAt:      now,
			UpdatedAt:      now,
			StoryID:        opts.StoryID,
			Text:           opts.Text,
			X:              opts.X,
			Y:              opts.Y,
			Width:          opts.Width,
			Height:         opts.Height,
			ViewportX:      opts.ViewportX,
			ViewportY:      opts.ViewportY,
			ViewportWidth:  opts.ViewportWidth,
			ViewportHeight: opts.ViewportHeight,
			Ordinal:        maxOrdinal + 1,
		}

		_, err = tx.NewInsert().
			Model(annotation).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		if len(opts.ImageURLs) > 0 {
			images := make([]*models.AnnotationImage, 0, len(opts.ImageURLs))
			for i, url := range opts.ImageURLs {
				images = append(images, &models.AnnotationImage{
					ID:           uuid.NewString(),
					CreatedAt:    now,
					AnnotationID: annotation.ID,
					ImageURL:     url,
					Ordinal:      i,
				})
			}
			_, err = tx.NewInsert().
				Model(&images).
				Exec(ctx)
			if err != nil {
				return errors.WithStack(err)
			}
			annotation.Images = images
		}

		return touchStory(ctx, tx, opts.StoryID, now)
	})
	if err != nil {
		return nil, err
	}

	return annotation, nil
}

type RetrieveAnnotationOptions struct {
	ID *string
}

func (svc *Service) RetrieveAnnotation(ctx context.Context, opts RetrieveAnnotationOptions) (*models.Annotation, error) {
	annotation := &models.Annotation{}

	q := svc.db.
		NewSelect().
		Model(annotation).
		Relation("Images", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("ordinal ASC")
		})

	if opts.ID != nil {
		q = q.Where("a.id = ?", *opts.ID)
	}

	err := q.Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errcodes.NotFound("Annotation")
	} else if err != nil {
		return nil, errors.WithStack(err)
	}

	return annotation, nil
}

type ListAnnotationsOptions struct {
	StoryID string
}

// ListAnnotations returns a story's annotations in ordinal order, each with
// its images in ordinal order.
func (svc *Service) ListAnnotations(ctx context.Context, opts ListAnnotationsOptions) ([]*models.Annotation, error) {
	exists, err := svc.db.
		NewSelect().
		Model((*models.Story)(nil)).
		Where("st.id = ?", opts.StoryID).
		Exists(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if !exists {
		return nil, errcodes.NotFound("Story")
	}

	annotations := []*models.Annotation{}
	err = svc.db.
		NewSelect().
		Model(&annotations).
		Relation("Images", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("ordinal ASC")
		}).
		Where("a.story_id = ?", opts.StoryID).
		Order("a.ordinal ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return annotations, nil
}

type UpdateAnnotationOptions struct {
	Columns []string
}

func (svc *Service) UpdateAnnotation(ctx context.Context, annotation *models.Annotation, opts UpdateAnnotationOptions) error {
	if len(opts.Columns) == 0 {
		return nil
	}

	if err := validateRect("", annotation.X, annotation.Y, annotation.Width, annotation.Height); err != nil {
		return err
	}
	if err := validateViewport(annotation.ViewportX, annotation.ViewportY, annotation.ViewportWidth, annotation.ViewportHeight); err != nil {
		return err
	}

	return svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		now := time.Now()
		annotation.UpdatedAt = now
		columns := append(opts.Columns, "updated_at")

		_, err := tx.NewUpdate().
			Model(annotation).
			Column(columns...).
			WherePK().
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		return touchStory(ctx, tx, annotation.StoryID, now)
	})
}

// DeleteAnnotation removes an annotation and its images, then renumbers the
// story's remaining annotations so ordinals stay dense.
func (svc *Service) DeleteAnnotation(ctx context.Context, id string) error {
	return svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		annotation := &models.Annotation{}
		err := tx.NewSelect().
			Model(annotation).
			Column("id", "story_id").
			Where("a.id = ?", id).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return errcodes.NotFound("Annotation")
		} else if err != nil {
			return errors.WithStack(err)
		}

		_, err = tx.NewDelete().
			Model((*models.AnnotationImage)(nil)).
			Where("annotation_id = ?", id).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = tx.NewDelete().
			Model((*models.Annotation)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		if err := densifyOrdinals(ctx, tx, annotation.StoryID); err != nil {
			return err
		}

		return touchStory(ctx, tx, annotation.StoryID, time.Now())
	})
}

type ReorderAnnotationsOptions struct {
	StoryID       string
	AnnotationIDs []string
}

// ReorderAnnotations rewrites the full ordinal sequence for a story. The
// given IDs must be exactly the story's annotation IDs; anything else leaves
// the sequence untouched.
func (svc *Service) ReorderAnnotations(ctx context.Context, opts ReorderAnnotationsOptions) error {
	return svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().
			Model((*models.Story)(nil)).
			Where("st.id = ?", opts.StoryID).
			Exists(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if !exists {
			return errcodes.NotFound("Story")
		}

		current := []*models.Annotation{}
		err = tx.NewSelect().
			Model(&current).
			Column("id").
			Where("story_id = ?", opts.StoryID).
			Scan(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		if len(current) != len(opts.AnnotationIDs) {
			return errcodes.ValidationError("Annotation IDs must match the story's annotations exactly.")
		}
		currentIDs := make(map[string]bool, len(current))
		for _, annotation := range current {
			currentIDs[annotation.ID] = true
		}
		for _, id := range opts.AnnotationIDs {
			if !currentIDs[id] {
				return errcodes.ValidationError("Annotation IDs must match the story's annotations exactly.")
			}
			// Catch duplicates in the payload.
			delete(currentIDs, id)
		}

		for i, id := range opts.AnnotationIDs {
			_, err = tx.NewUpdate().
				Model((*models.Annotation)(nil)).
				Set("ordinal = ?", i).
				Where("id = ?", id).
				Exec(ctx)
			if err != nil {
				return errors.WithStack(err)
			}
		}

		return touchStory(ctx, tx, opts.StoryID, time.Now())
	})
}

// AddImage appends an image to an annotation's set.
func (svc *Service) AddImage(ctx context.Context, annotationID, imageURL string) (*models.AnnotationImage, error) {
	var img *models.AnnotationImage

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		annotation := &models.Annotation{}
		err := tx.NewSelect().
			Model(annotation).
			Column("id", "story_id").
			Where("a.id = ?", annotationID).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return errcodes.NotFound("Annotation")
		} else if err != nil {
			return errors.WithStack(err)
		}

		var maxOrdinal int
		err = tx.NewSelect().
			Model((*models.AnnotationImage)(nil)).
			ColumnExpr("COALESCE(MAX(ordinal), -1)").
			Where("annotation_id = ?", annotationID).
			Scan(ctx, &maxOrdinal)
		if err != nil {
			return errors.WithStack(err)
		}

		now := time.Now()
		img = &models.AnnotationImage{
			ID:           uuid.NewString(),
			CreatedAt:    now,
			AnnotationID: annotationID,
			ImageURL:     imageURL,
			Ordinal:      maxOrdinal + 1,
		}

		_, err = tx.NewInsert().
			Model(img).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		return touchStory(ctx, tx, annotation.StoryID, now)
	})
	if err != nil {
		return nil, err
	}

	return img, nil
}

// RemoveImage deletes one image and renumbers the rest of the set.
func (svc *Service) RemoveImage(ctx context.Context, annotationID, imageID string) error {
	return svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		annotation := &models.Annotation{}
		err := tx.NewSelect().
			Model(annotation).
			Column("id", "story_id").
			Where("a.id = ?", annotationID).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return errcodes.NotFound("Annotation")
		} else if err != nil {
			return errors.WithStack(err)
		}

		res, err := tx.NewDelete().
			Model((*models.AnnotationImage)(nil)).
			Where("id = ?", imageID).
			Where("annotation_id = ?", annotationID).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return errors.WithStack(err)
		}
		if rows == 0 {
			return errcodes.NotFound("Annotation image")
		}

		if err := densifyImageOrdinals(ctx, tx, annotationID); err != nil {
			return err
		}

		return touchStory(ctx, tx, annotation.StoryID, time.Now())
	})
}

// ReplaceImages swaps an annotation's whole image set for the given URLs, in
// order. Old rows are deleted outright, so image IDs are not stable across a
// replace.
func (svc *Service) ReplaceImages(ctx context.Context, annotationID string, imageURLs []string) ([]*models.AnnotationImage, error) {
	images := []*models.AnnotationImage{}

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		annotation := &models.Annotation{}
		err := tx.NewSelect().
			Model(annotation).
			Column("id", "story_id").
			Where("a.id = ?", annotationID).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return errcodes.NotFound("Annotation")
		} else if err != nil {
			return errors.WithStack(err)
		}

		_, err = tx.NewDelete().
			Model((*models.AnnotationImage)(nil)).
			Where("annotation_id = ?", annotationID).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		now := time.Now()
		if len(imageURLs) > 0 {
			for i, url := range imageURLs {
				images = append(images, &models.AnnotationImage{
					ID:           uuid.NewString(),
					CreatedAt:    now,
					AnnotationID: annotationID,
					ImageURL:     url,
					Ordinal:      i,
				})
			}
			_, err = tx.NewInsert().
				Model(&images).
				Exec(ctx)
			if err != nil {
				return errors.WithStack(err)
			}
		}

		return touchStory(ctx, tx, annotation.StoryID, now)
	})
	if err != nil {
		return nil, err
	}

	return images, nil
}
