package annotations

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tessellahq/tessella/pkg/errcodes"
	"github.com/tessellahq/tessella/pkg/migrations"
	"github.com/tessellahq/tessella/pkg/models"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = db.Exec("PRAGMA foreign_keys=ON")
	require.NoError(t, err)

	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func createTestStory(t *testing.T, db *bun.DB) *models.Story {
	t.Helper()
	now := time.Now()
	story := &models.Story{
		ID:          uuid.NewString(),
		CreatedAt:   now,
		UpdatedAt:   now,
		Title:       "Test Story",
		ImageURL:    "https://iiif.example.org/test",
		ImageWidth:  1000,
		ImageHeight: 800,
	}
	_, err := db.NewInsert().Model(story).Exec(context.Background())
	require.NoError(t, err)
	return story
}

func ordinalsOf(t *testing.T, db *bun.DB, storyID string) map[string]int {
	t.Helper()
	annotations := []*models.Annotation{}
	err := db.NewSelect().
		Model(&annotations).
		Where("story_id = ?", storyID).
		Scan(context.Background())
	require.NoError(t, err)

	ordinals := map[string]int{}
	for _, a := range annotations {
		ordinals[a.ID] = a.Ordinal
	}
	return ordinals
}

func TestService_CreateAnnotation(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	story := createTestStory(t, db)

	t.Run("appends with dense zero-based ordinals", func(t *testing.T) {
		first, err := svc.CreateAnnotation(ctx, CreateAnnotationOptions{
			StoryID: story.ID, Text: "first", X: 0, Y: 0, Width: 10, Height: 10,
		})
		require.NoError(t, err)
		assert.Equal(t, 0, first.Ordinal)

		second, err := svc.CreateAnnotation(ctx, CreateAnnotationOptions{
			StoryID: story.ID, Text: "second", X: 5, Y: 5, Width: 10, Height: 10,
		})
		require.NoError(t, err)
		assert.Equal(t, 1, second.Ordinal)
	})

	t.Run("seeds the image set in order", func(t *testing.T) {
		annotation, err := svc.CreateAnnotation(ctx, CreateAnnotationOptions{
			StoryID: story.ID, X: 1, Y: 1, Width: 2, Height: 2,
			ImageURLs: []string{"https://img.example.org/a.jpg", "https://img.example.org/b.jpg"},
		})
		require.NoError(t, err)
		require.Len(t, annotation.Images, 2)
		assert.Equal(t, 0, annotation.Images[0].Ordinal)
		assert.Equal(t, "https://img.example.org/a.jpg", annotation.Images[0].ImageURL)
		assert.Equal(t, 1, annotation.Images[1].Ordinal)
	})

	t.Run("returns not found for a missing story", func(t *testing.T) {
		_, err := svc.CreateAnnotation(ctx, CreateAnnotationOptions{
			StoryID: uuid.NewString(), X: 0, Y: 0, Width: 1, Height: 1,
		})
		assert.Equal(t, errcodes.NotFound("Story"), err)
	})

	t.Run("rejects invalid geometry", func(t *testing.T) {
		_, err := svc.CreateAnnotation(ctx, CreateAnnotationOptions{
			StoryID: story.ID, X: -1, Y: 0, Width: 1, Height: 1,
		})
		assert.Equal(t, errcodes.ValidationError("x must not be negative."), err)

		_, err = svc.CreateAnnotation(ctx, CreateAnnotationOptions{
			StoryID: story.ID, X: 0, Y: 0, Width: 0, Height: 1,
		})
		assert.Equal(t, errcodes.ValidationError("width must be greater than zero."), err)
	})

	t.Run("rejects a partial viewport", func(t *testing.T) {
		x := 10.0
		_, err := svc.CreateAnnotation(ctx, CreateAnnotationOptions{
			StoryID: story.ID, X: 0, Y: 0, Width: 1, Height: 1,
			ViewportX: &x,
		})
		require.Error(t, err)

		cerr := &errcodes.Error{}
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, "validation_error", cerr.Code)
	})

	t.Run("accepts a full viewport", func(t *testing.T) {
		x, y, w, h := 10.0, 20.0, 300.0, 200.0
		annotation, err := svc.CreateAnnotation(ctx, CreateAnnotationOptions{
			StoryID: story.ID, X: 0, Y: 0, Width: 1, Height: 1,
			ViewportX: &x, ViewportY: &y, ViewportWidth: &w, ViewportHeight: &h,
		})
		require.NoError(t, err)
		require.NotNil(t, annotation.ViewportWidth)
		assert.Equal(t, 300.0, *annotation.ViewportWidth)
	})
}

func TestService_DeleteAnnotation(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	story := createTestStory(t, db)

	var ids []string
	for _, text := range []string{"a", "b", "c"} {
		annotation, err := svc.CreateAnnotation(ctx, CreateAnnotationOptions{
			StoryID: story.ID, Text: text, X: 0, Y: 0, Width: 1, Height: 1,
			ImageURLs: []string{"https://img.example.org/x.jpg"},
		})
		require.NoError(t, err)
		ids = append(ids, annotation.ID)
	}

	// Delete the middle one; the tail must slide down.
	require.NoError(t, svc.DeleteAnnotation(ctx, ids[1]))

	ordinals := ordinalsOf(t, db, story.ID)
	require.Len(t, ordinals, 2)
	assert.Equal(t, 0, ordinals[ids[0]])
	assert.Equal(t, 1, ordinals[ids[2]])

	count, err := db.NewSelect().
		Model((*models.AnnotationImage)(nil)).
		Where("annotation_id = ?", ids[1]).
		Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	assert.Equal(t, errcodes.NotFound("Annotation"), svc.DeleteAnnotation(ctx, uuid.NewString()))
}

func TestService_ReorderAnnotations(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	story := createTestStory(t, db)

	var ids []string
	for i := 0; i < 3; i++ {
		annotation, err := svc.CreateAnnotation(ctx, CreateAnnotationOptions{
			StoryID: story.ID, X: 0, Y: 0, Width: 1, Height: 1,
		})
		require.NoError(t, err)
		ids = append(ids, annotation.ID)
	}

	t.Run("rewrites the full sequence", func(t *testing.T) {
		err := svc.ReorderAnnotations(ctx, ReorderAnnotationsOptions{
			StoryID:       story.ID,
			AnnotationIDs: []string{ids[2], ids[0], ids[1]},
		})
		require.NoError(t, err)

		ordinals := ordinalsOf(t, db, story.ID)
		assert.Equal(t, 0, ordinals[ids[2]])
		assert.Equal(t, 1, ordinals[ids[0]])
		assert.Equal(t, 2, ordinals[ids[1]])
	})

	t.Run("rejects a partial id list", func(t *testing.T) {
		err := svc.ReorderAnnotations(ctx, ReorderAnnotationsOptions{
			StoryID:       story.ID,
			AnnotationIDs: []string{ids[0], ids[1]},
		})
		assert.Equal(t, errcodes.ValidationError("Annotation IDs must match the story's annotations exactly."), err)
	})

	t.Run("rejects duplicates", func(t *testing.T) {
		err := svc.ReorderAnnotations(ctx, ReorderAnnotationsOptions{
			StoryID:       story.ID,
			AnnotationIDs: []string{ids[0], ids[0], ids[1]},
		})
		assert.Equal(t, errcodes.ValidationError("Annotation IDs must match the story's annotations exactly."), err)
	})

	t.Run("rejects foreign ids", func(t *testing.T) {
		err := svc.ReorderAnnotations(ctx, ReorderAnnotationsOptions{
			StoryID:       story.ID,
			AnnotationIDs: []string{ids[0], ids[1], uuid.NewString()},
		})
		assert.Equal(t, errcodes.ValidationError("Annotation IDs must match the story's annotations exactly."), err)
	})

	t.Run("returns not found for a missing story", func(t *testing.T) {
		err := svc.ReorderAnnotations(ctx, ReorderAnnotationsOptions{
			StoryID:       uuid.NewString(),
			AnnotationIDs: []string{ids[0]},
		})
		assert.Equal(t, errcodes.NotFound("Story"), err)
	})
}

func TestService_UpdateAnnotation(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	story := createTestStory(t, db)

	annotation, err := svc.CreateAnnotation(ctx, CreateAnnotationOptions{
		StoryID: story.ID, Text: "before", X: 10, Y: 10, Width: 20, Height: 20,
	})
	require.NoError(t, err)

	annotation.Text = "after"
	annotation.X = 15
	err = svc.UpdateAnnotation(ctx, annotation, UpdateAnnotationOptions{Columns: []string{"text", "x"}})
	require.NoError(t, err)

	got, err := svc.RetrieveAnnotation(ctx, RetrieveAnnotationOptions{ID: &annotation.ID})
	require.NoError(t, err)
	assert.Equal(t, "after", got.Text)
	assert.Equal(t, 15.0, got.X)
	assert.Equal(t, 10.0, got.Y)

	annotation.Width = -1
	err = svc.UpdateAnnotation(ctx, annotation, UpdateAnnotationOptions{Columns: []string{"width"}})
	assert.Equal(t, errcodes.ValidationError("width must be greater than zero."), err)
}

func TestService_ImageSet(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	story := createTestStory(t, db)

	annotation, err := svc.CreateAnnotation(ctx, CreateAnnotationOptions{
		StoryID: story.ID, X: 0, Y: 0, Width: 1, Height: 1,
	})
	require.NoError(t, err)

	t.Run("add appends at the end", func(t *testing.T) {
		first, err := svc.AddImage(ctx, annotation.ID, "https://img.example.org/1.jpg")
		require.NoError(t, err)
		assert.Equal(t, 0, first.Ordinal)

		second, err := svc.AddImage(ctx, annotation.ID, "https://img.example.org/2.jpg")
		require.NoError(t, err)
		assert.Equal(t, 1, second.Ordinal)
	})

	t.Run("remove renumbers the rest", func(t *testing.T) {
		third, err := svc.AddImage(ctx, annotation.ID, "https://img.example.org/3.jpg")
		require.NoError(t, err)

		got, err := svc.RetrieveAnnotation(ctx, RetrieveAnnotationOptions{ID: &annotation.ID})
		require.NoError(t, err)
		require.Len(t, got.Images, 3)

		require.NoError(t, svc.RemoveImage(ctx, annotation.ID, got.Images[0].ID))

		got, err = svc.RetrieveAnnotation(ctx, RetrieveAnnotationOptions{ID: &annotation.ID})
		require.NoError(t, err)
		require.Len(t, got.Images, 2)
		assert.Equal(t, 0, got.Images[0].Ordinal)
		assert.Equal(t, 1, got.Images[1].Ordinal)
		assert.Equal(t, third.ID, got.Images[1].ID)
	})

	t.Run("remove of an unknown image is not found", func(t *testing.T) {
		err := svc.RemoveImage(ctx, annotation.ID, uuid.NewString())
		assert.Equal(t, errcodes.NotFound("Annotation image"), err)
	})

	t.Run("replace rewrites the whole set", func(t *testing.T) {
		images, err := svc.ReplaceImages(ctx, annotation.ID, []string{
			"https://img.example.org/new-a.jpg",
			"https://img.example.org/new-b.jpg",
		})
		require.NoError(t, err)
		require.Len(t, images, 2)
		assert.Equal(t, 0, images[0].Ordinal)
		assert.Equal(t, "https://img.example.org/new-a.jpg", images[0].ImageURL)
		assert.Equal(t, 1, images[1].Ordinal)
	})

	t.Run("replace with an empty list clears the set", func(t *testing.T) {
		images, err := svc.ReplaceImages(ctx, annotation.ID, nil)
		require.NoError(t, err)
		assert.Empty(t, images)

		got, err := svc.RetrieveAnnotation(ctx, RetrieveAnnotationOptions{ID: &annotation.ID})
		require.NoError(t, err)
		assert.Empty(t, got.Images)
	})

	t.Run("image operations on a missing annotation are not found", func(t *testing.T) {
		_, err := svc.AddImage(ctx, uuid.NewString(), "https://img.example.org/x.jpg")
		assert.Equal(t, errcodes.NotFound("Annotation"), err)

		_, err = svc.ReplaceImages(ctx, uuid.NewString(), nil)
		assert.Equal(t, errcodes.NotFound("Annotation"), err)
	})
}

func TestService_ListAnnotations(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	story := createTestStory(t, db)

	for _, text := range []string{"a", "b"} {
		_, err := svc.CreateAnnotation(ctx, CreateAnnotationOptions{
			StoryID: story.ID, Text: text, X: 0, Y: 0, Width: 1, Height: 1,
		})
		require.NoError(t, err)
	}

	annotations, err := svc.ListAnnotations(ctx, ListAnnotationsOptions{StoryID: story.ID})
	require.NoError(t, err)
	require.Len(t, annotations, 2)
	assert.Equal(t, "a", annotations[0].Text)
	assert.Equal(t, "b", annotations[1].Text)

	_, err = svc.ListAnnotations(ctx, ListAnnotationsOptions{StoryID: uuid.NewString()})
	assert.Equal(t, errcodes.NotFound("Story"), err)
}
