package stories

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

func createTestSource(t *testing.T, db *bun.DB, width, height int) *models.ImageSource {
	t.Helper()
	src := &models.ImageSource{
		ID:          uuid.NewString(),
		CreatedAt:   time.Now(),
		InfoJSONURL: "http://localhost:3000/blob/iiif/" + uuid.NewString() + "/info.json",
		Width:       width,
		Height:      height,
		SourceType:  models.SourceTypeUpload,
	}
	_, err := db.NewInsert().Model(src).Exec(context.Background())
	require.NoError(t, err)
	return src
}

func createTestAnnotation(t *testing.T, db *bun.DB, storyID string, ordinal int) *models.Annotation {
	t.Helper()
	now := time.Now()
	annotation := &models.Annotation{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
		StoryID:   storyID,
		Text:      "note",
		X:         10,
		Y:         20,
		Width:     30,
		Height:    40,
		Ordinal:   ordinal,
	}
	_, err := db.NewInsert().Model(annotation).Exec(context.Background())
	require.NoError(t, err)
	return annotation
}

func TestService_CreateStory(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	t.Run("creates from a raw image URL and trims info.json", func(t *testing.T) {
		author := "Giambattista Nolli"
		story, err := svc.CreateStory(ctx, CreateStoryOptions{
			Title:       "  Map of Rome  ",
			Author:      &author,
			ImageURL:    "https://iiif.example.org/rome/info.json",
			ImageWidth:  4000,
			ImageHeight: 3000,
		})
		require.NoError(t, err)
		assert.NotEmpty(t, story.ID)
		assert.Equal(t, "Map of Rome", story.Title)
		assert.Equal(t, "https://iiif.example.org/rome", story.ImageURL)
		assert.Equal(t, 4000, story.ImageWidth)
		assert.Equal(t, 3000, story.ImageHeight)
		assert.Nil(t, story.ImageSourceID)
	})

	t.Run("derives image fields from a linked source", func(t *testing.T) {
		src := createTestSource(t, db, 1024, 768)

		story, err := svc.CreateStory(ctx, CreateStoryOptions{
			Title:         "Uploaded",
			ImageSourceID: &src.ID,
		})
		require.NoError(t, err)
		assert.Equal(t, src.ServiceURL(), story.ImageURL)
		assert.Equal(t, 1024, story.ImageWidth)
		assert.Equal(t, 768, story.ImageHeight)
		require.NotNil(t, story.ImageSourceID)
		assert.Equal(t, src.ID, *story.ImageSourceID)
	})

	t.Run("rejects an unknown source", func(t *testing.T) {
		missing := uuid.NewString()
		_, err := svc.CreateStory(ctx, CreateStoryOptions{
			Title:         "Nope",
			ImageSourceID: &missing,
		})
		require.Error(t, err)
		assert.Equal(t, errcodes.NotFound("Image source"), err)
	})

	t.Run("rejects a source already linked to a story", func(t *testing.T) {
		src := createTestSource(t, db, 640, 480)

		_, err := svc.CreateStory(ctx, CreateStoryOptions{Title: "First", ImageSourceID: &src.ID})
		require.NoError(t, err)

		_, err = svc.CreateStory(ctx, CreateStoryOptions{Title: "Second", ImageSourceID: &src.ID})
		require.Error(t, err)

		cerr := &errcodes.Error{}
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, 409, cerr.HTTPCode)
	})
}

func TestService_RetrieveStory(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	story, err := svc.CreateStory(ctx, CreateStoryOptions{
		Title:       "Aggregate",
		ImageURL:    "https://iiif.example.org/agg",
		ImageWidth:  100,
		ImageHeight: 100,
	})
	require.NoError(t, err)

	second := createTestAnnotation(t, db, story.ID, 1)
	first := createTestAnnotation(t, db, story.ID, 0)

	now := time.Now()
	img := &models.AnnotationImage{
		ID:           uuid.NewString(),
		CreatedAt:    now,
		AnnotationID: first.ID,
		ImageURL:     "https://img.example.org/detail.jpg",
		Ordinal:      0,
	}
	_, err = db.NewInsert().Model(img).Exec(ctx)
	require.NoError(t, err)

	t.Run("loads annotations and images in ordinal order", func(t *testing.T) {
		got, err := svc.RetrieveStory(ctx, RetrieveStoryOptions{ID: &story.ID, IncludeAnnotations: true})
		require.NoError(t, err)
		require.Len(t, got.Annotations, 2)
		assert.Equal(t, first.ID, got.Annotations[0].ID)
		assert.Equal(t, second.ID, got.Annotations[1].ID)
		require.Len(t, got.Annotations[0].Images, 1)
		assert.Equal(t, "https://img.example.org/detail.jpg", got.Annotations[0].Images[0].ImageURL)
	})

	t.Run("returns not found for an unknown id", func(t *testing.T) {
		missing := uuid.NewString()
		_, err := svc.RetrieveStory(ctx, RetrieveStoryOptions{ID: &missing})
		assert.Equal(t, errcodes.NotFound("Story"), err)
	})
}

func TestService_ListStories(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	older, err := svc.CreateStory(ctx, CreateStoryOptions{
		Title: "Older", ImageURL: "https://iiif.example.org/a", ImageWidth: 10, ImageHeight: 10,
	})
	require.NoError(t, err)
	newer, err := svc.CreateStory(ctx, CreateStoryOptions{
		Title: "Newer", ImageURL: "https://iiif.example.org/b", ImageWidth: 10, ImageHeight: 10,
	})
	require.NoError(t, err)

	// Force a deterministic updated_at ordering.
	_, err = db.NewUpdate().
		Model((*models.Story)(nil)).
		Set("updated_at = ?", time.Now().Add(-time.Hour)).
		Where("id = ?", older.ID).
		Exec(ctx)
	require.NoError(t, err)

	createTestAnnotation(t, db, newer.ID, 0)
	createTestAnnotation(t, db, newer.ID, 1)

	stories, total, err := svc.ListStories(ctx, ListStoriesOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, stories, 2)
	assert.Equal(t, newer.ID, stories[0].ID)
	assert.Equal(t, 2, stories[0].AnnotationCount)
	assert.Equal(t, older.ID, stories[1].ID)
	assert.Equal(t, 0, stories[1].AnnotationCount)
}

func TestService_UpdateStory(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	story, err := svc.CreateStory(ctx, CreateStoryOptions{
		Title: "Before", ImageURL: "https://iiif.example.org/u", ImageWidth: 10, ImageHeight: 10,
	})
	require.NoError(t, err)

	desc := "A longer description."
	story.Title = "After"
	story.Description = &desc
	err = svc.UpdateStory(ctx, story, UpdateStoryOptions{Columns: []string{"title", "description"}})
	require.NoError(t, err)

	got, err := svc.RetrieveStory(ctx, RetrieveStoryOptions{ID: &story.ID})
	require.NoError(t, err)
	assert.Equal(t, "After", got.Title)
	require.NotNil(t, got.Description)
	assert.Equal(t, desc, *got.Description)
}

func TestService_DeleteAndRestoreStory(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	story, err := svc.CreateStory(ctx, CreateStoryOptions{
		Title: "Ephemeral", ImageURL: "https://iiif.example.org/d", ImageWidth: 10, ImageHeight: 10,
	})
	require.NoError(t, err)
	createTestAnnotation(t, db, story.ID, 0)

	require.NoError(t, svc.DeleteStory(ctx, story.ID))

	_, err = svc.RetrieveStory(ctx, RetrieveStoryOptions{ID: &story.ID})
	assert.Equal(t, errcodes.NotFound("Story"), err)

	deleted, err := svc.RetrieveStory(ctx, RetrieveStoryOptions{ID: &story.ID, IncludeDeleted: true})
	require.NoError(t, err)
	assert.NotNil(t, deleted.DeletedAt)

	live, liveTotal, err := svc.ListStories(ctx, ListStoriesOptions{})
	require.NoError(t, err)
	assert.Empty(t, live)
	assert.Equal(t, 0, liveTotal)

	trashed, trashedTotal, err := svc.ListStories(ctx, ListStoriesOptions{Deleted: true})
	require.NoError(t, err)
	require.Len(t, trashed, 1)
	assert.Equal(t, 1, trashedTotal)
	assert.Equal(t, story.ID, trashed[0].ID)

	restored, err := svc.RestoreStory(ctx, story.ID)
	require.NoError(t, err)
	assert.Nil(t, restored.DeletedAt)

	got, err := svc.RetrieveStory(ctx, RetrieveStoryOptions{ID: &story.ID, IncludeAnnotations: true})
	require.NoError(t, err)
	assert.Len(t, got.Annotations, 1)

	assert.Equal(t, errcodes.NotFound("Story"), svc.DeleteStory(ctx, uuid.NewString()))

	_, err = svc.RestoreStory(ctx, uuid.NewString())
	assert.Equal(t, errcodes.NotFound("Story"), err)
}
