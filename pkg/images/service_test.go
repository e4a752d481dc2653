package images

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tessellahq/tessella/pkg/blob"
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

func setupTestStore(t *testing.T) *blob.LocalStore {
	t.Helper()
	store, err := blob.NewLocalStore(t.TempDir(), "http://localhost:3000/blob")
	require.NoError(t, err)
	return store
}

func makeTestPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestService_IngestImage(t *testing.T) {
	db := setupTestDB(t)
	store := setupTestStore(t)
	svc := NewService(db, store, 64)
	ctx := context.Background()

	t.Run("generates and uploads a tile pyramid", func(t *testing.T) {
		src, err := svc.IngestImage(ctx, IngestImageOptions{
			Data:         makeTestPNG(t, 120, 90),
			OriginalName: "map.png",
		})
		require.NoError(t, err)
		assert.Equal(t, 120, src.Width)
		assert.Equal(t, 90, src.Height)
		assert.Equal(t, models.SourceTypeUpload, src.SourceType)
		require.NotNil(t, src.OriginalName)
		assert.Equal(t, "map.png", *src.OriginalName)
		assert.Equal(t, fmt.Sprintf("http://localhost:3000/blob/iiif/%s/info.json", src.ID), src.InfoJSONURL)

		objects, err := store.List(ctx, "iiif/"+src.ID)
		require.NoError(t, err)

		keys := map[string]bool{}
		for _, obj := range objects {
			keys[obj.Key] = true
		}
		assert.True(t, keys["iiif/"+src.ID+"/info.json"])
		assert.True(t, keys["iiif/"+src.ID+"/full/max/0/default.jpg"])
		assert.True(t, keys["iiif/"+src.ID+"/0,0,64,64/64,64/0/default.jpg"])
	})

	t.Run("rejects non-image data", func(t *testing.T) {
		_, err := svc.IngestImage(ctx, IngestImageOptions{
			Data: []byte("definitely not an image"),
		})
		assert.Equal(t, errcodes.UnsupportedMediaType(), err)
	})
}

func TestService_RegisterExternal(t *testing.T) {
	db := setupTestDB(t)
	store := setupTestStore(t)
	svc := NewService(db, store, 64)
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/iiif/remote/info.json":
			fmt.Fprint(w, `{"width":5000,"height":4000,"type":"ImageService3"}`)
		case "/iiif/bogus/info.json":
			fmt.Fprint(w, `{"hello":"world"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)

	t.Run("appends info.json to a bare service URL", func(t *testing.T) {
		src, err := svc.RegisterExternal(ctx, server.URL+"/iiif/remote")
		require.NoError(t, err)
		assert.Equal(t, server.URL+"/iiif/remote/info.json", src.InfoJSONURL)
		assert.Equal(t, 5000, src.Width)
		assert.Equal(t, 4000, src.Height)
		assert.Equal(t, models.SourceTypeExternal, src.SourceType)
		assert.Equal(t, server.URL+"/iiif/remote", src.ServiceURL())
	})

	t.Run("rejects an unreachable document", func(t *testing.T) {
		_, err := svc.RegisterExternal(ctx, server.URL+"/iiif/missing/info.json")
		assert.Equal(t, errcodes.ValidationError("Could not fetch info.json from the given URL."), err)
	})

	t.Run("rejects a document without dimensions", func(t *testing.T) {
		_, err := svc.RegisterExternal(ctx, server.URL+"/iiif/bogus/info.json")
		assert.Equal(t, errcodes.ValidationError("info.json did not contain valid width and height."), err)
	})
}

func TestService_DeleteSource(t *testing.T) {
	db := setupTestDB(t)
	store := setupTestStore(t)
	svc := NewService(db, store, 64)
	ctx := context.Background()

	t.Run("refuses while a story references the source", func(t *testing.T) {
		src, err := svc.IngestImage(ctx, IngestImageOptions{Data: makeTestPNG(t, 40, 30)})
		require.NoError(t, err)

		now := time.Now()
		deletedAt := now
		story := &models.Story{
			ID:            uuid.NewString(),
			CreatedAt:     now,
			UpdatedAt:     now,
			DeletedAt:     &deletedAt,
			Title:         "Linked",
			ImageURL:      src.ServiceURL(),
			ImageWidth:    src.Width,
			ImageHeight:   src.Height,
			ImageSourceID: &src.ID,
		}
		_, err = db.NewInsert().Model(story).Exec(ctx)
		require.NoError(t, err)

		// Even a soft-deleted story keeps the source pinned.
		err = svc.DeleteSource(ctx, src.ID)
		assert.Equal(t, errcodes.Conflict("Image source is still referenced by a story."), err)
	})

	t.Run("removes the pyramid and the record", func(t *testing.T) {
		src, err := svc.IngestImage(ctx, IngestImageOptions{Data: makeTestPNG(t, 40, 30)})
		require.NoError(t, err)

		require.NoError(t, svc.DeleteSource(ctx, src.ID))

		objects, err := store.List(ctx, "iiif/"+src.ID)
		require.NoError(t, err)
		assert.Empty(t, objects)

		_, err = svc.RetrieveSource(ctx, RetrieveSourceOptions{ID: &src.ID})
		assert.Equal(t, errcodes.NotFound("Image source"), err)
	})

	t.Run("returns not found for an unknown source", func(t *testing.T) {
		assert.Equal(t, errcodes.NotFound("Image source"), svc.DeleteSource(ctx, uuid.NewString()))
	})
}
