package images

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/segmentio/encoding/json"
	"github.com/tessellahq/tessella/pkg/blob"
	"github.com/tessellahq/tessella/pkg/errcodes"
	"github.com/tessellahq/tessella/pkg/iiif"
	"github.com/tessellahq/tessella/pkg/models"
	"github.com/uptrace/bun"
)

type Service struct {
	db         *bun.DB
	store      blob.Store
	tileSize   int
	httpClient *http.Client
}

func NewService(db *bun.DB, store blob.Store, tileSize int) *Service {
	return &Service{
		db:       db,
		store:    store,
		tileSize: tileSize,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type IngestImageOptions struct {
	Data         []byte
	OriginalName string
}

// IngestImage turns an uploaded image into a static IIIF Image API tile
// pyramid on the blob store and records it as an image source. The source ID
// doubles as the blob path segment under iiif/.
func (svc *Service) IngestImage(ctx context.Context, opts IngestImageOptions) (*models.ImageSource, error) {
	mtype := mimetype.Detect(opts.Data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return nil, errcodes.UnsupportedMediaType()
	}

	id := uuid.NewString()

	result, err := iiif.GenerateTiles(opts.Data, id, svc.store.BaseURL(), iiif.TileOptions{
		TileSize: svc.tileSize,
	})
	if errors.Is(err, iiif.ErrUnsupportedImage) {
		return nil, errcodes.UnsupportedMediaType()
	} else if err != nil {
		return nil, errors.WithStack(err)
	}
	defer os.RemoveAll(result.TempDir)

	_, err = blob.UploadDirectory(ctx, svc.store, result.TileDir, "iiif/"+id)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn("failed to upload tile pyramid", logger.Data{"image_source_id": id, "error": err.Error()})
		return nil, errcodes.StorageError("upload image tiles")
	}

	src := &models.ImageSource{
		ID:          id,
		CreatedAt:   time.Now(),
		InfoJSONURL: svc.store.BaseURL() + "/iiif/" + id + "/info.json",
		Width:       result.Width,
		Height:      result.Height,
		SourceType:  models.SourceTypeUpload,
	}
	if opts.OriginalName != "" {
		src.OriginalName = &opts.OriginalName
	}

	_, err = svc.db.
		NewInsert().
		Model(src).
		Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return src, nil
}

// RegisterExternal records a IIIF image hosted elsewhere. The URL may point
// at either the info.json document or the bare service; dimensions are read
// from the live info.json.
func (svc *Service) RegisterExternal(ctx context.Context, infoURL string) (*models.ImageSource, error) {
	infoURL = strings.TrimSuffix(strings.TrimSpace(infoURL), "/")
	if !strings.HasSuffix(infoURL, "/info.json") {
		infoURL += "/info.json"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, infoURL, nil)
	if err != nil {
		return nil, errcodes.ValidationError("Could not fetch info.json from the given URL.")
	}

	resp, err := svc.httpClient.Do(req)
	if err != nil {
		return nil, errcodes.ValidationError("Could not fetch info.json from the given URL.")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errcodes.ValidationError("Could not fetch info.json from the given URL.")
	}

	var info struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil || info.Width <= 0 || info.Height <= 0 {
		return nil, errcodes.ValidationError("info.json did not contain valid width and height.")
	}

	src := &models.ImageSource{
		ID:          uuid.NewString(),
		CreatedAt:   time.Now(),
		InfoJSONURL: infoURL,
		Width:       info.Width,
		Height:      info.Height,
		SourceType:  models.SourceTypeExternal,
	}

	_, err = svc.db.
		NewInsert().
		Model(src).
		Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return src, nil
}

type RetrieveSourceOptions struct {
	ID *string
}

func (svc *Service) RetrieveSource(ctx context.Context, opts RetrieveSourceOptions) (*models.ImageSource, error) {
	src := &models.ImageSource{}

	q := svc.db.
		NewSelect().
		Model(src).
		Relation("Story")

	if opts.ID != nil {
		q = q.Where("img.id = ?", *opts.ID)
	}

	err := q.Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errcodes.NotFound("Image source")
	} else if err != nil {
		return nil, errors.WithStack(err)
	}

	return src, nil
}

func (svc *Service) ListSources(ctx context.Context) ([]*models.ImageSource, error) {
	sources := []*models.ImageSource{}

	err := svc.db.
		NewSelect().
		Model(&sources).
		Relation("Story").
		Order("img.created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return sources, nil
}

// DeleteSource removes an image source and, for uploads, its tile pyramid.
// Blobs go first: if the store fails, the record stays so the delete can be
// retried. A source still linked to a story (even a soft-deleted one) can't
// be removed.
func (svc *Service) DeleteSource(ctx context.Context, id string) error {
	src := &models.ImageSource{}
	err := svc.db.
		NewSelect().
		Model(src).
		Where("img.id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return errcodes.NotFound("Image source")
	} else if err != nil {
		return errors.WithStack(err)
	}

	linked, err := svc.db.
		NewSelect().
		Model((*models.Story)(nil)).
		Where("st.image_source_id = ?", id).
		WhereAllWithDeleted().
		Exists(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	if linked {
		return errcodes.Conflict("Image source is still referenced by a story.")
	}

	if src.SourceType == models.SourceTypeUpload {
		if err := blob.DeletePrefix(ctx, svc.store, "iiif/"+id); err != nil {
			log := logger.FromContext(ctx)
			log.Warn("failed to delete tile pyramid", logger.Data{"image_source_id": id, "error": err.Error()})
			return errcodes.StorageError("delete image tiles")
		}
	}

	_, err = svc.db.
		NewDelete().
		Model((*models.ImageSource)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return errors.WithStack(err)
}
