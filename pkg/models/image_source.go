package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Source types for an ImageSource.
const (
	SourceTypeUpload   = "upload"
	SourceTypeExternal = "external"
)

// ImageSource is one ingested or externally referenced IIIF image. For
// uploaded sources the ID doubles as the blob-storage path segment under
// iiif/{id}/. Width and height are set at tile-generation time and are never
// edited afterwards.
type ImageSource struct {
	bun.BaseModel `bun:"table:image_sources,alias:img"`

	ID           string    `bun:",pk" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	InfoJSONURL  string    `bun:"info_json_url,nullzero" json:"info_json_url"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	SourceType   string    `bun:",nullzero" json:"source_type"`
	OriginalName *string   `json:"original_name,omitempty"`
	Story        *Story    `bun:"rel:has-one,join:id=image_source_id" json:"story,omitempty"`
}

// ServiceURL returns the base IIIF Image API service identifier, i.e. the
// info.json URL with the /info.json suffix stripped.
func (img *ImageSource) ServiceURL() string {
	return TrimInfoJSONSuffix(img.InfoJSONURL)
}
