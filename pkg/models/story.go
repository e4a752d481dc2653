package models

import (
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// Story is an annotation project bound to exactly one source image. Image
// dimensions are denormalized from the source so manifest generation never
// needs a second fetch. Deletion is a soft delete; restore clears deleted_at.
type Story struct {
	bun.BaseModel `bun:"table:stories,alias:st"`

	ID            string        `bun:",pk" json:"id"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	DeletedAt     *time.Time    `bun:",soft_delete" json:"deleted_at,omitempty"`
	Title         string        `bun:",nullzero" json:"title"`
	Author        *string       `json:"author,omitempty"`
	Description   *string       `json:"description,omitempty"`
	Attribution   *string       `json:"attribution,omitempty"`
	ImageURL      string        `bun:"image_url,nullzero" json:"image_url"`
	ImageWidth    int           `json:"image_width"`
	ImageHeight   int           `json:"image_height"`
	ImageSourceID *string       `json:"image_source_id,omitempty"`
	ImageSource   *ImageSource  `bun:"rel:belongs-to" json:"image_source,omitempty"`
	Annotations   []*Annotation `bun:"rel:has-many" json:"annotations,omitempty"`

	AnnotationCount int `bun:",scanonly" json:"annotation_count"`
}

// TrimInfoJSONSuffix strips a trailing /info.json from a IIIF image URL,
// leaving the base service identifier.
func TrimInfoJSONSuffix(url string) string {
	return strings.TrimSuffix(url, "/info.json")
}
