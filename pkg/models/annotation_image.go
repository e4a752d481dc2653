package models

import (
	"time"

	"github.com/uptrace/bun"
)

// AnnotationImage is one illustrative image attached to an annotation.
// Ordinals are dense and zero-based per annotation; the whole set is
// rewritten on replace, so no other record may reference one by ID.
type AnnotationImage struct {
	bun.BaseModel `bun:"table:annotation_images,alias:ai"`

	ID           string      `bun:",pk" json:"id"`
	CreatedAt    time.Time   `json:"created_at"`
	AnnotationID string      `bun:",nullzero" json:"annotation_id"`
	Annotation   *Annotation `bun:"rel:belongs-to" json:"annotation,omitempty"`
	ImageURL     string      `bun:"image_url,nullzero" json:"image_url"`
	Ordinal      int         `json:"ordinal"`
}
