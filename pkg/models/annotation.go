package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Annotation is one user-drawn region with commentary. The rectangle is in
// full-resolution image pixels and may be fractional; the optional viewport
// rectangle records the on-screen view extent active when the annotation was
// created (for fit-to-view playback, independent of the target rectangle).
// Ordinals are dense and zero-based per story.
type Annotation struct {
	bun.BaseModel `bun:"table:annotations,alias:a"`

	ID             string             `bun:",pk" json:"id"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
	StoryID        string             `bun:",nullzero" json:"story_id"`
	Story          *Story             `bun:"rel:belongs-to" json:"story,omitempty"`
	Text           string             `json:"text"`
	X              float64            `json:"x"`
	Y              float64            `json:"y"`
	Width          float64            `json:"width"`
	Height         float64            `json:"height"`
	ViewportX      *float64           `bun:"viewport_x" json:"viewport_x,omitempty"`
	ViewportY      *float64           `bun:"viewport_y" json:"viewport_y,omitempty"`
	ViewportWidth  *float64           `bun:"viewport_width" json:"viewport_width,omitempty"`
	ViewportHeight *float64           `bun:"viewport_height" json:"viewport_height,omitempty"`
	Ordinal        int                `json:"ordinal"`
	Images         []*AnnotationImage `bun:"rel:has-many" json:"images,omitempty"`
}
