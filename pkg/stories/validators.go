package stories

// Query params for story endpoints.
type ListStoriesQuery struct {
	Deleted bool `query:"deleted" json:"deleted,omitempty"`
	Limit   int  `query:"limit" json:"limit,omitempty" default:"50" validate:"min=1,max=100"`
	Offset  int  `query:"offset" json:"offset,omitempty" validate:"min=0"`
}

// Payloads for create/update endpoints. A story is created either from an
// ingested image source (image_source_id) or from a raw IIIF image URL plus
// its dimensions.
type CreateStoryPayload struct {
	Title         string  `json:"title" validate:"required,min=1,max=300"`
	Author        *string `json:"author,omitempty" validate:"omitempty,max=300"`
	Description   *string `json:"description,omitempty" validate:"omitempty,max=5000"`
	Attribution   *string `json:"attribution,omitempty" validate:"omitempty,max=1000"`
	ImageURL      string  `json:"image_url" validate:"required_without=ImageSourceID,omitempty,url"`
	ImageWidth    int     `json:"image_width" validate:"required_without=ImageSourceID,omitempty,min=1"`
	ImageHeight   int     `json:"image_height" validate:"required_without=ImageSourceID,omitempty,min=1"`
	ImageSourceID *string `json:"image_source_id,omitempty"`
}

type UpdateStoryPayload struct {
	Title       *string `json:"title,omitempty" validate:"omitempty,min=1,max=300"`
	Author      *string `json:"author,omitempty" validate:"omitempty,max=300"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=5000"`
	Attribution *string `json:"attribution,omitempty" validate:"omitempty,max=1000"`
	ImageURL    *string `json:"image_url,omitempty" validate:"omitempty,url"`
	ImageWidth  *int    `json:"image_width,omitempty" validate:"omitempty,min=1"`
	ImageHeight *int    `json:"image_height,omitempty" validate:"omitempty,min=1"`
}
