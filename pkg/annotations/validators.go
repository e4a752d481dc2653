package annotations

// Payloads for annotation endpoints. Rectangle coordinates are pointers so
// zero is distinguishable from absent; the finite/positive checks live in the
// service since they apply to merged values on update too.
type CreateAnnotationPayload struct {
	Text           string   `json:"text" validate:"max=10000"`
	X              *float64 `json:"x" validate:"required,min=0"`
	Y              *float64 `json:"y" validate:"required,min=0"`
	Width          *float64 `json:"width" validate:"required,gt=0"`
	Height         *float64 `json:"height" validate:"required,gt=0"`
	ViewportX      *float64 `json:"viewport_x,omitempty" validate:"omitempty,min=0"`
	ViewportY      *float64 `json:"viewport_y,omitempty" validate:"omitempty,min=0"`
	ViewportWidth  *float64 `json:"viewport_width,omitempty" validate:"omitempty,gt=0"`
	ViewportHeight *float64 `json:"viewport_height,omitempty" validate:"omitempty,gt=0"`
	ImageURLs      []string `json:"image_urls,omitempty" validate:"omitempty,max=20,dive,url"`
}

type UpdateAnnotationPayload struct {
	Text           *string  `json:"text,omitempty" validate:"omitempty,max=10000"`
	X              *float64 `json:"x,omitempty" validate:"omitempty,min=0"`
	Y              *float64 `json:"y,omitempty" validate:"omitempty,min=0"`
	Width          *float64 `json:"width,omitempty" validate:"omitempty,gt=0"`
	Height         *float64 `json:"height,omitempty" validate:"omitempty,gt=0"`
	ViewportX      *float64 `json:"viewport_x,omitempty" validate:"omitempty,min=0"`
	ViewportY      *float64 `json:"viewport_y,omitempty" validate:"omitempty,min=0"`
	ViewportWidth  *float64 `json:"viewport_width,omitempty" validate:"omitempty,gt=0"`
	ViewportHeight *float64 `json:"viewport_height,omitempty" validate:"omitempty,gt=0"`
}

type ReorderAnnotationsPayload struct {
	AnnotationIDs []string `json:"annotation_ids" validate:"required,min=1,max=500,dive,required"`
}

type AddImagePayload struct {
	ImageURL string `json:"image_url" validate:"required,url"`
}

type ReplaceImagesPayload struct {
	ImageURLs []string `json:"image_urls" validate:"max=20,dive,url"`
}
