package images

// Payload for registering an externally hosted IIIF image. The URL may be
// the info.json document itself or the bare image service.
type RegisterExternalPayload struct {
	InfoJSONURL string `json:"info_json_url" validate:"required,url"`
}
