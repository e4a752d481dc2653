package iiif

import "errors"

// ErrUnsupportedImage is returned when the input bytes don't decode as a
// supported raster format or have no usable dimensions.
var ErrUnsupportedImage = errors.New("unsupported or undecodable image")

// TilingError wraps a filesystem or encoding failure that occurs while the
// tile pyramid is being written. The partial temp directory has already been
// removed by the time this surfaces.
type TilingError struct {
	Err error
}

func (e *TilingError) Error() string {
	return "tile generation failed: " + e.Err.Error()
}

func (e *TilingError) Unwrap() error {
	return e.Err
}
