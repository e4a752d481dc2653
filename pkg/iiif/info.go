package iiif

// ImageInfo is the IIIF Image API v3 info.json document written alongside a
// static tile pyramid. The profile is level0: only the exact region/size
// combinations on disk are served.
type ImageInfo struct {
	Context  string     `json:"@context"`
	ID       string     `json:"id"`
	Type     string     `json:"type"`
	Protocol string     `json:"protocol"`
	Profile  string     `json:"profile"`
	Width    int        `json:"width"`
	Height   int        `json:"height"`
	Tiles    []TileInfo `json:"tiles"`
}

// TileInfo describes one tiling scheme: tile dimensions plus the pyramid's
// scale factors.
type TileInfo struct {
	Width        int   `json:"width"`
	Height       int   `json:"height"`
	ScaleFactors []int `json:"scaleFactors"`
}

const (
	imageContext  = "http://iiif.io/api/image/3/context.json"
	imageProtocol = "http://iiif.io/api/image"
)
