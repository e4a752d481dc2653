package iiif

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif" // Register GIF decoder
	"image/jpeg"
	_ "image/png" // Register PNG decoder
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	_ "golang.org/x/image/bmp"  // Register BMP decoder
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff" // Register TIFF decoder
	_ "golang.org/x/image/webp" // Register WebP decoder
)

// DefaultTileSize is the tile edge length used when TileOptions doesn't
// specify one.
const DefaultTileSize = 512

const jpegQuality = 80

type TileOptions struct {
	TileSize int
}

// TileResult describes a generated tile pyramid. TileDir is the subtree to
// upload under iiif/{imageID}/; TempDir is the parent the caller must remove
// once the upload finishes (or fails).
type TileResult struct {
	TempDir string
	TileDir string
	Width   int
	Height  int
}

// GenerateTiles converts raw image bytes into a IIIF Image API v3 static tile
// pyramid rooted at a fresh temp directory. The info.json id is derived from
// baseURL as {baseURL}/iiif/{imageID}; that is where the tiles must be
// reachable once uploaded. No uploading happens here. On any failure the temp
// directory is removed before the error is returned.
func GenerateTiles(data []byte, imageID, baseURL string, opts TileOptions) (*TileResult, error) {
	tileSize := opts.TileSize
	if tileSize <= 0 {
		tileSize = DefaultTileSize
	}

	tempDir, err := os.MkdirTemp("", "iiif-")
	if err != nil {
		return nil, &TilingError{Err: errors.Wrap(err, "failed to create temp directory")}
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		_ = os.RemoveAll(tempDir)
		return nil, errors.WithStack(ErrUnsupportedImage)
	}

	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		_ = os.RemoveAll(tempDir)
		return nil, errors.WithStack(ErrUnsupportedImage)
	}

	tileDir := filepath.Join(tempDir, imageID)
	serviceID := baseURL + "/iiif/" + imageID

	if err := writePyramid(src, width, height, tileSize, tileDir, serviceID); err != nil {
		_ = os.RemoveAll(tempDir)
		return nil, err
	}

	return &TileResult{
		TempDir: tempDir,
		TileDir: tileDir,
		Width:   width,
		Height:  height,
	}, nil
}

func writePyramid(src image.Image, width, height, tileSize int, tileDir, serviceID string) error {
	// Normalize to NRGBA once so every level supports SubImage and scaling.
	full := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.Draw(full, full.Bounds(), src, src.Bounds().Min, draw.Src)

	factors := scaleFactors(width, height, tileSize)

	for _, s := range factors {
		levelW := ceilDiv(width, s)
		levelH := ceilDiv(height, s)

		level := full
		if s > 1 {
			level = image.NewNRGBA(image.Rect(0, 0, levelW, levelH))
			draw.CatmullRom.Scale(level, level.Bounds(), full, full.Bounds(), draw.Src, nil)
		}

		for ty := 0; ty*tileSize < levelH; ty++ {
			for tx := 0; tx*tileSize < levelW; tx++ {
				// Tile extent on the downscaled level.
				sx, sy := tx*tileSize, ty*tileSize
				sw := min(tileSize, levelW-sx)
				sh := min(tileSize, levelH-sy)

				// Region extent in full-resolution coordinates.
				rx, ry := sx*s, sy*s
				rw := min(tileSize*s, width-rx)
				rh := min(tileSize*s, height-ry)

				dir := filepath.Join(tileDir,
					fmt.Sprintf("%d,%d,%d,%d", rx, ry, rw, rh),
					fmt.Sprintf("%d,%d", sw, sh),
					"0")
				if err := os.MkdirAll(dir, 0755); err != nil {
					return &TilingError{Err: errors.Wrap(err, "failed to create tile directory")}
				}

				tile := level.SubImage(image.Rect(sx, sy, sx+sw, sy+sh))
				if err := writeJPEG(filepath.Join(dir, "default.jpg"), tile); err != nil {
					return err
				}
			}
		}
	}

	// Full-size rendition; the manifest's painting body points at it.
	fullDir := filepath.Join(tileDir, "full", "max", "0")
	if err := os.MkdirAll(fullDir, 0755); err != nil {
		return &TilingError{Err: errors.Wrap(err, "failed to create full-size directory")}
	}
	if err := writeJPEG(filepath.Join(fullDir, "default.jpg"), full); err != nil {
		return err
	}

	info := ImageInfo{
		Context:  imageContext,
		ID:       serviceID,
		Type:     "ImageService3",
		Protocol: imageProtocol,
		Profile:  "level0",
		Width:    width,
		Height:   height,
		Tiles: []TileInfo{
			{Width: tileSize, Height: tileSize, ScaleFactors: factors},
		},
	}
	data, err := json.Marshal(info)
	if err != nil {
		return &TilingError{Err: errors.Wrap(err, "failed to marshal info.json")}
	}
	if err := os.WriteFile(filepath.Join(tileDir, "info.json"), data, 0644); err != nil {
		return &TilingError{Err: errors.Wrap(err, "failed to write info.json")}
	}

	return nil
}

// scaleFactors returns the power-of-two pyramid ladder: 1, 2, 4, ... up to
// the first factor at which the whole downscaled image fits in one tile.
func scaleFactors(width, height, tileSize int) []int {
	factors := []int{1}
	s := 1
	for ceilDiv(width, s) > tileSize || ceilDiv(height, s) > tileSize {
		s *= 2
		factors = append(factors, s)
	}
	return factors
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

func writeJPEG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return &TilingError{Err: errors.Wrap(err, "failed to create tile file")}
	}
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		f.Close()
		return &TilingError{Err: errors.Wrap(err, "failed to encode tile")}
	}
	if err := f.Close(); err != nil {
		return &TilingError{Err: errors.Wrap(err, "failed to close tile file")}
	}
	return nil
}
