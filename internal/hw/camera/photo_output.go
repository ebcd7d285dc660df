package camera

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/cjeanneret/CloseUpCam/internal/debug"
	"github.com/disintegration/imaging"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

const maxRenderWidth = 1280

// SimulatedPhotoOutput renders a synthetic frame at the device's active
// format and zoom, and encodes it as JPEG.
type SimulatedPhotoOutput struct {
	Quality int
}

// NewSimulatedPhotoOutput creates a JPEG output with the given quality (1-100).
func NewSimulatedPhotoOutput(quality int) *SimulatedPhotoOutput {
	if quality <= 0 || quality > 100 {
		quality = 90
	}
	return &SimulatedPhotoOutput{Quality: quality}
}

func (o *SimulatedPhotoOutput) Name() string { return "photo" }

func (o *SimulatedPhotoOutput) CapturePhoto(ctx context.Context, dev Device) (*Photo, error) {
	if dev == nil {
		return nil, fmt.Errorf("capture photo: no device")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f := dev.Profile().ActiveFormat
	w, h := f.Width, f.Height
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("capture photo: invalid format %dx%d", w, h)
	}
	if w > maxRenderWidth {
		h = h * maxRenderWidth / w
		w = maxRenderWidth
	}

	zoom := dev.ZoomFactor()
	frame := renderTestPattern(w, h)
	if zoom > 1 {
		cw, ch := int(float64(w)/zoom), int(float64(h)/zoom)
		if cw < 1 {
			cw = 1
		}
		if ch < 1 {
			ch = 1
		}
		frame = imaging.Resize(imaging.CropCenter(frame, cw, ch), w, h, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, frame, imaging.JPEG, imaging.JPEGQuality(o.Quality)); err != nil {
		return nil, fmt.Errorf("encode photo: %w", err)
	}

	photo := &Photo{
		ID:         uuid.NewString(),
		CapturedAt: time.Now(),
		Format:     "jpeg",
		Width:      w,
		Height:     h,
		ZoomFactor: zoom,
		Data:       buf.Bytes(),
	}
	debug.Info("Camera: captured %s (%dx%d, zoom %.2fx, %s)", photo.ID, w, h, zoom, humanize.Bytes(uint64(len(photo.Data))))
	return photo, nil
}

// renderTestPattern draws concentric squares so that zoom is visible in the output.
func renderTestPattern(w, h int) *image.NRGBA {
	img := imaging.New(w, h, color.NRGBA{R: 32, G: 32, B: 32, A: 255})
	cx, cy := w/2, h/2
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx, dy := x-cx, y-cy
			if dx < 0 {
				dx = -dx
			}
			if dy < 0 {
				dy = -dy
			}
			d := dx
			if dy > d {
				d = dy
			}
			if (d/16)%2 == 0 {
				img.SetNRGBA(x, y, color.NRGBA{R: uint8(255 * x / w), G: uint8(255 * y / h), B: 200, A: 255})
			}
		}
	}
	return img
}
