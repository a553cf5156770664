// Package preview exposes the consumer's textures as Motion JPEG over
// HTTP, so the state of each surface can be watched in a browser while
// the kiosk runs headless.
package preview

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"time"

	"golang.org/x/image/draw"

	"github.com/Avataren/slidekiosk/internal/logger"
)

// Source supplies texture snapshots per surface index.
type Source interface {
	Snapshot(index int) *image.RGBA
}

// Streamer serves MJPEG streams of surface textures.
type Streamer struct {
	source   Source
	fps      int
	maxWidth int
	quality  int
}

// NewStreamer creates a streamer reading from source. maxWidth bounds
// the encoded frame width; larger textures are scaled down for the
// wire.
func NewStreamer(source Source, fps, maxWidth int) *Streamer {
	if fps <= 0 {
		fps = 10
	}
	if maxWidth <= 0 {
		maxWidth = 1280
	}
	return &Streamer{
		source:   source,
		fps:      fps,
		maxWidth: maxWidth,
		quality:  85,
	}
}

// Handler streams the texture for one surface index as
// multipart/x-mixed-replace until the client disconnects.
func (s *Streamer) Handler(index int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Connection", "close")

		log := logger.WithSurface("preview", index)
		log.Debug().Msg("Preview client connected")
		defer log.Debug().Msg("Preview client disconnected")

		ticker := time.NewTicker(time.Second / time.Duration(s.fps))
		defer ticker.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
			}

			img := s.source.Snapshot(index)
			if img == nil {
				continue
			}
			data, err := s.encode(img)
			if err != nil {
				log.Warn().Err(err).Msg("Failed to encode preview frame")
				continue
			}

			if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(data)); err != nil {
				return
			}
			if _, err := w.Write(data); err != nil {
				return
			}
			if _, err := fmt.Fprintf(w, "\r\n"); err != nil {
				return
			}
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}
	}
}

// encode scales the snapshot down to the wire width if needed and
// JPEG-encodes it.
func (s *Streamer) encode(img *image.RGBA) ([]byte, error) {
	if img.Bounds().Dx() > s.maxWidth {
		scale := float64(s.maxWidth) / float64(img.Bounds().Dx())
		h := int(float64(img.Bounds().Dy()) * scale)
		if h < 1 {
			h = 1
		}
		scaled := image.NewRGBA(image.Rect(0, 0, s.maxWidth, h))
		draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), img, img.Bounds(), draw.Src, nil)
		img = scaled
	}

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: s.quality}); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return buf.Bytes(), nil
}
