// Package consumer is the compositor side of the pipeline: it turns
// inbound raw-pixel messages into valid GPU image resources, tolerating
// ambiguous dimension reporting, and answers the producer's initial
// frame with a one-shot acknowledgment per surface.
package consumer

import (
	"image"
	"sync"

	"golang.org/x/image/draw"

	"github.com/Avataren/slidekiosk/internal/bridge"
	"github.com/Avataren/slidekiosk/internal/logger"
)

// Emitter is the bridge surface the consumer talks back through.
type Emitter interface {
	Send(channel string, msg interface{})
	Listen(channel string, handler bridge.Handler)
}

// Consumer owns one texture per surface index plus a single
// pending-apply slot per index for frames that arrive before the scene
// is ready.
type Consumer struct {
	emitter Emitter
	maxDim  int
	dpr     float64

	mu       sync.Mutex
	ready    bool
	textures map[int]*Texture
	pending  map[int]bridge.FrameMessage
	ackSent  map[int]bool

	generation uint64
}

// New creates a consumer and registers it on the frame channel.
// maxDim is the largest texture edge the platform supports; dpr is the
// display's device pixel ratio, used when frames declare only a
// logical size.
func New(emitter Emitter, maxDim int, dpr float64) *Consumer {
	if dpr <= 0 {
		dpr = 1.0
	}
	c := &Consumer{
		emitter:  emitter,
		maxDim:   maxDim,
		dpr:      dpr,
		textures: make(map[int]*Texture),
		pending:  make(map[int]bridge.FrameMessage),
		ackSent:  make(map[int]bool),
	}
	emitter.Listen(bridge.ChannelFrame, func(msg interface{}) {
		if fm, ok := msg.(bridge.FrameMessage); ok {
			c.handleFrame(fm)
		}
	})
	return c
}

// SetReady marks the scene ready (or not). Until ready, inbound frames
// park in the per-surface pending slot and are retried on Tick.
func (c *Consumer) SetReady(ready bool) {
	c.mu.Lock()
	c.ready = ready
	c.mu.Unlock()
}

// handleFrame is invoked by the bridge for every delivered frame
// message.
func (c *Consumer) handleFrame(msg bridge.FrameMessage) {
	c.mu.Lock()
	if !c.ready {
		// Scene not ready: park the frame. A newer arrival for the
		// same surface replaces the slot; there is never a queue.
		c.pending[msg.Index] = msg
		c.mu.Unlock()
		return
	}
	c.applyLocked(msg)
	c.mu.Unlock()
}

// Tick retries parked frames. Called once per rendering tick by the
// compositor loop.
func (c *Consumer) Tick() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.ready || len(c.pending) == 0 {
		return
	}
	for index, msg := range c.pending {
		delete(c.pending, index)
		c.applyLocked(msg)
	}
}

// applyLocked validates, decodes, and uploads one frame. A frame that
// fails validation emits a diagnostic and leaves the texture untouched;
// it never marks dirty.
func (c *Consumer) applyLocked(msg bridge.FrameMessage) {
	log := logger.WithSurface("consumer", msg.Index)

	dims, err := resolveDimensions(msg.Size, len(msg.Buffer), c.dpr)
	if err != nil {
		log.Warn().Err(err).
			Str("transport", msg.Format.String()).
			Msg("Frame rejected")
		c.emitter.Send(bridge.ChannelDiag, bridge.NewDiag(msg.Index, bridge.DiagFrameRejected, err.Error()))
		return
	}
	if dims.warn != "" {
		log.Warn().Str("detail", dims.warn).Msg("Frame dimensions reconciled best-effort")
		c.emitter.Send(bridge.ChannelDiag, bridge.NewDiag(msg.Index, bridge.DiagFrameWarning, dims.warn))
	}

	rgba := decodeBGRA(msg.Buffer, dims.width, dims.height)

	width, height := clampDimensions(dims.width, dims.height, c.maxDim)
	if width != dims.width || height != dims.height {
		log.Warn().
			Int("width", dims.width).Int("height", dims.height).
			Int("max", c.maxDim).
			Msg("Frame exceeds maximum texture dimension, downscaling")
		scaled := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), rgba, rgba.Bounds(), draw.Src, nil)
		rgba = scaled
	}

	tex, ok := c.textures[msg.Index]
	if !ok || tex.Width != width || tex.Height != height {
		// Dimension change: dispose and rebuild with a fresh backing
		// buffer rather than resizing in place.
		c.generation++
		tex = newTexture(width, height, c.generation)
		c.textures[msg.Index] = tex
	}
	copy(tex.Pix, rgba.Pix)
	tex.markDirty()

	log.Debug().
		Int("width", width).Int("height", height).
		Str("transport", msg.Format.String()).
		Msg("Frame applied")

	if !c.ackSent[msg.Index] {
		c.ackSent[msg.Index] = true
		index := msg.Index
		// The legacy transport delivers frames synchronously on the
		// producer's own call stack; acking off this goroutine keeps
		// the two sides from re-entering each other.
		go c.emitter.Send(bridge.ChannelAck, bridge.AckMessage{Index: index})
	}
}

// decodeBGRA converts a producer BGRA buffer into an RGBA image with
// alpha forced fully opaque. Source pages may render translucently but
// the slideshow always shows opaque frames, so the producer's alpha is
// overwritten, not passed through. A short buffer zero-fills the
// remainder; a long one is truncated. That slack is allowed only in
// this scratch image, never in the texture itself.
func decodeBGRA(buf []byte, width, height int) *image.RGBA {
	rgba := image.NewRGBA(image.Rect(0, 0, width, height))
	n := width * height * bytesPerPixel
	if len(buf) < n {
		n = len(buf) - len(buf)%bytesPerPixel
	}
	for i := 0; i+3 < n; i += bytesPerPixel {
		rgba.Pix[i] = buf[i+2]   // R
		rgba.Pix[i+1] = buf[i+1] // G
		rgba.Pix[i+2] = buf[i]   // B
		rgba.Pix[i+3] = 255      // alpha forced opaque
	}
	return rgba
}

// Texture returns the texture for a surface index, or nil if no frame
// has been applied yet. The returned texture is owned by the consumer;
// the compositor reads Pix and TakeDirty between frames.
func (c *Consumer) Texture(index int) *Texture {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.textures[index]
}

// Snapshot copies a texture's pixels into a standalone RGBA image, for
// observation surfaces like the MJPEG preview.
func (c *Consumer) Snapshot(index int) *image.RGBA {
	c.mu.Lock()
	defer c.mu.Unlock()

	tex, ok := c.textures[index]
	if !ok {
		return nil
	}
	img := image.NewRGBA(image.Rect(0, 0, tex.Width, tex.Height))
	copy(img.Pix, tex.Pix)
	return img
}

// Indices lists surface indices holding a texture.
func (c *Consumer) Indices() []int {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]int, 0, len(c.textures))
	for i := range c.textures {
		out = append(out, i)
	}
	return out
}

// Reset drops all per-surface state: textures, pending slots, and ack
// flags. Used when the slideshow tears down and rebuilds surfaces.
func (c *Consumer) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.textures = make(map[int]*Texture)
	c.pending = make(map[int]bridge.FrameMessage)
	c.ackSent = make(map[int]bool)
}
