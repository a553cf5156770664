package render

import (
	"sync"
	"time"

	"github.com/Avataren/slidekiosk/internal/logger"
	"github.com/Avataren/slidekiosk/internal/scheduler"
)

// Synthetic is a stand-in page renderer: it repaints a moving color
// gradient on a ticker. The pattern varies per URL and per frame so
// coalescing and throttling are visible downstream.
type Synthetic struct {
	mu      sync.Mutex
	url     string
	width   int
	height  int
	fps     int
	seq     uint64
	paint   PaintFunc
	ticker  *time.Ticker
	stopCh  chan struct{}
	running bool
}

// NewSynthetic creates a synthetic renderer at the given size.
func NewSynthetic(url string, width, height int) *Synthetic {
	return &Synthetic{
		url:    url,
		width:  width,
		height: height,
	}
}

// OnPaint registers the paint sink.
func (r *Synthetic) OnPaint(fn PaintFunc) {
	r.mu.Lock()
	r.paint = fn
	r.mu.Unlock()
}

// SetFrameRate starts or stops repainting. Zero stops the ticker.
func (r *Synthetic) SetFrameRate(fps int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if fps == r.fps && r.running == (fps > 0) {
		return
	}
	r.stopLocked()
	r.fps = fps
	if fps <= 0 {
		return
	}

	r.stopCh = make(chan struct{})
	r.ticker = time.NewTicker(time.Second / time.Duration(fps))
	r.running = true
	go r.loop(r.ticker, r.stopCh)
}

func (r *Synthetic) loop(ticker *time.Ticker, stop chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.repaint()
		}
	}
}

// repaint renders one BGRA frame and hands it to the paint sink.
func (r *Synthetic) repaint() {
	r.mu.Lock()
	paint := r.paint
	w, h := r.width, r.height
	r.seq++
	seq := r.seq
	urlByte := byte(0)
	for i := 0; i < len(r.url); i++ {
		urlByte += r.url[i]
	}
	r.mu.Unlock()

	if paint == nil {
		return
	}

	buf := make([]byte, w*h*4)
	phase := byte(seq)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * 4
			buf[i] = byte(x) + phase   // B
			buf[i+1] = byte(y) - phase // G
			buf[i+2] = urlByte         // R
			buf[i+3] = 128             // producer alpha is meaningless downstream
		}
	}
	paint(scheduler.Frame{
		Buffer:        buf,
		Width:         w,
		Height:        h,
		BackingWidth:  w,
		BackingHeight: h,
	})
}

// Resize changes the render size; the next repaint uses it.
func (r *Synthetic) Resize(width, height int) {
	r.mu.Lock()
	r.width = width
	r.height = height
	r.mu.Unlock()
}

// Navigate points the renderer at a new URL.
func (r *Synthetic) Navigate(url string) error {
	r.mu.Lock()
	r.url = url
	r.seq = 0
	r.mu.Unlock()
	logger.WithComponent("render").Debug().Str("url", url).Msg("Synthetic renderer navigated")
	return nil
}

// Reload restarts the pattern for the current URL.
func (r *Synthetic) Reload() error {
	r.mu.Lock()
	r.seq = 0
	r.mu.Unlock()
	return nil
}

// Close stops the repaint ticker.
func (r *Synthetic) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
}

func (r *Synthetic) stopLocked() {
	if !r.running {
		return
	}
	r.ticker.Stop()
	close(r.stopCh)
	r.ticker = nil
	r.stopCh = nil
	r.running = false
}
