package render

import (
	"testing"
	"time"

	"github.com/Avataren/slidekiosk/internal/scheduler"
)

func TestSyntheticPaintsAtFrameRate(t *testing.T) {
	r := NewSynthetic("https://example.com", 4, 2)
	defer r.Close()

	paints := make(chan scheduler.Frame, 32)
	r.OnPaint(func(f scheduler.Frame) {
		select {
		case paints <- f:
		default:
		}
	})

	r.SetFrameRate(100)

	select {
	case f := <-paints:
		if f.Width != 4 || f.Height != 2 {
			t.Errorf("frame %dx%d, want 4x2", f.Width, f.Height)
		}
		if len(f.Buffer) != 4*2*4 {
			t.Errorf("buffer %d bytes, want %d", len(f.Buffer), 4*2*4)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no paint within deadline")
	}
}

func TestSyntheticZeroFrameRateStopsPainting(t *testing.T) {
	r := NewSynthetic("https://example.com", 2, 2)
	defer r.Close()

	paints := make(chan scheduler.Frame, 32)
	r.OnPaint(func(f scheduler.Frame) {
		select {
		case paints <- f:
		default:
		}
	})

	r.SetFrameRate(100)
	select {
	case <-paints:
	case <-time.After(2 * time.Second):
		t.Fatal("never started painting")
	}

	r.SetFrameRate(0)
	// Drain anything already in flight, then expect silence.
	time.Sleep(50 * time.Millisecond)
	for len(paints) > 0 {
		<-paints
	}
	select {
	case <-paints:
		t.Error("paint arrived after frame rate was zeroed")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSyntheticResizeTakesEffectOnNextPaint(t *testing.T) {
	r := NewSynthetic("https://example.com", 2, 2)
	defer r.Close()

	paints := make(chan scheduler.Frame, 32)
	r.OnPaint(func(f scheduler.Frame) {
		select {
		case paints <- f:
		default:
		}
	})

	r.Resize(6, 3)
	r.SetFrameRate(100)

	select {
	case f := <-paints:
		if f.Width != 6 || f.Height != 3 {
			t.Errorf("frame %dx%d, want 6x3", f.Width, f.Height)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no paint within deadline")
	}
}
