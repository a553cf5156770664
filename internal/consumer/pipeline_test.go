package consumer_test

import (
	"testing"
	"time"

	"github.com/Avataren/slidekiosk/internal/bridge"
	"github.com/Avataren/slidekiosk/internal/consumer"
	"github.com/Avataren/slidekiosk/internal/render"
	"github.com/Avataren/slidekiosk/internal/scheduler"
)

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

// TestPipelineEndToEnd runs the real bridge, scheduler, synthetic
// renderer, and consumer together: paints flow producer to consumer,
// the first applied frame acks back, and the surface reaches steady
// state.
func TestPipelineEndToEnd(t *testing.T) {
	br := bridge.New(bridge.Capabilities{Shared: true, Copied: true}, 8)
	defer br.Close()

	cons := consumer.New(br, 0, 1)
	cons.SetReady(true)

	sched := scheduler.New(br, 50, 2*time.Second)
	defer sched.Teardown()

	r := render.NewSynthetic("https://example.com/e2e", 8, 4)
	r.OnPaint(func(f scheduler.Frame) {
		sched.HandlePaint(0, f)
	})
	sched.Attach(0, r, "https://example.com/e2e")
	sched.EnablePainting(0)

	eventually(t, 3*time.Second, func() bool {
		return cons.Texture(0) != nil
	}, "no frame reached the consumer")

	tex := cons.Texture(0)
	if tex.Width != 8 || tex.Height != 4 {
		t.Errorf("texture %dx%d, want 8x4", tex.Width, tex.Height)
	}
	// The synthetic renderer paints translucent pixels; the pipeline
	// must deliver them opaque.
	for i := 3; i < len(tex.Pix); i += 4 {
		if tex.Pix[i] != 255 {
			t.Fatalf("pixel %d not opaque: alpha=%d", i/4, tex.Pix[i])
		}
	}

	eventually(t, 3*time.Second, func() bool {
		status := sched.Surfaces()
		return len(status) == 1 && status[0].AckState == "acknowledged"
	}, "acknowledgment never reached the scheduler")

	// Steady state keeps flowing: the texture goes dirty again.
	tex.TakeDirty()
	eventually(t, 3*time.Second, func() bool {
		return cons.Texture(0).TakeDirty()
	}, "no steady-state frames after acknowledgment")
}

// TestPipelineDegradesWhenSharedBlocked runs the same loop with the
// shared transport forbidden by platform policy: frames still arrive,
// over the copied tier.
func TestPipelineDegradesWhenSharedBlocked(t *testing.T) {
	br := bridge.New(bridge.Capabilities{Shared: false, Copied: true}, 8)
	defer br.Close()

	cons := consumer.New(br, 0, 1)
	cons.SetReady(true)

	sched := scheduler.New(br, 50, 2*time.Second)
	defer sched.Teardown()

	r := render.NewSynthetic("https://example.com/deg", 4, 4)
	r.OnPaint(func(f scheduler.Frame) {
		sched.HandlePaint(0, f)
	})
	sched.Attach(0, r, "https://example.com/deg")
	sched.EnablePainting(0)

	eventually(t, 3*time.Second, func() bool {
		return cons.Texture(0) != nil
	}, "no frame reached the consumer over the copied tier")

	if got := sched.Transport(); got != bridge.TransportCopied {
		t.Errorf("transport tier %s, want copied", got)
	}
}
