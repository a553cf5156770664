// Package render defines the off-screen page renderer contract the
// scheduler drives. Real web rendering is outside the pipeline; the
// synthetic renderer here stands in for it, producing deterministic
// BGRA test patterns at the requested frame rate.
package render

import "github.com/Avataren/slidekiosk/internal/scheduler"

// PaintFunc receives a painted frame from a renderer.
type PaintFunc func(frame scheduler.Frame)

// PageRenderer is an off-screen render surface: the scheduler controls
// its rate, size, and navigation, and receives its repaints through the
// paint callback.
type PageRenderer interface {
	scheduler.RenderSurface

	// OnPaint registers the sink for painted frames. Must be called
	// before painting is enabled.
	OnPaint(fn PaintFunc)
}
