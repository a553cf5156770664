// Package scheduler is the producer side of the pipeline: it decides,
// per capture surface, when a painted frame is emitted to the bridge.
// It enforces at most one in-flight unacknowledged initial frame per
// surface, a minimum inter-frame interval once acknowledged, and
// last-write-wins coalescing of paint bursts.
package scheduler

import (
	"sort"
	"sync"
	"time"

	"github.com/Avataren/slidekiosk/internal/bridge"
	"github.com/Avataren/slidekiosk/internal/logger"
)

// Sender is the bridge surface the scheduler emits through.
type Sender interface {
	Post(channel string, msg interface{}, transport bridge.Transport) bool
	Send(channel string, msg interface{})
	Listen(channel string, handler bridge.Handler)
}

// RenderSurface is one off-screen page renderer. The scheduler drives
// it through control operations and receives its paints via
// HandlePaint; how the surface actually renders is not its business.
type RenderSurface interface {
	SetFrameRate(fps int)
	Resize(width, height int)
	Navigate(url string) error
	Reload() error
	Close()
}

// surfaceState is one row of the per-surface table. Every column is
// owned exclusively by the scheduler.
type surfaceState struct {
	renderer RenderSurface
	url      string

	painting bool
	ack      AckState
	lastSent time.Time

	pending  *Frame // single slot, overwritten by newer paints
	deferred Timer  // steady-state deferred send, at most one
	ackTimer Timer  // initial-ack timeout, at most one
}

// Scheduler owns the surface table and the transport tier.
type Scheduler struct {
	sender     Sender
	clock      Clock
	frameRate  int
	ackTimeout time.Duration

	mu       sync.Mutex
	surfaces map[int]*surfaceState
	// transport is the current tier. Degradation is one-way for the
	// process lifetime: a rejection is assumed to be platform policy,
	// not a transient condition.
	transport bridge.Transport
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the wall clock, for tests.
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// New creates a scheduler emitting through sender. frameRate caps the
// steady-state rate per surface; ackTimeout bounds the initial
// handshake.
func New(sender Sender, frameRate int, ackTimeout time.Duration, opts ...Option) *Scheduler {
	if frameRate <= 0 {
		frameRate = 10
	}
	s := &Scheduler{
		sender:     sender,
		clock:      realClock{},
		frameRate:  frameRate,
		ackTimeout: ackTimeout,
		surfaces:   make(map[int]*surfaceState),
		transport:  bridge.TransportShared,
	}
	for _, opt := range opts {
		opt(s)
	}
	sender.Listen(bridge.ChannelAck, func(msg interface{}) {
		if ack, ok := msg.(bridge.AckMessage); ok {
			s.handleAck(ack.Index)
		}
	})
	return s
}

// Attach registers a surface at the given index. Indices are stable
// array positions from the configured page list; re-entering active
// mode rebuilds the table from scratch.
func (s *Scheduler) Attach(index int, renderer RenderSurface, url string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.surfaces[index] = &surfaceState{
		renderer: renderer,
		url:      url,
		ack:      AckUnacknowledged,
	}
}

// interval is the minimum spacing between steady-state sends.
func (s *Scheduler) interval() time.Duration {
	return time.Second / time.Duration(s.frameRate)
}

// HandlePaint feeds one painted frame into the per-surface state
// machine. Paints for unknown or disabled surfaces are dropped.
func (s *Scheduler) HandlePaint(index int, f Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.surfaces[index]
	if !ok || !st.painting {
		return
	}

	switch st.ack {
	case AckUnacknowledged:
		// First paint: send immediately, bypassing rate limiting, and
		// arm the handshake timeout.
		st.ack = AckAwaiting
		st.lastSent = s.clock.Now()
		s.emitLocked(index, f)
		st.ackTimer = s.clock.AfterFunc(s.ackTimeout, func() {
			s.ackTimedOut(index)
		})

	case AckAwaiting:
		// Only one unacknowledged frame may be outstanding; newer
		// paints overwrite the slot, they do not queue.
		frame := f
		st.pending = &frame

	case AckAcknowledged:
		now := s.clock.Now()
		elapsed := now.Sub(st.lastSent)
		if elapsed >= s.interval() {
			if st.deferred != nil {
				st.deferred.Stop()
				st.deferred = nil
			}
			st.pending = nil
			st.lastSent = now
			s.emitLocked(index, f)
			return
		}
		frame := f
		st.pending = &frame
		if st.deferred != nil {
			st.deferred.Stop()
		}
		st.deferred = s.clock.AfterFunc(s.interval()-elapsed, func() {
			s.flushDeferred(index)
		})
	}
}

// flushDeferred fires when a steady-state deferred send comes due.
func (s *Scheduler) flushDeferred(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.surfaces[index]
	if !ok || !st.painting {
		return
	}
	st.deferred = nil
	if st.pending == nil {
		return
	}
	f := *st.pending
	st.pending = nil
	st.lastSent = s.clock.Now()
	s.emitLocked(index, f)
}

// handleAck completes the initial handshake for a surface. The pending
// frame, if any, is flushed immediately, bypassing the rate floor once.
func (s *Scheduler) handleAck(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.surfaces[index]
	if !ok || st.ack != AckAwaiting {
		return
	}
	st.ack = AckAcknowledged
	if st.ackTimer != nil {
		st.ackTimer.Stop()
		st.ackTimer = nil
	}
	logger.WithSurface("scheduler", index).Debug().Msg("Initial frame acknowledged")

	if st.pending != nil {
		f := *st.pending
		st.pending = nil
		st.lastSent = s.clock.Now()
		s.emitLocked(index, f)
	}
}

// ackTimedOut fires when the consumer never confirmed the first frame.
// Not an error: a 1x1 opaque frame is synthesized so the consumer has
// something defined to show, the surface is marked acknowledged, and a
// load-timeout event is raised for the UI layer.
func (s *Scheduler) ackTimedOut(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.surfaces[index]
	if !ok || st.ack != AckAwaiting {
		return
	}
	st.ack = AckAcknowledged
	st.ackTimer = nil
	st.lastSent = s.clock.Now()
	s.emitLocked(index, fallbackFrame())

	logger.WithSurface("scheduler", index).Warn().
		Str("url", st.url).
		Dur("timeout", s.ackTimeout).
		Msg("No acknowledgment for initial frame, applied fallback")
	s.sender.Send(bridge.ChannelDiag, bridge.NewDiag(index, bridge.DiagLoadTimeout, st.url))
}

// emitLocked sends one frame through the current transport tier,
// degrading permanently on rejection: shared, then copied, then the
// synchronous legacy send which always succeeds locally.
func (s *Scheduler) emitLocked(index int, f Frame) {
	msg := bridge.FrameMessage{
		Index:      index,
		Buffer:     f.Buffer,
		ByteLength: len(f.Buffer),
		Timestamp:  s.clock.Now().UnixMilli(),
		Size: bridge.Size{
			Width:         f.Width,
			Height:        f.Height,
			BackingWidth:  f.BackingWidth,
			BackingHeight: f.BackingHeight,
		},
	}

	for {
		switch s.transport {
		case bridge.TransportShared:
			msg.Format = bridge.TransportShared
			if s.sender.Post(bridge.ChannelFrame, msg, bridge.TransportShared) {
				return
			}
			s.transport = bridge.TransportCopied
			logger.WithComponent("scheduler").Warn().
				Msg("Shared transport rejected, falling back to copied buffers")

		case bridge.TransportCopied:
			msg.Format = bridge.TransportCopied
			if s.sender.Post(bridge.ChannelFrame, msg, bridge.TransportCopied) {
				return
			}
			s.transport = bridge.TransportLegacy
			logger.WithComponent("scheduler").Warn().
				Msg("Copied transport rejected, falling back to legacy send")

		case bridge.TransportLegacy:
			msg.Format = bridge.TransportLegacy
			s.sender.Send(bridge.ChannelFrame, msg)
			return
		}
	}
}

// EnablePainting turns on capture for a surface. Idempotent: enabling
// an already-enabled surface sets nothing twice. No-op if the surface
// is absent.
func (s *Scheduler) EnablePainting(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.surfaces[index]
	if !ok || st.painting {
		return
	}
	st.painting = true
	st.renderer.SetFrameRate(s.frameRate)
}

// DisablePainting turns off capture for a surface, cancelling any
// scheduled deferred send and clearing the pending slot. Idempotent;
// no-op if the surface is absent.
func (s *Scheduler) DisablePainting(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.surfaces[index]
	if !ok || !st.painting {
		return
	}
	st.painting = false
	st.renderer.SetFrameRate(0)
	if st.deferred != nil {
		st.deferred.Stop()
		st.deferred = nil
	}
	st.pending = nil
}

// SetActivePaintingWindows enables exactly the given set of surfaces
// and disables the rest.
func (s *Scheduler) SetActivePaintingWindows(indices []int) {
	active := make(map[int]bool, len(indices))
	for _, i := range indices {
		active[i] = true
	}

	s.mu.Lock()
	all := make([]int, 0, len(s.surfaces))
	for i := range s.surfaces {
		all = append(all, i)
	}
	s.mu.Unlock()

	for _, i := range all {
		if active[i] {
			s.EnablePainting(i)
		} else {
			s.DisablePainting(i)
		}
	}
}

// Resize resizes one surface. No-op if absent.
func (s *Scheduler) Resize(index, width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.surfaces[index]; ok {
		st.renderer.Resize(width, height)
	}
}

// ResizeAll resizes every surface.
func (s *Scheduler) ResizeAll(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, st := range s.surfaces {
		st.renderer.Resize(width, height)
	}
}

// ResizeIndices resizes a subset of surfaces. Absent indices are
// skipped.
func (s *Scheduler) ResizeIndices(indices []int, width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, i := range indices {
		if st, ok := s.surfaces[i]; ok {
			st.renderer.Resize(width, height)
		}
	}
}

// Navigate points a surface at a new URL. Surface identity is
// preserved: the acknowledgment state carries over, since the consumer
// already holds a defined image resource for the index. No-op if
// absent.
func (s *Scheduler) Navigate(index int, url string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.surfaces[index]
	if !ok {
		return
	}
	if err := st.renderer.Navigate(url); err != nil {
		logger.WithSurface("scheduler", index).Warn().Err(err).
			Str("url", url).Msg("Navigate failed")
		return
	}
	st.url = url
}

// Reload reloads a surface in place. No-op if absent.
func (s *Scheduler) Reload(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.surfaces[index]
	if !ok {
		return
	}
	if err := st.renderer.Reload(); err != nil {
		logger.WithSurface("scheduler", index).Warn().Err(err).Msg("Reload failed")
	}
}

// Teardown cancels every timer, closes every renderer, and clears the
// surface table. Re-entering active mode rebuilds surfaces from
// scratch with fresh identity.
func (s *Scheduler) Teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for index, st := range s.surfaces {
		if st.deferred != nil {
			st.deferred.Stop()
		}
		if st.ackTimer != nil {
			st.ackTimer.Stop()
		}
		st.renderer.Close()
		delete(s.surfaces, index)
	}
	logger.WithComponent("scheduler").Info().Msg("Scheduler torn down")
}

// SurfaceStatus is a read-only snapshot of one surface row, for the
// control API.
type SurfaceStatus struct {
	Index    int       `json:"index"`
	URL      string    `json:"url"`
	Painting bool      `json:"painting"`
	AckState string    `json:"ack_state"`
	LastSent time.Time `json:"last_sent,omitempty"`
}

// Surfaces snapshots the surface table, ordered by index.
func (s *Scheduler) Surfaces() []SurfaceStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	indices := make([]int, 0, len(s.surfaces))
	for i := range s.surfaces {
		indices = append(indices, i)
	}
	sort.Ints(indices)

	out := make([]SurfaceStatus, 0, len(indices))
	for _, i := range indices {
		st := s.surfaces[i]
		out = append(out, SurfaceStatus{
			Index:    i,
			URL:      st.url,
			Painting: st.painting,
			AckState: st.ack.String(),
			LastSent: st.lastSent,
		})
	}
	return out
}

// Transport reports the current transport tier.
func (s *Scheduler) Transport() bridge.Transport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transport
}
