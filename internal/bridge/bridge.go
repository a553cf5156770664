// Package bridge is the one-way, best-effort message channel between
// the capture side and the compositor side of the pipeline. It carries
// large binary payloads either by reference (shared) or by copy, and
// offers no delivery guarantee beyond in-send-order per channel; the
// application-level acknowledgment protocol exists because of that.
package bridge

import (
	"sync"

	"github.com/Avataren/slidekiosk/internal/logger"
)

// Well-known channel names.
const (
	ChannelFrame = "frame.deliver"
	ChannelAck   = "frame.ack"
	ChannelDiag  = "pipeline.diag"
)

// Handler receives messages for one channel. Handlers for a given
// channel are invoked in send order, one message at a time.
type Handler func(msg interface{})

// Capabilities models platform transport policy. A transport that is
// not permitted is rejected at Post time, exactly like a platform
// security policy refusing a shared buffer.
type Capabilities struct {
	Shared bool
	Copied bool
}

type channelQueue struct {
	queue chan interface{}
	done  chan struct{}

	mu       sync.RWMutex
	handlers []Handler

	delivered uint64
	dropped   uint64
}

// Bridge routes messages between the two sides of the pipeline.
// Asynchronous delivery (Post) runs one dispatch goroutine per channel
// so per-channel ordering holds; synchronous delivery (Send) invokes
// handlers inline on the caller.
type Bridge struct {
	caps       Capabilities
	queueDepth int

	mu       sync.Mutex
	channels map[string]*channelQueue
	closed   bool
}

// New creates a bridge with the given transport capabilities and
// per-channel queue depth.
func New(caps Capabilities, queueDepth int) *Bridge {
	if queueDepth <= 0 {
		queueDepth = 4
	}
	return &Bridge{
		caps:       caps,
		queueDepth: queueDepth,
		channels:   make(map[string]*channelQueue),
	}
}

func (b *Bridge) channel(name string) *channelQueue {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cq, ok := b.channels[name]; ok {
		return cq
	}
	cq := &channelQueue{
		queue: make(chan interface{}, b.queueDepth),
		done:  make(chan struct{}),
	}
	b.channels[name] = cq
	go cq.dispatch()
	return cq
}

func (cq *channelQueue) dispatch() {
	for {
		select {
		case msg := <-cq.queue:
			cq.deliver(msg)
		case <-cq.done:
			// Drain what was accepted before shutdown.
			for {
				select {
				case msg := <-cq.queue:
					cq.deliver(msg)
				default:
					return
				}
			}
		}
	}
}

func (cq *channelQueue) deliver(msg interface{}) {
	cq.mu.RLock()
	handlers := cq.handlers
	cq.mu.RUnlock()

	for _, h := range handlers {
		h(msg)
	}
	cq.mu.Lock()
	cq.delivered++
	cq.mu.Unlock()
}

// Post enqueues a message for asynchronous delivery. The return value
// means "accepted for delivery", not confirmation of arrival. Post
// rejects (returns false) when the requested transport is not permitted
// by the platform capabilities or the channel queue is saturated.
//
// For TransportShared frame payloads ownership of the buffer moves to
// the bridge; for TransportCopied the buffer is copied and the caller
// may reuse its storage.
func (b *Bridge) Post(channel string, msg interface{}, transport Transport) bool {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return false
	}
	caps := b.caps
	b.mu.Unlock()

	switch transport {
	case TransportShared:
		if !caps.Shared {
			return false
		}
	case TransportCopied:
		if !caps.Copied {
			return false
		}
		msg = copyPayload(msg)
	case TransportLegacy:
		// Legacy is synchronous only; use Send.
		return false
	}

	cq := b.channel(channel)
	select {
	case cq.queue <- msg:
		return true
	default:
		cq.mu.Lock()
		cq.dropped++
		cq.mu.Unlock()
		logger.WithComponent("bridge").Debug().
			Str("channel", channel).
			Str("transport", transport.String()).
			Msg("Channel saturated, message rejected")
		return false
	}
}

// Send delivers a message synchronously on the caller's goroutine. It
// always copies frame payloads and always succeeds locally; it is the
// legacy tier the scheduler falls back to when both asynchronous
// transports are blocked.
func (b *Bridge) Send(channel string, msg interface{}) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()

	cq := b.channel(channel)
	cq.deliver(copyPayload(msg))
}

// Listen registers a handler for a channel. The handler may be invoked
// zero or more times; zero times if nothing is ever delivered.
func (b *Bridge) Listen(channel string, handler Handler) {
	cq := b.channel(channel)
	cq.mu.Lock()
	cq.handlers = append(cq.handlers, handler)
	cq.mu.Unlock()
}

// Close stops all channel dispatchers. Messages already accepted are
// drained before the dispatchers exit.
func (b *Bridge) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	channels := b.channels
	b.mu.Unlock()

	for _, cq := range channels {
		close(cq.done)
	}
}

// ChannelStats reports delivery counters for one channel.
type ChannelStats struct {
	Delivered uint64 `json:"delivered"`
	Dropped   uint64 `json:"dropped"`
}

// Stats returns per-channel delivery counters.
func (b *Bridge) Stats() map[string]ChannelStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(map[string]ChannelStats, len(b.channels))
	for name, cq := range b.channels {
		cq.mu.RLock()
		out[name] = ChannelStats{Delivered: cq.delivered, Dropped: cq.dropped}
		cq.mu.RUnlock()
	}
	return out
}

// copyPayload deep-copies the pixel buffer of frame messages so the
// sender's storage can be reused. Non-frame messages are small value
// types and pass through as-is.
func copyPayload(msg interface{}) interface{} {
	fm, ok := msg.(FrameMessage)
	if !ok {
		return msg
	}
	buf := make([]byte, len(fm.Buffer))
	copy(buf, fm.Buffer)
	fm.Buffer = buf
	return fm
}
