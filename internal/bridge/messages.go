package bridge

import (
	"time"

	"github.com/google/uuid"
)

// Transport identifies how a frame payload crosses the process
// boundary. The scheduler degrades one way through these tiers and
// never climbs back up.
type Transport uint8

const (
	// TransportShared hands the payload over by reference. The sender
	// gives up ownership of the buffer and must not touch it again.
	TransportShared Transport = iota
	// TransportCopied serializes the payload; the sender may reuse its
	// storage immediately after Post returns.
	TransportCopied
	// TransportLegacy is the synchronous in-process fallback. It always
	// delivers locally and always copies.
	TransportLegacy
)

func (t Transport) String() string {
	switch t {
	case TransportShared:
		return "shared"
	case TransportCopied:
		return "copied"
	case TransportLegacy:
		return "legacy"
	default:
		return "unknown"
	}
}

// Size carries the producer's declared frame dimensions. Width/Height
// are logical (CSS-space); BackingWidth/BackingHeight, when non-zero,
// are the device-pixel dimensions of the buffer.
type Size struct {
	Width         int `json:"width"`
	Height        int `json:"height"`
	BackingWidth  int `json:"backingWidth,omitempty"`
	BackingHeight int `json:"backingHeight,omitempty"`
}

// FrameMessage is one raw-pixel frame in flight from producer to
// consumer. Buffer holds 4 bytes per pixel in BGRA order.
type FrameMessage struct {
	Index      int       `json:"index"`
	Buffer     []byte    `json:"buffer"`
	Size       Size      `json:"size"`
	Format     Transport `json:"format"`
	ByteLength int       `json:"byteLength,omitempty"`
	Timestamp  int64     `json:"timestamp,omitempty"`
}

// AckMessage confirms the consumer applied the first frame for a
// surface. It is the only delivery guarantee in the pipeline.
type AckMessage struct {
	Index int `json:"index"`
}

// Diagnostic event kinds.
const (
	DiagLoadTimeout   = "load-timeout"
	DiagFrameRejected = "frame-rejected"
	DiagFrameWarning  = "frame-warning"
)

// DiagMessage is an observable side effect: a load timeout or a frame
// the consumer could not reconcile. Consumed by the control API event
// stream, never by the pipeline itself.
type DiagMessage struct {
	ID        string    `json:"id"`
	Index     int       `json:"index"`
	Kind      string    `json:"kind"`
	Detail    string    `json:"detail"`
	Timestamp time.Time `json:"timestamp"`
}

// NewDiag builds a tagged diagnostic event.
func NewDiag(index int, kind, detail string) DiagMessage {
	return DiagMessage{
		ID:        uuid.NewString(),
		Index:     index,
		Kind:      kind,
		Detail:    detail,
		Timestamp: time.Now(),
	}
}
