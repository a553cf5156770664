package scheduler

// Frame is one captured bitmap: 4 bytes per pixel, BGRA order, in the
// producer's own pixel space. A frame handed to the bridge over the
// shared transport is owned by the bridge from that point on.
type Frame struct {
	Buffer        []byte
	Width         int
	Height        int
	BackingWidth  int
	BackingHeight int
}

// fallbackFrame is the 1x1 opaque frame synthesized when the initial
// acknowledgment never arrives, so the consumer is never left holding
// an undefined image resource.
func fallbackFrame() Frame {
	return Frame{
		Buffer: []byte{0, 0, 0, 255}, // one opaque black BGRA pixel
		Width:  1,
		Height: 1,
	}
}

// AckState tracks the initial-frame handshake for one surface.
type AckState uint8

const (
	// AckUnacknowledged: no frame sent yet.
	AckUnacknowledged AckState = iota
	// AckAwaiting: initial frame sent, waiting for the consumer.
	AckAwaiting
	// AckAcknowledged: handshake done for this surface lifetime.
	AckAcknowledged
)

func (a AckState) String() string {
	switch a {
	case AckUnacknowledged:
		return "unacknowledged"
	case AckAwaiting:
		return "awaiting-ack"
	case AckAcknowledged:
		return "acknowledged"
	default:
		return "unknown"
	}
}
