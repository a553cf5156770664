package bridge

import (
	"sync"
	"testing"
	"time"
)

func allCaps() Capabilities {
	return Capabilities{Shared: true, Copied: true}
}

func TestDeliveryInSendOrderPerChannel(t *testing.T) {
	b := New(allCaps(), 16)
	defer b.Close()

	var mu sync.Mutex
	var got []int
	done := make(chan struct{})

	b.Listen(ChannelFrame, func(msg interface{}) {
		fm := msg.(FrameMessage)
		mu.Lock()
		got = append(got, fm.Index)
		n := len(got)
		mu.Unlock()
		if n == 10 {
			close(done)
		}
	})

	for i := 0; i < 10; i++ {
		if !b.Post(ChannelFrame, FrameMessage{Index: i}, TransportShared) {
			t.Fatalf("post %d rejected", i)
		}
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, idx := range got {
		if idx != i {
			t.Fatalf("out of order delivery: got %v", got)
		}
	}
}

func TestPostRejectsDisabledTransports(t *testing.T) {
	b := New(Capabilities{Shared: false, Copied: true}, 4)
	defer b.Close()

	if b.Post(ChannelFrame, FrameMessage{}, TransportShared) {
		t.Error("shared transport must be rejected when not permitted")
	}
	if !b.Post(ChannelFrame, FrameMessage{}, TransportCopied) {
		t.Error("copied transport must be accepted")
	}
	// Legacy is synchronous only; Post refuses it.
	if b.Post(ChannelFrame, FrameMessage{}, TransportLegacy) {
		t.Error("legacy transport must not be postable")
	}
}

func TestCopiedTransportDetachesFromSenderStorage(t *testing.T) {
	b := New(allCaps(), 4)
	defer b.Close()

	delivered := make(chan FrameMessage, 1)
	b.Listen(ChannelFrame, func(msg interface{}) {
		delivered <- msg.(FrameMessage)
	})

	buf := []byte{1, 2, 3, 4}
	if !b.Post(ChannelFrame, FrameMessage{Buffer: buf}, TransportCopied) {
		t.Fatal("post rejected")
	}
	// The sender may reuse its storage immediately after a copied post.
	buf[0] = 99

	select {
	case fm := <-delivered:
		if fm.Buffer[0] != 1 {
			t.Errorf("copied transport leaked sender mutation: %v", fm.Buffer)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestSendDeliversSynchronously(t *testing.T) {
	b := New(Capabilities{}, 4) // no async transports permitted at all
	defer b.Close()

	var got *AckMessage
	b.Listen(ChannelAck, func(msg interface{}) {
		ack := msg.(AckMessage)
		got = &ack
	})

	b.Send(ChannelAck, AckMessage{Index: 3})
	if got == nil || got.Index != 3 {
		t.Fatalf("send must deliver inline, got %+v", got)
	}
}

func TestSaturatedChannelRejectsPosts(t *testing.T) {
	depth := 2
	b := New(allCaps(), depth)
	defer b.Close()

	block := make(chan struct{})
	b.Listen(ChannelFrame, func(msg interface{}) {
		<-block
	})
	defer close(block)

	// With the dispatcher stalled, at most depth+1 messages can be in
	// flight; posting more must report rejection rather than block.
	accepted := 0
	for i := 0; i < depth+2; i++ {
		if b.Post(ChannelFrame, FrameMessage{Index: i}, TransportShared) {
			accepted++
		}
	}
	if accepted == depth+2 {
		t.Error("expected at least one rejection from a saturated channel")
	}

	stats := b.Stats()
	if stats[ChannelFrame].Dropped == 0 {
		t.Error("expected dropped counter to increment")
	}
}

func TestListenersMayNeverFire(t *testing.T) {
	b := New(allCaps(), 4)
	defer b.Close()

	fired := false
	b.Listen(ChannelDiag, func(msg interface{}) { fired = true })

	// Nothing posted: the handler is invoked zero times.
	time.Sleep(20 * time.Millisecond)
	if fired {
		t.Error("handler fired without any delivery")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	b := New(allCaps(), 4)
	b.Listen(ChannelFrame, func(msg interface{}) {})
	b.Close()
	b.Close()

	if b.Post(ChannelFrame, FrameMessage{}, TransportShared) {
		t.Error("post after close must be rejected")
	}
}
