package consumer

// Texture is the persistent GPU-sampled image resource for one surface
// index. It is rebuilt when resolved dimensions change and mutated in
// place otherwise. Invariant: len(Pix) == Width*Height*4, RGBA order.
type Texture struct {
	Width  int
	Height int
	Pix    []byte

	// Generation increments on every rebuild so the compositor can
	// tell a resize from an in-place update.
	Generation uint64

	dirty bool
}

func newTexture(width, height int, generation uint64) *Texture {
	return &Texture{
		Width:      width,
		Height:     height,
		Pix:        make([]byte, width*height*4),
		Generation: generation,
	}
}

// markDirty flags the texture for GPU re-upload. Called exactly once
// per applied frame.
func (t *Texture) markDirty() {
	t.dirty = true
}

// TakeDirty reports and clears the dirty flag; the compositor calls it
// when it consumes the backing buffer.
func (t *Texture) TakeDirty() bool {
	d := t.dirty
	t.dirty = false
	return d
}
