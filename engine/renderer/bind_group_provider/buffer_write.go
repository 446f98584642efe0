package bind_group_provider

// BufferWrite stages bytes for the buffer bound at Binding on Provider. Particle styles use it for
// their per-frame uniform uploads.
type BufferWrite struct {
	Provider BindGroupProvider
	Binding  int
	Offset   uint64
	Data     []byte
}

// End returns the byte offset one past the last byte the write touches.
func (w BufferWrite) End() uint64 {
	return w.Offset + uint64(len(w.Data))
}

// Fits reports whether the write lies inside a buffer of the given size.
func (w BufferWrite) Fits(size uint64) bool {
	return w.End() <= size
}
