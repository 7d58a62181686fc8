package diffra

// Close stops the worker pool and releases the pattern buffer, including any
// memory-mapped scratch backing. The session is unusable afterwards.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	if s.closed.Swap(true) {
		return nil
	}
	return s.dataset.Close()
}
