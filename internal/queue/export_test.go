package queue

// SetFreeBytesFunc overrides the free-space probe for tests.
func (s *Store) SetFreeBytesFunc(fn func(path string) (uint64, error)) {
	s.statFreeBytes = fn
}

// SetMinFreeBytes overrides the configured free-space floor for tests.
func (s *Store) SetMinFreeBytes(v uint64) {
	s.minFreeBytes = v
}
