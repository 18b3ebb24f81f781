package cachestore

// SetRenameForTest swaps the rename step of Persist.
func (s *Store) SetRenameForTest(rename func(oldpath, newpath string) error) {
	s.rename = rename
}
