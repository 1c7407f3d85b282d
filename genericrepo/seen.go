package genericrepo

import "github.com/puzpuzpuz/xsync/v3"

// seenSet remembers the entity instances a repository handed out or added,
// together with the version each instance was last read or written at. Two
// loads of one row are two members. Entities must be pointers.
type seenSet[D Entity] struct {
	entities *xsync.MapOf[any, int64]
}

func newSeenSet[D Entity]() *seenSet[D] {
	return &seenSet[D]{entities: xsync.NewMapOf[any, int64]()}
}

// add records e at its current version, or at 0 when e is not versioned.
func (s *seenSet[D]) add(e D) {
	var v int64
	if ver, ok := any(e).(Versioned); ok {
		v = ver.Version()
	}
	s.entities.Store(any(e), v)
}

func (s *seenSet[D]) has(e D) bool {
	_, ok := s.entities.Load(any(e))
	return ok
}

// stored returns the version e was last read or written at.
func (s *seenSet[D]) stored(e D) int64 {
	v, _ := s.entities.Load(any(e))
	return v
}
