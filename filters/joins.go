package filters

import (
	"sort"

	"github.com/uptrace/bun"
)

// JoinManager tracks the related tables joined into one statement. It is
// scoped to a single query build and must not be reused.
type JoinManager struct {
	joined map[string]struct{}
	added  bool
	multi  bool
}

// NewJoinManager returns a manager with nothing joined.
func NewJoinManager() *JoinManager {
	return &JoinManager{joined: make(map[string]struct{})}
}

// HandleJoins adds every join not already present in q. The returned flag is
// true when this call added a join or a multi-value comparison was recorded
// in this build; either may multiply rows.
func (m *JoinManager) HandleJoins(q *bun.SelectQuery, joins []Join) (*bun.SelectQuery, bool) {
	addedNow := false
	for _, j := range joins {
		id := j.identity()
		if _, ok := m.joined[id]; ok {
			continue
		}
		q = q.Join("JOIN ? AS ? ON ?", bun.Ident(j.Table), bun.Ident(j.identity()), bun.Safe(j.On))
		m.joined[id] = struct{}{}
		addedNow = true
	}
	if addedNow {
		m.added = true
	}
	return q, addedNow || m.multi
}

// MarkMultiValue records that a comparison in this build matched a list.
func (m *JoinManager) MarkMultiValue() {
	m.multi = true
}

// NeedsDistinct reports whether any join was added or any multi-value
// comparison was recorded during the build.
func (m *JoinManager) NeedsDistinct() bool {
	return m.added || m.multi
}

// Joined returns the identities of the joined tables, sorted.
func (m *JoinManager) Joined() []string {
	out := make([]string, 0, len(m.joined))
	for id := range m.joined {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
