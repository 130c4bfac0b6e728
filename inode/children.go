package inode

import (
	"sort"

	"github.com/google/memvfs/pathutil"
)

// ChildMap is a directory's ordered (name -> inode) mapping, kept sorted by
// the comparator fixed when the owning filesystem was constructed (spec
// §3: "A directory's children map is ordered by the filesystem's
// case-sensitive or case-insensitive comparator").
type ChildMap struct {
	cmp     pathutil.Comparator
	entries []childEntry
}

type childEntry struct {
	name string
	node *Inode
}

// NewChildMap returns an empty, materialised children map.
func NewChildMap(cmp pathutil.Comparator) *ChildMap {
	return &ChildMap{cmp: cmp}
}

func (m *ChildMap) Comparator() pathutil.Comparator { return m.cmp }

func (m *ChildMap) indexOf(name string) (int, bool) {
	for i, e := range m.entries {
		if m.cmp.Equal(e.name, name) {
			return i, true
		}
	}
	return -1, false
}

// Get looks up a child by name using the map's comparator.
func (m *ChildMap) Get(name string) (*Inode, bool) {
	if i, ok := m.indexOf(name); ok {
		return m.entries[i].node, true
	}
	return nil, false
}

// Set inserts or replaces the child named name, keeping entries() sorted.
func (m *ChildMap) Set(name string, n *Inode) {
	if i, ok := m.indexOf(name); ok {
		m.entries[i].node = n
		return
	}
	m.entries = append(m.entries, childEntry{name: name, node: n})
	sort.SliceStable(m.entries, func(i, j int) bool {
		return m.cmp.Less(m.entries[i].name, m.entries[j].name)
	})
}

// Delete removes the child named name, if present.
func (m *ChildMap) Delete(name string) {
	if i, ok := m.indexOf(name); ok {
		m.entries = append(m.entries[:i], m.entries[i+1:]...)
	}
}

func (m *ChildMap) Len() int { return len(m.entries) }

// Names returns the child names in comparator order.
func (m *ChildMap) Names() []string {
	out := make([]string, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.name
	}
	return out
}

// Each iterates the children in comparator order.
func (m *ChildMap) Each(fn func(name string, n *Inode)) {
	for _, e := range m.entries {
		fn(e.name, e.node)
	}
}
