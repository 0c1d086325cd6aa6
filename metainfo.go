package metainfo

import (
	"fmt"
	"maps"
)

// MetaInfo passes information between components and between client and
// server. See the package documentation for the scoping rules.
//
// The zero value is an empty root; a nil *MetaInfo reads as empty.
type MetaInfo struct {
	// parent is read-only. Lookups that miss the current scope continue
	// there.
	parent *MetaInfo

	tmap  *TypeMap
	smap  map[string]string
	fsmap *FastStrMap // string newtypes

	// String k-v for transport through client and server. Each scope owns its
	// copy; they are cloned, not shared, on derivation.
	forward  *node
	backward *node
}

// New returns an empty root MetaInfo.
func New() *MetaInfo {
	return &MetaInfo{}
}

// From returns a MetaInfo whose lookups fall back to parent. The parent's
// current forward and backward data are copied into the new scope.
//
// parent must not be written after this call. Fork or Derive should
// be preferred.
func From(parent *MetaInfo) *MetaInfo {
	if parent == nil {
		return New()
	}
	return &MetaInfo{
		parent:   parent,
		forward:  parent.forward.clone(),
		backward: parent.backward.clone(),
	}
}

// Derive splits mi into two equivalent scopes. The first result is mi
// itself, the second a sibling. Both share the same ancestry, so later writes
// to one are invisible to the other.
//
// When mi holds no local typed or string values the sibling simply shares
// mi's parent and the tree does not grow. Otherwise mi's local values are
// frozen into a new parent that both results point to.
//
// Derive rewrites mi in place and so requires that the caller owns mi
// exclusively: mi must not be reachable from other goroutines (for example
// through a shared context) nor be the parent of another scope. Use Fork
// otherwise.
func (mi *MetaInfo) Derive() (*MetaInfo, *MetaInfo) {
	if mi == nil {
		return New(), New()
	}
	if !mi.hasLocalValues() {
		return mi, &MetaInfo{
			parent:   mi.parent,
			forward:  mi.forward.clone(),
			backward: mi.backward.clone(),
		}
	}
	frozen := &MetaInfo{
		parent: mi.parent,
		tmap:   mi.tmap,
		smap:   mi.smap,
		fsmap:  mi.fsmap,
	}
	mi.parent = frozen
	mi.tmap, mi.smap, mi.fsmap = nil, nil, nil
	return mi, &MetaInfo{
		parent:   frozen,
		forward:  mi.forward.clone(),
		backward: mi.backward.clone(),
	}
}

// Fork is Derive without writing mi: it only reads mi, so any number of
// goroutines may fork the same MetaInfo while nobody writes it. Both results
// are new scopes. Local typed and string values of mi are copied into a new
// frozen parent; without any, the results share mi's parent.
func (mi *MetaInfo) Fork() (*MetaInfo, *MetaInfo) {
	if mi == nil {
		return New(), New()
	}
	parent := mi.parent
	if mi.hasLocalValues() {
		parent = &MetaInfo{
			parent: mi.parent,
			tmap:   mi.tmap.clone(),
			smap:   maps.Clone(mi.smap),
			fsmap:  mi.fsmap.clone(),
		}
	}
	child := func() *MetaInfo {
		return &MetaInfo{
			parent:   parent,
			forward:  mi.forward.clone(),
			backward: mi.backward.clone(),
		}
	}
	return child(), child()
}

func (mi *MetaInfo) hasLocalValues() bool {
	return !mi.tmap.IsEmpty() || len(mi.smap) > 0 || !mi.fsmap.IsEmpty()
}

// Parent returns the scope lookups fall back to, nil for a root.
func (mi *MetaInfo) Parent() *MetaInfo {
	if mi == nil {
		return nil
	}
	return mi.parent
}

// Insert stores v in the current scope, shadowing any T of an ancestor.
func Insert[T any](mi *MetaInfo, v T) {
	if mi.tmap == nil {
		mi.tmap = NewTypeMap(defaultMapSize)
	}
	TypeMapInsert(mi.tmap, v)
}

// Get returns the T of the nearest scope holding one.
func Get[T any](mi *MetaInfo) (T, bool) {
	for cur := mi; cur != nil; cur = cur.parent {
		if v, ok := TypeMapGet[T](cur.tmap); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// Remove deletes the T of the current scope only. An ancestor's T, if any,
// becomes visible again.
func Remove[T any](mi *MetaInfo) (T, bool) {
	if mi == nil {
		var zero T
		return zero, false
	}
	return TypeMapRemove[T](mi.tmap)
}

func Contains[T any](mi *MetaInfo) bool {
	for cur := mi; cur != nil; cur = cur.parent {
		if TypeMapContains[T](cur.tmap) {
			return true
		}
	}
	return false
}

// InsertFastStr stores s under the marker type T.
func InsertFastStr[T any](mi *MetaInfo, s string) {
	if mi.fsmap == nil {
		mi.fsmap = NewFastStrMap(defaultMapSize)
	}
	FastStrMapInsert[T](mi.fsmap, s)
}

func GetFastStr[T any](mi *MetaInfo) (string, bool) {
	for cur := mi; cur != nil; cur = cur.parent {
		if s, ok := FastStrMapGet[T](cur.fsmap); ok {
			return s, true
		}
	}
	return "", false
}

// RemoveFastStr only affects the current scope.
func RemoveFastStr[T any](mi *MetaInfo) (string, bool) {
	if mi == nil {
		return "", false
	}
	return FastStrMapRemove[T](mi.fsmap)
}

func ContainsFastStr[T any](mi *MetaInfo) bool {
	for cur := mi; cur != nil; cur = cur.parent {
		if FastStrMapContains[T](cur.fsmap) {
			return true
		}
	}
	return false
}

// InsertString stores a string k-v in the current scope.
func (mi *MetaInfo) InsertString(key, value string) {
	if mi.smap == nil {
		mi.smap = make(map[string]string, defaultMapSize)
	}
	mi.smap[key] = value
}

func (mi *MetaInfo) GetString(key string) (string, bool) {
	for cur := mi; cur != nil; cur = cur.parent {
		if v, ok := cur.smap[key]; ok {
			return v, true
		}
	}
	return "", false
}

// RemoveString only affects the current scope.
func (mi *MetaInfo) RemoveString(key string) (string, bool) {
	if mi == nil {
		return "", false
	}
	v, ok := mi.smap[key]
	if ok {
		delete(mi.smap, key)
	}
	return v, ok
}

func (mi *MetaInfo) ContainsString(key string) bool {
	_, ok := mi.GetString(key)
	return ok
}

// Clear drops the parent link and empties the current scope. Ancestors and
// previously derived scopes are not affected.
func (mi *MetaInfo) Clear() {
	if mi == nil {
		return
	}
	mi.parent = nil
	mi.tmap.Clear()
	clear(mi.smap)
	mi.fsmap.Clear()
	mi.forward.clear()
	mi.backward.clear()
}

// Extend merges the current scope of other into mi; other's values win on
// collision. Parent links are left alone. other must not be used afterwards.
func (mi *MetaInfo) Extend(other *MetaInfo) {
	if other == nil {
		return
	}
	if !other.tmap.IsEmpty() {
		if mi.tmap == nil {
			mi.tmap = NewTypeMap(defaultMapSize)
		}
		mi.tmap.Extend(other.tmap)
	}
	if len(other.smap) > 0 {
		if mi.smap == nil {
			mi.smap = make(map[string]string, max(len(other.smap), defaultMapSize))
		}
		for k, v := range other.smap {
			mi.smap[k] = v
		}
	}
	if !other.fsmap.IsEmpty() {
		if mi.fsmap == nil {
			mi.fsmap = NewFastStrMap(defaultMapSize)
		}
		mi.fsmap.Extend(other.fsmap)
	}
	if other.forward != nil {
		if mi.forward == nil {
			mi.forward = other.forward
		} else {
			mi.forward.extend(other.forward)
		}
	}
	if other.backward != nil {
		if mi.backward == nil {
			mi.backward = other.backward
		} else {
			mi.backward.extend(other.backward)
		}
	}
}

// String reports sizes only; values may be sensitive.
func (mi *MetaInfo) String() string {
	if mi == nil {
		return "MetaInfo(nil)"
	}
	depth := 0
	for cur := mi.parent; cur != nil; cur = cur.parent {
		depth++
	}
	return fmt.Sprintf("MetaInfo{depth:%d types:%d strings:%d faststrs:%d forward:%d/%d/%d backward:%d/%d}",
		depth, mi.tmap.Len(), len(mi.smap), mi.fsmap.Len(),
		mi.forward.len(segPersistent), mi.forward.len(segTransient), mi.forward.len(segStale),
		mi.backward.len(segTransient), mi.backward.len(segStale))
}

func (mi *MetaInfo) ensureNode(dir direction) *node {
	switch dir {
	case dirForward:
		if mi.forward == nil {
			mi.forward = &node{}
		}
		return mi.forward
	default:
		if mi.backward == nil {
			mi.backward = &node{}
		}
		return mi.backward
	}
}

func (mi *MetaInfo) node(dir direction) *node {
	if mi == nil {
		return nil
	}
	if dir == dirForward {
		return mi.forward
	}
	return mi.backward
}
