package metainfo

import "reflect"

const defaultMapSize = 10

// TypeMap stores at most one value per Go type.
//
// Go methods cannot carry type parameters, so the typed operations are the
// package level TypeMap* functions.
type TypeMap struct {
	inner map[reflect.Type]any // values are boxed as *T
}

// NewTypeMap returns an empty TypeMap sized for capacity entries.
func NewTypeMap(capacity int) *TypeMap {
	return &TypeMap{inner: make(map[reflect.Type]any, capacity)}
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func (m *TypeMap) ensure() {
	if m.inner == nil {
		m.inner = make(map[reflect.Type]any, defaultMapSize)
	}
}

// TypeMapInsert stores v, replacing any previous value of type T.
func TypeMapInsert[T any](m *TypeMap, v T) {
	m.ensure()
	m.inner[typeOf[T]()] = &v
}

// TypeMapGet returns the stored T.
func TypeMapGet[T any](m *TypeMap) (T, bool) {
	if p := TypeMapGetMut[T](m); p != nil {
		return *p, true
	}
	var zero T
	return zero, false
}

// TypeMapGetMut returns a pointer to the stored T, or nil. Writes through the
// pointer update the stored value in place.
func TypeMapGetMut[T any](m *TypeMap) *T {
	if m == nil || m.inner == nil {
		return nil
	}
	boxed, ok := m.inner[typeOf[T]()]
	if !ok {
		return nil
	}
	p, _ := boxed.(*T)
	return p
}

// TypeMapRemove deletes the stored T and returns it.
func TypeMapRemove[T any](m *TypeMap) (T, bool) {
	var zero T
	if m == nil || m.inner == nil {
		return zero, false
	}
	key := typeOf[T]()
	boxed, ok := m.inner[key]
	if !ok {
		return zero, false
	}
	delete(m.inner, key)
	p, ok := boxed.(*T)
	if !ok {
		return zero, false
	}
	return *p, true
}

// TypeMapContains reports whether a T is stored.
func TypeMapContains[T any](m *TypeMap) bool {
	if m == nil || m.inner == nil {
		return false
	}
	_, ok := m.inner[typeOf[T]()]
	return ok
}

// TypeMapEntry returns the slot for T.
func TypeMapEntry[T any](m *TypeMap) *Entry[T] {
	m.ensure()
	return &Entry[T]{m: m, key: typeOf[T]()}
}

func (m *TypeMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.inner)
}

func (m *TypeMap) IsEmpty() bool {
	return m.Len() == 0
}

func (m *TypeMap) Clear() {
	if m == nil {
		return
	}
	clear(m.inner)
}

// Extend moves every entry of other into m. Values of other win on type
// collision. other must not be used afterwards.
func (m *TypeMap) Extend(other *TypeMap) {
	if other == nil || len(other.inner) == 0 {
		return
	}
	m.ensure()
	for k, v := range other.inner {
		m.inner[k] = v
	}
}

// clone copies every value into a fresh box, so writes through GetMut on
// either map stay private to it.
func (m *TypeMap) clone() *TypeMap {
	if m == nil || len(m.inner) == 0 {
		return nil
	}
	c := NewTypeMap(len(m.inner))
	for k, boxed := range m.inner {
		nv := reflect.New(k)
		nv.Elem().Set(reflect.ValueOf(boxed).Elem())
		c.inner[k] = nv.Interface()
	}
	return c
}

// Range calls fn with each stored type and its value until fn returns false.
func (m *TypeMap) Range(fn func(t reflect.Type, v any) bool) {
	if m == nil {
		return
	}
	for k, boxed := range m.inner {
		if !fn(k, reflect.ValueOf(boxed).Elem().Interface()) {
			return
		}
	}
}

// Entry is an updatable slot for a T in a TypeMap.
type Entry[T any] struct {
	m   *TypeMap
	key reflect.Type
}

func (e *Entry[T]) get() *T {
	if boxed, ok := e.m.inner[e.key]; ok {
		if p, ok := boxed.(*T); ok {
			return p
		}
	}
	return nil
}

func (e *Entry[T]) put(v T) *T {
	p := &v
	e.m.inner[e.key] = p
	return p
}

// OrInsert stores v if no T is present and returns the stored value.
func (e *Entry[T]) OrInsert(v T) *T {
	if p := e.get(); p != nil {
		return p
	}
	return e.put(v)
}

// OrInsertWith is OrInsert with a lazily built default.
func (e *Entry[T]) OrInsertWith(fn func() T) *T {
	if p := e.get(); p != nil {
		return p
	}
	return e.put(fn())
}

// OrInsertWithKey is OrInsertWith where fn receives the type key.
func (e *Entry[T]) OrInsertWithKey(fn func(reflect.Type) T) *T {
	if p := e.get(); p != nil {
		return p
	}
	return e.put(fn(e.key))
}

// AndModify applies fn to the stored value if present.
func (e *Entry[T]) AndModify(fn func(*T)) *Entry[T] {
	if p := e.get(); p != nil {
		fn(p)
	}
	return e
}

// OrDefault stores the zero T if absent.
func (e *Entry[T]) OrDefault() *T {
	if p := e.get(); p != nil {
		return p
	}
	var zero T
	return e.put(zero)
}
