package metainfo

import (
	"maps"
	"reflect"
)

// FastStrMap is a TypeMap specialised for string values. It suits marker
// types that wrap a string (type Caller string): the string is stored as is,
// without a box per entry.
type FastStrMap struct {
	inner map[reflect.Type]string
}

func NewFastStrMap(capacity int) *FastStrMap {
	return &FastStrMap{inner: make(map[reflect.Type]string, capacity)}
}

func FastStrMapInsert[T any](m *FastStrMap, s string) {
	if m.inner == nil {
		m.inner = make(map[reflect.Type]string, defaultMapSize)
	}
	m.inner[typeOf[T]()] = s
}

func FastStrMapGet[T any](m *FastStrMap) (string, bool) {
	if m == nil || m.inner == nil {
		return "", false
	}
	s, ok := m.inner[typeOf[T]()]
	return s, ok
}

func FastStrMapRemove[T any](m *FastStrMap) (string, bool) {
	if m == nil || m.inner == nil {
		return "", false
	}
	key := typeOf[T]()
	s, ok := m.inner[key]
	if ok {
		delete(m.inner, key)
	}
	return s, ok
}

func FastStrMapContains[T any](m *FastStrMap) bool {
	_, ok := FastStrMapGet[T](m)
	return ok
}

func (m *FastStrMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.inner)
}

func (m *FastStrMap) IsEmpty() bool {
	return m.Len() == 0
}

func (m *FastStrMap) Clear() {
	if m == nil {
		return
	}
	clear(m.inner)
}

// Extend copies every entry of other into m; other wins on collision.
func (m *FastStrMap) Extend(other *FastStrMap) {
	if other == nil || len(other.inner) == 0 {
		return
	}
	if m.inner == nil {
		m.inner = make(map[reflect.Type]string, len(other.inner))
	}
	for k, v := range other.inner {
		m.inner[k] = v
	}
}

func (m *FastStrMap) clone() *FastStrMap {
	if m == nil || len(m.inner) == 0 {
		return nil
	}
	return &FastStrMap{inner: maps.Clone(m.inner)}
}

func (m *FastStrMap) Range(fn func(t reflect.Type, s string) bool) {
	if m == nil {
		return
	}
	for k, v := range m.inner {
		if !fn(k, v) {
			return
		}
	}
}
