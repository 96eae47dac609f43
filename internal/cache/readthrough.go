package cache

import "reflect"

// Through wraps a read operation with cache lookup. With force set, any
// existing entry is invalidated first and the backend is always consulted.
// Results are cached only when the fetch succeeded and produced something
// non-empty, so a "not found" never shadows a later write.
func Through[T any](m *Manager, key string, force bool, fetch func() (T, error)) (T, error) {
	if force {
		m.Invalidate(key)
	} else if v, ok := m.Get(key); ok {
		return v.(T), nil
	}

	v, err := fetch()
	if err == nil && worthCaching(v) {
		m.Set(key, v)
	}
	return v, err
}

// worthCaching rejects nil pointers/interfaces and empty collections.
func worthCaching(v any) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Invalid:
		return false
	case reflect.Ptr, reflect.Interface:
		return !rv.IsNil()
	case reflect.Slice, reflect.Map:
		return !rv.IsNil() && rv.Len() > 0
	default:
		return true
	}
}
