package pipeline

import "reflect"

// isDeepEmpty reports whether payload is the Go analogue of the source's
// "undefined, null, '', [], {}" emptiness check: nil, a zero-length
// string, or a zero-length slice/map/array.
func isDeepEmpty(payload any) bool {
	if payload == nil {
		return true
	}

	v := reflect.ValueOf(payload)
	switch v.Kind() {
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return v.Len() == 0
	case reflect.Ptr, reflect.Interface:
		if v.IsNil() {
			return true
		}
		return isDeepEmpty(v.Elem().Interface())
	default:
		return false
	}
}

// structurallyEqual reports whether two forwarded payloads are identical
// for change-detection purposes.
func structurallyEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}
