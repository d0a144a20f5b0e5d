package reflectx

import "reflect"

// IsNil reports whether v is nil or holds a nil pointer, map, slice, func,
// channel or interface. Zero structs and zero scalars are not nil.
func IsNil(v any) bool {
	if v == nil {
		return true
	}

	val := reflect.ValueOf(v)
	switch val.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return val.IsNil()
	}
	return false
}

// Satisfies reports whether a value of type from can be used where target is
// expected without conversion: the types are identical or target is an
// interface that from implements.
func Satisfies(from, target reflect.Type) bool {
	if from == nil || target == nil {
		return false
	}
	if from == target {
		return true
	}
	return target.Kind() == reflect.Interface && from.Implements(target)
}
