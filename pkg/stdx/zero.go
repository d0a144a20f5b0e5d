package stdx

// Zero returns the zero value of T: 0, "", false, nil, or a struct with
// every field set to its own zero value.
func Zero[T any]() T {
	var zero T
	return zero
}

// Deref returns the value p points to, or the zero value of T when p is nil.
func Deref[T any](p *T) T {
	if p == nil {
		return Zero[T]()
	}
	return *p
}
