package types

// Normalize turns a single value or a slice of values into a slice.
// A T becomes a one-element slice, a []T is returned as is and nil yields
// an empty slice. Any other input also yields an empty slice.
func Normalize[T any](value any) []T {
	switch v := value.(type) {
	case nil:
		return []T{}
	case []T:
		return v
	case T:
		return []T{v}
	default:
		return []T{}
	}
}
