package utils

// Must1 unwraps a result whose error is known to be impossible, such as
// re-reading a byte that was just peeked.
func Must1[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
