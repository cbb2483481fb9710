package logging

import "fmt"

// MaskSecret shows only the first and last 4 characters of a sensitive
// string, for safe inclusion in log fields.
func MaskSecret(secret string) string {
	if secret == "" {
		return "<not set>"
	}
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}

// Must panics if err is non-nil, otherwise returns value. For initialization
// paths that should fail fast.
func Must[T any](value T, err error) T {
	if err != nil {
		panic(fmt.Sprintf("must: %v", err))
	}
	return value
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }

// PtrValue returns the pointed-to value, or the zero value if ptr is nil.
func PtrValue[T any](ptr *T) T {
	if ptr == nil {
		var zero T
		return zero
	}
	return *ptr
}
