package agentsup

// Ptr returns a pointer to the given value, for constructing optional
// pointer fields in struct literals without an intermediate variable.
func Ptr[T any](v T) *T {
	return &v
}
