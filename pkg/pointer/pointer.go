package pointer

// To returns a pointer to a copy of value
func To[T any](value T) *T {
	return &value
}

// OrDefault returns value, or a pointer to defaultValue when value is nil
func OrDefault[T any](value *T, defaultValue T) *T {
	if value != nil {
		return value
	}
	return &defaultValue
}

// IfValid maps sql.Null* style pairs to an optional pointer
func IfValid[T any](valid bool, value T) *T {
	if valid {
		return &value
	}
	return nil
}

// Copy returns a new pointer to the same value, or nil
func Copy[T any](value *T) *T {
	if value == nil {
		return nil
	}
	return To(*value)
}
