// Package shared provides small byte-slice helpers used across layers.
package shared

// CloneBytes returns an independent copy of b (nil for nil).
func CloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
