// package common contains common types and helpers that are used throughout this module.
// They are not interface-wrapped structs, just plain data types and free functions shared
// by the loading pipeline, the renderer, and the command binaries.
package common

import "unsafe"

// ModelBounds describes a bounding sphere for one model in scene-local space.
type ModelBounds struct {
	// Center is the sphere center after the model's local transform is applied.
	Center [3]float32
	// Radius is the sphere radius after the model's local transform is applied.
	Radius float32
}

// SliceToBytes converts any slice to a byte slice for GPU buffer uploads.
// Uses unsafe pointer operations to create a view into the original data.
// WARNING: The returned slice shares memory with the input - do not modify.
//
// Parameters:
//   - data: source slice of any type
//
// Returns:
//   - []byte: byte slice view of the input data, or nil if input is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	size := unsafe.Sizeof(zero)
	totalBytes := int(size) * len(data)
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), totalBytes)
}

// Coalesce returns the first non-zero value from the provided values, or the zero value if all are zero.
//
// Parameters:
//   - values: a variadic list of values to check for non-zero status
//
// Returns:
//   - T: the first non-zero value from the input, or the zero value if all are zero
func Coalesce[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}
