package common

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSliceToBytes(t *testing.T) {
	assert.Nil(t, SliceToBytes([]float32(nil)))

	data := []float32{1, 2}
	b := SliceToBytes(data)
	assert.Len(t, b, 8)
	assert.Equal(t, float32(1), math.Float32frombits(binary.LittleEndian.Uint32(b[0:4])))
	assert.Equal(t, float32(2), math.Float32frombits(binary.LittleEndian.Uint32(b[4:8])))

	indices := []uint32{42}
	assert.Equal(t, uint32(42), binary.LittleEndian.Uint32(SliceToBytes(indices)))
}

func TestCoalesce(t *testing.T) {
	assert.Equal(t, "a", Coalesce("", "a", "b"))
	assert.Equal(t, 5, Coalesce(0, 0, 5))
	assert.Equal(t, 0, Coalesce(0, 0))
	assert.Equal(t, "x", Coalesce("x", "y"))
}
