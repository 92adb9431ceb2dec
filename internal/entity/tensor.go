package entity

// Tensor is a dense float32 tensor in row-major order.
type Tensor struct {
	Shape []int64
	Data  []float32
}

// Size is the number of elements described by Shape.
func (t *Tensor) Size() int64 {
	if len(t.Shape) == 0 {
		return 0
	}
	size := int64(1)
	for _, dim := range t.Shape {
		size *= dim
	}
	return size
}
