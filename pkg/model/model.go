// Package model owns the classification model handle: loading it once behind
// a single-flight gate and invoking it for inference.
package model

import (
	"context"

	"github.com/thanaphatngamloed29-pixel/rice.disease/internal/entity"
)

// Model is a loaded, read-only classification model. Predict must be safe
// for concurrent use and must not retain or modify the input tensor.
type Model interface {
	Predict(ctx context.Context, input *entity.Tensor) ([]float32, error)
	// OutputWidth is the number of scores per prediction, or 0 when the
	// artifact does not declare it.
	OutputWidth() int
	Close() error
}

// Runtime reads a model artifact from disk.
type Runtime interface {
	Load(path string) (Model, error)
}

type RuntimeFunc func(path string) (Model, error)

func (f RuntimeFunc) Load(path string) (Model, error) {
	return f(path)
}
