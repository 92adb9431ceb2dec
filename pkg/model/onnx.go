package model

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/thanaphatngamloed29-pixel/rice.disease/internal/entity"
)

var (
	ErrUnsupportedModel = errors.New("unsupported model signature")
	ErrShapeMismatch    = errors.New("input tensor does not match model input")
)

type onnxRuntime struct {
	libPath string
	log     *logrus.Logger
	mu      sync.Mutex
}

// NewONNXRuntime returns a Runtime backed by onnxruntime. libPath selects the
// shared library; an empty value keeps the library default.
func NewONNXRuntime(log *logrus.Logger, libPath string) Runtime {
	return &onnxRuntime{
		libPath: libPath,
		log:     log,
	}
}

func (r *onnxRuntime) initialize() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	if r.libPath != "" {
		ort.SetSharedLibraryPath(r.libPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}
	return nil
}

func (r *onnxRuntime) Load(path string) (Model, error) {
	if err := r.initialize(); err != nil {
		return nil, err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model signature: %w", err)
	}
	if len(inputs) != 1 || len(outputs) == 0 {
		return nil, fmt.Errorf("%w: %d inputs, %d outputs", ErrUnsupportedModel, len(inputs), len(outputs))
	}

	input, output := inputs[0], outputs[0]
	if input.DataType != ort.TensorElementDataTypeFloat || output.DataType != ort.TensorElementDataTypeFloat {
		return nil, fmt.Errorf("%w: expected float32 input and output", ErrUnsupportedModel)
	}
	for i, dim := range output.Dimensions {
		if i > 0 && dim < 0 {
			return nil, fmt.Errorf("%w: dynamic output shape %v", ErrUnsupportedModel, output.Dimensions)
		}
	}

	session, err := ort.NewDynamicAdvancedSession(path,
		[]string{input.Name}, []string{output.Name}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"input":        input.Name,
		"input_shape":  fmt.Sprint(input.Dimensions),
		"output":       output.Name,
		"output_shape": fmt.Sprint(output.Dimensions),
	}).Debug("ONNX session created")

	return &onnxModel{
		session:     session,
		inputShape:  input.Dimensions,
		outputShape: output.Dimensions,
	}, nil
}

// Shutdown tears down the onnxruntime environment. Call it once, after every
// model has been closed.
func Shutdown() error {
	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

type onnxModel struct {
	session     *ort.DynamicAdvancedSession
	inputShape  ort.Shape
	outputShape ort.Shape
}

func (m *onnxModel) OutputWidth() int {
	if len(m.outputShape) == 0 {
		return 0
	}
	width := m.outputShape[len(m.outputShape)-1]
	if width < 0 {
		return 0
	}
	return int(width)
}

// channelsFirst reports whether the model declares an NCHW image input.
func (m *onnxModel) channelsFirst() bool {
	return len(m.inputShape) == 4 && m.inputShape[1] == 3 && m.inputShape[3] != 3
}

func (m *onnxModel) Predict(ctx context.Context, input *entity.Tensor) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(input.Shape) != 4 || int64(len(input.Data)) != input.Size() {
		return nil, fmt.Errorf("%w: shape %v with %d values", ErrShapeMismatch, input.Shape, len(input.Data))
	}

	shape, data := input.Shape, input.Data
	if m.channelsFirst() {
		shape, data = toNCHW(input)
	}

	in, err := ort.NewTensor(ort.NewShape(shape...), data)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer in.Destroy()

	outShape := make([]int64, len(m.outputShape))
	copy(outShape, m.outputShape)
	if len(outShape) > 0 && outShape[0] < 0 {
		outShape[0] = shape[0]
	}

	out, err := ort.NewEmptyTensor[float32](ort.NewShape(outShape...))
	if err != nil {
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer out.Destroy()

	if err := m.session.Run([]ort.ArbitraryTensor{in}, []ort.ArbitraryTensor{out}); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	// Only the first batch row is scored.
	width := m.OutputWidth()
	raw := out.GetData()
	if width == 0 || width > len(raw) {
		width = len(raw)
	}
	scores := make([]float32, width)
	copy(scores, raw[:width])
	return scores, nil
}

func (m *onnxModel) Close() error {
	if m.session == nil {
		return nil
	}
	err := m.session.Destroy()
	m.session = nil
	return err
}

// toNCHW copies an NHWC tensor into channel-major order.
func toNCHW(t *entity.Tensor) ([]int64, []float32) {
	n, h, w, c := t.Shape[0], t.Shape[1], t.Shape[2], t.Shape[3]
	out := make([]float32, len(t.Data))

	for b := int64(0); b < n; b++ {
		for y := int64(0); y < h; y++ {
			for x := int64(0); x < w; x++ {
				for ch := int64(0); ch < c; ch++ {
					src := ((b*h+y)*w+x)*c + ch
					dst := ((b*c+ch)*h+y)*w + x
					out[dst] = t.Data[src]
				}
			}
		}
	}

	return []int64{n, c, h, w}, out
}
