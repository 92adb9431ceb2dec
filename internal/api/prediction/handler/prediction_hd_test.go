package predictionHandler

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	gorillaws "github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thanaphatngamloed29-pixel/rice.disease/internal/api/prediction"
	predictionService "github.com/thanaphatngamloed29-pixel/rice.disease/internal/api/prediction/service"
	"github.com/thanaphatngamloed29-pixel/rice.disease/internal/entity"
	"github.com/thanaphatngamloed29-pixel/rice.disease/internal/middleware"
	"github.com/thanaphatngamloed29-pixel/rice.disease/pkg/fetcher"
	"github.com/thanaphatngamloed29-pixel/rice.disease/pkg/imaging"
	"github.com/thanaphatngamloed29-pixel/rice.disease/pkg/model"
	"github.com/thanaphatngamloed29-pixel/rice.disease/pkg/utils"
)

func TestMain(m *testing.M) {
	os.Setenv("APP_ENV", "test")
	os.Exit(m.Run())
}

type stubModel struct {
	scores []float32
	block  bool
	delay  time.Duration
}

func (m *stubModel) Predict(ctx context.Context, _ *entity.Tensor) ([]float32, error) {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return m.scores, nil
}

func (m *stubModel) OutputWidth() int { return len(m.scores) }
func (m *stubModel) Close() error     { return nil }

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.NRGBA{R: 200, G: 180, B: 20, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestApp(t *testing.T, m model.Model, loadErr error, timeout time.Duration) *fiber.App {
	t.Helper()
	logger := quietLogger()
	u := utils.New(1 << 20)

	loader := model.NewLoader(logger, model.RuntimeFunc(func(string) (model.Model, error) {
		if loadErr != nil {
			return nil, loadErr
		}
		return m, nil
	}), prediction.ModelPath, 3)

	svc := predictionService.NewPredictionService(logger, loader, fetcher.New(logger, time.Second, 0), nil, nil, u, []string{"A", "B", "C"}, imaging.DefaultMaxPixels)
	mw := middleware.New(logger, u, 100, 100)

	app := fiber.New(fiber.Config{
		JSONEncoder: jsoniter.Marshal,
		JSONDecoder: jsoniter.Unmarshal,
	})
	app.Use(mw.NewRequestIDMiddleware())
	New(logger, mw, svc, u, timeout).Start(app)
	return app
}

func postJSON(t *testing.T, app *fiber.App, body string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, "/predict", bytes.NewBufferString(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return do(t, app, req)
}

func do(t *testing.T, app *fiber.App, req *http.Request) (int, map[string]interface{}) {
	t.Helper()
	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	require.NoError(t, jsoniter.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestPredict_MissingInput(t *testing.T) {
	app := newTestApp(t, &stubModel{scores: []float32{0.1, 0.7, 0.2}}, nil, time.Second)

	for _, body := range []string{`{}`, `{"image_base64":"","image_url":""}`} {
		status, out := postJSON(t, app, body)
		assert.Equal(t, fiber.StatusBadRequest, status)
		assert.Equal(t, "no image provided", out["error"])
	}

	req := httptest.NewRequest(fiber.MethodPost, "/predict", nil)
	status, out := do(t, app, req)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "no image provided", out["error"])
}

func TestPredict_InvalidJSON(t *testing.T) {
	app := newTestApp(t, &stubModel{scores: []float32{1}}, nil, time.Second)

	status, out := postJSON(t, app, `{"image_base64":`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "invalid request body", out["error"])
}

func TestPredict_Base64(t *testing.T) {
	app := newTestApp(t, &stubModel{scores: []float32{0.1, 0.7, 0.2}}, nil, time.Second)

	body := `{"image_base64":"` + base64.StdEncoding.EncodeToString(pngBytes(t)) + `"}`
	status, out := postJSON(t, app, body)

	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "B", out["label"])
	assert.InDelta(t, 0.7, out["confidence"], 1e-6)
}

func TestPredict_UnfetchableURL(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	defer upstream.Close()

	app := newTestApp(t, &stubModel{scores: []float32{0.1, 0.7, 0.2}}, nil, time.Second)

	status, out := postJSON(t, app, `{"image_url":"`+upstream.URL+`/missing.jpg"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "cannot fetch image", out["error"])
}

func TestPredict_MultipartUpload(t *testing.T) {
	app := newTestApp(t, &stubModel{scores: []float32{0.8, 0.1, 0.1}}, nil, time.Second)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", "leaf.png")
	require.NoError(t, err)
	_, err = part.Write(pngBytes(t))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(fiber.MethodPost, "/predict", &body)
	req.Header.Set(fiber.HeaderContentType, writer.FormDataContentType())
	status, out := do(t, app, req)

	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "A", out["label"])
}

func TestPredict_MultipartRejectsNonImage(t *testing.T) {
	app := newTestApp(t, &stubModel{scores: []float32{1}}, nil, time.Second)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="image"; filename="notes.txt"`)
	header.Set("Content-Type", "text/plain")
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte("not an image"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(fiber.MethodPost, "/predict", &body)
	req.Header.Set(fiber.HeaderContentType, writer.FormDataContentType())
	status, out := do(t, app, req)

	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "invalid image upload", out["error"])
}

func TestPredict_ModelLoadFailure(t *testing.T) {
	app := newTestApp(t, nil, errors.New("open model/model.onnx: no such file or directory"), time.Second)

	status, out := postJSON(t, app, `{"image_url":"http://127.0.0.1:1/x.jpg"}`)
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Contains(t, out["error"], "model load error")
	assert.Contains(t, out["error"], "no such file or directory")
}

func TestPredict_Timeout(t *testing.T) {
	app := newTestApp(t, &stubModel{block: true}, nil, 50*time.Millisecond)

	body := `{"image_base64":"` + base64.StdEncoding.EncodeToString(pngBytes(t)) + `"}`
	status, out := postJSON(t, app, body)

	assert.Equal(t, fiber.StatusRequestTimeout, status)
	assert.Equal(t, "Request Timeout", out["error"])
}

func TestPredict_LateSuccessIsKept(t *testing.T) {
	app := newTestApp(t, &stubModel{scores: []float32{0.1, 0.7, 0.2}, delay: 100 * time.Millisecond}, nil, 20*time.Millisecond)

	body := `{"image_base64":"` + base64.StdEncoding.EncodeToString(pngBytes(t)) + `"}`
	status, out := postJSON(t, app, body)

	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "B", out["label"])
}

func TestPredict_WebSocket(t *testing.T) {
	app := newTestApp(t, &stubModel{scores: []float32{0.1, 0.2, 0.7}}, nil, time.Second)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	defer func() { _ = app.Shutdown() }()

	conn, _, err := gorillaws.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/predict/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(gorillaws.BinaryMessage, pngBytes(t)))
	var got entity.Prediction
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "C", got.Label)
	assert.InDelta(t, 0.7, got.Confidence, 1e-6)

	require.NoError(t, conn.WriteMessage(gorillaws.TextMessage, []byte(`{}`)))
	var failed prediction.ErrorResponse
	require.NoError(t, conn.ReadJSON(&failed))
	assert.Equal(t, "no image provided", failed.Error)

	require.NoError(t, conn.WriteMessage(gorillaws.TextMessage, []byte(`not json`)))
	require.NoError(t, conn.ReadJSON(&failed))
	assert.Equal(t, "invalid request body", failed.Error)
}

func TestPredict_WebSocketRequiresUpgrade(t *testing.T) {
	app := newTestApp(t, &stubModel{scores: []float32{1}}, nil, time.Second)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/predict/ws", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}
