package predictionHandler

import (
	"time"

	"github.com/gofiber/websocket/v2"
	jsoniter "github.com/json-iterator/go"
	"golang.org/x/net/context"

	"github.com/thanaphatngamloed29-pixel/rice.disease/internal/api/prediction"
	"github.com/thanaphatngamloed29-pixel/rice.disease/internal/middleware"
	contextPkg "github.com/thanaphatngamloed29-pixel/rice.disease/pkg/context"
	"github.com/thanaphatngamloed29-pixel/rice.disease/pkg/log"
	"github.com/thanaphatngamloed29-pixel/rice.disease/pkg/response"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsWriteTimeout = 10 * time.Second
)

// handleWebSocket classifies one image per frame. Binary frames carry raw
// image bytes; text frames carry the same JSON body as POST /predict.
func (h *PredictionHandler) handleWebSocket(c *websocket.Conn) {
	requestID, _ := c.Locals(middleware.RequestIDKey).(string)
	logger := log.WithRequestID(contextPkg.WithRequestID(context.Background(), requestID))

	logger.Info("Prediction WebSocket client connected")
	defer logger.Info("Prediction WebSocket client disconnected")

	c.SetPingHandler(func(data string) error {
		if err := c.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second)); err != nil {
			logger.Errorf("Error sending pong: %v", err)
		}
		return nil
	})

	for {
		if err := c.SetReadDeadline(time.Now().Add(wsReadTimeout)); err != nil {
			logger.Errorf("Error setting read deadline: %v", err)
			break
		}

		messageType, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Errorf("Prediction WebSocket error: %v", err)
			}
			break
		}

		var source prediction.ImageSource
		switch messageType {
		case websocket.BinaryMessage:
			source = prediction.ByUpload(message)
		case websocket.TextMessage:
			var req prediction.PredictRequest
			if err := jsoniter.Unmarshal(message, &req); err != nil {
				if !h.writeFrame(c, prediction.ErrorResponse{Error: prediction.ErrInvalidBody.Error()}) {
					return
				}
				continue
			}
			source = req.Source()
		default:
			logger.Warnf("Received unexpected message type: %d", messageType)
			continue
		}

		if !h.writeFrame(c, h.predictFrame(requestID, source)) {
			break
		}
	}
}

func (h *PredictionHandler) predictFrame(requestID string, source prediction.ImageSource) interface{} {
	ctx, cancel := context.WithTimeout(contextPkg.WithRequestID(context.Background(), requestID), h.timeout)
	defer cancel()

	result, err := h.predictionService.Predict(ctx, source)
	if err != nil {
		h.log.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
			"source":     source.Kind,
		}).Warn("WebSocket prediction failed")
		return prediction.ErrorResponse{Error: response.Message(err)}
	}
	return result
}

func (h *PredictionHandler) writeFrame(c *websocket.Conn, payload interface{}) bool {
	if err := c.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		h.log.Errorf("Error setting write deadline: %v", err)
		return false
	}
	if err := c.WriteJSON(payload); err != nil {
		h.log.Errorf("Error writing JSON response: %v", err)
		return false
	}
	return true
}
