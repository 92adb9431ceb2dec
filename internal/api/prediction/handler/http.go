package predictionHandler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"

	predictionService "github.com/thanaphatngamloed29-pixel/rice.disease/internal/api/prediction/service"
	"github.com/thanaphatngamloed29-pixel/rice.disease/internal/middleware"
	"github.com/thanaphatngamloed29-pixel/rice.disease/pkg/utils"
)

type PredictionHandler struct {
	log               *logrus.Logger
	middleware        middleware.Middleware
	predictionService predictionService.IPredictionService
	utils             utils.IUtils
	timeout           time.Duration
}

func New(
	log *logrus.Logger,
	middleware middleware.Middleware,
	ps predictionService.IPredictionService,
	utils utils.IUtils,
	timeout time.Duration,
) *PredictionHandler {
	return &PredictionHandler{
		predictionService: ps,
		log:               log,
		middleware:        middleware,
		utils:             utils,
		timeout:           timeout,
	}
}

func (h *PredictionHandler) Start(srv fiber.Router) {
	wsMiddleware := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}

	predict := srv.Group("/predict")
	predict.Post("", h.middleware.NewRateLimiter, h.Predict)
	predict.Use("/ws", wsMiddleware)
	predict.Get("/ws", websocket.New(h.handleWebSocket))
}
