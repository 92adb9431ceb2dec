package config

import (
	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
)

const bodyLimit = 50 * 1024 * 1024

func NewFiber() *fiber.App {
	app := fiber.New(
		fiber.Config{
			AppName:               "Rice Disease Predictor",
			BodyLimit:             bodyLimit,
			DisableKeepalive:      false,
			StrictRouting:         true,
			CaseSensitive:         true,
			DisableStartupMessage: true,
			JSONEncoder:           jsoniter.Marshal,
			JSONDecoder:           jsoniter.Unmarshal,
		})

	return app
}
