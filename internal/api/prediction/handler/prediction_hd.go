package predictionHandler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/net/context"

	"github.com/thanaphatngamloed29-pixel/rice.disease/internal/api/prediction"
	contextPkg "github.com/thanaphatngamloed29-pixel/rice.disease/pkg/context"
	"github.com/thanaphatngamloed29-pixel/rice.disease/pkg/handlerUtil"
	"github.com/thanaphatngamloed29-pixel/rice.disease/pkg/log"
	"github.com/thanaphatngamloed29-pixel/rice.disease/pkg/response"
)

func (h *PredictionHandler) Predict(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), h.timeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
	}).Debug("Processing prediction request")

	source, err := h.resolveSource(ctx, requestID)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "resolve_source")
	}

	result, err := h.predictionService.Predict(c, source)
	if err != nil {
		if c.Err() != nil {
			h.log.WithFields(log.Fields{
				"request_id": requestID,
				"path":       ctx.Path(),
				"timeout":    h.timeout.String(),
				"error":      err.Error(),
			}).Warn("Prediction request timed out")
			return errHandler.HandleRequestTimeout(ctx)
		}
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "predict")
	}

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
		"label":      result.Label,
		"confidence": result.Confidence,
	}).Info("Prediction successful")
	return errHandler.HandleSuccess(ctx, fiber.StatusOK, result)
}

// resolveSource turns the request into an image source. A multipart "image"
// field wins; otherwise the JSON body is read.
func (h *PredictionHandler) resolveSource(ctx *fiber.Ctx, requestID string) (prediction.ImageSource, error) {
	file, err := ctx.FormFile("image")
	if err == nil {
		h.log.WithFields(log.Fields{
			"request_id": requestID,
			"path":       ctx.Path(),
			"file_name":  file.Filename,
			"file_size":  file.Size,
		}).Debug("Processing file upload")

		if err := h.utils.ValidateImageFile(file); err != nil {
			return prediction.Invalid(), response.Wrap(prediction.ErrInvalidUpload, err)
		}

		fileContent, err := file.Open()
		if err != nil {
			return prediction.Invalid(), err
		}
		defer fileContent.Close()

		data, err := h.utils.ReadFile(fileContent)
		if err != nil {
			return prediction.Invalid(), err
		}
		return prediction.ByUpload(data), nil
	}

	if strings.HasPrefix(string(ctx.Request().Header.ContentType()), fiber.MIMEMultipartForm) || len(ctx.Body()) == 0 {
		return prediction.Invalid(), nil
	}

	var req prediction.PredictRequest
	if err := ctx.BodyParser(&req); err != nil {
		return prediction.Invalid(), response.Wrap(prediction.ErrInvalidBody, err)
	}

	return req.Source(), nil
}
