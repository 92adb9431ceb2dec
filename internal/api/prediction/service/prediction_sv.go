package predictionService

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/thanaphatngamloed29-pixel/rice.disease/internal/api/prediction"
	"github.com/thanaphatngamloed29-pixel/rice.disease/internal/entity"
	"github.com/thanaphatngamloed29-pixel/rice.disease/pkg/classifier"
	contextPkg "github.com/thanaphatngamloed29-pixel/rice.disease/pkg/context"
	"github.com/thanaphatngamloed29-pixel/rice.disease/pkg/imaging"
	"github.com/thanaphatngamloed29-pixel/rice.disease/pkg/redis"
	"github.com/thanaphatngamloed29-pixel/rice.disease/pkg/response"
	"github.com/thanaphatngamloed29-pixel/rice.disease/pkg/s3"
)

var errS3Disabled = errors.New("s3 image source is not configured")

// Predict runs ensure-model → acquire → preprocess → infer → classify, in that
// order. The first failing stage decides the returned error.
func (s *predictionService) Predict(ctx context.Context, source prediction.ImageSource) (*entity.Prediction, error) {
	entry := s.log.WithFields(logrus.Fields{
		"request_id": contextPkg.GetRequestID(ctx),
		"source":     source.Kind,
	})

	m, err := s.loader.Ensure(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, response.Wrap(prediction.ErrModelLoad, err)
	}

	data, err := s.acquire(ctx, source)
	if err != nil {
		return nil, err
	}

	var cacheKey string
	if s.cache != nil {
		cacheKey = redis.KeyFor(data)
		cached, err := s.cache.GetPrediction(ctx, cacheKey)
		if err == nil {
			entry.WithField("label", cached.Label).Debug("Serving cached prediction")
			return cached, nil
		}
		if !errors.Is(err, redis.ErrCacheMiss) {
			entry.WithField("error", err.Error()).Warn("Prediction cache lookup failed")
		}
	}

	tensor, err := imaging.Preprocess(data, s.targetSize, s.maxPixels)
	if err != nil {
		return nil, response.Wrap(prediction.ErrDecode, err)
	}

	scores, err := m.Predict(ctx, tensor)
	if err != nil {
		return nil, response.Wrap(prediction.ErrInference, err)
	}

	result, err := classifier.Classify(scores, s.labels)
	if err != nil {
		return nil, response.Wrap(prediction.ErrNoScores, err)
	}

	if s.cache != nil {
		if err := s.cache.SetPrediction(ctx, cacheKey, result); err != nil {
			entry.WithField("error", err.Error()).Warn("Failed to cache prediction")
		}
	}

	entry.WithFields(logrus.Fields{
		"label":      result.Label,
		"confidence": result.Confidence,
		"scores":     len(scores),
	}).Info("Prediction completed")

	return result, nil
}

func (s *predictionService) acquire(ctx context.Context, source prediction.ImageSource) ([]byte, error) {
	switch source.Kind {
	case prediction.SourceBase64:
		data, err := s.utils.DecodeBase64Image(source.Encoded)
		if err != nil {
			return nil, response.Wrap(prediction.ErrDecode, err)
		}
		return data, nil

	case prediction.SourceURL:
		data, err := s.fetch(ctx, source.URL)
		if err != nil {
			return nil, response.Wrap(prediction.ErrUpstreamFetch, err)
		}
		return data, nil

	case prediction.SourceUpload:
		if len(source.Data) == 0 {
			return nil, prediction.ErrMissingInput
		}
		return source.Data, nil

	default:
		return nil, prediction.ErrMissingInput
	}
}

func (s *predictionService) fetch(ctx context.Context, url string) ([]byte, error) {
	if !s3.IsS3URL(url) {
		return s.fetcher.Fetch(ctx, url)
	}
	if s.s3Client == nil {
		return nil, errS3Disabled
	}
	return s.s3Client.Download(ctx, url)
}
