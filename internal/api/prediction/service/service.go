package predictionService

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/thanaphatngamloed29-pixel/rice.disease/internal/api/prediction"
	"github.com/thanaphatngamloed29-pixel/rice.disease/internal/entity"
	"github.com/thanaphatngamloed29-pixel/rice.disease/pkg/fetcher"
	"github.com/thanaphatngamloed29-pixel/rice.disease/pkg/model"
	"github.com/thanaphatngamloed29-pixel/rice.disease/pkg/redis"
	"github.com/thanaphatngamloed29-pixel/rice.disease/pkg/s3"
	"github.com/thanaphatngamloed29-pixel/rice.disease/pkg/utils"
)

type IPredictionService interface {
	Predict(ctx context.Context, source prediction.ImageSource) (*entity.Prediction, error)
}

// ModelLoader hands out the shared model, loading it on first use.
type ModelLoader interface {
	Ensure(ctx context.Context) (model.Model, error)
}

type predictionService struct {
	log        *logrus.Logger
	loader     ModelLoader
	fetcher    fetcher.IFetcher
	s3Client   s3.ItfS3
	cache      redis.IRedis
	utils      utils.IUtils
	labels     []string
	targetSize int
	maxPixels  int
}

// NewPredictionService wires the prediction pipeline. s3Client and cache may
// be nil, which disables s3:// sources and result caching respectively.
// Images whose header declares more than maxPixels pixels are rejected before
// decoding.
func NewPredictionService(
	log *logrus.Logger,
	loader ModelLoader,
	fetcher fetcher.IFetcher,
	s3Client s3.ItfS3,
	cache redis.IRedis,
	utils utils.IUtils,
	labels []string,
	maxPixels int,
) IPredictionService {
	table := make([]string, len(labels))
	copy(table, labels)

	return &predictionService{
		log:        log,
		loader:     loader,
		fetcher:    fetcher,
		s3Client:   s3Client,
		cache:      cache,
		utils:      utils,
		labels:     table,
		targetSize: prediction.TargetSize,
		maxPixels:  maxPixels,
	}
}
