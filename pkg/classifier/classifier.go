// Package classifier resolves a model score vector to a single labelled
// prediction.
package classifier

import (
	"errors"
	"fmt"
	"math"

	"github.com/thanaphatngamloed29-pixel/rice.disease/internal/entity"
)

// PlaceholderPrefix names classes that lie beyond the end of the label table.
const PlaceholderPrefix = "class_"

var ErrNoScores = errors.New("no score selected")

// Argmax returns the index and value of the largest score. Ties go to the
// lowest index and NaN is never selected, so a vector with no selectable
// score yields ErrNoScores.
func Argmax(scores []float32) (int, float32, error) {
	idx := -1
	maxScore := float32(math.Inf(-1))

	for i, score := range scores {
		if score > maxScore {
			maxScore = score
			idx = i
		}
	}

	if idx < 0 {
		return -1, 0, ErrNoScores
	}
	return idx, maxScore, nil
}

// Label returns labels[idx], or a placeholder built from idx when the table
// is too short.
func Label(labels []string, idx int) string {
	if idx >= 0 && idx < len(labels) {
		return labels[idx]
	}
	return fmt.Sprintf("%s%d", PlaceholderPrefix, idx)
}

func Classify(scores []float32, labels []string) (*entity.Prediction, error) {
	idx, confidence, err := Argmax(scores)
	if err != nil {
		return nil, err
	}

	return &entity.Prediction{
		Label:      Label(labels, idx),
		Confidence: confidence,
	}, nil
}
