package entity

type Prediction struct {
	Label      string  `json:"label"`
	Confidence float32 `json:"confidence"`
}
