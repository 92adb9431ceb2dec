package prediction

import (
	"net/http"

	"github.com/thanaphatngamloed29-pixel/rice.disease/pkg/response"
)

var (
	ErrMissingInput  = response.NewError(http.StatusBadRequest, "no image provided")
	ErrUpstreamFetch = response.NewError(http.StatusBadRequest, "cannot fetch image")
	ErrInvalidBody   = response.NewError(http.StatusBadRequest, "invalid request body")
	ErrInvalidUpload = response.NewError(http.StatusBadRequest, "invalid image upload")
	ErrDecode        = response.NewError(http.StatusInternalServerError, "decode error")
	ErrModelLoad     = response.NewError(http.StatusInternalServerError, "model load error")
	ErrInference     = response.NewError(http.StatusInternalServerError, "inference error")
	ErrNoScores      = response.NewError(http.StatusInternalServerError, "model returned no scores")
)
