package prediction

type PredictRequest struct {
	ImageBase64 string `json:"image_base64"`
	ImageURL    string `json:"image_url"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type SourceKind string

const (
	SourceBase64  SourceKind = "BASE64"
	SourceURL     SourceKind = "URL"
	SourceUpload  SourceKind = "UPLOAD"
	SourceInvalid SourceKind = "INVALID"
)

// ImageSource is the resolved form of a predict request. Exactly one of the
// payload fields is meaningful, selected by Kind.
type ImageSource struct {
	Kind    SourceKind
	Encoded string
	URL     string
	Data    []byte
}

func ByBase64(encoded string) ImageSource {
	return ImageSource{Kind: SourceBase64, Encoded: encoded}
}

func ByURL(url string) ImageSource {
	return ImageSource{Kind: SourceURL, URL: url}
}

func ByUpload(data []byte) ImageSource {
	return ImageSource{Kind: SourceUpload, Data: data}
}

func Invalid() ImageSource {
	return ImageSource{Kind: SourceInvalid}
}

// Source resolves the request body in priority order: base64 first, then
// URL. Empty strings count as absent.
func (r PredictRequest) Source() ImageSource {
	switch {
	case r.ImageBase64 != "":
		return ByBase64(r.ImageBase64)
	case r.ImageURL != "":
		return ByURL(r.ImageURL)
	default:
		return Invalid()
	}
}
