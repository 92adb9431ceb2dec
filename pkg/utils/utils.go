package utils

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"mime/multipart"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	ErrNoFile       = errors.New("no file uploaded")
	ErrFileTooLarge = errors.New("file size exceeds limit")
	ErrNotAnImage   = errors.New("uploaded file is not an image")
)

type IUtils interface {
	NewULIDFromTimestamp(t time.Time) (string, error)
	ValidateImageFile(file *multipart.FileHeader) error
	ReadFile(file multipart.File) ([]byte, error)
	DecodeBase64Image(encoded string) ([]byte, error)
}

type utils struct {
	maxFileSize int64
}

func New(maxFileSize int64) IUtils {
	return &utils{
		maxFileSize: maxFileSize,
	}
}

func (u *utils) NewULIDFromTimestamp(t time.Time) (string, error) {
	ms := ulid.Timestamp(t)
	entropy := ulid.Monotonic(rand.Reader, 0)

	id, err := ulid.New(ms, entropy)
	if err != nil {
		return "", err
	}

	return id.String(), nil
}

func (u *utils) ValidateImageFile(file *multipart.FileHeader) error {
	if file == nil {
		return ErrNoFile
	}

	if u.maxFileSize > 0 && file.Size > u.maxFileSize {
		return ErrFileTooLarge
	}

	// Clients that omit a part content type are let through; the decoder
	// sniffs the bytes anyway.
	contentType := file.Header.Get("Content-Type")
	if contentType != "" && contentType != "application/octet-stream" && !strings.HasPrefix(contentType, "image/") {
		return ErrNotAnImage
	}

	return nil
}

func (u *utils) ReadFile(file multipart.File) ([]byte, error) {
	return io.ReadAll(file)
}

// DecodeBase64Image decodes standard base64, tolerating a leading
// "data:<mime>;base64," prefix.
func (u *utils) DecodeBase64Image(encoded string) ([]byte, error) {
	if strings.HasPrefix(encoded, "data:") {
		if idx := strings.Index(encoded, ","); idx >= 0 {
			encoded = encoded[idx+1:]
		}
	}

	return base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
}
