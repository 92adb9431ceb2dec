package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

const Scheme = "s3"

var (
	ErrInvalidURL = errors.New("invalid s3 url")
	ErrTooLarge   = errors.New("s3 object too large")
)

type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	// Endpoint overrides the service endpoint, e.g. for MinIO.
	Endpoint string
}

type ItfS3 interface {
	Download(ctx context.Context, objectURL string) ([]byte, error)
}

type s3Client struct {
	client  s3iface.S3API
	maxSize int64
}

func New(cfg Config, maxSize int64) (ItfS3, error) {
	sess, err := newSession(cfg)
	if err != nil {
		return nil, err
	}

	return NewWithClient(s3.New(sess), maxSize), nil
}

func NewWithClient(client s3iface.S3API, maxSize int64) ItfS3 {
	return &s3Client{
		client:  client,
		maxSize: maxSize,
	}
}

// IsS3URL reports whether rawURL uses the s3:// scheme.
func IsS3URL(rawURL string) bool {
	return strings.HasPrefix(strings.ToLower(rawURL), Scheme+"://")
}

// ParseURL splits s3://bucket/key into its bucket and unescaped key.
func ParseURL(rawURL string) (string, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if !strings.EqualFold(u.Scheme, Scheme) || u.Host == "" {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidURL, rawURL)
	}

	key := strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", fmt.Errorf("%w: missing object key in %s", ErrInvalidURL, rawURL)
	}

	return u.Host, key, nil
}

func (s *s3Client) Download(ctx context.Context, objectURL string) ([]byte, error) {
	bucket, key, err := ParseURL(objectURL)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get object %s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	if s.maxSize > 0 && aws.Int64Value(out.ContentLength) > s.maxSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, aws.Int64Value(out.ContentLength))
	}

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read object %s/%s: %w", bucket, key, err)
	}

	return body, nil
}

func newSession(cfg Config) (*session.Session, error) {
	awsCfg := &aws.Config{
		Region: aws.String(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, err
	}

	return sess, nil
}
