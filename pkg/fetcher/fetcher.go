package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

var (
	ErrUnexpectedStatus = errors.New("unexpected upstream status")
	ErrTooLarge         = errors.New("upstream body too large")
)

type IFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type fetcher struct {
	client  *resty.Client
	maxSize int
}

// New returns an HTTP image fetcher. Requests are attempted once; maxSize
// bounds the body read from the upstream, 0 disables the check.
func New(log *logrus.Logger, timeout time.Duration, maxSize int) IFetcher {
	client := resty.New().
		SetLogger(log).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Accept", "image/*").
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))
	if maxSize > 0 {
		client.SetResponseBodyLimit(maxSize)
	}

	return &fetcher{
		client:  client,
		maxSize: maxSize,
	}
}

func (f *fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	resp, err := f.client.R().SetContext(ctx).Get(url)
	if errors.Is(err, resty.ErrResponseBodyTooLarge) {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, f.maxSize)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", url, err)
	}

	if !resp.IsSuccess() {
		return nil, fmt.Errorf("%w: %s returned %d %s", ErrUnexpectedStatus, url,
			resp.StatusCode(), http.StatusText(resp.StatusCode()))
	}

	body := resp.Body()
	if f.maxSize > 0 && len(body) > f.maxSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(body))
	}

	return body, nil
}
