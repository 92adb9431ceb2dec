package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const loadKey = "model"

// Loader lazily loads one model per process. Concurrent callers that arrive
// before the first load completes share it; a failed load leaves the loader
// empty so the next call retries.
type Loader struct {
	path    string
	labels  int
	runtime Runtime
	log     *logrus.Logger

	group singleflight.Group
	mu    sync.RWMutex
	model Model
}

func NewLoader(log *logrus.Logger, runtime Runtime, path string, labels int) *Loader {
	return &Loader{
		path:    path,
		labels:  labels,
		runtime: runtime,
		log:     log,
	}
}

func (l *Loader) current() Model {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.model
}

// Loaded reports whether a model is held.
func (l *Loader) Loaded() bool {
	return l.current() != nil
}

// Ensure returns the loaded model, loading it first if needed. Waiting
// callers give up when ctx is done; the load itself keeps going.
func (l *Loader) Ensure(ctx context.Context) (Model, error) {
	if m := l.current(); m != nil {
		return m, nil
	}

	ch := l.group.DoChan(loadKey, func() (interface{}, error) {
		if m := l.current(); m != nil {
			return m, nil
		}
		return l.load()
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Model), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Loader) load() (Model, error) {
	l.log.WithField("path", l.path).Info("Loading model")

	m, err := l.runtime.Load(l.path)
	if err != nil {
		l.log.WithFields(logrus.Fields{
			"path":  l.path,
			"error": err.Error(),
		}).Error("Failed to load model")
		return nil, fmt.Errorf("load model %s: %w", l.path, err)
	}

	if width := m.OutputWidth(); width > 0 && width != l.labels {
		l.log.WithFields(logrus.Fields{
			"output_width": width,
			"labels":       l.labels,
		}).Warn("Model output width does not match label table")
	}

	l.mu.Lock()
	l.model = m
	l.mu.Unlock()

	l.log.WithField("path", l.path).Info("Model loaded")
	return m, nil
}

// Close releases the held model, if any.
func (l *Loader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.model == nil {
		return nil
	}
	err := l.model.Close()
	l.model = nil
	return err
}
