package predictor

import (
	"context"
	"sync"
)

// Exclusive serializes all calls into p; the underlying model owns a single
// compute device and must not be entered concurrently
func Exclusive(p Predictor) Predictor {
	if _, ok := p.(*exclusive); ok {
		return p
	}
	return &exclusive{p: p}
}

type exclusive struct {
	mu sync.Mutex
	p  Predictor
}

func (e *exclusive) Encode(ctx context.Context, clipPath string) (Features, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.p.Encode(ctx, clipPath)
}

func (e *exclusive) Predict(ctx context.Context, query string, f Features) (*Prediction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.p.Predict(ctx, query, f)
}

func (e *exclusive) FlushDevice() error {
	fl, ok := e.p.(DeviceFlusher)
	if !ok {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return fl.FlushDevice()
}

// Close closes the wrapped predictor if it holds resources
func (e *exclusive) Close() error {
	c, ok := e.p.(interface{ Close() error })
	if !ok {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return c.Close()
}
