package predictor

import (
	"context"
	"sync"
)

// Lazy defers building a predictor until the first clip needs it, so
// commands that never score anything do not load a model. It is safe for
// concurrent use; the built predictor's own methods are not serialized.
func Lazy(build func() (Predictor, error)) Predictor {
	return &lazy{build: build}
}

type lazy struct {
	build func() (Predictor, error)

	mu    sync.Mutex
	built bool
	p     Predictor
	err   error
}

func (l *lazy) get() (Predictor, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.built {
		l.p, l.err = l.build()
		l.built = true
	}
	return l.p, l.err
}

// current returns the predictor if it was built, without building it
func (l *lazy) current() Predictor {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.p
}

func (l *lazy) Encode(ctx context.Context, clipPath string) (Features, error) {
	p, err := l.get()
	if err != nil {
		return nil, err
	}
	return p.Encode(ctx, clipPath)
}

func (l *lazy) Predict(ctx context.Context, query string, f Features) (*Prediction, error) {
	p, err := l.get()
	if err != nil {
		return nil, err
	}
	return p.Predict(ctx, query, f)
}

func (l *lazy) FlushDevice() error {
	if fl, ok := l.current().(DeviceFlusher); ok {
		return fl.FlushDevice()
	}
	return nil
}

// Close closes the predictor only if it was built
func (l *lazy) Close() error {
	if c, ok := l.current().(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
