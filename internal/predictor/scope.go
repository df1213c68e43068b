package predictor

import (
	"context"
	"errors"
)

// Scope holds the transient model state of a single clip. Everything encoded
// through a Scope is released by Close, after which the device is flushed if
// the predictor supports it.
type Scope struct {
	p    Predictor
	held []Features
}

// Enter opens a per-clip scope
func Enter(p Predictor) *Scope {
	return &Scope{p: p}
}

// Encode encodes a clip and tracks the features for release
func (s *Scope) Encode(ctx context.Context, clipPath string) (Features, error) {
	f, err := s.p.Encode(ctx, clipPath)
	if err != nil {
		return nil, err
	}
	s.held = append(s.held, f)
	return f, nil
}

// Predict delegates to the predictor
func (s *Scope) Predict(ctx context.Context, query string, f Features) (*Prediction, error) {
	return s.p.Predict(ctx, query, f)
}

// Close releases all features and flushes device memory
func (s *Scope) Close() error {
	var errs []error
	for _, f := range s.held {
		if err := f.Release(); err != nil {
			errs = append(errs, err)
		}
	}
	s.held = nil

	if fl, ok := s.p.(DeviceFlusher); ok {
		if err := fl.FlushDevice(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
