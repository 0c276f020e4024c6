// Package geolocation acquires the user's current position.
//
// Every failure is reported as one of ErrPermissionDenied, ErrUnavailable or ErrTimeout,
// all of which wrap ErrLocation.
package geolocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/UnknownOlympus/nightspot/internal/models"
)

// DefaultTimeout bounds a single position request.
const DefaultTimeout = 10 * time.Second

// Failure kinds.
var (
	ErrLocation         = errors.New("location unavailable")
	ErrPermissionDenied = fmt.Errorf("%w: permission denied", ErrLocation)
	ErrUnavailable      = fmt.Errorf("%w: position unavailable", ErrLocation)
	ErrTimeout          = fmt.Errorf("%w: timeout", ErrLocation)
)

// DefaultPosition is Seoul City Hall, used when the position cannot be acquired.
var DefaultPosition = models.Coordinates{Latitude: 37.5666103, Longitude: 126.9783882}

// Locator returns the current position of the user.
type Locator interface {
	Locate(ctx context.Context) (models.Coordinates, error)
}

// Static always answers with the same position or error.
type Static struct {
	Position models.Coordinates
	Err      error
}

// Locate implements Locator.
func (s Static) Locate(context.Context) (models.Coordinates, error) {
	if s.Err != nil {
		return models.Coordinates{}, s.Err
	}

	return s.Position, nil
}

type timeoutLocator struct {
	next    Locator
	timeout time.Duration
}

// WithTimeout bounds every Locate call of next. A locator that ignores its context
// is abandoned after the timeout and ErrTimeout is returned.
func WithTimeout(next Locator, timeout time.Duration) Locator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &timeoutLocator{next: next, timeout: timeout}
}

type locateResult struct {
	pos models.Coordinates
	err error
}

func (t *timeoutLocator) Locate(ctx context.Context) (models.Coordinates, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	done := make(chan locateResult, 1)
	go func() {
		pos, err := t.next.Locate(ctx)
		done <- locateResult{pos: pos, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil && errors.Is(res.err, context.DeadlineExceeded) {
			return models.Coordinates{}, ErrTimeout
		}
		return res.pos, classify(res.err)
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return models.Coordinates{}, ErrTimeout
		}
		return models.Coordinates{}, fmt.Errorf("%w: %w", ErrUnavailable, ctx.Err())
	}
}

// classify makes sure any error leaving the package is one of the failure kinds.
func classify(err error) error {
	if err == nil || errors.Is(err, ErrLocation) {
		return err
	}

	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

// Resolve asks the locator for a position and falls back to DefaultPosition on failure.
// The error is still returned so that the caller can tell the user once.
func Resolve(ctx context.Context, locator Locator) (models.Coordinates, error) {
	if locator == nil {
		return DefaultPosition, ErrUnavailable
	}

	pos, err := locator.Locate(ctx)
	if err != nil {
		return DefaultPosition, classify(err)
	}
	if !pos.Valid() {
		return DefaultPosition, ErrUnavailable
	}

	return pos, nil
}
