package photometry

import (
	"context"

	"github.com/turtacn/LumiGrid/pkg/errors"
)

func invalidParameter(format string, args ...interface{}) error {
	return errors.Newf(errors.ErrCodeInvalidParameter, format, args...)
}

func cancelled(err error) error {
	return errors.Wrap(err, errors.ErrCodeCalculationCancelled, "calculation cancelled")
}

// asCancellation converts context errors into ErrCodeCalculationCancelled and
// passes every other error through unchanged.
func asCancellation(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		if errors.IsCode(err, errors.ErrCodeCalculationCancelled) {
			return err
		}
		return cancelled(err)
	}
	return err
}

// IsInvalidParameter reports whether err was caused by rejected input.
func IsInvalidParameter(err error) bool {
	return errors.IsCode(err, errors.ErrCodeInvalidParameter)
}

// IsEmptyDataset reports whether err was caused by summarizing zero points.
func IsEmptyDataset(err error) bool {
	return errors.IsCode(err, errors.ErrCodeEmptyDataset)
}

// IsCancelled reports whether a calculation stopped because its context ended.
func IsCancelled(err error) bool {
	return errors.IsCode(err, errors.ErrCodeCalculationCancelled)
}
