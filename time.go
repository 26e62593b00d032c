package auth

import (
	"time"

	"github.com/goliatone/go-errors"
)

// IsWithinThresholdPeriod checks if the given time falls inside the window
// [now - threshold, now]. Future timestamps count as within.
func IsWithinThresholdPeriod(t time.Time, thresholdExpr string) (bool, error) {
	threshold, err := time.ParseDuration(thresholdExpr)
	if err != nil {
		return false, errors.Wrap(err, errors.CategoryBadInput, "invalid threshold expression").
			WithMetadata(map[string]any{"threshold": thresholdExpr})
	}

	return t.After(time.Now().Add(-threshold)), nil
}

// IsOutsideThresholdPeriod is the complement of IsWithinThresholdPeriod
func IsOutsideThresholdPeriod(t time.Time, thresholdExpr string) (bool, error) {
	within, err := IsWithinThresholdPeriod(t, thresholdExpr)
	if err != nil {
		return false, err
	}
	return !within, nil
}
