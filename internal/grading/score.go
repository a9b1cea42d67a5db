package grading

import (
	"errors"
	"fmt"
	"math"
)

// ErrScoreOutOfRange indicates a grade outside [0, maxPoints].
var ErrScoreOutOfRange = errors.New("grade out of range")

// ValidateScore checks that score lies within the assignment bounds.
func ValidateScore(score, maxPoints float64) error {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return fmt.Errorf("%w: grade must be a finite number", ErrScoreOutOfRange)
	}
	if score < 0 || score > maxPoints {
		return fmt.Errorf("%w: grade must be between 0 and %s", ErrScoreOutOfRange, formatPoints(maxPoints))
	}
	return nil
}
