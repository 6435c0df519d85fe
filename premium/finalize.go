package premium

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

const (
	// DefaultFloor is the lowest premium ever reported
	DefaultFloor = 0.0

	// DefaultDecimals rounds premiums to whole currency units
	DefaultDecimals int32 = 0

	maxDecimals int32 = 4
)

// Clamp reasons recorded on a PremiumResult. Raw holds 0 for the non-finite
// ones, so the reason is the only trace of what the model produced.
const (
	ClampNaN        = "nan"
	ClampPosInf     = "+inf"
	ClampNegInf     = "-inf"
	ClampBelowFloor = "below_floor"
)

// Finalizer turns raw model output into a reportable premium. Negative,
// NaN and infinite outputs clamp to the floor; everything else rounds half
// up to the configured number of decimals.
type Finalizer struct {
	floor    float64
	decimals int32
}

// NewFinalizer validates the floor and precision
func NewFinalizer(floor float64, decimals int32) (*Finalizer, error) {
	if math.IsNaN(floor) || math.IsInf(floor, 0) || floor < 0 {
		return nil, fmt.Errorf("premium floor must be a finite non-negative number, got %v", floor)
	}
	if decimals < 0 || decimals > maxDecimals {
		return nil, fmt.Errorf("premium decimals must be between 0 and %d, got %d", maxDecimals, decimals)
	}
	return &Finalizer{floor: floor, decimals: decimals}, nil
}

// Floor returns the clamp threshold
func (f *Finalizer) Floor() float64 { return f.floor }

// Decimals returns the rounding precision
func (f *Finalizer) Decimals() int32 { return f.decimals }

// Finalize clamps and rounds a score
func (f *Finalizer) Finalize(s Score) PremiumResult {
	result := PremiumResult{
		Raw:          s.Value,
		Segment:      s.Segment,
		ModelVersion: s.ModelVersion,
	}

	value := s.Value
	if reason := clampReason(value, f.floor); reason != "" {
		value = f.floor
		result.Clamped = true
		result.ClampReason = reason
	}

	// Round is half away from zero, which is half up for values >= 0
	result.Premium = decimal.NewFromFloat(value).Round(f.decimals).InexactFloat64()
	// encoding/json rejects NaN and Inf
	if math.IsNaN(result.Raw) || math.IsInf(result.Raw, 0) {
		result.Raw = 0
	}
	return result
}

func clampReason(value, floor float64) string {
	switch {
	case math.IsNaN(value):
		return ClampNaN
	case math.IsInf(value, 1):
		return ClampPosInf
	case math.IsInf(value, -1):
		return ClampNegInf
	case value < floor:
		return ClampBelowFloor
	}
	return ""
}
